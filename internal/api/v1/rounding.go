package v1

import (
	"math"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

// 浮点舍入只发生在展示层，计算链路保持全精度

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundMonthlyInPlace(r *model.MonthlyReport) {
	r.TotalFlow = round2(r.TotalFlow)
	r.BilledQty = round2(r.BilledQty)
	r.NRWVolume = round2(r.NRWVolume)
	r.NRWPercent = round2(r.NRWPercent)
	r.BilledComplete = round2(r.BilledComplete)
}

func roundDailyInPlace(r *model.DailyReport) {
	r.BilledQty = round2(r.BilledQty)
	r.BilledComplete = round2(r.BilledComplete)
	for i := range r.Rows {
		r.Rows[i].DailyFlow = round2(r.Rows[i].DailyFlow)
		r.Rows[i].BilledEst = round2(r.Rows[i].BilledEst)
		r.Rows[i].NRWVolume = round2(r.Rows[i].NRWVolume)
		r.Rows[i].NRWPercent = round2(r.Rows[i].NRWPercent)
	}
}

func roundHourlyInPlace(r *model.HourlyReport) {
	r.BilledQty = round2(r.BilledQty)
	for i := range r.Rows {
		r.Rows[i].HourlyFlow = round2(r.Rows[i].HourlyFlow)
		r.Rows[i].BilledEst = round2(r.Rows[i].BilledEst)
		r.Rows[i].NRWVolume = round2(r.Rows[i].NRWVolume)
		r.Rows[i].NRWPercent = round2(r.Rows[i].NRWPercent)
	}
}

func roundYearlyInPlace(r *model.YearlyReport) {
	r.TotalFlow = round2(r.TotalFlow)
	r.BilledQty = round2(r.BilledQty)
	r.NRWVolume = round2(r.NRWVolume)
	r.NRWPercent = round2(r.NRWPercent)
	for key, m := range r.Months {
		m.TotalFlow = round2(m.TotalFlow)
		m.BilledQty = round2(m.BilledQty)
		m.NRWVolume = round2(m.NRWVolume)
		m.NRWPercent = round2(m.NRWPercent)
		r.Months[key] = m
	}
}
