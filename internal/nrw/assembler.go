package nrw

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Sarahmoonshot/nrw-report/internal/billing"
	"github.com/Sarahmoonshot/nrw-report/internal/devices"
	"github.com/Sarahmoonshot/nrw-report/internal/model"
	"github.com/Sarahmoonshot/nrw-report/internal/store"
	"github.com/Sarahmoonshot/nrw-report/internal/telemetry"
)

// 报表装配的有类型结果：路由层按错误分支映射响应
var (
	// ErrUnknownDevice 设备码不在映射表中
	ErrUnknownDevice = errors.New("device not recognized")
	// ErrNoData 该周期内没有该对象的数据（正常可上报结果，不是异常）
	ErrNoData = errors.New("no data for device in period")
	// ErrUpstream 上游（遥测或计费）不可用，结果不可判定
	// 注意不能折叠成 NRW=0，否则停机期间会得出“无漏损”的误导结论
	ErrUpstream = errors.New("upstream unavailable")
)

// FlowSource 遥测读数来源
type FlowSource interface {
	FetchReadings(device string, instants []int64) ([]model.AccumulatorReading, model.FetchStatus)
}

// BillingSource 计费汇总来源
type BillingSource interface {
	AggregateMonth(year int, month time.Month) billing.MonthAggregates
}

// SnapshotStore 月度快照存取（可选协作方）
type SnapshotStore interface {
	UpsertMonthly(snap store.MonthlySnapshot) error
	GetMonthly(monthKey, deviceCode string) (store.MonthlySnapshot, bool, error)
}

// Assembler 报表装配器
//
// 四种粒度共用一套装配逻辑，无持久状态，每次调用都是对拉取输入的纯推导。
type Assembler struct {
	flow      FlowSource
	billing   BillingSource
	matcher   *devices.Matcher
	snapshots SnapshotStore
	offset    time.Duration
	clock     clockwork.Clock
}

// NewAssembler 创建报表装配器；snapshots 可为 nil（不落快照、时度回退走实时拉取）
func NewAssembler(flow FlowSource, bill BillingSource, matcher *devices.Matcher, snapshots SnapshotStore, offset time.Duration, clock clockwork.Clock) *Assembler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Assembler{
		flow:      flow,
		billing:   bill,
		matcher:   matcher,
		snapshots: snapshots,
		offset:    offset,
		clock:     clock,
	}
}

// MonthKey 月份键，YYYY-MM
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// DateKey 日期键，YYYY-MM-DD
func DateKey(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// PrevMonth 上一个月
func PrevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// entity 计费侧定位到的报表对象
type entity struct {
	name   string
	level  model.EntityLevel
	billed float64
	pct    float64
}

// resolveEntity 在计费汇总中定位设备对应的对象：先项目（水厂）级，后片区级
func (a *Assembler) resolveEntity(projects []model.ProjectAggregate, device string) (entity, bool) {
	for _, p := range projects {
		if code, ok := a.matcher.Match(p.Project); ok && code == device {
			return entity{
				name:   strings.ToUpper(p.Project),
				level:  model.LevelWTP,
				billed: p.TotalQtyM3,
				pct:    p.WeightedPercentComplete,
			}, true
		}
	}
	for _, p := range projects {
		for _, loc := range p.Locations {
			if code, ok := a.matcher.Match(loc.Location); ok && code == device {
				return entity{
					name:   loc.Location,
					level:  model.LevelArea,
					billed: loc.QtyM3,
					pct:    loc.PercentageComplete,
				}, true
			}
		}
	}
	return entity{}, false
}

// fetchMonthDeltas 拉取某月逐日增量（含前导日种子），只保留落在该月内的增量
func (a *Assembler) fetchMonthDeltas(device string, year int, month time.Month) ([]model.DeltaRecord, model.FetchStatus) {
	instants := telemetry.DayInstants(year, month, a.offset)
	readings, status := a.flow.FetchReadings(device, instants)
	deltas := telemetry.ResolveDeltas(readings, model.GranularityDay, a.offset)

	prefix := MonthKey(year, month)
	var kept []model.DeltaRecord
	for _, d := range deltas {
		if strings.HasPrefix(d.PeriodKey, prefix) {
			kept = append(kept, d)
		}
	}
	return kept, status
}

// sumDeltas 汇总增量水量并聚合异常标记
func sumDeltas(deltas []model.DeltaRecord) (total float64, anomaly bool) {
	for _, d := range deltas {
		total += d.Volume
		if d.Anomaly {
			anomaly = true
		}
	}
	return total, anomaly
}

// Monthly 月度 NRW 报表：整月总流量对整月计费量
func (a *Assembler) Monthly(year int, month time.Month, device string) (*model.MonthlyReport, error) {
	if !a.matcher.Contains(device) {
		return nil, ErrUnknownDevice
	}

	agg := a.billing.AggregateMonth(year, month)
	deltas, fstatus := a.fetchMonthDeltas(device, year, month)
	totalFlow, anomaly := sumDeltas(deltas)

	if agg.Status == model.FetchUnavailable || fstatus == model.FetchUnavailable {
		return nil, ErrUpstream
	}

	// 计费侧没有该设备的任何行时是无数据结果：
	// 不能用计费量 0 伪造一份 NRW=0 的报表
	ent, found := a.resolveEntity(agg.Projects, device)
	if !found {
		return nil, ErrNoData
	}
	if totalFlow == 0 && ent.billed == 0 {
		return nil, ErrNoData
	}

	nrwM3, nrwPct := Calculate(totalFlow, ent.billed)
	rep := &model.MonthlyReport{
		Month:          MonthKey(year, month),
		Name:           ent.name,
		Level:          ent.level,
		DeviceCode:     device,
		TotalFlow:      totalFlow,
		BilledQty:      ent.billed,
		NRWVolume:      nrwM3,
		NRWPercent:     nrwPct,
		BilledComplete: ent.pct,
		FlowStatus:     fstatus,
		HasAnomaly:     anomaly,
	}
	a.saveSnapshot(rep)
	return rep, nil
}

// saveSnapshot 落月度快照；失败只记日志，不影响本次结果
func (a *Assembler) saveSnapshot(rep *model.MonthlyReport) {
	if a.snapshots == nil {
		return
	}
	if err := a.snapshots.UpsertMonthly(store.SnapshotFromReport(*rep)); err != nil {
		log.Printf("[WARN] 月度快照写入失败 month=%s device=%s: %v", rep.Month, rep.DeviceCode, err)
	}
}

// Daily 日度 NRW 报表：计费量按自然日数平摊后逐日对比流量增量
//
// 计费没有日内分辨率，平摊是简单除法而非按实际用量加权。
func (a *Assembler) Daily(year int, month time.Month, device string) (*model.DailyReport, error) {
	if !a.matcher.Contains(device) {
		return nil, ErrUnknownDevice
	}

	agg := a.billing.AggregateMonth(year, month)
	deltas, fstatus := a.fetchMonthDeltas(device, year, month)
	totalFlow, _ := sumDeltas(deltas)

	if agg.Status == model.FetchUnavailable || fstatus == model.FetchUnavailable {
		return nil, ErrUpstream
	}

	// 与月度同口径：计费侧匹配不到该设备 ⇒ 无数据
	ent, found := a.resolveEntity(agg.Projects, device)
	if !found {
		return nil, ErrNoData
	}
	if totalFlow == 0 && ent.billed == 0 {
		return nil, ErrNoData
	}

	days := telemetry.DaysInMonth(year, month)
	billedPerDay := 0.0
	if days > 0 {
		billedPerDay = ent.billed / float64(days)
	}

	flowByDay := make(map[string]model.DeltaRecord, len(deltas))
	for _, d := range deltas {
		flowByDay[d.PeriodKey] = d
	}

	rows := make([]model.DailyRow, 0, days)
	for day := 1; day <= days; day++ {
		key := DateKey(year, month, day)
		var flowVal float64
		var anomaly bool
		if d, ok := flowByDay[key]; ok {
			flowVal = d.Volume
			anomaly = d.Anomaly
		}
		nrwM3, nrwPct := Calculate(flowVal, billedPerDay)
		rows = append(rows, model.DailyRow{
			Date:       key,
			DailyFlow:  flowVal,
			BilledEst:  billedPerDay,
			NRWVolume:  nrwM3,
			NRWPercent: nrwPct,
			Anomaly:    anomaly,
		})
	}

	return &model.DailyReport{
		Month:          MonthKey(year, month),
		Name:           ent.name,
		Level:          ent.level,
		DeviceCode:     device,
		BilledQty:      ent.billed,
		BilledComplete: ent.pct,
		FlowStatus:     fstatus,
		Rows:           rows,
	}, nil
}

// Hourly 时度 NRW 报表：单日逐小时流量增量对计费量的小时平摊
//
// 当月计费未出账时回退用上月计费量（先查快照库，再实时拉取），
// 结果标记为估算；两个月都没有计费量则是硬性无数据，不得降级为 0。
func (a *Assembler) Hourly(year int, month time.Month, day int, device string) (*model.HourlyReport, error) {
	if !a.matcher.Contains(device) {
		return nil, ErrUnknownDevice
	}

	instants := telemetry.HourInstants(year, month, day, a.offset)
	readings, fstatus := a.flow.FetchReadings(device, instants)
	if fstatus == model.FetchUnavailable {
		return nil, ErrUpstream
	}
	deltas := telemetry.ResolveDeltas(readings, model.GranularityHour, a.offset)

	dateKey := DateKey(year, month, day)
	flowByHour := make(map[string]model.DeltaRecord, len(deltas))
	for _, d := range deltas {
		if strings.HasPrefix(d.PeriodKey, dateKey) {
			flowByHour[d.PeriodKey] = d
		}
	}

	ent, billedYear, billedMonth, isEstimate, err := a.resolveBilledWithFallback(year, month, device)
	if err != nil {
		return nil, err
	}

	billedDays := telemetry.DaysInMonth(billedYear, billedMonth)
	billedPerHour := 0.0
	if billedDays > 0 {
		billedPerHour = ent.billed / float64(24*billedDays)
	}

	rows := make([]model.HourlyRow, 0, 24)
	for hour := 0; hour < 24; hour++ {
		key := fmt.Sprintf("%s %02d:00", dateKey, hour)
		var flowVal float64
		var anomaly bool
		if d, ok := flowByHour[key]; ok {
			flowVal = d.Volume
			anomaly = d.Anomaly
		}
		nrwM3, nrwPct := Calculate(flowVal, billedPerHour)
		rows = append(rows, model.HourlyRow{
			Hour:       key,
			HourlyFlow: flowVal,
			BilledEst:  billedPerHour,
			NRWVolume:  nrwM3,
			NRWPercent: nrwPct,
			Anomaly:    anomaly,
		})
	}

	return &model.HourlyReport{
		Date:        dateKey,
		Name:        ent.name,
		Level:       ent.level,
		DeviceCode:  device,
		BilledMonth: MonthKey(billedYear, billedMonth),
		BilledQty:   ent.billed,
		IsEstimate:  isEstimate,
		FlowStatus:  fstatus,
		Rows:        rows,
	}, nil
}

// resolveBilledWithFallback 取当月计费量，缺失时回退上月（快照优先）
func (a *Assembler) resolveBilledWithFallback(year int, month time.Month, device string) (ent entity, billedYear int, billedMonth time.Month, isEstimate bool, err error) {
	agg := a.billing.AggregateMonth(year, month)
	if agg.Status != model.FetchUnavailable {
		if e, found := a.resolveEntity(agg.Projects, device); found && e.billed > 0 {
			return e, year, month, false, nil
		}
	}

	prevYear, prevMonth := PrevMonth(year, month)
	prevKey := MonthKey(prevYear, prevMonth)

	// 快照库里有上月结果就不再打计费接口
	if a.snapshots != nil {
		snap, ok, serr := a.snapshots.GetMonthly(prevKey, device)
		if serr != nil {
			log.Printf("[WARN] 读取月度快照失败 month=%s device=%s: %v", prevKey, device, serr)
		}
		if ok && snap.BilledQty > 0 {
			return entity{
				name:   snap.EntityName,
				level:  snap.EntityLevel,
				billed: snap.BilledQty,
				pct:    snap.BilledComplete,
			}, prevYear, prevMonth, true, nil
		}
	}

	prevAgg := a.billing.AggregateMonth(prevYear, prevMonth)
	if prevAgg.Status != model.FetchUnavailable {
		if e, found := a.resolveEntity(prevAgg.Projects, device); found && e.billed > 0 {
			return e, prevYear, prevMonth, true, nil
		}
	}

	if agg.Status == model.FetchUnavailable && prevAgg.Status == model.FetchUnavailable {
		return entity{}, 0, 0, false, ErrUpstream
	}
	return entity{}, 0, 0, false, ErrNoData
}

// Yearly 年度 NRW 报表：逐月计算并以 "YYYY-MM" 为键返回，无数据月份显式占位
//
// 已落快照且不是当前月的历史月份直接复用快照，避免整年重拉上游。
func (a *Assembler) Yearly(year int, device string) (*model.YearlyReport, error) {
	if !a.matcher.Contains(device) {
		return nil, ErrUnknownDevice
	}

	now := a.clock.Now().In(time.FixedZone("local", int(a.offset/time.Second)))
	months := make(map[string]model.YearlyMonth, 12)

	rep := &model.YearlyReport{
		Year:       year,
		Name:       a.matcher.Label(device),
		Level:      model.LevelWTP,
		DeviceCode: device,
		Months:     months,
	}

	hasData := false
	for m := time.January; m <= time.December; m++ {
		key := MonthKey(year, m)

		// 未来月份不拉上游
		if year > now.Year() || (year == now.Year() && m > now.Month()) {
			months[key] = model.YearlyMonth{}
			continue
		}

		if snap, ok := a.snapshotFor(key, device, year, m, now); ok {
			months[key] = model.YearlyMonth{
				TotalFlow:  snap.TotalFlow,
				BilledQty:  snap.BilledQty,
				NRWVolume:  snap.NRWVolume,
				NRWPercent: snap.NRWPercent,
				HasData:    true,
			}
			rep.Name = snap.EntityName
			rep.Level = snap.EntityLevel
			rep.TotalFlow += snap.TotalFlow
			rep.BilledQty += snap.BilledQty
			hasData = true
			continue
		}

		monthly, err := a.Monthly(year, m, device)
		if err != nil {
			// 单月无数据或上游失败只产出占位项，不拖垮整年
			months[key] = model.YearlyMonth{}
			continue
		}
		months[key] = model.YearlyMonth{
			TotalFlow:  monthly.TotalFlow,
			BilledQty:  monthly.BilledQty,
			NRWVolume:  monthly.NRWVolume,
			NRWPercent: monthly.NRWPercent,
			HasData:    true,
		}
		rep.Name = monthly.Name
		rep.Level = monthly.Level
		rep.TotalFlow += monthly.TotalFlow
		rep.BilledQty += monthly.BilledQty
		hasData = true
	}

	if !hasData {
		return nil, ErrNoData
	}

	rep.NRWVolume, rep.NRWPercent = Calculate(rep.TotalFlow, rep.BilledQty)
	return rep, nil
}

// snapshotFor 历史月份尝试复用快照（当前月永远重算）
func (a *Assembler) snapshotFor(key, device string, year int, month time.Month, now time.Time) (store.MonthlySnapshot, bool) {
	if a.snapshots == nil {
		return store.MonthlySnapshot{}, false
	}
	if year == now.Year() && month == now.Month() {
		return store.MonthlySnapshot{}, false
	}
	snap, ok, err := a.snapshots.GetMonthly(key, device)
	if err != nil {
		log.Printf("[WARN] 读取月度快照失败 month=%s device=%s: %v", key, device, err)
		return store.MonthlySnapshot{}, false
	}
	return snap, ok
}
