package model

// EntityLevel 报表对象层级
type EntityLevel string

const (
	// LevelWTP 水厂级（项目）
	LevelWTP EntityLevel = "wtp"
	// LevelArea 片区级（项目下的位置）
	LevelArea EntityLevel = "area"
)

// MonthlyReport 月度 NRW 报表
type MonthlyReport struct {
	Month          string      `json:"month"` // YYYY-MM
	Name           string      `json:"name"`
	Level          EntityLevel `json:"level"`
	DeviceCode     string      `json:"device_code"`
	TotalFlow      float64     `json:"total_flow"`
	BilledQty      float64     `json:"billed_qty"`
	NRWVolume      float64     `json:"nrw_m3"`
	NRWPercent     float64     `json:"nrw_percent"`
	BilledComplete float64     `json:"billed_completed"`
	FlowStatus     FetchStatus `json:"flow_status"`
	HasAnomaly     bool        `json:"has_anomaly,omitempty"`
}

// DailyRow 单日 NRW 估算行
//
// BilledEst 为月度计费量按自然日数平摊的估算值（计费没有日内分辨率）。
type DailyRow struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	DailyFlow  float64 `json:"daily_flow"`
	BilledEst  float64 `json:"billed_est"`
	NRWVolume  float64 `json:"nrw_m3"`
	NRWPercent float64 `json:"nrw_percent"`
	Anomaly    bool    `json:"anomaly,omitempty"`
}

// DailyReport 日度 NRW 报表（整月逐日）
type DailyReport struct {
	Month          string      `json:"month"`
	Name           string      `json:"name"`
	Level          EntityLevel `json:"level"`
	DeviceCode     string      `json:"device_code"`
	BilledQty      float64     `json:"billed_qty"`
	BilledComplete float64     `json:"billed_completed"`
	FlowStatus     FetchStatus `json:"flow_status"`
	Rows           []DailyRow  `json:"daily_nrws"`
}

// HourlyRow 单小时 NRW 估算行
type HourlyRow struct {
	Hour       string  `json:"hour"` // YYYY-MM-DD HH:00
	HourlyFlow float64 `json:"hourly_flow"`
	BilledEst  float64 `json:"billed_est"`
	NRWVolume  float64 `json:"nrw_m3"`
	NRWPercent float64 `json:"nrw_percent"`
	Anomaly    bool    `json:"anomaly,omitempty"`
}

// HourlyReport 时度 NRW 报表（单日逐小时）
//
// 当月计费尚未出账时回退使用上月计费量，IsEstimate 置位，
// BilledMonth 记录实际采用的计费月份。
type HourlyReport struct {
	Date        string      `json:"date"` // YYYY-MM-DD
	Name        string      `json:"name"`
	Level       EntityLevel `json:"level"`
	DeviceCode  string      `json:"device_code"`
	BilledMonth string      `json:"billed_month"`
	BilledQty   float64     `json:"billed_qty"`
	IsEstimate  bool        `json:"is_estimate"`
	FlowStatus  FetchStatus `json:"flow_status"`
	Rows        []HourlyRow `json:"hourly_nrws"`
}

// YearlyMonth 年报中单个月份的汇总
type YearlyMonth struct {
	TotalFlow  float64 `json:"total_flows"`
	BilledQty  float64 `json:"billed_qty"`
	NRWVolume  float64 `json:"nrw_volume"`
	NRWPercent float64 `json:"nrw_percent"`
	HasData    bool    `json:"has_data"`
}

// YearlyReport 年度 NRW 报表，Months 以 "YYYY-MM" 为键，含显式无数据月份
type YearlyReport struct {
	Year       int                    `json:"year"`
	Name       string                 `json:"name"`
	Level      EntityLevel            `json:"level"`
	DeviceCode string                 `json:"device_code"`
	TotalFlow  float64                `json:"total_flow"`
	BilledQty  float64                `json:"billed_qty"`
	NRWVolume  float64                `json:"nrw_volume"`
	NRWPercent float64                `json:"nrw_percent"`
	Months     map[string]YearlyMonth `json:"months"`
}
