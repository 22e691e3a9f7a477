package model

// AccumulatorReading 累计流量计的一条原始采样
//
// 远端流量计是单调递增的累计计数器（除非计数器复位）。
// Value 为 nil 表示传感器缺数，绝不能当作 0 处理。
type AccumulatorReading struct {
	TimestampMillis int64    `json:"timestamp"`
	Value           *float64 `json:"value"`
}

// HasValue 该采样是否携带有效数值
func (r AccumulatorReading) HasValue() bool {
	return r.Value != nil
}

// FetchStatus 远端批量拉取结果的标记
//
// 拉取从不报错，只会降级；调用方必须能区分“没有数据”和“数值为 0”。
type FetchStatus string

const (
	// FetchOK 全部批次成功
	FetchOK FetchStatus = "ok"
	// FetchPartial 部分批次失败，数据不完整
	FetchPartial FetchStatus = "partial"
	// FetchEmpty 批次成功但没有返回任何采样
	FetchEmpty FetchStatus = "empty"
	// FetchUnavailable 全部批次失败，上游不可用
	FetchUnavailable FetchStatus = "unavailable"
)

// Granularity 分桶粒度
type Granularity string

const (
	// GranularityDay 按自然日分桶
	GranularityDay Granularity = "day"
	// GranularityHour 按自然小时分桶
	GranularityHour Granularity = "hour"
)

// DeltaRecord 相邻两个桶代表值之间的增量水量
//
// Anomaly 表示增量为负（计数器复位），按约定不截断、原样上报。
type DeltaRecord struct {
	PeriodKey string  `json:"periodKey"`
	Volume    float64 `json:"volume"`
	Anomaly   bool    `json:"anomaly,omitempty"`
}
