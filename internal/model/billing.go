package model

// BillingRow 计费系统返回的一行原始记录（一个计费期、一个片区一行）
type BillingRow struct {
	ProjectName        string  `json:"projectName"`
	Location           string  `json:"location"`
	QtyM3              float64 `json:"qtyM3"`
	ActiveCustomers    int     `json:"activeCustomers"`
	PercentageComplete float64 `json:"percentageComplete"`
}

// LocationAggregate 片区级汇总明细
type LocationAggregate struct {
	Location           string  `json:"location"`
	QtyM3              float64 `json:"qty"`
	ActiveCustomers    int     `json:"activeCustomers"`
	PercentageComplete float64 `json:"locPctComplete"`
}

// ProjectAggregate 项目（水厂）级汇总
//
// TotalQtyM3 恒等于各片区 QtyM3 之和（浮点求和，展示层才做舍入）。
// WeightedPercentComplete 按活跃用户数加权；用户数合计为 0 时定义为 0。
type ProjectAggregate struct {
	Project                 string              `json:"project"`
	TotalQtyM3              float64             `json:"totalQty"`
	Locations               []LocationAggregate `json:"locations"`
	TotalActiveCustomers    int                 `json:"totalActiveCustomers"`
	WeightedPercentComplete float64             `json:"percentageComplete"`
}
