package billing

import (
	"github.com/samber/lo"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

// Aggregate 将原始计费行汇总为项目/片区两级结构
//
// 按项目名精确分组（大小写敏感，沿用计费源的标签），项目内再按片区分组；
// 项目与片区都保持首次出现的顺序。加权完成率按活跃用户数加权，
// 用户数合计为 0 时定义为 0。
func Aggregate(rows []model.BillingRow) []model.ProjectAggregate {
	if len(rows) == 0 {
		return nil
	}

	var order []string
	grouped := make(map[string][]model.BillingRow)
	for _, row := range rows {
		if _, seen := grouped[row.ProjectName]; !seen {
			order = append(order, row.ProjectName)
		}
		grouped[row.ProjectName] = append(grouped[row.ProjectName], row)
	}

	out := make([]model.ProjectAggregate, 0, len(order))
	for _, project := range order {
		out = append(out, aggregateProject(project, grouped[project]))
	}
	return out
}

// aggregateProject 单个项目的汇总
func aggregateProject(project string, rows []model.BillingRow) model.ProjectAggregate {
	locations := make([]model.LocationAggregate, 0, len(rows))
	weighted := 0.0
	for _, row := range rows {
		locations = append(locations, model.LocationAggregate{
			Location:           row.Location,
			QtyM3:              row.QtyM3,
			ActiveCustomers:    row.ActiveCustomers,
			PercentageComplete: row.PercentageComplete,
		})
		weighted += float64(row.ActiveCustomers) * row.PercentageComplete
	}

	totalQty := lo.SumBy(locations, func(l model.LocationAggregate) float64 { return l.QtyM3 })
	totalCustomers := lo.SumBy(locations, func(l model.LocationAggregate) int { return l.ActiveCustomers })

	pct := 0.0
	if totalCustomers > 0 {
		pct = weighted / float64(totalCustomers)
	}

	return model.ProjectAggregate{
		Project:                 project,
		TotalQtyM3:              totalQty,
		Locations:               locations,
		TotalActiveCustomers:    totalCustomers,
		WeightedPercentComplete: pct,
	}
}
