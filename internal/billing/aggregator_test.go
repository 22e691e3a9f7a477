package billing

import (
	"math"
	"testing"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

func TestAggregate_WeightedPercentComplete(t *testing.T) {
	rows := []model.BillingRow{
		{ProjectName: "LIBONA WTP", Location: "Poblacion", QtyM3: 3000, ActiveCustomers: 10, PercentageComplete: 50},
		{ProjectName: "LIBONA WTP", Location: "Kilangit", QtyM3: 4500, ActiveCustomers: 30, PercentageComplete: 90},
	}

	out := Aggregate(rows)
	if len(out) != 1 {
		t.Fatalf("expected 1 project, got %d", len(out))
	}

	p := out[0]
	// (10×50 + 30×90) / 40 = 80
	if math.Abs(p.WeightedPercentComplete-80.0) > 1e-9 {
		t.Fatalf("unexpected weighted percent: %v", p.WeightedPercentComplete)
	}
	if math.Abs(p.TotalQtyM3-7500) > 1e-9 {
		t.Fatalf("unexpected total qty: %v", p.TotalQtyM3)
	}
	if p.TotalActiveCustomers != 40 {
		t.Fatalf("unexpected customer total: %d", p.TotalActiveCustomers)
	}
}

func TestAggregate_ZeroCustomers(t *testing.T) {
	rows := []model.BillingRow{
		{ProjectName: "COTABATO WTP", Location: "Centro", QtyM3: 100, ActiveCustomers: 0, PercentageComplete: 75},
	}

	out := Aggregate(rows)
	if out[0].WeightedPercentComplete != 0 {
		t.Fatalf("zero customers must yield 0 percent, got %v", out[0].WeightedPercentComplete)
	}
}

func TestAggregate_TotalEqualsLocationSum(t *testing.T) {
	rows := []model.BillingRow{
		{ProjectName: "A", Location: "x", QtyM3: 1.1, ActiveCustomers: 1, PercentageComplete: 10},
		{ProjectName: "A", Location: "y", QtyM3: 2.2, ActiveCustomers: 2, PercentageComplete: 20},
		{ProjectName: "A", Location: "z", QtyM3: 3.3, ActiveCustomers: 3, PercentageComplete: 30},
	}

	p := Aggregate(rows)[0]
	sum := 0.0
	for _, l := range p.Locations {
		sum += l.QtyM3
	}
	if math.Abs(p.TotalQtyM3-sum) > 1e-9 {
		t.Fatalf("total %v != location sum %v", p.TotalQtyM3, sum)
	}
}

func TestAggregate_PreservesFirstSeenOrder(t *testing.T) {
	rows := []model.BillingRow{
		{ProjectName: "B", Location: "b1"},
		{ProjectName: "A", Location: "a1"},
		{ProjectName: "B", Location: "b2"},
		{ProjectName: "A", Location: "a2"},
	}

	out := Aggregate(rows)
	if len(out) != 2 || out[0].Project != "B" || out[1].Project != "A" {
		t.Fatalf("project order not preserved: %+v", out)
	}
	if out[0].Locations[0].Location != "b1" || out[0].Locations[1].Location != "b2" {
		t.Fatalf("location order not preserved: %+v", out[0].Locations)
	}
}

func TestAggregate_Empty(t *testing.T) {
	if out := Aggregate(nil); out != nil {
		t.Fatalf("expected nil, got %+v", out)
	}
}

func TestAggregate_CaseSensitiveProjectGrouping(t *testing.T) {
	// 项目名大小写敏感，沿用计费源标签，不做折叠
	rows := []model.BillingRow{
		{ProjectName: "Libona WTP", Location: "x", QtyM3: 1},
		{ProjectName: "LIBONA WTP", Location: "y", QtyM3: 2},
	}
	if out := Aggregate(rows); len(out) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(out))
	}
}
