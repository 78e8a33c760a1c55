package plan_test

import (
	"testing"

	"SmartGrocer/internal/catalog"
	"SmartGrocer/internal/plan"
)

// dairyCatalog is the two-item fixture: Milk is cheapest at StoreA,
// Eggs at StoreB, both carried everywhere.
func dairyCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Item{
		{
			ID: 1, Name: "Milk", Category: "Dairy",
			StorePriceCents: map[string]int64{"StoreA": 350, "StoreB": 400},
		},
		{
			ID: 2, Name: "Eggs", Category: "Dairy",
			StorePriceCents: map[string]int64{"StoreA": 250, "StoreB": 200},
		},
	}, []string{"StoreA", "StoreB"})
}

func TestAggregate_SplitsByBestStore(t *testing.T) {
	p := plan.Aggregate(dairyCatalog(), []int{1, 2})

	if len(p.Groups) != 2 {
		t.Fatalf("got %d groups, want 2: %#v", len(p.Groups), p.Groups)
	}

	a, b := p.Groups[0], p.Groups[1]
	if a.Store != "StoreA" || a.SubtotalCents != 350 || len(a.Items) != 1 || a.Items[0].Name != "Milk" {
		t.Fatalf("group[0] = %#v, want StoreA/[Milk]/350", a)
	}
	if b.Store != "StoreB" || b.SubtotalCents != 200 || len(b.Items) != 1 || b.Items[0].Name != "Eggs" {
		t.Fatalf("group[1] = %#v, want StoreB/[Eggs]/200", b)
	}
	if p.GrandTotalCents != 550 {
		t.Fatalf("grand total = %d, want 550", p.GrandTotalCents)
	}
}

func TestAggregate_SubtotalsSumToGrandTotal(t *testing.T) {
	c := catalog.New([]catalog.Item{
		{ID: 1, Name: "Milk", StorePriceCents: map[string]int64{"A": 350, "B": 400}},
		{ID: 2, Name: "Eggs", StorePriceCents: map[string]int64{"A": 250, "B": 200}},
		{ID: 3, Name: "Bread", StorePriceCents: map[string]int64{"B": 150}},
		{ID: 4, Name: "Butter", BestPriceCents: 500, BestStore: "C"},
	}, []string{"A", "B"})

	selections := [][]int{
		{},
		{1},
		{1, 2},
		{1, 2, 3, 4},
		{4, 3, 2, 1},
	}

	for _, sel := range selections {
		p := plan.Aggregate(c, sel)

		var sum int64
		for _, g := range p.Groups {
			var gsum int64
			for _, line := range g.Items {
				gsum += line.PriceCents
			}
			if gsum != g.SubtotalCents {
				t.Fatalf("sel %v: group %s subtotal %d, lines sum %d", sel, g.Store, g.SubtotalCents, gsum)
			}
			sum += g.SubtotalCents
		}
		if sum != p.GrandTotalCents {
			t.Fatalf("sel %v: subtotals sum %d, grand total %d", sel, sum, p.GrandTotalCents)
		}
	}
}

func TestAggregate_EmptySelectionIsValid(t *testing.T) {
	p := plan.Aggregate(dairyCatalog(), nil)

	if len(p.Groups) != 0 || p.GrandTotalCents != 0 {
		t.Fatalf("empty selection: %#v", p)
	}
}

func TestAggregate_UnknownIDsSkipped(t *testing.T) {
	p := plan.Aggregate(dairyCatalog(), []int{1, 99})

	if p.GrandTotalCents != 350 || len(p.Groups) != 1 {
		t.Fatalf("unknown id not skipped: %#v", p)
	}
}

func TestAggregate_DeterministicGroupOrder(t *testing.T) {
	c := dairyCatalog()

	first := plan.Aggregate(c, []int{2, 1})
	for i := 0; i < 10; i++ {
		p := plan.Aggregate(c, []int{1, 2})
		for gi := range p.Groups {
			if p.Groups[gi].Store != first.Groups[gi].Store {
				t.Fatalf("group order varies: %#v vs %#v", first.Groups, p.Groups)
			}
		}
	}
}

func TestEvaluateStores_Scenario(t *testing.T) {
	opts := plan.EvaluateStores(dairyCatalog(), []int{1, 2})

	if len(opts) != 2 {
		t.Fatalf("got %d options, want 2: %#v", len(opts), opts)
	}

	a := opts[0]
	if a.Store != "StoreA" || a.TotalCents != 600 || a.MissingCount != 0 || a.ExtraCostCents != 50 {
		t.Fatalf("StoreA option = %#v, want total 600 / missing 0 / extra 50", a)
	}

	b := opts[1]
	if b.Store != "StoreB" || b.TotalCents != 600 || b.MissingCount != 0 || b.ExtraCostCents != 50 {
		t.Fatalf("StoreB option = %#v, want total 600 / missing 0 / extra 50", b)
	}
}

func TestEvaluateStores_MissingItemsExcludedFromTotal(t *testing.T) {
	c := catalog.New([]catalog.Item{
		{ID: 1, Name: "Milk", StorePriceCents: map[string]int64{"A": 350, "B": 400}},
		{ID: 2, Name: "Bread", StorePriceCents: map[string]int64{"B": 150}},
	}, []string{"A", "B"})

	opts := plan.EvaluateStores(c, []int{1, 2})

	var a *plan.StoreOption
	for i := range opts {
		if opts[i].Store == "A" {
			a = &opts[i]
		}
	}
	if a == nil {
		t.Fatalf("store A missing from options: %#v", opts)
	}
	if a.TotalCents != 350 || a.MissingCount != 1 {
		t.Fatalf("store A = %#v, want total 350 / missing 1", *a)
	}
}

func TestEvaluateStores_EmptyStoresOmitted(t *testing.T) {
	c := catalog.New([]catalog.Item{
		{ID: 1, Name: "Milk", StorePriceCents: map[string]int64{"A": 350}},
	}, []string{"A", "B"})

	opts := plan.EvaluateStores(c, []int{1})
	for _, o := range opts {
		if o.Store == "B" {
			t.Fatalf("store with zero carried items reported: %#v", opts)
		}
	}
	if len(opts) != 1 {
		t.Fatalf("got %d options, want 1", len(opts))
	}
}

func TestEvaluateStores_ExtraCostNeverNegative(t *testing.T) {
	c := catalog.New([]catalog.Item{
		{ID: 1, StorePriceCents: map[string]int64{"A": 350, "B": 400, "C": 375}},
		{ID: 2, StorePriceCents: map[string]int64{"A": 250, "B": 200}},
		{ID: 3, StorePriceCents: map[string]int64{"B": 150, "C": 120}},
	}, []string{"A", "B", "C"})

	selections := [][]int{{1}, {2}, {3}, {1, 2}, {1, 3}, {2, 3}, {1, 2, 3}}
	for _, sel := range selections {
		for _, o := range plan.EvaluateStores(c, sel) {
			if o.MissingCount == 0 && o.ExtraCostCents < 0 {
				t.Fatalf("sel %v: store %s extra cost %d < 0", sel, o.Store, o.ExtraCostCents)
			}
		}
	}
}

func TestEvaluateStores_EmptySelection(t *testing.T) {
	if opts := plan.EvaluateStores(dairyCatalog(), nil); len(opts) != 0 {
		t.Fatalf("empty selection produced options: %#v", opts)
	}
}
