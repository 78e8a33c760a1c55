// Package plan turns a selection of catalog items into shopping plans:
// the cheapest multi-store split and the one-stop trade-offs.
package plan

import (
	"sort"

	"SmartGrocer/internal/catalog"
	"SmartGrocer/internal/pricing"
)

type Line struct {
	ItemID         int                   `json:"item_id"`
	Name           string                `json:"name"`
	Category       string                `json:"category,omitempty"`
	PriceCents     int64                 `json:"price_cents"`
	PrevPriceCents int64                 `json:"prev_price_cents,omitempty"`
	StockStatus    string                `json:"stock_status,omitempty"`
	Alternatives   []pricing.Alternative `json:"alternatives,omitempty"`
}

type StoreGroup struct {
	Store         string `json:"store"`
	Items         []Line `json:"items"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type Plan struct {
	Groups          []StoreGroup `json:"groups"`
	GrandTotalCents int64        `json:"grand_total_cents"`
}

// Aggregate partitions the selection by each item's best store and sums
// per-store subtotals. Items are visited in ascending ID order and
// groups appear in first-seen best-store order, so output is stable for
// a fixed selection. Unknown IDs are skipped. An empty selection is a
// valid plan with no groups and total 0.
func Aggregate(c *catalog.Catalog, sel []int) Plan {
	ids := append([]int(nil), sel...)
	sort.Ints(ids)

	storeOrder := c.Stores()

	var p Plan
	index := map[string]int{}

	for _, id := range ids {
		it, ok := c.Get(id)
		if !ok {
			continue
		}

		cents, store := pricing.Best(it, storeOrder)
		line := Line{
			ItemID:         it.ID,
			Name:           it.Name,
			Category:       it.Category,
			PriceCents:     cents,
			PrevPriceCents: it.PrevPriceCents,
			StockStatus:    it.StockStatus,
			Alternatives:   pricing.Alternatives(it, store, storeOrder),
		}

		gi, ok := index[store]
		if !ok {
			gi = len(p.Groups)
			index[store] = gi
			p.Groups = append(p.Groups, StoreGroup{Store: store})
		}

		p.Groups[gi].Items = append(p.Groups[gi].Items, line)
		p.Groups[gi].SubtotalCents += cents
		p.GrandTotalCents += cents
	}

	return p
}
