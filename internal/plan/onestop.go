package plan

import (
	"sort"

	"SmartGrocer/internal/catalog"
)

// StoreOption is the cost of buying the whole selection at one store:
// what the carried items total there, how many selected items the store
// does not carry, and the premium over the optimal multi-store total.
type StoreOption struct {
	Store          string `json:"store"`
	TotalCents     int64  `json:"total_cents"`
	MissingCount   int    `json:"missing_count"`
	ExtraCostCents int64  `json:"extra_cost_cents"`
}

// EvaluateStores computes a StoreOption for every known store carrying
// at least one selected item, in the catalog's stable store order.
// Items a store does not carry are excluded from its total, not priced
// at zero. Stores carrying nothing from the selection are omitted
// entirely.
func EvaluateStores(c *catalog.Catalog, sel []int) []StoreOption {
	ids := append([]int(nil), sel...)
	sort.Ints(ids)

	bestTotal := Aggregate(c, ids).GrandTotalCents

	var out []StoreOption
	for _, store := range c.Stores() {
		opt := StoreOption{Store: store}
		carried := 0

		for _, id := range ids {
			it, ok := c.Get(id)
			if !ok {
				continue
			}
			cents, ok := priceAt(it, store)
			if !ok {
				opt.MissingCount++
				continue
			}
			carried++
			opt.TotalCents += cents
		}

		if carried == 0 {
			continue
		}

		opt.ExtraCostCents = opt.TotalCents - bestTotal
		out = append(out, opt)
	}

	return out
}

// priceAt reports the store's price for an item. An item without a
// per-store map is only known to be available at its best store.
func priceAt(it catalog.Item, store string) (int64, bool) {
	if len(it.StorePriceCents) == 0 {
		if it.BestStore == store {
			return it.BestPriceCents, true
		}
		return 0, false
	}

	cents, ok := it.StorePriceCents[store]
	return cents, ok
}
