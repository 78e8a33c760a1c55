// Package pricing decides, per item, which store wins and by how much.
package pricing

import (
	"sort"

	"SmartGrocer/internal/catalog"
)

type Alternative struct {
	Store      string `json:"store"`
	PriceCents int64  `json:"price_cents"`
	DeltaCents int64  `json:"delta_cents"`
}

// Best returns the minimum present per-store price and its store. Ties
// go to the first store in storeOrder, so the winner is deterministic
// for a given catalog. An item without a per-store map keeps its
// authoritative best fields as given.
func Best(it catalog.Item, storeOrder []string) (int64, string) {
	if len(it.StorePriceCents) == 0 {
		return it.BestPriceCents, it.BestStore
	}

	var (
		bestCents int64
		bestStore string
		found     bool
	)
	for _, store := range carriedStores(it, storeOrder) {
		cents := it.StorePriceCents[store]
		if !found || cents < bestCents {
			found = true
			bestCents = cents
			bestStore = store
		}
	}
	return bestCents, bestStore
}

// Alternatives lists every other store carrying the item with its price
// delta against the best price. Deltas are never negative; a store tied
// at the best price shows delta 0. Stores without a price are omitted.
func Alternatives(it catalog.Item, chosen string, storeOrder []string) []Alternative {
	if len(it.StorePriceCents) == 0 {
		return nil
	}

	best, _ := Best(it, storeOrder)

	var out []Alternative
	for _, store := range carriedStores(it, storeOrder) {
		if store == chosen {
			continue
		}
		cents := it.StorePriceCents[store]
		out = append(out, Alternative{
			Store:      store,
			PriceCents: cents,
			DeltaCents: cents - best,
		})
	}
	return out
}

// carriedStores returns the stores that price this item, in storeOrder.
// Stores missing from storeOrder (possible when sources disagree) go
// last, sorted by name.
func carriedStores(it catalog.Item, storeOrder []string) []string {
	out := make([]string, 0, len(it.StorePriceCents))
	listed := make(map[string]struct{}, len(storeOrder))

	for _, store := range storeOrder {
		listed[store] = struct{}{}
		if _, ok := it.StorePriceCents[store]; ok {
			out = append(out, store)
		}
	}

	var extra []string
	for store := range it.StorePriceCents {
		if _, ok := listed[store]; !ok {
			extra = append(extra, store)
		}
	}
	sort.Strings(extra)

	return append(out, extra...)
}
