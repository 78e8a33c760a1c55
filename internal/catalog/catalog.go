package catalog

import (
	"context"
	"sync"
)

// Item is one purchasable catalog entry. Prices are integer cents.
// BestPriceCents/BestStore come from the source; when StorePriceCents is
// populated they are derived and the pricing package recomputes them,
// otherwise they are authoritative as given.
type Item struct {
	ID              int              `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category,omitempty"`
	BestPriceCents  int64            `json:"best_price_cents"`
	BestStore       string           `json:"best_store,omitempty"`
	StorePriceCents map[string]int64 `json:"store_price_cents,omitempty"`
	PrevPriceCents  int64            `json:"prev_price_cents,omitempty"`
	StockStatus     string           `json:"stock_status,omitempty"`
}

// Catalog is an immutable, ordered collection of items. Identifiers are
// unique and stable for the process lifetime; share links and saved
// lists reference items by ID.
type Catalog struct {
	items  []Item
	byID   map[int]int
	stores []string
}

func New(items []Item, stores []string) *Catalog {
	c := &Catalog{
		items:  items,
		byID:   make(map[int]int, len(items)),
		stores: stores,
	}
	for i, it := range items {
		c.byID[it.ID] = i
	}
	return c
}

func (c *Catalog) Items() []Item { return c.items }

func (c *Catalog) Len() int { return len(c.items) }

func (c *Catalog) Get(id int) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// Stores returns the known store set in the source's stable order.
// Tie-breaking and report ordering both depend on this order staying
// fixed for a given catalog.
func (c *Catalog) Stores() []string { return c.stores }

// Categories returns distinct categories in first-seen item order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range c.items {
		if it.Category == "" {
			continue
		}
		if _, ok := seen[it.Category]; ok {
			continue
		}
		seen[it.Category] = struct{}{}
		out = append(out, it.Category)
	}
	return out
}

// Source loads a catalog from some backing storage.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
	Ping(ctx context.Context) error
}

// Provider memoizes the first successful load; the catalog is invariant
// for the process lifetime so there is no reason to re-read it.
type Provider struct {
	src Source

	mu  sync.Mutex
	cat *Catalog
}

func NewProvider(src Source) *Provider {
	return &Provider{src: src}
}

func (p *Provider) Get(ctx context.Context) (*Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cat != nil {
		return p.cat, nil
	}

	cat, err := p.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	p.cat = cat
	return cat, nil
}

func (p *Provider) Ping(ctx context.Context) error {
	return p.src.Ping(ctx)
}
