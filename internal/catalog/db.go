package catalog

import (
	"context"
	"database/sql"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// PostgresSource loads the catalog from an items table plus a
// per-store item_prices table. Store ordering is alphabetical, which
// serves as the stable order for this source.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresSource) Load(ctx context.Context) (*Catalog, error) {
	var items []Item
	byID := map[int]int{}

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, name, category, best_price_cents, best_store, prev_price_cents, stock_status
			FROM items
			ORDER BY id ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				it        Item
				category  sql.NullString
				bestStore sql.NullString
				prev      sql.NullInt64
				stock     sql.NullString
			)
			if err := rows.Scan(&it.ID, &it.Name, &category, &it.BestPriceCents, &bestStore, &prev, &stock); err != nil {
				return err
			}
			it.Category = category.String
			it.BestStore = bestStore.String
			it.PrevPriceCents = prev.Int64
			it.StockStatus = stock.String

			byID[it.ID] = len(items)
			items = append(items, it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	stores, err := s.loadPrices(ctx, items, byID)
	if err != nil {
		return nil, err
	}

	return New(items, stores), nil
}

func (s *PostgresSource) loadPrices(ctx context.Context, items []Item, byID map[int]int) ([]string, error) {
	var stores []string
	seen := map[string]struct{}{}

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT item_id, store, price_cents
			FROM item_prices
			ORDER BY store ASC, item_id ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				itemID int
				store  string
				cents  int64
			)
			if err := rows.Scan(&itemID, &store, &cents); err != nil {
				return err
			}

			if _, ok := seen[store]; !ok {
				seen[store] = struct{}{}
				stores = append(stores, store)
			}

			i, ok := byID[itemID]
			if !ok {
				continue
			}
			if items[i].StorePriceCents == nil {
				items[i].StorePriceCents = map[string]int64{}
			}
			items[i].StorePriceCents[store] = cents
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return stores, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
