package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	colItem      = "Item"
	colCategory  = "Category"
	colBestPrice = "Best Price"
	colBestStore = "Best Store"
	colPrevPrice = "Previous Price"
	colStock     = "Stock Status"
)

// SchemaError means the source cannot produce any price at all; the
// process refuses to start rather than compute against absent data.
type SchemaError struct {
	Found    []string
	Expected []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("catalog schema: no usable price column (found %v, expected %q or per-store columns)",
		e.Found, e.Expected)
}

// CSVSource reads a catalog from a tabular file. Required column: Item
// (rows with an empty value are dropped). Recognized optional columns:
// Category, Best Price, Best Store, Previous Price, Stock Status. Every
// other column is treated as a per-store price column named after the
// store.
type CSVSource struct {
	Path string
	Log  *zap.Logger
}

func (s *CSVSource) Ping(ctx context.Context) error {
	_, err := os.Stat(s.Path)
	return err
}

func (s *CSVSource) Load(ctx context.Context) (*Catalog, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return s.parse(f)
}

func (s *CSVSource) parse(rd io.Reader) (*Catalog, error) {
	r := csv.NewReader(rd)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, stores, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var items []Item
	row := -1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			// Bad row, not a bad file. Drop it and keep loading.
			if errors.Is(err, csv.ErrFieldCount) {
				s.warn("row dropped: field count", row)
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		it, ok, reason := buildItem(row, rec, cols, stores)
		if !ok {
			s.warn("row dropped: "+reason, row)
			continue
		}
		items = append(items, it)
	}

	return New(items, storeNames(stores)), nil
}

type columns struct {
	item      int
	category  int
	bestPrice int
	bestStore int
	prevPrice int
	stock     int
}

type storeColumn struct {
	name string
	idx  int
}

// mapColumns resolves header names to indexes. Header whitespace is
// trimmed; unrecognized non-empty columns become store price columns in
// header order, which fixes the catalog's stable store ordering.
func mapColumns(header []string) (columns, []storeColumn, error) {
	cols := columns{item: -1, category: -1, bestPrice: -1, bestStore: -1, prevPrice: -1, stock: -1}
	var stores []storeColumn
	var found []string

	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name != "" {
			found = append(found, name)
		}
		switch name {
		case colItem:
			cols.item = i
		case colCategory:
			cols.category = i
		case colBestPrice:
			cols.bestPrice = i
		case colBestStore:
			cols.bestStore = i
		case colPrevPrice:
			cols.prevPrice = i
		case colStock:
			cols.stock = i
		case "":
		default:
			stores = append(stores, storeColumn{name: name, idx: i})
		}
	}

	if cols.item == -1 {
		return columns{}, nil, &SchemaError{Found: found, Expected: []string{colItem}}
	}
	if cols.bestPrice == -1 && len(stores) == 0 {
		return columns{}, nil, &SchemaError{Found: found, Expected: []string{colBestPrice}}
	}

	return cols, stores, nil
}

func buildItem(row int, rec []string, cols columns, stores []storeColumn) (Item, bool, string) {
	it := Item{ID: row}

	it.Name = strings.TrimSpace(field(rec, cols.item))
	if it.Name == "" {
		return Item{}, false, "empty item name"
	}

	it.Category = strings.TrimSpace(field(rec, cols.category))
	it.BestStore = strings.TrimSpace(field(rec, cols.bestStore))
	it.StockStatus = strings.TrimSpace(field(rec, cols.stock))

	if cents, ok := parseCents(field(rec, cols.prevPrice)); ok {
		it.PrevPriceCents = cents
	}

	bestOK := false
	if cents, ok := parseCents(field(rec, cols.bestPrice)); ok {
		it.BestPriceCents = cents
		bestOK = true
	}

	for _, sc := range stores {
		if cents, ok := parseCents(field(rec, sc.idx)); ok {
			if it.StorePriceCents == nil {
				it.StorePriceCents = make(map[string]int64, len(stores))
			}
			it.StorePriceCents[sc.name] = cents
		}
	}

	if !bestOK && len(it.StorePriceCents) == 0 {
		return Item{}, false, "no parseable price"
	}

	return it, true, ""
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

// parseCents turns price text like "$1,299.50" into cents. Currency
// symbols, thousands separators and surrounding noise are stripped
// before parsing; anything still unparseable, or negative, counts as
// missing.
func parseCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return d.Shift(2).Round(0).IntPart(), true
}

func storeNames(stores []storeColumn) []string {
	out := make([]string, 0, len(stores))
	for _, sc := range stores {
		out = append(out, sc.name)
	}
	return out
}

func (s *CSVSource) warn(msg string, row int) {
	if s.Log != nil {
		s.Log.Warn(msg, zap.Int("row", row), zap.String("path", s.Path))
	}
}
