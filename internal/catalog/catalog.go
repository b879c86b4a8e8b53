package catalog

import (
	"encoding/json"
	"os"
	"time"

	"stockwatch/internal/storage"
	"stockwatch/internal/watch"
)

// Product is one catalog entry in a baseline snapshot.
type Product struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  string          `json:"price,omitempty"`
	Link   string          `json:"link"`
	SeenAt watch.Timestamp `json:"timestamp,omitempty"`
}

// baselineFile is the on-disk shape of a catalog baseline.
type baselineFile struct {
	Products  []Product       `json:"products"`
	Count     int             `json:"count"`
	Timestamp watch.Timestamp `json:"timestamp"`
}

// LoadBaseline reads a baseline snapshot. Missing or corrupt files degrade
// to "no baseline" (existed=false), which re-establishes it on the next run.
func LoadBaseline(path string) (products []Product, existed bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var f baselineFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, false
	}
	return f.Products, true
}

// SaveBaseline writes a baseline snapshot atomically.
func SaveBaseline(path string, products []Product, now time.Time) error {
	f := baselineFile{
		Products:  products,
		Count:     len(products),
		Timestamp: watch.Timestamp{Time: now.UTC().Truncate(time.Second)},
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, append(b, '\n'), 0o644)
}

// PriceChange records a product whose price moved between baselines.
type PriceChange struct {
	Product  Product
	OldPrice string
	NewPrice string
}

// Diff is the comparison of two catalog snapshots, keyed by product ID.
type Diff struct {
	Added        []Product
	Removed      []Product
	PriceChanges []PriceChange
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.PriceChanges) == 0
}

// Compare diffs two snapshots. Order is deterministic: additions and price
// changes follow the new snapshot's order, removals the old one's.
func Compare(oldProducts, newProducts []Product) Diff {
	oldByID := indexByID(oldProducts)
	newByID := indexByID(newProducts)

	var d Diff
	for _, p := range newProducts {
		if p.ID == "" {
			continue
		}
		old, ok := oldByID[p.ID]
		if !ok {
			d.Added = append(d.Added, p)
			continue
		}
		if old.Price != "" && p.Price != "" && old.Price != p.Price {
			d.PriceChanges = append(d.PriceChanges, PriceChange{
				Product:  p,
				OldPrice: old.Price,
				NewPrice: p.Price,
			})
		}
	}
	for _, p := range oldProducts {
		if p.ID == "" {
			continue
		}
		if _, ok := newByID[p.ID]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	return d
}

// Filter drops change kinds the task doesn't want reported.
func (d Diff) Filter(added, removed, priceChanges bool) Diff {
	out := d
	if !added {
		out.Added = nil
	}
	if !removed {
		out.Removed = nil
	}
	if !priceChanges {
		out.PriceChanges = nil
	}
	return out
}

func indexByID(products []Product) map[string]Product {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		if p.ID != "" {
			m[p.ID] = p
		}
	}
	return m
}
