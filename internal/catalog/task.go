package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

// Task is one configured catalog-change monitor.
type Task struct {
	Name             string
	URL              string
	BaselineFile     string
	NotifyOnFirstRun bool
	MaxProducts      int

	// Per-kind report filters.
	NotifyAdded        bool
	NotifyRemoved      bool
	NotifyPriceChanges bool
}

// Notifier delivers catalog-change messages.
type Notifier interface {
	SendCatalogChanges(ctx context.Context, taskName string, diff Diff) error
	SendCatalogBaseline(ctx context.Context, taskName, url string, productCount int) error
}

// Runner executes catalog tasks: scrape, diff against the baseline, report,
// advance the baseline.
type Runner struct {
	scraper  watch.CategoryScraper
	notifier Notifier
	log      logx.Logger
	now      func() time.Time
	dryRun   bool
}

func NewRunner(scraper watch.CategoryScraper, notifier Notifier, log logx.Logger, dryRun bool) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		scraper:  scraper,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		dryRun:   dryRun,
	}
}

// SetClock overrides the runner's clock. Used by tests.
func (r *Runner) SetClock(now func() time.Time) { r.now = now }

// RunTask processes one task. The first run writes the baseline and stops;
// later runs report the diff and advance the baseline regardless of delivery,
// so a dropped message is not re-reported against a stale snapshot.
func (r *Runner) RunTask(ctx context.Context, t Task) error {
	if strings.TrimSpace(t.URL) == "" {
		return fmt.Errorf("catalog task %q: url is required", t.Name)
	}

	oldProducts, existed := LoadBaseline(t.BaselineFile)

	r.log.Info("fetching catalog products",
		logx.String("task", t.Name), logx.String("url", t.URL))
	tiles, err := r.scraper.ScrapeCategory(ctx, t.URL)
	if err != nil {
		return fmt.Errorf("catalog task %q: scrape: %w", t.Name, err)
	}
	if t.MaxProducts > 0 && len(tiles) > t.MaxProducts {
		tiles = tiles[:t.MaxProducts]
	}
	newProducts := productsFromTiles(tiles, r.now())

	r.log.Info("catalog snapshot",
		logx.String("task", t.Name),
		logx.Int("products", len(newProducts)),
		logx.Bool("baseline_existed", existed))

	if !existed {
		if err := SaveBaseline(t.BaselineFile, newProducts, r.now()); err != nil {
			return fmt.Errorf("catalog task %q: save baseline: %w", t.Name, err)
		}
		r.log.Info("first run: baseline written",
			logx.String("task", t.Name), logx.String("path", t.BaselineFile))
		if t.NotifyOnFirstRun && !r.dryRun {
			if err := r.notifier.SendCatalogBaseline(ctx, t.Name, t.URL, len(newProducts)); err != nil {
				return fmt.Errorf("catalog task %q: baseline notice: %w", t.Name, err)
			}
		}
		return nil
	}

	diff := Compare(oldProducts, newProducts).
		Filter(t.NotifyAdded, t.NotifyRemoved, t.NotifyPriceChanges)

	var sendErr error
	if diff.Empty() {
		r.log.Info("no catalog changes", logx.String("task", t.Name))
	} else {
		r.log.Info("catalog changes detected",
			logx.String("task", t.Name),
			logx.Int("added", len(diff.Added)),
			logx.Int("removed", len(diff.Removed)),
			logx.Int("price_changes", len(diff.PriceChanges)))
		if !r.dryRun {
			sendErr = r.notifier.SendCatalogChanges(ctx, t.Name, diff)
		}
	}

	if err := SaveBaseline(t.BaselineFile, newProducts, r.now()); err != nil {
		return fmt.Errorf("catalog task %q: save baseline: %w", t.Name, err)
	}
	if sendErr != nil {
		return fmt.Errorf("catalog task %q: send: %w", t.Name, sendErr)
	}
	return nil
}

func productsFromTiles(tiles []watch.CategoryTile, now time.Time) []Product {
	products := make([]Product, 0, len(tiles))
	seenAt := watch.Timestamp{Time: now.UTC().Truncate(time.Second)}
	for _, tile := range tiles {
		id := lastPathSegment(tile.ProductURL)
		if id == "" {
			id = tile.ProductURL
		}
		name := tile.Name
		if name == "" {
			name = id
		}
		products = append(products, Product{
			ID:     id,
			Name:   name,
			Price:  tile.Price,
			Link:   tile.ProductURL,
			SeenAt: seenAt,
		})
	}
	return products
}

func lastPathSegment(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}
