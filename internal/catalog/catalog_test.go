package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

func TestCompare(t *testing.T) {
	t.Parallel()
	oldProducts := []Product{
		{ID: "beta-jacket", Name: "Beta Jacket", Price: "$450"},
		{ID: "atom-hoody", Name: "Atom Hoody", Price: "$260"},
		{ID: "rush-bib", Name: "Rush Bib", Price: "$500"},
	}
	newProducts := []Product{
		{ID: "beta-jacket", Name: "Beta Jacket", Price: "$337.50"},
		{ID: "atom-hoody", Name: "Atom Hoody", Price: "$260"},
		{ID: "alpha-glove", Name: "Alpha Glove", Price: "$140"},
	}

	d := Compare(oldProducts, newProducts)

	if len(d.Added) != 1 || d.Added[0].ID != "alpha-glove" {
		t.Fatalf("Added = %+v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0].ID != "rush-bib" {
		t.Fatalf("Removed = %+v", d.Removed)
	}
	if len(d.PriceChanges) != 1 {
		t.Fatalf("PriceChanges = %+v", d.PriceChanges)
	}
	if c := d.PriceChanges[0]; c.Product.ID != "beta-jacket" || c.OldPrice != "$450" || c.NewPrice != "$337.50" {
		t.Fatalf("price change = %+v", c)
	}
}

func TestCompareIgnoresMissingPrices(t *testing.T) {
	t.Parallel()
	oldProducts := []Product{{ID: "p", Name: "P", Price: ""}}
	newProducts := []Product{{ID: "p", Name: "P", Price: "$100"}}
	if d := Compare(oldProducts, newProducts); !d.Empty() {
		t.Fatalf("diff = %+v, want empty when one side has no price", d)
	}
}

func TestDiffFilter(t *testing.T) {
	t.Parallel()
	d := Diff{
		Added:        []Product{{ID: "a"}},
		Removed:      []Product{{ID: "r"}},
		PriceChanges: []PriceChange{{Product: Product{ID: "p"}}},
	}
	got := d.Filter(true, false, false)
	if len(got.Added) != 1 || got.Removed != nil || got.PriceChanges != nil {
		t.Fatalf("filtered = %+v", got)
	}
}

func TestBaselineRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "baseline.json")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []Product{{ID: "beta-jacket", Name: "Beta Jacket", Price: "$450", Link: "/shop/beta-jacket"}}

	if err := SaveBaseline(path, in, now); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}
	got, existed := LoadBaseline(path)
	if !existed {
		t.Fatal("baseline not found after save")
	}
	if len(got) != 1 || got[0] != in[0] {
		t.Fatalf("round trip = %+v, want %+v", got, in)
	}
}

func TestLoadBaselineMissingOrCorrupt(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, existed := LoadBaseline(filepath.Join(dir, "missing.json")); existed {
		t.Fatal("missing baseline reported existed=true")
	}
}

type scriptedScraper struct {
	tiles []watch.CategoryTile
	err   error
}

func (s *scriptedScraper) ScrapeCategory(context.Context, string) ([]watch.CategoryTile, error) {
	return s.tiles, s.err
}

type recordingNotifier struct {
	diffs     []Diff
	baselines int
	fail      bool
}

func (n *recordingNotifier) SendCatalogChanges(_ context.Context, _ string, diff Diff) error {
	if n.fail {
		return errors.New("unreachable")
	}
	n.diffs = append(n.diffs, diff)
	return nil
}

func (n *recordingNotifier) SendCatalogBaseline(context.Context, string, string, int) error {
	if n.fail {
		return errors.New("unreachable")
	}
	n.baselines++
	return nil
}

func TestRunTaskFirstAndSecondRun(t *testing.T) {
	t.Parallel()
	scraper := &scriptedScraper{tiles: []watch.CategoryTile{
		{ProductURL: "/shop/beta-jacket", Name: "Beta Jacket", Price: "$450"},
	}}
	notif := &recordingNotifier{}
	runner := NewRunner(scraper, notif, logx.Nop(), false)
	runner.SetClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })

	task := Task{
		Name:             "outlet",
		URL:              "https://example.com/shop/mens",
		BaselineFile:     filepath.Join(t.TempDir(), "baseline.json"),
		NotifyOnFirstRun: true,
		NotifyAdded:      true,
		NotifyRemoved:    true,
	}

	// First run: baseline written and announced, no diff.
	if err := runner.RunTask(context.Background(), task); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if notif.baselines != 1 || len(notif.diffs) != 0 {
		t.Fatalf("baselines=%d diffs=%d after first run", notif.baselines, len(notif.diffs))
	}

	// Second run with a new product: diff reported.
	scraper.tiles = append(scraper.tiles, watch.CategoryTile{
		ProductURL: "/shop/alpha-glove", Name: "Alpha Glove", Price: "$140",
	})
	if err := runner.RunTask(context.Background(), task); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(notif.diffs) != 1 || len(notif.diffs[0].Added) != 1 {
		t.Fatalf("diffs = %+v", notif.diffs)
	}
	if notif.diffs[0].Added[0].ID != "alpha-glove" {
		t.Fatalf("added = %+v", notif.diffs[0].Added)
	}

	// Third run, no changes: nothing new reported.
	if err := runner.RunTask(context.Background(), task); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if len(notif.diffs) != 1 {
		t.Fatalf("diffs = %d after unchanged run", len(notif.diffs))
	}
}

func TestRunTaskAdvancesBaselineOnSendFailure(t *testing.T) {
	t.Parallel()
	scraper := &scriptedScraper{tiles: []watch.CategoryTile{
		{ProductURL: "/shop/beta-jacket", Name: "Beta Jacket", Price: "$450"},
	}}
	notif := &recordingNotifier{}
	runner := NewRunner(scraper, notif, logx.Nop(), false)

	task := Task{
		Name:         "outlet",
		URL:          "https://example.com/shop/mens",
		BaselineFile: filepath.Join(t.TempDir(), "baseline.json"),
		NotifyAdded:  true,
	}
	if err := runner.RunTask(context.Background(), task); err != nil {
		t.Fatalf("first run: %v", err)
	}

	scraper.tiles = append(scraper.tiles, watch.CategoryTile{
		ProductURL: "/shop/alpha-glove", Name: "Alpha Glove",
	})
	notif.fail = true
	if err := runner.RunTask(context.Background(), task); err == nil {
		t.Fatal("expected send error")
	}

	// The baseline advanced anyway, so the change is not re-reported.
	notif.fail = false
	if err := runner.RunTask(context.Background(), task); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if len(notif.diffs) != 0 {
		t.Fatalf("diffs = %+v, want none after the baseline advanced", notif.diffs)
	}
}
