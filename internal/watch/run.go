package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockwatch/pkg/logx"
)

// ErrDispatchFailed reports that the cycle ran to completion but at least one
// attempted dispatch (restock alert or error digest) was not delivered.
var ErrDispatchFailed = errors.New("watch: one or more dispatches failed")

// Spec is one configured stock watch.
type Spec struct {
	Name        string
	CategoryURL string
	ProductURLs []string
	Keywords    []string
	Sizes       []string
	MaxProducts int
	// NoCategoryPrefilter skips the tile-level keyword filter and matches
	// keywords against full product payloads instead.
	NoCategoryPrefilter bool
}

// Fetcher retrieves a single product page snapshot.
type Fetcher interface {
	FetchProduct(ctx context.Context, productURL string) (*ProductSnapshot, error)
}

// CategoryScraper lists product tiles on a category page. Used only for
// watches without an explicit product URL list.
type CategoryScraper interface {
	ScrapeCategory(ctx context.Context, categoryURL string) ([]CategoryTile, error)
}

// RestockEvent is one notifiable observation.
type RestockEvent struct {
	StockResult
	// Note annotates repeat alerts, e.g. "Alert 2/3". Empty when the policy
	// allows a single alert per episode.
	Note string
}

// WatchReport is the alert payload for one watch: every event of the cycle.
type WatchReport struct {
	Name        string
	SizeLabel   string // set when the watch tracks exactly one size
	Keywords    []string
	CategoryURL string
	Events      []RestockEvent
}

// ErrorDigest is the aggregated failure summary for one cycle.
type ErrorDigest struct {
	Total   int
	Entries []ErrorEntry // truncated to MaxReportedErrors
}

// Notifier delivers outbound messages. A nil error means the message reached
// every configured destination.
type Notifier interface {
	SendRestockAlert(ctx context.Context, report WatchReport) error
	SendErrorDigest(ctx context.Context, digest ErrorDigest) error
}

// Config carries the orchestrator's knobs for one cycle.
type Config struct {
	Watches             []Spec
	Policy              Policy
	NotifyOnErrors      bool
	ErrorRepeatInterval time.Duration
	// DryRun does everything except sending.
	DryRun bool
}

// Runner drives polling cycles. One Runner runs one cycle at a time; the
// persisted state has a single writer.
type Runner struct {
	cfg      Config
	fetcher  Fetcher
	scraper  CategoryScraper
	notifier Notifier
	store    StateStore
	eval     *Evaluator
	log      logx.Logger
	now      func() time.Time
}

// Deps are the runner's collaborators. Fetcher, Notifier, and Store are
// required; Scraper is needed only when a watch has no explicit URL list.
type Deps struct {
	Fetcher   Fetcher
	Scraper   CategoryScraper
	Notifier  Notifier
	Store     StateStore
	Evaluator *Evaluator
	Log       logx.Logger
	Now       func() time.Time
}

func NewRunner(cfg Config, deps Deps) *Runner {
	eval := deps.Evaluator
	if eval == nil {
		eval = NewEvaluator(nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		scraper:  deps.Scraper,
		notifier: deps.Notifier,
		store:    deps.Store,
		eval:     eval,
		log:      log,
		now:      now,
	}
}

// RunCycle executes one polling cycle over every configured watch.
//
// Per-product failures are recorded and never abort the cycle; each watch is
// isolated from the others. The returned error is nil only when every
// dispatch that was attempted succeeded.
func (r *Runner) RunCycle(ctx context.Context) error {
	state, existed := r.store.Load()

	var (
		agg      ErrorAggregator
		byWatch  = make(map[string][]RestockEvent)
		emitted  = make(map[string]struct{})
		observed int
	)

	for i := range r.cfg.Watches {
		w := r.cfg.Watches[i]
		observed += r.runWatch(ctx, w, state, &agg, byWatch, emitted)
	}

	state.UpdatedAt = stamp(r.now())
	ok := true
	if err := r.store.Save(state); err != nil {
		r.log.Error("state save failed", logx.Err(err))
		ok = false
	}

	r.log.Info("cycle observations complete",
		logx.Int("observed", observed),
		logx.Int("errors", agg.Len()),
		logx.Int("watches_with_events", len(byWatch)))

	if !r.dispatchErrorDigest(ctx, state, &agg) {
		ok = false
	}

	if len(byWatch) == 0 {
		r.log.Info("no restock events")
		return finish(ok)
	}
	if r.cfg.DryRun {
		r.log.Info("dry-run: skipping restock alerts", logx.Int("watches", len(byWatch)))
		return finish(ok)
	}
	if !existed && !r.cfg.Policy.NotifyOnFirstRun {
		r.log.Info("first run: baseline established, skipping first-seen alerts")
		return finish(ok)
	}

	changed := false
	for i := range r.cfg.Watches {
		w := r.cfg.Watches[i]
		events := byWatch[w.Name]
		if len(events) == 0 {
			continue
		}

		report := WatchReport{
			Name:     w.Name,
			Keywords: w.Keywords,
			Events:   events,
		}
		if len(w.Sizes) == 1 {
			report.SizeLabel = w.Sizes[0]
		}
		if len(w.ProductURLs) == 0 {
			report.CategoryURL = w.CategoryURL
		}

		r.log.Info("sending restock alerts",
			logx.String("watch", w.Name), logx.Int("events", len(events)))
		if err := r.notifier.SendRestockAlert(ctx, report); err != nil {
			// Counters stay untouched: the same alert is eligible next cycle.
			r.log.Warn("restock alert failed",
				logx.String("watch", w.Name), logx.Err(err))
			ok = false
			continue
		}
		for _, ev := range events {
			if st := state.SizeStateFor(ev.ProductURL, ev.SizeLabel); st != nil {
				st.RecordNotified(r.now())
				changed = true
			}
		}
	}

	if changed {
		if err := r.store.Save(state); err != nil {
			r.log.Error("state save after send failed", logx.Err(err))
			ok = false
		}
	}
	return finish(ok)
}

// runWatch processes one watch and returns how many (product, size) pairs it
// observed. Failures are recorded in agg; notifiable events land in byWatch.
func (r *Runner) runWatch(ctx context.Context, w Spec, state *PersistedState, agg *ErrorAggregator, byWatch map[string][]RestockEvent, emitted map[string]struct{}) int {
	urls, ok := r.resolveProductURLs(ctx, w, agg)
	if !ok {
		return 0
	}
	if w.MaxProducts > 0 && len(urls) > w.MaxProducts {
		urls = urls[:w.MaxProducts]
	}

	r.log.Info("checking products",
		logx.String("watch", w.Name),
		logx.Int("products", len(urls)),
		logx.Any("sizes", w.Sizes),
		logx.Any("keywords", w.Keywords))

	observed := 0
	for _, url := range urls {
		snap, err := r.fetcher.FetchProduct(ctx, url)
		if err != nil {
			agg.Record(errContext(w.Name, url), err.Error())
			r.log.Warn("product fetch failed",
				logx.String("watch", w.Name), logx.String("url", url), logx.Err(err))
			continue
		}
		if !snap.MatchesKeywords(w.Keywords) {
			continue
		}

		for _, sizeLabel := range w.Sizes {
			result := r.eval.Evaluate(snap, sizeLabel)
			previous := state.Apply(result, r.now())
			observed++

			r.logResult(w.Name, result)
			if !result.InStock {
				continue
			}

			st := state.SizeStateFor(result.ProductURL, result.SizeLabel)
			if !r.cfg.Policy.ShouldNotify(previous, result, st, r.now()) {
				continue
			}

			// One event per (product, size) per cycle, no matter how many
			// watches touch the same pair.
			key := result.ProductURL + "\x00" + result.SizeLabel
			if _, dup := emitted[key]; dup {
				continue
			}
			emitted[key] = struct{}{}
			byWatch[w.Name] = append(byWatch[w.Name], RestockEvent{
				StockResult: result,
				Note:        r.cfg.Policy.AlertNote(st),
			})
		}
	}
	return observed
}

// resolveProductURLs returns the candidate URLs for a watch: the explicit
// list, or scraped category tiles (keyword-prefiltered unless disabled).
func (r *Runner) resolveProductURLs(ctx context.Context, w Spec, agg *ErrorAggregator) ([]string, bool) {
	if len(w.ProductURLs) > 0 {
		return w.ProductURLs, true
	}

	if r.scraper == nil {
		agg.Record(errContext(w.Name, w.CategoryURL), "no category scraper configured")
		return nil, false
	}

	r.log.Info("scraping category page",
		logx.String("watch", w.Name), logx.String("url", w.CategoryURL))
	tiles, err := r.scraper.ScrapeCategory(ctx, w.CategoryURL)
	if err != nil {
		agg.Record(errContext(w.Name, w.CategoryURL), fmt.Sprintf("category scrape failed: %v", err))
		r.log.Warn("category scrape failed",
			logx.String("watch", w.Name), logx.Err(err))
		return nil, false
	}
	if len(tiles) == 0 {
		agg.Record(errContext(w.Name, w.CategoryURL),
			"no products found on category page (possible blocking or page structure change)")
	}

	if len(w.Keywords) > 0 && !w.NoCategoryPrefilter {
		filtered := tiles[:0:0]
		for _, t := range tiles {
			if TileMatchesKeywords(t, w.Keywords) {
				filtered = append(filtered, t)
			}
		}
		r.log.Info("category prefilter",
			logx.String("watch", w.Name),
			logx.Int("tiles", len(tiles)), logx.Int("matched", len(filtered)))
		tiles = filtered
	}

	urls := make([]string, 0, len(tiles))
	for _, t := range tiles {
		urls = append(urls, t.ProductURL)
	}
	return urls, true
}

// dispatchErrorDigest sends the aggregated failure summary, subject to the
// digest backoff. Returns false when a send was attempted and failed.
func (r *Runner) dispatchErrorDigest(ctx context.Context, state *PersistedState, agg *ErrorAggregator) bool {
	if agg.Empty() || !r.cfg.NotifyOnErrors || r.cfg.DryRun {
		return true
	}

	sig := agg.Signature()
	if !ShouldSendDigest(state.ErrorNotify, sig, r.cfg.ErrorRepeatInterval, r.now()) {
		r.log.Info("error digest suppressed (same error set within interval)",
			logx.Int("errors", agg.Len()))
		return true
	}

	entries := agg.Entries()
	if len(entries) > MaxReportedErrors {
		entries = entries[:MaxReportedErrors]
	}
	digest := ErrorDigest{Total: agg.Len(), Entries: entries}

	if err := r.notifier.SendErrorDigest(ctx, digest); err != nil {
		r.log.Warn("error digest send failed", logx.Err(err))
		return false
	}

	// Persist backoff metadata right away so it survives even if a restock
	// dispatch later fails the run.
	state.RecordErrorDigestSent(sig, r.now())
	if err := r.store.Save(state); err != nil {
		r.log.Error("state save after error digest failed", logx.Err(err))
	}
	return true
}

func (r *Runner) logResult(watchName string, res StockResult) {
	if !r.log.Enabled(logx.LevelDebug) {
		return
	}
	status := "out of stock"
	if res.InStock {
		status = "in stock"
	}
	r.log.Debug("evaluated",
		logx.String("watch", watchName),
		logx.String("name", res.Name),
		logx.String("size", res.SizeLabel),
		logx.String("status", status),
		logx.Any("colours", res.InStockColours),
		logx.String("url", res.ProductURL))
}

func errContext(watchName, url string) string {
	return "[" + strings.TrimSpace(watchName) + "] " + url
}

func finish(ok bool) error {
	if ok {
		return nil
	}
	return ErrDispatchFailed
}
