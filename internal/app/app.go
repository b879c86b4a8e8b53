package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
	"stockwatch/internal/fetch"
	"stockwatch/internal/notifier"
	"stockwatch/internal/storage"
	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

// Options are the command-line knobs.
type Options struct {
	ConfigPath string
	// DryRun runs full cycles but sends nothing and advances no counters.
	DryRun bool
}

// App owns the long-lived pieces: config manager, logger, state store, HTTP
// client, and notifier. Cycles are built fresh from the current config so a
// hot reload takes effect on the next cycle.
type App struct {
	opts Options
	cfgm *config.Manager
	log  logx.Logger

	store  watch.StateStore
	client *fetch.Client
	notif  notifier.Notifier

	// cycleMu serializes cycles; a scheduled cycle that would overlap a
	// still-running one is skipped.
	cycleMu sync.Mutex
}

// New loads and validates configuration, then wires every component.
// Configuration errors are fatal; nothing else is.
func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfgm.SetValidator(func(c *config.Config) error {
		_, err := ParseSchedule(c.Schedule)
		return err
	})
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("component", "config")))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Close()
		return nil, fmt.Errorf("app: create data dir %s: %w", cfg.DataDir, err)
	}

	busyTimeout, _ := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("component", "storage")))
	if err != nil {
		log.Close()
		return nil, err
	}

	fetchTimeout, _ := config.ParseDurationOrDefault("fetch.timeout", cfg.Fetch.Timeout, 0)
	client := fetch.NewClient(fetch.Config{
		Timeout:    fetchTimeout,
		RetryMax:   cfg.Fetch.RetryMax,
		RatePerSec: cfg.Fetch.RatePerSec,
		UserAgent:  cfg.Fetch.UserAgent,
	}, log.With(logx.String("component", "fetch")))

	notif, err := buildNotifier(cfg, log)
	if err != nil {
		store.Close()
		client.Close()
		log.Close()
		return nil, err
	}

	return &App{
		opts:   opts,
		cfgm:   cfgm,
		log:    log,
		store:  store,
		client: client,
		notif:  notif,
	}, nil
}

func buildNotifier(cfg *config.Config, log logx.Logger) (notifier.Notifier, error) {
	if cfg.Telegram.Token == "" || len(cfg.Telegram.ChatIDs) == 0 {
		log.Warn("telegram not configured, alerts go to the log only")
		return notifier.Nop{Log: log.With(logx.String("component", "notifier"))}, nil
	}
	timeout, _ := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 0)
	return notifier.NewTelegram(notifier.TelegramConfig{
		Token:          cfg.Telegram.Token,
		ChatIDs:        cfg.Telegram.ChatIDs,
		Timeout:        timeout,
		DisablePreview: config.BoolOr(cfg.Telegram.DisablePreview, true),
		LogFile:        cfg.Logging.File.Path,
	}, log.With(logx.String("component", "notifier")))
}

// Log exposes the root logger for the entrypoint.
func (a *App) Log() logx.Logger { return a.log }

// Close releases the store, the HTTP client, and the log file.
func (a *App) Close() {
	a.store.Close()
	a.client.Close()
	a.log.Close()
}

// RunOnce executes a single cycle and returns its outcome. The returned error
// is watch.ErrDispatchFailed when the cycle completed but at least one
// dispatch was not delivered.
func (a *App) RunOnce(ctx context.Context) error {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()
	return a.runCycle(ctx)
}

// tryRunCycle runs a cycle unless one is already in flight.
func (a *App) tryRunCycle(ctx context.Context) {
	if !a.cycleMu.TryLock() {
		a.log.Warn("previous cycle still running, skipping this trigger")
		return
	}
	defer a.cycleMu.Unlock()

	start := time.Now()
	err := a.runCycle(ctx)
	switch {
	case err == nil:
		a.log.Info("cycle finished", logx.Duration("elapsed", time.Since(start)))
	case errors.Is(err, context.Canceled):
	default:
		a.log.Error("cycle finished with failures",
			logx.Duration("elapsed", time.Since(start)), logx.Err(err))
	}
}

func (a *App) runCycle(ctx context.Context) error {
	cfg := a.cfgm.Get()

	var errs []error
	if len(cfg.Watches) > 0 {
		runner := watch.NewRunner(watchRunConfig(cfg, a.opts.DryRun), watch.Deps{
			Fetcher:  a.client,
			Scraper:  a.client,
			Notifier: a.notif,
			Store:    a.store,
			Log:      a.log.With(logx.String("component", "watch")),
		})
		if err := runner.RunCycle(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(cfg.CatalogTasks) > 0 {
		cr := catalog.NewRunner(a.client, a.notif,
			a.log.With(logx.String("component", "catalog")), a.opts.DryRun)
		for _, tc := range cfg.CatalogTasks {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			if err := cr.RunTask(ctx, catalogTask(tc)); err != nil {
				errs = append(errs, fmt.Errorf("catalog %s: %w", tc.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

func watchRunConfig(cfg *config.Config, dryRun bool) watch.Config {
	repeat, _ := config.ParseDurationOrDefault("notify.repeat_interval", cfg.Notify.RepeatInterval, 0)
	errRepeat, _ := config.ParseDurationOrDefault("notify.error_repeat_interval", cfg.Notify.ErrorRepeatInterval, time.Hour)

	specs := make([]watch.Spec, 0, len(cfg.Watches))
	for _, w := range cfg.Watches {
		specs = append(specs, watch.Spec{
			Name:                w.Name,
			CategoryURL:         w.CategoryURL,
			ProductURLs:         w.ProductURLs,
			Keywords:            w.Keywords,
			Sizes:               w.Sizes,
			MaxProducts:         w.MaxProducts,
			NoCategoryPrefilter: w.NoCategoryPrefilter,
		})
	}

	return watch.Config{
		Watches: specs,
		Policy: watch.Policy{
			NotifyOnFirstRun: config.BoolOr(cfg.Notify.OnFirstRun, true),
			MaxPerItem:       cfg.Notify.MaxPerItem,
			RepeatInterval:   repeat,
		},
		NotifyOnErrors:      config.BoolOr(cfg.Notify.OnErrors, true),
		ErrorRepeatInterval: errRepeat,
		DryRun:              dryRun,
	}
}

func catalogTask(tc config.CatalogTaskConfig) catalog.Task {
	return catalog.Task{
		Name:               tc.Name,
		URL:                tc.URL,
		BaselineFile:       tc.BaselineFile,
		NotifyOnFirstRun:   tc.NotifyOnFirstRun,
		MaxProducts:        tc.MaxProducts,
		NotifyAdded:        config.BoolOr(tc.Notify.Added, true),
		NotifyRemoved:      config.BoolOr(tc.Notify.Removed, true),
		NotifyPriceChanges: config.BoolOr(tc.Notify.PriceChanges, true),
	}
}
