package config

import (
	"fmt"
	"strings"
)

// Config is the full on-disk configuration (YAML or JSON).
//
// All durations are Go duration strings (e.g. "30s", "1h", "2h30m").
type Config struct {
	// Schedule triggers polling cycles in daemon mode. Accepts a cron
	// expression ("*/15 * * * *", "@hourly"), a Go duration ("20m"),
	// or HH:MM ("01:30"). Ignored with -once.
	Schedule string `json:"schedule,omitempty"`

	DataDir string `json:"data_dir,omitempty"`

	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage,omitempty"`
	Fetch    FetchConfig    `json:"fetch,omitempty"`
	Notify   NotifyConfig   `json:"notify,omitempty"`
	Systemd  SystemdConfig  `json:"systemd,omitempty"`

	Watches      []WatchConfig       `json:"watches,omitempty"`
	CatalogTasks []CatalogTaskConfig `json:"catalog_tasks,omitempty"`
}

type TelegramConfig struct {
	Token   string  `json:"token"`
	ChatIDs []int64 `json:"chat_ids"`
	// Timeout is a Go duration string for one send call. Default "10s".
	Timeout string `json:"timeout,omitempty"`
	// DisablePreview suppresses link previews in alert messages.
	DisablePreview *bool `json:"disable_preview,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig selects the state backend.
//
// Driver values:
//   - "" or "file": JSON state file, atomic replace (default)
//   - "sqlite": SQLite database file (requires the sqlite build tag)
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type FetchConfig struct {
	Timeout    string `json:"timeout,omitempty"`      // default "30s"
	RetryMax   int    `json:"retry_max,omitempty"`    // default 2
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default 1
	UserAgent  string `json:"user_agent,omitempty"`
}

// NotifyConfig carries the global notification-policy knobs.
type NotifyConfig struct {
	// OnFirstRun sends an alert when a product+size is first seen already in
	// stock. Defaults to true when omitted.
	OnFirstRun *bool `json:"on_first_run,omitempty"`
	// MaxPerItem caps alerts per product+size per restock episode.
	// Values <= 0 are treated as 1.
	MaxPerItem int `json:"max_per_item,omitempty"`
	// RepeatInterval is the minimum spacing between repeat alerts for the
	// same episode. "0s" means no spacing requirement.
	RepeatInterval string `json:"repeat_interval,omitempty"`
	// OnErrors enables the aggregated error digest. Defaults to true.
	OnErrors *bool `json:"on_errors,omitempty"`
	// ErrorRepeatInterval throttles digests for an identical error set.
	ErrorRepeatInterval string `json:"error_repeat_interval,omitempty"` // default "1h"
}

type SystemdConfig struct {
	// Notify sends sd_notify READY/STOPPING in daemon mode.
	Notify bool `json:"notify"`
	// Watchdog pets the systemd watchdog when WatchdogSec is configured.
	Watchdog bool `json:"watchdog"`
}

// WatchConfig describes one stock watch: which products, which sizes.
type WatchConfig struct {
	Name        string   `json:"name,omitempty"`
	CategoryURL string   `json:"category_url,omitempty"`
	ProductURLs []string `json:"product_urls,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Sizes       []string `json:"sizes,omitempty"`
	MaxProducts int      `json:"max_products,omitempty"`
	// NoCategoryPrefilter fetches every product page and keyword-matches the
	// full product payload, instead of prefiltering category tiles.
	NoCategoryPrefilter bool `json:"no_category_prefilter,omitempty"`
}

// CatalogTaskConfig describes one catalog-change monitor.
type CatalogTaskConfig struct {
	Name             string              `json:"name,omitempty"`
	URL              string              `json:"url"`
	BaselineFile     string              `json:"baseline_file,omitempty"`
	NotifyOnFirstRun bool                `json:"notify_on_first_run,omitempty"`
	Notify           CatalogNotifyConfig `json:"notify,omitempty"`
	MaxProducts      int                 `json:"max_products,omitempty"`
}

// CatalogNotifyConfig filters which change kinds are reported.
// Nil pointers default to true.
type CatalogNotifyConfig struct {
	Added        *bool `json:"added,omitempty"`
	Removed      *bool `json:"removed,omitempty"`
	PriceChanges *bool `json:"price_changes,omitempty"`
}

const (
	defaultDataDir  = "./data"
	defaultSize     = "8"
	defaultSchedule = "*/15 * * * *"
)

// Normalize fills defaults in place. Call after decode, before Validate.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Schedule) == "" {
		c.Schedule = defaultSchedule
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "file"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = c.DataDir + "/stock_watch_state.json"
	}
	for i := range c.Watches {
		w := &c.Watches[i]
		if strings.TrimSpace(w.Name) == "" {
			w.Name = fmt.Sprintf("watch-%d", i+1)
		}
		w.ProductURLs = dedupeStrings(stripQueryAll(w.ProductURLs))
		w.Keywords = dedupeStrings(w.Keywords)
		w.Sizes = dedupeStrings(w.Sizes)
		if len(w.Sizes) == 0 {
			w.Sizes = []string{defaultSize}
		}
	}
	for i := range c.CatalogTasks {
		t := &c.CatalogTasks[i]
		if strings.TrimSpace(t.Name) == "" {
			t.Name = fmt.Sprintf("catalog-%d", i+1)
		}
		if strings.TrimSpace(t.BaselineFile) == "" {
			t.BaselineFile = fmt.Sprintf("%s/catalog_baseline_%s.json", c.DataDir, t.Name)
		}
	}
}

// Validate rejects configurations the orchestrator cannot run. These are
// the only fatal errors in the system; everything past config load degrades
// to per-watch error reporting.
func (c *Config) Validate() error {
	if len(c.Watches) == 0 && len(c.CatalogTasks) == 0 {
		return fmt.Errorf("config: at least one watch or catalog task is required")
	}
	for i, w := range c.Watches {
		if strings.TrimSpace(w.CategoryURL) == "" && len(w.ProductURLs) == 0 {
			return fmt.Errorf("watches[%d] (%s): category_url or product_urls is required", i, w.Name)
		}
	}
	for i, t := range c.CatalogTasks {
		if strings.TrimSpace(t.URL) == "" {
			return fmt.Errorf("catalog_tasks[%d] (%s): url is required", i, t.Name)
		}
	}
	if _, err := ParseDurationField("telegram.timeout", c.Telegram.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("fetch.timeout", c.Fetch.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("notify.repeat_interval", c.Notify.RepeatInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("notify.error_repeat_interval", c.Notify.ErrorRepeatInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

// BoolOr resolves an optional bool with a default.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func stripQueryAll(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if i := strings.IndexByte(u, '?'); i >= 0 {
			u = u[:i]
		}
		out = append(out, u)
	}
	return out
}
