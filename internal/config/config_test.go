package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
schedule: "*/15 * * * *"
data_dir: ./data
telegram:
  token: "123:abc"
  chat_ids: [111, 222]
logging:
  level: debug
  console: true
notify:
  max_per_item: 3
  repeat_interval: 1h
watches:
  - name: beta
    category_url: https://example.com/shop/mens
    keywords: [beta, jacket]
    sizes: ["8", "8.5"]
catalog_tasks:
  - url: https://example.com/shop/mens
`

func TestManagerParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" || len(cfg.Telegram.ChatIDs) != 2 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Notify.MaxPerItem != 3 {
		t.Fatalf("MaxPerItem = %d", cfg.Notify.MaxPerItem)
	}
	if len(cfg.Watches) != 1 || cfg.Watches[0].Name != "beta" {
		t.Fatalf("watches = %+v", cfg.Watches)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestManagerParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"telegram":{"token":"t","chat_ids":[1]},"logging":{"console":true},"watches":[{"product_urls":["https://example.com/shop/p?colour=black"]}]}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Query strings are stripped from product URLs.
	if got := cfg.Watches[0].ProductURLs[0]; got != "https://example.com/shop/p" {
		t.Fatalf("product url = %q", got)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nnot_a_real_key: true\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestManagerRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"watches":[{"category_url":"u"}],"telegram":{"token":"","chat_ids":[]},"logging":{"console":true}} {"extra":1}`))
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("err = %v, want trailing-data rejection", err)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Watches: []WatchConfig{
			{CategoryURL: "u", Sizes: []string{" 8 ", "8", ""}},
			{CategoryURL: "u2"},
		},
		CatalogTasks: []CatalogTaskConfig{{URL: "c"}},
	}
	cfg.Normalize()

	if cfg.Schedule == "" || cfg.DataDir == "" {
		t.Fatalf("defaults not filled: %+v", cfg)
	}
	if cfg.Storage.Driver != "file" || cfg.Storage.Path == "" {
		t.Fatalf("storage defaults not filled: %+v", cfg.Storage)
	}
	if cfg.Watches[0].Name != "watch-1" || cfg.Watches[1].Name != "watch-2" {
		t.Fatalf("watch names = %q, %q", cfg.Watches[0].Name, cfg.Watches[1].Name)
	}
	if got := cfg.Watches[0].Sizes; len(got) != 1 || got[0] != "8" {
		t.Fatalf("sizes = %v, want deduped to [8]", got)
	}
	if got := cfg.Watches[1].Sizes; len(got) != 1 || got[0] != "8" {
		t.Fatalf("default sizes = %v", got)
	}
	if cfg.CatalogTasks[0].Name != "catalog-1" || cfg.CatalogTasks[0].BaselineFile == "" {
		t.Fatalf("catalog defaults = %+v", cfg.CatalogTasks[0])
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(cfg *Config) {}},
		{name: "no work", mutate: func(cfg *Config) { cfg.Watches = nil; cfg.CatalogTasks = nil }, wantErr: true},
		{name: "watch without urls", mutate: func(cfg *Config) { cfg.Watches[0].CategoryURL = "" }, wantErr: true},
		{name: "task without url", mutate: func(cfg *Config) { cfg.CatalogTasks[0].URL = "" }, wantErr: true},
		{name: "bad duration", mutate: func(cfg *Config) { cfg.Notify.RepeatInterval = "soon" }, wantErr: true},
		{name: "negative duration", mutate: func(cfg *Config) { cfg.Fetch.Timeout = "-5s" }, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Watches:      []WatchConfig{{CategoryURL: "u"}},
				CatalogTasks: []CatalogTaskConfig{{URL: "c"}},
			}
			cfg.Normalize()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("x", "", time.Hour); err != nil || d != time.Hour {
		t.Fatalf("empty: %v %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "90s", time.Hour); err != nil || d != 90*time.Second {
		t.Fatalf("explicit: %v %v", d, err)
	}
	// An explicit zero is a setting ("always"), not an omission.
	if d, err := ParseDurationOrDefault("x", "0s", time.Hour); err != nil || d != 0 {
		t.Fatalf("explicit zero: %v %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", time.Hour); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestManagerReloadPublishesChanges(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var published []*Config
	m.OnReload(func(cfg *Config) { published = append(published, cfg) })

	// Invalid edit: rejected, nothing published, old config stays.
	if err := os.WriteFile(path, []byte("schedule: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if len(published) != 0 {
		t.Fatal("invalid config must not publish")
	}
	if m.Get().Schedule != "*/15 * * * *" {
		t.Fatal("invalid config must not replace the committed one")
	}

	// Identical content: suppressed.
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if len(published) != 0 {
		t.Fatal("unchanged config must not republish")
	}

	// Real change: committed and published.
	if err := os.WriteFile(path, []byte(strings.Replace(validYAML, "*/15", "*/5", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if len(published) != 1 {
		t.Fatalf("published = %d, want 1", len(published))
	}
	if m.Get().Schedule != "*/5 * * * *" {
		t.Fatalf("Schedule = %q after reload", m.Get().Schedule)
	}
}

func TestManagerValidatorGuardsLoadAndReload(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", strings.Replace(validYAML, `"*/15 * * * *"`, "bogus", 1))
	m := NewManager(path)
	m.SetValidator(func(cfg *Config) error {
		if !strings.HasPrefix(cfg.Schedule, "*/") {
			return errBadSchedule
		}
		return nil
	})

	// Startup: a config the validator rejects is fatal.
	if _, err := m.Load(); err == nil {
		t.Fatal("Load must fail when the validator rejects the config")
	}

	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Reload: a rejected edit must not replace the committed config.
	var published int
	m.OnReload(func(*Config) { published++ })
	if err := os.WriteFile(path, []byte(strings.Replace(validYAML, `"*/15 * * * *"`, "bogus", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if published != 0 {
		t.Fatal("rejected config must not publish")
	}
	if m.Get().Schedule != "*/15 * * * *" {
		t.Fatalf("Schedule = %q, want the committed one kept", m.Get().Schedule)
	}
}

var errBadSchedule = errors.New("bad schedule")
