package storage

import (
	"errors"
	"strings"
	"time"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

// Config configures the state backend.
//
// Driver values:
//   - "" or "file": JSON state file with atomic replace (default)
//   - "sqlite": SQLite database file (requires the sqlite build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured state store.
func Open(cfg Config, log logx.Logger) (watch.StateStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
