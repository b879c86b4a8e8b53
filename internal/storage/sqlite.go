//go:build sqlite
// +build sqlite

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

// sqliteStore keeps the state document in a single-row table. The document
// stays JSON (same schema as the file driver), so switching drivers is a
// one-time import away.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stock_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT ''
);
`

func openSQLite(cfg Config, log logx.Logger) (watch.StateStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for the sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Load() (*watch.PersistedState, bool) {
	var doc string
	err := s.db.QueryRow("SELECT doc FROM stock_state WHERE id = 1").Scan(&doc)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return watch.NewPersistedState(), false
	case err != nil:
		s.log.Warn("state row unreadable, starting empty", logx.Err(err))
		return watch.NewPersistedState(), false
	}
	return watch.DecodePersistedState([]byte(doc)), true
}

func (s *sqliteStore) Save(state *watch.PersistedState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
INSERT INTO stock_state (id, doc, updated_at) VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		string(b), state.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
