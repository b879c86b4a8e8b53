package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

// fileStore persists the whole state document as one pretty-printed JSON
// file. Writes go to a temp file in the same directory and are renamed over
// the destination, so readers never observe a half-written store.
type fileStore struct {
	path string
	log  logx.Logger
}

func openFile(cfg Config, log logx.Logger) (watch.StateStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for the file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{path: path, log: log}, nil
}

// Load reads the state file. A missing, unreadable, or corrupt file degrades
// to the empty default: losing state must never stop the watcher.
func (s *fileStore) Load() (*watch.PersistedState, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("state file unreadable, starting empty",
				logx.String("path", s.path), logx.Err(err))
		}
		return watch.NewPersistedState(), false
	}
	return watch.DecodePersistedState(b), true
}

func (s *fileStore) Save(state *watch.PersistedState) error {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.path, append(b, '\n'), 0o644)
}

func (s *fileStore) Close() error { return nil }

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place. Rename is atomic on POSIX filesystems when source and destination
// share a directory.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
