//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (watch.StateStore, error) {
	return nil, errors.New("sqlite driver not compiled in (build with -tags sqlite)")
}
