// Package activity keeps the append-only, capped record of cycle outcomes
// and the aggregate statistics derived from it.
package activity

import (
	"context"
	"errors"
	"strings"

	"bagwatch/pkg/logx"
)

// Log is the persistence API for cycle records.
type Log interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to n records, newest first. n <= 0 returns all.
	Recent(ctx context.Context, n int) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Open initializes the configured backend.
func Open(cfg Config, log logx.Logger) (Log, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown activity driver: " + driver)
	}
}
