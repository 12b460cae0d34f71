//go:build sqlite
// +build sqlite

package activity

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"bagwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteLog struct {
	db  *sql.DB
	log logx.Logger
	loc *time.Location

	maxEntries int
	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Log, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("activity.path is required for sqlite driver")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, err
		}
		loc = l
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteLog{db: db, log: log, loc: loc, maxEntries: cfg.MaxEntries, pruneEvery: 50}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteLog) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteLog) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteLog) Append(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.TimestampLocal == "" {
		r.TimestampLocal = r.Timestamp.In(s.loc).Format(localTimeFormat)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles(at, at_local, success, message, products_found, new_items, price_changes, availability_changes, alerts_sent)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.Timestamp.Format(time.RFC3339Nano), r.TimestampLocal, boolInt(r.Success), r.Message,
		r.ProductsFound, r.NewItems, r.PriceChanges, r.AvailabilityChanges, r.AlertsSent,
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		if perr := s.prune(pctx); perr != nil {
			s.log.Debug("activity prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

// prune enforces the retention cap by deleting the oldest rows.
func (s *sqliteLog) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cycles WHERE id NOT IN (SELECT id FROM cycles ORDER BY id DESC LIMIT ?)`,
		s.maxEntries,
	)
	return err
}

func (s *sqliteLog) Recent(ctx context.Context, n int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	limit := s.maxEntries
	if n > 0 && n < limit {
		limit = n
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, at_local, success, message, products_found, new_items, price_changes, availability_changes, alerts_sent
		 FROM cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			at      string
			success int
		)
		if err := rows.Scan(&at, &r.TimestampLocal, &success, &r.Message,
			&r.ProductsFound, &r.NewItems, &r.PriceChanges, &r.AvailabilityChanges, &r.AlertsSent); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			r.Timestamp = t
		}
		r.Success = success != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteLog) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, ErrDisabled
	}
	var (
		st   Stats
		last sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(success), 0), COALESCE(SUM(alerts_sent), 0), MAX(at)
		 FROM (SELECT success, alerts_sent, at FROM cycles ORDER BY id DESC LIMIT ?)`,
		s.maxEntries,
	).Scan(&st.TotalCycles, &st.Successful, &st.TotalAlerts, &last)
	if err != nil {
		return Stats{}, err
	}
	st.Failed = st.TotalCycles - st.Successful
	if st.TotalCycles > 0 {
		st.SuccessRate = float64(st.Successful) / float64(st.TotalCycles)
	}
	if last.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, last.String); perr == nil {
			st.LastCheck = t
		}
	}
	return st, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
