package activity

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bagwatch/pkg/logx"
)

const localTimeFormat = "01/02/2006, 15:04:05"

// fileLog keeps records as a newest-first JSON array, rewritten atomically
// on every append, plus an optional append-only JSONL summary stream.
type fileLog struct {
	log logx.Logger

	mu          sync.Mutex
	path        string
	maxEntries  int
	records     []Record // newest first, already capped
	summaryFile *os.File
	loc         *time.Location
}

func openFile(cfg Config, log logx.Logger) (Log, error) {
	if cfg.Path == "" {
		return nil, errors.New("activity.path is required for file driver")
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

	f := &fileLog{
		log:        log,
		path:       cfg.Path,
		maxEntries: cfg.MaxEntries,
		loc:        loc,
	}

	// Load existing history so the cap and stats survive restarts.
	if b, err := os.ReadFile(cfg.Path); err == nil {
		if err := json.Unmarshal(b, &f.records); err != nil {
			log.Warn("activity log unreadable; starting fresh", logx.String("path", cfg.Path), logx.Err(err))
			f.records = nil
		}
		if len(f.records) > f.maxEntries {
			f.records = f.records[:f.maxEntries]
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if cfg.SummaryPath != "" {
		sf, err := os.OpenFile(cfg.SummaryPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		f.summaryFile = sf
	}

	return f, nil
}

func (f *fileLog) Append(ctx context.Context, r Record) error {
	_ = ctx
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.TimestampLocal == "" {
		r.TimestampLocal = r.Timestamp.In(f.loc).Format(localTimeFormat)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append([]Record{r}, f.records...)
	if len(f.records) > f.maxEntries {
		f.records = f.records[:f.maxEntries]
	}

	if err := f.writeLocked(); err != nil {
		return err
	}

	// Summary stream is append-only and never rewritten; a write failure
	// here must not fail the cycle record itself.
	if f.summaryFile != nil {
		if err := json.NewEncoder(f.summaryFile).Encode(r); err != nil {
			f.log.Warn("run summary append failed", logx.Err(err))
		}
	}
	return nil
}

func (f *fileLog) writeLocked() error {
	b, err := json.MarshalIndent(f.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *fileLog) Recent(ctx context.Context, n int) ([]Record, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]Record(nil), f.records...)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fileLog) Stats(ctx context.Context) (Stats, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()

	st := Stats{TotalCycles: len(f.records)}
	for _, r := range f.records {
		if r.Success {
			st.Successful++
		}
		st.TotalAlerts += r.AlertsSent
	}
	st.Failed = st.TotalCycles - st.Successful
	if st.TotalCycles > 0 {
		st.SuccessRate = float64(st.Successful) / float64(st.TotalCycles)
		st.LastCheck = f.records[0].Timestamp
	}
	return st, nil
}

func (f *fileLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryFile != nil {
		err := f.summaryFile.Close()
		f.summaryFile = nil
		return err
	}
	return nil
}
