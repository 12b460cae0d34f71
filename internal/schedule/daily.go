package schedule

import (
	"sync"
	"time"
)

// DailyConfig controls the once-a-day notice window.
type DailyConfig struct {
	Hour          int // local hour the notice fires, e.g. 9
	WindowMinutes int // minutes past the hour still eligible; default 5
	WeekdaysOnly  bool
	Location      *time.Location
}

// DailyTracker remembers the last local calendar date the daily notice
// fired, so polling the gate every minute still yields at most one fire per
// date.
//
// State is in-memory only; a process restart can re-fire the same day.
// Accepted tradeoff, not a defect.
type DailyTracker struct {
	cfg DailyConfig

	mu       sync.Mutex
	lastDate string // "2006-01-02" in cfg.Location
}

func NewDailyTracker(cfg DailyConfig) *DailyTracker {
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &DailyTracker{cfg: cfg}
}

// Due reports whether the daily notice should fire now, and if so marks the
// date as fired immediately. The mark happens before any network call by the
// caller, so a slow or failing send cannot cause a duplicate same-day fire.
func (t *DailyTracker) Due(now time.Time) bool {
	local := now.In(t.cfg.Location)

	if t.cfg.WeekdaysOnly {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}
	if local.Hour() != t.cfg.Hour || local.Minute() >= t.cfg.WindowMinutes {
		return false
	}

	date := local.Format("2006-01-02")
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastDate == date {
		return false
	}
	t.lastDate = date
	return true
}
