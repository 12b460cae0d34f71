package activity

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("activity log disabled")

// Config configures the activity log.
//
// Driver values:
//   - "file": capped newest-first JSON array (default)
//   - "sqlite": SQLite database file (build with -tags sqlite)
type Config struct {
	Driver      string
	Path        string
	MaxEntries  int    // cap on retained records; default 1000
	SummaryPath string // optional JSONL run-summary stream
	Timezone    string // IANA TZ for the local timestamp; default UTC
}

// Record is one cycle outcome. Appended exactly once per cycle, successful
// or not, and never mutated afterwards.
type Record struct {
	Timestamp           time.Time `json:"timestamp"`
	TimestampLocal      string    `json:"timestampLocal"`
	Success             bool      `json:"success"`
	Message             string    `json:"message"`
	ProductsFound       int       `json:"productsFound"`
	NewItems            int       `json:"newItems"`
	PriceChanges        int       `json:"priceChanges"`
	AvailabilityChanges int       `json:"availabilityChanges"`
	AlertsSent          int       `json:"alertsSent"`
}

// Stats are aggregates over the retained history.
type Stats struct {
	TotalCycles int
	Successful  int
	Failed      int
	SuccessRate float64 // successful / total, 0 when empty
	TotalAlerts int
	LastCheck   time.Time // zero when no cycle has run
}
