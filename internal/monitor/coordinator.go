// Package monitor runs the fetch-diff-alert-persist-log cycle and schedules
// it on an interval.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bagwatch/internal/activity"
	"bagwatch/internal/catalog"
	"bagwatch/internal/detect"
	"bagwatch/internal/dispatch"
	"bagwatch/internal/policy"
	"bagwatch/internal/snapshot"
	"bagwatch/pkg/logx"
)

// Phase names the stage a cycle is currently in.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseDiffing    Phase = "diffing"
	PhaseAlerting   Phase = "alerting"
	PhasePersisting Phase = "persisting"
	PhaseLogging    Phase = "logging"
)

// Error kinds attached to cycle summaries. Validation and delivery kinds are
// shared with the dispatcher so a summary carries the same vocabulary the
// per-alert outcomes use.
const (
	ErrKindFetch       = "FetchError"
	ErrKindParse       = "ParseError"
	ErrKindValidation  = dispatch.ErrKindValidation
	ErrKindDelivery    = dispatch.ErrKindDelivery
	ErrKindPersistence = "PersistenceError"
)

// ErrCycleInProgress is returned when a cycle is requested while another is
// still running. The request is dropped, never queued.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// Notifier is the slice of the dispatcher the coordinator needs.
type Notifier interface {
	Send(ctx context.Context, alerts []policy.Alert) []dispatch.Outcome
	Notify(ctx context.Context, body string) error
}

// Settings is the per-cycle behavior that can change under hot reload.
type Settings struct {
	Policy     policy.Config
	SMSEnabled bool
}

// Summary describes one finished (or failed) cycle.
type Summary struct {
	Started  time.Time
	Duration time.Duration

	Success bool
	Message string

	ProductsFound       int
	NewItems            int
	Removed             int
	PriceChanges        int
	AvailabilityChanges int
	AlertsSent          int

	// ErrorKind classifies the first cycle-level failure; empty on success.
	// Per-alert delivery failures do not fail the cycle, but the first one is
	// still surfaced here for the operator notice.
	ErrorKind string
	Err       error
}

// Coordinator owns the cycle state machine. Exactly one cycle runs at a
// time; a second request while busy is dropped with ErrCycleInProgress.
type Coordinator struct {
	source catalog.Source
	store  snapshot.Store
	sender Notifier
	log    activity.Log
	logger logx.Logger

	busy  atomic.Bool
	phase atomic.Value // Phase

	mu       sync.RWMutex
	settings Settings
}

func NewCoordinator(source catalog.Source, store snapshot.Store, sender Notifier, log activity.Log, logger logx.Logger) *Coordinator {
	if logger.IsZero() {
		logger = logx.Nop()
	}
	c := &Coordinator{
		source: source,
		store:  store,
		sender: sender,
		log:    log,
		logger: logger,
	}
	c.phase.Store(PhaseIdle)
	return c
}

// Apply swaps the hot-reloadable settings. Safe to call while a cycle runs;
// the running cycle keeps the settings it started with.
func (c *Coordinator) Apply(s Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
}

func (c *Coordinator) currentSettings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Phase reports the stage the coordinator is currently in.
func (c *Coordinator) Phase() Phase {
	return c.phase.Load().(Phase)
}

func (c *Coordinator) setPhase(p Phase) {
	c.phase.Store(p)
	c.logger.Trace("cycle phase", logx.String("phase", string(p)))
}

// RunCycle executes one full monitoring cycle.
//
// Failures are recorded on the summary and in the activity log; they never
// propagate as a panic or abort the process. The snapshot is only replaced
// after alerting, so a failed fetch leaves the previous baseline intact and
// the same diff is retried on the next cycle.
func (c *Coordinator) RunCycle(ctx context.Context) (Summary, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Summary{}, ErrCycleInProgress
	}
	defer func() {
		c.busy.Store(false)
		c.setPhase(PhaseIdle)
	}()

	settings := c.currentSettings()
	sum := Summary{Started: time.Now()}

	c.setPhase(PhaseFetching)
	entries, err := c.source.Fetch(ctx)
	if err != nil {
		sum.ErrorKind = ErrKindFetch
		sum.Err = err
		sum.Message = fmt.Sprintf("catalog fetch failed: %v", err)
		c.logger.Error("catalog fetch failed", logx.Err(err))
		return c.finish(ctx, sum)
	}
	sum.ProductsFound = len(entries)
	if len(entries) == 0 {
		// Valid but suspicious: the page may have changed markup.
		c.logger.Warn("catalog returned zero entries", logx.String("kind", ErrKindParse))
	}

	previous, err := c.store.Load(ctx)
	if err != nil {
		sum.ErrorKind = ErrKindPersistence
		sum.Err = err
		sum.Message = fmt.Sprintf("snapshot load failed: %v", err)
		c.logger.Error("snapshot load failed", logx.Err(err))
		return c.finish(ctx, sum)
	}

	c.setPhase(PhaseDiffing)
	changes := detect.Diff(entries, previous)
	sum.NewItems = len(changes.New)
	sum.Removed = len(changes.Removed)
	sum.PriceChanges = len(changes.PriceChanges)
	sum.AvailabilityChanges = len(changes.AvailabilityChanges)

	c.setPhase(PhaseAlerting)
	alerts := policy.Evaluate(changes, settings.Policy)
	if len(alerts) > 0 && settings.SMSEnabled {
		outcomes := c.sender.Send(ctx, alerts)
		sum.AlertsSent = dispatch.Delivered(outcomes)
		for _, o := range outcomes {
			if o.Err != nil && sum.ErrorKind == "" {
				// Surfaced for the operator notice; does not fail the cycle.
				sum.ErrorKind = o.ErrorKind
				sum.Err = o.Err
			}
		}
	} else if len(alerts) > 0 {
		c.logger.Info("alerts suppressed: sms disabled", logx.Int("alerts", len(alerts)))
	}

	c.setPhase(PhasePersisting)
	if err := c.store.Replace(ctx, entries); err != nil {
		sum.ErrorKind = ErrKindPersistence
		sum.Err = err
		sum.Message = fmt.Sprintf("snapshot persist failed: %v", err)
		c.logger.Error("snapshot persist failed", logx.Err(err))
		return c.finish(ctx, sum)
	}

	sum.Success = true
	sum.Message = fmt.Sprintf("found %d products; %d new, %d removed, %d price changes, %d availability changes; %d alerts sent",
		sum.ProductsFound, sum.NewItems, sum.Removed, sum.PriceChanges, sum.AvailabilityChanges, sum.AlertsSent)
	return c.finish(ctx, sum)
}

// finish is the Logging phase: every cycle appends exactly one record, with
// whatever counts were gathered before the failure.
func (c *Coordinator) finish(ctx context.Context, sum Summary) (Summary, error) {
	c.setPhase(PhaseLogging)
	sum.Duration = time.Since(sum.Started)

	rec := activity.Record{
		Timestamp:           sum.Started,
		Success:             sum.Success,
		Message:             sum.Message,
		ProductsFound:       sum.ProductsFound,
		NewItems:            sum.NewItems,
		PriceChanges:        sum.PriceChanges,
		AvailabilityChanges: sum.AvailabilityChanges,
		AlertsSent:          sum.AlertsSent,
	}
	if err := c.log.Append(ctx, rec); err != nil {
		// The record is lost but the cycle result stands.
		c.logger.Warn("activity append failed", logx.Err(err))
	}

	if sum.Success {
		c.logger.Info("cycle complete",
			logx.Int("products", sum.ProductsFound),
			logx.Int("new", sum.NewItems),
			logx.Int("price_changes", sum.PriceChanges),
			logx.Int("availability_changes", sum.AvailabilityChanges),
			logx.Int("alerts_sent", sum.AlertsSent),
			logx.Duration("took", sum.Duration))
		return sum, nil
	}
	return sum, sum.Err
}
