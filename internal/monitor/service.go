package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bagwatch/internal/activity"
	"bagwatch/internal/schedule"
	"bagwatch/pkg/logx"
)

// startupDelay gives the process a moment to settle before the optional
// immediate first cycle.
const startupDelay = 5 * time.Second

// ServiceConfig is the trigger-side configuration.
type ServiceConfig struct {
	Enabled       bool
	Interval      time.Duration
	RunOnStart    bool
	StartupNotice bool
	DailyNotice   bool
	DailyHour     int
	SMSEnabled    bool

	Gate     schedule.Policy
	Location *time.Location
}

func (c ServiceConfig) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

// Service drives the coordinator from cron triggers: the interval cycle, a
// minute-resolution check for the daily notice, and an optional immediate
// run after start.
type Service struct {
	coord    *Coordinator
	notifier Notifier
	activity activity.Log
	logger   logx.Logger

	mu      sync.Mutex
	cfg     ServiceConfig
	daily   *schedule.DailyTracker
	c       *cron.Cron
	running bool
	cancel  context.CancelFunc
}

func NewService(cfg ServiceConfig, coord *Coordinator, notifier Notifier, act activity.Log, logger logx.Logger) *Service {
	if logger.IsZero() {
		logger = logx.Nop()
	}
	return &Service{
		coord:    coord,
		notifier: notifier,
		activity: act,
		logger:   logger,
		cfg:      cfg,
		daily:    newTracker(cfg),
	}
}

func newTracker(cfg ServiceConfig) *schedule.DailyTracker {
	return schedule.NewDailyTracker(schedule.DailyConfig{
		Hour:         cfg.DailyHour,
		WeekdaysOnly: cfg.Gate.WeekdaysOnly,
		Location:     cfg.location(),
	})
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if !s.cfg.Enabled {
		s.logger.Info("monitoring disabled")
		return nil
	}
	if s.cfg.Interval <= 0 {
		return errors.New("monitor: interval must be positive")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if err := s.startCronLocked(runCtx); err != nil {
		cancel()
		return err
	}
	s.running = true

	if s.cfg.StartupNotice && s.cfg.SMSEnabled {
		go s.notify(runCtx, fmt.Sprintf("Bag monitor started. Checking every %s.", s.cfg.Interval))
	}
	if s.cfg.RunOnStart {
		go func() {
			select {
			case <-runCtx.Done():
			case <-time.After(startupDelay):
				s.tick(runCtx)
			}
		}()
	}

	s.logger.Info("monitor started",
		logx.Duration("interval", s.cfg.Interval),
		logx.String("tz", s.cfg.location().String()),
		logx.Bool("business_hours_only", s.cfg.Gate.BusinessHoursOnly))
	return nil
}

func (s *Service) startCronLocked(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.cfg.location()))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() { s.tick(ctx) }); err != nil {
		return err
	}
	if s.cfg.DailyNotice && s.cfg.SMSEnabled {
		if _, err := c.AddFunc("* * * * *", func() { s.dailyTick(ctx) }); err != nil {
			return err
		}
	}
	c.Start()
	s.c = c
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.logger.Info("monitor stopped")
}

// Apply installs new trigger settings. The cron is rebuilt when the interval,
// timezone, or daily notice wiring changed; the daily tracker is kept when
// possible so a reload cannot re-fire the same day's notice.
func (s *Service) Apply(ctx context.Context, cfg ServiceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rebuildTracker := cfg.DailyHour != s.cfg.DailyHour ||
		cfg.Gate.WeekdaysOnly != s.cfg.Gate.WeekdaysOnly ||
		cfg.location().String() != s.cfg.location().String()
	rebuildCron := s.running &&
		(cfg.Interval != s.cfg.Interval ||
			cfg.location().String() != s.cfg.location().String() ||
			cfg.DailyNotice != s.cfg.DailyNotice ||
			cfg.SMSEnabled != s.cfg.SMSEnabled)

	s.cfg = cfg
	if rebuildTracker {
		s.daily = newTracker(cfg)
	}
	if rebuildCron {
		if s.c != nil {
			<-s.c.Stop().Done()
			s.c = nil
		}
		if err := s.startCronLocked(ctx); err != nil {
			return err
		}
		s.logger.Info("monitor trigger reloaded", logx.Duration("interval", cfg.Interval))
	}
	return nil
}

// Stats reports aggregate cycle statistics from the activity log.
func (s *Service) Stats(ctx context.Context) (activity.Stats, error) {
	return s.activity.Stats(ctx)
}

func (s *Service) snapshotCfg() ServiceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// tick runs one gated cycle.
func (s *Service) tick(ctx context.Context) {
	cfg := s.snapshotCfg()

	if d := cfg.Gate.ShouldRun(time.Now()); !d.Proceed {
		s.logger.Debug("cycle skipped", logx.String("reason", d.Reason))
		return
	}

	sum, err := s.coord.RunCycle(ctx)
	if errors.Is(err, ErrCycleInProgress) {
		s.logger.Warn("cycle dropped: previous still running")
		return
	}
	if sum.Err != nil && cfg.SMSEnabled {
		s.notify(ctx, fmt.Sprintf("Bag monitor error (%s): %v", sum.ErrorKind, sum.Err))
	}
}

// dailyTick fires the informational notice at most once per local calendar
// date. The tracker marks the date before the send, so a failed send is not
// retried until the next day.
func (s *Service) dailyTick(ctx context.Context) {
	s.mu.Lock()
	tracker := s.daily
	s.mu.Unlock()

	if !tracker.Due(time.Now()) {
		return
	}

	body := "Bag monitor daily check-in: running."
	if st, err := s.activity.Stats(ctx); err == nil && st.TotalCycles > 0 {
		body = fmt.Sprintf("Bag monitor daily check-in: %d cycles logged, %.0f%% success, %d alerts total.",
			st.TotalCycles, st.SuccessRate*100, st.TotalAlerts)
	}
	s.notify(ctx, body)
}

// notify is best-effort: notices never fail or retry a cycle.
func (s *Service) notify(ctx context.Context, body string) {
	if err := s.notifier.Notify(ctx, body); err != nil {
		s.logger.Warn("notice delivery failed", logx.Err(err))
	}
}
