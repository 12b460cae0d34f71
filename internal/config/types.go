package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Config struct {
	Monitoring    MonitoringConfig    `json:"monitoring"`
	Alerts        AlertsConfig        `json:"alerts"`
	Filters       FiltersConfig       `json:"filters"`
	Notifications NotificationsConfig `json:"notifications"`
	Schedule      ScheduleConfig      `json:"schedule"`
	Catalog       CatalogConfig       `json:"catalog"`
	Twilio        TwilioConfig        `json:"twilio,omitempty"`
	Snapshot      SnapshotConfig      `json:"snapshot,omitempty"`
	Activity      ActivityConfig      `json:"activity,omitempty"`
	Dispatch      DispatchConfig      `json:"dispatch,omitempty"`
	Logging       LoggingConfig       `json:"logging"`
	Pprof         PprofConfig         `json:"pprof,omitempty"`
}

// PprofConfig controls the optional debug HTTP server.
// Prefer binding to localhost; a non-loopback addr requires a token.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	Token   string `json:"token,omitempty"`
}

type MonitoringConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
	// RunOnStart is a pointer so an omitted field defaults to true while an
	// explicit false still disables the startup cycle.
	RunOnStart *bool `json:"run_on_start,omitempty"`
}

func (m MonitoringConfig) RunOnStartEnabled() bool {
	return m.RunOnStart == nil || *m.RunOnStart
}

type AlertsConfig struct {
	NewProducts         bool `json:"new_products"`
	PriceChanges        bool `json:"price_changes"`
	AvailabilityChanges bool `json:"availability_changes"`
}

type FiltersConfig struct {
	TargetProducts []string   `json:"target_products,omitempty"`
	PriceRange     PriceRange `json:"price_range,omitempty"`
}

// PriceRange bounds are pointers so "no bound" is distinct from zero.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type NotificationsConfig struct {
	SMSEnabled      bool   `json:"sms_enabled"`
	RecipientNumber string `json:"recipient_number,omitempty"`
	FromNumber      string `json:"from_number,omitempty"`
	StartupNotice   bool   `json:"startup_notice"`
	DailyNotice     bool   `json:"daily_notice"`
}

type ScheduleConfig struct {
	BusinessHoursOnly bool   `json:"business_hours_only"`
	StartHour         int    `json:"start_hour"`
	EndHour           int    `json:"end_hour"`
	WeekdaysOnly      bool   `json:"weekdays_only"`
	Timezone          string `json:"timezone,omitempty"`
	DailyHour         int    `json:"daily_hour"`
}

// Location resolves the schedule timezone, defaulting to UTC.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(s.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

type CatalogConfig struct {
	URL string `json:"url"`
	// Timeout is a Go duration string (e.g. "10s", "1m").
	Timeout string `json:"timeout,omitempty"`
}

type TwilioConfig struct {
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
}

type SnapshotConfig struct {
	Path string `json:"path"`
}

type ActivityConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	MaxEntries  int    `json:"max_entries,omitempty"`
	SummaryPath string `json:"summary_path,omitempty"`
}

type DispatchConfig struct {
	// MessageDelay is a Go duration string; the minimum spacing between
	// consecutive outbound messages.
	MessageDelay string `json:"message_delay,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns the configuration used when fields are omitted. Parse
// decodes the file on top of this value, so absent keys keep these values.
func Default() *Config {
	return &Config{
		Monitoring: MonitoringConfig{
			Enabled:         true,
			IntervalMinutes: 30,
		},
		Alerts: AlertsConfig{
			NewProducts:         true,
			PriceChanges:        true,
			AvailabilityChanges: true,
		},
		Notifications: NotificationsConfig{
			SMSEnabled:    false,
			StartupNotice: true,
			DailyNotice:   true,
		},
		Schedule: ScheduleConfig{
			BusinessHoursOnly: true,
			StartHour:         9,
			EndHour:           18,
			WeekdaysOnly:      true,
			Timezone:          "America/New_York",
			DailyHour:         9,
		},
		Catalog: CatalogConfig{
			Timeout: "15s",
		},
		Snapshot: SnapshotConfig{
			Path: "./data/previous-products.json",
		},
		Activity: ActivityConfig{
			Driver:      "file",
			Path:        "./data/search-log.json",
			MaxEntries:  1000,
			SummaryPath: "./data/monitoring-summary.jsonl",
		},
		Dispatch: DispatchConfig{
			MessageDelay: "1s",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

var e164Re = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Validate rejects configs the runtime could not act on. It is called on
// initial load and before any hot reload is committed.
func (c *Config) Validate() error {
	if c.Monitoring.IntervalMinutes < 1 {
		return fmt.Errorf("monitoring.interval_minutes: must be >= 1, got %d", c.Monitoring.IntervalMinutes)
	}
	if strings.TrimSpace(c.Catalog.URL) == "" {
		return fmt.Errorf("catalog.url: required")
	}
	if _, err := ParseDurationField("catalog.timeout", c.Catalog.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("dispatch.message_delay", c.Dispatch.MessageDelay); err != nil {
		return err
	}

	if h := c.Schedule.StartHour; h < 0 || h > 23 {
		return fmt.Errorf("schedule.start_hour: must be 0..23, got %d", h)
	}
	if h := c.Schedule.EndHour; h < 0 || h > 24 {
		return fmt.Errorf("schedule.end_hour: must be 0..24, got %d", h)
	}
	if c.Schedule.BusinessHoursOnly && c.Schedule.StartHour >= c.Schedule.EndHour {
		return fmt.Errorf("schedule: start_hour %d must be before end_hour %d", c.Schedule.StartHour, c.Schedule.EndHour)
	}
	if h := c.Schedule.DailyHour; h < 0 || h > 23 {
		return fmt.Errorf("schedule.daily_hour: must be 0..23, got %d", h)
	}
	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}

	if min, max := c.Filters.PriceRange.Min, c.Filters.PriceRange.Max; min != nil && max != nil && *min > *max {
		return fmt.Errorf("filters.price_range: min %v exceeds max %v", *min, *max)
	}

	if c.Notifications.SMSEnabled {
		if !e164Re.MatchString(c.Notifications.RecipientNumber) {
			return fmt.Errorf("notifications.recipient_number: %q is not E.164", c.Notifications.RecipientNumber)
		}
		if !e164Re.MatchString(c.Notifications.FromNumber) {
			return fmt.Errorf("notifications.from_number: %q is not E.164", c.Notifications.FromNumber)
		}
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			return fmt.Errorf("twilio: account_sid and auth_token are required when sms is enabled")
		}
	}

	switch c.Activity.Driver {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("activity.driver: unknown driver %q", c.Activity.Driver)
	}
	if c.Activity.MaxEntries < 0 {
		return fmt.Errorf("activity.max_entries: must be >= 0, got %d", c.Activity.MaxEntries)
	}
	return nil
}
