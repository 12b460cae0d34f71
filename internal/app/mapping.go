package app

import (
	"time"

	"bagwatch/internal/config"
	"bagwatch/internal/dispatch"
	"bagwatch/internal/monitor"
	"bagwatch/internal/policy"
	"bagwatch/internal/schedule"
	"bagwatch/pkg/logx"
)

func mapSettings(cfg *config.Config) monitor.Settings {
	return monitor.Settings{
		Policy: policy.Config{
			AlertOnNew:          cfg.Alerts.NewProducts,
			AlertOnPrice:        cfg.Alerts.PriceChanges,
			AlertOnAvailability: cfg.Alerts.AvailabilityChanges,

			TargetNameSubstrings: cfg.Filters.TargetProducts,
			MinPrice:             cfg.Filters.PriceRange.Min,
			MaxPrice:             cfg.Filters.PriceRange.Max,
		},
		SMSEnabled: cfg.Notifications.SMSEnabled,
	}
}

func mapServiceConfig(cfg *config.Config) (monitor.ServiceConfig, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return monitor.ServiceConfig{}, err
	}
	return monitor.ServiceConfig{
		Enabled:       cfg.Monitoring.Enabled,
		Interval:      time.Duration(cfg.Monitoring.IntervalMinutes) * time.Minute,
		RunOnStart:    cfg.Monitoring.RunOnStartEnabled(),
		StartupNotice: cfg.Notifications.StartupNotice,
		DailyNotice:   cfg.Notifications.DailyNotice,
		DailyHour:     cfg.Schedule.DailyHour,
		SMSEnabled:    cfg.Notifications.SMSEnabled,
		Gate: schedule.Policy{
			BusinessHoursOnly: cfg.Schedule.BusinessHoursOnly,
			StartHour:         cfg.Schedule.StartHour,
			EndHour:           cfg.Schedule.EndHour,
			WeekdaysOnly:      cfg.Schedule.WeekdaysOnly,
			Location:          loc,
		},
		Location: loc,
	}, nil
}

func buildDispatcher(cfg *config.Config, log logx.Logger) (*dispatch.Dispatcher, error) {
	delay, err := config.ParseDurationField("dispatch.message_delay", cfg.Dispatch.MessageDelay)
	if err != nil {
		return nil, err
	}
	channel := dispatch.NewTwilioChannel(dispatch.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Notifications.FromNumber,
	}, nil)
	return dispatch.New(dispatch.Config{
		Recipient:    cfg.Notifications.RecipientNumber,
		MessageDelay: delay,
	}, channel, log.With(logx.String("comp", "dispatch"))), nil
}
