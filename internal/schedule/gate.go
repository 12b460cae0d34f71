// Package schedule decides when monitoring cycles are allowed to run and
// when the once-a-day informational notice is due, based on wall-clock time
// in a configured timezone.
package schedule

import "time"

// Skip reasons reported by the gate.
const (
	ReasonWeekend      = "weekend"
	ReasonOutsideHours = "outside-hours"
)

// Policy is the business-hours restriction for monitoring cycles.
// Hours are local to Location and the window is [StartHour, EndHour).
type Policy struct {
	BusinessHoursOnly bool
	StartHour         int
	EndHour           int
	WeekdaysOnly      bool
	Location          *time.Location
}

// Decision is the outcome of a gate check.
type Decision struct {
	Proceed bool
	Reason  string
}

func proceed() Decision           { return Decision{Proceed: true} }
func skip(reason string) Decision { return Decision{Reason: reason} }

// ShouldRun decides whether a cycle may start at the given instant.
//
// The weekend check wins over the hour check: Saturday 10:00 is still
// Skip("weekend") under a weekdays-only policy.
func (p Policy) ShouldRun(now time.Time) Decision {
	if !p.BusinessHoursOnly {
		return proceed()
	}

	local := now.In(p.location())
	if p.WeekdaysOnly {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return skip(ReasonWeekend)
		}
	}

	hour := local.Hour()
	if hour < p.StartHour || hour >= p.EndHour {
		return skip(ReasonOutsideHours)
	}
	return proceed()
}

func (p Policy) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.UTC
}
