// Package policy turns a change set into the ordered list of alerts the
// operator asked for. Pure function of (changes, config).
package policy

import (
	"fmt"
	"strconv"
	"strings"

	"bagwatch/internal/catalog"
	"bagwatch/internal/detect"
)

// Kind discriminates alert categories.
type Kind string

const (
	KindNew          Kind = "new"
	KindPrice        Kind = "price"
	KindAvailability Kind = "availability"
)

// Alert is one rendered notification. Alerts are transient: produced and
// consumed within a single monitoring cycle.
type Alert struct {
	Kind    Kind
	Entry   catalog.Entry
	Message string
}

// Config is the recognized alert policy surface.
//
// An empty TargetNameSubstrings list matches everything. A nil price bound
// is unset; an entry with no known price fails any bound that IS set (we
// cannot verify, so it is excluded rather than assumed passing).
type Config struct {
	AlertOnNew          bool
	AlertOnPrice        bool
	AlertOnAvailability bool

	TargetNameSubstrings []string
	MinPrice             *float64
	MaxPrice             *float64
}

// Evaluate filters the change set and renders one alert per passing change.
//
// Output order: new entries first, then price changes, then availability
// changes, each in the detector's order.
func Evaluate(ch detect.Changes, cfg Config) []Alert {
	var alerts []Alert

	if cfg.AlertOnNew {
		for _, e := range ch.New {
			if !cfg.passes(e) {
				continue
			}
			msg := fmt.Sprintf("🆕 NEW: %s - %s", e.Name, displayPrice(e))
			if e.Colorway != "" {
				msg += " - " + e.Colorway
			}
			msg += ". Link: " + e.Link
			alerts = append(alerts, Alert{Kind: KindNew, Entry: e, Message: msg})
		}
	}

	if cfg.AlertOnPrice {
		for _, pc := range ch.PriceChanges {
			if !cfg.passes(pc.Entry) {
				continue
			}
			direction := "📈 PRICE INCREASE"
			if pc.Delta != nil && *pc.Delta < 0 {
				direction = "📉 PRICE DROP"
			}
			msg := fmt.Sprintf("%s: %s - Was %s, Now %s. Link: %s",
				direction, pc.Entry.Name,
				formatPrice(pc.PreviousPrice), formatPrice(pc.NewPrice),
				pc.Entry.Link)
			alerts = append(alerts, Alert{Kind: KindPrice, Entry: pc.Entry, Message: msg})
		}
	}

	if cfg.AlertOnAvailability {
		for _, ac := range ch.AvailabilityChanges {
			if !cfg.passes(ac.Entry) {
				continue
			}
			emoji := "📦"
			switch ac.New {
			case catalog.StatusAvailable:
				emoji = "✅"
			case catalog.StatusOutOfStock, catalog.StatusSoldOut:
				emoji = "❌"
			}
			msg := fmt.Sprintf("%s AVAILABILITY: %s - Was %s, Now %s. Link: %s",
				emoji, ac.Entry.Name,
				statusLabel(ac.Previous), statusLabel(ac.New),
				ac.Entry.Link)
			alerts = append(alerts, Alert{Kind: KindAvailability, Entry: ac.Entry, Message: msg})
		}
	}

	return alerts
}

// passes applies the target-name and price-bound filters.
func (c Config) passes(e catalog.Entry) bool {
	if len(c.TargetNameSubstrings) > 0 {
		name := strings.ToLower(e.Name)
		matched := false
		for _, target := range c.TargetNameSubstrings {
			if target == "" {
				continue
			}
			if strings.Contains(name, strings.ToLower(target)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if c.MinPrice != nil {
		v, ok := e.PriceValue()
		if !ok || v < *c.MinPrice {
			return false
		}
	}
	if c.MaxPrice != nil {
		v, ok := e.PriceValue()
		if !ok || v > *c.MaxPrice {
			return false
		}
	}
	return true
}

func displayPrice(e catalog.Entry) string {
	if e.PriceText != "" {
		return e.PriceText
	}
	return formatPrice(e.Price)
}

func formatPrice(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return "$" + strconv.FormatFloat(*p, 'f', -1, 64)
}

func statusLabel(a catalog.Availability) string {
	return strings.ToUpper(strings.ReplaceAll(string(a), "_", " "))
}
