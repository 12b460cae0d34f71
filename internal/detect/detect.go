// Package detect computes the structured diff between two catalog snapshots.
//
// Everything here is pure: no I/O, no clock, deterministic output order.
package detect

import "bagwatch/internal/catalog"

// PriceChange records a price move for an entry present in both snapshots.
// Delta is nil when either side has no known price.
type PriceChange struct {
	Entry         catalog.Entry
	PreviousPrice *float64
	NewPrice      *float64
	Delta         *float64
}

// AvailabilityChange records a stocking transition for a shared entry.
type AvailabilityChange struct {
	Entry    catalog.Entry
	Previous catalog.Availability
	New      catalog.Availability
}

// Changes is the full diff between two snapshots.
//
// An ID present in both snapshots may appear in both PriceChanges and
// AvailabilityChanges, but never in New or Removed.
type Changes struct {
	New                 []catalog.Entry
	Removed             []catalog.Entry
	PriceChanges        []PriceChange
	AvailabilityChanges []AvailabilityChange
}

// Empty reports whether the diff contains no changes at all.
func (c Changes) Empty() bool {
	return len(c.New) == 0 && len(c.Removed) == 0 &&
		len(c.PriceChanges) == 0 && len(c.AvailabilityChanges) == 0
}

// Total is the number of individual change records across all categories.
func (c Changes) Total() int {
	return len(c.New) + len(c.Removed) + len(c.PriceChanges) + len(c.AvailabilityChanges)
}

// Diff compares the current snapshot against the previous one.
//
// New entries come out in current-scan order, removed entries in
// previous-scan order. Only price and availability participate in change
// detection for shared IDs; an item renamed in place is treated as unchanged.
func Diff(current, previous []catalog.Entry) Changes {
	currentByID := make(map[string]catalog.Entry, len(current))
	for _, e := range current {
		currentByID[e.ID] = e
	}
	previousByID := make(map[string]catalog.Entry, len(previous))
	for _, e := range previous {
		previousByID[e.ID] = e
	}

	var ch Changes

	for _, e := range current {
		if _, ok := previousByID[e.ID]; !ok {
			ch.New = append(ch.New, e)
		}
	}

	for _, e := range previous {
		if _, ok := currentByID[e.ID]; !ok {
			ch.Removed = append(ch.Removed, e)
		}
	}

	for _, cur := range current {
		prev, ok := previousByID[cur.ID]
		if !ok {
			continue
		}
		if !catalog.SamePrice(cur.Price, prev.Price) {
			pc := PriceChange{
				Entry:         cur,
				PreviousPrice: prev.Price,
				NewPrice:      cur.Price,
			}
			if cur.Price != nil && prev.Price != nil {
				d := *cur.Price - *prev.Price
				pc.Delta = &d
			}
			ch.PriceChanges = append(ch.PriceChanges, pc)
		}
		if cur.Availability != prev.Availability {
			ch.AvailabilityChanges = append(ch.AvailabilityChanges, AvailabilityChange{
				Entry:    cur,
				Previous: prev.Availability,
				New:      cur.Availability,
			})
		}
	}

	return ch
}
