package catalog

import "time"

// Availability is the stocking state extracted from the catalog page.
//
// StatusUnknown is a real third state, not a synonym for "not available":
// the page sometimes renders cards without any stocking keyword at all, and
// collapsing that into out-of-stock would fire bogus availability alerts on
// every layout hiccup.
type Availability string

const (
	StatusAvailable  Availability = "available"
	StatusOutOfStock Availability = "out_of_stock"
	StatusSoldOut    Availability = "sold_out"
	StatusUnknown    Availability = "unknown"
)

// Entry is one tracked product record.
//
// ID is derived from the canonical product link and is the identity used for
// change detection; a snapshot holds at most one Entry per ID.
type Entry struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Price        *float64     `json:"price"`
	PriceText    string       `json:"priceText"`
	Colorway     string       `json:"colorway,omitempty"`
	Availability Availability `json:"availability"`
	Link         string       `json:"link"`
	LastSeen     time.Time    `json:"lastSeen"`
}

// PriceValue returns the numeric price and whether one is known.
func (e Entry) PriceValue() (float64, bool) {
	if e.Price == nil {
		return 0, false
	}
	return *e.Price, true
}

// SamePrice reports whether two entries carry the same price,
// treating nil as distinct from any numeric value.
func SamePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
