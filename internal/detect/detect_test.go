package detect

import (
	"testing"

	"bagwatch/internal/catalog"
)

func price(v float64) *float64 { return &v }

func entry(id string, p *float64, av catalog.Availability) catalog.Entry {
	return catalog.Entry{ID: id, Name: "Bag " + id, Price: p, Availability: av}
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	t.Parallel()
	snap := []catalog.Entry{
		entry("A", price(100), catalog.StatusAvailable),
		entry("B", nil, catalog.StatusUnknown),
	}
	ch := Diff(snap, snap)
	if !ch.Empty() {
		t.Fatalf("expected empty diff, got %+v", ch)
	}
}

func TestDiffNewAndRemoved(t *testing.T) {
	t.Parallel()
	previous := []catalog.Entry{
		entry("A", price(100), catalog.StatusAvailable),
		entry("B", price(200), catalog.StatusAvailable),
	}
	current := []catalog.Entry{
		entry("B", price(200), catalog.StatusAvailable),
		entry("C", price(300), catalog.StatusAvailable),
		entry("D", price(400), catalog.StatusAvailable),
	}

	ch := Diff(current, previous)

	if len(ch.New) != 2 || ch.New[0].ID != "C" || ch.New[1].ID != "D" {
		t.Fatalf("New = %+v, want [C D] in scan order", ch.New)
	}
	if len(ch.Removed) != 1 || ch.Removed[0].ID != "A" {
		t.Fatalf("Removed = %+v, want [A]", ch.Removed)
	}
	for _, e := range ch.New {
		if e.ID == "A" {
			t.Fatal("removed entry must never appear in New")
		}
	}
	if len(ch.PriceChanges) != 0 || len(ch.AvailabilityChanges) != 0 {
		t.Fatalf("unexpected changes: %+v", ch)
	}
}

func TestDiffPriceChange(t *testing.T) {
	t.Parallel()
	previous := []catalog.Entry{entry("A", price(100), catalog.StatusAvailable)}
	current := []catalog.Entry{
		entry("A", price(120), catalog.StatusAvailable),
		entry("B", price(50), catalog.StatusAvailable),
	}

	ch := Diff(current, previous)

	if len(ch.New) != 1 || ch.New[0].ID != "B" {
		t.Fatalf("New = %+v, want [B]", ch.New)
	}
	if len(ch.Removed) != 0 {
		t.Fatalf("Removed = %+v, want []", ch.Removed)
	}
	if len(ch.PriceChanges) != 1 {
		t.Fatalf("PriceChanges = %+v, want exactly one", ch.PriceChanges)
	}
	pc := ch.PriceChanges[0]
	if pc.Entry.ID != "A" || *pc.PreviousPrice != 100 || *pc.NewPrice != 120 {
		t.Fatalf("unexpected price change: %+v", pc)
	}
	if pc.Delta == nil || *pc.Delta != 20 {
		t.Fatalf("Delta = %v, want +20", pc.Delta)
	}
	if len(ch.AvailabilityChanges) != 0 {
		t.Fatalf("AvailabilityChanges = %+v, want []", ch.AvailabilityChanges)
	}
}

func TestDiffNilPriceTransitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		prev, cur *float64
		change    bool
		nilDelta  bool
	}{
		{name: "null to value", prev: nil, cur: price(100), change: true, nilDelta: true},
		{name: "value to null", prev: price(100), cur: nil, change: true, nilDelta: true},
		{name: "both null", prev: nil, cur: nil, change: false},
		{name: "same value", prev: price(100), cur: price(100), change: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch := Diff(
				[]catalog.Entry{entry("A", tt.cur, catalog.StatusAvailable)},
				[]catalog.Entry{entry("A", tt.prev, catalog.StatusAvailable)},
			)
			if got := len(ch.PriceChanges) == 1; got != tt.change {
				t.Fatalf("change detected = %v, want %v", got, tt.change)
			}
			if tt.change && tt.nilDelta && ch.PriceChanges[0].Delta != nil {
				t.Fatalf("Delta = %v, want nil when a side has no price", *ch.PriceChanges[0].Delta)
			}
		})
	}
}

func TestDiffAvailabilityChange(t *testing.T) {
	t.Parallel()
	previous := []catalog.Entry{entry("A", nil, catalog.StatusAvailable)}
	current := []catalog.Entry{entry("A", nil, catalog.StatusOutOfStock)}

	ch := Diff(current, previous)
	if len(ch.AvailabilityChanges) != 1 {
		t.Fatalf("AvailabilityChanges = %+v, want exactly one", ch.AvailabilityChanges)
	}
	ac := ch.AvailabilityChanges[0]
	if ac.Previous != catalog.StatusAvailable || ac.New != catalog.StatusOutOfStock {
		t.Fatalf("transition = %q -> %q", ac.Previous, ac.New)
	}
}

func TestDiffSharedIDInBothCategories(t *testing.T) {
	t.Parallel()
	previous := []catalog.Entry{entry("A", price(100), catalog.StatusAvailable)}
	current := []catalog.Entry{entry("A", price(90), catalog.StatusSoldOut)}

	ch := Diff(current, previous)
	if len(ch.PriceChanges) != 1 || len(ch.AvailabilityChanges) != 1 {
		t.Fatalf("want one of each, got %+v", ch)
	}
	if len(ch.New) != 0 || len(ch.Removed) != 0 {
		t.Fatal("a shared ID must never appear in New or Removed")
	}
}

func TestDiffRenameIgnored(t *testing.T) {
	t.Parallel()
	prev := entry("A", price(100), catalog.StatusAvailable)
	cur := prev
	cur.Name = "Renamed"
	cur.Colorway = "new colorway"

	ch := Diff([]catalog.Entry{cur}, []catalog.Entry{prev})
	if !ch.Empty() {
		t.Fatalf("name/colorway drift must not register as change: %+v", ch)
	}
}

func TestDiffEmptyCurrent(t *testing.T) {
	t.Parallel()
	previous := []catalog.Entry{
		entry("A", price(100), catalog.StatusAvailable),
		entry("B", price(200), catalog.StatusAvailable),
	}
	ch := Diff(nil, previous)
	if len(ch.Removed) != 2 {
		t.Fatalf("Removed = %+v, want all previous entries", ch.Removed)
	}
	if len(ch.New) != 0 || len(ch.PriceChanges) != 0 || len(ch.AvailabilityChanges) != 0 {
		t.Fatalf("unexpected changes: %+v", ch)
	}
}
