package catalog

import (
	"strings"
	"testing"
	"time"
)

const samplePage = `<html><body>
<div class="product-grid-list-item">
  <a href="/ca/en/product/garden-party-36-H076GA1/"><span class="product-item-name">Garden Party 36</span></a>
  <span class="product-item-price">CA$4,950</span>
  <span class="product-item-colors">2 colors</span>
  <span>Available</span>
</div>
<div class="product-grid-list-item">
  <a href="https://shop.example.com/product/evelyne-29-H056275/"><span class="product-title">Evelyne 29</span></a>
  <span class="product-item-price"></span>
  <span>Sold out</span>
</div>
<div class="product-grid-list-item">
  <span class="product-item-price">CA$1,200</span>
</div>
</body></html>`

func TestParseEntries(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries, err := ParseEntries(strings.NewReader(samplePage), "https://shop.example.com/ca/en/category/bags/", now)
	if err != nil {
		t.Fatalf("ParseEntries error: %v", err)
	}
	// Third card has no name and must be skipped.
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.ID != "garden-party-36-H076GA1" {
		t.Fatalf("ID = %q", first.ID)
	}
	if first.Name != "Garden Party 36" {
		t.Fatalf("Name = %q", first.Name)
	}
	if first.Price == nil || *first.Price != 4950 {
		t.Fatalf("Price = %v, want 4950", first.Price)
	}
	if first.Availability != StatusAvailable {
		t.Fatalf("Availability = %q", first.Availability)
	}
	if !strings.HasPrefix(first.Link, "https://shop.example.com/") {
		t.Fatalf("relative link not absolutized: %q", first.Link)
	}
	if !first.LastSeen.Equal(now) {
		t.Fatalf("LastSeen = %v", first.LastSeen)
	}

	second := entries[1]
	if second.Price != nil {
		t.Fatalf("expected nil price for card without price text, got %v", *second.Price)
	}
	if second.Availability != StatusSoldOut {
		t.Fatalf("Availability = %q, want sold_out", second.Availability)
	}
	if second.ID != "evelyne-29-H056275" {
		t.Fatalf("ID = %q", second.ID)
	}
}

func TestParseEntriesEmptyPage(t *testing.T) {
	t.Parallel()
	entries, err := ParseEntries(strings.NewReader("<html><body><p>maintenance</p></body></html>"), "https://shop.example.com/", time.Now())
	if err != nil {
		t.Fatalf("ParseEntries error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestClassifyAvailability(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want Availability
	}{
		{"Garden Party Available now", StatusAvailable},
		{"Evelyne out of stock", StatusOutOfStock},
		{"Kelly sold out", StatusSoldOut},
		{"Picotin 18", StatusUnknown},
	}
	for _, tt := range tests {
		if got := classifyAvailability(tt.text); got != tt.want {
			t.Fatalf("classifyAvailability(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestEntryID(t *testing.T) {
	t.Parallel()
	if got := entryID("https://shop.example.com/product/abc-123/", 0); got != "abc-123" {
		t.Fatalf("entryID = %q", got)
	}
	if got := entryID("", 7); got != "product-7" {
		t.Fatalf("entryID fallback = %q", got)
	}
}
