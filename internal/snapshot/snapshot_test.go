package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bagwatch/internal/catalog"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	st, err := NewFileStore(filepath.Join(t.TempDir(), "previous-products.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	entries, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "previous-products.json")
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	p := 4950.0
	in := []catalog.Entry{{
		ID: "garden-party-36", Name: "Garden Party 36",
		Price: &p, PriceText: "CA$4,950",
		Availability: catalog.StatusAvailable,
		Link:         "https://shop.example.com/product/garden-party-36",
		LastSeen:     time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}}
	if err := st.Replace(context.Background(), in); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	out, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || out[0].ID != "garden-party-36" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out[0].Price == nil || *out[0].Price != 4950 {
		t.Fatalf("price mismatch: %v", out[0].Price)
	}

	// Replace wholesale: the old entry is gone.
	if err := st.Replace(context.Background(), []catalog.Entry{{ID: "evelyne-29"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	out, err = st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || out[0].ID != "evelyne-29" {
		t.Fatalf("expected full replacement, got %+v", out)
	}
}

func TestFileStoreNoTempLeftBehind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := st.Replace(context.Background(), nil); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "snap.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := st.Load(context.Background()); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}
