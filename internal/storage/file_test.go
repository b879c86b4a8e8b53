package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	state, existed := store.Load()
	if existed {
		t.Fatal("fresh store reported existed=true")
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state.Apply(watch.StockResult{
		ProductURL:     "https://example.com/shop/p",
		ProductID:      "p1",
		Name:           "Beta Jacket",
		SizeLabel:      "8",
		InStock:        true,
		InStockColours: []string{"Black"},
	}, now)
	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, existed := store.Load()
	if !existed {
		t.Fatal("saved store reported existed=false")
	}
	st := reloaded.SizeStateFor("https://example.com/shop/p", "8")
	if st == nil || st.InStock == nil || !*st.InStock {
		t.Fatalf("state lost in round trip: %+v", st)
	}
}

func TestFileStoreCorruptFileDegradesToEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{definitely not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	state, existed := store.Load()
	if !existed {
		t.Fatal("corrupt file should still count as existed")
	}
	if state == nil || len(state.Products) != 0 {
		t.Fatalf("corrupt file should decode to the empty default, got %+v", state)
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "second" {
		t.Fatalf("content = %q, want %q", b, "second")
	}
	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries, want 1", len(entries))
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "bolt", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
