package watch

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodePersistedStateTolerance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty input", doc: ""},
		{name: "garbage", doc: "{not json"},
		{name: "wrong shape", doc: `[1,2,3]`},
		{name: "null maps", doc: `{"version":1,"products":null}`},
		{name: "null product", doc: `{"version":1,"products":{"u":null}}`},
		{name: "malformed timestamp", doc: `{"version":1,"products":{"u":{"sizes":{"8":{"last_checked":"not-a-time"}}}}}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := DecodePersistedState([]byte(tt.doc))
			if s == nil {
				t.Fatal("DecodePersistedState returned nil")
			}
			if s.Version != SchemaVersion {
				t.Fatalf("Version = %d, want %d", s.Version, SchemaVersion)
			}
			if s.Products == nil {
				t.Fatal("Products map not initialized")
			}
			for _, p := range s.Products {
				if p == nil || p.Sizes == nil {
					t.Fatal("product entry not normalized")
				}
			}
		})
	}
}

func TestPersistedStateRoundTrip(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewPersistedState()
	s.Apply(StockResult{
		ProductURL:          "https://example.com/shop/p",
		ProductID:           "p1",
		Name:                "Beta Jacket",
		SizeLabel:           "8",
		InStock:             true,
		InStockColours:      []string{"Black"},
		StockStatusByColour: map[string]string{"Black": "InStock"},
		SizeIDs:             []string{"s8"},
	}, now)
	s.RecordErrorDigestSent("sig", now)
	s.UpdatedAt = stamp(now)

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := DecodePersistedState(b)

	st := got.SizeStateFor("https://example.com/shop/p", "8")
	if st == nil {
		t.Fatal("size state lost in round trip")
	}
	if st.InStock == nil || !*st.InStock {
		t.Fatal("in_stock lost in round trip")
	}
	if st.LastChange.Time != now {
		t.Fatalf("LastChange = %v, want %v", st.LastChange.Time, now)
	}
	if got.ErrorNotify == nil || got.ErrorNotify.LastSignature != "sig" {
		t.Fatal("error-notify metadata lost in round trip")
	}
}

func TestApplyFlipSemantics(t *testing.T) {
	t.Parallel()
	s := NewPersistedState()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := func(inStock bool) StockResult {
		return StockResult{ProductURL: "u", ProductID: "p", Name: "p", SizeLabel: "8", InStock: inStock}
	}

	// First observation: previous is nil, LastChange stamped.
	if prev := s.Apply(res(false), now); prev != nil {
		t.Fatalf("previous = %v, want nil on first observation", *prev)
	}
	st := s.SizeStateFor("u", "8")
	firstChange := st.LastChange

	// Same value: no flip, LastChange untouched.
	now = now.Add(time.Minute)
	if prev := s.Apply(res(false), now); prev == nil || *prev {
		t.Fatal("previous should be false")
	}
	if st.LastChange != firstChange {
		t.Fatal("LastChange moved without a flip")
	}

	// Flip to in stock: LastChange moves, counter resets.
	st.NotifyCount = 2
	now = now.Add(time.Minute)
	if prev := s.Apply(res(true), now); prev == nil || *prev {
		t.Fatal("previous should be false before the flip")
	}
	if st.LastChange == firstChange {
		t.Fatal("LastChange should move on a flip")
	}
	if st.NotifyCount != 0 {
		t.Fatalf("NotifyCount = %d, want 0 after flip", st.NotifyCount)
	}

	// Flip back resets again.
	st.NotifyCount = 1
	now = now.Add(time.Minute)
	s.Apply(res(false), now)
	if st.NotifyCount != 0 {
		t.Fatalf("NotifyCount = %d, want 0 after flip to out of stock", st.NotifyCount)
	}
}

func TestTimestampTolerantDecode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		zero bool
	}{
		{name: "rfc3339", in: `"2026-03-01T12:00:00Z"`, zero: false},
		{name: "null", in: `null`, zero: true},
		{name: "empty", in: `""`, zero: true},
		{name: "garbage", in: `"yesterday"`, zero: true},
		{name: "number", in: `1234`, zero: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ts.IsZero() != tt.zero {
				t.Fatalf("IsZero = %v, want %v (decoded %v)", ts.IsZero(), tt.zero, ts.Time)
			}
		})
	}
}
