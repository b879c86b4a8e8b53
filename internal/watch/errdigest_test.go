package watch

import (
	"fmt"
	"testing"
	"time"
)

func TestSignatureStableAcrossCycles(t *testing.T) {
	t.Parallel()
	var a, b ErrorAggregator
	a.Record("[watch-1] https://example.com/p1", "HTTP 404: not found")
	a.Record("[watch-1] https://example.com/p2", "request error: timeout")
	b.Record("[watch-1] https://example.com/p1", "HTTP 404: not found")
	b.Record("[watch-1] https://example.com/p2", "request error: timeout")

	if a.Signature() != b.Signature() {
		t.Fatal("identical error sets must share a signature")
	}

	b.Record("[watch-2] https://example.com/p3", "parse failure: no payload")
	if a.Signature() == b.Signature() {
		t.Fatal("different error sets must not share a signature")
	}
}

func TestSignatureIgnoresEntriesPastHashLimit(t *testing.T) {
	t.Parallel()
	var a, b ErrorAggregator
	for i := 0; i < 25; i++ {
		msg := fmt.Sprintf("error %d", i)
		a.Record("ctx", msg)
		b.Record("ctx", msg)
	}
	b.Record("ctx", "straggler past the hash window")

	if a.Signature() != b.Signature() {
		t.Fatal("entries past the hash window must not change the signature")
	}
	if a.Len() != 25 || b.Len() != 26 {
		t.Fatalf("Len = %d/%d", a.Len(), b.Len())
	}
}

func TestShouldSendDigest(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sent := &ErrorNotifyState{LastSignature: "sig-a", LastNotifiedAt: stamp(now.Add(-10 * time.Minute))}

	tests := []struct {
		name     string
		meta     *ErrorNotifyState
		sig      string
		interval time.Duration
		want     bool
	}{
		{name: "never sent", meta: nil, sig: "sig-a", interval: time.Hour, want: true},
		{name: "set changed", meta: sent, sig: "sig-b", interval: time.Hour, want: true},
		{name: "same set inside interval", meta: sent, sig: "sig-a", interval: time.Hour, want: false},
		{name: "same set interval elapsed", meta: sent, sig: "sig-a", interval: 5 * time.Minute, want: true},
		{name: "throttling disabled", meta: sent, sig: "sig-a", interval: 0, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldSendDigest(tt.meta, tt.sig, tt.interval, now); got != tt.want {
				t.Fatalf("ShouldSendDigest = %v, want %v", got, tt.want)
			}
		})
	}
}
