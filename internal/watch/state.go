package watch

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the persisted-state schema version.
const SchemaVersion = 1

// Timestamp is a tolerant RFC3339 timestamp. Missing, null, or malformed
// values decode as zero instead of failing the whole document.
type Timestamp struct {
	time.Time
}

func stamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	*t = Timestamp{parsed.UTC()}
	return nil
}

// SizeState is the durable tracking state for one (product, size) pair.
type SizeState struct {
	// InStock is the last observed value; nil means never observed.
	InStock             *bool             `json:"in_stock,omitempty"`
	InStockColours      []string          `json:"in_stock_colours"`
	StockStatusByColour map[string]string `json:"stock_status_by_colour"`
	SizeIDs             []string          `json:"size_ids"`
	LastChecked         Timestamp         `json:"last_checked"`
	// LastChange is when InStock last flipped (or was first observed).
	LastChange Timestamp `json:"last_change"`
	// NotifyCount counts alerts sent for the current episode. It resets to 0
	// on every InStock flip and only ever grows between flips.
	NotifyCount    int       `json:"notify_count"`
	LastNotifiedAt Timestamp `json:"last_notified_at"`
}

// RecordNotified commits a successful send: bump the episode counter and
// stamp the send time. Callers must invoke this only after the transport
// reported success, so a failed send leaves the alert slot available.
func (s *SizeState) RecordNotified(now time.Time) {
	s.NotifyCount++
	s.LastNotifiedAt = stamp(now)
}

// ProductState groups the size states of one product.
type ProductState struct {
	Name        string                `json:"name"`
	ProductID   string                `json:"product_id"`
	LastChecked Timestamp             `json:"last_checked"`
	Sizes       map[string]*SizeState `json:"sizes"`
}

// ErrorNotifyState remembers the last error digest that was delivered.
type ErrorNotifyState struct {
	LastSignature  string    `json:"last_signature"`
	LastNotifiedAt Timestamp `json:"last_notified_at"`
}

// PersistedState is the whole durable document, keyed by product URL.
type PersistedState struct {
	Version     int                      `json:"version"`
	Products    map[string]*ProductState `json:"products"`
	UpdatedAt   Timestamp                `json:"updated_at,omitempty"`
	ErrorNotify *ErrorNotifyState        `json:"error_notify,omitempty"`
}

// NewPersistedState returns the empty default document (schema v1).
func NewPersistedState() *PersistedState {
	return &PersistedState{
		Version:  SchemaVersion,
		Products: map[string]*ProductState{},
	}
}

// normalize repairs a freshly decoded document so the rest of the code can
// assume maps exist and the version is set (tolerant-load contract).
func (s *PersistedState) normalize() {
	if s.Version == 0 {
		s.Version = SchemaVersion
	}
	if s.Products == nil {
		s.Products = map[string]*ProductState{}
	}
	for url, p := range s.Products {
		if p == nil {
			p = &ProductState{}
			s.Products[url] = p
		}
		if p.Sizes == nil {
			p.Sizes = map[string]*SizeState{}
		}
		for label, st := range p.Sizes {
			if st == nil {
				p.Sizes[label] = &SizeState{}
			}
		}
	}
}

// DecodePersistedState parses a state document, degrading to the empty
// default on any structural problem. It never returns an error: losing a
// corrupt state file must not stop the watcher.
func DecodePersistedState(b []byte) *PersistedState {
	var s PersistedState
	if err := json.Unmarshal(b, &s); err != nil {
		return NewPersistedState()
	}
	s.normalize()
	return &s
}

// SizeStateFor returns the tracking state for (productURL, sizeLabel), or nil
// if the pair has never been observed.
func (s *PersistedState) SizeStateFor(productURL, sizeLabel string) *SizeState {
	p := s.Products[productURL]
	if p == nil {
		return nil
	}
	return p.Sizes[sizeLabel]
}

// PreviousInStock returns the last observed in-stock value, or nil if the
// pair has never been observed.
func (s *PersistedState) PreviousInStock(productURL, sizeLabel string) *bool {
	st := s.SizeStateFor(productURL, sizeLabel)
	if st == nil {
		return nil
	}
	return st.InStock
}

// Apply records an observation and returns the in-stock value from before the
// update (nil on first observation).
//
// The notify-count reset happens here, inside the same update that records
// the new boolean. Keeping the reset and the flip in one step is what keeps
// NotifyCount in sync with LastChange across episodes.
func (s *PersistedState) Apply(r StockResult, now time.Time) (previous *bool) {
	if s.Products == nil {
		s.Products = map[string]*ProductState{}
	}
	p := s.Products[r.ProductURL]
	if p == nil {
		p = &ProductState{Sizes: map[string]*SizeState{}}
		s.Products[r.ProductURL] = p
	}
	if p.Sizes == nil {
		p.Sizes = map[string]*SizeState{}
	}
	p.Name = r.Name
	p.ProductID = r.ProductID
	p.LastChecked = stamp(now)

	st := p.Sizes[r.SizeLabel]
	if st == nil {
		st = &SizeState{}
		p.Sizes[r.SizeLabel] = st
	}
	previous = st.InStock

	cur := r.InStock
	st.InStock = &cur
	st.InStockColours = append([]string(nil), r.InStockColours...)
	st.StockStatusByColour = copyStringMap(r.StockStatusByColour)
	st.SizeIDs = append([]string(nil), r.SizeIDs...)
	st.LastChecked = stamp(now)

	switch {
	case previous == nil:
		if st.LastChange.IsZero() {
			st.LastChange = stamp(now)
		}
	case *previous != cur:
		st.LastChange = stamp(now)
		st.NotifyCount = 0
	}
	return previous
}

// RecordErrorDigestSent persists error-digest backoff metadata. Called only
// after a successful digest send.
func (s *PersistedState) RecordErrorDigestSent(signature string, now time.Time) {
	if s.ErrorNotify == nil {
		s.ErrorNotify = &ErrorNotifyState{}
	}
	s.ErrorNotify.LastSignature = signature
	s.ErrorNotify.LastNotifiedAt = stamp(now)
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// StateStore is the durable home of a PersistedState.
//
// Load never fails: a missing or unreadable store yields the empty default
// and existed=false. Save must be atomic — a concurrent reader sees either
// the old document or the new one, never a half-written file.
type StateStore interface {
	Load() (state *PersistedState, existed bool)
	Save(state *PersistedState) error
	Close() error
}
