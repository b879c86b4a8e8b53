package watch

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

const (
	// maxHashedErrors bounds how many entries feed the signature; past this
	// point additional errors don't change the digest identity.
	maxHashedErrors = 20
	// MaxReportedErrors bounds how many entries a digest message surfaces.
	MaxReportedErrors = 10
)

// ErrorEntry is one recorded fetch/parse failure.
type ErrorEntry struct {
	Context string
	Message string
}

// ErrorAggregator collects failures across one polling cycle. The zero value
// is ready to use. Not safe for concurrent use; the cycle is sequential.
type ErrorAggregator struct {
	entries []ErrorEntry
}

func (a *ErrorAggregator) Record(context, message string) {
	a.entries = append(a.entries, ErrorEntry{Context: context, Message: message})
}

func (a *ErrorAggregator) Empty() bool { return len(a.entries) == 0 }

func (a *ErrorAggregator) Len() int { return len(a.entries) }

// Entries returns all recorded failures in order.
func (a *ErrorAggregator) Entries() []ErrorEntry {
	return append([]ErrorEntry(nil), a.entries...)
}

// Signature returns a deterministic hash identifying this error set, so an
// identical set of failures in consecutive cycles maps to the same digest.
// Only the first maxHashedErrors entries contribute.
func (a *ErrorAggregator) Signature() string {
	h := sha1.New()
	n := len(a.entries)
	if n > maxHashedErrors {
		n = maxHashedErrors
	}
	for _, e := range a.entries[:n] {
		h.Write([]byte(e.Context))
		h.Write([]byte{'\n'})
		h.Write([]byte(e.Message))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShouldSendDigest applies the digest backoff: send when the error set
// changed, when throttling is disabled, or when the repeat interval since the
// last send of this same set has elapsed.
func ShouldSendDigest(meta *ErrorNotifyState, signature string, repeatInterval time.Duration, now time.Time) bool {
	if meta == nil || meta.LastSignature != signature {
		return true
	}
	if repeatInterval <= 0 {
		return true
	}
	if meta.LastNotifiedAt.IsZero() {
		return true
	}
	return now.Sub(meta.LastNotifiedAt.Time) >= repeatInterval
}
