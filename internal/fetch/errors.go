package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. Parse failures are distinguished from
// transport failures for error-message clarity; both feed the same
// aggregated digest.
type Kind int

const (
	KindNetwork Kind = iota
	KindHTTP
	KindNotFound
	KindRateLimited
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure for one URL.
type Error struct {
	Kind   Kind
	URL    string
	Status int // HTTP status when known, else 0
	Err    error
	Msg    string
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindParse:
		return "parse failure: " + e.message()
	case e.Status > 0:
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.message())
	case e.Kind == KindNetwork:
		return "request error: " + e.message()
	default:
		return e.message()
	}
}

func (e *Error) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from any error chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
