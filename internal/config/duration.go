package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional duration string from the config.
// Empty means "unset" and parses to 0; negative durations are rejected
// because every duration knob here is a timeout or an interval.
func ParseDurationField(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration (want e.g. \"30s\", \"2h30m\"): %w", field, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// ParseDurationOrDefault resolves an optional duration, substituting def only
// when the field is unset. An explicit "0s" stays 0, so zero-interval knobs
// ("always resend") remain reachable from config.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return ParseDurationField(field, raw)
}
