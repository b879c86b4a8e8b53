package watch

import (
	"fmt"
	"time"
)

// Policy decides whether an observation becomes an alert.
//
// The decision depends on the previous in-stock value, the counters persisted
// for the pair, and three knobs:
//
//   - NotifyOnFirstRun: alert when a pair is first seen already in stock.
//   - MaxPerItem: alerts allowed per restock episode (values <= 0 act as 1).
//   - RepeatInterval: minimum spacing between repeat alerts; 0 disables
//     spacing.
type Policy struct {
	NotifyOnFirstRun bool
	MaxPerItem       int
	RepeatInterval   time.Duration
}

func (p Policy) maxPerItem() int {
	if p.MaxPerItem <= 0 {
		return 1
	}
	return p.MaxPerItem
}

// ShouldNotify evaluates the decision for one observation.
//
// previous is the in-stock value from before this observation's state update
// (nil = never observed); st is the pair's state after the update, so
// NotifyCount is already reset when the observation flipped the boolean.
func (p Policy) ShouldNotify(previous *bool, r StockResult, st *SizeState, now time.Time) bool {
	if !r.InStock {
		return false
	}

	count := 0
	if st != nil {
		count = st.NotifyCount
	}

	switch {
	case previous == nil:
		return p.NotifyOnFirstRun && count < p.maxPerItem()
	case !*previous:
		// Fresh restock. The flip reset the counter, so this fires unless
		// earlier alerts in this episode already exhausted the budget.
		return count < p.maxPerItem()
	default:
		return p.shouldRepeat(count, st, now)
	}
}

// AlertNote annotates an event with its position in the episode budget,
// e.g. "Alert 2/3". Empty when only one alert per episode is allowed.
func (p Policy) AlertNote(st *SizeState) string {
	limit := p.maxPerItem()
	if limit <= 1 {
		return ""
	}
	count := 0
	if st != nil {
		count = st.NotifyCount
	}
	return fmt.Sprintf("Alert %d/%d", count+1, limit)
}

// shouldRepeat gates reminder alerts within a steady in-stock episode.
func (p Policy) shouldRepeat(count int, st *SizeState, now time.Time) bool {
	limit := p.maxPerItem()
	if limit <= 1 {
		return false
	}
	if count < 1 || count >= limit {
		return false
	}
	if p.RepeatInterval <= 0 {
		return true
	}
	if st == nil || st.LastNotifiedAt.IsZero() {
		return true
	}
	return now.Sub(st.LastNotifiedAt.Time) >= p.RepeatInterval
}
