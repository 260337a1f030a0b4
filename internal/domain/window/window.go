// Package window implements the temporal aggregator: pure calendar-window
// selection over id->timestamp maps.
//
// Windows are independent and overlapping; the same entry can land in 7days,
// 30days and All at once. Callers evaluate a whole bundle against a single
// now so the lists stay mutually consistent.
package window

import (
	"fmt"
	"time"
)

// lastMonthOffsetDays approximates "last month" as the month of now minus 30
// days. Calendar-incorrect for months that are not 30 days long; kept to match
// the established query semantics.
const lastMonthOffsetDays = 30

type kind int

const (
	kindAll kind = iota
	kindToday
	kindYesterday
	kindThisMonth
	kindLastMonth
	kindLastNDays
)

// Selector names a time window. The zero value selects everything.
type Selector struct {
	kind kind
	days int
}

// All selects every entry.
func All() Selector { return Selector{kind: kindAll} }

// Today selects entries from the current calendar day.
func Today() Selector { return Selector{kind: kindToday} }

// Yesterday selects entries from the previous calendar day.
func Yesterday() Selector { return Selector{kind: kindYesterday} }

// ThisMonth selects entries from the current calendar month.
func ThisMonth() Selector { return Selector{kind: kindThisMonth} }

// LastMonth selects entries from the month of now minus 30 days.
func LastMonth() Selector { return Selector{kind: kindLastMonth} }

// LastNDays selects entries with timestamp >= now minus n days, inclusive.
func LastNDays(n int) (Selector, error) {
	if n <= 0 {
		return Selector{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidWindow, n)
	}
	return Selector{kind: kindLastNDays, days: n}, nil
}

// String returns the selector's canonical name.
func (s Selector) String() string {
	switch s.kind {
	case kindToday:
		return "today"
	case kindYesterday:
		return "yesterday"
	case kindThisMonth:
		return "thisMonth"
	case kindLastMonth:
		return "lastMonth"
	case kindLastNDays:
		return fmt.Sprintf("%ddays", s.days)
	default:
		return "all"
	}
}

// Contains reports whether a timestamp falls inside the window, evaluated
// against the supplied now. Callers must pass the same now for every entry of
// one query to avoid boundary drift mid-bundle.
func (s Selector) Contains(ts, now time.Time) bool {
	switch s.kind {
	case kindToday:
		return sameDay(ts, now)
	case kindYesterday:
		return sameDay(ts, now.AddDate(0, 0, -1))
	case kindThisMonth:
		return sameMonth(ts, now)
	case kindLastMonth:
		return sameMonth(ts, now.AddDate(0, 0, -lastMonthOffsetDays))
	case kindLastNDays:
		return !ts.Before(now.AddDate(0, 0, -s.days))
	default:
		return true
	}
}

// Filter returns the subset of entries whose timestamps the selector contains.
func Filter(entries map[string]time.Time, s Selector, now time.Time) map[string]time.Time {
	out := make(map[string]time.Time)
	for id, ts := range entries {
		if s.Contains(ts, now) {
			out[id] = ts
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
