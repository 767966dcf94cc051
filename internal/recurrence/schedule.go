// Package recurrence posts scheduled transactions from frequency
// descriptors: daily, weekly, biweekly, monthly, quarterly, yearly or
// custom:N for an N-day interval.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is a parsed frequency descriptor.
type Frequency struct {
	Unit  string
	Every int
}

// Descriptor units.
const (
	UnitDaily     = "daily"
	UnitWeekly    = "weekly"
	UnitBiweekly  = "biweekly"
	UnitMonthly   = "monthly"
	UnitQuarterly = "quarterly"
	UnitYearly    = "yearly"
	UnitCustom    = "custom"
)

// ErrBadFrequency indicates an unparseable descriptor.
var ErrBadFrequency = errors.New("recurrence: bad frequency descriptor")

// ParseFrequency parses a frequency descriptor string.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case UnitDaily, UnitWeekly, UnitBiweekly, UnitMonthly, UnitQuarterly, UnitYearly:
		return Frequency{Unit: s}, nil
	}
	if rest, ok := strings.CutPrefix(s, UnitCustom+":"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Frequency{}, fmt.Errorf("%w: %q", ErrBadFrequency, s)
		}
		return Frequency{Unit: UnitCustom, Every: n}, nil
	}
	return Frequency{}, fmt.Errorf("%w: %q", ErrBadFrequency, s)
}

// String renders the descriptor back to its wire form.
func (f Frequency) String() string {
	if f.Unit == UnitCustom {
		return fmt.Sprintf("%s:%d", UnitCustom, f.Every)
	}
	return f.Unit
}

// runAt returns the nth occurrence (0-based) from firstRun. Month-based
// units always step from the first run so day-of-month clamping never
// compounds.
func (f Frequency) runAt(firstRun time.Time, n int) time.Time {
	switch f.Unit {
	case UnitDaily:
		return firstRun.AddDate(0, 0, n)
	case UnitWeekly:
		return firstRun.AddDate(0, 0, 7*n)
	case UnitBiweekly:
		return firstRun.AddDate(0, 0, 14*n)
	case UnitMonthly:
		return addMonthsClamped(firstRun, n)
	case UnitQuarterly:
		return addMonthsClamped(firstRun, 3*n)
	case UnitYearly:
		return addMonthsClamped(firstRun, 12*n)
	default:
		return firstRun.AddDate(0, 0, f.Every*n)
	}
}

// NextRunAfter returns the first occurrence strictly after the given time,
// advancing past any number of overdue occurrences.
func (f Frequency) NextRunAfter(firstRun, after time.Time) time.Time {
	if firstRun.After(after) {
		return firstRun
	}
	n := 1
	for {
		run := f.runAt(firstRun, n)
		if run.After(after) {
			return run
		}
		n++
	}
}

// LastDueAt returns the most recent occurrence at or before now, and false
// when the first run is still in the future.
func (f Frequency) LastDueAt(firstRun, now time.Time) (time.Time, bool) {
	if firstRun.After(now) {
		return time.Time{}, false
	}
	due := firstRun
	for n := 1; ; n++ {
		run := f.runAt(firstRun, n)
		if run.After(now) {
			return due, true
		}
		due = run
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
