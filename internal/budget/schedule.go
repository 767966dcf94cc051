package budget

import "time"

// Period boundary math. Weekly periods are fixed 7-day windows from the plan
// start. Monthly periods preserve the start's calendar day-of-month, clamped
// to the last day of shorter months: a plan started Jan 31 rolls over on the
// last day of February and again on Mar 31.

// PeriodStart returns the start of period index (0-based) for a plan
// starting at start.
func PeriodStart(start time.Time, unit PeriodUnit, index int) time.Time {
	switch unit {
	case PeriodWeekly:
		return start.AddDate(0, 0, 7*index)
	default:
		return addMonthsClamped(start, index)
	}
}

// PeriodBounds returns [start, end) of the period at index.
func PeriodBounds(start time.Time, unit PeriodUnit, index int) (time.Time, time.Time) {
	return PeriodStart(start, unit, index), PeriodStart(start, unit, index+1)
}

// PeriodIndexAt returns the index of the period containing asOf, or -1 when
// asOf precedes the plan start.
func PeriodIndexAt(start time.Time, unit PeriodUnit, asOf time.Time) int {
	if asOf.Before(start) {
		return -1
	}
	switch unit {
	case PeriodWeekly:
		days := int(asOf.Sub(start).Hours() / 24)
		return days / 7
	default:
		idx := (asOf.Year()-start.Year())*12 + int(asOf.Month()) - int(start.Month())
		if idx > 0 && asOf.Before(PeriodStart(start, unit, idx)) {
			idx--
		}
		return idx
	}
}

// addMonthsClamped advances by whole months keeping the original day of
// month, clamping to the last day when the target month is shorter. Always
// steps from the original date so a clamp never compounds.
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
