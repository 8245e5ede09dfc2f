package domain

import "time"

// NextTrigger computes the next instant, strictly after now, at which a
// definition with the given recurrence should fire. The time of day is
// interpreted in loc. dayOfWeek (0 = Sunday) is only consulted for Weekly.
//
// Days are advanced on the wall clock, so across a DST change the result is
// still at the configured local time rather than exactly 24h later.
func NextTrigger(tod TimeOfDay, kind RecurrenceKind, dayOfWeek int, loc *time.Location, now time.Time) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	localNow := now.In(loc)
	candidate := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), tod.Hour, tod.Minute, 0, 0, loc)

	switch kind {
	case Weekly:
		delta := (dayOfWeek - int(candidate.Weekday()) + 7) % 7
		if delta == 0 && !candidate.After(now) {
			delta = 7
		}
		candidate = candidate.AddDate(0, 0, delta)
	default:
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}

	// A DST gap can pull the wall-clock time backwards; keep the result in the future.
	for !candidate.After(now) {
		step := 1
		if kind == Weekly {
			step = 7
		}
		candidate = candidate.AddDate(0, 0, step)
	}
	return candidate.UTC()
}
