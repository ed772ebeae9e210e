package domain

import "time"

// Interval is a half-open time interval [StartsAt, EndsAt).
type Interval struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// Valid reports whether the interval is well-formed: both endpoints set and
// start strictly before end.
func (i Interval) Valid() bool {
	return !i.StartsAt.IsZero() && !i.EndsAt.IsZero() && i.StartsAt.Before(i.EndsAt)
}

// Overlaps reports whether two half-open intervals conflict. Touching
// endpoints do not conflict: [9:00,9:30) and [9:30,10:00) are compatible.
func (i Interval) Overlaps(other Interval) bool {
	return i.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(i.EndsAt)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.EndsAt.Sub(i.StartsAt)
}
