package timeutil

import "time"

// Precision is the resolution timestamps are persisted at (Postgres timestamptz)
const Precision = time.Microsecond

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// NowStored returns the current UTC time at storage precision
func NowStored() time.Time {
	return Now().Truncate(Precision)
}

// NowAfter returns the current UTC time truncated to storage precision, moved
// forward to one Precision step past prior when the clock has not advanced.
// Record stamps produced this way are strictly monotonic per record.
func NowAfter(prior time.Time) time.Time {
	now := NowStored()
	if prior.IsZero() {
		return now
	}
	if floor := prior.UTC().Truncate(Precision).Add(Precision); now.Before(floor) {
		return floor
	}
	return now
}
