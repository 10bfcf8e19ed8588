package engine

import "time"

// Clock supplies wall-clock time for updatedAt stamping.
//
// updatedAt is the tie-breaker for migration decisions, so tests need to
// control it; production uses SystemClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the production wall clock.
func SystemClock() Clock { return systemClock{} }

// Timestamp formats t as the ISO 8601 UTC string stored in updatedAt.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
