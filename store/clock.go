package store

import "time"

// Clock provides the wall-clock time used to stamp and name records.
// It is an explicit dependency so tests can substitute a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the process-local wall clock.
func SystemClock() Clock { return systemClock{} }
