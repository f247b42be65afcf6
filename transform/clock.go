package transform

import "time"

// Clock supplies the wall-clock time stamped on warehouse rows. Injecting
// it keeps the transforms deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }
