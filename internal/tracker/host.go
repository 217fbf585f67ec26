package tracker

import "time"

// Clock is the time source supplied by the host.
type Clock interface {
	Now() time.Time
}

// Scheduler is the periodic-timer primitive supplied by the host. fn must run
// to completion before any other scheduled fn starts.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// RandomSource yields uniform numbers in [0,1). *rand.Rand from math/rand/v2
// satisfies it.
type RandomSource interface {
	Float64() float64
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock. time.Now carries a monotonic reading.
func SystemClock() Clock { return systemClock{} }
