// Package trackertest provides deterministic time, timer and random sources
// for exercising the tracker without real clocks.
package trackertest

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type timer struct {
	at  time.Time
	seq int
	fn  func()
}

// ManualScheduler queues timers against a ManualClock and fires them in due
// order when Advance is called. Fired funcs run on the caller's goroutine.
type ManualScheduler struct {
	clock *ManualClock

	mu      sync.Mutex
	pending []timer
	seq     int
}

func NewManualScheduler(clock *ManualClock) *ManualScheduler {
	return &ManualScheduler{clock: clock}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending = append(s.pending, timer{at: s.clock.Now().Add(d), seq: s.seq, fn: fn})
}

// Pending reports the number of timers not yet fired.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Advance moves the clock forward by d, firing every timer that falls due,
// including timers scheduled by fired funcs.
func (s *ManualScheduler) Advance(d time.Duration) int {
	deadline := s.clock.Now().Add(d)
	fired := 0
	for {
		t, ok := s.popDue(deadline)
		if !ok {
			break
		}
		if now := s.clock.Now(); t.at.After(now) {
			s.clock.Add(t.at.Sub(now))
		}
		t.fn()
		fired++
	}
	if now := s.clock.Now(); deadline.After(now) {
		s.clock.Add(deadline.Sub(now))
	}
	return fired
}

// RunUntilIdle fires timers step by step until none remain or limit is hit.
func (s *ManualScheduler) RunUntilIdle(step time.Duration, limit int) int {
	fired := 0
	for i := 0; i < limit && s.Pending() > 0; i++ {
		fired += s.Advance(step)
	}
	return fired
}

func (s *ManualScheduler) popDue(deadline time.Time) (timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return timer{}, false
	}
	sort.Slice(s.pending, func(i, j int) bool {
		if s.pending[i].at.Equal(s.pending[j].at) {
			return s.pending[i].seq < s.pending[j].seq
		}
		return s.pending[i].at.Before(s.pending[j].at)
	})
	next := s.pending[0]
	if next.at.After(deadline) {
		return timer{}, false
	}
	s.pending = s.pending[1:]
	return next, true
}

// Sequence replays fixed values in order and repeats the last one.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	pos    int
}

func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.pos]
	if s.pos < len(s.values)-1 {
		s.pos++
	}
	return v
}

// Steps returns a StepFunc-compatible func replaying steps, then repeating
// the last one.
func Steps(steps ...int) func() int {
	var mu sync.Mutex
	pos := 0
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		if len(steps) == 0 {
			return 0
		}
		v := steps[pos]
		if pos < len(steps)-1 {
			pos++
		}
		return v
	}
}
