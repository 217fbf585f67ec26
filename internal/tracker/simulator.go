package tracker

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"research-tracker/internal/model"
)

const (
	DefaultTickInterval = 10 * time.Second
	DefaultMaxStep      = 15
)

type SimulatorOptions struct {
	Store      *Store
	Scheduler  Scheduler
	Clock      Clock
	Interval   time.Duration
	Step       StepFunc
	Confidence ConfidenceFunc
	Logger     *slog.Logger
}

// Simulator advances in-progress jobs one tick at a time until they complete.
// Each job gets its own chain of ticks; a chain ends on its terminal tick.
type Simulator struct {
	store      *Store
	sched      Scheduler
	clock      Clock
	interval   time.Duration
	step       StepFunc
	confidence ConfidenceFunc
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]bool
}

func NewSimulator(opts SimulatorOptions) *Simulator {
	s := &Simulator{
		store:      opts.Store,
		sched:      opts.Scheduler,
		clock:      opts.Clock,
		interval:   opts.Interval,
		step:       opts.Step,
		confidence: opts.Confidence,
		logger:     opts.Logger,
		active:     make(map[string]bool),
	}
	if s.clock == nil {
		s.clock = SystemClock()
	}
	if s.interval <= 0 {
		s.interval = DefaultTickInterval
	}
	if s.step == nil || s.confidence == nil {
		src := NewRandomSource(0)
		if s.step == nil {
			s.step = UniformStep(src, DefaultMaxStep)
		}
		if s.confidence == nil {
			s.confidence = UniformConfidence(src, model.MinConfidence, model.MaxConfidence)
		}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Start schedules the first tick for id. Starting an already active job does
// nothing.
func (s *Simulator) Start(id string) {
	s.mu.Lock()
	if s.active[id] {
		s.mu.Unlock()
		return
	}
	s.active[id] = true
	s.mu.Unlock()

	s.logger.Debug("research simulation started", "job_id", id, "interval", s.interval)
	s.schedule(id)
}

// Active reports how many jobs still have ticks pending.
func (s *Simulator) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Simulator) schedule(id string) {
	s.sched.AfterFunc(s.interval, func() {
		if s.Tick(id) {
			s.schedule(id)
		}
	})
}

// Tick runs one progress step for id and reports whether another tick should
// follow. State is read from the store at the moment of the tick.
func (s *Simulator) Tick(id string) bool {
	job, err := s.store.Update(id, func(j *model.Job) error {
		step := s.step()
		if step < 0 {
			step = 0
		}
		next := j.Progress + step
		if next >= model.MaxProgress {
			return model.Complete(j, s.clock.Now(), s.confidence())
		}
		j.Progress = next
		return nil
	})

	switch {
	case errors.Is(err, ErrJobCompleted):
		s.logger.Debug("stray tick ignored", "job_id", id)
		s.finish(id)
		return false
	case errors.Is(err, ErrNotFound):
		s.logger.Error("tick for unknown job", "job_id", id, "error", err)
		s.finish(id)
		return false
	case err != nil:
		s.logger.Error("tick rejected", "job_id", id, "error", err)
		s.finish(id)
		return false
	}

	if job.IsCompleted() {
		s.logger.Info("research completed", "job_id", id, "name", job.Name, "confidence", *job.Confidence)
		s.finish(id)
		return false
	}
	s.logger.Debug("research progressed", "job_id", id, "progress", job.Progress)
	return true
}

func (s *Simulator) finish(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}
