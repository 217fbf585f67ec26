package tracker

import (
	"fmt"
	"sync"
	"time"

	"research-tracker/internal/model"
)

// Store owns the job history. Jobs are kept in creation order internally and
// read back newest first.
type Store struct {
	mu     sync.RWMutex
	jobs   []model.Job
	index  map[string]int
	subs   map[int]chan struct{}
	nextID int
	clock  Clock
}

func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = SystemClock()
	}
	return &Store{
		jobs:  make([]model.Job, 0, 16),
		index: make(map[string]int),
		subs:  make(map[int]chan struct{}),
		clock: clock,
	}
}

// InsertAtHead adds job as the newest entry.
func (s *Store) InsertAtHead(job model.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.index[job.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("insert job %s: %w", job.ID, ErrDuplicateID)
	}
	s.index[job.ID] = len(s.jobs)
	s.jobs = append(s.jobs, job.Clone())
	s.mu.Unlock()

	s.notify()
	return nil
}

// Update applies mutate to a copy of the job and commits the copy only if the
// result is still a valid successor of the current record. Completed jobs are
// never handed to mutate.
func (s *Store) Update(id string, mutate func(*model.Job) error) (model.Job, error) {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return model.Job{}, fmt.Errorf("update job %s: %w", id, ErrNotFound)
	}
	current := s.jobs[pos]
	if current.IsCompleted() {
		s.mu.Unlock()
		return current.Clone(), fmt.Errorf("update job %s: %w", id, ErrJobCompleted)
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		s.mu.Unlock()
		return current.Clone(), fmt.Errorf("update job %s: %w", id, err)
	}
	if err := checkSuccessor(current, next); err != nil {
		s.mu.Unlock()
		return current.Clone(), fmt.Errorf("update job %s: %w", id, err)
	}
	s.jobs[pos] = next
	s.mu.Unlock()

	s.notify()
	return next.Clone(), nil
}

func checkSuccessor(prev, next model.Job) error {
	if next.ID != prev.ID {
		return fmt.Errorf("id is immutable (%s -> %s)", prev.ID, next.ID)
	}
	if next.Name != prev.Name {
		return fmt.Errorf("name is immutable")
	}
	if !next.StartedAt.Equal(prev.StartedAt) {
		return fmt.Errorf("started_at is immutable")
	}
	if !model.CanTransition(prev.Status, next.Status) {
		return fmt.Errorf("invalid status transition %q -> %q", prev.Status, next.Status)
	}
	if next.Progress < prev.Progress {
		return fmt.Errorf("progress moved backwards (%d -> %d)", prev.Progress, next.Progress)
	}
	return next.Validate()
}

func (s *Store) Get(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return model.Job{}, false
	}
	return s.jobs[pos].Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Jobs returns a copy of the history, newest first.
func (s *Store) Jobs() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Job, 0, len(s.jobs))
	for i := len(s.jobs) - 1; i >= 0; i-- {
		out = append(out, s.jobs[i].Clone())
	}
	return out
}

// Snapshot returns an immutable copy of the history with status totals.
func (s *Store) Snapshot() model.Snapshot {
	jobs := s.Jobs()
	snap := model.Snapshot{
		GeneratedAt: s.clock.Now().UTC().Format(time.RFC3339),
		Total:       len(jobs),
		Jobs:        jobs,
	}
	for _, j := range jobs {
		switch j.Status {
		case model.StatusInProgress:
			snap.InProgress++
		case model.StatusCompleted:
			snap.Completed++
		}
	}
	return snap
}

// Subscribe returns a channel that receives a value after changes. Bursts of
// changes coalesce into one notification. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
