package tracker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"research-tracker/internal/model"
)

// Intake turns raw search queries into tracked jobs.
type Intake struct {
	store  *Store
	sim    *Simulator
	clock  Clock
	newID  func() string
	logger *slog.Logger
}

type IntakeOptions struct {
	Store     *Store
	Simulator *Simulator
	Clock     Clock
	// NewID overrides id allocation; uuid v4 when nil.
	NewID  func() string
	Logger *slog.Logger
}

func NewIntake(opts IntakeOptions) *Intake {
	in := &Intake{
		store:  opts.Store,
		sim:    opts.Simulator,
		clock:  opts.Clock,
		newID:  opts.NewID,
		logger: opts.Logger,
	}
	if in.clock == nil {
		in.clock = SystemClock()
	}
	if in.newID == nil {
		in.newID = uuid.NewString
	}
	if in.logger == nil {
		in.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return in
}

// Submit creates an in-progress job for raw and starts simulating it. Blank
// input returns ErrBlankQuery and leaves the store untouched.
func (in *Intake) Submit(raw string) (model.Job, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return model.Job{}, ErrBlankQuery
	}

	job := model.Job{
		ID:        in.newID(),
		Name:      name,
		Status:    model.StatusInProgress,
		Progress:  0,
		StartedAt: in.clock.Now(),
	}
	if err := in.store.InsertAtHead(job); err != nil {
		in.logInvariant("submit research", job.ID, err)
		return model.Job{}, err
	}
	in.logger.Info("research submitted", "job_id", job.ID, "name", job.Name)
	in.sim.Start(job.ID)
	return job, nil
}

// Adopt inserts an already built job and resumes its simulation if it has not
// completed.
func (in *Intake) Adopt(job model.Job) error {
	if err := in.store.InsertAtHead(job); err != nil {
		in.logInvariant("adopt research", job.ID, err)
		return fmt.Errorf("adopt job %s: %w", job.ID, err)
	}
	if !job.IsCompleted() {
		in.sim.Start(job.ID)
	}
	return nil
}

func (in *Intake) logInvariant(op, id string, err error) {
	if errors.Is(err, ErrDuplicateID) || errors.Is(err, ErrNotFound) {
		in.logger.Error("job store invariant violated", "op", op, "job_id", id, "error", err)
		return
	}
	in.logger.Warn("job rejected", "op", op, "job_id", id, "error", err)
}
