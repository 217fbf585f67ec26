package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinProgress = 0
	MaxProgress = 100

	MinConfidence = 70
	MaxConfidence = 89
)

// Job is one tracked research request.
type Job struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Confidence  *int       `json:"confidence,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Snapshot is the point-in-time read shape of the job history, newest first.
type Snapshot struct {
	GeneratedAt string `json:"generated_at"`
	Total       int    `json:"total"`
	InProgress  int    `json:"in_progress"`
	Completed   int    `json:"completed"`
	Jobs        []Job  `json:"jobs"`
}

func (j Job) IsCompleted() bool {
	return IsTerminal(j.Status)
}

// Clone returns a copy that shares no pointers with j.
func (j Job) Clone() Job {
	out := j
	if j.Confidence != nil {
		c := *j.Confidence
		out.Confidence = &c
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Complete applies the terminal transition in one step.
func Complete(job *Job, at time.Time, confidence int) error {
	if err := TransitionJobStatus(job, StatusCompleted); err != nil {
		return err
	}
	job.Progress = MaxProgress
	completedAt := at
	job.CompletedAt = &completedAt
	c := confidence
	job.Confidence = &c
	return nil
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(j.Name) == "" || strings.TrimSpace(j.Name) != j.Name {
		return fmt.Errorf("job %s: name must be non-empty and trimmed", j.ID)
	}
	if j.StartedAt.IsZero() {
		return fmt.Errorf("job %s: started_at is required", j.ID)
	}
	if j.Progress < MinProgress || j.Progress > MaxProgress {
		return fmt.Errorf("job %s: progress %d out of range [%d,%d]", j.ID, j.Progress, MinProgress, MaxProgress)
	}

	switch j.Status {
	case StatusInProgress:
		if j.CompletedAt != nil {
			return fmt.Errorf("job %s: completed_at set while in progress", j.ID)
		}
		if j.Confidence != nil {
			return fmt.Errorf("job %s: confidence set while in progress", j.ID)
		}
	case StatusCompleted:
		if j.CompletedAt == nil {
			return fmt.Errorf("job %s: completed without completed_at", j.ID)
		}
		if j.Progress != MaxProgress {
			return fmt.Errorf("job %s: completed with progress %d", j.ID, j.Progress)
		}
		if j.Confidence == nil {
			return fmt.Errorf("job %s: completed without confidence", j.ID)
		}
		if *j.Confidence < MinConfidence || *j.Confidence > MaxConfidence {
			return fmt.Errorf("job %s: confidence %d out of range [%d,%d]", j.ID, *j.Confidence, MinConfidence, MaxConfidence)
		}
	default:
		return fmt.Errorf("job %s: unknown status %q", j.ID, j.Status)
	}
	return nil
}
