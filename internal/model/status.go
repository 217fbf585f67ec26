package model

import "fmt"

const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// completed is terminal: nothing leaves it, not even a same-state rewrite.
var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusInProgress: true,
	},
	StatusInProgress: {
		StatusInProgress: true,
		StatusCompleted:  true,
	},
	StatusCompleted: {},
}

func IsKnownStatus(status string) bool {
	if status == "" {
		return false
	}
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminal(status string) bool {
	return status == StatusCompleted
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *Job, toStatus string) error {
	from := job.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job_id=%s)", from, toStatus, job.ID)
	}
	job.Status = toStatus
	return nil
}
