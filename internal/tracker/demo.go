package tracker

import (
	"time"

	"research-tracker/internal/model"
)

// DemoHistory returns the two entries the dashboard ships with, oldest first.
func DemoHistory() []model.Job {
	started := time.Date(2025, time.January, 6, 15, 0, 0, 0, time.UTC)
	completed := time.Date(2025, time.January, 7, 10, 30, 0, 0, time.UTC)
	confidence := 78
	return []model.Job{
		{
			ID:          "demo-dell",
			Name:        "Dell Technologies Inc.",
			Status:      model.StatusCompleted,
			Progress:    model.MaxProgress,
			Confidence:  &confidence,
			StartedAt:   started,
			CompletedAt: &completed,
		},
		{
			ID:        "demo-pg",
			Name:      "Procter & Gamble Co.",
			Status:    model.StatusInProgress,
			Progress:  45,
			StartedAt: time.Date(2025, time.January, 14, 9, 0, 0, 0, time.UTC),
		},
	}
}
