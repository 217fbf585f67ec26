package board

import (
	"fmt"
	"math"
	"strings"
	"time"

	"research-tracker/internal/model"
)

const DateLayout = "Jan 2, 2006"

// EstimateRemaining projects how long a job needs to reach 100% from the mean
// step a tick draws from [0, maxStep). ok is false when no estimate exists.
func EstimateRemaining(progress int, interval time.Duration, maxStep int) (time.Duration, bool) {
	if interval <= 0 || maxStep <= 1 {
		return 0, false
	}
	if progress >= model.MaxProgress {
		return 0, true
	}
	if progress < model.MinProgress {
		progress = model.MinProgress
	}
	meanStep := float64(maxStep-1) / 2
	ticks := math.Ceil(float64(model.MaxProgress-progress) / meanStep)
	return time.Duration(ticks) * interval, true
}

// FormatRemaining renders an estimate like "~5m" or "<1m".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	eta := formatETASeconds(d.Seconds())
	if eta == "<1m" {
		return eta
	}
	return "~" + eta
}

func formatETASeconds(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	secs := int64(math.Round(seconds))
	if secs < 60 {
		return "<1m"
	}
	minutes := secs / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	remMinutes := minutes % 60
	if remMinutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, remMinutes)
}

// FormatDate renders t in local time, e.g. "Jan 7, 2025".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(DateLayout)
}

// Bar draws a fixed-width text progress bar.
func Bar(progress, width int) string {
	if width <= 0 {
		return ""
	}
	if progress < model.MinProgress {
		progress = model.MinProgress
	}
	if progress > model.MaxProgress {
		progress = model.MaxProgress
	}
	filled := progress * width / model.MaxProgress
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func StatusLabel(status string) string {
	switch status {
	case model.StatusCompleted:
		return "done"
	case model.StatusInProgress:
		return "running"
	default:
		return status
	}
}

// Detail is the trailing column for a job: remaining estimate while running,
// confidence and completion date once done.
func Detail(job model.Job, interval time.Duration, maxStep int) string {
	if job.IsCompleted() {
		conf := "-"
		if job.Confidence != nil {
			conf = fmt.Sprintf("%d%%", *job.Confidence)
		}
		completed := "-"
		if job.CompletedAt != nil {
			completed = FormatDate(*job.CompletedAt)
		}
		return fmt.Sprintf("confidence %s | completed %s", conf, completed)
	}
	eta := "calculating"
	if d, ok := EstimateRemaining(job.Progress, interval, maxStep); ok {
		eta = FormatRemaining(d)
	}
	return fmt.Sprintf("%d%% | remaining %s | started %s", job.Progress, eta, FormatDate(job.StartedAt))
}
