package query

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"research-tracker/internal/model"
)

// Evaluator abstracts JMESPath operations for testability.
type Evaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

type jmespathEvaluator struct{}

func (jmespathEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("expression is required")
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

func NewEvaluator() Evaluator {
	return jmespathEvaluator{}
}

// Snapshot evaluates expr against the JSON form of snap, so expressions use
// the same field names as the exported document.
func Snapshot(ev Evaluator, expr string, snap model.Snapshot) (any, error) {
	if ev == nil {
		ev = NewEvaluator()
	}
	if err := ev.Validate(expr); err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}
	doc, err := generic(snap)
	if err != nil {
		return nil, err
	}
	out, err := ev.Evaluate(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate query %q: %w", expr, err)
	}
	return out, nil
}

func generic(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}

// ByStatus narrows snap to jobs with the given status and recounts totals. An
// empty status returns snap unchanged.
func ByStatus(snap model.Snapshot, status string) (model.Snapshot, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return snap, nil
	}
	if !model.IsKnownStatus(status) {
		return model.Snapshot{}, fmt.Errorf("unknown status %q", status)
	}
	out := model.Snapshot{GeneratedAt: snap.GeneratedAt, Jobs: make([]model.Job, 0, len(snap.Jobs))}
	for _, j := range snap.Jobs {
		if j.Status != status {
			continue
		}
		out.Jobs = append(out.Jobs, j)
		switch j.Status {
		case model.StatusInProgress:
			out.InProgress++
		case model.StatusCompleted:
			out.Completed++
		}
	}
	out.Total = len(out.Jobs)
	return out, nil
}
