package tracker

import (
	"math/rand/v2"
	"time"

	"research-tracker/internal/model"
)

// StepFunc yields the progress increment for one tick.
type StepFunc func() int

// ConfidenceFunc yields the confidence score assigned at completion.
type ConfidenceFunc func() int

// NewRandomSource returns a PCG-backed source. A zero seed is replaced by the
// current time so unseeded runs differ.
func NewRandomSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// MinMaxStep is the smallest step bound that still lets a job advance.
const MinMaxStep = 2

// UniformStep draws an integer from [0, maxStep). Bounds below MinMaxStep are
// raised to it.
func UniformStep(src RandomSource, maxStep int) StepFunc {
	if maxStep < MinMaxStep {
		maxStep = MinMaxStep
	}
	return func() int {
		return int(src.Float64() * float64(maxStep))
	}
}

// UniformConfidence draws an integer from [lo, hi] and never leaves the
// model's confidence bounds.
func UniformConfidence(src RandomSource, lo, hi int) ConfidenceFunc {
	if lo < model.MinConfidence {
		lo = model.MinConfidence
	}
	if hi > model.MaxConfidence {
		hi = model.MaxConfidence
	}
	if hi < lo {
		lo, hi = model.MinConfidence, model.MaxConfidence
	}
	span := hi - lo + 1
	return func() int {
		v := lo + int(src.Float64()*float64(span))
		if v > hi {
			v = hi
		}
		return v
	}
}
