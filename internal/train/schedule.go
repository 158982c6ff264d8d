package train

import (
	"fmt"
	"math"
)

// Schedule produces the learning rate for each step: linear warmup from
// MinLR to LR over WarmupIters, cosine decay from LR back to MinLR over
// the following DecayIters, then flat MinLR.
type Schedule struct {
	LR          float64
	MinLR       float64
	WarmupIters int
	DecayIters  int
}

// Validate reports the first problem with the schedule.
func (s Schedule) Validate() error {
	if s.LR <= 0 {
		return fmt.Errorf("train: schedule LR must be positive, got %v", s.LR)
	}
	if s.MinLR < 0 || s.MinLR > s.LR {
		return fmt.Errorf("train: schedule MinLR %v outside [0, LR]", s.MinLR)
	}
	if s.WarmupIters < 0 || s.DecayIters < 0 {
		return fmt.Errorf("train: schedule iteration counts must not be negative")
	}
	return nil
}

// At returns the learning rate for step (0-based).
func (s Schedule) At(step int) float64 {
	if s.WarmupIters > 0 && step < s.WarmupIters {
		t := float64(step) / float64(s.WarmupIters)
		return s.MinLR + (s.LR-s.MinLR)*t
	}
	if s.DecayIters <= 0 {
		return s.LR
	}
	progress := float64(step-s.WarmupIters) / float64(s.DecayIters)
	if progress >= 1 {
		return s.MinLR
	}
	return s.MinLR + 0.5*(s.LR-s.MinLR)*(1+math.Cos(math.Pi*progress))
}
