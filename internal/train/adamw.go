// Package train holds the optimizer, learning-rate schedule and training
// loop for the character-level model.
package train

import (
	"fmt"
	"math"

	"github.com/kilnlm/kiln/internal/model"
)

// AdamW is Adam with decoupled weight decay. Moment buffers are kept per
// parameter by position, relying on the stable order of model.Params().
type AdamW struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	t int
	m [][]float64
	v [][]float64
}

// NewAdamW returns an optimizer with the usual defaults for any field left
// zero: beta1 0.9, beta2 0.999, eps 1e-8.
func NewAdamW(lr, weightDecay float64) (*AdamW, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("train: learning rate must be positive, got %v", lr)
	}
	if weightDecay < 0 {
		return nil, fmt.Errorf("train: weight decay must not be negative, got %v", weightDecay)
	}
	return &AdamW{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, WeightDecay: weightDecay}, nil
}

// Step applies one update to every parameter from its accumulated
// gradients. The caller zeroes gradients afterwards. Decay applies only to
// parameters flagged for it, decoupled from the moment update. NaN or Inf
// gradients are dropped rather than written into the moments.
func (o *AdamW) Step(params []model.Param) {
	if o.m == nil {
		o.m = make([][]float64, len(params))
		o.v = make([][]float64, len(params))
		for i, p := range params {
			o.m[i] = make([]float64, p.W.Size())
			o.v[i] = make([]float64, p.W.Size())
		}
	}
	if len(o.m) != len(params) {
		panic("train: parameter count changed between steps")
	}

	o.t++
	t := float64(o.t)
	lrT := o.LR * math.Sqrt(1-math.Pow(o.Beta2, t)) / (1 - math.Pow(o.Beta1, t))

	for pi, p := range params {
		mBuf, vBuf := o.m[pi], o.v[pi]
		idx := 0
		for r := 0; r < p.W.R; r++ {
			wr := p.W.Row(r)
			gr := p.W.GradRow(r)
			for c := range wr {
				g := float64(gr[c])
				if math.IsNaN(g) || math.IsInf(g, 0) {
					g = 0
				}
				mBuf[idx] = o.Beta1*mBuf[idx] + (1-o.Beta1)*g
				vBuf[idx] = o.Beta2*vBuf[idx] + (1-o.Beta2)*g*g

				w := float64(wr[c])
				w -= lrT * mBuf[idx] / (math.Sqrt(vBuf[idx]) + o.Eps)
				if p.Decay && o.WeightDecay > 0 {
					w -= o.LR * o.WeightDecay * float64(wr[c])
				}
				wr[c] = float32(w)
				idx++
			}
		}
	}
}

// ClipGradNorm scales all gradients so their global L2 norm does not
// exceed clip, and returns the pre-clip norm.
func ClipGradNorm(params []model.Param, clip float64) float64 {
	var sum float64
	for _, p := range params {
		for r := 0; r < p.W.R; r++ {
			for _, g := range p.W.GradRow(r) {
				sum += float64(g) * float64(g)
			}
		}
	}
	norm := math.Sqrt(sum)
	if clip <= 0 || norm <= clip {
		return norm
	}
	scale := float32(clip / (norm + 1e-7))
	for _, p := range params {
		for r := 0; r < p.W.R; r++ {
			gr := p.W.GradRow(r)
			for c := range gr {
				gr[c] *= scale
			}
		}
	}
	return norm
}
