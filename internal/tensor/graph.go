package tensor

import "math/rand"

// Graph records the backward closures emitted by forward ops. While
// tracking, every op appends one closure; Backward replays them in reverse
// order, accumulating into each Mat's Grad buffer. A Graph is owned by a
// single goroutine.
type Graph struct {
	backprop []func()
	track    bool
	rng      *rand.Rand
}

// NewGraph returns a graph that records backward closures. rng drives the
// stochastic ops (dropout); it may be nil, in which case those ops are
// identity.
func NewGraph(rng *rand.Rand) *Graph {
	return &Graph{track: true, rng: rng}
}

// Inference returns a graph that records nothing. Ops run forward only and
// skip gradient bookkeeping.
func Inference() *Graph { return &Graph{} }

// Tracking reports whether ops on this graph record backward closures.
func (g *Graph) Tracking() bool { return g.track }

func (g *Graph) add(fn func()) {
	if g.track {
		g.backprop = append(g.backprop, fn)
	}
}

// Backward runs the recorded closures most-recent first. The loss op seeds
// the output gradient, so callers only chain forward ops, call Backward,
// and read the leaf gradients.
func (g *Graph) Backward() {
	for i := len(g.backprop) - 1; i >= 0; i-- {
		g.backprop[i]()
	}
}

// Reset drops the recorded tape so the graph can be reused for the next
// step without reallocating.
func (g *Graph) Reset() {
	g.backprop = g.backprop[:0]
}
