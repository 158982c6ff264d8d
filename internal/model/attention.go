package model

import (
	"math"
	"math/rand"

	"github.com/kilnlm/kiln/internal/tensor"
)

// CausalSelfAttention is masked multi-head self-attention over a single
// sequence. Queries, keys and values come from one joint projection; each
// head attends over its own width-D/H slice and the concatenated head
// outputs pass through a final projection back to width D.
type CausalSelfAttention struct {
	heads     int
	headDim   int
	blockSize int
	attnDrop  float32
	residDrop float32

	qkv      *tensor.Mat // (D, 3D)
	qkvBias  *tensor.Mat // (1, 3D)
	proj     *tensor.Mat // (D, D)
	projBias *tensor.Mat // (1, D)
}

// NewCausalSelfAttention validates the configuration and builds a
// freshly initialised attention stage.
func NewCausalSelfAttention(cfg Config, rng *rand.Rand) (*CausalSelfAttention, error) {
	if err := cfg.validateCore(); err != nil {
		return nil, err
	}
	return newCausalSelfAttention(cfg, ensureRNG(rng)), nil
}

func newCausalSelfAttention(cfg Config, rng *rand.Rand) *CausalSelfAttention {
	d := cfg.EmbedDim
	a := &CausalSelfAttention{
		heads:     cfg.Heads,
		headDim:   d / cfg.Heads,
		blockSize: cfg.BlockSize,
		attnDrop:  cfg.AttnDropout,
		residDrop: cfg.ResidDropout,
		qkv:       tensor.NewMat(d, 3*d),
		qkvBias:   tensor.NewMat(1, 3*d),
		proj:      tensor.NewMat(d, d),
		projBias:  tensor.NewMat(1, d),
	}
	tensor.FillNormal(a.qkv, initStd, rng)
	tensor.FillNormal(a.proj, residProjStd(cfg), rng)
	return a
}

// Forward transforms x of shape (T, D) into a matrix of the same shape.
// Output row i depends only on input rows 0..i: the per-head score matrix
// is normalised by a causal softmax that assigns later positions
// probability exactly 0, so no future information leaks, batched matrix
// products included. T beyond the configured block size is a precondition
// violation and panics; GPT.Forward rejects such inputs with an error
// before this point.
func (a *CausalSelfAttention) Forward(g *tensor.Graph, x *tensor.Mat) *tensor.Mat {
	d := a.heads * a.headDim
	if x.C != d {
		panic("model: attention input width mismatch")
	}
	if x.R > a.blockSize {
		panic("model: attention input exceeds block size")
	}

	qkv := tensor.AddBias(g, tensor.MatMul(g, x, a.qkv), a.qkvBias)
	heads := tensor.NewMat(x.R, d)
	scale := float32(1 / math.Sqrt(float64(a.headDim)))
	for h := 0; h < a.heads; h++ {
		lo := h * a.headDim
		q := tensor.ColWindow(qkv, lo, lo+a.headDim)
		k := tensor.ColWindow(qkv, d+lo, d+lo+a.headDim)
		v := tensor.ColWindow(qkv, 2*d+lo, 2*d+lo+a.headDim)

		att := tensor.CausalSoftmax(g, tensor.Scale(g, tensor.MatMulT(g, q, k), scale))
		att = tensor.Dropout(g, att, a.attnDrop)
		tensor.Assign(g, tensor.ColWindow(heads, lo, lo+a.headDim), tensor.MatMul(g, att, v))
	}

	out := tensor.AddBias(g, tensor.MatMul(g, heads, a.proj), a.projBias)
	return tensor.Dropout(g, out, a.residDrop)
}
