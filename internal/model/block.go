package model

import (
	"math/rand"

	"github.com/kilnlm/kiln/internal/tensor"
)

// Block is one transformer layer: pre-norm causal self-attention and a
// pre-norm position-wise feed-forward stage, each added back onto the
// residual stream.
type Block struct {
	ln1Gain, ln1Bias *tensor.Mat
	attn             *CausalSelfAttention
	ln2Gain, ln2Bias *tensor.Mat

	fc       *tensor.Mat // (D, 4D)
	fcBias   *tensor.Mat // (1, 4D)
	proj     *tensor.Mat // (4D, D)
	projBias *tensor.Mat // (1, D)

	residDrop float32
}

// NewBlock validates the configuration and builds a freshly initialised
// transformer layer.
func NewBlock(cfg Config, rng *rand.Rand) (*Block, error) {
	if err := cfg.validateCore(); err != nil {
		return nil, err
	}
	return newBlock(cfg, ensureRNG(rng)), nil
}

func newBlock(cfg Config, rng *rand.Rand) *Block {
	d := cfg.EmbedDim
	hidden := 4 * d
	b := &Block{
		ln1Gain:   tensor.NewMat(1, d),
		ln1Bias:   tensor.NewMat(1, d),
		attn:      newCausalSelfAttention(cfg, rng),
		ln2Gain:   tensor.NewMat(1, d),
		ln2Bias:   tensor.NewMat(1, d),
		fc:        tensor.NewMat(d, hidden),
		fcBias:    tensor.NewMat(1, hidden),
		proj:      tensor.NewMat(hidden, d),
		projBias:  tensor.NewMat(1, d),
		residDrop: cfg.ResidDropout,
	}
	tensor.FillConst(b.ln1Gain, 1)
	tensor.FillConst(b.ln2Gain, 1)
	tensor.FillNormal(b.fc, initStd, rng)
	tensor.FillNormal(b.proj, residProjStd(cfg), rng)
	return b
}

// Forward maps (T, D) to (T, D), preserving the causality guarantee of the
// attention stage: the feed-forward half mixes no information across
// positions.
func (b *Block) Forward(g *tensor.Graph, x *tensor.Mat) *tensor.Mat {
	x = tensor.Add(g, x, b.attn.Forward(g, tensor.LayerNorm(g, x, b.ln1Gain, b.ln1Bias)))

	h := tensor.LayerNorm(g, x, b.ln2Gain, b.ln2Bias)
	h = tensor.GELU(g, tensor.AddBias(g, tensor.MatMul(g, h, b.fc), b.fcBias))
	h = tensor.AddBias(g, tensor.MatMul(g, h, b.proj), b.projBias)
	return tensor.Add(g, x, tensor.Dropout(g, h, b.residDrop))
}
