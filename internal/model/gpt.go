package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/kilnlm/kiln/internal/tensor"
)

// initStd is the base standard deviation for weight initialisation.
// Projections feeding the residual stream are initialised smaller, scaled
// down by sqrt(2 * Layers), so deep stacks start with a well-behaved
// residual magnitude.
const initStd = 0.02

func residProjStd(cfg Config) float64 {
	return initStd / math.Sqrt(float64(2*cfg.Layers))
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return rng
}

// GPT is a decoder-only transformer over token indices: token and learned
// position embeddings, a stack of causal blocks, a final layer norm and a
// bias-free projection onto the vocabulary. Forward evaluation never
// mutates parameters; only an optimizer step after Backward does.
type GPT struct {
	cfg Config

	tokEmb  *tensor.Mat // (V, D)
	posEmb  *tensor.Mat // (BlockSize, D)
	blocks  []*Block
	lnfGain *tensor.Mat
	lnfBias *tensor.Mat
	head    *tensor.Mat // (D, V)

	posIDs []int
}

// NewGPT builds a model with freshly initialised parameters. rng drives
// initialisation only; pass a seeded generator for reproducible weights.
func NewGPT(cfg Config, rng *rand.Rand) (*GPT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng = ensureRNG(rng)

	m := &GPT{
		cfg:     cfg,
		tokEmb:  tensor.NewMat(cfg.VocabSize, cfg.EmbedDim),
		posEmb:  tensor.NewMat(cfg.BlockSize, cfg.EmbedDim),
		lnfGain: tensor.NewMat(1, cfg.EmbedDim),
		lnfBias: tensor.NewMat(1, cfg.EmbedDim),
		head:    tensor.NewMat(cfg.EmbedDim, cfg.VocabSize),
		posIDs:  make([]int, cfg.BlockSize),
	}
	tensor.FillNormal(m.tokEmb, initStd, rng)
	tensor.FillNormal(m.posEmb, initStd, rng)
	tensor.FillConst(m.lnfGain, 1)
	tensor.FillNormal(m.head, initStd, rng)
	for i := 0; i < cfg.Layers; i++ {
		m.blocks = append(m.blocks, newBlock(cfg, rng))
	}
	for i := range m.posIDs {
		m.posIDs[i] = i
	}
	return m, nil
}

// Forward evaluates the model on a full sequence and returns the (T, V)
// logits matrix: row i scores the token following position i. Training
// passes a tracking graph and feeds the result to a loss; inference passes
// tensor.Inference().
func (m *GPT) Forward(g *tensor.Graph, tokens []int) (*tensor.Mat, error) {
	t := len(tokens)
	if t == 0 {
		return nil, errors.New("model: empty input sequence")
	}
	if t > m.cfg.BlockSize {
		return nil, fmt.Errorf("model: context length exceeded: %d > %d", t, m.cfg.BlockSize)
	}
	for _, tok := range tokens {
		if tok < 0 || tok >= m.cfg.VocabSize {
			return nil, fmt.Errorf("model: token id out of range: %d", tok)
		}
	}

	x := tensor.Add(g, tensor.Lookup(g, m.tokEmb, tokens), tensor.Lookup(g, m.posEmb, m.posIDs[:t]))
	x = tensor.Dropout(g, x, m.cfg.EmbedDropout)
	for _, b := range m.blocks {
		x = b.Forward(g, x)
	}
	x = tensor.LayerNorm(g, x, m.lnfGain, m.lnfBias)
	return tensor.MatMul(g, x, m.head), nil
}

// Logits runs one inference-mode forward evaluation and returns a copy of
// the next-token scores, the logits row at the final position.
func (m *GPT) Logits(tokens []int) ([]float32, error) {
	out, err := m.Forward(tensor.Inference(), tokens)
	if err != nil {
		return nil, err
	}
	logits := make([]float32, m.cfg.VocabSize)
	copy(logits, out.Row(out.R-1))
	return logits, nil
}

// BlockSize returns the maximum sequence length per forward evaluation.
func (m *GPT) BlockSize() int { return m.cfg.BlockSize }

// VocabSize returns the number of token indices the model scores.
func (m *GPT) VocabSize() int { return m.cfg.VocabSize }

// Config returns the construction-time configuration.
func (m *GPT) Config() Config { return m.cfg }

// Param couples a parameter matrix with a stable name and whether
// decoupled weight decay applies to it. Linear weights decay; embeddings,
// biases and norm gains do not.
type Param struct {
	Name  string
	W     *tensor.Mat
	Decay bool
}

// Params returns every learnable matrix. The slice order is stable across
// calls, so optimizer state can be carried by position.
func (m *GPT) Params() []Param {
	params := []Param{
		{Name: "tok_emb", W: m.tokEmb},
		{Name: "pos_emb", W: m.posEmb},
	}
	for i, b := range m.blocks {
		prefix := fmt.Sprintf("block.%d.", i)
		params = append(params,
			Param{Name: prefix + "ln1.gain", W: b.ln1Gain},
			Param{Name: prefix + "ln1.bias", W: b.ln1Bias},
			Param{Name: prefix + "attn.qkv.w", W: b.attn.qkv, Decay: true},
			Param{Name: prefix + "attn.qkv.b", W: b.attn.qkvBias},
			Param{Name: prefix + "attn.proj.w", W: b.attn.proj, Decay: true},
			Param{Name: prefix + "attn.proj.b", W: b.attn.projBias},
			Param{Name: prefix + "ln2.gain", W: b.ln2Gain},
			Param{Name: prefix + "ln2.bias", W: b.ln2Bias},
			Param{Name: prefix + "mlp.fc.w", W: b.fc, Decay: true},
			Param{Name: prefix + "mlp.fc.b", W: b.fcBias},
			Param{Name: prefix + "mlp.proj.w", W: b.proj, Decay: true},
			Param{Name: prefix + "mlp.proj.b", W: b.projBias},
		)
	}
	return append(params,
		Param{Name: "lnf.gain", W: m.lnfGain},
		Param{Name: "lnf.bias", W: m.lnfBias},
		Param{Name: "head.w", W: m.head, Decay: true},
	)
}

// NumParams returns the total number of learnable scalars.
func (m *GPT) NumParams() int {
	n := 0
	for _, p := range m.Params() {
		n += p.W.Size()
	}
	return n
}

// ZeroGrad clears every parameter gradient, typically after an optimizer
// step.
func (m *GPT) ZeroGrad() {
	for _, p := range m.Params() {
		p.W.ZeroGrad()
	}
}
