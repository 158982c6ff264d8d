// Package toy provides deterministic stub models for exercising the
// sampling and serving paths without training anything. Both satisfy the
// inference.Model contract.
package toy

import "fmt"

// Static always returns the same logits row, regardless of input. Useful
// when a test needs full control over the score distribution.
type Static struct {
	V     int
	Block int
	Row   []float32
}

// NewStatic builds a model over v tokens that scores every step with row.
func NewStatic(v, block int, row []float32) (*Static, error) {
	if len(row) != v {
		return nil, fmt.Errorf("toy: logits row has %d entries for vocab %d", len(row), v)
	}
	if block < 1 {
		return nil, fmt.Errorf("toy: block size must be positive, got %d", block)
	}
	return &Static{V: v, Block: block, Row: row}, nil
}

func (m *Static) Logits(tokens []int) ([]float32, error) {
	if err := checkTokens(tokens, m.V, m.Block); err != nil {
		return nil, err
	}
	out := make([]float32, m.V)
	copy(out, m.Row)
	return out, nil
}

func (m *Static) BlockSize() int { return m.Block }
func (m *Static) VocabSize() int { return m.V }

// Echo scores the last input token Bias above everything else, so greedy
// generation repeats it forever. Shape-correct and fully deterministic;
// backs the serve command's --toy mode.
type Echo struct {
	V     int
	Block int
	Bias  float32
}

func NewEcho(v, block int, bias float32) (*Echo, error) {
	if v < 1 || block < 1 {
		return nil, fmt.Errorf("toy: invalid echo dimensions vocab=%d block=%d", v, block)
	}
	return &Echo{V: v, Block: block, Bias: bias}, nil
}

func (m *Echo) Logits(tokens []int) ([]float32, error) {
	if err := checkTokens(tokens, m.V, m.Block); err != nil {
		return nil, err
	}
	out := make([]float32, m.V)
	out[tokens[len(tokens)-1]] = m.Bias
	return out, nil
}

func (m *Echo) BlockSize() int { return m.Block }
func (m *Echo) VocabSize() int { return m.V }

func checkTokens(tokens []int, v, block int) error {
	if len(tokens) == 0 {
		return fmt.Errorf("toy: empty input sequence")
	}
	if len(tokens) > block {
		return fmt.Errorf("toy: context length exceeded: %d > %d", len(tokens), block)
	}
	for _, t := range tokens {
		if t < 0 || t >= v {
			return fmt.Errorf("toy: token id out of range: %d", t)
		}
	}
	return nil
}
