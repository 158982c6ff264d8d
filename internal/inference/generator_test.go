package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kilnlm/kiln/internal/logits"
	"github.com/kilnlm/kiln/internal/toy"
)

// windowModel records the window length of every Logits call and derives a
// full ranking over the vocabulary from the last token, so every candidate
// has a distinct score and rank checks are meaningful.
type windowModel struct {
	v, block int
	windows  []int
}

func (m *windowModel) Logits(tokens []int) ([]float32, error) {
	if len(tokens) > m.block {
		return nil, fmt.Errorf("window exceeds block: %d > %d", len(tokens), m.block)
	}
	m.windows = append(m.windows, len(tokens))
	last := tokens[len(tokens)-1]
	out := make([]float32, m.v)
	for i := range out {
		out[i] = float32((3*i + 5*last) % m.v)
	}
	return out, nil
}

func (m *windowModel) BlockSize() int { return m.block }
func (m *windowModel) VocabSize() int { return m.v }

func greedySampler(t *testing.T) *logits.Sampler {
	t.Helper()
	s, err := logits.NewSampler(logits.Config{})
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	return s
}

func TestGenerateLength(t *testing.T) {
	m, err := toy.NewEcho(4, 8, 1)
	if err != nil {
		t.Fatalf("NewEcho: %v", err)
	}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	for _, steps := range []int{0, 1, 5, 20} {
		prompt := []int{1, 2}
		out, err := g.Generate(prompt, steps)
		if err != nil {
			t.Fatalf("Generate(steps=%d): %v", steps, err)
		}
		if len(out) != len(prompt)+steps {
			t.Errorf("steps=%d: got length %d, want %d", steps, len(out), len(prompt)+steps)
		}
	}
}

func TestGeneratePromptNeverMutated(t *testing.T) {
	m, err := toy.NewEcho(4, 8, 1)
	if err != nil {
		t.Fatalf("NewEcho: %v", err)
	}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	prompt := []int{3, 1, 2, 0, 0, 0}
	kept := prompt[:3]
	out, err := g.Generate(kept, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if prompt[3] != 0 || prompt[4] != 0 || prompt[5] != 0 {
		t.Fatalf("generation wrote through the prompt's backing array: %v", prompt)
	}
	if &out[0] == &kept[0] {
		t.Fatal("returned sequence aliases the prompt")
	}
}

func TestGenerateGreedyDeterminism(t *testing.T) {
	m, err := toy.NewEcho(5, 6, 2)
	if err != nil {
		t.Fatalf("NewEcho: %v", err)
	}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	prompt := []int{2, 4}
	first, err := g.Generate(prompt, 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := g.Generate(prompt, 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("greedy runs diverge at %d: %v vs %v", i, first, second)
		}
	}
}

func TestGenerateSlidingWindow(t *testing.T) {
	m := &windowModel{v: 3, block: 4}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	out, err := g.Generate([]int{0, 1, 2}, 6)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 9 {
		t.Fatalf("got length %d, want 9", len(out))
	}
	// Windows grow until they hit the block size, then stay pinned there.
	want := []int{3, 4, 4, 4, 4, 4}
	if len(m.windows) != len(want) {
		t.Fatalf("got %d forward evaluations, want %d", len(m.windows), len(want))
	}
	for i, w := range want {
		if m.windows[i] != w {
			t.Errorf("step %d window length %d, want %d", i, m.windows[i], w)
		}
	}
}

func TestGenerateFixedLogitsGreedy(t *testing.T) {
	m, err := toy.NewStatic(3, 8, []float32{10, 0, 0})
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	out, err := g.Generate([]int{0}, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, tok := range out {
		if tok != 0 {
			t.Fatalf("position %d: got token %d, want 0 (full output %v)", i, tok, out)
		}
	}
	if len(out) != 4 {
		t.Fatalf("got length %d, want 4", len(out))
	}
}

func TestGenerateFixedLogitsTopKOne(t *testing.T) {
	m, err := toy.NewStatic(3, 8, []float32{10, 0, 0})
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	s, err := logits.NewSampler(logits.Config{Sample: true, TopK: 1, Seed: 99})
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	g := &Generator{Model: m, Sampler: s}

	out, err := g.Generate([]int{0}, 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("got length %d, want 6", len(out))
	}
	for i, tok := range out {
		if tok != 0 {
			t.Fatalf("position %d: got token %d, want 0; only one candidate survives top-k", i, tok)
		}
	}
}

func TestGenerateTopKRank(t *testing.T) {
	m := &windowModel{v: 8, block: 16}
	const k = 2
	s, err := logits.NewSampler(logits.Config{Sample: true, TopK: k, Seed: 7})
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	g := &Generator{Model: m, Sampler: s}

	prompt := []int{0, 3}
	out, err := g.Generate(prompt, 12)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Re-run each step's forward pass and check the chosen token ranks in
	// the top k of that step's scores.
	check := &windowModel{v: 8, block: 16}
	for step := 0; step < 12; step++ {
		window := out[:len(prompt)+step]
		scores, err := check.Logits(window)
		if err != nil {
			t.Fatalf("recompute step %d: %v", step, err)
		}
		chosen := out[len(prompt)+step]
		rank := 0
		for _, v := range scores {
			if v > scores[chosen] {
				rank++
			}
		}
		if rank >= k {
			t.Fatalf("step %d chose token %d with rank %d, want < %d", step, chosen, rank, k)
		}
	}
}

func TestGenerateInputErrors(t *testing.T) {
	m, err := toy.NewEcho(4, 8, 1)
	if err != nil {
		t.Fatalf("NewEcho: %v", err)
	}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	if _, err := g.Generate(nil, 3); err == nil {
		t.Error("expected an error for an empty prompt")
	}
	if _, err := g.Generate([]int{1}, -1); err == nil {
		t.Error("expected an error for negative steps")
	}
	if _, err := g.Generate([]int{99}, 1); err == nil {
		t.Error("expected the model's range error to propagate")
	}
}

func TestGenerateContextCancellation(t *testing.T) {
	m, err := toy.NewEcho(4, 8, 1)
	if err != nil {
		t.Fatalf("NewEcho: %v", err)
	}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.GenerateContext(ctx, []int{1}, 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestGenerateResultStats(t *testing.T) {
	m, err := toy.NewEcho(4, 8, 1)
	if err != nil {
		t.Fatalf("NewEcho: %v", err)
	}
	g := &Generator{Model: m, Sampler: greedySampler(t)}

	res, err := g.GenerateResult(context.Background(), []int{2}, 7)
	if err != nil {
		t.Fatalf("GenerateResult: %v", err)
	}
	if len(res.Tokens) != 8 {
		t.Fatalf("got %d tokens, want 8", len(res.Tokens))
	}
	if res.Stats.TokensGenerated != 7 {
		t.Fatalf("got %d generated, want 7", res.Stats.TokensGenerated)
	}
	if res.Stats.Duration <= 0 {
		t.Fatalf("non-positive duration %v", res.Stats.Duration)
	}
}
