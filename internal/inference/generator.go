package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilnlm/kiln/internal/logits"
)

// Model is the forward-evaluation contract the generator consumes. Logits
// returns the next-token scores for the given sequence, one vector entry
// per vocabulary index. The generator treats the model as an opaque
// read-only function: it never mutates parameters, and the caller
// guarantees no concurrent training writes while generation runs.
type Model interface {
	Logits(tokens []int) ([]float32, error)
	BlockSize() int
	VocabSize() int
}

// Stats describes one finished generation.
type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TokensPerSecond float64
}

// Result couples the extended sequence with its stats.
type Result struct {
	Tokens []int
	Stats  Stats
}

// Generator runs the autoregressive loop: one model evaluation per step,
// one sampled token appended per step, strictly sequential because each
// step's input is the previous step's output. No retries, locking or
// timeouts; a model fault propagates to the caller unchanged.
type Generator struct {
	Model   Model
	Sampler *logits.Sampler
}

// Generate extends prompt by exactly steps tokens and returns the full
// sequence in a freshly allocated slice; the prompt is never aliased or
// mutated. Each step truncates the working sequence to the model's last
// BlockSize tokens (a silent sliding window, never an error), evaluates
// the model once, and appends the sampled token. steps of 0 returns a
// copy of the prompt.
func (g *Generator) Generate(prompt []int, steps int) ([]int, error) {
	return g.GenerateContext(context.Background(), prompt, steps)
}

// GenerateContext is Generate with a cancellation check between steps.
// Cancellation returns ctx.Err(); tokens already generated are discarded.
func (g *Generator) GenerateContext(ctx context.Context, prompt []int, steps int) ([]int, error) {
	if len(prompt) == 0 {
		return nil, errors.New("inference: empty prompt")
	}
	if steps < 0 {
		return nil, fmt.Errorf("inference: negative step count %d", steps)
	}

	block := g.Model.BlockSize()
	toks := make([]int, len(prompt), len(prompt)+steps)
	copy(toks, prompt)

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window := toks
		if len(window) > block {
			window = window[len(window)-block:]
		}
		scores, err := g.Model.Logits(window)
		if err != nil {
			return nil, fmt.Errorf("inference: step %d: %w", i, err)
		}
		toks = append(toks, g.Sampler.Sample(scores))
	}
	return toks, nil
}

// GenerateResult runs GenerateContext and wraps the sequence with timing
// stats for the CLI and API surfaces.
func (g *Generator) GenerateResult(ctx context.Context, prompt []int, steps int) (Result, error) {
	start := time.Now()
	toks, err := g.GenerateContext(ctx, prompt, steps)
	if err != nil {
		return Result{}, err
	}
	stats := Stats{
		TokensGenerated: steps,
		Duration:        time.Since(start),
	}
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.TokensPerSecond = float64(steps) / secs
	}
	return Result{Tokens: toks, Stats: stats}, nil
}
