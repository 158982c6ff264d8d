package train

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kilnlm/kiln/internal/logger"
	"github.com/kilnlm/kiln/internal/model"
	"github.com/kilnlm/kiln/internal/tensor"
	"github.com/kilnlm/kiln/internal/textdata"
)

// Config drives one training run.
type Config struct {
	Iters       int
	BatchSize   int
	LogEvery    int
	Clip        float64
	WeightDecay float64
	Schedule    Schedule
	Seed        int64

	// PreviewEvery, when positive, invokes the Preview hook every that
	// many steps and logs the result.
	PreviewEvery int
}

// Validate reports the first problem with the configuration.
func (c Config) Validate() error {
	if c.Iters < 1 {
		return fmt.Errorf("train: iteration count must be positive, got %d", c.Iters)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("train: batch size must be positive, got %d", c.BatchSize)
	}
	return c.Schedule.Validate()
}

// Summary describes a finished run.
type Summary struct {
	Steps     int
	FinalLoss float64
	Duration  time.Duration
}

// Trainer runs the single-goroutine optimization loop: sample a batch,
// accumulate gradients over its sequences on one tape, clip, step, zero.
type Trainer struct {
	cfg   Config
	model *model.GPT
	data  *textdata.Dataset
	log   logger.Logger

	// Metrics, when set, receives every logged step; the runlog store is
	// wired here.
	Metrics func(step int, loss, lr, tokensPerSec float64)
	// Preview, when set together with cfg.PreviewEvery, generates a short
	// sample from the current weights.
	Preview func(ctx context.Context) (string, error)
}

// New validates the configuration and builds a trainer.
func New(cfg Config, m *model.GPT, data *textdata.Dataset, log logger.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data.Block() > m.BlockSize() {
		return nil, fmt.Errorf("train: dataset block %d exceeds model block size %d", data.Block(), m.BlockSize())
	}
	if log == nil {
		log = logger.Default()
	}
	return &Trainer{cfg: cfg, model: m, data: data, log: log}, nil
}

// Run executes the configured number of steps and returns a summary.
// Cancellation is honored between steps and returns ctx.Err().
func (t *Trainer) Run(ctx context.Context) (Summary, error) {
	opt, err := NewAdamW(t.cfg.Schedule.LR, t.cfg.WeightDecay)
	if err != nil {
		return Summary{}, err
	}
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	g := tensor.NewGraph(rng)
	params := t.model.Params()
	start := time.Now()

	batchTokens := t.cfg.BatchSize * t.data.Block()
	gradScale := float32(1) / float32(batchTokens)

	var loss float64
	lastLog := start
	tokensSinceLog := 0
	for step := 0; step < t.cfg.Iters; step++ {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		lr := t.cfg.Schedule.At(step)
		opt.LR = lr

		g.Reset()
		xs, ys := t.data.Batch(rng, t.cfg.BatchSize)
		loss = 0
		for i := range xs {
			logits, err := t.model.Forward(g, xs[i])
			if err != nil {
				return Summary{}, fmt.Errorf("train: step %d: %w", step, err)
			}
			loss += tensor.CrossEntropyRows(g, logits, ys[i], gradScale)
		}
		loss /= float64(len(xs))
		g.Backward()
		ClipGradNorm(params, t.cfg.Clip)
		opt.Step(params)
		t.model.ZeroGrad()

		tokensSinceLog += batchTokens
		if t.cfg.LogEvery > 0 && (step+1)%t.cfg.LogEvery == 0 {
			elapsed := time.Since(lastLog)
			tps := 0.0
			if secs := elapsed.Seconds(); secs > 0 {
				tps = float64(tokensSinceLog) / secs
			}
			t.log.Info("train step",
				"step", step+1,
				"loss", loss,
				"lr", lr,
				"tokens_per_sec", tps,
			)
			if t.Metrics != nil {
				t.Metrics(step+1, loss, lr, tps)
			}
			lastLog = time.Now()
			tokensSinceLog = 0
		}
		if t.cfg.PreviewEvery > 0 && t.Preview != nil && (step+1)%t.cfg.PreviewEvery == 0 {
			text, err := t.Preview(ctx)
			if err != nil {
				return Summary{}, fmt.Errorf("train: preview at step %d: %w", step, err)
			}
			t.log.Info("sample preview", "step", step+1, "text", text)
		}
	}

	return Summary{
		Steps:     t.cfg.Iters,
		FinalLoss: loss,
		Duration:  time.Since(start),
	}, nil
}
