package train

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/kilnlm/kiln/internal/model"
	"github.com/kilnlm/kiln/internal/textdata"
)

func tinySetup(t *testing.T) (*model.GPT, *textdata.Dataset) {
	t.Helper()
	corpus := strings.Repeat("ab", 200)
	vocab := textdata.BuildVocab([]byte(corpus))
	ids, err := vocab.Encode(corpus)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data, err := textdata.NewDataset(ids, 8)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	cfg := model.Config{
		VocabSize: vocab.Size(),
		BlockSize: 8,
		Layers:    1,
		Heads:     2,
		EmbedDim:  8,
	}
	m, err := model.NewGPT(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewGPT: %v", err)
	}
	return m, data
}

func TestTrainerLowersLossOnRepetitiveCorpus(t *testing.T) {
	m, data := tinySetup(t)
	tr, err := New(Config{
		Iters:     80,
		BatchSize: 4,
		Clip:      1,
		Schedule:  Schedule{LR: 0.02, MinLR: 0.002, WarmupIters: 5, DecayIters: 75},
		Seed:      7,
	}, m, data, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sum, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Steps != 80 {
		t.Fatalf("got %d steps, want 80", sum.Steps)
	}
	// A 2-token alternating corpus starts near ln(2) = 0.693 and is fully
	// predictable, so a short run must get well below that.
	if sum.FinalLoss >= 0.5 {
		t.Fatalf("final loss %v did not drop below 0.5", sum.FinalLoss)
	}
}

func TestTrainerMetricsHook(t *testing.T) {
	m, data := tinySetup(t)
	tr, err := New(Config{
		Iters:     10,
		BatchSize: 2,
		LogEvery:  5,
		Schedule:  Schedule{LR: 0.01},
		Seed:      3,
	}, m, data, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var steps []int
	tr.Metrics = func(step int, loss, lr, tps float64) {
		steps = append(steps, step)
		if loss <= 0 {
			t.Errorf("step %d logged non-positive loss %v", step, loss)
		}
		if lr != 0.01 {
			t.Errorf("step %d logged lr %v, want 0.01", step, lr)
		}
	}
	if _, err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(steps) != 2 || steps[0] != 5 || steps[1] != 10 {
		t.Fatalf("metrics hook saw steps %v, want [5 10]", steps)
	}
}

func TestTrainerCancellation(t *testing.T) {
	m, data := tinySetup(t)
	tr, err := New(Config{
		Iters:     1000,
		BatchSize: 2,
		Schedule:  Schedule{LR: 0.01},
	}, m, data, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Run(ctx); err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestTrainerConfigErrors(t *testing.T) {
	m, data := tinySetup(t)
	if _, err := New(Config{BatchSize: 1, Schedule: Schedule{LR: 0.1}}, m, data, nil); err == nil {
		t.Error("expected an error for zero iterations")
	}
	if _, err := New(Config{Iters: 1, Schedule: Schedule{LR: 0.1}}, m, data, nil); err == nil {
		t.Error("expected an error for zero batch size")
	}
	if _, err := New(Config{Iters: 1, BatchSize: 1}, m, data, nil); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
}
