package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/kilnlm/kiln/internal/inference"
	"github.com/kilnlm/kiln/internal/logger"
	"github.com/kilnlm/kiln/internal/logits"
	"github.com/kilnlm/kiln/internal/model"
	"github.com/kilnlm/kiln/internal/runlog"
	"github.com/kilnlm/kiln/internal/textdata"
	"github.com/kilnlm/kiln/internal/train"
)

// trained bundles the results of an in-process training run. Weights live
// only in memory: sample and serve both go through this pipeline first.
type trained struct {
	Model   *model.GPT
	Vocab   *textdata.Vocab
	Summary train.Summary
}

func resolveSeed() int64 {
	if seed == -1 {
		return time.Now().UnixNano()
	}
	return seed
}

func modelConfig(vocabSize int) model.Config {
	return model.Config{
		VocabSize:    vocabSize,
		BlockSize:    int(blockSize),
		Layers:       int(layers),
		Heads:        int(heads),
		EmbedDim:     int(embedDim),
		EmbedDropout: float32(dropout),
		ResidDropout: float32(dropout),
		AttnDropout:  float32(dropout),
	}
}

// trainPipeline loads the corpus, builds the vocabulary and dataset,
// constructs a fresh model and trains it.
func trainPipeline(ctx context.Context, log logger.Logger) (*trained, error) {
	if corpusPath == "" {
		return nil, fmt.Errorf("no corpus given; pass --corpus or set it in the config file")
	}
	corpus, err := textdata.OpenCorpus(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = corpus.Close() }()

	vocab := textdata.BuildVocab(corpus.Data)
	ids, err := vocab.Encode(string(corpus.Data))
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}
	data, err := textdata.NewDataset(ids, int(blockSize))
	if err != nil {
		return nil, err
	}

	runSeed := resolveSeed()
	cfg := modelConfig(vocab.Size())
	m, err := model.NewGPT(cfg, rand.New(rand.NewSource(runSeed)))
	if err != nil {
		return nil, err
	}
	log.Info("model built",
		"vocab", vocab.Size(),
		"block", cfg.BlockSize,
		"layers", cfg.Layers,
		"heads", cfg.Heads,
		"dim", cfg.EmbedDim,
		"params", m.NumParams(),
	)

	trainCfg := train.Config{
		Iters:     int(iters),
		BatchSize: int(batchSize),
		LogEvery:  int(logEvery),
		Clip:      clipNorm,
		Schedule: train.Schedule{
			LR:          learningRate,
			MinLR:       minLR,
			WarmupIters: int(warmupIters),
			DecayIters:  int(iters) - int(warmupIters),
		},
		WeightDecay:  weightDecay,
		Seed:         runSeed,
		PreviewEvery: int(previewEvery),
	}
	trainer, err := train.New(trainCfg, m, data, log)
	if err != nil {
		return nil, err
	}

	var (
		store *runlog.Store
		runID string
	)
	if runlogPath != "" {
		store, err = runlog.Open(runlogPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		cfgJSON, err := json.Marshal(trainCfg)
		if err != nil {
			return nil, err
		}
		runID, err = store.Begin(string(cfgJSON))
		if err != nil {
			return nil, err
		}
		trainer.Metrics = func(step int, loss, lr, tps float64) {
			if err := store.LogStep(runID, step, loss, lr, tps); err != nil {
				log.Warn("runlog write failed", "step", step, "error", err)
			}
		}
	}
	if previewEvery > 0 {
		prompt := previewPrompt(corpus.Data)
		trainer.Preview = func(ctx context.Context) (string, error) {
			return previewSample(ctx, m, vocab, prompt, runSeed)
		}
	}

	summary, err := trainer.Run(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("training finished",
		"steps", summary.Steps,
		"final_loss", summary.FinalLoss,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	if store != nil {
		if err := store.Finish(runID, summary.FinalLoss, summary.Steps); err != nil {
			log.Warn("runlog finish failed", "error", err)
		}
	}
	return &trained{Model: m, Vocab: vocab, Summary: summary}, nil
}

// previewPrompt conditions the preview on the first rune of the corpus,
// which is always in the vocabulary.
func previewPrompt(data []byte) string {
	for _, r := range string(data) {
		return string(r)
	}
	return ""
}

func previewSample(ctx context.Context, m *model.GPT, vocab *textdata.Vocab, prompt string, seed int64) (string, error) {
	ids, err := vocab.Encode(prompt)
	if err != nil {
		return "", err
	}
	sampler, err := logits.NewSampler(logits.Config{Sample: true, TopK: 40, Seed: seed})
	if err != nil {
		return "", err
	}
	gen := &inference.Generator{Model: m, Sampler: sampler}
	out, err := gen.GenerateContext(ctx, ids, 120)
	if err != nil {
		return "", err
	}
	return vocab.Decode(out), nil
}
