// Package api serves text generation over HTTP.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilnlm/kiln/internal/inference"
	"github.com/kilnlm/kiln/internal/logits"
)

// Codec maps between text and token indices. textdata.Vocab satisfies it.
type Codec interface {
	Encode(string) ([]int, error)
	Decode([]int) string
}

// ModelInfo is the metadata reported by GET /v1/model.
type ModelInfo struct {
	VocabSize int `json:"vocab_size"`
	BlockSize int `json:"block_size"`
	Layers    int `json:"layers,omitempty"`
	Params    int `json:"params,omitempty"`
}

// Defaults are the generation parameters used when a request leaves them
// unset.
type Defaults struct {
	Steps       int
	Temperature float64
	TopK        int
	Sample      bool
	Seed        int64
}

// GenParams are the resolved parameters for one generation.
type GenParams struct {
	Steps       int
	Temperature float64
	TopK        int
	Sample      bool
	Seed        int64
}

// GenOutput is the engine-level result of one generation.
type GenOutput struct {
	Text   string
	Tokens int
	Stats  inference.Stats
}

// Engine owns a model, its codec and the generation defaults. A mutex
// serializes generations: the forward pass is a read-only function of the
// parameters, so this is not protecting model state, it keeps one slow
// CPU-bound generation from interleaving with another.
type Engine struct {
	mu    sync.Mutex
	model inference.Model
	codec Codec
	info  ModelInfo

	Defaults Defaults
}

// NewEngine wires a trained (or toy) model with its codec.
func NewEngine(m inference.Model, codec Codec, info ModelInfo, defaults Defaults) *Engine {
	if defaults.Steps <= 0 {
		defaults.Steps = 200
	}
	return &Engine{model: m, codec: codec, info: info, Defaults: defaults}
}

// Info returns the model metadata.
func (e *Engine) Info() ModelInfo { return e.info }

// Generate encodes the prompt, runs the autoregressive loop and decodes
// only the newly generated suffix.
func (e *Engine) Generate(ctx context.Context, prompt string, p GenParams) (GenOutput, error) {
	ids, err := e.codec.Encode(prompt)
	if err != nil {
		return GenOutput{}, newInvalidRequest(fmt.Sprintf("prompt: %v", err))
	}
	if len(ids) == 0 {
		return GenOutput{}, newInvalidRequest("prompt must not be empty")
	}

	sampler, err := logits.NewSampler(logits.Config{
		Temperature: p.Temperature,
		TopK:        p.TopK,
		Sample:      p.Sample,
		Seed:        p.Seed,
	})
	if err != nil {
		return GenOutput{}, newInvalidRequest(err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	gen := &inference.Generator{Model: e.model, Sampler: sampler}
	res, err := gen.GenerateResult(ctx, ids, p.Steps)
	if err != nil {
		return GenOutput{}, err
	}
	return GenOutput{
		Text:   e.codec.Decode(res.Tokens[len(ids):]),
		Tokens: res.Stats.TokensGenerated,
		Stats:  res.Stats,
	}, nil
}

// resolve fills unset request fields from the engine defaults.
func (e *Engine) resolve(req *GenerateRequest) (GenParams, error) {
	p := GenParams{
		Steps:       e.Defaults.Steps,
		Temperature: e.Defaults.Temperature,
		TopK:        e.Defaults.TopK,
		Sample:      e.Defaults.Sample,
		Seed:        e.Defaults.Seed,
	}
	if req.Steps != nil {
		p.Steps = *req.Steps
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopK != nil {
		p.TopK = *req.TopK
	}
	if req.Sample != nil {
		p.Sample = *req.Sample
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	}
	if p.Steps < 0 {
		return p, newInvalidRequest(fmt.Sprintf("steps must not be negative, got %d", p.Steps))
	}
	// A stochastic request without an explicit seed gets a fresh one, so
	// repeated requests differ; greedy requests never consult the rng.
	if p.Sample && req.Seed == nil && e.Defaults.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}
	return p, nil
}
