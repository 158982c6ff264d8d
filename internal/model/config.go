package model

import "fmt"

// Config describes a GPT instance. Every field is fixed at construction:
// NewGPT and NewBlock validate the combination before allocating any
// parameters, so an invalid configuration can never reach a forward pass.
type Config struct {
	VocabSize int
	BlockSize int
	Layers    int
	Heads     int
	EmbedDim  int

	// Dropout rates, each in [0, 1). Active only while a tracking graph
	// with a generator is used (training); inference passes are
	// deterministic regardless.
	EmbedDropout float32
	ResidDropout float32
	AttnDropout  float32
}

// DefaultConfig returns a small configuration that trains character-level
// corpora in reasonable time on a CPU. VocabSize is left zero; callers set
// it from the corpus vocabulary.
func DefaultConfig() Config {
	return Config{
		BlockSize:    128,
		Layers:       4,
		Heads:        4,
		EmbedDim:     128,
		EmbedDropout: 0.1,
		ResidDropout: 0.1,
		AttnDropout:  0.1,
	}
}

// Validate reports the first problem with the configuration.
func (c Config) Validate() error {
	if c.VocabSize < 1 {
		return fmt.Errorf("model: vocab size must be positive, got %d", c.VocabSize)
	}
	return c.validateCore()
}

// validateCore checks everything except the vocabulary, which the
// attention and block constructors do not depend on.
func (c Config) validateCore() error {
	if c.BlockSize < 1 {
		return fmt.Errorf("model: block size must be positive, got %d", c.BlockSize)
	}
	if c.Layers < 1 {
		return fmt.Errorf("model: layer count must be positive, got %d", c.Layers)
	}
	if c.Heads < 1 {
		return fmt.Errorf("model: head count must be positive, got %d", c.Heads)
	}
	if c.EmbedDim < 1 {
		return fmt.Errorf("model: embedding dim must be positive, got %d", c.EmbedDim)
	}
	if c.EmbedDim%c.Heads != 0 {
		return fmt.Errorf("model: embedding dim %d not divisible by head count %d", c.EmbedDim, c.Heads)
	}
	for _, p := range []float32{c.EmbedDropout, c.ResidDropout, c.AttnDropout} {
		if p < 0 || p >= 1 {
			return fmt.Errorf("model: dropout rate %v out of range [0, 1)", p)
		}
	}
	return nil
}
