package logits

import (
	"fmt"
	"math"
	"math/rand"
)

// Config controls how a Sampler turns a logits vector into a token index.
type Config struct {
	// Temperature divides every logit before normalisation. Zero means
	// unset and defaults to 1; negative values and NaN are rejected at
	// construction.
	Temperature float64
	// TopK, when positive, suppresses every candidate whose scaled logit
	// is strictly below the k-th largest value. Zero disables the filter,
	// negative values are rejected, and k >= len(logits) leaves the
	// distribution untouched.
	TopK int
	// Sample draws stochastically from the truncated distribution when
	// true; otherwise the highest-scoring index is taken deterministically.
	Sample bool
	// Seed seeds the sampler-owned generator. Ignored when a generator is
	// supplied via NewSamplerWithRNG.
	Seed int64
}

// Sampler applies temperature scaling, optional top-k truncation and
// either a greedy or a multinomial pick. Randomness comes only from the
// generator injected at construction, never from package-global state, so
// a fixed seed reproduces a draw sequence exactly.
type Sampler struct {
	cfg Config
	rng *rand.Rand

	scores []float64
	short  []float64
}

// NewSampler validates cfg and returns a sampler with its own generator
// seeded from cfg.Seed.
func NewSampler(cfg Config) (*Sampler, error) {
	return NewSamplerWithRNG(cfg, nil)
}

// NewSamplerWithRNG is NewSampler with a caller-supplied generator, for
// callers that share one generator across components.
func NewSamplerWithRNG(cfg Config, rng *rand.Rand) (*Sampler, error) {
	if math.IsNaN(cfg.Temperature) || cfg.Temperature < 0 {
		return nil, fmt.Errorf("logits: temperature must be positive, got %v", cfg.Temperature)
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("logits: top-k must be positive when set, got %d", cfg.TopK)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return &Sampler{cfg: cfg, rng: rng}, nil
}

// Sample selects one index from logits. The steps, in order:
//
//  1. Divide every logit by the temperature.
//  2. If top-k is set, find the k-th largest scaled value and replace
//     everything strictly below it with -inf. The cutoff is by value
//     rank, not list position: candidates tied with the threshold all
//     survive, even if that leaves more than k.
//  3. Normalise the survivors with a max-subtracted softmax; masked
//     entries get probability exactly 0.
//  4. Draw once from the distribution, or, when configured greedy, take
//     the argmax with ties broken toward the lowest index. The argmax is
//     unchanged by positive temperature scaling and top-k truncation, so
//     the greedy path skips straight to it.
//
// Sample panics on an empty logits vector.
func (s *Sampler) Sample(logits []float32) int {
	if len(logits) == 0 {
		panic("logits: sample on empty logits")
	}
	if !s.cfg.Sample {
		return argmax(logits)
	}

	if cap(s.scores) < len(logits) {
		s.scores = make([]float64, len(logits))
	}
	scores := s.scores[:len(logits)]
	invTemp := 1 / s.cfg.Temperature
	for i, l := range logits {
		scores[i] = float64(l) * invTemp
	}

	if k := s.cfg.TopK; k > 0 && k < len(scores) {
		threshold := s.kthLargest(scores, k)
		for i, v := range scores {
			if v < threshold {
				scores[i] = math.Inf(-1)
			}
		}
	}

	maxv := math.Inf(-1)
	for _, v := range scores {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range scores {
		e := math.Exp(v - maxv)
		scores[i] = e
		sum += e
	}
	if sum == 0 {
		return argmax(logits)
	}
	invSum := 1 / sum
	for i := range scores {
		scores[i] *= invSum
	}

	r := s.rng.Float64()
	var c float64
	last := 0
	for i, p := range scores {
		if p == 0 {
			continue
		}
		c += p
		last = i
		if r <= c {
			return i
		}
	}
	return last
}

// kthLargest returns the k-th largest value in scores, 1 <= k < len,
// using an insertion shortlist. O(len*k), fine for the small k used in
// sampling. Among equal values the earlier index stays in the shortlist;
// the returned threshold is the same either way.
func (s *Sampler) kthLargest(scores []float64, k int) float64 {
	if cap(s.short) < k+1 {
		s.short = make([]float64, 0, k+1)
	}
	short := s.short[:0]
	for _, v := range scores {
		pos := len(short)
		for pos > 0 && short[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}
		short = append(short, 0)
		copy(short[pos+1:], short[pos:])
		short[pos] = v
		if len(short) > k {
			short = short[:k]
		}
	}
	s.short = short
	return short[len(short)-1]
}

// argmax returns the index of the maximum value; the first occurrence
// wins on ties. It panics on an empty slice.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("logits: argmax on empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
