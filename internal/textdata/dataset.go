package textdata

import (
	"errors"
	"math/rand"
)

// ErrCorpusTooSmall is returned when the encoded corpus cannot supply even
// one training window of the requested block size.
var ErrCorpusTooSmall = errors.New("textdata: corpus smaller than one training window")

// Dataset serves random training windows from an encoded corpus. Each
// sample is a block of token ids and the same block shifted one position
// left, the next-token targets.
type Dataset struct {
	ids   []int
	block int
}

// NewDataset validates that ids can supply at least one window of block
// tokens plus its shifted target.
func NewDataset(ids []int, block int) (*Dataset, error) {
	if block < 1 {
		return nil, errors.New("textdata: block size must be positive")
	}
	if len(ids) < block+1 {
		return nil, ErrCorpusTooSmall
	}
	return &Dataset{ids: ids, block: block}, nil
}

// Len returns the number of distinct window positions.
func (d *Dataset) Len() int { return len(d.ids) - d.block }

// Block returns the window length.
func (d *Dataset) Block() int { return d.block }

// Sample returns one random window x and its one-shifted target y, both of
// length Block. The slices view the dataset's backing array and must not
// be mutated.
func (d *Dataset) Sample(rng *rand.Rand) (x, y []int) {
	off := rng.Intn(d.Len())
	return d.ids[off : off+d.block], d.ids[off+1 : off+1+d.block]
}

// Batch returns b independent windows.
func (d *Dataset) Batch(rng *rand.Rand, b int) (xs, ys [][]int) {
	xs = make([][]int, b)
	ys = make([][]int, b)
	for i := 0; i < b; i++ {
		xs[i], ys[i] = d.Sample(rng)
	}
	return xs, ys
}
