package textdata

import (
	"fmt"
	"sort"
)

// Vocab maps between runes and contiguous token indices. Construction
// sorts the unique runes of the corpus, so the same corpus bytes always
// produce the same index assignment.
type Vocab struct {
	runes []rune
	index map[rune]int
}

// BuildVocab collects the unique runes of data in sorted order.
func BuildVocab(data []byte) *Vocab {
	seen := make(map[rune]bool)
	for _, r := range string(data) {
		seen[r] = true
	}
	runes := make([]rune, 0, len(seen))
	for r := range seen {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })

	index := make(map[rune]int, len(runes))
	for i, r := range runes {
		index[r] = i
	}
	return &Vocab{runes: runes, index: index}
}

// Size returns the number of distinct tokens.
func (v *Vocab) Size() int { return len(v.runes) }

// Encode converts text to token indices. A rune outside the vocabulary is
// an error, not a substitution.
func (v *Vocab) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		id, ok := v.index[r]
		if !ok {
			return nil, fmt.Errorf("textdata: rune %q not in vocabulary", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Decode converts token indices back to text. Out-of-range indices are a
// programmer error and panic.
func (v *Vocab) Decode(ids []int) string {
	out := make([]rune, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(v.runes) {
			panic(fmt.Sprintf("textdata: decode index %d out of range", id))
		}
		out[i] = v.runes[id]
	}
	return string(out)
}
