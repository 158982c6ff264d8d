// Package textdata loads a training corpus and maps it to and from token
// indices: raw bytes, a character vocabulary, and random training windows.
package textdata

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrEmptyCorpus is returned when the corpus file holds no bytes.
var ErrEmptyCorpus = errors.New("textdata: empty corpus")

// Corpus holds the raw bytes of a training text. Data is read-only for the
// lifetime of the corpus; it may be backed by a shared mapping.
type Corpus struct {
	Data    []byte
	mmapped bool
}

// OpenCorpus maps the file at path read-only. If mmap is unavailable it
// falls back to reading the whole file into memory. The returned corpus
// must be closed to release any mapping.
func OpenCorpus(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 == 0 {
		return nil, ErrEmptyCorpus
	}
	if size64 < 0 || size64 > int64(int(^uint(0)>>1)) {
		// cannot index this file safely as []byte on this architecture.
		return nil, errors.New("textdata: corpus too large to map")
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &Corpus{Data: data, mmapped: true}, nil
	}

	// Fallback path that does not require mmap support.
	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return &Corpus{Data: data}, nil
}

// NewCorpus wraps in-memory bytes, for tests and callers that already hold
// the text.
func NewCorpus(data []byte) (*Corpus, error) {
	if len(data) == 0 {
		return nil, ErrEmptyCorpus
	}
	return &Corpus{Data: data}, nil
}

// Close releases the mapping, if any. Data must not be used afterwards.
func (c *Corpus) Close() error {
	if !c.mmapped {
		return nil
	}
	data := c.Data
	c.Data = nil
	c.mmapped = false
	return unix.Munmap(data)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	data := make([]byte, size)
	n, err := r.ReadAt(data, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n != size {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}
