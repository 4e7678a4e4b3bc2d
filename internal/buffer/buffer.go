// Package buffer holds the write-back content of one open file.
package buffer

import (
	"errors"
	"fmt"
	"math"

	"github.com/jacobsa/syncutil"
)

var (
	ErrFileTooLarge  = errors.New("file too large")
	ErrInvalidOffset = errors.New("invalid offset")
)

// State tells whether the buffer holds writes the remote store has not seen.
type State int

const (
	Clean State = iota
	Dirty
)

func (s State) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "clean"
}

// Buffer is the local copy of a file while it is open. Reads, writes and
// truncation never touch the remote store; Flush hands the whole content to
// a writer.
type Buffer struct {
	// Zero or less means unbounded.
	maxSize int

	mu syncutil.InvariantMutex

	// A nil slice when the file is empty.
	//
	// INVARIANT: size == len(data)
	data []byte // GUARDED_BY(mu)
	size int    // GUARDED_BY(mu)

	state State // GUARDED_BY(mu)
}

// New returns a buffer holding a copy of content.
func New(content []byte, state State, maxSize int) *Buffer {
	b := &Buffer{
		maxSize: maxSize,
		state:   state,
	}
	if len(content) > 0 {
		b.data = append([]byte(nil), content...)
		b.size = len(content)
	}

	b.mu = syncutil.NewInvariantMutex(b.checkInvariants)
	return b
}

func (b *Buffer) checkInvariants() {
	// INVARIANT: size == len(data)
	if b.size != len(b.data) {
		panic(fmt.Sprintf("size mismatch: %d vs. %d", b.size, len(b.data)))
	}
}

func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ReadAt returns a copy of the bytes in [offset, offset+length) that lie
// within the current size. It is empty when offset is at or past the end.
func (b *Buffer) ReadAt(offset int64, length int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || length <= 0 || offset >= int64(b.size) {
		return nil
	}

	end := offset + int64(length)
	if end > int64(b.size) {
		end = int64(b.size)
	}

	out := make([]byte, end-offset)
	copy(out, b.data[offset:end])
	return out
}

// WriteAt copies p at offset, growing the buffer and zero-filling any gap
// past the old end. An empty write changes nothing, wherever it lands.
func (b *Buffer) WriteAt(offset int64, p []byte) (int, error) {
	if offset < 0 {
		return 0, ErrInvalidOffset
	}
	if len(p) == 0 {
		return 0, nil
	}
	if offset > math.MaxInt-int64(len(p)) {
		return 0, fmt.Errorf("%w: write of %d bytes at offset %d", ErrFileTooLarge, len(p), offset)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	end := offset + int64(len(p))
	if end > int64(b.size) {
		if err := b.resizeLocked(end); err != nil {
			return 0, err
		}
	}

	copy(b.data[offset:], p)
	b.state = Dirty
	return len(p), nil
}

// Truncate sets the size to exactly size, zero-filling on growth.
func (b *Buffer) Truncate(size int64) error {
	if size < 0 {
		return ErrInvalidOffset
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.resizeLocked(size); err != nil {
		return err
	}
	b.state = Dirty
	return nil
}

// LOCKS_REQUIRED(b.mu)
func (b *Buffer) resizeLocked(size int64) error {
	if size > math.MaxInt || (b.maxSize > 0 && size > int64(b.maxSize)) {
		return fmt.Errorf("%w: %d bytes exceeds the limit of %d", ErrFileTooLarge, size, b.maxSize)
	}

	n := int(size)
	switch {
	case n == 0:
		b.data = nil
	case n <= len(b.data):
		b.data = b.data[:n]
	case n <= cap(b.data):
		old := len(b.data)
		b.data = b.data[:n]
		clear(b.data[old:])
	default:
		grown := make([]byte, n, max(n, 2*cap(b.data)))
		copy(grown, b.data)
		b.data = grown
	}

	b.size = n
	return nil
}

// Flush passes the full content to write and marks the buffer clean when
// write succeeds. A clean buffer is skipped unless force is set. On failure
// the content and the dirty state are kept so that a later flush can retry.
//
// The lock is held for the duration of write, which must not retain
// content.
func (b *Buffer) Flush(force bool, write func(content []byte) error) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !force && b.state == Clean {
		return false, nil
	}

	if err := write(b.data); err != nil {
		return true, err
	}

	b.state = Clean
	return true, nil
}
