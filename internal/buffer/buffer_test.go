package buffer

import (
	"bytes"
	"errors"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/jacobsa/syncutil"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMain(m *testing.M) {
	syncutil.EnableInvariantChecking()
	os.Exit(m.Run())
}

func TestNewBuffer(t *testing.T) {
	content := []byte("hello")
	b := New(content, Clean, 0)
	content[0] = 'j'

	require.Equal(t, 5, b.Size())
	require.Equal(t, Clean, b.State())
	require.Equal(t, []byte("hello"), b.ReadAt(0, 100))

	empty := New(nil, Clean, 0)
	require.Zero(t, empty.Size())
	require.Empty(t, empty.ReadAt(0, 10))
}

func TestReadAt(t *testing.T) {
	b := New([]byte("abcdef"), Clean, 0)

	tests := []struct {
		name   string
		offset int64
		length int
		want   []byte
	}{
		{"Whole", 0, 6, []byte("abcdef")},
		{"Middle", 2, 2, []byte("cd")},
		{"PastEnd", 4, 10, []byte("ef")},
		{"AtEnd", 6, 1, nil},
		{"BeyondEnd", 100, 1, nil},
		{"ZeroLength", 1, 0, nil},
		{"NegativeOffset", -1, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ReadAt(tt.offset, tt.length)
			if tt.want == nil {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestWriteAtZeroFillsGap(t *testing.T) {
	b := New([]byte("ab"), Clean, 0)

	n, err := b.WriteAt(5, []byte("xy"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, 7, b.Size())
	require.Equal(t, Dirty, b.State())
	require.Equal(t, []byte{'a', 'b', 0, 0, 0, 'x', 'y'}, b.ReadAt(0, 7))
}

func TestWriteAtRejectsNegativeOffset(t *testing.T) {
	b := New(nil, Clean, 0)
	_, err := b.WriteAt(-1, []byte("x"))
	require.ErrorIs(t, err, ErrInvalidOffset)
	require.Equal(t, Clean, b.State())
}

func TestWriteAtEmptyPastEnd(t *testing.T) {
	b := New([]byte("ab"), Clean, 0)

	n, err := b.WriteAt(100, nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 2, b.Size())
	require.Equal(t, Clean, b.State())
}

func TestWriteAtHugeOffset(t *testing.T) {
	for _, maxSize := range []int{0, 512} {
		b := New(nil, Clean, maxSize)

		require.NotPanics(t, func() {
			_, err := b.WriteAt(math.MaxInt64-1, []byte("hello"))
			require.ErrorIs(t, err, ErrFileTooLarge)
		})
		require.Zero(t, b.Size())
		require.Equal(t, Clean, b.State())
	}

	b := New(nil, Clean, 512)
	require.ErrorIs(t, b.Truncate(math.MaxInt64), ErrFileTooLarge)
}

func TestLimit(t *testing.T) {
	b := New(nil, Clean, 4)

	_, err := b.WriteAt(0, []byte("abcd"))
	require.NoError(t, err)

	_, err = b.WriteAt(2, []byte("xyz"))
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Equal(t, []byte("abcd"), b.ReadAt(0, 10))

	require.ErrorIs(t, b.Truncate(5), ErrFileTooLarge)
	require.Equal(t, 4, b.Size())
}

func TestTruncate(t *testing.T) {
	b := New([]byte("abcdef"), Clean, 0)

	require.NoError(t, b.Truncate(2))
	require.Equal(t, Dirty, b.State())
	require.Equal(t, []byte("ab"), b.ReadAt(0, 10))

	// Bytes dropped by the shrink must not reappear.
	require.NoError(t, b.Truncate(5))
	require.Equal(t, []byte{'a', 'b', 0, 0, 0}, b.ReadAt(0, 10))

	require.NoError(t, b.Truncate(0))
	require.Zero(t, b.Size())

	require.ErrorIs(t, b.Truncate(-1), ErrInvalidOffset)
}

func TestFlush(t *testing.T) {
	b := New([]byte("old"), Clean, 0)

	var written [][]byte
	write := func(content []byte) error {
		written = append(written, bytes.Clone(content))
		return nil
	}

	wrote, err := b.Flush(false, write)
	require.NoError(t, err)
	require.False(t, wrote)
	require.Empty(t, written)

	wrote, err = b.Flush(true, write)
	require.NoError(t, err)
	require.True(t, wrote)
	require.Equal(t, [][]byte{[]byte("old")}, written)

	_, err = b.WriteAt(0, []byte("new"))
	require.NoError(t, err)

	failure := errors.New("remote down")
	wrote, err = b.Flush(false, func([]byte) error { return failure })
	require.ErrorIs(t, err, failure)
	require.True(t, wrote)
	require.Equal(t, Dirty, b.State())
	require.Equal(t, []byte("new"), b.ReadAt(0, 3))

	wrote, err = b.Flush(false, write)
	require.NoError(t, err)
	require.True(t, wrote)
	require.Equal(t, Clean, b.State())
	require.Equal(t, []byte("new"), written[1])
}

func TestConcurrentWrites(t *testing.T) {
	b := New(nil, Clean, 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = b.WriteAt(int64(i*4), []byte{byte(i), byte(i), byte(i), byte(i)})
			_ = b.ReadAt(0, 64)
			_, _ = b.Flush(false, func([]byte) error { return nil })
		}(i)
	}
	wg.Wait()

	require.Equal(t, 64, b.Size())
	got := b.ReadAt(0, 64)
	for i := 0; i < 16; i++ {
		require.Equal(t, []byte{byte(i), byte(i), byte(i), byte(i)}, got[i*4:i*4+4])
	}
}

// Every read returns the bytes last written to its range, and never-written
// bytes within the size read as zero.
func TestWriteReadProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New(nil, Clean, 0)
		var model []byte

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "truncate") {
				size := rapid.IntRange(0, 300).Draw(t, "size")
				if err := b.Truncate(int64(size)); err != nil {
					t.Fatalf("truncate %d: %v", size, err)
				}
				if size <= len(model) {
					model = model[:size]
				} else {
					model = append(model, make([]byte, size-len(model))...)
				}
				continue
			}

			offset := rapid.IntRange(0, 256).Draw(t, "offset")
			data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "data")
			if _, err := b.WriteAt(int64(offset), data); err != nil {
				t.Fatalf("write at %d: %v", offset, err)
			}
			if end := offset + len(data); len(data) > 0 && end > len(model) {
				model = append(model, make([]byte, end-len(model))...)
			}
			copy(model[offset:], data)
		}

		if b.Size() != len(model) {
			t.Fatalf("size %d, want %d", b.Size(), len(model))
		}

		offset := rapid.IntRange(0, len(model)+10).Draw(t, "read_offset")
		length := rapid.IntRange(0, 320).Draw(t, "read_length")
		got := b.ReadAt(int64(offset), length)

		var want []byte
		if offset < len(model) {
			want = model[offset:min(offset+length, len(model))]
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("read [%d, +%d) = %v, want %v", offset, length, got, want)
		}
	})
}

// Truncating to S yields exactly S bytes, zero past the old size.
func TestTruncateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.SliceOfN(rapid.Byte(), 0, 128).Draw(t, "initial")
		size := rapid.IntRange(0, 256).Draw(t, "size")

		b := New(initial, Clean, 0)
		if err := b.Truncate(int64(size)); err != nil {
			t.Fatalf("truncate: %v", err)
		}

		got := b.ReadAt(0, size)
		if len(got) != size {
			t.Fatalf("read %d bytes, want %d", len(got), size)
		}
		for i := len(initial); i < size; i++ {
			if got[i] != 0 {
				t.Fatalf("byte %d = %d, want 0", i, got[i])
			}
		}
		if n := min(len(initial), size); !bytes.Equal(got[:n], initial[:n]) {
			t.Fatalf("prefix changed")
		}
	})
}
