package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/freyja-vlog/pkg/compression"
)

func newTestWriter(t *testing.T, typ compression.Type) *Writer {
	t.Helper()
	w, err := NewWriter(WriterConfig{
		FilePath:    filepath.Join(t.TempDir(), "segments", "000001.vlog"),
		SegmentID:   NewID(),
		Compression: typ,
	})
	require.NoError(t, err)
	return w
}

func TestWriterReader_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	type pair struct{ key, value []byte }
	pairs := []pair{
		{[]byte(""), []byte("")},
		{[]byte("user:123"), []byte("john@example.com")},
		{bytes.Repeat([]byte("k"), MaxKeySize), []byte("max key")},
		{[]byte("large value"), bytes.Repeat([]byte("v"), 256*1024)},
		{[]byte("🔑 unicode key"), []byte("🎯 unicode value with émojis")},
	}
	for i := 0; i < 200; i++ {
		key := make([]byte, rng.Intn(64))
		value := make([]byte, rng.Intn(2048))
		rng.Read(key)
		rng.Read(value)
		pairs = append(pairs, pair{key, value})
	}

	for _, typ := range []compression.Type{compression.None, compression.LZ4, compression.Zstd, compression.S2} {
		t.Run(typ.String(), func(t *testing.T) {
			w := newTestWriter(t, typ)

			var offsets []int64
			for _, p := range pairs {
				off, err := w.Append(p.key, p.value)
				require.NoError(t, err)
				offsets = append(offsets, off)
			}
			assert.Equal(t, uint64(len(pairs)), w.Count())

			footer, footerOffset, err := w.Seal()
			require.NoError(t, err)
			assert.Equal(t, uint64(len(pairs)), footer.Items)

			r, err := Open(w.Path(), w.ID())
			require.NoError(t, err)
			defer r.Close()

			for i, p := range pairs {
				rec, err := r.Next()
				require.NoError(t, err)
				assert.Equal(t, offsets[i], rec.Offset)
				assert.Equal(t, rec.End(), r.Offset())
				assert.NoError(t, rec.Verify())

				value, err := compression.Decompress(typ, rec.Value)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(p.key, rec.Key), "key %d", i)
				assert.True(t, bytes.Equal(p.value, value), "value %d", i)
			}

			_, err = r.Next()
			assert.Equal(t, io.EOF, err)
			require.True(t, r.FooterReached())
			assert.Equal(t, footerOffset+MagicSize, r.Offset())

			parsed, err := ReadFooterAt(w.Path(), r.Offset())
			require.NoError(t, err)
			assert.Equal(t, typ, parsed.Compression)
			assert.Equal(t, footer.Items, parsed.Items)
			assert.Equal(t, footer.KeyBytes, parsed.KeyBytes)
			assert.Equal(t, footer.ValueBytes, parsed.ValueBytes)
			assert.Equal(t, pairs[0].key, parsed.FirstKey)
			assert.Equal(t, pairs[len(pairs)-1].key, parsed.LastKey)
			for _, p := range pairs {
				assert.True(t, parsed.MayContain(p.key))
			}
		})
	}
}

func TestWriter_OffsetsMatchBlockSizes(t *testing.T) {
	w := newTestWriter(t, compression.None)

	off, err := w.Append([]byte("a"), []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)

	off, err = w.Append([]byte("bb"), []byte("22"))
	require.NoError(t, err)
	assert.Equal(t, int64(16), off)
	assert.Equal(t, int64(34), w.Offset())

	_, footerOffset, err := w.Seal()
	require.NoError(t, err)
	assert.Equal(t, int64(34), footerOffset)

	info, err := os.Stat(w.Path())
	require.NoError(t, err)
	assert.Equal(t, info.Size(), w.Offset())
}

func TestWriter_EmptySegment(t *testing.T) {
	w := newTestWriter(t, compression.None)
	footer, footerOffset, err := w.Seal()
	require.NoError(t, err)
	assert.Equal(t, int64(0), footerOffset)
	assert.Nil(t, footer.Filter)

	r, err := Open(w.Path(), w.ID())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(MagicSize), r.Offset())

	parsed, err := ReadFooterAt(w.Path(), r.Offset())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), parsed.Items)
	assert.True(t, parsed.MayContain([]byte("anything")))
}

func TestWriter_Sealed(t *testing.T) {
	w := newTestWriter(t, compression.None)
	_, err := w.Append([]byte("k"), []byte("v"))
	require.NoError(t, err)
	_, _, err = w.Seal()
	require.NoError(t, err)

	_, err = w.Append([]byte("k2"), []byte("v2"))
	assert.ErrorIs(t, err, ErrSealed)
	_, _, err = w.Seal()
	assert.ErrorIs(t, err, ErrSealed)
	assert.ErrorIs(t, w.Abort(), ErrSealed)
}

func TestWriter_KeyTooLarge(t *testing.T) {
	w := newTestWriter(t, compression.None)
	defer w.Abort()

	_, err := w.Append(make([]byte, MaxKeySize+1), nil)
	assert.ErrorIs(t, err, ErrKeyTooLarge)
	assert.Equal(t, uint64(0), w.Count())
}

func TestWriter_RefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taken.vlog")
	require.NoError(t, os.WriteFile(path, []byte("sealed"), 0600))

	_, err := NewWriter(WriterConfig{FilePath: path})
	assert.True(t, errors.Is(err, os.ErrExist))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), data)
}

func TestWriter_Abort(t *testing.T) {
	w := newTestWriter(t, compression.None)
	_, err := w.Append([]byte("k"), []byte("v"))
	require.NoError(t, err)

	require.NoError(t, w.Abort())
	_, err = os.Stat(w.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_ChecksumDetectsFlippedValue(t *testing.T) {
	w := newTestWriter(t, compression.None)
	_, err := w.Append([]byte("key"), []byte("value"))
	require.NoError(t, err)
	_, _, err = w.Seal()
	require.NoError(t, err)

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	data[BlockSize(3, 5)-1] ^= 0xFF
	path := filepath.Join(t.TempDir(), "flipped.vlog")
	require.NoError(t, os.WriteFile(path, data, 0600))

	r, err := Open(path, w.ID())
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err, "the reader transports checksums without checking them")
	assert.ErrorIs(t, rec.Verify(), ErrChecksumMismatch)
}

func TestWriter_ConcurrentReaders(t *testing.T) {
	w := newTestWriter(t, compression.None)
	for i := 0; i < 500; i++ {
		_, err := w.Append([]byte(fmt.Sprintf("key-%04d", i)), []byte(fmt.Sprintf("value-%d", i)))
		require.NoError(t, err)
	}
	_, _, err := w.Seal()
	require.NoError(t, err)

	const readers = 8
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		go func() {
			r, err := Open(w.Path(), w.ID())
			if err != nil {
				errs <- err
				return
			}
			defer r.Close()

			n := 0
			for {
				rec, err := r.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					errs <- err
					return
				}
				if want := fmt.Sprintf("key-%04d", n); string(rec.Key) != want {
					errs <- fmt.Errorf("record %d: got key %q want %q", n, rec.Key, want)
					return
				}
				n++
			}
			if n != 500 {
				errs <- fmt.Errorf("read %d records", n)
				return
			}
			errs <- nil
		}()
	}

	for i := 0; i < readers; i++ {
		assert.NoError(t, <-errs)
	}
}
