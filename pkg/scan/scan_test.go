package scan

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/freyja-vlog/pkg/compression"
	"github.com/ssargent/freyja-vlog/pkg/metrics"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

func writeSealed(t *testing.T, dir string, n int, codec compression.Type) Target {
	t.Helper()

	id := segment.NewID()
	path := filepath.Join(dir, id.String()+".vlog")
	w, err := segment.NewWriter(segment.WriterConfig{FilePath: path, SegmentID: id, Compression: codec})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := w.Append([]byte(fmt.Sprintf("key%04d", i)), []byte(fmt.Sprintf("value%d", i)))
		require.NoError(t, err)
	}
	_, _, err = w.Seal()
	require.NoError(t, err)

	return Target{Path: path, ID: id}
}

func block(key, value string, crc uint32) []byte {
	buf := append([]byte(nil), segment.RecordMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, crc)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(key)))
	buf = append(buf, key...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func writeRaw(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.vlog")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestScan_SealedSegment(t *testing.T) {
	for _, mmap := range []bool{false, true} {
		t.Run(fmt.Sprintf("mmap=%v", mmap), func(t *testing.T) {
			target := writeSealed(t, t.TempDir(), 25, compression.None)

			result, err := Scan(context.Background(), target.Path, target.ID, Options{
				VerifyChecksums: true,
				Mmap:            mmap,
			})
			require.NoError(t, err)

			assert.Equal(t, target.ID, result.Segment)
			assert.Equal(t, int64(25), result.Records)
			assert.Equal(t, segment.EndFooter, result.End)
			assert.True(t, result.Clean())
			require.NotNil(t, result.Footer)
			assert.Equal(t, uint64(25), result.Footer.Items)
			assert.Equal(t, uint64(result.KeyBytes), result.Footer.KeyBytes)
			assert.Equal(t, []byte("key0000"), result.Footer.FirstKey)
			assert.Equal(t, []byte("key0024"), result.Footer.LastKey)
		})
	}
}

func TestScan_BareFooterMagic(t *testing.T) {
	data := append(block("a", "1", segment.Checksum([]byte("a"), []byte("1"))), segment.FooterMagic[:]...)
	path := writeRaw(t, data)

	result, err := Scan(context.Background(), path, segment.NilID, Options{VerifyChecksums: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Records)
	assert.Nil(t, result.Footer)
	assert.Equal(t, int64(len(data)), result.EndOffset)
}

func TestScan_TornTail(t *testing.T) {
	first := block("a", "1", 0)
	data := append(first, block("bb", "22", 0)[:9]...)
	path := writeRaw(t, data)

	result, err := Scan(context.Background(), path, segment.NilID, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Records)
	assert.Equal(t, segment.EndTorn, result.End)
	assert.Equal(t, int64(len(first)), result.EndOffset)
	assert.False(t, result.Corrupt)
}

func TestScan_CorruptHeader(t *testing.T) {
	first := block("a", "1", 0)
	data := append(first, []byte("JUNKJUNK")...)
	path := writeRaw(t, data)

	result, err := Scan(context.Background(), path, segment.NilID, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, segment.ErrInvalidHeader)
	assert.True(t, result.Corrupt)
	assert.Equal(t, int64(1), result.Records)
	assert.Equal(t, int64(len(first)), result.EndOffset)
	assert.Equal(t, segment.EndNone, result.End)
}

func TestScan_ChecksumFailures(t *testing.T) {
	data := append(block("a", "1", 0xdeadbeef), block("b", "2", segment.Checksum([]byte("b"), []byte("2")))...)
	path := writeRaw(t, data)

	m := metrics.New(prometheus.NewRegistry())
	result, err := Scan(context.Background(), path, segment.NilID, Options{VerifyChecksums: true, Metrics: m})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Records)
	assert.Equal(t, int64(1), result.ChecksumFailures)
	assert.False(t, result.Clean())
	assert.Equal(t, segment.EndEOF, result.End)
}

func TestScan_BadFooterPayload(t *testing.T) {
	data := append(segment.FooterMagic[:], 0x01, 0x02)
	path := writeRaw(t, data)

	result, err := Scan(context.Background(), path, segment.NilID, Options{})
	assert.ErrorIs(t, err, segment.ErrInvalidFooter)
	assert.True(t, result.Corrupt)
}

func TestScan_VisitorStop(t *testing.T) {
	target := writeSealed(t, t.TempDir(), 10, compression.None)

	var seen []string
	result, err := Scan(context.Background(), target.Path, target.ID, Options{
		Visitor: func(rec segment.Record) error {
			seen = append(seen, string(rec.Key))
			if len(seen) == 3 {
				return ErrStop
			}
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"key0000", "key0001", "key0002"}, seen)
	assert.Equal(t, int64(3), result.Records)
	assert.Equal(t, segment.EndNone, result.End)
}

func TestScan_VisitorError(t *testing.T) {
	target := writeSealed(t, t.TempDir(), 2, compression.None)
	boom := errors.New("boom")

	_, err := Scan(context.Background(), target.Path, target.ID, Options{
		Visitor: func(segment.Record) error { return boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestScan_ContextCanceled(t *testing.T) {
	target := writeSealed(t, t.TempDir(), 2, compression.None)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Scan(ctx, target.Path, target.ID, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), result.Records)
}

func TestScan_MissingFile(t *testing.T) {
	_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope.vlog"), segment.NilID, Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanAll(t *testing.T) {
	dir := t.TempDir()
	targets := []Target{
		writeSealed(t, dir, 10, compression.None),
		writeSealed(t, dir, 20, compression.Zstd),
		writeSealed(t, dir, 30, compression.LZ4),
		{Path: filepath.Join(dir, "missing.vlog"), ID: segment.NewID()},
	}

	var visited atomic.Int64
	results, err := ScanAll(context.Background(), targets, Options{
		VerifyChecksums: true,
		Visitor: func(segment.Record) error {
			visited.Add(1)
			return nil
		},
	}, 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.Len(t, results, 4)
	assert.Nil(t, results[3])

	for i, want := range []int64{10, 20, 30} {
		require.NotNil(t, results[i])
		assert.Equal(t, want, results[i].Records)
		assert.True(t, results[i].Clean())
		assert.Equal(t, targets[i].ID, results[i].Segment)
	}
	assert.Equal(t, int64(60), visited.Load())
}

func TestScanAll_SameSegmentManyReaders(t *testing.T) {
	target := writeSealed(t, t.TempDir(), 100, compression.S2)

	targets := make([]Target, 16)
	for i := range targets {
		targets[i] = target
	}

	results, err := ScanAll(context.Background(), targets, Options{VerifyChecksums: true}, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, int64(100), r.Records)
		assert.Equal(t, segment.EndFooter, r.End)
	}
}
