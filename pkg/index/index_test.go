package index

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/freyja-vlog/pkg/segment"
)

type kv struct {
	key, value string
}

// writeSegment seals pairs into a new segment file under t.TempDir.
func writeSegment(t *testing.T, pairs []kv) (string, segment.ID, []int64) {
	t.Helper()

	id := segment.NewID()
	path := filepath.Join(t.TempDir(), id.String()+".vlog")
	w, err := segment.NewWriter(segment.WriterConfig{FilePath: path, SegmentID: id})
	require.NoError(t, err)

	offsets := make([]int64, 0, len(pairs))
	for _, p := range pairs {
		off, err := w.Append([]byte(p.key), []byte(p.value))
		require.NoError(t, err)
		offsets = append(offsets, off)
	}
	_, _, err = w.Seal()
	require.NoError(t, err)

	return path, id, offsets
}

func sortedPairs(n int) []kv {
	pairs := make([]kv, n)
	for i := range pairs {
		pairs[i] = kv{fmt.Sprintf("key%05d", i), fmt.Sprintf("value%d", i)}
	}
	return pairs
}

func TestBuildSparse(t *testing.T) {
	pairs := sortedPairs(100)
	path, id, offsets := writeSegment(t, pairs)

	r, err := segment.Open(path, id)
	require.NoError(t, err)
	defer r.Close()

	idx, err := BuildSparse(r, 10)
	require.NoError(t, err)

	assert.Equal(t, 100, idx.Records())
	assert.Equal(t, 10, idx.Entries())
	assert.Equal(t, 10, idx.Interval())
	assert.Equal(t, id, idx.Segment())
	assert.True(t, r.FooterReached())
	assert.Equal(t, r.Offset(), idx.End())

	tests := []struct {
		name   string
		key    string
		want   int64
		wantOK bool
	}{
		{"before first key", "a", 0, false},
		{"first key", "key00000", offsets[0], true},
		{"exact sampled key", "key00050", offsets[50], true},
		{"between samples", "key00057", offsets[50], true},
		{"after last key", "zzz", offsets[90], true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.Lookup([]byte(tt.key))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBuildSparse_DefaultInterval(t *testing.T) {
	path, id, _ := writeSegment(t, sortedPairs(DefaultInterval*2+1))

	r, err := segment.Open(path, id)
	require.NoError(t, err)
	defer r.Close()

	idx, err := BuildSparse(r, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, idx.Interval())
	assert.Equal(t, 3, idx.Entries())
}

func TestBuildSparse_Unsorted(t *testing.T) {
	path, id, _ := writeSegment(t, []kv{{"b", "1"}, {"a", "2"}})

	r, err := segment.Open(path, id)
	require.NoError(t, err)
	defer r.Close()

	_, err = BuildSparse(r, 1)
	assert.ErrorIs(t, err, ErrUnsorted)
}

func TestBuildSparse_CorruptHeader(t *testing.T) {
	path, id, offsets := writeSegment(t, sortedPairs(3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[offsets[1]] = 'X'
	require.NoError(t, os.WriteFile(path, data, 0600))

	r, err := segment.Open(path, id)
	require.NoError(t, err)
	defer r.Close()

	_, err = BuildSparse(r, 1)
	assert.ErrorIs(t, err, segment.ErrInvalidHeader)
}

func TestSparseLookupThenScan(t *testing.T) {
	pairs := sortedPairs(50)
	path, id, _ := writeSegment(t, pairs)

	r, err := segment.Open(path, id)
	require.NoError(t, err)
	idx, err := BuildSparse(r, 8)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	target := pairs[37]
	start, ok := idx.Lookup([]byte(target.key))
	require.True(t, ok)

	scan, err := segment.NewReader(segment.ReaderConfig{FilePath: path, SegmentID: id, StartOffset: start})
	require.NoError(t, err)
	defer scan.Close()

	steps := 0
	for {
		rec, err := scan.Next()
		require.NoError(t, err)
		steps++
		if string(rec.Key) == target.key {
			assert.Equal(t, target.value, string(rec.Value))
			break
		}
	}
	assert.LessOrEqual(t, steps, 8)
}

func TestDense_PutGetDelete(t *testing.T) {
	idx := NewDense()
	id := segment.NewID()

	_, exists := idx.Get([]byte("missing"))
	assert.False(t, exists)

	idx.Put([]byte("k"), Entry{Segment: id, Offset: 10, Size: 20})
	entry, exists := idx.Get([]byte("k"))
	assert.True(t, exists)
	assert.Equal(t, Entry{Segment: id, Offset: 10, Size: 20}, entry)

	idx.Put([]byte("k"), Entry{Segment: id, Offset: 30, Size: 20})
	entry, _ = idx.Get([]byte("k"))
	assert.Equal(t, int64(30), entry.Offset)
	assert.Equal(t, 1, idx.Len())

	idx.Delete([]byte("k"))
	assert.Equal(t, 0, idx.Len())

	idx.Put([]byte("x"), Entry{})
	idx.Clear()
	assert.Equal(t, 0, idx.Len())
}

func TestDense_KeysWithPrefix(t *testing.T) {
	idx := NewDense()
	for _, k := range []string{"user:1", "user:2", "order:1"} {
		idx.Put([]byte(k), Entry{})
	}

	assert.ElementsMatch(t, []string{"user:1", "user:2"}, idx.KeysWithPrefix("user:"))
	assert.Len(t, idx.Keys(), 3)
	assert.Empty(t, idx.KeysWithPrefix("nope"))
}

func TestDense_AddSegmentNewestWins(t *testing.T) {
	oldPath, oldID, _ := writeSegment(t, []kv{{"a", "old"}, {"b", "old"}})
	newPath, newID, newOffsets := writeSegment(t, []kv{{"b", "new"}, {"c", "new"}})

	idx := NewDense()
	for _, s := range []struct {
		path string
		id   segment.ID
	}{{oldPath, oldID}, {newPath, newID}} {
		r, err := segment.Open(s.path, s.id)
		require.NoError(t, err)
		n, err := idx.AddSegment(r)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.NoError(t, r.Close())
	}

	assert.Equal(t, 3, idx.Len())

	entry, ok := idx.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, oldID, entry.Segment)

	entry, ok = idx.Get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, newID, entry.Segment)
	assert.Equal(t, newOffsets[0], entry.Offset)
	assert.Equal(t, segment.BlockSize(1, 3), entry.Size)

	rec, err := ReadAt(newPath, newID, entry.Offset)
	require.NoError(t, err)
	assert.Equal(t, "new", string(rec.Value))
	assert.NoError(t, rec.Verify())
}

func TestReadAt_FooterOffset(t *testing.T) {
	path, id, _ := writeSegment(t, []kv{{"a", "1"}})

	_, err := ReadAt(path, id, segment.BlockSize(1, 1))
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestSparseAdd(t *testing.T) {
	id := segment.NewID()
	idx := NewSparse(id, 2)

	for i, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, idx.Add(segment.Record{Offset: int64(i * 100), Key: []byte(k)}))
	}
	assert.Equal(t, 5, idx.Records())
	assert.Equal(t, 3, idx.Entries())

	off, ok := idx.Lookup([]byte("d"))
	assert.True(t, ok)
	assert.Equal(t, int64(200), off)

	assert.ErrorIs(t, idx.Add(segment.Record{Key: []byte("b")}), ErrUnsorted)
}
