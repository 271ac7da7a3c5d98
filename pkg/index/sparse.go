// Package index maps keys to record block offsets inside sealed segments.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ssargent/freyja-vlog/pkg/bptree"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// DefaultInterval is how many records a sparse index entry covers by default.
const DefaultInterval = 64

var (
	ErrUnsorted = errors.New("segment keys are not in ascending order")
	ErrNoRecord = errors.New("no record at offset")
)

// Sparse indexes every Nth key of a segment written in key order. A lookup
// returns the block to start a forward scan from.
type Sparse struct {
	segment  segment.ID
	interval int
	tree     *bptree.BPlusTree[string, int64]
	records  int
	last     []byte
	end      int64
}

// NewSparse returns an empty index for segment id. Feed it records in segment
// order with Add.
func NewSparse(id segment.ID, interval int) *Sparse {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sparse{
		segment:  id,
		interval: interval,
		tree:     bptree.NewBPlusTree[string, int64](32),
	}
}

// BuildSparse reads r to the end and indexes every interval-th record.
// Reader errors are returned as-is; ErrUnsorted is returned if a key is
// smaller than the one before it.
func BuildSparse(r *segment.Reader, interval int) (*Sparse, error) {
	idx := NewSparse(r.SegmentID(), interval)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := idx.Add(rec); err != nil {
			return nil, err
		}
	}
	idx.end = r.Offset()

	return idx, nil
}

// Add records rec if it falls on the sampling interval. Only Key and Offset
// are used.
func (s *Sparse) Add(rec segment.Record) error {
	if s.records > 0 && bytes.Compare(rec.Key, s.last) < 0 {
		return fmt.Errorf("%w: %q after %q at offset %d", ErrUnsorted, rec.Key, s.last, rec.Offset)
	}
	if s.records%s.interval == 0 {
		if _, exists := s.tree.Search(string(rec.Key)); !exists {
			s.tree.Insert(string(rec.Key), rec.Offset)
		}
	}
	s.last = append(s.last[:0], rec.Key...)
	s.records++
	return nil
}

// Lookup returns the offset of the indexed block closest before key. ok is
// false when key sorts before every key in the segment.
func (s *Sparse) Lookup(key []byte) (offset int64, ok bool) {
	_, offset, ok = s.tree.Floor(string(key))
	return offset, ok
}

// Segment returns the indexed segment's ID.
func (s *Sparse) Segment() segment.ID {
	return s.segment
}

// Records returns the number of records seen while building.
func (s *Sparse) Records() int {
	return s.records
}

// Entries returns the number of index entries.
func (s *Sparse) Entries() int {
	return s.tree.Len()
}

// End returns the reader offset when BuildSparse finished.
func (s *Sparse) End() int64 {
	return s.end
}

// Interval returns the sampling interval.
func (s *Sparse) Interval() int {
	return s.interval
}
