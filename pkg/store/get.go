package store

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ssargent/freyja-vlog/pkg/compression"
	"github.com/ssargent/freyja-vlog/pkg/index"
	"github.com/ssargent/freyja-vlog/pkg/metrics"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// Get retrieves the newest value for a key
func (s *Store) Get(key []byte) ([]byte, error) {
	start := time.Now()
	value, result, err := s.get(key)
	s.config.Metrics.RecordLookup(result, time.Since(start))
	return value, err
}

func (s *Store) get(key []byte) ([]byte, string, error) {
	if len(key) == 0 {
		return nil, metrics.LookupError, ErrInvalidKey
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return nil, metrics.LookupError, ErrClosed
	}

	filtered := len(s.segments) > 0
	for i := len(s.segments) - 1; i >= 0; i-- {
		seg := s.segments[i]
		if !seg.mayContain(key) {
			continue
		}
		filtered = false

		value, found, err := s.lookup(seg, key)
		if err != nil {
			return nil, metrics.LookupError, err
		}
		if found {
			return value, metrics.LookupHit, nil
		}
	}

	if filtered {
		return nil, metrics.LookupFiltered, ErrKeyNotFound
	}
	return nil, metrics.LookupMiss, ErrKeyNotFound
}

// mayContain rules a segment out using only the footer.
func (seg *segmentState) mayContain(key []byte) bool {
	if seg.footer == nil {
		return true
	}
	if bytes.Compare(key, seg.footer.FirstKey) < 0 || bytes.Compare(key, seg.footer.LastKey) > 0 {
		return false
	}
	return seg.footer.MayContain(key)
}

// lookup scans forward from the sparse index entry at or before key.
func (s *Store) lookup(seg *segmentState, key []byte) ([]byte, bool, error) {
	offset, ok := seg.sparse.Lookup(key)
	if !ok {
		return nil, false, nil
	}

	r, err := segment.NewReader(segment.ReaderConfig{
		FilePath:    seg.desc.Path,
		SegmentID:   seg.desc.ID,
		StartOffset: offset,
		BufferSize:  s.config.ReaderBufferSize,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to open segment %s: %w", seg.desc.ID, err)
	}
	defer r.Close()

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read segment %s: %w", seg.desc.ID, err)
		}

		c := bytes.Compare(rec.Key, key)
		if c < 0 {
			continue
		}
		if c > 0 {
			return nil, false, nil
		}

		if err := rec.Verify(); err != nil {
			return nil, false, fmt.Errorf("%w: segment %s offset %d: %v", ErrCorruption, seg.desc.ID, rec.Offset, err)
		}
		value, err := compression.Decompress(seg.desc.Compression, rec.Value)
		if err != nil {
			return nil, false, fmt.Errorf("%w: segment %s offset %d: %v", ErrCorruption, seg.desc.ID, rec.Offset, err)
		}
		return value, true, nil
	}
}

// ListKeys returns all keys that match the given prefix, sorted
func (s *Store) ListKeys(prefix []byte) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return nil, ErrClosed
	}

	dense := index.NewDense()
	for _, seg := range s.segments {
		if seg.footer != nil && len(prefix) > 0 && !prefixOverlaps(prefix, seg.footer.FirstKey, seg.footer.LastKey) {
			continue
		}
		r, err := segment.NewReader(segment.ReaderConfig{
			FilePath:   seg.desc.Path,
			SegmentID:  seg.desc.ID,
			BufferSize: s.config.ReaderBufferSize,
		})
		if err != nil {
			return nil, err
		}
		_, err = dense.AddSegment(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to index segment %s: %w", seg.desc.ID, err)
		}
	}

	keys := dense.KeysWithPrefix(string(prefix))
	sort.Strings(keys)
	return keys, nil
}

// prefixOverlaps reports whether any key with prefix can fall in [first, last].
func prefixOverlaps(prefix, first, last []byte) bool {
	if bytes.Compare(prefix, last) > 0 && !bytes.HasPrefix(last, prefix) {
		return false
	}
	if bytes.Compare(prefix, first) < 0 {
		return bytes.HasPrefix(first, prefix)
	}
	return true
}
