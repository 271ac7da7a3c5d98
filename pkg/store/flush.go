package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ssargent/freyja-vlog/pkg/catalog"
	"github.com/ssargent/freyja-vlog/pkg/index"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// Flush writes entries to a new sealed segment in key order and registers it.
// When a key appears more than once the last entry wins.
func (s *Store) Flush(entries []Entry) (*catalog.Descriptor, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyFlush
	}
	for _, e := range entries {
		if len(e.Key) == 0 {
			return nil, ErrInvalidKey
		}
	}

	s.mutex.RLock()
	open := s.isOpen
	s.mutex.RUnlock()
	if !open {
		return nil, ErrClosed
	}

	sorted := sortEntries(entries)

	id := segment.NewID()
	path := filepath.Join(SegmentDir(s.config.DataDir), id.String()+SegmentExt)
	w, err := segment.NewWriter(segment.WriterConfig{
		FilePath:               path,
		SegmentID:              id,
		BufferSize:             s.config.WriterBufferSize,
		Compression:            s.config.Compression,
		BloomFalsePositiveRate: s.config.BloomFalsePositiveRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create segment: %w", err)
	}

	sparse := index.NewSparse(id, s.config.IndexInterval)
	for _, e := range sorted {
		offset, err := w.Append(e.Key, e.Value)
		if err != nil {
			w.Abort()
			return nil, fmt.Errorf("failed to append %q: %w", e.Key, err)
		}
		if err := sparse.Add(segment.Record{Offset: offset, Key: e.Key}); err != nil {
			w.Abort()
			return nil, err
		}
	}

	footer, footerOffset, err := w.Seal()
	if err != nil {
		w.Abort()
		return nil, fmt.Errorf("failed to seal segment: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	desc := &catalog.Descriptor{
		ID:           id,
		Path:         path,
		Records:      footer.Items,
		FooterOffset: footerOffset,
		Size:         info.Size(),
		Compression:  footer.Compression,
		FirstKey:     footer.FirstKey,
		LastKey:      footer.LastKey,
		CreatedAt:    footer.CreatedAt,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		os.Remove(path)
		return nil, ErrClosed
	}
	if err := s.catalog.Put(desc); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to register segment: %w", err)
	}
	s.segments = append(s.segments, &segmentState{desc: desc, footer: footer, sparse: sparse})

	s.config.Metrics.RecordFlush()
	s.config.Metrics.SetSegments(len(s.segments))
	s.logger.Info("segment flushed",
		"segment", id.String(),
		"records", desc.Records,
		"size", desc.Size)

	out := *desc
	return &out, nil
}

// sortEntries returns entries sorted by key with duplicates removed.
func sortEntries(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Key, sorted[j].Key) < 0
	})

	out := sorted[:0]
	for i, e := range sorted {
		if i+1 < len(sorted) && bytes.Equal(e.Key, sorted[i+1].Key) {
			continue
		}
		out = append(out, e)
	}
	return out
}
