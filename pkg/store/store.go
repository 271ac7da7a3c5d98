// Package store keeps a directory of sealed segments and answers point
// lookups across them, newest segment first.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ssargent/freyja-vlog/pkg/catalog"
	"github.com/ssargent/freyja-vlog/pkg/index"
	"github.com/ssargent/freyja-vlog/pkg/logging"
	"github.com/ssargent/freyja-vlog/pkg/scan"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// SegmentExt is the file extension of segment files.
const SegmentExt = ".vlog"

// segmentState is an open, verified segment.
type segmentState struct {
	desc   *catalog.Descriptor
	footer *segment.Footer
	sparse *index.Sparse
}

// Store provides lookups over every registered segment
type Store struct {
	config     Config
	catalog    *catalog.Catalog
	segments   []*segmentState // oldest first
	quarantine []*catalog.Descriptor
	recovery   []*scan.Result
	logger     *slog.Logger
	mutex      sync.RWMutex
	isOpen     bool
}

// Open opens the catalog in config.DataDir and scans every registered
// segment, verifying checksums and building its sparse index. Segments that
// are missing, corrupt, or hold fewer records than registered are
// quarantined: they stay in the catalog but are not searched.
func Open(ctx context.Context, config Config) (*Store, error) {
	if config.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if config.IndexInterval <= 0 {
		config.IndexInterval = index.DefaultInterval
	}
	if err := os.MkdirAll(SegmentDir(config.DataDir), 0750); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}

	cat, err := catalog.Open(filepath.Join(config.DataDir, "catalog"))
	if err != nil {
		return nil, err
	}

	s := &Store{
		config:  config,
		catalog: cat,
		logger:  logging.OrDiscard(config.Logger),
	}
	if err := s.recover(ctx); err != nil {
		cat.Close()
		return nil, err
	}
	s.isOpen = true
	config.Metrics.SetSegments(len(s.segments))

	return s, nil
}

// recover scans every registered segment concurrently.
func (s *Store) recover(ctx context.Context) error {
	descs, err := s.catalog.List()
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}

	states := make([]*segmentState, len(descs))
	results := make([]*scan.Result, len(descs))

	g, gctx := errgroup.WithContext(ctx)
	if s.config.Parallelism > 0 {
		g.SetLimit(s.config.Parallelism)
	}

	for i, desc := range descs {
		i, desc := i, desc
		g.Go(func() error {
			sparse := index.NewSparse(desc.ID, s.config.IndexInterval)
			result, err := scan.Scan(gctx, desc.Path, desc.ID, scan.Options{
				VerifyChecksums: true,
				Mmap:            s.config.Mmap,
				BufferSize:      s.config.ReaderBufferSize,
				Visitor:         sparse.Add,
				Logger:          s.logger,
				Metrics:         s.config.Metrics,
			})
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = result

			logger := logging.WithSegment(s.logger, desc.ID, desc.Path)
			switch {
			case err != nil:
				logger.Error("segment failed recovery scan", "error", err)
			case !result.Clean():
				logger.Error("segment failed checksum verification", "failures", result.ChecksumFailures)
			case uint64(result.Records) != desc.Records:
				logger.Error("segment is missing records", "registered", desc.Records, "found", result.Records)
			default:
				states[i] = &segmentState{desc: desc, footer: result.Footer, sparse: sparse}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, state := range states {
		if state == nil {
			s.quarantine = append(s.quarantine, descs[i])
			continue
		}
		s.segments = append(s.segments, state)
	}
	s.recovery = results

	s.logger.Info("store opened",
		"segments", len(s.segments),
		"quarantined", len(s.quarantine))
	return nil
}

// SegmentDir returns the directory segment files are written to.
func SegmentDir(dataDir string) string {
	return filepath.Join(dataDir, "segments")
}

// Segments returns the descriptors of the searchable segments, oldest first.
func (s *Store) Segments() []catalog.Descriptor {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]catalog.Descriptor, len(s.segments))
	for i, seg := range s.segments {
		out[i] = *seg.desc
	}
	return out
}

// Quarantined returns the descriptors of segments that failed recovery.
func (s *Store) Quarantined() []catalog.Descriptor {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]catalog.Descriptor, len(s.quarantine))
	for i, d := range s.quarantine {
		out[i] = *d
	}
	return out
}

// Segment returns the descriptor and footer of a searchable segment.
func (s *Store) Segment(id segment.ID) (*catalog.Descriptor, *segment.Footer, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, seg := range s.segments {
		if seg.desc.ID == id {
			desc := *seg.desc
			return &desc, seg.footer, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", catalog.ErrNotFound, id)
}

// Recovery returns the scan results gathered by Open, in catalog order. A
// segment that could not be opened has a nil result.
func (s *Store) Recovery() []*scan.Result {
	return s.recovery
}

// Remove unregisters a segment and deletes its file.
func (s *Store) Remove(id segment.ID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrClosed
	}

	desc, err := s.catalog.Get(id)
	if err != nil {
		return err
	}
	if err := s.catalog.Delete(id); err != nil {
		return err
	}

	for i, seg := range s.segments {
		if seg.desc.ID == id {
			s.segments = append(s.segments[:i], s.segments[i+1:]...)
			break
		}
	}
	for i, d := range s.quarantine {
		if d.ID == id {
			s.quarantine = append(s.quarantine[:i], s.quarantine[i+1:]...)
			break
		}
	}
	s.config.Metrics.SetSegments(len(s.segments))

	if err := os.Remove(desc.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.logger.Info("segment removed", "segment", id.String())
	return nil
}

// Stats returns store statistics
func (s *Store) Stats() *Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := &Stats{
		Segments:   len(s.segments),
		Quarantine: len(s.quarantine),
	}
	for _, seg := range s.segments {
		stats.Records += int64(seg.desc.Records)
		stats.SizeBytes += seg.desc.Size
	}
	return stats
}

// Close shuts down the store
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false
	s.segments = nil
	return s.catalog.Close()
}
