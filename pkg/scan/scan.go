// Package scan walks whole segments: counting, verifying and visiting every
// record, and parsing the footer when the segment has one.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ssargent/freyja-vlog/pkg/logging"
	"github.com/ssargent/freyja-vlog/pkg/metrics"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// ErrStop may be returned by a Visitor to end a scan early without error.
var ErrStop = errors.New("stop scan")

// Visitor is called for every decoded record in segment order.
type Visitor func(rec segment.Record) error

// Options control a scan.
type Options struct {
	VerifyChecksums bool // recompute every record checksum
	Mmap            bool // read through a memory mapping
	BufferSize      int
	Visitor         Visitor
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Result describes a finished scan
type Result struct {
	Segment          segment.ID
	Path             string
	Records          int64
	KeyBytes         int64
	ValueBytes       int64
	EndOffset        int64             // end of the last complete block, or past the footer magic
	End              segment.EndReason // EndNone when the scan stopped early
	Footer           *segment.Footer   // nil when the segment has no footer payload
	Corrupt          bool
	ChecksumFailures int64
	Duration         time.Duration
}

// Clean reports whether the scan found neither corruption nor bad checksums.
func (r *Result) Clean() bool {
	return !r.Corrupt && r.ChecksumFailures == 0
}

// Scan reads the segment at path from start to end. A corrupt header stops
// the scan and is returned wrapped, with Result.Corrupt set. Checksum
// failures are counted but do not stop the scan.
func Scan(ctx context.Context, path string, id segment.ID, opts Options) (*Result, error) {
	startTime := time.Now()
	logger := logging.WithSegment(logging.OrDiscard(opts.Logger), id, path)

	reader, err := openReader(path, id, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", id, err)
	}
	defer reader.Close()

	result := &Result{Segment: id, Path: path}
	finish := func() {
		result.EndOffset = reader.Offset()
		result.End = reader.EndReason()
		result.Duration = time.Since(startTime)
		opts.Metrics.RecordScan(result.End.String(), result.Duration)
	}

	for {
		if err := ctx.Err(); err != nil {
			finish()
			return result, err
		}

		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var headerErr *segment.HeaderError
			if errors.As(err, &headerErr) {
				result.Corrupt = true
				logger.Warn("corrupt block header", "offset", headerErr.Offset, "magic", fmt.Sprintf("%x", headerErr.Got))
			}
			finish()
			return result, fmt.Errorf("failed to scan segment %s: %w", id, err)
		}

		result.Records++
		result.KeyBytes += int64(len(rec.Key))
		result.ValueBytes += int64(len(rec.Value))
		opts.Metrics.RecordDecoded(rec.Size())

		if opts.VerifyChecksums {
			if err := rec.Verify(); err != nil {
				result.ChecksumFailures++
				opts.Metrics.RecordChecksumFailure()
				logger.Warn("checksum mismatch", "offset", rec.Offset, "key", string(rec.Key))
			}
		}

		if opts.Visitor != nil {
			if err := opts.Visitor(rec); err != nil {
				finish()
				if errors.Is(err, ErrStop) {
					return result, nil
				}
				return result, err
			}
		}
	}

	finish()

	if reader.FooterReached() {
		footer, err := readFooter(path, result.EndOffset)
		if err != nil {
			result.Corrupt = true
			return result, fmt.Errorf("failed to read footer of segment %s: %w", id, err)
		}
		result.Footer = footer
	}

	logger.Debug("segment scanned",
		"records", result.Records,
		"end", result.End.String(),
		"end_offset", result.EndOffset,
		"duration", result.Duration)

	return result, nil
}

func openReader(path string, id segment.ID, opts Options) (*segment.Reader, error) {
	if opts.Mmap {
		return segment.OpenMapped(path, id)
	}
	return segment.NewReader(segment.ReaderConfig{
		FilePath:   path,
		SegmentID:  id,
		BufferSize: opts.BufferSize,
	})
}

// readFooter parses the payload after the footer magic. A bare footer magic
// at the end of the file has no payload and yields a nil footer.
func readFooter(path string, offset int64) (*segment.Footer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == offset {
		return nil, nil
	}
	return segment.ReadFooterAt(path, offset)
}
