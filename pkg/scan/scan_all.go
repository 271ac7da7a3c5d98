package scan

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// Target names one segment to scan.
type Target struct {
	Path string
	ID   segment.ID
}

// ScanAll scans targets concurrently, each with its own reader, at most
// parallelism at a time. Results are returned in target order; a target that
// could not be opened has a nil result. Errors from all targets are joined.
// opts.Visitor, when set, is called from several goroutines.
func ScanAll(ctx context.Context, targets []Target, opts Options, parallelism int) ([]*Result, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(targets))
	errs := make([]error, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			results[i], errs[i] = Scan(ctx, target.Path, target.ID, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, errors.Join(errs...)
}
