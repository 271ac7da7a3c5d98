// Package api provides interfaces for dependency injection
package api

import (
	"context"
	"log/slog"

	"github.com/ssargent/freyja-vlog/pkg/metrics"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves store until ctx is canceled
	StartServer(ctx context.Context, store ISegmentStore, config ServerConfig, m *metrics.Metrics, logger *slog.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
