package store

import (
	"log/slog"

	"github.com/ssargent/freyja-vlog/pkg/compression"
	"github.com/ssargent/freyja-vlog/pkg/metrics"
)

// Config holds configuration for the segment store
type Config struct {
	DataDir                string           // Directory for segments and the catalog
	ReaderBufferSize       int              // Read buffer size for scans and lookups
	Mmap                   bool             // Scan segments through memory mappings
	WriterBufferSize       int              // Write buffer size for new segments
	Compression            compression.Type // Value codec for new segments
	BloomFalsePositiveRate float64          // Footer filter target rate
	IndexInterval          int              // Records per sparse index entry
	Parallelism            int              // Concurrent segment scans on open
	Logger                 *slog.Logger
	Metrics                *metrics.Metrics
}

// Entry is one key-value pair handed to Flush
type Entry struct {
	Key   []byte
	Value []byte
}

// Stats summarizes the open segments
type Stats struct {
	Segments   int   `json:"segments"`
	Records    int64 `json:"records"`
	SizeBytes  int64 `json:"size_bytes"`
	Quarantine int   `json:"quarantined"`
}

// Errors
var (
	ErrKeyNotFound = &KVError{"key not found"}
	ErrInvalidKey  = &KVError{"invalid key"}
	ErrEmptyFlush  = &KVError{"nothing to flush"}
	ErrClosed      = &KVError{"store is not open"}
	ErrCorruption  = &KVError{"data corruption detected"}
)

// KVError represents a store error
type KVError struct {
	Message string
}

func (e *KVError) Error() string {
	return e.Message
}
