package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/freyja-vlog/pkg/catalog"
	"github.com/ssargent/freyja-vlog/pkg/segment"
	"github.com/ssargent/freyja-vlog/pkg/store"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind             string
	Port             int
	APIKey           string // empty disables authentication
	ReaderBufferSize int
	Mmap             bool
	Gatherer         prometheus.Gatherer // served on /metrics; nil uses the default registry
}

// ISegmentStore defines the store operations the API serves
type ISegmentStore interface {
	Get(key []byte) ([]byte, error)
	ListKeys(prefix []byte) ([]string, error)
	Flush(entries []store.Entry) (*catalog.Descriptor, error)
	Segments() []catalog.Descriptor
	Segment(id segment.ID) (*catalog.Descriptor, *segment.Footer, error)
	Remove(id segment.ID) error
	Stats() *store.Stats
}

// FlushRequest is the body of POST /segments
type FlushRequest struct {
	Entries []FlushEntry `json:"entries"`
}

// FlushEntry is one key-value pair to flush. Value is stored as given.
type FlushEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SegmentResponse describes one segment
type SegmentResponse struct {
	catalog.Descriptor
	Footer *FooterResponse `json:"footer,omitempty"`
}

// FooterResponse is the JSON form of a segment footer
type FooterResponse struct {
	Version     uint8     `json:"version"`
	Compression string    `json:"compression"`
	Items       uint64    `json:"items"`
	KeyBytes    uint64    `json:"key_bytes"`
	ValueBytes  uint64    `json:"value_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	FirstKey    string    `json:"first_key"`
	LastKey     string    `json:"last_key"`
	HasFilter   bool      `json:"has_filter"`
}

// RecordResponse is one decoded record block
type RecordResponse struct {
	Offset   int64  `json:"offset"`
	Key      string `json:"key"`
	Value    []byte `json:"value"`
	Checksum uint32 `json:"checksum"`
	Valid    bool   `json:"valid"`
}

// RecordsPage is a page of records read from a block boundary
type RecordsPage struct {
	Records    []RecordResponse `json:"records"`
	NextOffset int64            `json:"next_offset"`
	End        string           `json:"end"`
}

// VerifyResponse summarizes a verification scan
type VerifyResponse struct {
	Segment          segment.ID `json:"segment"`
	Records          int64      `json:"records"`
	EndOffset        int64      `json:"end_offset"`
	End              string     `json:"end"`
	Corrupt          bool       `json:"corrupt"`
	ChecksumFailures int64      `json:"checksum_failures"`
	Duration         string     `json:"duration"`
	Error            string     `json:"error,omitempty"`
}

func footerResponse(f *segment.Footer) *FooterResponse {
	if f == nil {
		return nil
	}
	return &FooterResponse{
		Version:     f.Version,
		Compression: f.Compression.String(),
		Items:       f.Items,
		KeyBytes:    f.KeyBytes,
		ValueBytes:  f.ValueBytes,
		CreatedAt:   f.CreatedAt,
		FirstKey:    string(f.FirstKey),
		LastKey:     string(f.LastKey),
		HasFilter:   f.Filter != nil,
	}
}
