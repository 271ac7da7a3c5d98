package index

import (
	"fmt"
	"io"

	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// ReadAt decodes the single record block that starts at offset.
func ReadAt(path string, id segment.ID, offset int64) (segment.Record, error) {
	r, err := segment.NewReader(segment.ReaderConfig{
		FilePath:    path,
		SegmentID:   id,
		StartOffset: offset,
		BufferSize:  4096,
	})
	if err != nil {
		return segment.Record{}, err
	}
	defer r.Close()

	rec, err := r.Next()
	if err == io.EOF {
		return segment.Record{}, fmt.Errorf("%w %d in segment %s", ErrNoRecord, offset, id)
	}
	return rec, err
}
