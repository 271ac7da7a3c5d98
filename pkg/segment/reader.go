package segment

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// DefaultBufferSize is the read buffer used when a config leaves it unset.
const DefaultBufferSize = 64 * 1024

// maxEagerAlloc caps the up-front allocation for a value whose declared length
// cannot be checked against the stream size. Larger values grow as they arrive.
const maxEagerAlloc = 1 << 20

type state uint8

const (
	stateReading state = iota
	stateTerminated
)

// EndReason tells why a Reader stopped producing records.
type EndReason uint8

const (
	// EndNone means the reader has not terminated.
	EndNone EndReason = iota
	// EndFooter means the footer magic was read. Offset points at the footer payload.
	EndFooter
	// EndEOF means the stream ended exactly at a block boundary.
	EndEOF
	// EndTorn means the stream ended partway through a block.
	EndTorn
)

func (e EndReason) String() string {
	switch e {
	case EndNone:
		return "none"
	case EndFooter:
		return "footer"
	case EndEOF:
		return "eof"
	case EndTorn:
		return "torn"
	default:
		return "unknown"
	}
}

// ReaderConfig holds configuration for a segment reader
type ReaderConfig struct {
	FilePath    string // Path to the sealed segment file
	SegmentID   ID     // Identifier carried for diagnostics
	StartOffset int64  // Block boundary to start decoding from
	BufferSize  int    // Read buffer size
}

// Reader decodes the record blocks of one sealed segment in file order.
//
// A Reader is a two-state machine. While reading, every call to Next decodes
// one block. Once the footer magic or the end of the stream is reached the
// reader is terminated for good and Next keeps returning io.EOF without
// touching the file.
//
// A Reader is not safe for concurrent use. It holds no locks because the file
// underneath is sealed; independent Readers over the same segment need no
// coordination.
type Reader struct {
	id      ID
	src     io.Reader
	closer  io.Closer
	offset  int64 // end of the last complete block
	size    int64 // bytes in the underlying stream, -1 if unknown
	state   state
	end     EndReason
	scratch [4]byte
}

// Open opens the segment at path for reading from its first byte.
func Open(path string, id ID) (*Reader, error) {
	return NewReader(ReaderConfig{FilePath: path, SegmentID: id})
}

// NewReader opens a segment file as described by config.
func NewReader(config ReaderConfig) (*Reader, error) {
	if config.StartOffset < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, config.StartOffset)
	}

	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	bufSize := config.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	// Pipes and devices report a size of 0.
	size := int64(-1)
	if info.Mode().IsRegular() {
		size = info.Size()
	}

	return &Reader{
		id:     config.SegmentID,
		src:    bufio.NewReaderSize(file, bufSize),
		closer: file,
		offset: config.StartOffset,
		size:   size,
	}, nil
}

// NewReaderFrom decodes a segment from an arbitrary byte stream positioned at
// a block boundary. If r is an io.Closer, Close closes it.
//
// When r has a Len method, declared lengths running past it end the stream as
// torn. Otherwise large values are read in bounded chunks, so a garbage length
// costs at most what the stream actually holds.
func NewReaderFrom(id ID, r io.Reader) *Reader {
	rd := &Reader{
		id:   id,
		src:  r,
		size: -1,
	}
	if l, ok := r.(interface{ Len() int }); ok {
		rd.size = int64(l.Len())
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// SegmentID returns the identifier the reader was opened with.
func (r *Reader) SegmentID() ID {
	return r.id
}

// Offset returns the byte offset just past the last fully decoded block.
// After termination through the footer it is where the footer payload starts.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Terminated reports whether the reader has stopped for good.
func (r *Reader) Terminated() bool {
	return r.state == stateTerminated
}

// EndReason reports why the reader terminated.
func (r *Reader) EndReason() EndReason {
	return r.end
}

// FooterReached reports whether decoding stopped at the footer magic.
func (r *Reader) FooterReached() bool {
	return r.end == EndFooter
}

// Next decodes the next record block.
//
// It returns the record and a nil error, io.EOF once the segment has no more
// records, or a non-nil error. A short read anywhere in a block is a clean end,
// not an error. A *HeaderError is returned when a complete leading token
// matches neither magic; callers must stop pulling after any error.
func (r *Reader) Next() (Record, error) {
	if r.state == stateTerminated {
		return Record{}, io.EOF
	}

	start := r.offset
	magic := r.scratch[:MagicSize]

	n, ok, err := r.fill(magic)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		if n == 0 {
			return r.terminate(EndEOF)
		}
		return r.terminate(EndTorn)
	}

	switch [MagicSize]byte(magic) {
	case FooterMagic:
		r.offset = start + MagicSize
		return r.terminate(EndFooter)
	case RecordMagic:
	default:
		return Record{}, &HeaderError{Segment: r.id, Offset: start, Got: [MagicSize]byte(magic)}
	}

	if _, ok, err = r.fill(r.scratch[:checksumSize]); !ok {
		return r.torn(err)
	}
	checksum := binary.BigEndian.Uint32(r.scratch[:checksumSize])

	if _, ok, err = r.fill(r.scratch[:keyLenSize]); !ok {
		return r.torn(err)
	}
	keyLen := int64(binary.BigEndian.Uint16(r.scratch[:keyLenSize]))

	pos := start + MagicSize + checksumSize + keyLenSize
	if !r.available(pos, keyLen) {
		return r.terminate(EndTorn)
	}
	key := make([]byte, keyLen)
	if _, ok, err = r.fill(key); !ok {
		return r.torn(err)
	}

	if _, ok, err = r.fill(r.scratch[:valueLenSize]); !ok {
		return r.torn(err)
	}
	valueLen := int64(binary.BigEndian.Uint32(r.scratch[:valueLenSize]))

	pos += keyLen + valueLenSize
	if !r.available(pos, valueLen) {
		return r.terminate(EndTorn)
	}
	value, ok, err := r.readValue(valueLen)
	if !ok {
		return r.torn(err)
	}

	r.offset = pos + valueLen
	return Record{
		Offset:   start,
		Key:      key,
		Value:    value,
		Checksum: checksum,
	}, nil
}

// Close releases the underlying file. The reader is terminated afterwards.
func (r *Reader) Close() error {
	r.state = stateTerminated
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}

// fill reads exactly len(buf) bytes. ok is false when the stream ended first;
// err is only set for failures other than end of stream.
func (r *Reader) fill(buf []byte) (n int, ok bool, err error) {
	n, err = io.ReadFull(r.src, buf)
	switch {
	case err == nil:
		return n, true, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, false, nil
	default:
		return n, false, err
	}
}

// readValue reads n bytes into a fresh slice. Without a known stream size it
// allocates at most maxEagerAlloc ahead of the bytes actually read.
func (r *Reader) readValue(n int64) ([]byte, bool, error) {
	if r.size >= 0 || n <= maxEagerAlloc {
		value := make([]byte, n)
		_, ok, err := r.fill(value)
		return value, ok, err
	}

	value := make([]byte, 0, maxEagerAlloc)
	for int64(len(value)) < n {
		chunk := int(min(n-int64(len(value)), maxEagerAlloc))
		start := len(value)
		value = slices.Grow(value, chunk)[:start+chunk]
		if _, ok, err := r.fill(value[start:]); !ok {
			return nil, false, err
		}
	}
	return value, true, nil
}

// available reports whether n bytes starting at pos can still be in the stream.
func (r *Reader) available(pos, n int64) bool {
	return r.size < 0 || pos+n <= r.size
}

func (r *Reader) torn(err error) (Record, error) {
	if err != nil {
		return Record{}, err
	}
	return r.terminate(EndTorn)
}

func (r *Reader) terminate(reason EndReason) (Record, error) {
	r.state = stateTerminated
	r.end = reason
	return Record{}, io.EOF
}
