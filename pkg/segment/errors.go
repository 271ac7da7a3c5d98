package segment

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrInvalidHeader    = errors.New("invalid block header")
	ErrInvalidFooter    = errors.New("invalid segment footer")
	ErrChecksumMismatch = errors.New("record checksum mismatch")
	ErrKeyTooLarge      = errors.New("key exceeds 65535 bytes")
	ErrValueTooLarge    = errors.New("value exceeds 4294967295 bytes")
	ErrSealed           = errors.New("segment is sealed")
	ErrInvalidOffset    = errors.New("invalid start offset")
)

// HeaderError reports a fully read leading token that is neither RecordMagic
// nor FooterMagic. It always indicates corruption, never a short file.
type HeaderError struct {
	Segment ID
	Offset  int64
	Got     [MagicSize]byte
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("segment %s: invalid block header %x at offset %d", e.Segment, e.Got, e.Offset)
}

func (e *HeaderError) Is(target error) bool {
	return target == ErrInvalidHeader
}
