package segment

import (
	"fmt"
	"hash/crc32"
)

// Record is one decoded record block.
//
// Key and Value are allocated per record and never alias the reader's
// internal buffers, so callers may keep them for as long as they like.
// Treat them as read-only: other holders of the same record share them.
type Record struct {
	Offset   int64  // Byte offset of the block's leading magic
	Key      []byte // Key data
	Value    []byte // Stored value data (possibly compressed)
	Checksum uint32 // Stored checksum, not validated by the reader
}

// Size returns the encoded size of the record's block.
func (r Record) Size() int64 {
	return BlockSize(len(r.Key), len(r.Value))
}

// End returns the offset of the first byte after the record's block.
func (r Record) End() int64 {
	return r.Offset + r.Size()
}

// Verify recomputes the checksum over the key and stored value.
func (r Record) Verify() error {
	if got := Checksum(r.Key, r.Value); got != r.Checksum {
		return fmt.Errorf("%w at offset %d: stored %08x, computed %08x", ErrChecksumMismatch, r.Offset, r.Checksum, got)
	}
	return nil
}

// Checksum computes the CRC-32 (IEEE) of a key followed by its stored value.
// Length prefixes and the magic are not covered.
func Checksum(key, value []byte) uint32 {
	crc := crc32.NewIEEE()
	_, _ = crc.Write(key)
	_, _ = crc.Write(value)
	return crc.Sum32()
}
