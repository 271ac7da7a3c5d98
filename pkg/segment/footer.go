package segment

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/ssargent/freyja-vlog/pkg/bloom"
	"github.com/ssargent/freyja-vlog/pkg/compression"
)

// FooterVersion is the footer payload layout written by this package.
const FooterVersion = 1

// maxFilterSize bounds the bloom filter a footer may declare.
const maxFilterSize = 1 << 30

// Footer is the metadata block that follows FooterMagic at the end of a
// segment.
//
// Payload layout (big-endian):
//
//	version(1) compression(1) items(8) keyBytes(8) valueBytes(8) created(8)
//	firstKeyLen(2) firstKey lastKeyLen(2) lastKey filterLen(4) filter crc32(4)
//
// The trailing CRC-32 (IEEE) covers every payload byte before it.
type Footer struct {
	Version     uint8
	Compression compression.Type
	Items       uint64    // Number of record blocks
	KeyBytes    uint64    // Sum of key lengths
	ValueBytes  uint64    // Sum of stored value lengths
	CreatedAt   time.Time // When the segment was sealed
	FirstKey    []byte    // Key of the first record
	LastKey     []byte    // Key of the last record
	Filter      *bloom.Filter
}

// MayContain consults the footer's bloom filter. Without a filter every key
// may be present.
func (f *Footer) MayContain(key []byte) bool {
	if f.Filter == nil {
		return true
	}
	return f.Filter.MayContain(key)
}

// MarshalBinary encodes the footer payload, not including FooterMagic.
func (f *Footer) MarshalBinary() ([]byte, error) {
	if len(f.FirstKey) > MaxKeySize || len(f.LastKey) > MaxKeySize {
		return nil, ErrKeyTooLarge
	}

	var filter []byte
	if f.Filter != nil {
		var err error
		if filter, err = f.Filter.MarshalBinary(); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, 0, 38+len(f.FirstKey)+len(f.LastKey)+4+len(filter)+4)
	buf = append(buf, f.Version, byte(f.Compression))
	buf = binary.BigEndian.AppendUint64(buf, f.Items)
	buf = binary.BigEndian.AppendUint64(buf, f.KeyBytes)
	buf = binary.BigEndian.AppendUint64(buf, f.ValueBytes)
	buf = binary.BigEndian.AppendUint64(buf, uint64(f.CreatedAt.UnixNano()))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.FirstKey)))
	buf = append(buf, f.FirstKey...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.LastKey)))
	buf = append(buf, f.LastKey...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(filter)))
	buf = append(buf, filter...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	return buf, nil
}

// ReadFooter parses a footer payload from r, which must be positioned just
// after FooterMagic.
func ReadFooter(r io.Reader) (*Footer, error) {
	crc := crc32.NewIEEE()
	fr := &footerReader{r: io.TeeReader(r, crc)}

	f := &Footer{}
	f.Version = fr.u8()
	f.Compression = compression.Type(fr.u8())
	f.Items = fr.u64()
	f.KeyBytes = fr.u64()
	f.ValueBytes = fr.u64()
	f.CreatedAt = time.Unix(0, int64(fr.u64()))
	f.FirstKey = fr.bytes(int(fr.u16()))
	f.LastKey = fr.bytes(int(fr.u16()))
	filterLen := fr.u32()
	if fr.err == nil && filterLen > maxFilterSize {
		return nil, fmt.Errorf("%w: filter of %d bytes", ErrInvalidFooter, filterLen)
	}
	filter := fr.bytes(int(filterLen))
	if fr.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFooter, fr.err)
	}

	want := crc.Sum32()
	var sum [4]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return nil, fmt.Errorf("%w: reading checksum: %v", ErrInvalidFooter, err)
	}
	if got := binary.BigEndian.Uint32(sum[:]); got != want {
		return nil, fmt.Errorf("%w: checksum %08x, computed %08x", ErrInvalidFooter, got, want)
	}

	if f.Version != FooterVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFooter, f.Version)
	}
	if !f.Compression.Valid() {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidFooter, f.Compression)
	}
	if len(filter) > 0 {
		f.Filter = &bloom.Filter{}
		if err := f.Filter.UnmarshalBinary(filter); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFooter, err)
		}
	}

	return f, nil
}

// ReadFooterAt opens the segment at path and parses the footer payload that
// starts at offset, which is the offset a Reader reports after reaching the
// footer. The payload must run exactly to the end of the file.
func ReadFooterAt(path string, offset int64) (*Footer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	br := bufio.NewReader(file)
	f, err := ReadFooter(br)
	if err != nil {
		return nil, err
	}
	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: trailing data after footer", ErrInvalidFooter)
	}
	return f, nil
}

// footerReader keeps the first error so the field list reads top to bottom.
type footerReader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (fr *footerReader) read(n int) []byte {
	if fr.err != nil {
		return fr.buf[:n]
	}
	if _, err := io.ReadFull(fr.r, fr.buf[:n]); err != nil {
		fr.err = err
	}
	return fr.buf[:n]
}

func (fr *footerReader) u8() uint8   { return fr.read(1)[0] }
func (fr *footerReader) u16() uint16 { return binary.BigEndian.Uint16(fr.read(2)) }
func (fr *footerReader) u32() uint32 { return binary.BigEndian.Uint32(fr.read(4)) }
func (fr *footerReader) u64() uint64 { return binary.BigEndian.Uint64(fr.read(8)) }

func (fr *footerReader) bytes(n int) []byte {
	if fr.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(fr.r, b); err != nil {
		fr.err = err
		return nil
	}
	return b
}
