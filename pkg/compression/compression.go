// Package compression implements the value codecs a segment can be written
// with. Segment readers never decompress; callers that understand the footer's
// compression type do.
package compression

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used for stored values.
type Type uint8

const (
	// None stores values as given.
	None Type = 0
	// LZ4 is fast block compression, good for hot data.
	LZ4 Type = 1
	// Zstd trades speed for a better ratio.
	Zstd Type = 2
	// S2 is the klauspost Snappy extension.
	S2 Type = 3
)

var ErrCorrupt = errors.New("corrupt compressed value")

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType maps a configuration string to a Type. The empty string is None.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "s2":
		return S2, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

func (t Type) Valid() bool {
	return t <= S2
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// lz4 frames: [UncompressedSize u32][CompressedSize u32][Data...]
// CompressedSize == 0 means Data is stored raw.
const lz4HeaderSize = 8

// Compress encodes src with t. The result never aliases src unless t is None.
func Compress(t Type, src []byte) ([]byte, error) {
	switch t {
	case None:
		return src, nil
	case LZ4:
		return compressLZ4(src)
	case Zstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(src, nil), nil
	case S2:
		return s2.Encode(nil, src), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", uint8(t))
	}
}

// Decompress reverses Compress.
func Decompress(t Type, src []byte) ([]byte, error) {
	switch t {
	case None:
		return src, nil
	case LZ4:
		return decompressLZ4(src)
	case Zstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(src, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out, nil
	case S2:
		out, err := s2.Decode(nil, src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", uint8(t))
	}
}

func compressLZ4(src []byte) ([]byte, error) {
	buf := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, buf[lz4HeaderSize:], nil)
	if err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint32(buf[0:], uint32(len(src)))

	// Incompressible input
	if n == 0 || n >= len(src) {
		binary.BigEndian.PutUint32(buf[4:], 0)
		copy(buf[lz4HeaderSize:], src)
		return buf[:lz4HeaderSize+len(src)], nil
	}

	binary.BigEndian.PutUint32(buf[4:], uint32(n))
	return buf[:lz4HeaderSize+n], nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	if len(src) < lz4HeaderSize {
		return nil, fmt.Errorf("%w: lz4 frame too small", ErrCorrupt)
	}
	size := binary.BigEndian.Uint32(src[0:])
	compressed := binary.BigEndian.Uint32(src[4:])
	data := src[lz4HeaderSize:]

	if compressed == 0 {
		if uint32(len(data)) != size {
			return nil, fmt.Errorf("%w: raw lz4 frame length mismatch", ErrCorrupt)
		}
		out := make([]byte, size)
		copy(out, data)
		return out, nil
	}

	if uint32(len(data)) != compressed {
		return nil, fmt.Errorf("%w: lz4 frame length mismatch", ErrCorrupt)
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if uint32(n) != size {
		return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
	}
	return out, nil
}
