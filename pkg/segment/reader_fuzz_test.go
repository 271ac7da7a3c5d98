//go:build fuzz
// +build fuzz

package segment

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// FuzzReader_NeverPanics feeds arbitrary bytes to the decoder. Every input
// must end in io.EOF or a *HeaderError, and offsets must never go backwards.
func FuzzReader_NeverPanics(f *testing.F) {
	f.Add([]byte{})
	f.Add(FooterMagic[:])
	f.Add(encodeSegment([]kv{{"a", "1", 1}, {"bb", "22", 2}}, []byte("footer")))
	f.Add(encodeBlock([]byte("key"), []byte("value"), 3)[:11])

	f.Fuzz(func(t *testing.T, data []byte) {
		r := NewReaderFrom(NilID, bytes.NewReader(data))
		last := int64(0)
		for i := 0; ; i++ {
			rec, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidHeader) {
					t.Fatalf("unexpected error: %v", err)
				}
				break
			}
			if rec.Offset != last || r.Offset() != rec.End() {
				t.Fatalf("record %d: offset %d end %d, reader at %d, previous end %d", i, rec.Offset, rec.End(), r.Offset(), last)
			}
			last = r.Offset()
		}
		if r.Offset() > int64(len(data)) {
			t.Fatalf("offset %d past end of %d byte input", r.Offset(), len(data))
		}
	})
}

// FuzzReader_RoundTrip encodes one record and decodes it back.
func FuzzReader_RoundTrip(f *testing.F) {
	f.Add([]byte(""), []byte(""), uint32(0))
	f.Add([]byte("key"), []byte("value"), uint32(0xAAAA))

	f.Fuzz(func(t *testing.T, key, value []byte, crc uint32) {
		if len(key) > MaxKeySize {
			t.Skip("key too large for format")
		}
		data := encodeSegment(nil, nil)
		data = append(encodeBlock(key, value, crc), data...)

		r := NewReaderFrom(NilID, bytes.NewReader(data))
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !bytes.Equal(rec.Key, key) || !bytes.Equal(rec.Value, value) || rec.Checksum != crc {
			t.Fatalf("round trip mismatch")
		}
		if _, err := r.Next(); err != io.EOF || !r.FooterReached() {
			t.Fatalf("expected footer, got %v", err)
		}
	})
}
