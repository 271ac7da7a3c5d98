package segment

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ssargent/freyja-vlog/pkg/bloom"
	"github.com/ssargent/freyja-vlog/pkg/compression"
)

// DefaultBloomFalsePositiveRate is used when a writer config leaves it unset.
const DefaultBloomFalsePositiveRate = 0.01

// WriterConfig holds configuration for the segment writer
type WriterConfig struct {
	FilePath               string           // Path of the segment to create
	SegmentID              ID               // Identifier of the new segment
	BufferSize             int              // Write buffer size
	Compression            compression.Type // Value codec
	BloomFalsePositiveRate float64          // Target rate of the footer filter
}

// Writer produces a segment file: record blocks in append order, then a
// footer on Seal. The file is created exclusively and is immutable once
// sealed, which is what lets any number of Readers scan it without locks.
type Writer struct {
	file   *os.File
	writer *bufio.Writer
	config WriterConfig
	footer Footer
	hashes [][2]uint64 // bloom hashes of appended keys
	offset int64       // Current write offset
	sealed bool
	mutex  sync.Mutex
}

// NewWriter creates the segment file described by config. It fails if the
// file already exists.
func NewWriter(config WriterConfig) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	bufSize := config.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if config.BloomFalsePositiveRate <= 0 || config.BloomFalsePositiveRate >= 1 {
		config.BloomFalsePositiveRate = DefaultBloomFalsePositiveRate
	}

	return &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, bufSize),
		config: config,
		footer: Footer{
			Version:     FooterVersion,
			Compression: config.Compression,
		},
	}, nil
}

// Append writes one record block and returns the offset it starts at.
// The value is compressed with the configured codec before it is stored.
func (w *Writer) Append(key, value []byte) (int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.sealed {
		return 0, ErrSealed
	}
	if len(key) > MaxKeySize {
		return 0, ErrKeyTooLarge
	}

	stored, err := compression.Compress(w.config.Compression, value)
	if err != nil {
		return 0, err
	}
	if uint64(len(stored)) > MaxValueSize {
		return 0, ErrValueTooLarge
	}

	var hdr [MagicSize + checksumSize + keyLenSize]byte
	copy(hdr[:], RecordMagic[:])
	binary.BigEndian.PutUint32(hdr[MagicSize:], Checksum(key, stored))
	binary.BigEndian.PutUint16(hdr[MagicSize+checksumSize:], uint16(len(key)))

	var vlen [valueLenSize]byte
	binary.BigEndian.PutUint32(vlen[:], uint32(len(stored)))

	for _, part := range [][]byte{hdr[:], key, vlen[:], stored} {
		if _, err := w.writer.Write(part); err != nil {
			return 0, err
		}
	}

	recordOffset := w.offset
	w.offset += BlockSize(len(key), len(stored))

	if w.footer.Items == 0 {
		w.footer.FirstKey = append([]byte(nil), key...)
	}
	w.footer.LastKey = append(w.footer.LastKey[:0], key...)
	w.footer.Items++
	w.footer.KeyBytes += uint64(len(key))
	w.footer.ValueBytes += uint64(len(stored))

	h1, h2 := bloom.Hash(key)
	w.hashes = append(w.hashes, [2]uint64{h1, h2})

	return recordOffset, nil
}

// Seal writes the footer, syncs the file and closes it. The returned footer
// offset is where FooterMagic starts.
func (w *Writer) Seal() (*Footer, int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.sealed {
		return nil, 0, ErrSealed
	}

	footer := w.footer
	footer.CreatedAt = time.Now()
	if footer.Items > 0 {
		footer.Filter = bloom.New(int(footer.Items), w.config.BloomFalsePositiveRate)
		for _, h := range w.hashes {
			footer.Filter.AddHash(h[0], h[1])
		}
	}

	payload, err := footer.MarshalBinary()
	if err != nil {
		return nil, 0, err
	}

	footerOffset := w.offset
	if _, err := w.writer.Write(FooterMagic[:]); err != nil {
		return nil, 0, err
	}
	if _, err := w.writer.Write(payload); err != nil {
		return nil, 0, err
	}
	if err := w.writer.Flush(); err != nil {
		return nil, 0, err
	}
	if err := w.file.Sync(); err != nil {
		return nil, 0, err
	}
	if err := w.file.Close(); err != nil {
		return nil, 0, err
	}

	w.sealed = true
	w.hashes = nil
	w.offset += MagicSize + int64(len(payload))
	return &footer, footerOffset, nil
}

// Abort closes and deletes an unsealed segment.
func (w *Writer) Abort() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.sealed {
		return ErrSealed
	}
	w.sealed = true
	closeErr := w.file.Close()
	if err := os.Remove(w.config.FilePath); err != nil {
		return err
	}
	return closeErr
}

// Offset returns the number of bytes appended so far
func (w *Writer) Offset() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Count returns the number of records appended so far
func (w *Writer) Count() uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.footer.Items
}

// Path returns the file path
func (w *Writer) Path() string {
	return w.config.FilePath
}

// ID returns the segment identifier
func (w *Writer) ID() ID {
	return w.config.SegmentID
}
