package segment

import (
	"bytes"
	"os"

	"github.com/edsrzf/mmap-go"
)

// OpenMapped maps the segment at path read-only and decodes from the mapping.
// Decoded keys and values are still copied out, so they stay valid after Close
// unmaps the file.
func OpenMapped(path string, id ID) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	// Zero length mappings are rejected by the kernel.
	if info.Size() == 0 {
		r := NewReaderFrom(id, bytes.NewReader(nil))
		r.closer = file
		return r, nil
	}

	m, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, err
	}

	r := NewReaderFrom(id, bytes.NewReader(m))
	r.closer = &mappedFile{m: m, file: file}
	return r, nil
}

type mappedFile struct {
	m    mmap.MMap
	file *os.File
}

func (f *mappedFile) Close() error {
	err := f.m.Unmap()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}
