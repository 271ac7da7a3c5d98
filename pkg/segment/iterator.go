package segment

import "io"

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() Record
	Err() error
	Close() error
}

// Iterator returns a streaming iterator over the remaining records.
func (r *Reader) Iterator() RecordIterator {
	return &recordIterator{reader: r}
}

// recordIterator implements RecordIterator on top of Reader.Next
type recordIterator struct {
	reader *Reader
	record Record
	err    error
}

func (it *recordIterator) Next() bool {
	if it.err != nil {
		return false
	}
	rec, err := it.reader.Next()
	if err != nil {
		if err != io.EOF {
			it.err = err
		}
		it.record = Record{}
		return false
	}
	it.record = rec
	return true
}

func (it *recordIterator) Record() Record {
	return it.record
}

// Err returns the first decode error. A clean end is not an error.
func (it *recordIterator) Err() error {
	return it.err
}

func (it *recordIterator) Close() error {
	// Don't close the underlying reader as it's owned by the caller
	return nil
}
