package index

import (
	"io"
	"strings"
	"sync"

	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// Entry represents the location of a record block
type Entry struct {
	Segment segment.ID // Segment holding the record
	Offset  int64      // Byte offset of the block
	Size    int64      // Encoded size of the block
}

// Dense provides O(1) average-case lookups for every key of one or more
// segments. Later puts win, so add segments oldest first.
type Dense struct {
	entries map[string]Entry
	mutex   sync.RWMutex
}

// NewDense creates an empty dense index
func NewDense() *Dense {
	return &Dense{
		entries: make(map[string]Entry),
	}
}

// Put adds or updates an index entry for a key
func (d *Dense) Put(key []byte, entry Entry) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.entries[string(key)] = entry
}

// Get retrieves the index entry for a key
func (d *Dense) Get(key []byte) (Entry, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	entry, exists := d.entries[string(key)]
	return entry, exists
}

// Delete removes a key from the index
func (d *Dense) Delete(key []byte) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	delete(d.entries, string(key))
}

// Len returns the number of keys in the index
func (d *Dense) Len() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return len(d.entries)
}

// Clear removes all entries from the index
func (d *Dense) Clear() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.entries = make(map[string]Entry)
}

// Keys returns all keys in the index (for debugging/testing)
func (d *Dense) Keys() []string {
	return d.KeysWithPrefix("")
}

// KeysWithPrefix returns all keys that start with the given prefix
func (d *Dense) KeysWithPrefix(prefix string) []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var keys []string
	for key := range d.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

// AddSegment reads r to the end and points every key it holds at r's segment.
// It returns the number of records indexed. On a reader error the records
// decoded before it stay indexed.
func (d *Dense) AddSegment(r *segment.Reader) (int, error) {
	n := 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		d.Put(rec.Key, Entry{
			Segment: r.SegmentID(),
			Offset:  rec.Offset,
			Size:    rec.Size(),
		})
		n++
	}
}
