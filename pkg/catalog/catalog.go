// Package catalog records which sealed segments exist and what their
// footers said, in a pebble database keyed by segment ID.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/ssargent/freyja-vlog/pkg/compression"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

var ErrNotFound = errors.New("segment not registered")

// Descriptor is what the catalog knows about one sealed segment.
type Descriptor struct {
	ID           segment.ID       `json:"id"`
	Path         string           `json:"path"`
	Records      uint64           `json:"records"`
	FooterOffset int64            `json:"footer_offset"`
	Size         int64            `json:"size"`
	Compression  compression.Type `json:"compression"`
	FirstKey     []byte           `json:"first_key,omitempty"`
	LastKey      []byte           `json:"last_key,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Catalog is a pebble-backed registry of segment descriptors. Keys are the
// 20-byte segment IDs, so iteration order is creation order.
type Catalog struct {
	db *pebble.DB
}

// Open opens or creates the catalog database in dir.
func Open(dir string) (*Catalog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Put registers or replaces a descriptor.
func (c *Catalog) Put(d *Descriptor) error {
	if d.ID.IsNil() {
		return errors.New("descriptor has no segment id")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.db.Set(d.ID.Bytes(), data, pebble.Sync)
}

// Get returns the descriptor for id or ErrNotFound.
func (c *Catalog) Get(id segment.ID) (*Descriptor, error) {
	data, closer, err := c.db.Get(id.Bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return decode(data)
}

// Delete removes id from the catalog. The segment file is left alone.
func (c *Catalog) Delete(id segment.ID) error {
	if _, err := c.Get(id); err != nil {
		return err
	}
	return c.db.Delete(id.Bytes(), pebble.Sync)
}

// List returns every descriptor, oldest first.
func (c *Catalog) List() ([]*Descriptor, error) {
	iter, err := c.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Descriptor
	for iter.First(); iter.Valid(); iter.Next() {
		d, err := decode(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to decode descriptor %x: %w", iter.Key(), err)
		}
		out = append(out, d)
	}
	return out, iter.Error()
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// decode unmarshals before the pebble buffer is released.
func decode(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
