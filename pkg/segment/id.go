package segment

import (
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"
)

// ID identifies a segment. It is opaque to the decoder and only carried along
// for provenance. IDs are comparable with == and sort by creation time.
type ID struct {
	k ksuid.KSUID
}

// NilID is the zero ID.
var NilID = ID{}

var (
	idMutex sync.Mutex
	lastID  ksuid.KSUID
)

// NewID returns a fresh, time-ordered segment ID. IDs made by one process are
// strictly increasing, even within the same second.
func NewID() ID {
	idMutex.Lock()
	defer idMutex.Unlock()

	k := ksuid.New()
	if ksuid.Compare(k, lastID) <= 0 {
		k = lastID.Next()
	}
	lastID = k
	return ID{k: k}
}

// ParseID parses the string form produced by ID.String.
func ParseID(s string) (ID, error) {
	k, err := ksuid.Parse(s)
	if err != nil {
		return NilID, fmt.Errorf("invalid segment id %q: %w", s, err)
	}
	return ID{k: k}, nil
}

// IDFromBytes rebuilds an ID from ID.Bytes.
func IDFromBytes(b []byte) (ID, error) {
	k, err := ksuid.FromBytes(b)
	if err != nil {
		return NilID, fmt.Errorf("invalid segment id bytes: %w", err)
	}
	return ID{k: k}, nil
}

func (id ID) String() string {
	return id.k.String()
}

// Bytes returns the 20 byte binary form.
func (id ID) Bytes() []byte {
	return id.k.Bytes()
}

func (id ID) IsNil() bool {
	return id.k.IsNil()
}

// Compare orders IDs by creation time, then by payload.
func (id ID) Compare(other ID) int {
	return ksuid.Compare(id.k, other.k)
}

// MarshalText lets IDs appear as strings in JSON and YAML documents.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
