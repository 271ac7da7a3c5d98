// Package bloom is the key membership filter stored in segment footers.
package bloom

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/spaolacci/murmur3"
)

const maxHashes = 32

var ErrInvalidFilter = errors.New("invalid bloom filter encoding")

// Filter is a fixed size bloom filter using double hashing over murmur3.
type Filter struct {
	bits []uint64
	m    uint32 // number of bits
	k    uint8  // number of probes
}

// New sizes a filter for n keys at false positive rate p. It returns nil when
// the parameters cannot describe a useful filter.
func New(n int, p float64) *Filter {
	if n <= 0 || p <= 0 || p >= 1 {
		return nil
	}

	m := math.Ceil(-float64(n) * math.Log(p) / math.Pow(math.Log(2), 2))
	k := math.Round((m / float64(n)) * math.Log(2))
	if m < 1 || k < 1 {
		return nil
	}
	if k > maxHashes {
		k = maxHashes
	}
	if m > math.MaxUint32 {
		m = math.MaxUint32
	}

	bits := uint32(m)
	return &Filter{
		bits: make([]uint64, (bits+63)/64),
		m:    bits,
		k:    uint8(k),
	}
}

// Hash returns the two base hashes a key is probed with. Writers that do not
// know their key count up front can keep these and call AddHash later.
func Hash(key []byte) (uint64, uint64) {
	return murmur3.Sum128(key)
}

// Add adds a key to the filter
func (f *Filter) Add(key []byte) {
	f.AddHash(Hash(key))
}

// AddHash adds a key by the hashes Hash returned for it.
func (f *Filter) AddHash(h1, h2 uint64) {
	for i := uint64(0); i < uint64(f.k); i++ {
		bit := (h1 + i*h2) % uint64(f.m)
		f.bits[bit/64] |= 1 << (bit % 64)
	}
}

// MayContain reports false only if key was never added.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := Hash(key)
	for i := uint64(0); i < uint64(f.k); i++ {
		bit := (h1 + i*h2) % uint64(f.m)
		if f.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// MarshalBinary encodes the filter as k(1) | m(4) | bit words (8 each), big-endian.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 5+8*len(f.bits))
	buf[0] = f.k
	binary.BigEndian.PutUint32(buf[1:], f.m)
	for i, w := range f.bits {
		binary.BigEndian.PutUint64(buf[5+8*i:], w)
	}
	return buf, nil
}

// UnmarshalBinary decodes a filter produced by MarshalBinary.
func (f *Filter) UnmarshalBinary(data []byte) error {
	if len(data) < 5 {
		return ErrInvalidFilter
	}
	k := data[0]
	m := binary.BigEndian.Uint32(data[1:])
	words := (uint64(m) + 63) / 64
	if k == 0 || k > maxHashes || m == 0 || uint64(len(data)-5) != words*8 {
		return ErrInvalidFilter
	}

	bits := make([]uint64, words)
	for i := range bits {
		bits[i] = binary.BigEndian.Uint64(data[5+8*i:])
	}
	f.bits, f.m, f.k = bits, m, k
	return nil
}
