package segment

// MagicSize is the width of the leading token of every block.
const MagicSize = 4

var (
	// RecordMagic starts every record block.
	RecordMagic = [MagicSize]byte{'V', 'L', 'B', 1}

	// FooterMagic starts the single metadata footer that ends a segment.
	FooterMagic = [MagicSize]byte{'V', 'L', 'M', 1}
)

const (
	checksumSize = 4
	keyLenSize   = 2
	valueLenSize = 4

	// headerSize is everything in a record block except the key and value bytes.
	headerSize = MagicSize + checksumSize + keyLenSize + valueLenSize

	// MaxKeySize is the largest key a 16-bit length prefix can describe.
	MaxKeySize = 1<<16 - 1

	// MaxValueSize is the largest value a 32-bit length prefix can describe.
	MaxValueSize = 1<<32 - 1
)

// BlockSize returns the encoded size of a record block holding a key and
// value of the given lengths.
func BlockSize(keyLen, valueLen int) int64 {
	return int64(headerSize) + int64(keyLen) + int64(valueLen)
}
