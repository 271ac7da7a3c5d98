package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":        {},
		"short":        []byte("v"),
		"repetitive":   bytes.Repeat([]byte("freyja "), 2048),
		"binary":       {0x00, 0xFF, 0x10, 0x7F, 0x00, 0x00},
		"incompressed": []byte("q8Zp2#kLm0"),
	}

	for _, typ := range []Type{None, LZ4, Zstd, S2} {
		for name, in := range inputs {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				enc, err := Compress(typ, in)
				require.NoError(t, err)

				dec, err := Decompress(typ, enc)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(in, dec), "got %q want %q", dec, in)
			})
		}
	}
}

func TestCompressShrinksRepetitiveInput(t *testing.T) {
	in := bytes.Repeat([]byte("abcdefgh"), 4096)
	for _, typ := range []Type{LZ4, Zstd, S2} {
		enc, err := Compress(typ, in)
		require.NoError(t, err)
		assert.Less(t, len(enc), len(in)/4, typ.String())
	}
}

func TestDecompressCorrupt(t *testing.T) {
	_, err := Decompress(LZ4, []byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decompress(LZ4, []byte{0, 0, 0, 9, 0, 0, 0, 0, 'a'})
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decompress(Zstd, []byte("definitely not zstd"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"", None, true},
		{"none", None, true},
		{"LZ4", LZ4, true},
		{" zstd ", Zstd, true},
		{"s2", S2, true},
		{"gzip", None, false},
	}
	for _, tc := range tests {
		got, err := ParseType(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
		assert.True(t, got.Valid())
	}
	assert.False(t, Type(9).Valid())
	assert.Equal(t, "unknown(9)", Type(9).String())
}
