package segment

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type kv struct {
	key, value string
	crc        uint32
}

// encodeBlock builds a record block by hand so reader tests do not depend on
// Writer.
func encodeBlock(key, value []byte, crc uint32) []byte {
	buf := append([]byte(nil), RecordMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, crc)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(key)))
	buf = append(buf, key...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func encodeSegment(records []kv, footerPayload []byte) []byte {
	var buf []byte
	for _, r := range records {
		buf = append(buf, encodeBlock([]byte(r.key), []byte(r.value), r.crc)...)
	}
	buf = append(buf, FooterMagic[:]...)
	return append(buf, footerPayload...)
}

func writeFile(t testing.TB, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment.vlog")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}
