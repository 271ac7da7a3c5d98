package segment

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

func benchmarkSegment(records, valueSize int) []byte {
	value := bytes.Repeat([]byte("v"), valueSize)
	var buf []byte
	for i := 0; i < records; i++ {
		key := []byte(fmt.Sprintf("key-%08d", i))
		buf = append(buf, encodeBlock(key, value, Checksum(key, value))...)
	}
	return append(buf, FooterMagic[:]...)
}

func BenchmarkReader_Next(b *testing.B) {
	sizes := []int{16, 1024, 64 * 1024}

	for _, size := range sizes {
		data := benchmarkSegment(1000, size)
		b.Run(fmt.Sprintf("value_%d", size), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				r := NewReaderFrom(NilID, bytes.NewReader(data))
				for {
					if _, err := r.Next(); err != nil {
						if err != io.EOF {
							b.Fatal(err)
						}
						break
					}
				}
			}
		})
	}
}

func BenchmarkReader_File(b *testing.B) {
	data := benchmarkSegment(10000, 256)
	path := writeFile(b, data)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, err := Open(path, NilID)
		if err != nil {
			b.Fatal(err)
		}
		for {
			if _, err := r.Next(); err != nil {
				if err != io.EOF {
					b.Fatal(err)
				}
				break
			}
		}
		r.Close()
	}
}
