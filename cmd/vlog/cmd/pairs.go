package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ssargent/freyja-vlog/pkg/store"
)

// readPairs parses key<TAB>value lines. Blank lines are skipped.
func readPairs(r io.Reader) ([]store.Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)

	var entries []store.Entry
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		key, value, found := strings.Cut(text, "\t")
		if !found || key == "" {
			return nil, fmt.Errorf("line %d: expected key<TAB>value", line)
		}
		entries = append(entries, store.Entry{Key: []byte(key), Value: []byte(value)})
	}
	return entries, scanner.Err()
}

// openInput opens path, or stdin for "" and "-".
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}
