package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/ssargent/freyja-vlog/pkg/segment"
)

var (
	ok      = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)

// footerLines renders a footer for stat and pack.
func footerLines(f *segment.Footer) []string {
	if f == nil {
		return []string{"footer:       none"}
	}
	filter := "none"
	if f.Filter != nil {
		filter = "present"
	}
	return []string{
		fmt.Sprintf("footer:       v%d", f.Version),
		fmt.Sprintf("compression:  %s", f.Compression),
		fmt.Sprintf("items:        %s", humanize.Comma(int64(f.Items))),
		fmt.Sprintf("key bytes:    %s", humanize.Bytes(f.KeyBytes)),
		fmt.Sprintf("value bytes:  %s", humanize.Bytes(f.ValueBytes)),
		fmt.Sprintf("created:      %s (%s)", f.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(f.CreatedAt)),
		fmt.Sprintf("key range:    %q .. %q", f.FirstKey, f.LastKey),
		fmt.Sprintf("bloom filter: %s", filter),
	}
}
