package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ssargent/freyja-vlog/pkg/scan"
)

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file>",
		Short: "Summarize a segment file",
		Long: `Scan a segment file and print its record count, how it ended and its footer.

Example:
  vlog stat segment.vlog`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			result, err := scan.Scan(cmdContext(cmd), path, segmentIDFromPath(path), scan.Options{VerifyChecksums: true})
			if result == nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "segment:      %s\n", result.Segment)
			fmt.Fprintf(out, "path:         %s\n", path)
			fmt.Fprintf(out, "size:         %s\n", humanize.Bytes(uint64(info.Size())))
			fmt.Fprintf(out, "records:      %s\n", humanize.Comma(result.Records))
			fmt.Fprintf(out, "end:          %s at %d\n", result.End, result.EndOffset)
			fmt.Fprintf(out, "bad crc:      %d\n", result.ChecksumFailures)
			fmt.Fprintf(out, "scan time:    %s\n", result.Duration)
			for _, line := range footerLines(result.Footer) {
				fmt.Fprintln(out, line)
			}
			return err
		},
	}
}
