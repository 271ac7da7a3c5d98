package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ssargent/freyja-vlog/pkg/segment"
)

func newDumpCmd() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the records of a segment file",
		Long: `Print every record block of a segment file in file order, then how the
segment ended.

Examples:
  vlog dump data/segments/2Nq....vlog
  vlog dump --offset 4096 --limit 10 --values segment.vlog`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, _ := cmd.Flags().GetInt64("offset")
			limit, _ := cmd.Flags().GetInt("limit")
			showValues, _ := cmd.Flags().GetBool("values")

			path := args[0]
			reader, err := segment.NewReader(segment.ReaderConfig{
				FilePath:    path,
				SegmentID:   segmentIDFromPath(path),
				StartOffset: offset,
			})
			if err != nil {
				return err
			}
			defer reader.Close()

			out := cmd.OutOrStdout()
			n := 0
			for limit <= 0 || n < limit {
				rec, err := reader.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					var headerErr *segment.HeaderError
					if errors.As(err, &headerErr) {
						fmt.Fprintf(out, "%s at offset %d\n", failure("CORRUPT"), headerErr.Offset)
					}
					return err
				}

				status := ok("ok")
				if rec.Verify() != nil {
					status = failure("bad-crc")
				}
				fmt.Fprintf(out, "%10d  %-7s  %08x  %s  (%d bytes)", rec.Offset, status, rec.Checksum, strconv.Quote(string(rec.Key)), len(rec.Value))
				if showValues {
					fmt.Fprintf(out, "  %s", strconv.Quote(string(rec.Value)))
				}
				fmt.Fprintln(out)
				n++
			}

			fmt.Fprintf(out, "%d records, end=%s, offset=%d\n", n, reader.EndReason(), reader.Offset())
			return nil
		},
	}

	dumpCmd.Flags().Int64("offset", 0, "Block boundary to start from")
	dumpCmd.Flags().Int("limit", 0, "Maximum records to print (0 = all)")
	dumpCmd.Flags().Bool("values", false, "Print values as well as keys")
	return dumpCmd
}
