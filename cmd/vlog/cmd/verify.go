package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/freyja-vlog/pkg/scan"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

func newVerifyCmd() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify <file>...",
		Short: "Verify record checksums of segment files",
		Long: `Scan segment files concurrently, recompute every record checksum and parse
the footer. Exits non-zero when any segment is corrupt.

Example:
  vlog verify data/segments/*.vlog`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parallelism, _ := cmd.Flags().GetInt("parallel")
			mmap, _ := cmd.Flags().GetBool("mmap")

			targets := make([]scan.Target, len(args))
			for i, path := range args {
				targets[i] = scan.Target{Path: path, ID: segmentIDFromPath(path)}
			}

			results, err := scan.ScanAll(cmdContext(cmd), targets, scan.Options{
				VerifyChecksums: true,
				Mmap:            mmap,
			}, parallelism)

			out := cmd.OutOrStdout()
			bad := 0
			for i, result := range results {
				switch {
				case result == nil:
					fmt.Fprintf(out, "%s  %s  could not be opened\n", failure("ERROR  "), targets[i].Path)
					bad++
				case !result.Clean():
					fmt.Fprintf(out, "%s  %s  %d records, %d checksum failures, stopped at %d\n",
						failure("CORRUPT"), result.Path, result.Records, result.ChecksumFailures, result.EndOffset)
					bad++
				case result.End == segment.EndTorn:
					fmt.Fprintf(out, "%s  %s  %d records, torn tail at %d\n", warn("TORN   "), result.Path, result.Records, result.EndOffset)
				default:
					fmt.Fprintf(out, "%s  %s  %d records, end=%s\n", ok("OK     "), result.Path, result.Records, result.End)
				}
			}

			if bad > 0 {
				return fmt.Errorf("%d of %d segments failed verification: %w", bad, len(targets), err)
			}
			return err
		},
	}

	verifyCmd.Flags().Int("parallel", 0, "Segments to scan at once (0 = GOMAXPROCS)")
	verifyCmd.Flags().Bool("mmap", false, "Read segments through memory mappings")
	return verifyCmd
}
