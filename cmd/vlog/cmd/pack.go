package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ssargent/freyja-vlog/pkg/compression"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

func newPackCmd() *cobra.Command {
	packCmd := &cobra.Command{
		Use:   "pack <out>",
		Short: "Write key/value lines into a new segment file",
		Long: `Write key<TAB>value lines into a new sealed segment file, in input order.
Reads stdin unless --input is given. The output file must not exist.

Examples:
  printf 'a\t1\nb\t2\n' | vlog pack out.vlog
  vlog pack --input pairs.tsv --compression zstd out.vlog`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			codecName, _ := cmd.Flags().GetString("compression")

			codec, err := compression.ParseType(codecName)
			if err != nil {
				return err
			}

			in, err := openInput(inputPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer in.Close()

			entries, err := readPairs(in)
			if err != nil {
				return err
			}

			w, err := segment.NewWriter(segment.WriterConfig{
				FilePath:    args[0],
				SegmentID:   segmentIDFromPath(args[0]),
				Compression: codec,
			})
			if err != nil {
				return err
			}
			for _, e := range entries {
				if _, err := w.Append(e.Key, e.Value); err != nil {
					w.Abort()
					return err
				}
			}
			footer, footerOffset, err := w.Seal()
			if err != nil {
				w.Abort()
				return err
			}

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %s: %s records, %s, footer at %d\n",
				args[0], humanize.Comma(int64(footer.Items)), humanize.Bytes(uint64(info.Size())), footerOffset)
			return nil
		},
	}

	packCmd.Flags().StringP("input", "i", "", "Input file of key<TAB>value lines (default stdin)")
	packCmd.Flags().String("compression", "none", "Value compression (none, lz4, zstd, s2)")
	return packCmd
}
