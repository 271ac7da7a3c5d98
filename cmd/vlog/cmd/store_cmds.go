package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSegmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segments",
		Short: "List the segments registered with the store",
		Long: `List the searchable segments of the store, oldest first, followed by any
segments quarantined because they failed the recovery scan.

Example:
  vlog segments --data-dir ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			for _, d := range s.Segments() {
				fmt.Fprintf(out, "%s  %s  %10s records  %8s  %-4s  %q..%q  %s\n",
					ok("OK"), d.ID, humanize.Comma(int64(d.Records)), humanize.Bytes(uint64(d.Size)),
					d.Compression, d.FirstKey, d.LastKey, humanize.Time(d.CreatedAt))
			}
			for _, d := range s.Quarantined() {
				fmt.Fprintf(out, "%s  %s  %s\n", failure("QUARANTINED"), d.ID, d.Path)
			}

			stats := s.Stats()
			fmt.Fprintf(out, "%d segments, %s records, %s\n",
				stats.Segments, humanize.Comma(stats.Records), humanize.Bytes(uint64(stats.SizeBytes)))
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get the newest value for a key",
		Long: `Get the newest value for a key from the store.

Example:
  vlog get mykey`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			value, err := s.Get([]byte(args[0]))
			if err != nil {
				return fmt.Errorf("error getting value: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", value)
			return nil
		},
	}
}

func newFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush [file]",
		Short: "Flush key/value lines into a new store segment",
		Long: `Sort key<TAB>value lines by key, write them to a new sealed segment and
register it with the store. Reads stdin when no file is given.

Example:
  vlog flush pairs.tsv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			in, err := openInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer in.Close()

			entries, err := readPairs(in)
			if err != nil {
				return err
			}

			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			desc, err := s.Flush(entries)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "flushed segment %s: %s records, %s\n",
				desc.ID, humanize.Comma(int64(desc.Records)), humanize.Bytes(uint64(desc.Size)))
			return nil
		},
	}
}
