/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/freyja-vlog/pkg/config"
	"github.com/ssargent/freyja-vlog/pkg/store"
)

func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file and data directory",
		Long: `Create a configuration file with a generated API key and the store's data
directory.

Examples:
  vlog init
  vlog init --config ./vlog.yaml --data-dir ./data --print-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			force, _ := cmd.Flags().GetBool("force")
			printKey, _ := cmd.Flags().GetBool("print-key")

			if configPath == "" {
				configPath = config.GetDefaultConfigPath()
			}

			out := cmd.OutOrStdout()
			if config.ConfigExists(configPath) && !force {
				fmt.Fprintf(out, "Configuration already exists at %s. Use --force to replace it.\n", configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(configPath, dataDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(store.SegmentDir(cfg.DataDir), 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			fmt.Fprintf(out, "%s Configuration created at %s\n", ok("✓"), configPath)
			fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
			if printKey {
				fmt.Fprintf(out, "API key: %s\n", cfg.Server.APIKey)
			}
			return nil
		},
	}

	initCmd.Flags().Bool("force", false, "Replace an existing configuration")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key")
	return initCmd
}
