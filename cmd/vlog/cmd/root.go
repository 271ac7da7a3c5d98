/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/freyja-vlog/pkg/compression"
	"github.com/ssargent/freyja-vlog/pkg/config"
	"github.com/ssargent/freyja-vlog/pkg/di"
	"github.com/ssargent/freyja-vlog/pkg/logging"
	"github.com/ssargent/freyja-vlog/pkg/metrics"
	"github.com/ssargent/freyja-vlog/pkg/segment"
	"github.com/ssargent/freyja-vlog/pkg/store"
)

var container *di.Container

// SetContainer injects the dependency container used by the commands
func SetContainer(c *di.Container) {
	container = c
}

// NewRootCommand builds the vlog command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vlog",
		Short: "vlog - sealed value-log segment tools",
		Long: `vlog reads, verifies and writes sealed value-log segments, and serves
lookups over a directory of them.

Segment files can be inspected directly (dump, stat, verify, pack) or managed
as a store (flush, get, segments, serve).`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory for the store")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(
		newDumpCmd(),
		newVerifyCmd(),
		newStatCmd(),
		newPackCmd(),
		newSegmentsCmd(),
		newGetCmd(),
		newFlushCmd(),
		newServeCmd(),
		newInitCmd(),
	)
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file when there is one and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if explicit {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

func storeConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (store.Config, error) {
	codec, err := compression.ParseType(cfg.Writer.Compression)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		DataDir:                cfg.DataDir,
		ReaderBufferSize:       cfg.Reader.BufferSize,
		Mmap:                   cfg.Reader.Mmap,
		WriterBufferSize:       cfg.Writer.BufferSize,
		Compression:            codec,
		BloomFalsePositiveRate: cfg.Writer.BloomFalsePositiveRate,
		IndexInterval:          cfg.Index.Interval,
		Logger:                 logger,
		Metrics:                m,
	}, nil
}

// openStore loads configuration and opens the store through the container.
func openStore(cmd *cobra.Command) (*store.Store, *config.Config, error) {
	if container == nil {
		return nil, nil, fmt.Errorf("dependency container not initialized")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	sc, err := storeConfig(cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	s, err := container.OpenStore(cmdContext(cmd), sc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, cfg, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// segmentIDFromPath uses the file name as the segment ID when it is one.
func segmentIDFromPath(path string) segment.ID {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id, err := segment.ParseID(name)
	if err != nil {
		return segment.NilID
	}
	return id
}
