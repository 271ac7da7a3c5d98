/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ssargent/freyja-vlog/pkg/api"
	"github.com/ssargent/freyja-vlog/pkg/config"
	"github.com/ssargent/freyja-vlog/pkg/metrics"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Open the store and serve segments and lookups over HTTP until interrupted.

Prometheus metrics are exposed on /metrics. Every /api/v1 route requires the
X-API-Key header when an API key is configured; "auto" generates one for this
run and prints it.

Examples:
  vlog serve
  vlog serve --port 9200 --api-key mysecretkey --data-dir ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container == nil {
				return fmt.Errorf("dependency container not initialized")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("bind") {
				cfg.Server.Bind, _ = cmd.Flags().GetString("bind")
			}
			if cmd.Flags().Changed("api-key") {
				cfg.Server.APIKey, _ = cmd.Flags().GetString("api-key")
			}
			if cfg.Server.APIKey == "auto" {
				cfg.Server.APIKey, err = config.GenerateSecureKey(32)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Generated API key for this run: %s\n", cfg.Server.APIKey)
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			sc, err := storeConfig(cfg, logger, m)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := container.OpenStore(ctx, sc)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer s.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %d segments on %s:%d\n", len(s.Segments()), cfg.Server.Bind, cfg.Server.Port)
			starter := container.GetServerFactory().CreateServerStarter()
			return starter.StartServer(ctx, s, api.ServerConfig{
				Bind:             cfg.Server.Bind,
				Port:             cfg.Server.Port,
				APIKey:           cfg.Server.APIKey,
				ReaderBufferSize: cfg.Reader.BufferSize,
				Mmap:             cfg.Reader.Mmap,
				Gatherer:         reg,
			}, m, logger)
		},
	}

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().String("api-key", "", "API key for authentication (empty disables it)")
	return serveCmd
}
