package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartta-io/kartta/config"
	"github.com/kartta-io/kartta/internal/daemon"
)

var (
	daemonInterval    time.Duration
	daemonMetricsPort int
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous scans on an interval",
	Long: `Run kartta in daemon mode.

The daemon scans the configured accounts on a fixed interval, keeps
the local store in sync, and serves Prometheus metrics and a health
check over HTTP. The permission cache is shared across runs, so
repeat scans within the cache TTL skip redundant simulation calls.`,
	Example: `  kartta daemon                        # Scan every 15 minutes
  kartta daemon --interval 5m          # Scan every 5 minutes
  kartta daemon --metrics-port 9090    # Custom metrics port`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 15*time.Minute, "Scan interval")
	daemonCmd.Flags().IntVar(&daemonMetricsPort, "metrics-port", 2112, "Metrics HTTP server port")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.close(closeCtx)
	}()

	d, err := daemon.New(p.orchestrator, daemon.Config{
		Interval:    daemonInterval,
		MetricsPort: daemonMetricsPort,
		Request:     scanRequest(cfg),
	})
	if err != nil {
		return err
	}

	return d.Run(ctx)
}
