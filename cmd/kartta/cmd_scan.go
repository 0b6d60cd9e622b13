package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartta-io/kartta/config"
)

var scanCleanup bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one discovery and sync pass",
	Long: `Scan the configured accounts, regions, and services once.

Discovered resources are enriched with permission facts, operational
constraints, and a semantic embedding, then upserted into the local
store. With --cleanup, records no longer observed upstream are removed
per account once that account's scan completed cleanly.`,
	Example: `  kartta scan                          # Scan with kartta.yaml
  kartta scan --config prod.yaml       # Alternate configuration
  kartta scan --cleanup                # Remove stale records too`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanCleanup, "cleanup", false, "Delete stale records after the scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.close(closeCtx)
	}()

	req := scanRequest(cfg)
	if scanCleanup {
		req.CleanupStale = true
	}

	result, err := p.orchestrator.Scan(ctx, req)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Scan %s finished in %s\n", result.RunID, result.Duration.Round(time.Millisecond))
	fmt.Printf("  Discovered: %d\n", result.Discovered)
	fmt.Printf("  Upserted:   %d\n", result.Upserted)
	fmt.Printf("  Deleted:    %d\n", result.Deleted)
	fmt.Printf("  Errors:     %d\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("    - %s\n", e.Error())
	}

	return nil
}
