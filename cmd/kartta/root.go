package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "kartta",
		Short: "Local-first cloud resource map",
		Long: `Kartta - Local-first cloud resource map

Kartta discovers live cloud resources across accounts and regions,
attaches access-control facts and semantic embeddings to each one,
and keeps a local searchable store in sync with what actually exists.

Partial failures never abort a run: every error is collected and
reported, and the store only ever moves towards the observed state.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Kartta {{.Version}} - Local-first cloud resource map
`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "kartta.yaml", "Path to configuration file")
}
