package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartta-io/kartta/config"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["scan"], "scan command registered")
	assert.True(t, names["daemon"], "daemon command registered")
}

func TestScanRequestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Version:      "1",
		Regions:      []string{"us-west-2", "eu-west-1"},
		Services:     []string{"compute", "database"},
		CleanupStale: true,
	}

	req := scanRequest(cfg)

	require.Equal(t, cfg.Regions, req.Regions)
	require.Equal(t, cfg.Services, req.Services)
	assert.True(t, req.CleanupStale)
}
