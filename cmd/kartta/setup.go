package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kartta-io/kartta/config"
	"github.com/kartta-io/kartta/embedding"
	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/orchestrator"
	"github.com/kartta-io/kartta/permissions"
	"github.com/kartta-io/kartta/scanner"
	"github.com/kartta-io/kartta/store"
	"github.com/kartta-io/kartta/telemetry"
)

// pipeline holds the wired-up collaborators for one process lifetime.
type pipeline struct {
	orchestrator *orchestrator.Orchestrator
	store        *store.BoltStore
	shutdownOTEL func(context.Context) error
}

func (p *pipeline) close(ctx context.Context) {
	if p.store != nil {
		_ = p.store.Close()
	}
	if p.shutdownOTEL != nil {
		_ = p.shutdownOTEL(ctx)
	}
}

// buildPipeline loads the config and wires executor, scanners, resolver,
// embedder, store, and orchestrator together.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "kartta",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTELEndpoint:   cfg.Telemetry.OTELEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	p := &pipeline{shutdownOTEL: shutdown}

	exec := executor.NewCLIExecutor()
	scanner.Register(scanner.NewComputeScanner(exec))
	scanner.Register(scanner.NewDatabaseScanner(exec))
	scanner.Register(scanner.NewObjectStoreScanner(exec))
	scanner.Register(scanner.NewFunctionScanner(exec))
	scanner.Register(scanner.NewNetworkScanner(exec))

	identity := permissions.NewAWSIdentity(cfg.Regions[0])
	resolver := permissions.NewResolver(identity, permissions.Options{
		CacheTTL:    cfg.PermissionCacheTTL(),
		MaxInFlight: int64(cfg.Limits.PermissionCalls),
	})

	apiKey := ""
	if cfg.Embedding.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.Embedding.APIKeyEnv)
	}
	model := embedding.NewHTTPModelClient(cfg.Embedding.Endpoint, cfg.Embedding.Model, apiKey)
	generator := embedding.NewGenerator(model, cfg.Embedding.Dimension)

	st, err := store.NewBoltStore(cfg.StorePath())
	if err != nil {
		p.close(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	p.store = st

	orch, err := orchestrator.New(resolver, generator, st, orchestrator.Limits{
		Regions:         cfg.Limits.Regions,
		Services:        cfg.Limits.Services,
		Resources:       cfg.Limits.Resources,
		PermissionCalls: cfg.Limits.PermissionCalls,
	})
	if err != nil {
		p.close(ctx)
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	p.orchestrator = orch

	return p, nil
}

func scanRequest(cfg *config.Config) orchestrator.ScanRequest {
	return orchestrator.ScanRequest{
		Accounts:     cfg.Accounts,
		Regions:      cfg.Regions,
		Services:     cfg.Services,
		CleanupStale: cfg.CleanupStale,
	}
}
