// Package orchestrator coordinates the scan pipeline: discovery across
// accounts, regions, and services, per-resource enrichment, embedding,
// idempotent store sync, and stale-record cleanup. Partial failures are
// collected, never propagated; only configuration errors abort a run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kartta-io/kartta/embedding"
	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/scanner"
	"github.com/kartta-io/kartta/store"
	"github.com/kartta-io/kartta/telemetry"
	"github.com/kartta-io/kartta/types"
)

// PermissionResolver resolves the scanning identity and per-resource
// action permissions.
type PermissionResolver interface {
	CurrentIdentity(ctx context.Context, profile string) (types.Identity, error)
	Resolve(ctx context.Context, address, service string, sc types.ScanContext) (types.Permissions, error)
}

// Embedder produces index-aligned vectors for a batch of resources.
type Embedder interface {
	EmbedBatch(ctx context.Context, resources []types.Resource) ([][]float32, []error, error)
}

// Orchestrator walks accounts → regions → services → resources and drives
// the enrichment pipeline against the registered scanners.
type Orchestrator struct {
	resolver PermissionResolver
	embedder Embedder
	store    store.Store
	limits   Limits
	logger   *telemetry.Logger
	metrics  *ScanMetrics
}

// New creates an orchestrator with the given collaborators
func New(resolver PermissionResolver, embedder Embedder, st store.Store, limits Limits) (*Orchestrator, error) {
	metrics, err := NewScanMetrics()
	if err != nil {
		return nil, fmt.Errorf("create scan metrics: %w", err)
	}

	return &Orchestrator{
		resolver: resolver,
		embedder: embedder,
		store:    st,
		limits:   limits.withDefaults(),
		logger:   telemetry.NewLogger("orchestrator"),
		metrics:  metrics,
	}, nil
}

// tally accumulates one account's counters and the keys it upserted.
type tally struct {
	discovered atomic.Int64
	upserted   atomic.Int64

	mu   sync.Mutex
	seen map[string]struct{}
}

func newTally() *tally {
	return &tally{seen: make(map[string]struct{})}
}

func (t *tally) markSeen(keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range keys {
		t.seen[key] = struct{}{}
	}
}

func (t *tally) wasSeen(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[key]
	return ok
}

// Scan runs one full scan. It returns an error only for structural
// misconfiguration (unknown service name, embedding model disagreeing
// with the configured dimension); every per-item failure is collected
// into the result instead.
func (o *Orchestrator) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	for _, service := range req.Services {
		if _, ok := scanner.Get(service); !ok {
			return nil, fmt.Errorf("no scanner registered for service %q (registered: %s)",
				service, strings.Join(scanner.Names(), ", "))
		}
	}

	result := &ScanResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		State:     StateDone,
	}
	agg := newAggregator()

	o.logger.WithContext(ctx).Info().
		Str("run_id", result.RunID).
		Int("accounts", len(req.Accounts)).
		Strs("regions", req.Regions).
		Strs("services", req.Services).
		Bool("cleanup", req.CleanupStale).
		Msg("starting scan")

	// Accounts run strictly sequentially: credential material must never
	// interleave across concurrent client state.
	for _, account := range req.Accounts {
		t := newTally()
		if err := o.scanAccount(ctx, account, req, agg, t); err != nil {
			return nil, err
		}

		deleted := 0
		if req.CleanupStale {
			deleted = o.cleanupAccount(ctx, account, agg, t)
		}

		ar := AccountResult{
			AccountID:  account.ID,
			Discovered: int(t.discovered.Load()),
			Upserted:   int(t.upserted.Load()),
			Deleted:    deleted,
			Errors:     agg.countForAccount(account.ID),
		}
		result.Accounts = append(result.Accounts, ar)
		result.Discovered += ar.Discovered
		result.Upserted += ar.Upserted
		result.Deleted += ar.Deleted
	}

	result.Errors = agg.all()
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	o.metrics.RecordScanDuration(ctx, result.Duration)

	o.logger.WithContext(ctx).Info().
		Str("run_id", result.RunID).
		Int("discovered", result.Discovered).
		Int("upserted", result.Upserted).
		Int("deleted", result.Deleted).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("scan complete")

	return result, nil
}

func (o *Orchestrator) scanAccount(ctx context.Context, account types.Account, req ScanRequest, agg *aggregator, t *tally) error {
	identity, err := o.resolver.CurrentIdentity(ctx, account.CredentialProfile)
	if err != nil {
		// Permissions degrade to empty sets; discovery still runs.
		o.logger.WithContext(ctx).Warn().
			Err(err).
			Str("account_id", account.ID).
			Msg("identity resolution failed, scanning without identity context")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limits.Regions)

	for _, region := range req.Regions {
		sc := types.ScanContext{
			AccountID:         account.ID,
			AccountName:       account.Name,
			Region:            region,
			CredentialProfile: account.CredentialProfile,
			RoleARN:           account.RoleARN,
			Identity:          identity,
		}
		g.Go(func() error {
			return o.scanRegion(gctx, sc, req.Services, agg, t)
		})
	}

	return g.Wait()
}

func (o *Orchestrator) scanRegion(ctx context.Context, sc types.ScanContext, services []string, agg *aggregator, t *tally) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limits.Services)

	for _, service := range services {
		g.Go(func() error {
			return o.scanService(gctx, sc, service, agg, t)
		})
	}

	return g.Wait()
}

// scanService runs discover → enrich → embed → upsert for one
// (account, region, service). Returns an error only for fatal
// configuration problems; everything else is recorded and swallowed.
func (o *Orchestrator) scanService(ctx context.Context, sc types.ScanContext, service string, agg *aggregator, t *tally) error {
	s, ok := scanner.Get(service)
	if !ok {
		return fmt.Errorf("scanner %q disappeared mid-run", service)
	}

	records, err := s.Discover(ctx, sc)
	if err != nil {
		o.record(ctx, agg, classifyDiscovery(err, sc, service))
		return nil
	}
	if len(records) == 0 {
		// Empty is a valid result, not an error.
		return nil
	}

	t.discovered.Add(int64(len(records)))
	o.metrics.RecordDiscovered(ctx, len(records), service, sc.Region)

	// Index slots keep the survivors without cross-task coordination.
	slots := make([]*types.Resource, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limits.Resources)

	for i, record := range records {
		g.Go(func() error {
			slots[i] = o.enrich(gctx, s, record, sc, agg)
			return nil
		})
	}
	_ = g.Wait()

	var survivors []types.Resource
	for _, r := range slots {
		if r != nil {
			survivors = append(survivors, *r)
		}
	}
	if len(survivors) == 0 {
		return nil
	}

	return o.embedAndUpsert(ctx, sc, service, survivors, agg, t)
}

// enrich transforms one raw record and attaches permissions and
// constraints. Returns nil when the resource must be dropped.
func (o *Orchestrator) enrich(ctx context.Context, s scanner.Scanner, record types.RawRecord, sc types.ScanContext, agg *aggregator) *types.Resource {
	r, err := s.Transform(record, sc)
	if err != nil {
		o.record(ctx, agg, &ScanError{
			Kind:      KindTransformFailed,
			AccountID: sc.AccountID,
			Region:    sc.Region,
			Service:   record.Service,
			Err:       err,
		})
		return nil
	}

	if v, ok := s.(scanner.Validator); ok {
		if err := v.Validate(r); err != nil {
			o.record(ctx, agg, &ScanError{
				Kind:            KindTransformFailed,
				AccountID:       sc.AccountID,
				Region:          sc.Region,
				Service:         r.Service,
				ResourceAddress: r.Address(),
				Err:             err,
			})
			return nil
		}
	}

	perms, err := o.resolver.Resolve(ctx, r.Address(), r.Service, sc)
	if err != nil {
		// The resource is still stored, just without permission facts.
		o.record(ctx, agg, &ScanError{
			Kind:            KindPermissionResolutionFailed,
			AccountID:       sc.AccountID,
			Region:          sc.Region,
			Service:         r.Service,
			ResourceAddress: r.Address(),
			Err:             err,
		})
		perms = types.Permissions{Identity: sc.Identity}
	}

	r.Permissions = perms
	r.Constraints = deriveConstraints(r)
	r.LastSyncedAt = time.Now().UTC()

	return &r
}

func (o *Orchestrator) embedAndUpsert(ctx context.Context, sc types.ScanContext, service string, resources []types.Resource, agg *aggregator, t *tally) error {
	vectors, perResource, err := o.embedder.EmbedBatch(ctx, resources)
	if err != nil {
		if errors.Is(err, embedding.ErrBatchDimension) {
			// The model and the configuration disagree on dimension for
			// every vector. No sibling batch will fare better.
			return fmt.Errorf("embedding configuration mismatch for %s/%s: %w", sc.Region, service, err)
		}
		for _, r := range resources {
			o.record(ctx, agg, &ScanError{
				Kind:            KindEmbeddingFailed,
				AccountID:       sc.AccountID,
				Region:          sc.Region,
				Service:         service,
				ResourceAddress: r.Address(),
				Err:             err,
			})
		}
		return nil
	}

	points := make([]store.Point, 0, len(resources))
	for i, r := range resources {
		if perResource[i] != nil {
			o.record(ctx, agg, &ScanError{
				Kind:            KindEmbeddingFailed,
				AccountID:       sc.AccountID,
				Region:          sc.Region,
				Service:         service,
				ResourceAddress: r.Address(),
				Err:             perResource[i],
			})
			continue
		}
		r.Embedding = vectors[i]
		points = append(points, store.Point{Key: r.Key(), Vector: vectors[i], Resource: r})
	}
	if len(points) == 0 {
		return nil
	}

	upserted, failures, err := o.store.BatchUpsert(ctx, points)
	if err != nil {
		o.record(ctx, agg, &ScanError{
			Kind:      KindStoreUpsertFailed,
			AccountID: sc.AccountID,
			Region:    sc.Region,
			Service:   service,
			Detail:    fmt.Sprintf("batch of %d", len(points)),
			Err:       err,
		})
		return nil
	}
	for _, f := range failures {
		o.record(ctx, agg, &ScanError{
			Kind:            KindStoreUpsertFailed,
			AccountID:       sc.AccountID,
			Region:          sc.Region,
			Service:         service,
			ResourceAddress: f.Key,
			Err:             f.Err,
		})
	}

	failed := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		failed[f.Key] = struct{}{}
	}
	committed := make([]string, 0, upserted)
	for _, p := range points {
		if _, ok := failed[p.Key]; !ok {
			committed = append(committed, p.Key)
		}
	}
	t.markSeen(committed)
	t.upserted.Add(int64(upserted))
	o.metrics.RecordUpserted(ctx, upserted, service)
	o.logger.LogBatchUpsert(ctx, service, sc.Region, upserted, len(failures))

	return nil
}

// cleanupAccount deletes the account's stored keys that this run did not
// upsert. Runs only after every region and service for the account has
// joined, and never after a discovery failure: a resource missing because
// its listing failed is not stale.
func (o *Orchestrator) cleanupAccount(ctx context.Context, account types.Account, agg *aggregator, t *tally) int {
	if agg.hasDiscoveryErrors(account.ID) {
		o.logger.WithContext(ctx).Warn().
			Str("account_id", account.ID).
			Msg("skipping cleanup after discovery failures")
		return 0
	}

	keys, err := o.store.ListKeys(ctx, store.KeyFilter{AccountID: account.ID})
	if err != nil {
		o.record(ctx, agg, &ScanError{
			Kind:      KindCleanupFailed,
			AccountID: account.ID,
			Err:       err,
		})
		return 0
	}

	var stale []string
	for _, key := range keys {
		if !t.wasSeen(key) {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	deleted, err := o.store.DeleteMany(ctx, stale)
	if err != nil {
		o.record(ctx, agg, &ScanError{
			Kind:      KindCleanupFailed,
			AccountID: account.ID,
			Detail:    fmt.Sprintf("%d stale keys", len(stale)),
			Err:       err,
		})
		return deleted
	}

	o.metrics.RecordDeleted(ctx, deleted, account.ID)
	o.logger.LogCleanup(ctx, account.ID, len(stale), deleted)

	return deleted
}

func (o *Orchestrator) record(ctx context.Context, agg *aggregator, e *ScanError) {
	agg.add(e)
	o.metrics.RecordError(ctx, e.Kind)
	o.logger.LogStageError(ctx, string(e.Kind), e.Service, e.Region, e)
}

// classifyDiscovery maps a discovery failure onto the error taxonomy.
func classifyDiscovery(err error, sc types.ScanContext, service string) *ScanError {
	e := &ScanError{
		Kind:      KindDiscoveryFailed,
		AccountID: sc.AccountID,
		Region:    sc.Region,
		Service:   service,
		Err:       err,
	}

	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		e.Kind = KindCommandNonZeroExit
		e.ExitCode = exitErr.ExitCode
		e.Detail = exitErr.Stderr
		return e
	}

	var parseErr *scanner.ParseError
	if errors.As(err, &parseErr) {
		e.Kind = KindParseFailed
		e.Detail = parseErr.Snippet
		return e
	}

	return e
}
