package permissions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kartta-io/kartta/telemetry"
	"github.com/kartta-io/kartta/types"
)

// Decision is one simulated action evaluation.
type Decision struct {
	Action  string
	Allowed bool
}

// IdentityAPI wraps the cloud provider's identity and policy-simulation
// surface. The profile selects the credential material to call with.
type IdentityAPI interface {
	CurrentIdentity(ctx context.Context, profile string) (types.Identity, error)
	Simulate(ctx context.Context, profile, principalARN, resourceAddress string, actions []string) ([]Decision, error)
}

// Options tunes the resolver.
type Options struct {
	CacheTTL    time.Duration // per-address cache lifetime, default 5m
	MaxInFlight int64         // simulation calls in flight across the run, default 50
}

const (
	defaultCacheTTL    = 5 * time.Minute
	defaultMaxInFlight = 50
)

type cacheEntry struct {
	perms   types.Permissions
	expires time.Time
}

// Resolver resolves resource permissions with a TTL cache and a run-wide
// bound on outstanding simulation calls. Simulation is the externally
// rate-limited resource, so its bound is separate from the resource-level
// fan-out.
type Resolver struct {
	api    IdentityAPI
	ttl    time.Duration
	sem    *semaphore.Weighted
	logger *telemetry.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry

	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

// NewResolver creates a resolver around the given identity API
func NewResolver(api IdentityAPI, opts Options) *Resolver {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	inFlight := opts.MaxInFlight
	if inFlight <= 0 {
		inFlight = defaultMaxInFlight
	}

	return &Resolver{
		api:    api,
		ttl:    ttl,
		sem:    semaphore.NewWeighted(inFlight),
		logger: telemetry.NewLogger("permissions"),
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// CurrentIdentity returns the principal the given profile resolves to.
func (r *Resolver) CurrentIdentity(ctx context.Context, profile string) (types.Identity, error) {
	return r.api.CurrentIdentity(ctx, profile)
}

// Resolve determines which checklist actions the scanning identity may
// perform on the resource at address. Results are cached per address for
// the configured TTL.
func (r *Resolver) Resolve(ctx context.Context, address, service string, sc types.ScanContext) (types.Permissions, error) {
	checklist := ChecklistFor(service)
	if len(checklist) == 0 {
		return types.Permissions{Identity: sc.Identity}, nil
	}

	if perms, ok := r.lookup(address); ok {
		r.hits.Add(1)
		return perms, nil
	}
	r.misses.Add(1)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return types.Permissions{}, fmt.Errorf("acquire simulation slot: %w", err)
	}
	decisions, err := r.api.Simulate(ctx, sc.CredentialProfile, sc.Identity.PrincipalARN, address, checklist)
	r.sem.Release(1)
	if err != nil {
		return types.Permissions{}, fmt.Errorf("simulate %s: %w", address, err)
	}

	perms := partition(decisions, sc.Identity)
	r.store(address, perms)

	return perms, nil
}

// CacheStats returns cache hit and miss counts for this resolver's lifetime.
func (r *Resolver) CacheStats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

func (r *Resolver) lookup(address string) (types.Permissions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[address]
	if !ok || r.now().After(entry.expires) {
		return types.Permissions{}, false
	}
	return entry.perms, true
}

func (r *Resolver) store(address string, perms types.Permissions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[address] = cacheEntry{perms: perms, expires: r.now().Add(r.ttl)}
}

// partition splits decisions into sorted allowed and denied action sets.
func partition(decisions []Decision, identity types.Identity) types.Permissions {
	perms := types.Permissions{Identity: identity}
	for _, d := range decisions {
		if d.Allowed {
			perms.Allowed = append(perms.Allowed, d.Action)
		} else {
			perms.Denied = append(perms.Denied, d.Action)
		}
	}
	sort.Strings(perms.Allowed)
	sort.Strings(perms.Denied)
	return perms
}
