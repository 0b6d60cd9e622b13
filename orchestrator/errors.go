package orchestrator

import (
	"fmt"
	"strings"
	"sync"
)

// Kind classifies a scan failure by the stage that produced it.
type Kind string

const (
	KindDiscoveryFailed            Kind = "discovery_failed"
	KindCommandNonZeroExit         Kind = "command_nonzero_exit"
	KindParseFailed                Kind = "parse_failed"
	KindTransformFailed            Kind = "transform_failed"
	KindPermissionResolutionFailed Kind = "permission_resolution_failed"
	KindEmbeddingFailed            Kind = "embedding_failed"
	KindStoreUpsertFailed          Kind = "store_upsert_failed"
	KindCleanupFailed              Kind = "cleanup_failed"
)

// discoveryKinds are the kinds that make an account's stale cleanup unsafe:
// a resource missing because its listing failed is not stale.
var discoveryKinds = map[Kind]bool{
	KindDiscoveryFailed:    true,
	KindCommandNonZeroExit: true,
	KindParseFailed:        true,
}

// ScanError is one recoverable failure recorded during a run. It carries
// enough context for the caller to retry just the failed slice.
type ScanError struct {
	Kind            Kind   `json:"kind"`
	AccountID       string `json:"account_id,omitempty"`
	Region          string `json:"region,omitempty"`
	Service         string `json:"service,omitempty"`
	ResourceAddress string `json:"resource_address,omitempty"`
	ExitCode        int    `json:"exit_code,omitempty"`
	Detail          string `json:"detail,omitempty"`
	Err             error  `json:"-"`
}

func (e *ScanError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	for _, part := range []struct{ label, value string }{
		{"account", e.AccountID},
		{"region", e.Region},
		{"service", e.Service},
		{"resource", e.ResourceAddress},
	} {
		if part.value != "" {
			fmt.Fprintf(&b, " %s=%s", part.label, part.value)
		}
	}
	if e.Kind == KindCommandNonZeroExit {
		fmt.Fprintf(&b, " exit=%d", e.ExitCode)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ScanError) Unwrap() error { return e.Err }

// aggregator collects typed errors from concurrent scan tasks.
type aggregator struct {
	mu     sync.Mutex
	errors []*ScanError
}

func newAggregator() *aggregator {
	return &aggregator{}
}

// add records one error. Safe for concurrent use.
func (a *aggregator) add(err *ScanError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, err)
}

// all returns the recorded errors.
func (a *aggregator) all() []*ScanError {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ScanError, len(a.errors))
	copy(out, a.errors)
	return out
}

// count returns how many errors are recorded.
func (a *aggregator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errors)
}

// countForAccount returns how many errors an account recorded.
func (a *aggregator) countForAccount(accountID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.errors {
		if e.AccountID == accountID {
			n++
		}
	}
	return n
}

// hasDiscoveryErrors reports whether the account recorded any
// discovery-stage failure, which makes its cleanup unsafe this run.
func (a *aggregator) hasDiscoveryErrors(accountID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.errors {
		if e.AccountID == accountID && discoveryKinds[e.Kind] {
			return true
		}
	}
	return false
}
