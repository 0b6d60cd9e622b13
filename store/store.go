// Package store defines the persistent store consumed by the orchestrator
// and provides a local bbolt-backed implementation.
package store

import (
	"context"

	"github.com/kartta-io/kartta/types"
)

// Point is one stored record: deterministic key, embedding vector, payload.
type Point struct {
	Key      string         `json:"key"`
	Vector   []float32      `json:"vector,omitempty"`
	Resource types.Resource `json:"resource"`
}

// UpsertFailure reports one failed item of a batch upsert.
type UpsertFailure struct {
	Key string
	Err error
}

// KeyFilter narrows ListKeys. An empty filter lists everything.
type KeyFilter struct {
	AccountID string
}

// Store is the persistent store contract. All operations are idempotent
// under key collision: upserting an existing key overwrites, never
// duplicates. The orchestrator relies on this to make partial scan
// completion safe.
type Store interface {
	// UpsertOne writes or overwrites a single point
	UpsertOne(ctx context.Context, point Point) error

	// BatchUpsert writes many points, reporting per-item failures
	BatchUpsert(ctx context.Context, points []Point) (upserted int, failures []UpsertFailure, err error)

	// ListKeys returns the keys matching the filter
	ListKeys(ctx context.Context, filter KeyFilter) ([]string, error)

	// DeleteMany removes the given keys, returning how many existed
	DeleteMany(ctx context.Context, keys []string) (deleted int, err error)
}
