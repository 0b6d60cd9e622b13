package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/kartta-io/kartta/telemetry"
	"github.com/kartta-io/kartta/types"
)

// Bucket names in bbolt
var (
	bucketPoints = []byte("points")
	bucketMeta   = []byte("meta")
)

// BoltStore is the local persistent store: points on disk in bbolt, keys
// mirrored in an in-memory btree for ordered prefix listing.
type BoltStore struct {
	mu sync.RWMutex

	// In-memory key index for fast prefix scans
	index *btree.BTreeG[string]

	// On-disk storage
	db *bbolt.DB

	logger *telemetry.Logger
}

// NewBoltStore opens (or creates) the store at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketPoints, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &BoltStore{
		index: btree.NewG[string](32, func(a, b string) bool {
			return a < b
		}),
		db:     db,
		logger: telemetry.NewLogger("store"),
	}

	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info().
		Str("path", path).
		Int("points", s.index.Len()).
		Msg("store opened")

	return s, nil
}

// rebuildIndex loads all keys from disk into the btree
func (s *BoltStore) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPoints).ForEach(func(k, _ []byte) error {
			s.index.ReplaceOrInsert(string(k))
			return nil
		})
	})
}

// Close closes the store
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// UpsertOne writes or overwrites a single point. Same key, same record:
// a repeat upsert never creates a duplicate.
func (s *BoltStore) UpsertOne(ctx context.Context, point Point) error {
	if point.Key == "" {
		return fmt.Errorf("point has empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("marshal point %s: %w", point.Key, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPoints).Put([]byte(point.Key), value)
	})
	if err != nil {
		return fmt.Errorf("put point %s: %w", point.Key, err)
	}

	s.index.ReplaceOrInsert(point.Key)
	return nil
}

// BatchUpsert writes many points in one transaction. Individual bad points
// (empty key, unmarshalable payload) are reported as failures; the rest of
// the batch still commits.
func (s *BoltStore) BatchUpsert(ctx context.Context, points []Point) (int, []UpsertFailure, error) {
	if len(points) == 0 {
		return 0, nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []UpsertFailure
	type entry struct {
		key   string
		value []byte
	}
	entries := make([]entry, 0, len(points))

	for _, point := range points {
		if point.Key == "" {
			failures = append(failures, UpsertFailure{Key: point.Key, Err: fmt.Errorf("empty key")})
			continue
		}
		value, err := json.Marshal(point)
		if err != nil {
			failures = append(failures, UpsertFailure{Key: point.Key, Err: err})
			continue
		}
		entries = append(entries, entry{key: point.Key, value: value})
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPoints)
		for _, e := range entries {
			if err := bucket.Put([]byte(e.key), e.value); err != nil {
				return fmt.Errorf("put %s: %w", e.key, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, failures, err
	}

	for _, e := range entries {
		s.index.ReplaceOrInsert(e.key)
	}

	return len(entries), failures, nil
}

// ListKeys returns keys matching the filter in ascending order.
func (s *BoltStore) ListKeys(ctx context.Context, filter KeyFilter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string

	if filter.AccountID == "" {
		s.index.Ascend(func(key string) bool {
			keys = append(keys, key)
			return true
		})
		return keys, nil
	}

	prefix := types.KeyPrefix(filter.AccountID)
	s.index.AscendGreaterOrEqual(prefix, func(key string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})

	return keys, nil
}

// Get returns one point by key.
func (s *BoltStore) Get(ctx context.Context, key string) (*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var point *Point
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketPoints).Get([]byte(key))
		if value == nil {
			return nil
		}
		point = &Point{}
		return json.Unmarshal(value, point)
	})
	if err != nil {
		return nil, fmt.Errorf("get point %s: %w", key, err)
	}
	if point == nil {
		return nil, fmt.Errorf("point %s not found", key)
	}

	return point, nil
}

// DeleteMany removes the given keys, returning how many actually existed.
func (s *BoltStore) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPoints)
		for _, key := range keys {
			if bucket.Get([]byte(key)) == nil {
				continue
			}
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		s.index.Delete(key)
	}

	return deleted, nil
}

// Stats returns the point count and database size in bytes.
func (s *BoltStore) Stats() (pointCount int, dbSizeBytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pointCount = s.index.Len()
	_ = s.db.View(func(tx *bbolt.Tx) error {
		dbSizeBytes = tx.Size()
		return nil
	})
	return pointCount, dbSizeBytes
}
