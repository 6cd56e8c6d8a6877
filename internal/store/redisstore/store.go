package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/colloquium-dev/colloquium/internal/ai"
)

const catalogKey = "colloquium:models"

// Store caches the upstream model catalog in Redis so repeated listing
// requests do not hit the provider.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects a cache store. ttl bounds catalog staleness.
func New(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// GetModels returns the cached catalog and whether a cache entry existed.
func (s *Store) GetModels(ctx context.Context) ([]ai.Model, bool, error) {
	raw, err := s.rdb.Get(ctx, catalogKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var models []ai.Model
	if err := json.Unmarshal(raw, &models); err != nil {
		// stale or corrupt entry, treat as a miss
		return nil, false, nil
	}
	return models, true, nil
}

// SetModels stores the catalog with the configured TTL.
func (s *Store) SetModels(ctx context.Context, models []ai.Model) error {
	raw, err := json.Marshal(models)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, catalogKey, raw, s.ttl).Err()
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.rdb.Close() }
