package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Sizing defaults for the metadata workload: a few hundred markets per
// cycle, item-counted cost.
const (
	defaultNumCounters = 10000
	defaultMaxCost     = 1000
	defaultBufferItems = 64
)

// RistrettoCache backs the Cache interface with a ristretto store.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds ristretto sizing. Zero values fall back to defaults
// sized for market metadata.
type RistrettoConfig struct {
	NumCounters int64 // keys tracked for admission frequency
	MaxCost     int64 // capacity in items
	BufferItems int64 // keys per Get buffer
	Logger      *zap.Logger
}

// NewRistrettoCache creates a ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	numCounters := cfg.NumCounters
	if numCounters <= 0 {
		numCounters = defaultNumCounters
	}
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = defaultMaxCost
	}
	bufferItems := cfg.BufferItems
	if bufferItems <= 0 {
		bufferItems = defaultBufferItems
	}

	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  inner,
		logger: cfg.Logger,
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (any, bool) {
	value, found := r.cache.Get(key)
	if found {
		HitsTotal.Inc()
	} else {
		MissesTotal.Inc()
	}

	return value, found
}

// Set stores a value with a TTL. Each entry costs one unit.
func (r *RistrettoCache) Set(key string, value any, ttl time.Duration) bool {
	accepted := r.cache.SetWithTTL(key, value, 1, ttl)
	if accepted {
		SetsTotal.Inc()
	}

	return accepted
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	DeletesTotal.Inc()
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared")
}

// Close releases cache resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
}

// Wait blocks until pending writes are applied. Ristretto admits entries
// asynchronously; callers that need read-your-write semantics call this.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
