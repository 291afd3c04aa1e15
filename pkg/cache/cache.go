// Package cache provides the TTL key-value store used for market metadata
// that survives across polling cycles.
package cache

import "time"

// Cache is a TTL key-value store. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(key string) (any, bool)

	// Set stores a value with a TTL. The return reports whether the entry
	// was accepted.
	Set(key string, value any, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Clear removes all values.
	Clear()

	// Close releases cache resources.
	Close()
}
