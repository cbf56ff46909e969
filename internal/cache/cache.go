// Package cache defines the cache port the query core reads through, plus
// the jittered-TTL freshness policy applied on every write.
package cache

import (
	"math/rand/v2"
	"time"
)

// Interface is the port consumed by the service layer. Implementations must
// provide per-key atomicity; writes are idempotent upserts so no further
// locking is required of callers.
type Interface interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, val []byte, ttl time.Duration) error
	Del(keys ...string) error
}

// DefaultJitter is the spread applied around base TTLs so concurrently
// cached keys do not expire in lockstep.
const DefaultJitter = 10 * time.Minute

const minTTL = time.Minute

// JitterTTL returns base plus a signed random offset in (-spread, +spread),
// drawn independently per call, floored at one minute.
func JitterTTL(base, spread time.Duration) time.Duration {
	if base <= 0 {
		return minTTL
	}
	if spread <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2*spread))) - spread
	ttl := base + offset
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}
