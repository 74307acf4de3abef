package store

import (
	"time"

	"catalog-api/internal/domain"
)

// cacheState enumerates the read-cache lifecycle: no snapshot held, a
// snapshot valid until a deadline, or a snapshot explicitly marked stale.
type cacheState int

const (
	cacheAbsent cacheState = iota
	cacheValid
	cacheStale
)

// cache holds the last collection read from or written to disk. It is not
// a correctness mechanism; it only avoids redundant reads within the
// freshness window. The owning FileStore serializes access.
type cache struct {
	state      cacheState
	products   []domain.Product
	validUntil time.Time
}

// get returns the cached collection if the cache is in the valid state and
// the freshness deadline has not passed. An expired snapshot transitions to
// stale.
func (c *cache) get(now time.Time) ([]domain.Product, bool) {
	if c.state != cacheValid {
		return nil, false
	}
	if now.After(c.validUntil) {
		c.state = cacheStale
		return nil, false
	}
	return c.products, true
}

// set stores a snapshot and arms the freshness deadline.
func (c *cache) set(products []domain.Product, now time.Time, ttl time.Duration) {
	c.state = cacheValid
	c.products = products
	c.validUntil = now.Add(ttl)
}

// invalidate marks the snapshot stale so the next read goes to disk.
func (c *cache) invalidate() {
	if c.state == cacheValid {
		c.state = cacheStale
	}
	c.products = nil
}
