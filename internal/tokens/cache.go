package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
)

// DefaultCacheTTL is used when NewCache is given a non-positive TTL.
const DefaultCacheTTL = 5 * time.Minute

// Cache remembers verified claims keyed by the exact token string.
//
// Entries expire after a fixed wall-clock TTL that is independent of the
// token's own expiry; Service re-checks the claims' expiry on every hit.
// Losing an entry only costs a full verification.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	claims    *auth.Claims
	expiresAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Insert stores claims for token, replacing any previous entry.
func (c *Cache) Insert(token string, claims *auth.Claims) {
	c.mu.Lock()
	c.entries[token] = cacheEntry{claims: claims, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Get returns the cached claims. Entries past the cache TTL are dropped.
func (c *Cache) Get(token string) (*auth.Claims, bool) {
	c.mu.RLock()
	e, ok := c.entries[token]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// re-check: another goroutine may have refreshed the entry
		if cur, ok := c.entries[token]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, token)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.claims, true
}

func (c *Cache) Remove(token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len counts entries, including ones past their TTL that were not purged yet.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every entry past its TTL and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// StartJanitor purges expired entries every interval until ctx is done.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Purge()
			}
		}
	}()
}
