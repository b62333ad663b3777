package bluetooth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Cache holds the most recent advertisement per address. Entries older
// than the stale window are evicted by Expire (or Run).
//
// All methods are safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]ServiceInfo
	seen       map[string]time.Time
	staleAfter time.Duration
	now        func() time.Time
}

// NewCache creates a cache that forgets an address staleAfter its last
// advertisement. A zero staleAfter keeps addresses forever.
func NewCache(staleAfter time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]ServiceInfo),
		seen:       make(map[string]time.Time),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Observe records info, replacing any older observation of its address.
// It reports whether the address was not in the cache before.
func (c *Cache) Observe(info ServiceInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, known := c.entries[info.Address]
	if known {
		// Out-of-order delivery must not roll back to an older advertisement.
		if prev := c.entries[info.Address]; !info.Time.IsZero() && info.Time.Before(prev.Time) {
			return false
		}
	}
	c.entries[info.Address] = info
	c.seen[info.Address] = c.now()
	return !known
}

// Get returns the latest observation for address.
func (c *Cache) Get(address string) (ServiceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.entries[address]
	return info, ok
}

// Candidates returns a snapshot of every cached observation, ordered by
// address. The snapshot may be empty.
func (c *Cache) Candidates() []ServiceInfo {
	c.mu.RLock()
	out := make([]ServiceInfo, 0, len(c.entries))
	for _, info := range c.entries {
		out = append(out, info)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Expire evicts stale addresses and returns them.
func (c *Cache) Expire() []string {
	if c.staleAfter <= 0 {
		return nil
	}

	cutoff := c.now().Add(-c.staleAfter)

	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []string
	for addr, seen := range c.seen {
		if seen.Before(cutoff) {
			delete(c.entries, addr)
			delete(c.seen, addr)
			expired = append(expired, addr)
		}
	}
	sort.Strings(expired)
	return expired
}

// Run calls Expire every interval until ctx is cancelled, passing evicted
// addresses to onExpire when there are any.
func (c *Cache) Run(ctx context.Context, interval time.Duration, onExpire func([]string)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := c.Expire(); len(expired) > 0 && onExpire != nil {
				onExpire(expired)
			}
		}
	}
}
