package resolver

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache lifetimes
const (
	// DefaultExpiration is how long a stored resolution stays cached
	DefaultExpiration = 30 * time.Minute
	// DefaultCleanupInterval is how often expired resolutions are purged
	DefaultCleanupInterval = 10 * time.Minute
)

// Cache memoizes resolutions across passes. Entries are keyed by snapshot
// version so a pass never sees results computed from a different snapshot.
type Cache interface {
	Lookup(version, key string) (Resolution, bool)
	Store(version, key string, res Resolution)
}

// MemoCache is a Cache backed by an in-memory expiring map.
// It is safe for concurrent use by passes over different snapshots.
type MemoCache struct {
	cache *gocache.Cache
}

// NewMemoCache returns a MemoCache whose entries expire after expiration.
// A zero expiration uses DefaultExpiration.
func NewMemoCache(expiration time.Duration) *MemoCache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &MemoCache{cache: gocache.New(expiration, DefaultCleanupInterval)}
}

// Lookup returns the resolution stored for key under version.
func (c *MemoCache) Lookup(version, key string) (Resolution, bool) {
	value, found := c.cache.Get(memoKey(version, key))
	if !found {
		return Resolution{}, false
	}
	res, ok := value.(Resolution)
	return res, ok
}

// Store records res for key under version.
func (c *MemoCache) Store(version, key string, res Resolution) {
	c.cache.SetDefault(memoKey(version, key), res)
}

// Retain drops every entry that does not belong to version. Call it when the
// snapshot changes so stale versions do not linger until expiry.
func (c *MemoCache) Retain(version string) int {
	prefix := version + "/"
	dropped := 0
	for k := range c.cache.Items() {
		if !strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of unexpired entries.
func (c *MemoCache) Len() int {
	return c.cache.ItemCount()
}

func memoKey(version, key string) string {
	return version + "/" + key
}
