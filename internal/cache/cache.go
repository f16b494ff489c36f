// Package cache provides the in-memory content cache consulted by the
// content acquirer. Entries expire after a fixed TTL and the table is
// bounded with least-recently-used eviction. A miss never fails a pipeline
// run; it only costs a network fetch.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"marketwire/internal/core"
)

const (
	// DefaultTTL is how long fetched content stays valid.
	DefaultTTL = 24 * time.Hour
	// DefaultCapacity bounds the number of retained entries.
	DefaultCapacity = 512
)

// ContentCache is a TTL- and capacity-bounded cache of fetched page content,
// keyed by normalized URL. Safe for concurrent use.
type ContentCache struct {
	lru    *expirable.LRU[string, core.RawContent]
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a content cache. Non-positive arguments fall back to defaults.
func New(capacity int, ttl time.Duration) *ContentCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ContentCache{
		lru: expirable.NewLRU[string, core.RawContent](capacity, nil, ttl),
	}
}

// Get returns the cached content for the URL, if present and unexpired.
func (c *ContentCache) Get(rawURL string) (core.RawContent, bool) {
	rc, ok := c.lru.Get(Normalize(rawURL))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return rc, ok
}

// Put stores fetched content under the URL's normalized key.
func (c *ContentCache) Put(rawURL string, rc core.RawContent) {
	c.lru.Add(Normalize(rawURL), rc)
}

// Len returns the number of live entries.
func (c *ContentCache) Len() int {
	return c.lru.Len()
}

// Stats reports lookup counters since process start.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Len    int   `json:"entries"`
}

// Stats returns hit/miss counters and the current entry count.
func (c *ContentCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Len:    c.lru.Len(),
	}
}
