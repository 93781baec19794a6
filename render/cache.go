// ABOUTME: In-memory render cache keyed by sha256 of the DOT definition and output format.
// ABOUTME: Workflow diagrams repeat the same few definitions, so graphviz runs once per distinct state.
package render

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// RenderFunc is the signature of the wrapped rendering function.
type RenderFunc func(ctx context.Context, dotText string, format string) ([]byte, error)

type cacheEntry struct {
	data      []byte
	createdAt time.Time
}

// RenderCache memoizes a RenderFunc. Errors are never cached.
type RenderCache struct {
	renderFn   RenderFunc
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*cacheEntry
	hits    int
	misses  int
}

// NewRenderCache wraps renderFn. Entries older than ttl are re-rendered; when
// maxEntries is reached the oldest entry is evicted. maxEntries <= 0 means 64.
func NewRenderCache(renderFn RenderFunc, ttl time.Duration, maxEntries int) *RenderCache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &RenderCache{
		renderFn:   renderFn,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheEntry),
	}
}

// RenderDOTSource returns a cached render when fresh, otherwise renders and stores it.
func (c *RenderCache) RenderDOTSource(ctx context.Context, dotText string, format string) ([]byte, error) {
	key := cacheKey(dotText, format)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.createdAt) < c.ttl {
		c.hits++
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	c.misses++
	c.mu.Unlock()

	data, err := c.renderFn(ctx, dotText, format)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = &cacheEntry{data: data, createdAt: time.Now()}
	return data, nil
}

// Stats returns hit and miss counts.
func (c *RenderCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of stored entries, including expired ones.
func (c *RenderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *RenderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

func (c *RenderCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}
	delete(c.entries, oldestKey)
}

func cacheKey(dotText string, format string) string {
	return fmt.Sprintf("%x:%s", sha256.Sum256([]byte(dotText)), format)
}
