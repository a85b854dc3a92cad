// cache.go provides an in-memory cache of parsed template documents.
// This is the L1 cache: it avoids re-parsing fabricJsonState on every
// render. Documents are keyed by template ID and version, so a save (which
// bumps the version) automatically produces a cache miss.
package engine

import (
	"log/slog"
	"sync"

	"mockupstudio/internal/scene"
)

// cacheKey uniquely identifies a parsed template version.
type cacheKey struct {
	id      string // UUID as string
	version int
}

// documentCache is a concurrency-safe in-memory cache of parsed documents.
// Cached documents are shared and must be cloned before mutation.
type documentCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*scene.Document
}

// newDocumentCache creates an empty document cache.
func newDocumentCache() *documentCache {
	return &documentCache{
		entries: make(map[cacheKey]*scene.Document),
	}
}

// get retrieves a parsed document from cache. Returns nil on miss.
func (c *documentCache) get(id string, version int) *scene.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[cacheKey{id: id, version: version}]
}

// put stores a parsed document, dropping older versions of the same
// template since a template only moves forward.
func (c *documentCache) put(id string, version int, doc *scene.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.id == id && k.version < version {
			delete(c.entries, k)
		}
	}
	c.entries[cacheKey{id: id, version: version}] = doc
	slog.Debug("document cached", "id", id, "version", version, "size", len(c.entries))
}

// invalidate removes all cached versions for a given template ID.
// Called when a template is updated or deleted.
func (c *documentCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.id == id {
			delete(c.entries, k)
		}
	}
	slog.Debug("document cache invalidated", "id", id)
}

// len returns the number of cached documents.
func (c *documentCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
