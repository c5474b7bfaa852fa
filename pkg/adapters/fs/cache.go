package fs

import (
	"sync"
	"time"

	"github.com/mpospelov/chewy/pkg/core"
)

// cacheEntry is a parsed document and the mtime of the file it came from.
type cacheEntry struct {
	doc          core.Document
	lastModified time.Time
}

// cache keeps parsed documents so searches only decode files that changed
// since they were last read.
type cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry // key is the document path
}

func newCache() *cache {
	return &cache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached document if it exists and is fresh.
func (c *cache) Get(path string, mtime time.Time) (core.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok || !e.lastModified.Equal(mtime) {
		return core.Document{}, false
	}
	return e.doc, true
}

func (c *cache) Set(path string, doc core.Document, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{doc: doc, lastModified: mtime}
}

func (c *cache) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Prune removes entries whose path has the given directory prefix.
func (c *cache) Prune(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.entries {
		if len(p) > len(dir) && p[:len(dir)] == dir {
			delete(c.entries, p)
		}
	}
}

func (c *cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
