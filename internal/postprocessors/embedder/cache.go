package embedder

import (
	"sync"

	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// DefaultCacheSize is the default maximum number of cached embeddings.
const DefaultCacheSize = 10000

var _ driven.EmbeddingCache = (*Cache)(nil)

// Cache holds embeddings keyed by model and exact text.
// It is safe for concurrent use. When full it is cleared.
type Cache struct {
	mu      sync.RWMutex
	max     int
	entries map[string][]float32
}

// NewCache creates a cache holding at most max entries.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, entries: make(map[string][]float32)}
}

func cacheKey(model, text string) string {
	return model + "\x00" + text
}

// Get returns the cached embedding for text under model.
func (c *Cache) Get(model, text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[cacheKey(model, text)]
	return v, ok
}

// Put stores an embedding.
func (c *Cache) Put(model, text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		c.entries = make(map[string][]float32)
	}
	c.entries[cacheKey(model, text)] = append([]float32(nil), vec...)
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
