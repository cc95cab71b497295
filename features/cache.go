package features

import (
	"sync"

	"imagededup/logging"
	"imagededup/normalizer"
	"imagededup/types"
)

// Cache memoizes per-image feature sets for the lifetime of the process.
// Extraction is expensive, so results are kept per image reference; a nil
// result ("image missing or unreadable") is cached too, preventing
// repeated recomputation for bad references. The cache is not persisted:
// a fresh process recomputes lazily.
type Cache struct {
	source types.ImageSource

	mu      sync.Mutex
	entries map[string]*FeatureSet
}

// NewCache creates a cache that loads image bytes through source.
func NewCache(source types.ImageSource) *Cache {
	return &Cache{
		source:  source,
		entries: make(map[string]*FeatureSet),
	}
}

// GetOrCompute returns the cached feature set for the reference,
// computing and caching it (nil included) on a miss. Concurrent misses
// for the same reference may compute twice; the overwrite stores an
// equivalent value, so no singleflight is needed for correctness.
func (c *Cache) GetOrCompute(ref string) *FeatureSet {
	if ref == "" {
		return nil
	}

	c.mu.Lock()
	if fs, ok := c.entries[ref]; ok {
		c.mu.Unlock()
		return fs
	}
	c.mu.Unlock()

	fs := c.compute(ref)

	c.mu.Lock()
	c.entries[ref] = fs
	c.mu.Unlock()
	return fs
}

// Invalidate drops the cached entry for a reference. Must be called
// whenever the stored image behind the reference is deleted or replaced,
// otherwise stale descriptors cause false or missed matches.
func (c *Cache) Invalidate(ref string) {
	if ref == "" {
		return
	}

	c.mu.Lock()
	if _, ok := c.entries[ref]; ok {
		delete(c.entries, ref)
		logging.DebugLog("invalidated cached features for %s", ref)
	}
	c.mu.Unlock()
}

// Len reports how many references are cached, nil results included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) compute(ref string) *FeatureSet {
	data := c.source.FetchImageBytes(ref)
	if len(data) == 0 {
		logging.DebugLog("no image bytes for %s", ref)
		return nil
	}

	img, err := normalizer.Normalize(data)
	if err != nil {
		logging.DebugLog("cannot normalize %s: %v", ref, err)
		return nil
	}

	return Extract(img)
}
