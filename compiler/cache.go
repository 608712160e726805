package compiler

import (
	"github.com/fhirschema/go-fhirschema/cache"
	"github.com/fhirschema/go-fhirschema/internal/logging"
)

// lruCache wraps the generic LRU cache for compiled schemas, keyed by
// schema name. The single-builder-per-key coordination lives in Compiler;
// this wrapper only provides bounded storage and hit/miss metrics.
type lruCache struct {
	inner *cache.Cache[string, *CompiledSchema]
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{inner: cache.New[string, *CompiledSchema](capacity)}
}

func (c *lruCache) Get(key string) (*CompiledSchema, bool) { return c.inner.Get(key) }

func (c *lruCache) Set(key string, value *CompiledSchema) {
	before := c.inner.Stats().Evicts
	c.inner.Set(key, value)
	if after := c.inner.Stats().Evicts; after > before {
		logging.Debug("compile cache evicted an entry to insert %q (total evictions=%d)", key, after)
	}
}

func (c *lruCache) Stats() cache.Stats { return c.inner.Stats() }
