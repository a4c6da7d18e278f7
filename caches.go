package uia

import (
	"errors"
	"sync"
)

var errNotFound = errors.New("cache entry not found")

func isNotFound(err error) bool { return errors.Is(err, errNotFound) }

// cache is a concurrent map that remembers both successful results
// and errors. Once a key has an entry, later Set calls for it are
// ignored, so that all readers observe the first computed result.
type cache[K comparable, V any] struct {
	m sync.Map
}

type cacheEntry[V any] struct {
	val V
	err error
}

// Get returns the cached value or error for k. If k has no entry,
// Get returns an error matching errNotFound.
func (c *cache[K, V]) Get(k K) (V, error) {
	ent, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	e := ent.(*cacheEntry[V])
	return e.val, e.err
}

// Set records val for k, unless k already has an entry.
func (c *cache[K, V]) Set(k K, val V) {
	c.m.LoadOrStore(k, &cacheEntry[V]{val: val})
}

// SetErr records err for k, unless k already has an entry.
func (c *cache[K, V]) SetErr(k K, err error) {
	c.m.LoadOrStore(k, &cacheEntry[V]{err: err})
}
