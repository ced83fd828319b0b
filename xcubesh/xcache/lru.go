// Package xcache provides caching layers that wrap a cube store's
// key/value capability. The core store performs no caching of its own;
// each cache here implements the same xcubesh.KeyValueStore interface,
// so wrapping is invisible to callers.
package xcache

import (
	"container/list"
	"context"

	"github.com/dcs4cop/xcube-sh/xcubesh"
)

type cacheRequest struct {
	key   string
	value chan cachedChunk
}

type cachedChunk struct {
	bytes []byte
	ok    bool
}

type cacheInsert struct {
	key   string
	bytes []byte
}

// LRUCache wraps a KeyValueStore with an in-memory, byte-size-bounded
// LRU cache of chunk bytes. Cache state is owned by a single goroutine
// and mutated only through channels, so any number of callers may Get
// concurrently.
type LRUCache struct {
	inner    xcubesh.KeyValueStore
	maxBytes int
	lookups  chan cacheRequest
	inserts  chan cacheInsert
}

// NewLRUCache wraps inner with a cache bounded to maxBytes of chunk
// data and starts its bookkeeping goroutine.
func NewLRUCache(inner xcubesh.KeyValueStore, maxBytes int) *LRUCache {
	c := &LRUCache{
		inner:    inner,
		maxBytes: maxBytes,
		lookups:  make(chan cacheRequest, 8),
		inserts:  make(chan cacheInsert, 8),
	}
	go c.run()
	return c
}

type lruEntry struct {
	key   string
	bytes []byte
}

func (c *LRUCache) run() {
	entries := make(map[string]*list.Element)
	evictList := list.New()
	totalSize := 0

	insert := func(ins cacheInsert) {
		if _, ok := entries[ins.key]; ok {
			return
		}
		el := evictList.PushFront(&lruEntry{key: ins.key, bytes: ins.bytes})
		entries[ins.key] = el
		totalSize += len(ins.bytes)
		for totalSize > c.maxBytes && evictList.Len() > 1 {
			last := evictList.Back()
			evictList.Remove(last)
			entry := last.Value.(*lruEntry)
			delete(entries, entry.key)
			totalSize -= len(entry.bytes)
		}
	}

	for {
		// apply queued inserts before serving the next lookup, so a
		// chunk fetched by one caller is visible to the next
		select {
		case ins := <-c.inserts:
			insert(ins)
			continue
		default:
		}

		select {
		case req := <-c.lookups:
			if el, ok := entries[req.key]; ok {
				evictList.MoveToFront(el)
				req.value <- cachedChunk{bytes: el.Value.(*lruEntry).bytes, ok: true}
			} else {
				req.value <- cachedChunk{}
			}
		case ins := <-c.inserts:
			insert(ins)
		}
	}
}

// ListKeys delegates to the wrapped store.
func (c *LRUCache) ListKeys() []string { return c.inner.ListKeys() }

// Contains delegates to the wrapped store.
func (c *LRUCache) Contains(key string) bool { return c.inner.Contains(key) }

// Get returns cached bytes when present, otherwise fetches through the
// wrapped store and caches the result.
func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, error) {
	value := make(chan cachedChunk, 1)
	c.lookups <- cacheRequest{key: key, value: value}
	if cached := <-value; cached.ok {
		return cached.bytes, nil
	}

	bytes, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.inserts <- cacheInsert{key: key, bytes: bytes}
	return bytes, nil
}

var _ xcubesh.KeyValueStore = (*LRUCache)(nil)
