// Package buffercache is the Buffer Cache: an LRU of parsed trees keyed by
// buffer id, bounded by both a max-entry count and a per-entry TTL
// (whichever bound is hit first evicts), adapted from the teacher's
// internal/semantic/lru_cache.go. Unlike the teacher's cache, entries hold
// native tree-sitter trees that must be explicitly closed on eviction.
package buffercache

import (
	"container/list"
	"sync"
	"time"

	"github.com/standardbeagle/goanalyzer/internal/parsegw"
)

// Entry is one cached parse result plus the buffer version it was produced
// from, per spec.md §3's buffer lifecycle (tree reused while version
// unchanged). Get and Put hand back an Entry with an outstanding reference
// already acquired on the caller's behalf; the caller must call Release
// when it's done reading Result.Tree.
type Entry struct {
	BufferID    string
	Version     int
	ContentHash uint64
	Result      *parsegw.ParseResult
	insertedAt  time.Time

	refMu   sync.Mutex
	refs    int
	evicted bool
}

// Acquire adds a reference to the entry. Get and Put call this on the
// caller's behalf; call it again only when handing the same *Entry to
// another goroutine that will Release it independently.
func (e *Entry) Acquire() {
	e.refMu.Lock()
	e.refs++
	e.refMu.Unlock()
}

// Release drops a reference acquired via Get, Put, or Acquire. Once the
// entry has been evicted from the cache and its last reference is released,
// its tree is closed.
func (e *Entry) Release() {
	e.refMu.Lock()
	e.refs--
	shouldClose := e.evicted && e.refs <= 0
	e.refMu.Unlock()
	if shouldClose {
		e.closeTree()
	}
}

// markEvicted flags the entry as no longer reachable through the cache and
// closes its tree immediately if nothing still holds a reference to it.
func (e *Entry) markEvicted() {
	e.refMu.Lock()
	e.evicted = true
	shouldClose := e.refs <= 0
	e.refMu.Unlock()
	if shouldClose {
		e.closeTree()
	}
}

func (e *Entry) closeTree() {
	if e.Result != nil && e.Result.Tree != nil {
		e.Result.Tree.Close()
	}
}

type cacheItem struct {
	key   string
	entry *Entry
}

// Cache is a thread-safe LRU+TTL cache of parsed trees. Replacing or
// evicting an entry never closes its tree out from under a reader: eviction
// only flags the entry, and the tree is closed once the last outstanding
// Release drops its reference count to zero. Callers that read
// Entry.Result.Tree MUST pair every Get/Put with a Release.
type Cache struct {
	maxEntries int
	ttl        time.Duration

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
}

func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 20
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the cached entry for bufferID if present and not expired,
// moving it to the front of the LRU order and acquiring a reference on the
// caller's behalf. A TTL-expired entry is evicted and reported as a miss.
// The caller must call Release on the returned entry when done with it.
func (c *Cache) Get(bufferID string) (*Entry, bool) {
	c.mu.Lock()
	el, ok := c.items[bufferID]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	item := el.Value.(*cacheItem)
	if c.ttl > 0 && time.Since(item.entry.insertedAt) > c.ttl {
		c.removeElement(el)
		c.mu.Unlock()
		return nil, false
	}
	c.order.MoveToFront(el)
	entry := item.entry
	c.mu.Unlock()

	entry.Acquire()
	return entry, true
}

// Put inserts or replaces the cached entry for bufferID and acquires a
// reference on the caller's behalf, mirroring Get — the caller must Release
// it when done. Replacing an existing entry marks its old tree evicted
// rather than closing it outright: a reader still walking it via an earlier
// Get keeps it alive until that reader's Release.
func (c *Cache) Put(bufferID string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.insertedAt = time.Now()
	entry.Acquire()

	if el, ok := c.items[bufferID]; ok {
		old := el.Value.(*cacheItem).entry
		el.Value.(*cacheItem).entry = entry
		c.order.MoveToFront(el)
		old.markEvicted()
		return
	}

	el := c.order.PushFront(&cacheItem{key: bufferID, entry: entry})
	c.items[bufferID] = el

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Evict removes bufferID from the cache, marking its tree for closure once
// the last reader releases it. Used when a buffer closes or an fsnotify
// event invalidates it out of band.
func (c *Cache) Evict(bufferID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[bufferID]; ok {
		c.removeElement(el)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	item := el.Value.(*cacheItem)
	item.entry.markEvicted()
	c.order.Remove(el)
	delete(c.items, item.key)
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear evicts everything; each tree is closed at once if unreferenced,
// otherwise when its last reader calls Release. Used on shutdown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		c.removeElement(el)
		el = next
	}
}
