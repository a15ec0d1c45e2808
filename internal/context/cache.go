// Package context implements the Context Governor (C4, spec §4.4): a
// per-session cache of named entries under a token budget, evicted strict
// LRU over unpinned entries. Grounded on the teacher's internal/context
// token-cost model (TokenEstimate, the 4-chars-per-token estimator) and on
// internal/search's indexed-lookup shape for retrieve(pattern). The
// teacher's own eviction policy is priority-bucket summarization, not LRU;
// this package keeps the teacher's cost model but replaces summarization
// with the strict pin/evict policy spec.md requires. Recency order is kept
// in a container/list rather than github.com/hashicorp/golang-lru (wired
// elsewhere in the pack): that library evicts by entry count once a fixed
// size is reached, but the Context Governor's eviction trigger is a token
// budget, not a count, and pinned entries must be exempt from eviction
// entirely — neither fits the library's automatic policy without fighting
// it, so the linked-list is rolled here instead.
package context

import (
	"container/list"
	"fmt"
	"iter"
	"path"
	"sync"
	"time"
)

// DefaultCapTokens is the default per-session cache cap (spec §4.4).
const DefaultCapTokens = 100_000

// Entry is a single cached item.
type Entry struct {
	Key        string
	Value      string
	Tokens     int
	Pinned     bool
	LastUsedAt time.Time
}

type node struct {
	entry Entry
}

// Cache is a per-session, token-budgeted LRU cache with pinning.
type Cache struct {
	mu         sync.Mutex
	capTokens  int
	usedTokens int
	items      map[string]*list.Element
	order      *list.List // front = most recently used
}

// NewCache returns an empty Cache capped at capTokens (DefaultCapTokens if
// capTokens <= 0).
func NewCache(capTokens int) *Cache {
	if capTokens <= 0 {
		capTokens = DefaultCapTokens
	}
	return &Cache{
		capTokens: capTokens,
		items:     make(map[string]*list.Element),
		order:     list.New(),
	}
}

// EstimateTokens approximates token cost from content length, ≈1 token per
// 4 characters (spec §4.4).
func EstimateTokens(content string) int {
	n := len(content) / 4
	if n == 0 && content != "" {
		n = 1
	}
	return n
}

// Put inserts or replaces key's value, evicting unpinned LRU entries as
// needed to make room. It fails if the new entry cannot fit even after
// evicting every unpinned entry (pinned entries already consume the cap).
func (c *Cache) Put(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens := EstimateTokens(value)
	if el, ok := c.items[key]; ok {
		c.usedTokens -= el.Value.(*node).entry.Tokens
		c.order.Remove(el)
		delete(c.items, key)
	}

	if err := c.evictToFitLocked(tokens); err != nil {
		return err
	}

	n := &node{entry: Entry{Key: key, Value: value, Tokens: tokens, LastUsedAt: time.Now()}}
	c.items[key] = c.order.PushFront(n)
	c.usedTokens += tokens
	return nil
}

// Get returns key's value and bumps its recency, or ("", false) if absent.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return "", false
	}
	n := el.Value.(*node)
	n.entry.LastUsedAt = time.Now()
	c.order.MoveToFront(el)
	return n.entry.Value, true
}

// Pin marks an existing entry immune to eviction. Pinning fails with
// ErrCapacityExceeded if the sum of all pinned entries' tokens would exceed
// the cache's cap.
func (c *Cache) Pin(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	n := el.Value.(*node)
	if n.entry.Pinned {
		return nil
	}

	pinnedTokens := n.entry.Tokens
	for e := c.order.Front(); e != nil; e = e.Next() {
		if other := e.Value.(*node); other.entry.Pinned {
			pinnedTokens += other.entry.Tokens
		}
	}
	if pinnedTokens > c.capTokens {
		return fmt.Errorf("%w: pinning %q would pin %d tokens against a %d cap", ErrCapacityExceeded, key, pinnedTokens, c.capTokens)
	}
	n.entry.Pinned = true
	return nil
}

// Unpin releases an entry back into the LRU eviction pool.
func (c *Cache) Unpin(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*node).entry.Pinned = false
	}
}

// PinManifest puts and pins a batch of key/value pairs together — the
// story "read these files first" manifest preload (spec §4.4), pinned for
// the duration of the story. It pins nothing if any entry fails to fit.
func (c *Cache) PinManifest(files map[string]string) error {
	keys := make([]string, 0, len(files))
	for key, value := range files {
		if err := c.Put(key, value); err != nil {
			return err
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		if err := c.Pin(key); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve returns a lazy sequence of entries whose key matches a glob
// pattern, in most-recently-used order.
func (c *Cache) Retrieve(pattern string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		c.mu.Lock()
		snapshot := make([]Entry, 0, c.order.Len())
		for e := c.order.Front(); e != nil; e = e.Next() {
			snapshot = append(snapshot, e.Value.(*node).entry)
		}
		c.mu.Unlock()

		for _, entry := range snapshot {
			if ok, err := path.Match(pattern, entry.Key); err != nil || !ok {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// EvictTo evicts unpinned LRU entries until usedTokens <= limit, or every
// unpinned entry has been evicted.
func (c *Cache) EvictTo(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictToLocked(limit)
}

func (c *Cache) evictToLocked(limit int) {
	for c.usedTokens > limit {
		el := c.evictionCandidateLocked()
		if el == nil {
			return
		}
		n := el.Value.(*node)
		c.usedTokens -= n.entry.Tokens
		c.order.Remove(el)
		delete(c.items, n.entry.Key)
	}
}

// evictToFitLocked evicts unpinned LRU entries until there is room for an
// additional `tokens` worth of content.
func (c *Cache) evictToFitLocked(tokens int) error {
	target := c.capTokens - tokens
	if target < 0 {
		return fmt.Errorf("%w: single entry of %d tokens exceeds cap %d", ErrCapacityExceeded, tokens, c.capTokens)
	}
	c.evictToLocked(target)
	if c.usedTokens > target {
		return fmt.Errorf("%w: cannot free enough unpinned space for %d tokens", ErrCapacityExceeded, tokens)
	}
	return nil
}

// evictionCandidateLocked returns the least-recently-used unpinned element,
// or nil if every remaining entry is pinned.
func (c *Cache) evictionCandidateLocked() *list.Element {
	for e := c.order.Back(); e != nil; e = e.Prev() {
		if !e.Value.(*node).entry.Pinned {
			return e
		}
	}
	return nil
}

// UsedTokens returns the cache's current token usage.
func (c *Cache) UsedTokens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedTokens
}
