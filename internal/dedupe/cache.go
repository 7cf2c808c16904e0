// ABOUTME: Thread-safe TTL set for rejecting repeated keys
// ABOUTME: Backs client message id dedupe and in-flight scrape URL tracking

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often expired keys are swept.
const DefaultCleanupInterval = time.Minute

type entry struct {
	markedAt time.Time
	elem     *list.Element
}

// Cache is a TTL-bounded, size-limited set of keys. When full, the key marked
// longest ago is evicted first.
type Cache struct {
	mu      sync.RWMutex
	keys    map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// New creates a cache and starts its background sweeper.
func New(ttl time.Duration, maxSize int) *Cache {
	return NewWithInterval(ttl, maxSize, DefaultCleanupInterval)
}

// NewWithInterval is New with an explicit sweep interval.
func NewWithInterval(ttl time.Duration, maxSize int, interval time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		keys:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop(interval)
	return c
}

// Check reports whether key was marked within the TTL.
func (c *Cache) Check(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liveLocked(key)
}

// CheckAndMark reports whether key is already live and marks it if not.
// It returns true for a duplicate.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveLocked(key) {
		return true
	}
	c.markLocked(key)
	return false
}

// Mark records key, refreshing its timestamp if already present.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Forget removes key so it can be marked again immediately.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.keys[key]; ok {
		c.order.Remove(e.elem)
		delete(c.keys, key)
	}
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

func (c *Cache) liveLocked(key string) bool {
	e, ok := c.keys[key]
	return ok && c.now().Sub(e.markedAt) < c.ttl
}

func (c *Cache) markLocked(key string) {
	now := c.now()
	if e, ok := c.keys[key]; ok {
		e.markedAt = now
		c.order.MoveToBack(e.elem)
		return
	}

	if len(c.keys) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.order.Remove(front)
			delete(c.keys, front.Value.(string))
		}
	}

	c.keys[key] = &entry{markedAt: now, elem: c.order.PushBack(key)}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired keys. Keys are ordered by mark time, so it stops at the
// first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key := front.Value.(string)
		if now.Sub(c.keys[key].markedAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.keys, key)
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
