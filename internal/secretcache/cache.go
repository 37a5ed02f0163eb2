package secretcache

import (
	"container/list"
	"sync"
	"time"

	apierrors "github.com/systmms/apivault/internal/errors"
)

const (
	// DefaultMaxSize is the capacity used when WithMaxSize is not given
	DefaultMaxSize = 1000
	// DefaultTTL is the default time-to-live of an entry (30 minutes)
	DefaultTTL = 30 * time.Minute
)

// EvictionReason says why an entry left the cache without an explicit Delete
type EvictionReason string

const (
	EvictedCapacity EvictionReason = "capacity"
	EvictedExpired  EvictionReason = "expired"
)

// Entry is a snapshot of a cached item
type Entry[V any] struct {
	Key       string
	Value     V
	ExpiresAt time.Time
}

type item[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a size-bounded LRU cache with a TTL per entry
type Cache[V any] struct {
	mu         sync.Mutex
	ll         *list.List // front is most recently used
	items      map[string]*list.Element
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	onEvict    func(key string, reason EvictionReason)
}

type options struct {
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	onEvict    func(key string, reason EvictionReason)
}

// Option configures a Cache
type Option func(*options)

// WithMaxSize sets the maximum number of entries
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithDefaultTTL sets the TTL applied by Set when no override is passed.
// Non-positive values keep DefaultTTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithEvictionHook registers fn to be called, under the cache lock, whenever
// an entry is dropped because of capacity or expiry. fn must not call back
// into the cache.
func WithEvictionHook(fn func(key string, reason EvictionReason)) Option {
	return func(o *options) {
		o.onEvict = fn
	}
}

// New creates a cache. A non-positive max size is rejected with an error
// wrapping errors.ErrInvalidArgument.
func New[V any](opts ...Option) (*Cache[V], error) {
	o := &options{
		maxSize:    DefaultMaxSize,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxSize <= 0 {
		return nil, apierrors.InvalidArgument("cache size must be positive number, got %d", o.maxSize)
	}

	return &Cache[V]{
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		maxSize:    o.maxSize,
		defaultTTL: o.defaultTTL,
		now:        o.now,
		onEvict:    o.onEvict,
	}, nil
}

// Has reports whether key is present and unexpired. It does not touch recency.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.expired(el) {
		c.removeElement(el, EvictedExpired)
		return false
	}
	return true
}

// Set inserts or replaces key. The optional ttl overrides the default TTL
// when it is positive. Both value and expiry are refreshed on replace.
func (c *Cache[V]) Set(key string, value V, ttl ...time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}
	expiresAt := c.now().Add(d)

	if el, ok := c.items[key]; ok {
		it := el.Value.(*item[V])
		it.value = value
		it.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.maxSize {
		c.purgeExpired()
	}
	for c.ll.Len() >= c.maxSize {
		c.removeElement(c.ll.Back(), EvictedCapacity)
	}

	c.items[key] = c.ll.PushFront(&item[V]{key: key, value: value, expiresAt: expiresAt})
}

// Get returns the value for key and marks it most recently used.
// Missing and expired keys return the zero value and false.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(el) {
		c.removeElement(el, EvictedExpired)
		return zero, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*item[V]).value, true
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Resize changes the capacity, evicting least recently used entries when
// shrinking. A non-positive size returns an error and leaves the cache as is.
func (c *Cache[V]) Resize(maxSize int) error {
	if maxSize <= 0 {
		return apierrors.InvalidArgument("cache size must be positive number, got %d", maxSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxSize = maxSize
	if c.ll.Len() > maxSize {
		c.purgeExpired()
	}
	for c.ll.Len() > maxSize {
		c.removeElement(c.ll.Back(), EvictedCapacity)
	}
	return nil
}

// MaxSize returns the current capacity
func (c *Cache[V]) MaxSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSize
}

// SetDefaultTTL replaces the default TTL used by later Set calls without an
// override. Entries already stored keep their expiry. Non-positive amounts
// and unknown units are ignored.
func (c *Cache[V]) SetDefaultTTL(amount float64, unit Unit) {
	d := ToDuration(amount, unit)
	if d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultTTL = d
}

// DefaultTTL returns the TTL applied when Set gets no override
func (c *Cache[V]) DefaultTTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultTTL
}

// Clear removes all entries
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of unexpired entries
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	now := c.now()
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if now.Before(el.Value.(*item[V]).expiresAt) {
			n++
		}
	}
	return n
}

// Keys returns unexpired keys from least to most recently used
func (c *Cache[V]) Keys() []string {
	entries := c.EntriesAscending()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Values returns unexpired values from least to most recently used
func (c *Cache[V]) Values() []V {
	entries := c.EntriesAscending()
	values := make([]V, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values
}

// EntriesAscending returns unexpired entries from least to most recently used
func (c *Cache[V]) EntriesAscending() []Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]Entry[V], 0, c.ll.Len())
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		it := el.Value.(*item[V])
		if now.Before(it.expiresAt) {
			out = append(out, Entry[V]{Key: it.key, Value: it.value, ExpiresAt: it.expiresAt})
		}
	}
	return out
}

// EntriesDescending returns unexpired entries from most to least recently used
func (c *Cache[V]) EntriesDescending() []Entry[V] {
	asc := c.EntriesAscending()
	for i, j := 0, len(asc)-1; i < j; i, j = i+1, j-1 {
		asc[i], asc[j] = asc[j], asc[i]
	}
	return asc
}

func (c *Cache[V]) expired(el *list.Element) bool {
	return !c.now().Before(el.Value.(*item[V]).expiresAt)
}

// purgeExpired drops every expired entry. Caller holds c.mu.
func (c *Cache[V]) purgeExpired() {
	now := c.now()
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*item[V]).expiresAt) {
			c.removeElement(el, EvictedExpired)
		}
		el = prev
	}
}

func (c *Cache[V]) removeElement(el *list.Element, reason EvictionReason) {
	it := el.Value.(*item[V])
	c.ll.Remove(el)
	delete(c.items, it.key)
	if c.onEvict != nil {
		c.onEvict(it.key, reason)
	}
}
