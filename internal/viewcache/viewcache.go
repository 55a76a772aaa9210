// Package viewcache implements the fetch-once-until-invalidated policy for
// the independently navigable views. Each view key holds one entry; an entry
// is fetched when first activated and again only after an invalidation.
package viewcache

import (
	"context"
	"sync"

	"nextplay/internal/models"
	"nextplay/internal/util"
)

type Key string

const (
	KeyRecommendations Key = "recommendations"
	KeyPopular         Key = "popular"
	KeyBrowse          Key = "browse"
	KeyLiked           Key = "liked"
	KeyAllRatings      Key = "allRatings"
)

// AllKeys lists every view key in display order.
func AllKeys() []Key {
	return []Key{KeyRecommendations, KeyPopular, KeyBrowse, KeyLiked, KeyAllRatings}
}

// ParseKey maps a wire name to a view key.
func ParseKey(s string) (Key, bool) {
	switch Key(s) {
	case KeyRecommendations, KeyPopular, KeyBrowse, KeyLiked, KeyAllRatings:
		return Key(s), true
	}
	return "", false
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// FetchFunc loads the record set for one view.
type FetchFunc func(ctx context.Context) ([]models.CatalogItem, error)

// Entry is a point-in-time snapshot of one view's state, safe to hand to a
// renderer. Data may be stale (last known value) while Status is loading or
// error.
type Entry struct {
	Status Status
	Data   []models.CatalogItem
	Err    error
}

type entry struct {
	status Status
	data   []models.CatalogItem
	err    error
	gen    uint64
	done   chan struct{}
}

// Cache holds the per-view entries for a single identity. The owner tag
// travels with every in-flight fetch so that a fetch issued under a previous
// identity can never land in the next identity's cache.
type Cache struct {
	mu      sync.Mutex
	owner   string
	active  Key
	entries map[Key]*entry
}

func New(owner string) *Cache {
	return &Cache{
		owner:   owner,
		entries: make(map[Key]*entry),
	}
}

// SetActive records the view the person is currently looking at. The active
// view keeps its stale data through an invalidation so the screen never
// flashes to empty mid-session.
func (c *Cache) SetActive(k Key) {
	c.mu.Lock()
	c.active = k
	c.mu.Unlock()
}

// Activate fetches the view's data unless it is already loaded or loading.
// A successful fetch transitions the entry to ready; a failed one to error,
// keeping whatever data was last shown. Completions are applied only when
// the entry's generation and the cache's owner still match the values
// captured at launch; anything superseded is discarded.
func (c *Cache) Activate(ctx context.Context, k Key, f FetchFunc) {
	c.mu.Lock()
	e := c.ensure(k)
	if e.status == StatusReady || e.status == StatusLoading {
		c.mu.Unlock()
		return
	}
	e.status = StatusLoading
	e.done = make(chan struct{})
	gen, owner, done := e.gen, c.owner, e.done
	c.mu.Unlock()

	go func() {
		data, err := f(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		defer close(done)

		if c.owner != owner || e.gen != gen {
			util.LogInfo("Discarding superseded fetch for view %s", k)
			return
		}
		if err != nil {
			e.status = StatusError
			e.err = err
			e.done = nil
			util.LogWarn("View %s fetch failed: %v", k, err)
			return
		}
		e.status = StatusReady
		e.data = data
		e.err = nil
		e.done = nil
	}()
}

// Invalidate marks the view stale so its next activation performs a real
// fetch. Cached data is dropped eagerly unless the view is the active one.
// An in-flight fetch started before the invalidation is left running but
// its result will not be applied.
func (c *Cache) Invalidate(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return
	}
	e.gen++
	e.status = StatusIdle
	e.err = nil
	e.done = nil
	if c.active != k {
		e.data = nil
	}
}

// Get returns the current entry for rendering. Pure read.
func (c *Cache) Get(k Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return Entry{Status: StatusIdle}
	}
	return Entry{Status: e.status, Data: e.data, Err: e.err}
}

// Wait blocks until the entry for k leaves the loading state or ctx ends.
// It returns the entry as of that moment.
func (c *Cache) Wait(ctx context.Context, k Key) Entry {
	for {
		c.mu.Lock()
		e := c.ensure(k)
		status, done := e.status, e.done
		c.mu.Unlock()

		if status != StatusLoading || done == nil {
			return c.Get(k)
		}
		select {
		case <-ctx.Done():
			return c.Get(k)
		case <-done:
		}
	}
}

// Reset discards every entry and retags the cache with a new owner. Fetches
// still in flight were tagged with the previous owner and will be discarded
// on completion.
func (c *Cache) Reset(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.owner = owner
	c.active = ""
	c.entries = make(map[Key]*entry)
}

// Owner returns the identity the cache is currently scoped to.
func (c *Cache) Owner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

func (c *Cache) ensure(k Key) *entry {
	e, ok := c.entries[k]
	if !ok {
		e = &entry{status: StatusIdle}
		c.entries[k] = e
	}
	return e
}
