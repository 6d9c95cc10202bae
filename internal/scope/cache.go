// internal/scope/cache.go
//
// Resolved-scope cache.
//
// Context
// -------
// Every feed read starts with slug → scope resolution; a popular widget
// embedded on a busy page turns that into a hot query.  The cache keeps
// resolved scopes in a sync.Map behind a singleflight barrier so a burst
// of cold hits costs one lookup.  Entries carry both a last-seen stamp
// (idle eviction, LRU pressure) and a loaded-at stamp: plan and status
// changes land out of band, so an entry older than MaxAge is treated as
// a miss and re-resolved.  Mutation paths call Invalidate instead of
// waiting out the window.
package scope

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gridfolio/gridfolio/internal/metrics"
)

// Static defaults.  Override via the Cache fields before first use.
const (
	IdleTTL       = 10 * time.Minute
	MaxAge        = 1 * time.Minute
	MaxEntries    = 1000
	EvictInterval = 1 * time.Minute
)

type entry struct {
	scope    *Scope
	lastSeen int64 // UnixNano
	loadedAt time.Time
}

// Cache lazily resolves widget slugs, stores the result, and evicts on
// idle TTL or LRU pressure.
type Cache struct {
	resolver    *Resolver
	sfg         singleflight.Group
	m           sync.Map
	evictTicker *time.Ticker
	idleTTL     time.Duration
	maxAge      time.Duration
	maxEntries  int
}

// NewCache constructs a Cache and starts the background evictor.
func NewCache(r *Resolver, idleTTL, maxAge time.Duration, maxEntries int) *Cache {
	c := &Cache{
		resolver:   r,
		idleTTL:    idleTTL,
		maxAge:     maxAge,
		maxEntries: maxEntries,
	}
	c.evictTicker = time.NewTicker(EvictInterval)
	go c.evictLoop()
	return c
}

// Get returns the Scope for a widget slug, resolving it on demand.
func (c *Cache) Get(ctx context.Context, slug string) (*Scope, error) {
	if v, ok := c.m.Load(slug); ok {
		ent := v.(*entry)
		if time.Since(ent.loadedAt) < c.maxAge {
			atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
			return ent.scope, nil
		}
		if _, ok := c.m.LoadAndDelete(slug); ok {
			metrics.CachedScopes.Dec()
		}
	}

	v, err, _ := c.sfg.Do(slug, func() (interface{}, error) {
		// Double-check after the singleflight barrier.
		if v, ok := c.m.Load(slug); ok {
			ent := v.(*entry)
			if time.Since(ent.loadedAt) < c.maxAge {
				atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
				return ent.scope, nil
			}
		}
		sc, err := c.resolver.ResolveWidgetSlug(ctx, slug)
		if err != nil {
			metrics.ScopeLoadErrorsTotal.Inc()
			return nil, err
		}
		ent := &entry{
			scope:    sc,
			lastSeen: time.Now().UnixNano(),
			loadedAt: time.Now(),
		}
		c.m.Store(slug, ent)
		metrics.ScopeLoadTotal.Inc()
		metrics.CachedScopes.Inc()
		return sc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Scope), nil
}

// Invalidate drops a slug after a mutation that changes its scope
// (setup completion, connection replacement).
func (c *Cache) Invalidate(slug string) {
	if _, ok := c.m.LoadAndDelete(slug); ok {
		metrics.CachedScopes.Dec()
	}
}
