// Package cached memoizes resolved logo URLs so a bulk send does not presign
// the same object once per recipient.
package cached

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbaliyan/notify/logo"
)

// Resolver wraps a logo.URLResolver with an in-memory TTL cache.
// The TTL must be shorter than the validity of the URLs the backend issues.
type Resolver struct {
	backend    logo.URLResolver
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	url     string
	expires time.Time
}

var _ logo.URLResolver = (*Resolver)(nil)

// New creates a caching resolver around backend.
func New(backend logo.URLResolver, opts ...Option) *Resolver {
	o := &options{
		ttl:        time.Hour,
		maxEntries: 1024,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Resolver{
		backend:    backend,
		ttl:        o.ttl,
		maxEntries: o.maxEntries,
		now:        time.Now,
		logger:     o.logger,
		entries:    make(map[string]entry),
	}
}

// ResolveURL returns the cached URL for ref, resolving it on a miss.
// Errors are not cached.
func (r *Resolver) ResolveURL(ctx context.Context, ref string) (string, error) {
	now := r.now()

	r.mu.Lock()
	e, ok := r.entries[ref]
	r.mu.Unlock()
	if ok && now.Before(e.expires) {
		r.logger.Debug("logo cache hit", "ref", ref)
		return e.url, nil
	}

	u, err := r.backend.ResolveURL(ctx, ref)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.maxEntries {
		r.evictLocked(now)
	}
	r.entries[ref] = entry{url: u, expires: now.Add(r.ttl)}
	return u, nil
}

// Len returns the number of cached entries, expired ones included.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops every cached entry.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.entries = make(map[string]entry)
	r.mu.Unlock()
}

// evictLocked drops expired entries, then the oldest ones until there is room.
func (r *Resolver) evictLocked(now time.Time) {
	for k, e := range r.entries {
		if !now.Before(e.expires) {
			delete(r.entries, k)
		}
	}
	for len(r.entries) >= r.maxEntries {
		var (
			oldest string
			at     time.Time
			found  bool
		)
		for k, e := range r.entries {
			if !found || e.expires.Before(at) {
				oldest, at, found = k, e.expires, true
			}
		}
		delete(r.entries, oldest)
	}
}
