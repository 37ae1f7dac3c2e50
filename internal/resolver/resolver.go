// Package resolver memoizes crate version lookups and fans cache
// misses out across a bounded set of concurrent fetches.
package resolver

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the network side of version resolution.
type Fetcher interface {
	FetchVersions(ctx context.Context, name string) ([]string, error)
}

// Resolver owns the process-wide version cache. Entries never expire:
// a crate that gains a new release mid-session keeps serving the list
// fetched first. The cache is shared by every document's diagnostic
// pass, so all access goes through the lock.
type Resolver struct {
	fetcher Fetcher
	limit   int
	logger  *zap.Logger

	mu       sync.RWMutex
	cache    map[string][]string
	inflight map[string]chan struct{}
}

// New builds a resolver with the given fan-out limit.
func New(fetcher Fetcher, limit int, logger *zap.Logger) *Resolver {
	if limit <= 0 {
		limit = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher:  fetcher,
		limit:    limit,
		logger:   logger,
		cache:    make(map[string][]string),
		inflight: make(map[string]chan struct{}),
	}
}

// CachedVersions returns the cached list for a crate, if present.
func (r *Resolver) CachedVersions(name string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions, ok := r.cache[name]
	return versions, ok
}

// Resolve maps every requested crate name to its version list, fetching
// uncached names concurrently and returning only after every fetch has
// finished. Names whose fetch failed map to an empty list and stay out
// of the cache so a later pass retries them; the failure is logged, not
// returned. A name being fetched by an overlapping Resolve call is not
// fetched again; this call waits for that result instead.
func (r *Resolver) Resolve(ctx context.Context, names []string) map[string][]string {
	results := make(map[string][]string, len(names))

	// Phase 1: read-snapshot for hits. No lock is held during I/O.
	r.mu.RLock()
	var misses []string
	for _, name := range names {
		if _, seen := results[name]; seen {
			continue
		}
		if versions, ok := r.cache[name]; ok {
			results[name] = versions
		} else {
			results[name] = nil
			misses = append(misses, name)
		}
	}
	r.mu.RUnlock()

	if len(misses) == 0 {
		return results
	}

	// Phase 2: claim misses. A name already in flight elsewhere is
	// waited on rather than fetched twice.
	r.mu.Lock()
	var owned []string
	waits := make(map[string]chan struct{})
	for _, name := range misses {
		if versions, ok := r.cache[name]; ok {
			results[name] = versions
			continue
		}
		if done, ok := r.inflight[name]; ok {
			waits[name] = done
			continue
		}
		done := make(chan struct{})
		r.inflight[name] = done
		owned = append(owned, name)
	}
	r.mu.Unlock()

	// Phase 3: bounded fan-out with a join barrier.
	fetched := make(map[string][]string, len(owned))
	var fetchedMu sync.Mutex
	var group errgroup.Group
	group.SetLimit(r.limit)
	for _, name := range owned {
		name := name
		group.Go(func() error {
			versions, err := r.fetcher.FetchVersions(ctx, name)
			if err != nil {
				r.logger.Warn("failed to fetch versions",
					zap.String("crate", name),
					zap.Error(err))
				return nil
			}
			fetchedMu.Lock()
			fetched[name] = versions
			fetchedMu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	// Phase 4: merge successes, release claims. Failed names are not
	// cached.
	if len(owned) > 0 {
		r.mu.Lock()
		for _, name := range owned {
			if versions, ok := fetched[name]; ok {
				r.cache[name] = versions
				results[name] = versions
			}
			close(r.inflight[name])
			delete(r.inflight, name)
		}
		r.mu.Unlock()
	}

	for name, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			continue
		}
		if versions, ok := r.CachedVersions(name); ok {
			results[name] = versions
		}
	}

	return results
}
