package cart

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultIdleTTL = 30 * time.Minute
	loadTimeout    = 5 * time.Second
)

// Registry hands out one Store per session. Stores are rehydrated from their
// repository on first use and dropped after IdleTTL without a Get; the
// repository stays the source of truth, so an evicted session simply
// reloads on its next request.
type Registry struct {
	mu        sync.Mutex
	stores    map[string]*entry
	newRepo   func(session string) Repository
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time

	loads singleflight.Group
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

// NewRegistry builds a registry; idleTTL <= 0 uses DefaultIdleTTL.
func NewRegistry(newRepo func(session string) Repository, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		stores:  map[string]*entry{},
		newRepo: newRepo,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Get returns the session's store. The repository load runs outside the
// registry lock, and concurrent first requests for a session share it.
func (r *Registry) Get(ctx context.Context, session string) (*Store, error) {
	if s, ok := r.lookup(session); ok {
		return s, nil
	}
	v, err, _ := r.loads.Do(session, func() (any, error) {
		if s, ok := r.lookup(session); ok {
			return s, nil
		}
		// shared by every waiter, so not bound to the first caller's ctx
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		s, err := Open(ctx, r.newRepo(session))
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		now := r.now()
		r.stores[session] = &entry{store: s, lastSeen: now}
		r.sweepLocked(now)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *Registry) lookup(session string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.stores[session]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(e.lastSeen) > r.idleTTL {
		delete(r.stores, session)
		return nil, false
	}
	e.lastSeen = now
	return e.store, true
}

// sweepLocked drops idle sessions, at most once per idleTTL/4.
func (r *Registry) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.idleTTL/4 {
		return
	}
	r.lastSweep = now
	for k, e := range r.stores {
		if now.Sub(e.lastSeen) > r.idleTTL {
			delete(r.stores, k)
		}
	}
}
