// Package session provides the expiring in-memory session store.
package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ahrav/go-veriai/internal/ports"
)

var _ ports.SessionStore = (*MemoryStore)(nil)

// Default timings for NewMemoryStore.
const (
	DefaultIdleTTL         = 30 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// MemoryStore keeps sessions in process memory and expires them after a
// period without access. Every Get restarts the idle timer.
type MemoryStore struct {
	// mu orders refresh-on-read against Delete so a deleted session is never
	// written back.
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryStore creates a store whose entries expire after idleTTL without
// access. Expired entries are swept every cleanupInterval; a non-positive
// interval disables the background sweep and entries are only dropped when
// read after expiry.
func NewMemoryStore(idleTTL, cleanupInterval time.Duration) *MemoryStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &MemoryStore{
		cache: gocache.New(idleTTL, cleanupInterval),
		ttl:   idleTTL,
	}
}

// Get returns the session stored under id and refreshes its expiry.
func (s *MemoryStore) Get(id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	s.cache.Set(id, val, s.ttl)
	return val, true
}

// Put stores session under id, replacing any previous value.
func (s *MemoryStore) Put(id string, session any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(id, session, s.ttl)
}

// PutIfBelow stores session under id unless limit or more sessions are
// live. Expired entries that have not been swept yet are swept before they
// count against limit, firing the eviction callback for each.
func (s *MemoryStore) PutIfBelow(id string, session any, limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit > 0 && s.cache.ItemCount() >= limit {
		s.cache.DeleteExpired()
		if s.cache.ItemCount() >= limit {
			return false
		}
	}
	s.cache.Set(id, session, s.ttl)
	return true
}

// Delete removes the session and fires the eviction callback if it existed.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
}

// Len returns the number of stored sessions, including expired entries that
// have not been swept yet.
func (s *MemoryStore) Len() int { return s.cache.ItemCount() }

// OnEvict registers fn to run when a session is deleted or swept after
// expiry. Only one callback is kept; a later call replaces it. fn may run
// while Delete or PutIfBelow holds the store lock, so it may call Len but no
// other method.
func (s *MemoryStore) OnEvict(fn func(id string, session any)) {
	s.cache.OnEvicted(fn)
}

// Sweep removes expired sessions immediately, firing the eviction callback
// for each.
func (s *MemoryStore) Sweep() { s.cache.DeleteExpired() }
