package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"k8s.io/utils/clock"

	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

// Sessions keeps one Hub per browser session. Hubs not touched for the TTL
// are evicted and closed, which dismisses their open dialogs.
type Sessions struct {
	hubs  *cache.Cache
	clock clock.WithDelayedExecution
}

// NewSessions creates a session registry. A nil clock uses the real clock.
func NewSessions(ttl time.Duration, clk clock.WithDelayedExecution) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, v interface{}) {
		if hub, ok := v.(*Hub); ok {
			log.Debugf("[notify] session %s evicted", id)
			hub.Close()
		}
	})
	return &Sessions{hubs: c, clock: clk}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Get returns the session's hub and refreshes its expiry.
func (s *Sessions) Get(id string) (*Hub, bool) {
	v, ok := s.hubs.Get(id)
	if !ok {
		return nil, false
	}
	hub := v.(*Hub)
	s.hubs.SetDefault(id, hub)
	return hub, true
}

// Acquire returns the session's hub, creating it on first use.
func (s *Sessions) Acquire(id string) *Hub {
	for {
		if hub, ok := s.Get(id); ok {
			return hub
		}
		hub := NewHub(id, s.clock)
		if err := s.hubs.Add(id, hub, cache.DefaultExpiration); err == nil {
			log.Debugf("[notify] session %s started", id)
			return hub
		}
	}
}

// Touch refreshes a session's expiry; it reports whether the session exists.
func (s *Sessions) Touch(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// End closes and forgets a session.
func (s *Sessions) End(id string) {
	s.hubs.Delete(id)
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.hubs.ItemCount()
}

// Prune evicts expired sessions now instead of waiting for the janitor.
func (s *Sessions) Prune() {
	s.hubs.DeleteExpired()
}

// Shutdown closes every session.
func (s *Sessions) Shutdown() {
	for id := range s.hubs.Items() {
		s.hubs.Delete(id)
	}
}
