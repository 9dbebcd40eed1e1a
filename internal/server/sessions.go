package server

import (
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/zombor/auditly/internal/workflow"
)

const defaultSessionTTL = 2 * time.Hour

// sessionStore keeps one controller per return. Entries expire after ttl
// without activity.
type sessionStore struct {
	cache *cache.Cache
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, _ interface{}) {
		slog.Info("Return session expired", "return_id", id)
	})
	return &sessionStore{cache: c}
}

func (s *sessionStore) put(id string, c *workflow.Controller) {
	s.cache.Set(id, c, cache.DefaultExpiration)
}

// get returns the controller for id and extends its lifetime
func (s *sessionStore) get(id string) (*workflow.Controller, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	c, ok := v.(*workflow.Controller)
	if !ok {
		return nil, false
	}
	s.cache.Set(id, c, cache.DefaultExpiration)
	return c, true
}

func (s *sessionStore) count() int {
	return s.cache.ItemCount()
}
