package fs

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string `json:"path"`
	CacheSize     int    `json:"cache_size"`
	Watchers      int    `json:"watchers"`
	WriteRequests int    `json:"write_requests"`
	LastWriteSeq  int64  `json:"last_write_seq"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreState{
		Path:          s.Path,
		CacheSize:     s.cache.Len(),
		Watchers:      s.watchers,
		WriteRequests: s.writeRequests,
		LastWriteSeq:  s.lastWriteSeq,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)

func (s *Store) addWatcher(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers += delta
}
