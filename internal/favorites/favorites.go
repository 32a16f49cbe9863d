package favorites

import (
	"sync"

	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Store is the persisted favorites store contract. Persistence is
// best-effort: failures are logged, never fatal, and the in-memory set stays
// the source of truth for the running session.
type Store interface {
	Load() ([]string, error)
	Save(names []string) error
}

// DefaultNames seeds the set when the store is empty or unreadable.
var DefaultNames = []string{"London", "New York", "Tokyo"}

// Set is the ordered collection of favorite location names. Uniqueness is
// case-insensitive; display casing of the first add wins. Every mutation
// persists the full list back to the store.
type Set struct {
	mu     sync.Mutex
	names  []string
	store  Store
	logger *zap.Logger
}

// NewSet loads the favorites from the store, seeding defaults when the store
// is empty or the load fails.
func NewSet(store Store, logger *zap.Logger) *Set {
	s := &Set{store: store, logger: logger}

	names, err := store.Load()
	if err != nil {
		logger.Warn("failed to load favorites, seeding defaults", zap.Error(err))
		names = nil
	}
	if len(names) == 0 {
		names = append([]string(nil), DefaultNames...)
	}
	for _, n := range names {
		s.appendLocked(n)
	}
	return s
}

// List returns a copy of the ordered favorite names.
func (s *Set) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Contains reports whether a name is a favorite (case-insensitive).
func (s *Set) Contains(name string) bool {
	key := weather.NormalizeKey(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(key) >= 0
}

// Add appends a name. Adding an already-favorited name (case-insensitive
// match) is a no-op; reports whether the name was newly added.
func (s *Set) Add(name string) bool {
	s.mu.Lock()
	added := s.appendLocked(name)
	var snapshot []string
	if added {
		snapshot = append(snapshot, s.names...)
	}
	s.mu.Unlock()

	if added {
		s.persist(snapshot)
	}
	return added
}

// Remove deletes a name (case-insensitive). Removing a non-favorite is a
// no-op. Returns the stored display name and whether anything was removed.
func (s *Set) Remove(name string) (string, bool) {
	key := weather.NormalizeKey(name)

	s.mu.Lock()
	i := s.indexLocked(key)
	if i < 0 {
		s.mu.Unlock()
		return "", false
	}
	stored := s.names[i]
	s.names = append(s.names[:i], s.names[i+1:]...)
	snapshot := append([]string(nil), s.names...)
	s.mu.Unlock()

	s.persist(snapshot)
	return stored, true
}

func (s *Set) appendLocked(name string) bool {
	key := weather.NormalizeKey(name)
	if key == "" || s.indexLocked(key) >= 0 {
		return false
	}
	s.names = append(s.names, name)
	return true
}

func (s *Set) indexLocked(key string) int {
	for i, n := range s.names {
		if weather.NormalizeKey(n) == key {
			return i
		}
	}
	return -1
}

func (s *Set) persist(names []string) {
	if err := s.store.Save(names); err != nil {
		metrics.FavoritesPersistFailuresTotal.Inc()
		s.logger.Warn("failed to persist favorites", zap.Error(err))
	}
}
