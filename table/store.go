package table

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Store is the committed view of all pipeline output tables. Stages build
// tables off to the side and commit them as a batch, so readers only ever
// see fully built relations and a failed stage leaves the previous commit
// in place.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

// Commit swaps the given tables into the store as one batch.
func (s *Store) Commit(tables map[string]*Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range tables {
		s.tables[name] = t
	}
}

// Get returns the committed table with the given name.
func (s *Store) Get(name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, errors.Errorf("table %q does not exist", name)
	}
	return t, nil
}

// Names returns the sorted names of all committed tables.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
