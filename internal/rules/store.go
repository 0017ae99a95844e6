// Package rules holds the live condition-rule values of one page and the
// predicate that gates step execution and view-object enablement.
package rules

import (
	"sync"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
)

// Store maps condId to its live value for one (project, form) pair.
type Store struct {
	mu     sync.RWMutex
	values map[int]int
}

// NewStore creates an empty store and seeds the default value of every
// declared rule, so each declared condId has exactly one live entry.
func NewStore(defs []metadata.RuleDef) *Store {
	s := &Store{values: make(map[int]int, len(defs))}
	for _, d := range defs {
		s.values[d.CondID] = d.Default
	}
	return s
}

// Set records the live value of a condition rule.
func (s *Store) Set(condID, value int) {
	s.mu.Lock()
	s.values[condID] = value
	s.mu.Unlock()
}

// Value returns the live value of a rule and whether it exists.
func (s *Store) Value(condID int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[condID]
	return v, ok
}

// Satisfied reports whether every predicate pair matches a live value.
// An empty predicate list always passes. A referenced rule with no live
// value fails closed.
func (s *Store) Satisfied(conds []metadata.CondRef) bool {
	if len(conds) == 0 {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range conds {
		v, ok := s.values[c.CondID]
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}

// Snapshot copies the current rule values, for debug events and inspection.
func (s *Store) Snapshot() map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]int, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
