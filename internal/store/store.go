package store

import (
	"sync"

	"github.com/stratus-io/stratus/internal/ir"
)

// Store tracks one ResourceState per plan resource. It is the only shared
// mutable state during a run: the reconciler and rollback controller go
// through Get/Put/All, never at the states directly. Reads hand out clones,
// so a caller can only change tracked state by writing it back.
type Store struct {
	mu     sync.Mutex
	order  []string
	states map[string]*ir.ResourceState
}

// New seeds a store from a plan, one Pending state per resource in
// authoring order.
func New(p *ir.Plan) *Store {
	s := &Store{
		order:  make([]string, 0, len(p.Resources)),
		states: make(map[string]*ir.ResourceState, len(p.Resources)),
	}
	for _, res := range p.Resources {
		s.order = append(s.order, res.Name)
		s.states[res.Name] = &ir.ResourceState{
			Name:         res.Name,
			Kind:         res.Kind,
			Status:       ir.StatusPending,
			Dependencies: append([]string(nil), res.DependsOn...),
		}
	}
	return s
}

// Get returns a clone of the tracked state for name.
func (s *Store) Get(name string) (*ir.ResourceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Put overwrites the tracked state for name.
func (s *Store) Put(name string, st *ir.ResourceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.states[name]; !known {
		s.order = append(s.order, name)
	}
	s.states[name] = st.Clone()
}

// All returns clones of every tracked state in plan order.
func (s *Store) All() []*ir.ResourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ir.ResourceState, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.states[name].Clone())
	}
	return out
}

// ResolvedID returns the provider identifier for name if its state is
// Created. The reconciler uses this as the lookup behind ref(...)
// substitution, which is what makes dependency completion a precondition
// for starting a dependent.
func (s *Store) ResolvedID(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	if !ok || st.Status != ir.StatusCreated || st.ID == "" {
		return "", false
	}
	return st.ID, true
}
