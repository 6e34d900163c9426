package core

import (
	"sync"

	"github.com/Cyber-Mitch/nilshard/api"
)

// Tentative declares an optimistic state change applied atomically with
// dispatch. Apply runs inside the dispatch critical section; Undo restores
// the pre-dispatch state and must be safe to run at callback time.
type Tentative struct {
	Apply func()
	Undo  func()
}

// TentativeMutation tracks one staged state change through its two-phase
// lifecycle: applied at dispatch, then confirmed or reverted exactly once at
// callback time. A second resolution in either order fails with
// already_resolved rather than silently double-applying state.
type TentativeMutation struct {
	mu       sync.Mutex
	resolved string // "", "confirmed" or "reverted"
	undo     func()
}

// Stage applies the tentative change and returns its mutation handle. A nil
// declaration stages nothing and returns nil.
func Stage(t *Tentative) *TentativeMutation {
	if t == nil {
		return nil
	}
	if t.Apply != nil {
		t.Apply()
	}
	return &TentativeMutation{undo: t.Undo}
}

// Confirm discards the undo step, making the tentative change permanent.
func (m *TentativeMutation) Confirm() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolved != "" {
		return api.Failure{Code: api.CodeAlreadyResolved, Detail: "mutation already " + m.resolved}
	}
	m.resolved = "confirmed"
	m.undo = nil
	return nil
}

// Revert runs the undo step, restoring the pre-dispatch state.
func (m *TentativeMutation) Revert() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.resolved != "" {
		resolved := m.resolved
		m.mu.Unlock()
		return api.Failure{Code: api.CodeAlreadyResolved, Detail: "mutation already " + resolved}
	}
	m.resolved = "reverted"
	undo := m.undo
	m.undo = nil
	m.mu.Unlock()
	if undo != nil {
		undo()
	}
	return nil
}

// Resolved reports whether the mutation has been confirmed or reverted.
func (m *TentativeMutation) Resolved() bool {
	if m == nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved != ""
}
