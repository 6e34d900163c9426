package core

import (
	"sync"
	"time"

	"github.com/Cyber-Mitch/nilshard/api"
)

// Ledger tracks outstanding async requests so completions can locate their
// callback context. Entries are created at dispatch and removed exactly once
// when the callback fires; Take removes atomically to enforce exactly-once
// completion.
type Ledger struct {
	mu      sync.Mutex
	pending map[string]*AsyncRequest
}

// NewLedger returns an empty request ledger.
func NewLedger() *Ledger {
	return &Ledger{pending: make(map[string]*AsyncRequest)}
}

// Track registers a dispatched request. It fails with duplicate_request when
// an entry with the same id is already pending.
func (l *Ledger) Track(req *AsyncRequest) error {
	if req == nil || req.ID == "" {
		return api.Failure{Code: api.CodeDuplicateRequest, Detail: "request id required"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.pending[req.ID]; exists {
		return api.Failure{Code: api.CodeDuplicateRequest, Detail: "request id already pending: " + req.ID}
	}
	l.pending[req.ID] = req
	return nil
}

// Take removes and returns the pending request for id. The second caller for
// the same id observes !ok, which is how the executor enforces exactly-once,
// non-reentrant callback invocation.
func (l *Ledger) Take(id string) (*AsyncRequest, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req, ok := l.pending[id]
	if ok {
		delete(l.pending, id)
	}
	return req, ok
}

// Remove drops a pending entry without returning it. Used by the dispatcher
// to unwind a request whose transport submission failed.
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	delete(l.pending, id)
	l.mu.Unlock()
}

// Len reports the number of outstanding requests.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Pending reports whether id has an outstanding entry.
func (l *Ledger) Pending(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.pending[id]
	return ok
}

// ExpiredIDs returns the ids of requests dispatched at or before cutoff.
// Entries are not removed; the expiry sweeper routes each id through the
// normal completion path, so a platform completion racing the sweep still
// resolves exactly once.
func (l *Ledger) ExpiredIDs(cutoff time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var expired []string
	for id, req := range l.pending {
		if !req.DispatchedAt.After(cutoff) {
			expired = append(expired, id)
		}
	}
	return expired
}
