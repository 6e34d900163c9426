// Package deploy implements the sharded clone deployment mechanism: a
// registry pinning one factory/template pair per shard and a deployer that
// computes clone bytecode and drives deployments through the async dispatcher.
package deploy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Cyber-Mitch/nilshard/api"
)

// Entry records the factory/template pair registered for a shard. Entries are
// immutable once registered.
type Entry struct {
	Shard    api.ShardID
	Template api.Address
	Factory  api.Address
}

// Registry enforces the one-factory-per-shard policy. The delegation stub in
// clone bytecode cannot execute across shards, so a factory, its template,
// and every clone it produces must share a shard; a single entry per shard
// keeps two factories from racing incompatible clone families onto one.
type Registry struct {
	mu      sync.Mutex
	entries map[api.ShardID]Entry
}

// NewRegistry returns an empty clone registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[api.ShardID]Entry)}
}

// Register records the factory/template pair for a shard. A second
// registration for the same shard fails with shard_already_registered and
// leaves the original entry unchanged.
func (r *Registry) Register(e Entry) error {
	if strings.TrimSpace(string(e.Template)) == "" {
		return api.Failure{Code: api.CodeInvalidTarget, Detail: "template address required"}
	}
	if strings.TrimSpace(string(e.Factory)) == "" {
		return api.Failure{Code: api.CodeInvalidTarget, Detail: "factory address required"}
	}
	if _, err := e.Template.Bytes(); err != nil {
		return api.Failure{Code: api.CodeInvalidTarget, Detail: err.Error()}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[e.Shard]; ok {
		return api.Failure{
			Code:   api.CodeShardAlreadyRegistered,
			Detail: fmt.Sprintf("shard %d already registered with factory %s", e.Shard, existing.Factory),
		}
	}
	r.entries[e.Shard] = e
	return nil
}

// Lookup returns the entry registered for shard, if any.
func (r *Registry) Lookup(shard api.ShardID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[shard]
	return e, ok
}

// Entries returns all registered entries ordered by shard id.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shard < out[j].Shard })
	return out
}
