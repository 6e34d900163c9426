// Package core implements the asynchronous request/callback coordination
// protocol: the request ledger tracking outstanding cross-shard calls, the
// dispatcher that records context and sends requests, the executor that runs
// registered callbacks exactly once, and the two-phase tentative mutation
// guard callbacks use to confirm or revert optimistic state changes.
package core

import (
	"context"
	"time"

	"github.com/Cyber-Mitch/nilshard/api"
)

// CallbackFunc is invoked exactly once when the remote outcome of a dispatched
// request is known. Callbacks receive the context captured at dispatch time
// and decide reconciliation themselves: on a failed result they must revert
// the tentative mutation, on success confirm it.
type CallbackFunc func(ctx context.Context, cb *CallbackContext, res api.Result) error

// CallbackContext carries the data a callback needs to finish work. It is
// owned exclusively by its AsyncRequest and never shared between requests.
type CallbackContext struct {
	// RequestID identifies the owning request.
	RequestID string
	// Data is caller-supplied closure data, stored verbatim at dispatch time.
	Data any
	// Mutation is the tentative state change staged before dispatch, nil when
	// the dispatch declared none.
	Mutation *TentativeMutation
}

// AsyncRequest records one outstanding cross-shard call in the ledger.
type AsyncRequest struct {
	ID            string
	Originator    api.Address
	Target        api.Target
	Payload       []byte
	Callback      CallbackFunc
	Context       *CallbackContext
	CorrelationID string
	DispatchedAt  time.Time
}

// Transport is the narrow seam to the surrounding ledger platform. The
// platform owes exactly one Completion per accepted message, delivered later
// through the Executor; there is no ordering guarantee between completions of
// different requests.
type Transport interface {
	SendAsyncRequest(ctx context.Context, msg api.AsyncMessage) error
	AsyncDeploy(ctx context.Context, dep api.DeployMessage) error
}

// TargetResolver validates that a target resolves to a reachable shard and
// address. Implementations only consult local state; reachability of the
// remote outcome is never knowable before the callback.
type TargetResolver interface {
	ResolveTarget(target api.Target) error
}

// TargetResolverFunc adapts a function to the TargetResolver interface.
type TargetResolverFunc func(target api.Target) error

// ResolveTarget implements TargetResolver.
func (f TargetResolverFunc) ResolveTarget(target api.Target) error {
	return f(target)
}
