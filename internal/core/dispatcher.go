package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/Cyber-Mitch/nilshard/api"
	"github.com/Cyber-Mitch/nilshard/internal/clock"
	"github.com/Cyber-Mitch/nilshard/internal/correlation"
	"github.com/Cyber-Mitch/nilshard/internal/loggingutil"
	"github.com/Cyber-Mitch/nilshard/internal/requestid"
)

// DispatcherConfig wires a Dispatcher to its ledger and platform transport.
type DispatcherConfig struct {
	Ledger    *Ledger
	Transport Transport
	Resolver  TargetResolver
	Logger    pslog.Logger
	Clock     clock.Clock
}

// Dispatcher issues outbound cross-shard calls. It applies the caller's
// tentative mutation and records the ledger entry in one critical section, so
// no interleaving dispatch can observe a mutation without a matching request
// or the other way around.
type Dispatcher struct {
	ledger    *Ledger
	transport Transport
	resolver  TargetResolver
	logger    pslog.Logger
	clock     clock.Clock
	metrics   *coreMetrics

	mu sync.Mutex
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("core: ledger required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("core: transport required")
	}
	logger := loggingutil.EnsureLogger(cfg.Logger)
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Dispatcher{
		ledger:    cfg.Ledger,
		transport: cfg.Transport,
		resolver:  cfg.Resolver,
		logger:    logger,
		clock:     clk,
		metrics:   newCoreMetrics(logger),
	}, nil
}

// DispatchRequest describes one outbound cross-shard call.
type DispatchRequest struct {
	// Originator is the dispatching account.
	Originator api.Address
	// Target is the callee shard/address pair; it must resolve locally.
	Target api.Target
	// Payload is the opaque call payload, sent verbatim.
	Payload []byte
	// Callback runs exactly once when the remote outcome is known.
	Callback CallbackFunc
	// Data is opaque closure data stored verbatim on the callback context.
	Data any
	// Guard holds precondition checks provable from local state. A guard
	// failure aborts the dispatch before any tentative mutation is applied.
	// Checks whose truth depends on the remote outcome belong in the
	// callback; no local check can observe a future asynchronous result.
	Guard func() error
	// Tentative declares the optimistic state change applied with dispatch,
	// nil when the call mutates nothing up front.
	Tentative *Tentative
}

// Dispatch validates, stages, records, and sends one async call, returning
// the new request id immediately without blocking on the remote outcome. On
// any failure the local transaction unwinds atomically: no tentative mutation
// persists and no ledger entry remains.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	if req.Callback == nil {
		return "", errors.New("core: callback required")
	}
	if err := d.resolveTarget(req.Target); err != nil {
		return "", err
	}
	ctx, corrID := correlation.Ensure(ctx)

	d.mu.Lock()
	if req.Guard != nil {
		if err := req.Guard(); err != nil {
			d.mu.Unlock()
			d.logger.Debug("dispatch.guard.rejected", "target", req.Target.String(), "error", err)
			return "", err
		}
	}
	mutation := Stage(req.Tentative)
	id := requestid.New()
	entry := &AsyncRequest{
		ID:         id,
		Originator: req.Originator,
		Target:     req.Target,
		Payload:    req.Payload,
		Callback:   req.Callback,
		Context: &CallbackContext{
			RequestID: id,
			Data:      req.Data,
			Mutation:  mutation,
		},
		CorrelationID: corrID,
		DispatchedAt:  d.clock.Now(),
	}
	if err := d.ledger.Track(entry); err != nil {
		d.unwindLocked(entry, mutation)
		d.mu.Unlock()
		return "", err
	}
	d.mu.Unlock()

	start := time.Now()
	msg := api.AsyncMessage{
		RequestID:     id,
		Originator:    req.Originator,
		Target:        req.Target,
		Payload:       req.Payload,
		CorrelationID: corrID,
	}
	if err := d.transport.SendAsyncRequest(ctx, msg); err != nil {
		d.mu.Lock()
		d.ledger.Remove(id)
		d.unwindLocked(entry, mutation)
		d.mu.Unlock()
		d.metrics.recordDispatch(ctx, req.Target.Shard, "send_failed", time.Since(start))
		d.logger.Warn("dispatch.send.failed",
			"request_id", id,
			"target", req.Target.String(),
			"correlation_id", corrID,
			"error", err,
		)
		return "", err
	}
	d.metrics.recordDispatch(ctx, req.Target.Shard, "ok", time.Since(start))
	d.logger.Info("dispatch.recorded",
		"request_id", id,
		"target", req.Target.String(),
		"tentative", mutation != nil,
		"pending", d.ledger.Len(),
		"correlation_id", corrID,
	)
	return id, nil
}

// DispatchDeploy stages and records a deployment request the same way
// Dispatch does for calls, handing the bytecode to the platform's deployment
// primitive instead.
func (d *Dispatcher) DispatchDeploy(ctx context.Context, shard api.ShardID, bytecode, constructorArgs []byte, cb CallbackFunc, data any) (string, error) {
	if cb == nil {
		return "", errors.New("core: callback required")
	}
	if len(bytecode) == 0 {
		return "", api.Failure{Code: api.CodeInvalidTarget, Detail: "deployment bytecode required"}
	}
	ctx, corrID := correlation.Ensure(ctx)

	d.mu.Lock()
	id := requestid.New()
	entry := &AsyncRequest{
		ID:     id,
		Target: api.Target{Shard: shard},
		Callback: cb,
		Context: &CallbackContext{
			RequestID: id,
			Data:      data,
		},
		CorrelationID: corrID,
		DispatchedAt:  d.clock.Now(),
	}
	if err := d.ledger.Track(entry); err != nil {
		d.mu.Unlock()
		return "", err
	}
	d.mu.Unlock()

	start := time.Now()
	dep := api.DeployMessage{
		RequestID:       id,
		Shard:           shard,
		Bytecode:        bytecode,
		ConstructorArgs: constructorArgs,
		CorrelationID:   corrID,
	}
	if err := d.transport.AsyncDeploy(ctx, dep); err != nil {
		d.ledger.Remove(id)
		d.metrics.recordDispatch(ctx, shard, "deploy_failed", time.Since(start))
		d.logger.Warn("dispatch.deploy.failed", "request_id", id, "shard", uint32(shard), "correlation_id", corrID, "error", err)
		return "", err
	}
	d.metrics.recordDispatch(ctx, shard, "deploy_ok", time.Since(start))
	d.logger.Info("dispatch.deploy.recorded", "request_id", id, "shard", uint32(shard), "bytes", len(bytecode), "correlation_id", corrID)
	return id, nil
}

func (d *Dispatcher) resolveTarget(target api.Target) error {
	if strings.TrimSpace(string(target.Address)) == "" {
		return api.Failure{Code: api.CodeInvalidTarget, Detail: "target address required"}
	}
	if d.resolver != nil {
		if err := d.resolver.ResolveTarget(target); err != nil {
			var failure api.Failure
			if errors.As(err, &failure) {
				return err
			}
			return api.Failure{Code: api.CodeInvalidTarget, Detail: err.Error()}
		}
	}
	return nil
}

// unwindLocked reverts a staged mutation during dispatch failure. The request
// never became visible to completions, so resolving here cannot race a
// callback.
func (d *Dispatcher) unwindLocked(entry *AsyncRequest, mutation *TentativeMutation) {
	if mutation == nil {
		return
	}
	if err := mutation.Revert(); err != nil {
		d.logger.Error("dispatch.unwind.failed", "request_id", entry.ID, "error", err)
	}
}
