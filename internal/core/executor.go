package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkt.systems/pslog"

	"github.com/Cyber-Mitch/nilshard/api"
	"github.com/Cyber-Mitch/nilshard/internal/correlation"
	"github.com/Cyber-Mitch/nilshard/internal/loggingutil"
)

// ExecutorConfig wires an Executor to the request ledger.
type ExecutorConfig struct {
	Ledger *Ledger
	Logger pslog.Logger
}

// Executor runs registered callbacks when the platform reports a remote
// outcome. Each ledger entry is taken before its callback runs, so a request
// resolves exactly once and a callback can never re-enter itself through a
// second completion for the same id.
type Executor struct {
	ledger  *Ledger
	logger  pslog.Logger
	metrics *coreMetrics
}

// NewExecutor constructs an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("core: ledger required")
	}
	logger := loggingutil.EnsureLogger(cfg.Logger)
	return &Executor{
		ledger:  cfg.Ledger,
		logger:  logger,
		metrics: newCoreMetrics(logger),
	}, nil
}

// Complete resolves one pending request with the platform-reported outcome.
// An unknown request id is a platform contract violation and fails with
// unknown_request. The ledger entry is retired unconditionally: a callback
// error is logged and returned, but never leaves the entry pending.
func (e *Executor) Complete(ctx context.Context, comp api.Completion) error {
	if comp.RequestID == "" {
		return api.Failure{Code: api.CodeUnknownRequest, Detail: "completion without request id"}
	}
	req, ok := e.ledger.Take(comp.RequestID)
	if !ok {
		e.metrics.recordComplete(ctx, 0, "unknown", 0)
		return api.Failure{Code: api.CodeUnknownRequest, Detail: "no pending request " + comp.RequestID}
	}
	ctx = correlation.Set(ctx, req.CorrelationID)
	res := api.Result{
		Success: comp.Success,
		Payload: comp.Payload,
		Err:     comp.Error,
	}
	start := time.Now()
	cbErr := req.Callback(ctx, req.Context, res)
	outcome := "confirmed"
	if !comp.Success {
		outcome = "reverted"
	}
	if cbErr != nil {
		outcome = "callback_error"
	}
	e.metrics.recordComplete(ctx, req.Target.Shard, outcome, time.Since(start))
	if cbErr != nil {
		// Entry already retired; the platform contract forbids a redelivery,
		// so the error surfaces to the invoker instead of the ledger.
		e.logger.Warn("callback.failed",
			"request_id", req.ID,
			"target", req.Target.String(),
			"success", comp.Success,
			"correlation_id", req.CorrelationID,
			"error", cbErr,
		)
		return fmt.Errorf("callback for %s: %w", req.ID, cbErr)
	}
	e.logger.Info("callback.retired",
		"request_id", req.ID,
		"target", req.Target.String(),
		"success", comp.Success,
		"pending", e.ledger.Len(),
		"correlation_id", req.CorrelationID,
	)
	return nil
}
