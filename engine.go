package nilshard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/Cyber-Mitch/nilshard/api"
	"github.com/Cyber-Mitch/nilshard/internal/clock"
	"github.com/Cyber-Mitch/nilshard/internal/core"
	"github.com/Cyber-Mitch/nilshard/internal/deploy"
	"github.com/Cyber-Mitch/nilshard/internal/loggingutil"
)

// Aliases for the protocol types callers hold across the dispatch/callback
// boundary.
type (
	// DispatchRequest describes one outbound cross-shard call.
	DispatchRequest = core.DispatchRequest
	// CallbackFunc runs exactly once when a remote outcome is known.
	CallbackFunc = core.CallbackFunc
	// CallbackContext carries the data captured at dispatch time.
	CallbackContext = core.CallbackContext
	// Tentative declares an optimistic mutation applied with dispatch.
	Tentative = core.Tentative
	// TentativeMutation is the confirm-or-revert handle held by a context.
	TentativeMutation = core.TentativeMutation
	// Deployment snapshots a shard's clone deployment lifecycle.
	Deployment = deploy.Deployment
	// RegistryEntry is a pinned (shard, template, factory) triple.
	RegistryEntry = deploy.Entry
)

// Stage applies a tentative mutation outside a dispatch. Exposed for
// callbacks that stage follow-up mutations of their own.
func Stage(t *Tentative) *TentativeMutation {
	return core.Stage(t)
}

// Engine wires the request ledger, dispatcher, callback executor, clone
// registry, and deployer over a platform transport. It is the embeddable
// entry point for hosts running on a sharded ledger.
type Engine struct {
	logger     pslog.Logger
	clk        clock.Clock
	ledger     *core.Ledger
	dispatcher *core.Dispatcher
	executor   *core.Executor
	registry   *deploy.Registry
	deployer   *deploy.Deployer

	stopCh        chan struct{}
	stopOnce      sync.Once
	sweeperDone   chan struct{}
	sweeperActive bool
}

// NewEngine constructs and starts an Engine. When cfg.RequestExpiry is
// positive a background sweeper fails over-age requests through the normal
// completion path.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("nilshard: transport required")
	}
	logger := loggingutil.EnsureLogger(cfg.Logger)
	var clk clock.Clock
	if cfg.Clock != nil {
		clk = cfg.Clock
	} else {
		clk = clock.Real{}
	}
	ledger := core.NewLedger()
	var resolver core.TargetResolver
	if cfg.ResolveTarget != nil {
		resolver = core.TargetResolverFunc(cfg.ResolveTarget)
	}
	dispatcher, err := core.NewDispatcher(core.DispatcherConfig{
		Ledger:    ledger,
		Transport: cfg.Transport,
		Resolver:  resolver,
		Logger:    logger,
		Clock:     clk,
	})
	if err != nil {
		return nil, err
	}
	executor, err := core.NewExecutor(core.ExecutorConfig{
		Ledger: ledger,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	registry := deploy.NewRegistry()
	deployer, err := deploy.NewDeployer(deploy.DeployerConfig{
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	e := &Engine{
		logger:      logger,
		clk:         clk,
		ledger:      ledger,
		dispatcher:  dispatcher,
		executor:    executor,
		registry:    registry,
		deployer:    deployer,
		stopCh:      make(chan struct{}),
		sweeperDone: make(chan struct{}),
	}
	if cfg.RequestExpiry > 0 {
		e.sweeperActive = true
		go e.sweepLoop(cfg.RequestExpiry, cfg.sweepInterval())
	} else {
		close(e.sweeperDone)
	}
	return e, nil
}

// Dispatch issues one outbound cross-shard call, returning its request id
// immediately. See core.Dispatcher for the atomicity contract.
func (e *Engine) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	return e.dispatcher.Dispatch(ctx, req)
}

// Complete is the platform's completion channel: it resolves one pending
// request with the remote outcome, running its callback exactly once.
func (e *Engine) Complete(ctx context.Context, comp api.Completion) error {
	return e.executor.Complete(ctx, comp)
}

// DeployTemplate asynchronously deploys template bytecode on a shard.
func (e *Engine) DeployTemplate(ctx context.Context, shard api.ShardID, initCode []byte) (string, error) {
	return e.deployer.DeployTemplate(ctx, shard, initCode)
}

// RegisterShard pins the factory for a shard whose template deployment has
// completed, permitting clone requests on that shard.
func (e *Engine) RegisterShard(shard api.ShardID, factory api.Address) error {
	return e.deployer.Register(shard, factory)
}

// RequestClone asynchronously deploys a clone of the shard's registered
// template, returning the clone id and request id.
func (e *Engine) RequestClone(ctx context.Context, shard api.ShardID) (cloneID, requestID string, err error) {
	return e.deployer.RequestClone(ctx, shard)
}

// DeploymentStatus snapshots a shard's clone deployment lifecycle.
func (e *Engine) DeploymentStatus(shard api.ShardID) Deployment {
	return e.deployer.Status(shard)
}

// RegistryEntries lists the pinned factory/template pairs ordered by shard.
func (e *Engine) RegistryEntries() []RegistryEntry {
	return e.registry.Entries()
}

// PendingRequests reports the number of outstanding async requests.
func (e *Engine) PendingRequests() int {
	return e.ledger.Len()
}

// Close stops the expiry sweeper. Pending requests stay in the ledger; the
// platform may still resolve them through Complete.
func (e *Engine) Close() error {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	if e.sweeperActive {
		<-e.sweeperDone
	}
	return nil
}

func (e *Engine) sweepLoop(expiry, interval time.Duration) {
	defer close(e.sweeperDone)
	for {
		select {
		case <-e.stopCh:
			return
		case <-e.clk.After(interval):
		}
		cutoff := e.clk.Now().Add(-expiry)
		for _, id := range e.ledger.ExpiredIDs(cutoff) {
			comp := api.Completion{
				RequestID: id,
				Success:   false,
				Error:     fmt.Sprintf("%s: no completion within %s", api.CodeRequestExpired, expiry),
			}
			if err := e.executor.Complete(context.Background(), comp); err != nil {
				if api.IsCode(err, api.CodeUnknownRequest) {
					// Lost the race against a real completion; nothing to do.
					continue
				}
				e.logger.Warn("sweeper.expire.failed", "request_id", id, "error", err)
				continue
			}
			e.logger.Info("sweeper.expired", "request_id", id, "expiry", expiry.String())
		}
	}
}
