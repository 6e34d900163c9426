// Package memory implements an in-process simulated sharded platform for
// tests and local development. Messages and deployments are accepted
// immediately; completions queue up until the test delivers them, in any
// order, which is exactly the freedom the real platform reserves for itself.
package memory

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"

	"pkt.systems/pslog"

	"github.com/Cyber-Mitch/nilshard/api"
	"github.com/Cyber-Mitch/nilshard/internal/loggingutil"
)

// Handler decides the remote outcome of an async message.
type Handler func(msg api.AsyncMessage) api.Result

// DeployHandler decides the remote outcome of a deployment.
type DeployHandler func(dep api.DeployMessage) api.Result

// CompletionSink receives platform completions; the engine's executor
// satisfies it.
type CompletionSink interface {
	Complete(ctx context.Context, comp api.Completion) error
}

// Config configures the in-memory platform behaviour.
type Config struct {
	// Handler overrides the default echo-success outcome for messages.
	Handler Handler
	// DeployHandler overrides the default address-assigning outcome for
	// deployments.
	DeployHandler DeployHandler
	// AutoDeliver delivers each completion synchronously on submit instead of
	// queueing it for manual delivery.
	AutoDeliver bool
	Logger      pslog.Logger
}

// Platform implements the core transport seam in-memory.
type Platform struct {
	mu            sync.Mutex
	sink          CompletionSink
	handler       Handler
	deployHandler DeployHandler
	autoDeliver   bool
	queue         []api.Completion
	addrCounter   uint64
	logger        pslog.Logger
}

// New returns a manual-delivery platform with default handlers: messages
// succeed echoing their payload, deployments succeed with a fresh address.
func New() *Platform {
	return NewWithConfig(Config{})
}

// NewWithConfig returns a platform wired according to cfg.
func NewWithConfig(cfg Config) *Platform {
	return &Platform{
		handler:       cfg.Handler,
		deployHandler: cfg.DeployHandler,
		autoDeliver:   cfg.AutoDeliver,
		logger:        loggingutil.EnsureLogger(cfg.Logger),
	}
}

// Bind attaches the completion sink. The platform owes every accepted
// request exactly one completion through it.
func (p *Platform) Bind(sink CompletionSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// SendAsyncRequest accepts a cross-shard call and queues its completion.
func (p *Platform) SendAsyncRequest(ctx context.Context, msg api.AsyncMessage) error {
	if msg.RequestID == "" {
		return errors.New("memory: message without request id")
	}
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	res := api.Result{Success: true, Payload: msg.Payload}
	if handler != nil {
		res = handler(msg)
	}
	return p.submit(ctx, api.Completion{
		RequestID: msg.RequestID,
		Success:   res.Success,
		Payload:   res.Payload,
		Error:     res.Err,
	})
}

// AsyncDeploy accepts a deployment and queues its completion. The default
// outcome assigns a deterministic fresh address per deployment.
func (p *Platform) AsyncDeploy(ctx context.Context, dep api.DeployMessage) error {
	if dep.RequestID == "" {
		return errors.New("memory: deployment without request id")
	}
	if len(dep.Bytecode) == 0 {
		return errors.New("memory: deployment without bytecode")
	}
	p.mu.Lock()
	handler := p.deployHandler
	p.addrCounter++
	counter := p.addrCounter
	p.mu.Unlock()
	res := api.Result{Success: true, Payload: []byte(deployAddress(dep.Shard, counter))}
	if handler != nil {
		res = handler(dep)
	}
	return p.submit(ctx, api.Completion{
		RequestID: dep.RequestID,
		Success:   res.Success,
		Payload:   res.Payload,
		Error:     res.Err,
	})
}

func (p *Platform) submit(ctx context.Context, comp api.Completion) error {
	p.mu.Lock()
	if p.autoDeliver {
		sink := p.sink
		p.mu.Unlock()
		if sink == nil {
			return errors.New("memory: no completion sink bound")
		}
		return sink.Complete(ctx, comp)
	}
	p.queue = append(p.queue, comp)
	p.mu.Unlock()
	p.logger.Debug("platform.completion.queued", "request_id", comp.RequestID, "success", comp.Success)
	return nil
}

// PendingCompletions reports how many completions await delivery.
func (p *Platform) PendingCompletions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// DeliverNext delivers the oldest queued completion.
func (p *Platform) DeliverNext(ctx context.Context) error {
	return p.deliver(ctx, false)
}

// DeliverLast delivers the newest queued completion first, letting tests
// exercise out-of-order delivery between requests.
func (p *Platform) DeliverLast(ctx context.Context) error {
	return p.deliver(ctx, true)
}

func (p *Platform) deliver(ctx context.Context, fromTail bool) error {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return errors.New("memory: no queued completions")
	}
	var comp api.Completion
	if fromTail {
		comp = p.queue[len(p.queue)-1]
		p.queue = p.queue[:len(p.queue)-1]
	} else {
		comp = p.queue[0]
		p.queue = p.queue[1:]
	}
	sink := p.sink
	p.mu.Unlock()
	if sink == nil {
		return errors.New("memory: no completion sink bound")
	}
	return sink.Complete(ctx, comp)
}

// DeliverAll delivers every queued completion oldest first, stopping at the
// first sink error.
func (p *Platform) DeliverAll(ctx context.Context) error {
	for {
		p.mu.Lock()
		remaining := len(p.queue)
		p.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		if err := p.DeliverNext(ctx); err != nil {
			return err
		}
	}
}

func deployAddress(shard api.ShardID, counter uint64) string {
	var raw [api.AddressLength]byte
	raw[0] = byte(shard >> 24)
	raw[1] = byte(shard >> 16)
	raw[2] = byte(shard >> 8)
	raw[3] = byte(shard)
	for i := 0; i < 8; i++ {
		raw[api.AddressLength-1-i] = byte(counter >> (8 * i))
	}
	return "0x" + hex.EncodeToString(raw[:])
}
