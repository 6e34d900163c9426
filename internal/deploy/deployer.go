package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/xid"
	"pkt.systems/pslog"

	"github.com/Cyber-Mitch/nilshard/api"
	"github.com/Cyber-Mitch/nilshard/internal/core"
	"github.com/Cyber-Mitch/nilshard/internal/loggingutil"
)

// State names a step in the per-shard clone deployment lifecycle.
type State string

const (
	// StateUnregistered means no template exists for the shard yet.
	StateUnregistered State = "unregistered"
	// StateTemplateDeployed means the template address is known but cloning
	// is not yet permitted.
	StateTemplateDeployed State = "template_deployed"
	// StateRegistered means the shard's factory/template pair is pinned and
	// cloning is permitted.
	StateRegistered State = "registered"
	// StateCloneRequested means a clone deployment is pending on the shard.
	StateCloneRequested State = "clone_requested"
	// StateCloneDeployed is the terminal success of the latest clone request.
	StateCloneDeployed State = "clone_deployed"
	// StateCloneFailed is the terminal failure of the latest clone request;
	// deployments are not retried, the caller re-requests.
	StateCloneFailed State = "clone_failed"
)

const codeClonePending = "clone_request_pending"

// Clone records one clone deployment attempt on a shard.
type Clone struct {
	ID        string
	RequestID string
	Address   api.Address
	Failed    bool
	Error     string
}

// Deployment is a point-in-time snapshot of a shard's deployment lifecycle.
type Deployment struct {
	Shard    api.ShardID
	State    State
	Template api.Address
	Clones   []Clone
}

type shardState struct {
	state           State
	template        api.Address
	templatePending bool
	clones          []Clone
}

// DeployerConfig wires a Deployer to the registry and the async dispatcher.
type DeployerConfig struct {
	Registry   *Registry
	Dispatcher *core.Dispatcher
	Logger     pslog.Logger
}

// Deployer drives the per-shard deployment state machine. Template and clone
// deployments travel through the async dispatcher and resolve through the
// callback executor like any other cross-shard request.
type Deployer struct {
	registry   *Registry
	dispatcher *core.Dispatcher
	logger     pslog.Logger

	mu     sync.Mutex
	shards map[api.ShardID]*shardState
}

// NewDeployer constructs a Deployer.
func NewDeployer(cfg DeployerConfig) (*Deployer, error) {
	if cfg.Registry == nil {
		return nil, errors.New("deploy: registry required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("deploy: dispatcher required")
	}
	return &Deployer{
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		logger:     loggingutil.EnsureLogger(cfg.Logger),
		shards:     make(map[api.ShardID]*shardState),
	}, nil
}

func (d *Deployer) shardLocked(shard api.ShardID) *shardState {
	st, ok := d.shards[shard]
	if !ok {
		st = &shardState{state: StateUnregistered}
		d.shards[shard] = st
	}
	return st
}

// DeployTemplate asynchronously deploys the master/template bytecode on a
// shard. The completion callback records the template address and moves the
// shard to TemplateDeployed.
func (d *Deployer) DeployTemplate(ctx context.Context, shard api.ShardID, initCode []byte) (string, error) {
	d.mu.Lock()
	st := d.shardLocked(shard)
	if st.state != StateUnregistered || st.templatePending {
		d.mu.Unlock()
		return "", api.Failure{
			Code:   "template_already_deployed",
			Detail: fmt.Sprintf("shard %d is %s", shard, st.state),
		}
	}
	st.templatePending = true
	d.mu.Unlock()

	reqID, err := d.dispatcher.DispatchDeploy(ctx, shard, initCode, nil, d.templateCallback(shard), nil)
	if err != nil {
		d.mu.Lock()
		st.templatePending = false
		d.mu.Unlock()
		return "", err
	}
	d.logger.Info("deploy.template.requested", "shard", uint32(shard), "request_id", reqID)
	return reqID, nil
}

func (d *Deployer) templateCallback(shard api.ShardID) core.CallbackFunc {
	return func(ctx context.Context, cb *core.CallbackContext, res api.Result) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		st := d.shardLocked(shard)
		st.templatePending = false
		if !res.Success {
			d.logger.Warn("deploy.template.failed", "shard", uint32(shard), "request_id", cb.RequestID, "error", res.Err)
			return nil
		}
		addr := api.Address(strings.TrimSpace(string(res.Payload)))
		if _, err := addr.Bytes(); err != nil {
			return api.Failure{Code: api.CodeInvalidTarget, Detail: "platform returned malformed template address: " + err.Error()}
		}
		st.template = addr
		st.state = StateTemplateDeployed
		d.logger.Info("deploy.template.deployed", "shard", uint32(shard), "template", string(addr), "request_id", cb.RequestID)
		return nil
	}
}

// Register pins the factory for a shard whose template is already deployed,
// permitting clone requests. Registration of an occupied shard fails with
// shard_already_registered and leaves the original entry unchanged.
func (d *Deployer) Register(shard api.ShardID, factory api.Address) error {
	d.mu.Lock()
	st := d.shardLocked(shard)
	if st.state != StateTemplateDeployed {
		if _, registered := d.registry.Lookup(shard); registered {
			d.mu.Unlock()
			return api.Failure{
				Code:   api.CodeShardAlreadyRegistered,
				Detail: fmt.Sprintf("shard %d already registered", shard),
			}
		}
		d.mu.Unlock()
		return api.Failure{
			Code:   "template_not_deployed",
			Detail: fmt.Sprintf("shard %d is %s, want %s", shard, st.state, StateTemplateDeployed),
		}
	}
	template := st.template
	d.mu.Unlock()

	if err := d.registry.Register(Entry{Shard: shard, Template: template, Factory: factory}); err != nil {
		return err
	}
	d.mu.Lock()
	st.state = StateRegistered
	d.mu.Unlock()
	d.logger.Info("deploy.registered", "shard", uint32(shard), "template", string(template), "factory", string(factory))
	return nil
}

// RequestClone asynchronously deploys a clone of the shard's registered
// template, returning the clone id and its request id. Only one clone request
// may be in flight per shard; terminal outcomes free the slot so the caller
// can re-request after a failure.
func (d *Deployer) RequestClone(ctx context.Context, shard api.ShardID) (string, string, error) {
	entry, ok := d.registry.Lookup(shard)
	if !ok {
		return "", "", api.Failure{
			Code:   api.CodeInvalidTarget,
			Detail: fmt.Sprintf("shard %d has no registered factory", shard),
		}
	}
	bytecode, err := CloneBytecode(entry.Template)
	if err != nil {
		return "", "", err
	}

	d.mu.Lock()
	st := d.shardLocked(shard)
	switch st.state {
	case StateRegistered, StateCloneDeployed, StateCloneFailed:
	case StateCloneRequested:
		d.mu.Unlock()
		return "", "", api.Failure{
			Code:   codeClonePending,
			Detail: fmt.Sprintf("shard %d already has a clone deployment in flight", shard),
		}
	default:
		d.mu.Unlock()
		return "", "", api.Failure{
			Code:   "template_not_deployed",
			Detail: fmt.Sprintf("shard %d is %s", shard, st.state),
		}
	}
	cloneID := xid.New().String()
	st.state = StateCloneRequested
	d.mu.Unlock()

	reqID, err := d.dispatcher.DispatchDeploy(ctx, shard, bytecode, nil, d.cloneCallback(shard, cloneID), nil)
	if err != nil {
		d.mu.Lock()
		st.state = StateRegistered
		d.mu.Unlock()
		return "", "", err
	}
	d.logger.Info("deploy.clone.requested",
		"shard", uint32(shard),
		"clone_id", cloneID,
		"request_id", reqID,
		"template", string(entry.Template),
		"factory", string(entry.Factory),
	)
	return cloneID, reqID, nil
}

func (d *Deployer) cloneCallback(shard api.ShardID, cloneID string) core.CallbackFunc {
	return func(ctx context.Context, cb *core.CallbackContext, res api.Result) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		st := d.shardLocked(shard)
		clone := Clone{ID: cloneID, RequestID: cb.RequestID}
		if res.Success {
			addr := api.Address(strings.TrimSpace(string(res.Payload)))
			if _, err := addr.Bytes(); err != nil {
				st.state = StateCloneFailed
				clone.Failed = true
				clone.Error = "malformed clone address: " + err.Error()
				st.clones = append(st.clones, clone)
				return api.Failure{Code: api.CodeCloneFailed, Detail: clone.Error}
			}
			clone.Address = addr
			st.state = StateCloneDeployed
			st.clones = append(st.clones, clone)
			d.logger.Info("deploy.clone.deployed", "shard", uint32(shard), "clone_id", cloneID, "address", string(addr), "request_id", cb.RequestID)
			return nil
		}
		clone.Failed = true
		clone.Error = res.Err
		st.state = StateCloneFailed
		st.clones = append(st.clones, clone)
		d.logger.Warn("deploy.clone.failed", "shard", uint32(shard), "clone_id", cloneID, "request_id", cb.RequestID, "error", res.Err)
		return api.Failure{Code: api.CodeCloneFailed, Detail: res.Err}
	}
}

// Status returns a snapshot of a shard's deployment lifecycle.
func (d *Deployer) Status(shard api.ShardID) Deployment {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.shards[shard]
	if !ok {
		return Deployment{Shard: shard, State: StateUnregistered}
	}
	out := Deployment{
		Shard:    shard,
		State:    st.state,
		Template: st.template,
		Clones:   make([]Clone, len(st.clones)),
	}
	copy(out.Clones, st.clones)
	return out
}

// Clones returns the clone records for a shard, oldest first.
func (d *Deployer) Clones(shard api.ShardID) []Clone {
	return d.Status(shard).Clones
}
