package nilshard

import (
	"context"
	"time"

	"pkt.systems/pslog"

	"github.com/Cyber-Mitch/nilshard/api"
)

const (
	// DefaultRequestExpiry disables the expiry sweeper. The platform promises
	// exactly-once completion delivery, so expiry is opt-in for hosts that
	// cannot trust that promise.
	DefaultRequestExpiry = time.Duration(0)
	// DefaultSweepInterval is how often the expiry sweeper scans the ledger
	// when RequestExpiry is set.
	DefaultSweepInterval = 30 * time.Second
)

// Transport is the seam to the surrounding ledger platform. The platform owes
// exactly one completion per accepted message or deployment, delivered later
// through Engine.Complete; there is no ordering guarantee between completions
// of different requests.
type Transport interface {
	SendAsyncRequest(ctx context.Context, msg api.AsyncMessage) error
	AsyncDeploy(ctx context.Context, dep api.DeployMessage) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Config configures an Engine.
type Config struct {
	// Transport is the platform dispatch seam. Required.
	Transport Transport
	// ResolveTarget optionally validates dispatch targets against local
	// state; a non-nil error rejects the dispatch with invalid_target.
	ResolveTarget func(target api.Target) error
	// Logger receives structured protocol events. Nil discards them.
	Logger pslog.Logger
	// Clock drives ledger timestamps and the expiry sweeper. Nil uses the
	// wall clock.
	Clock Clock
	// RequestExpiry, when positive, fails ledger entries older than this
	// through the normal completion path with a synthetic platform failure.
	// Zero trusts the platform to deliver every completion.
	RequestExpiry time.Duration
	// SweepInterval is the expiry scan period; zero uses DefaultSweepInterval.
	SweepInterval time.Duration
}

func (c Config) sweepInterval() time.Duration {
	if c.SweepInterval > 0 {
		return c.SweepInterval
	}
	return DefaultSweepInterval
}
