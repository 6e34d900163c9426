package api

import (
	"errors"
	"fmt"
)

// Canonical failure codes surfaced by the coordination core.
const (
	// CodeInvalidTarget rejects dispatches whose shard/address cannot resolve.
	CodeInvalidTarget = "invalid_target"
	// CodeDuplicateRequest reports a request id collision at dispatch time.
	CodeDuplicateRequest = "duplicate_request"
	// CodeUnknownRequest reports a completion for an absent ledger entry; this
	// is a platform contract violation, not a recoverable condition.
	CodeUnknownRequest = "unknown_request"
	// CodeAlreadyResolved reports a second confirm/revert on one mutation.
	CodeAlreadyResolved = "already_resolved"
	// CodeShardAlreadyRegistered rejects a second factory registration for a shard.
	CodeShardAlreadyRegistered = "shard_already_registered"
	// CodeCloneFailed reports a terminally failed clone deployment.
	CodeCloneFailed = "clone_failed"
	// CodeRequestExpired reports a synthetic failure injected by the expiry sweeper.
	CodeRequestExpired = "request_expired"
)

// Failure captures transport-neutral error details for callers and adapters.
type Failure struct {
	Code   string
	Detail string
}

func (f Failure) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s", f.Code, f.Detail)
	}
	return f.Code
}

// IsCode reports whether err is (or wraps) a Failure carrying code.
func IsCode(err error, code string) bool {
	var failure Failure
	if errors.As(err, &failure) {
		return failure.Code == code
	}
	return false
}
