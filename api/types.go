// Package api defines the transport-neutral types exchanged between the
// nilshard coordination core and the surrounding ledger platform: targets,
// async messages, deployment requests, and completion results.
package api

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ShardID identifies an independently executing partition of the ledger state.
type ShardID uint32

// AddressLength is the decoded byte length of an Address.
const AddressLength = 20

// Address identifies an account or contract within a shard, hex encoded with
// an optional 0x prefix.
type Address string

// Bytes decodes the address into its 20-byte form.
func (a Address) Bytes() ([AddressLength]byte, error) {
	var out [AddressLength]byte
	s := strings.TrimPrefix(strings.TrimSpace(string(a)), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("address %q: %w", string(a), err)
	}
	if len(raw) != AddressLength {
		return out, fmt.Errorf("address %q: want %d bytes, got %d", string(a), AddressLength, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// Target is a resolved shard/address pair for an outbound async call.
type Target struct {
	// Shard is the partition the call executes on.
	Shard ShardID `json:"shard"`
	// Address is the callee account or contract on that shard.
	Address Address `json:"address"`
}

func (t Target) String() string {
	return fmt.Sprintf("%d/%s", t.Shard, t.Address)
}

// AsyncMessage is the wire form of a cross-shard call handed to the platform.
type AsyncMessage struct {
	// RequestID uniquely identifies the pending request; the platform must
	// echo it back in the completion.
	RequestID string `json:"request_id"`
	// Originator is the dispatching account.
	Originator Address `json:"originator,omitempty"`
	// Target is the callee shard/address pair.
	Target Target `json:"target"`
	// Payload is the opaque call payload, sent verbatim.
	Payload []byte `json:"payload,omitempty"`
	// CorrelationID links dispatch and completion log lines.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// DeployMessage asks the platform to deploy bytecode on a shard.
type DeployMessage struct {
	// RequestID uniquely identifies the pending deployment.
	RequestID string `json:"request_id"`
	// Shard is the partition the bytecode is deployed on.
	Shard ShardID `json:"shard"`
	// Bytecode is the deployment bytecode, computed by the caller.
	Bytecode []byte `json:"bytecode"`
	// ConstructorArgs are appended to the bytecode by the platform.
	ConstructorArgs []byte `json:"constructor_args,omitempty"`
	// CorrelationID links dispatch and completion log lines.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Completion is delivered by the platform exactly once per request when the
// remote outcome is known.
type Completion struct {
	// RequestID identifies the pending request being completed.
	RequestID string `json:"request_id"`
	// Success reports whether the remote call or deployment succeeded.
	Success bool `json:"success"`
	// Payload carries the result payload on success. For deployments it is
	// the deployed clone or template address.
	Payload []byte `json:"payload,omitempty"`
	// Error carries the platform-reported failure detail when Success is false.
	Error string `json:"error,omitempty"`
}

// Result is the callback-facing view of a completion.
type Result struct {
	// Success reports whether the remote call succeeded.
	Success bool
	// Payload is the result payload, nil on failure.
	Payload []byte
	// Err is the platform-reported failure detail, empty on success.
	Err string
}
