// Package requestid generates ledger request identifiers. UUIDv7 keeps ids
// unique and time-ordered, which makes pending-request listings and expiry
// sweeps cheap to reason about.
package requestid

import "github.com/google/uuid"

// New returns a UUIDv7 request id or panics if generation fails.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}
