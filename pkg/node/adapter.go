package node

import (
	"context"
	"errors"
	"time"
)

// Adapter errors. Callers classify failures with errors.Is; anything not
// in this taxonomy is treated as NodeUnavailable by the orchestrator.
var (
	// ErrNodeUnavailable marks a transient node failure (connection
	// refused, timeout, panel error). Safe to retry with the same
	// idempotency key.
	ErrNodeUnavailable = errors.New("node unavailable")

	// ErrCapacityExceeded means the node refused the grant because it is
	// full. Retriable against a different node, not this one.
	ErrCapacityExceeded = errors.New("node capacity exceeded")
)

// RefStatus is the node-side view of a credential reference.
type RefStatus int

const (
	// RefAbsent means the node has no record of the reference.
	RefAbsent RefStatus = iota
	// RefActive means the node currently grants access for the reference.
	RefActive
	// RefDisabled means the node knows the reference but does not grant
	// access (suspended or disabled client).
	RefDisabled
)

// ProvisionRequest carries everything an adapter needs to create a grant.
// Ref is the node-side client identity, chosen by the orchestrator and
// stable per credential row, so a replayed Provision resolves to the
// already-created grant instead of a duplicate.
type ProvisionRequest struct {
	UserID string
	Ref    string
	// ExpireAt bounds the grant on the node side where the protocol
	// supports it. Zero means no node-side expiry; the sweeper is then
	// the only enforcement.
	ExpireAt time.Time
}

// ProvisionResult is the outcome of a successful Provision.
type ProvisionResult struct {
	// Ref echoes the requested reference, or the node-assigned one
	// where the protocol names grants itself.
	Ref string
	// AccessToken is the opaque token the user connects with (a link,
	// key, or config blob depending on the protocol).
	AccessToken string
}

// QueryResult is the node's answer about a reference.
type QueryResult struct {
	Status RefStatus
	// AccessToken is set when the node can reproduce the token for an
	// active reference, letting reconciliation repair a store row that
	// lost the token in a crash.
	AccessToken string
}

// Adapter is the capability set the orchestrator requires of every VPN
// node implementation. All calls are blocking I/O and must honor ctx
// deadlines. Implementations must make every call safely retriable:
// Provision with a key that already succeeded returns the same result,
// and Revoke of an absent or already-revoked reference is success.
type Adapter interface {
	// Name returns the adapter type name used in node inventory
	// (e.g., "xui").
	Name() string

	// Provision creates (or finds, on replay) the grant for the request.
	// Fails with ErrNodeUnavailable or ErrCapacityExceeded.
	Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error)

	// Revoke removes the grant for ref. Unknown refs are success.
	// Fails with ErrNodeUnavailable only.
	Revoke(ctx context.Context, ref string) error

	// Query reports the node's view of ref.
	// Fails with ErrNodeUnavailable only.
	Query(ctx context.Context, ref string) (*QueryResult, error)
}
