package lifecycle

import "errors"

var (
	// ErrNotEntitled means the user has no active subscription.
	ErrNotEntitled = errors.New("user has no active subscription")

	// ErrNoCapacity means no healthy node with spare capacity exists.
	ErrNoCapacity = errors.New("no node with spare capacity")

	// ErrProvisionFailed means the node definitively refused the grant.
	// The credential is marked failed and a later call may retry it.
	ErrProvisionFailed = errors.New("provision failed")

	// ErrInFlight means another call holds the same credential mid-flight
	// or an indeterminate operation has not been resolved yet. Callers
	// retry after reconciliation catches up.
	ErrInFlight = errors.New("operation in flight")
)
