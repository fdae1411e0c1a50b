// Package store provides storage abstractions for the vpncore server.
//
// This package defines interfaces for database operations, decoupling the
// lifecycle orchestrator, subscription ledger, sweeper, and HTTP endpoints
// from the concrete database implementation. This enables testing with
// mocks and fakes, and keeps every cross-process invariant expressed as a
// single-row conditional operation rather than an in-process lock.
//
// # Available Stores
//
//   - CredentialsStore: credential rows and their CAS status transitions
//   - NodesStore: node inventory, capacity slots, health
//   - SubscriptionsStore: entitlement periods, expiry claims, payments
//   - UsersStore: user registration and deactivation
//   - OperationsStore: idempotency-keyed operation records
//   - HealthStore: connectivity checks for liveness reporting
//
// # Usage
//
//	creds := gormstore.NewCredentialsStore(db)
//	cred, err := creds.Live(ctx, userID, nodeID)
//	if err != nil {
//	    if errors.Is(err, store.ErrNotFound) {
//	        // no live credential on that node
//	    }
//	}
package store
