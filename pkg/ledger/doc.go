// Package ledger manages subscription entitlement: recording payments,
// extending periods, and answering whether a user is currently
// entitled. Payment webhooks are deduplicated by provider event ID, so
// a replayed webhook never grants time twice.
package ledger
