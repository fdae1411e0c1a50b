// Package model defines the database models for vpncore.
//
// This package contains GORM models that map to the vpncore PostgreSQL
// schema. The durable store is the single source of truth for the VPN
// access lifecycle; every invariant the orchestrator relies on is backed
// by a constraint or partial unique index on these tables.
//
// # Core Models
//
//   - User: bot users, created on first interaction, never deleted
//   - Subscription: paid entitlement periods, at most one active per user
//   - Payment: one row per payment webhook, deduplicated by idempotency key
//   - Credential: node-side access grants, at most one live per (user, node)
//   - Node: VPN endpoints with capacity and health tracking
//   - Operation: append-only record of provision/revoke attempts, keyed by
//     idempotency key, used to detect and reconcile partial failures
//
// # Database Schema
//
// The database uses PostgreSQL with the following key tables:
//
//   - users: bot user identities
//   - subscriptions: entitlement periods and their status
//   - payments: payment webhook dedup log
//   - credentials: issued VPN credentials
//   - nodes: VPN node inventory
//   - operations: orchestrator operation records
//   - audit_events: structured audit trail (see pkg/audit)
package model
