// Package gorm provides GORM-backed implementations of the store
// interfaces over PostgreSQL.
//
// Every invariant the orchestrator relies on is enforced here with one
// of two mechanisms, never with in-process locks:
//
//   - conditional single-row updates (UPDATE ... WHERE status = ?)
//     checked via RowsAffected, surfaced as store.ErrConflict
//   - partial unique indexes created by the migrations (one live
//     credential per user/node, one active subscription per user,
//     unique idempotency keys), surfaced as store.ErrConflict on insert
//
// This keeps the database the single synchronization point, so any
// number of server processes and sweepers can run concurrently.
package gorm
