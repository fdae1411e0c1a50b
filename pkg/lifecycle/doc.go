// Package lifecycle orchestrates credential state against remote VPN
// nodes. Every mutation follows the same shape: record an operation
// under the caller's idempotency key, call the node, then move the
// store. Store rows are only advanced with compare-and-set updates, so
// concurrent or replayed calls converge instead of duplicating work.
package lifecycle
