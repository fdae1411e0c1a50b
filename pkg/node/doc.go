// Package node defines the adapter capability set the lifecycle core
// requires of every VPN node, and a registry resolving node IDs to
// adapter instances.
//
// An adapter exposes exactly three operations: Provision, Revoke, and
// Query. All three are idempotent by contract, which is what lets the
// orchestrator and the reconciler retry freely after timeouts and
// crashes. One adapter implementation exists per VPN panel protocol;
// see pkg/node/xui for the reference implementation.
package node
