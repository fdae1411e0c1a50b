// Package xui adapts 3x-ui panel nodes to the node.Adapter contract.
// The panel is session-authenticated: the adapter logs in lazily, keeps
// the session cookie, and re-authenticates once when a call bounces.
// Client identities on the panel are derived deterministically from the
// credential reference, which is what makes Provision and Revoke safe
// to replay.
package xui
