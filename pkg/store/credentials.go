package store

import (
	"context"

	"github.com/mavrin/vpncore/pkg/model"
)

// CredentialsStore abstracts credential persistence. Status moves are
// compare-and-set: they name the expected current status and return
// ErrConflict when the row is not in it, so no transition can run twice
// or move a credential backward.
type CredentialsStore interface {
	// CreatePending inserts a new credential in the pending status.
	// Returns ErrConflict if the user already holds a non-revoked
	// credential on the node (partial unique index).
	CreatePending(ctx context.Context, cred *model.Credential) error

	// ByID fetches a credential by its ID.
	ByID(ctx context.Context, credentialID string) (*model.Credential, error)

	// Live returns the user's non-revoked credential on the node, if any.
	Live(ctx context.Context, userID, nodeID string) (*model.Credential, error)

	// ListLiveByUser returns all non-revoked credentials of a user.
	ListLiveByUser(ctx context.Context, userID string) ([]model.Credential, error)

	// ListUnresolvedByNode returns every credential on the node not in a
	// terminal-confirmed state (i.e., everything except revoked).
	// Reconciliation queries the node for each of these.
	ListUnresolvedByNode(ctx context.Context, nodeID string) ([]model.Credential, error)

	// ListOrphaned returns active or failed credentials whose user has no
	// active subscription. The sweeper revokes these, which makes expiry
	// enforcement self-healing when an earlier revoke pass was cut short.
	ListOrphaned(ctx context.Context, limit int) ([]model.Credential, error)

	// Activate moves the credential from the given status to active and
	// records the node-issued access token.
	Activate(ctx context.Context, credentialID, accessToken string, from model.CredentialStatus) error

	// Fail moves the credential from pending to failed.
	Fail(ctx context.Context, credentialID string) error

	// Revoke moves any non-revoked credential to revoked and records the
	// reason. Returns ErrConflict if the row is already revoked.
	Revoke(ctx context.Context, credentialID, reason string) error
}
