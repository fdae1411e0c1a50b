package model

import "time"

//go:generate go run github.com/dmarkham/enumer -type CredentialStatus -trimprefix CredentialStatus -transform lower -sql -yaml -output credential_status.gen.go

// CredentialStatus is the lifecycle state of a credential. Transitions
// only move forward: pending -> {active, failed}, active -> revoked.
// Reconciliation may additionally move failed -> active or pending ->
// revoked, but only on confirmed node-side truth.
type CredentialStatus int

const (
	CredentialStatusPending CredentialStatus = iota
	CredentialStatusActive
	CredentialStatusRevoked
	CredentialStatusFailed
)

// Terminal reports whether the status is confirmed terminal. Pending and
// failed rows are revisited by reconciliation; revoked rows never are.
func (s CredentialStatus) Terminal() bool {
	return s == CredentialStatusRevoked
}

// Credential represents a node-side access grant issued to a user.
// A user holds at most one non-revoked credential per node, enforced by
// a partial unique index on (user_id, node_id).
type Credential struct {
	CredentialID string           `gorm:"column:credential_id;primaryKey"`
	UserID       string           `gorm:"column:user_id;index"`
	NodeID       string           `gorm:"column:node_id;index"`
	Status       CredentialStatus `gorm:"column:status"`
	// NodeRef is the node-assigned reference for the grant (the panel
	// client identity). Set when the row is created so a crashed
	// provision can still be queried on the node.
	NodeRef string `gorm:"column:node_ref"`
	// AccessToken is the opaque connection token returned by the node.
	// Populated only once the credential is active.
	AccessToken  string    `gorm:"column:access_token"`
	RevokeReason string    `gorm:"column:revoke_reason"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Credential) TableName() string {
	return "credentials"
}
