package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// Ensure CredentialsStore implements store.CredentialsStore
var _ store.CredentialsStore = (*CredentialsStore)(nil)

// CredentialsStore implements store.CredentialsStore using GORM
type CredentialsStore struct {
	db *gorm.DB
}

// NewCredentialsStore creates a new CredentialsStore
func NewCredentialsStore(db *gorm.DB) *CredentialsStore {
	return &CredentialsStore{db: db}
}

// CreatePending inserts a new pending credential. The partial unique
// index on (user_id, node_id) for non-revoked rows turns a concurrent
// double-provision into ErrConflict here.
func (s *CredentialsStore) CreatePending(ctx context.Context, cred *model.Credential) error {
	cred.Status = model.CredentialStatusPending
	return translate(s.db.WithContext(ctx).Create(cred).Error)
}

// ByID fetches a credential by ID.
func (s *CredentialsStore) ByID(ctx context.Context, credentialID string) (*model.Credential, error) {
	var cred model.Credential
	tx := s.db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		First(&cred)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &cred, nil
}

// Live returns the user's non-revoked credential on the node, if any.
func (s *CredentialsStore) Live(ctx context.Context, userID, nodeID string) (*model.Credential, error) {
	var cred model.Credential
	tx := s.db.WithContext(ctx).
		Where("user_id = ? AND node_id = ? AND status <> ?", userID, nodeID, model.CredentialStatusRevoked).
		First(&cred)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &cred, nil
}

// ListLiveByUser returns all non-revoked credentials of a user.
func (s *CredentialsStore) ListLiveByUser(ctx context.Context, userID string) ([]model.Credential, error) {
	var creds []model.Credential
	tx := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, model.CredentialStatusRevoked).
		Order("created_at").
		Find(&creds)
	return creds, translate(tx.Error)
}

// ListUnresolvedByNode returns every credential on the node that is not
// in a terminal-confirmed state.
func (s *CredentialsStore) ListUnresolvedByNode(ctx context.Context, nodeID string) ([]model.Credential, error) {
	var creds []model.Credential
	tx := s.db.WithContext(ctx).
		Where("node_id = ? AND status <> ?", nodeID, model.CredentialStatusRevoked).
		Order("created_at").
		Find(&creds)
	return creds, translate(tx.Error)
}

// ListOrphaned returns active or failed credentials whose user has no
// active subscription.
func (s *CredentialsStore) ListOrphaned(ctx context.Context, limit int) ([]model.Credential, error) {
	var creds []model.Credential
	q := s.db.WithContext(ctx).
		Where("status IN ?", []model.CredentialStatus{
			model.CredentialStatusActive,
			model.CredentialStatusFailed,
		}).
		Where("NOT EXISTS (SELECT 1 FROM subscriptions"+
			" WHERE subscriptions.user_id = credentials.user_id AND subscriptions.status = ?)",
			model.SubscriptionStatusActive).
		Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	tx := q.Find(&creds)
	return creds, translate(tx.Error)
}

// Activate moves the credential from the given status to active and
// stores the access token.
func (s *CredentialsStore) Activate(ctx context.Context, credentialID, accessToken string, from model.CredentialStatus) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Credential{}).
		Where("credential_id = ? AND status = ?", credentialID, from).
		Updates(map[string]interface{}{
			"status":       model.CredentialStatusActive,
			"access_token": accessToken,
		})
	return casResult(tx)
}

// Fail moves the credential from pending to failed.
func (s *CredentialsStore) Fail(ctx context.Context, credentialID string) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Credential{}).
		Where("credential_id = ? AND status = ?", credentialID, model.CredentialStatusPending).
		Update("status", model.CredentialStatusFailed)
	return casResult(tx)
}

// Revoke moves any non-revoked credential to revoked.
func (s *CredentialsStore) Revoke(ctx context.Context, credentialID, reason string) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Credential{}).
		Where("credential_id = ? AND status <> ?", credentialID, model.CredentialStatusRevoked).
		Updates(map[string]interface{}{
			"status":        model.CredentialStatusRevoked,
			"revoke_reason": reason,
		})
	return casResult(tx)
}
