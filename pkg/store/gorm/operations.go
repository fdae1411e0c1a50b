package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// Ensure OperationsStore implements store.OperationsStore
var _ store.OperationsStore = (*OperationsStore)(nil)

// OperationsStore implements store.OperationsStore using GORM
type OperationsStore struct {
	db *gorm.DB
}

// NewOperationsStore creates a new OperationsStore
func NewOperationsStore(db *gorm.DB) *OperationsStore {
	return &OperationsStore{db: db}
}

// Create inserts a new started operation. The unique index on
// idempotency_key turns a replayed key into ErrConflict.
func (s *OperationsStore) Create(ctx context.Context, op *model.Operation) error {
	op.Outcome = model.OperationOutcomeStarted
	return translate(s.db.WithContext(ctx).Create(op).Error)
}

// ByKey fetches the operation recorded under an idempotency key.
func (s *OperationsStore) ByKey(ctx context.Context, idempotencyKey string) (*model.Operation, error) {
	var op model.Operation
	tx := s.db.WithContext(ctx).
		Where("idempotency_key = ?", idempotencyKey).
		First(&op)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &op, nil
}

// Finish records the outcome of a started operation.
func (s *OperationsStore) Finish(ctx context.Context, id uint, outcome model.OperationOutcome, opErr string, credentialID string) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Operation{}).
		Where("id = ? AND outcome = ?", id, model.OperationOutcomeStarted).
		Updates(map[string]interface{}{
			"outcome":       outcome,
			"error":         opErr,
			"credential_id": credentialID,
		})
	return casResult(tx)
}

// Restart re-arms a failed operation for a retry under the same key.
func (s *OperationsStore) Restart(ctx context.Context, id uint, nodeID, credentialID string) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Operation{}).
		Where("id = ? AND outcome = ?", id, model.OperationOutcomeFailed).
		Updates(map[string]interface{}{
			"outcome":       model.OperationOutcomeStarted,
			"error":         "",
			"node_id":       nodeID,
			"credential_id": credentialID,
		})
	return casResult(tx)
}

// ListStaleStarted returns started operations last touched before the
// cutoff, optionally filtered by node. Judged on updated_at so a
// restarted operation is not immediately stale again.
func (s *OperationsStore) ListStaleStarted(ctx context.Context, nodeID string, olderThan time.Time) ([]model.Operation, error) {
	var ops []model.Operation
	q := s.db.WithContext(ctx).
		Where("outcome = ? AND updated_at < ?", model.OperationOutcomeStarted, olderThan)
	if nodeID != "" {
		q = q.Where("node_id = ?", nodeID)
	}
	tx := q.Order("updated_at").Find(&ops)
	return ops, translate(tx.Error)
}
