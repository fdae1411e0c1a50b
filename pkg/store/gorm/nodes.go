package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// Ensure NodesStore implements store.NodesStore
var _ store.NodesStore = (*NodesStore)(nil)

// NodesStore implements store.NodesStore using GORM
type NodesStore struct {
	db *gorm.DB
}

// NewNodesStore creates a new NodesStore
func NewNodesStore(db *gorm.DB) *NodesStore {
	return &NodesStore{db: db}
}

// Upsert creates or updates a node from inventory. active_count is
// deliberately excluded from the update set: slot accounting belongs to
// the lifecycle, not to inventory sync.
func (s *NodesStore) Upsert(ctx context.Context, n *model.Node) error {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "node_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"adapter", "url", "inbound_id", "capacity", "updated_at",
		}),
	}).Create(n)
	return translate(tx.Error)
}

// ByID fetches a node.
func (s *NodesStore) ByID(ctx context.Context, nodeID string) (*model.Node, error) {
	var n model.Node
	tx := s.db.WithContext(ctx).Where("node_id = ?", nodeID).First(&n)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &n, nil
}

// List returns all nodes ordered by ID.
func (s *NodesStore) List(ctx context.Context) ([]model.Node, error) {
	var nodes []model.Node
	tx := s.db.WithContext(ctx).Order("node_id").Find(&nodes)
	return nodes, translate(tx.Error)
}

// PickAvailable returns the least-loaded healthy node with spare
// capacity, skipping the excluded IDs.
func (s *NodesStore) PickAvailable(ctx context.Context, exclude []string) (*model.Node, error) {
	var n model.Node
	q := s.db.WithContext(ctx).
		Where("health = ? AND active_count < capacity", model.NodeHealthHealthy)
	if len(exclude) > 0 {
		q = q.Where("node_id NOT IN ?", exclude)
	}
	tx := q.Order("active_count asc").First(&n)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &n, nil
}

// ReserveSlot increments active_count only while the node stays healthy
// and under capacity. The WHERE clause is the capacity bound; two
// concurrent reservations for the last slot cannot both succeed.
func (s *NodesStore) ReserveSlot(ctx context.Context, nodeID string) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("node_id = ? AND health = ? AND active_count < capacity", nodeID, model.NodeHealthHealthy).
		Update("active_count", gorm.Expr("active_count + 1"))
	return casResult(tx)
}

// ReleaseSlot decrements active_count, never below zero.
func (s *NodesStore) ReleaseSlot(ctx context.Context, nodeID string) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("node_id = ? AND active_count > 0", nodeID).
		Update("active_count", gorm.Expr("active_count - 1"))
	if tx.Error != nil {
		return translate(tx.Error)
	}
	// Releasing an already-empty node is a no-op, not a conflict.
	return nil
}

// SetHealth updates the node's health and stamps last_seen_at.
func (s *NodesStore) SetHealth(ctx context.Context, nodeID string, health model.NodeHealth) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("node_id = ?", nodeID).
		Updates(map[string]interface{}{
			"health":       health,
			"last_seen_at": time.Now().UTC(),
		})
	return casResult(tx)
}
