package store

import (
	"context"

	"github.com/mavrin/vpncore/pkg/model"
)

// NodesStore abstracts node inventory and capacity accounting. Capacity
// slots are reserved and released with conditional single-row updates so
// concurrent provisions cannot oversubscribe a node even across process
// instances.
type NodesStore interface {
	// Upsert creates or updates a node from inventory. ActiveCount is
	// never touched by an upsert; it belongs to the lifecycle.
	Upsert(ctx context.Context, n *model.Node) error

	// ByID fetches a node.
	ByID(ctx context.Context, nodeID string) (*model.Node, error)

	// List returns all nodes.
	List(ctx context.Context) ([]model.Node, error)

	// PickAvailable returns the least-loaded healthy node with spare
	// capacity, skipping the excluded IDs. ErrNotFound when none.
	PickAvailable(ctx context.Context, exclude []string) (*model.Node, error)

	// ReserveSlot increments active_count if the node is healthy and has
	// spare capacity. ErrConflict when the node is full or not healthy.
	ReserveSlot(ctx context.Context, nodeID string) error

	// ReleaseSlot decrements active_count, never below zero.
	ReleaseSlot(ctx context.Context, nodeID string) error

	// SetHealth updates the node's health and stamps last_seen_at.
	SetHealth(ctx context.Context, nodeID string, health model.NodeHealth) error
}
