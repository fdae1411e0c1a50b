package store

import (
	"context"
	"time"

	"github.com/mavrin/vpncore/pkg/model"
)

// OperationsStore abstracts the append-only operation record. A record
// is created in the started outcome before the external node call and
// finished after, which is what allows crash recovery to detect
// in-flight operations.
type OperationsStore interface {
	// Create inserts a new started operation. ErrConflict when the
	// idempotency key was already used; callers then load the prior
	// record with ByKey and replay its outcome.
	Create(ctx context.Context, op *model.Operation) error

	// ByKey fetches the operation recorded under an idempotency key.
	ByKey(ctx context.Context, idempotencyKey string) (*model.Operation, error)

	// Finish records the outcome of a started operation. The credential
	// ID is re-recorded because provision learns it mid-operation.
	Finish(ctx context.Context, id uint, outcome model.OperationOutcome, opErr string, credentialID string) error

	// Restart re-arms a failed operation for a retry under the same key.
	// ErrConflict when the operation is not in the failed outcome.
	Restart(ctx context.Context, id uint, nodeID, credentialID string) error

	// ListStaleStarted returns started operations last touched before the
	// cutoff, optionally filtered by node. Staleness is judged on
	// updated_at so a restarted operation gets a fresh grace period.
	// These are the indeterminate operations reconciliation resolves
	// against node truth.
	ListStaleStarted(ctx context.Context, nodeID string, olderThan time.Time) ([]model.Operation, error)
}
