package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mavrin/vpncore/pkg/audit"
	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/node"
	"github.com/mavrin/vpncore/pkg/store"
)

const defaultNodeTimeout = 15 * time.Second
const defaultStaleAfter = 5 * time.Minute

// Orchestrator drives credential state transitions against the node
// fleet. All methods are safe for concurrent use across processes: the
// store's conditional updates, not in-process locks, arbitrate races.
type Orchestrator struct {
	creds    store.CredentialsStore
	nodes    store.NodesStore
	subs     store.SubscriptionsStore
	ops      store.OperationsStore
	registry *node.Registry

	logger      zerolog.Logger
	nodeTimeout time.Duration
	staleAfter  time.Duration
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNodeTimeout bounds each individual node call.
func WithNodeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.nodeTimeout = d }
}

// WithStaleAfter sets how old a started operation or an untouched
// pending credential must be before reconciliation resolves it.
func WithStaleAfter(d time.Duration) Option {
	return func(o *Orchestrator) { o.staleAfter = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator over the given stores and adapter
// registry.
func New(
	creds store.CredentialsStore,
	nodes store.NodesStore,
	subs store.SubscriptionsStore,
	ops store.OperationsStore,
	registry *node.Registry,
	logger zerolog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		creds:       creds,
		nodes:       nodes,
		subs:        subs,
		ops:         ops,
		registry:    registry,
		logger:      logger.With().Str("component", "lifecycle").Logger(),
		nodeTimeout: defaultNodeTimeout,
		staleAfter:  defaultStaleAfter,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnsureActiveCredential returns an active credential for the user on
// the given node, provisioning one if needed. An empty nodeID lets the
// orchestrator pick the least-loaded healthy node. Calls replayed under
// the same idempotency key converge on the same credential.
func (o *Orchestrator) EnsureActiveCredential(ctx context.Context, userID, nodeID, idempotencyKey string) (*model.Credential, error) {
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key required")
	}

	sub, err := o.subs.ActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotEntitled
		}
		return nil, err
	}
	// The sweeper may lag behind the clock; a lapsed period does not
	// entitle even while its row is still active.
	if sub.ExpiredAt(o.now()) {
		return nil, ErrNotEntitled
	}

	// An existing non-revoked credential on the target node decides the
	// call before any node traffic happens.
	existing, err := o.findLive(ctx, userID, nodeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return o.converge(ctx, existing, sub, idempotencyKey)
	}

	var exclude []string
	for attempt := 0; attempt < 2; attempt++ {
		n, err := o.selectNode(ctx, nodeID, exclude)
		if err != nil {
			return nil, err
		}
		cred, err := o.provisionFresh(ctx, n, sub, userID, idempotencyKey)
		if err != nil && errors.Is(err, node.ErrCapacityExceeded) && nodeID == "" {
			// The node refused at admission; pick another and leave the
			// failed row behind for a later retry on that node.
			exclude = append(exclude, n.NodeID)
			continue
		}
		return cred, err
	}
	return nil, ErrNoCapacity
}

// findLive locates the user's non-revoked credential to converge on. An
// empty nodeID considers all nodes, preferring an already-active grant.
func (o *Orchestrator) findLive(ctx context.Context, userID, nodeID string) (*model.Credential, error) {
	if nodeID != "" {
		cred, err := o.creds.Live(ctx, userID, nodeID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return cred, err
	}
	creds, err := o.creds.ListLiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, nil
	}
	for i := range creds {
		if creds[i].Status == model.CredentialStatusActive {
			return &creds[i], nil
		}
	}
	return &creds[0], nil
}

// converge drives an existing non-revoked credential to active, or
// reports why it cannot yet.
func (o *Orchestrator) converge(ctx context.Context, cred *model.Credential, sub *model.Subscription, idempotencyKey string) (*model.Credential, error) {
	switch cred.Status {
	case model.CredentialStatusActive:
		return cred, nil

	case model.CredentialStatusPending:
		op, err := o.ops.ByKey(ctx, idempotencyKey)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// A different key owns this row, most likely a call that
				// is still mid-flight or crashed and awaits reconciliation.
				return nil, fmt.Errorf("credential %s is pending under another key: %w", cred.CredentialID, ErrInFlight)
			}
			return nil, err
		}
		switch op.Outcome {
		case model.OperationOutcomeSucceeded:
			return o.creds.ByID(ctx, op.CredentialID)
		case model.OperationOutcomeFailed:
			if err := o.ops.Restart(ctx, op.ID, cred.NodeID, cred.CredentialID); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return nil, fmt.Errorf("operation %s: %w", idempotencyKey, ErrInFlight)
				}
				return nil, err
			}
		}
		// Started under our own key: the previous attempt crashed or
		// timed out after recording the operation. Provision is
		// idempotent by ref, so calling again resolves either way. The
		// slot reserved by the original attempt is still held.
		return o.resume(ctx, cred, sub, op)

	case model.CredentialStatusFailed:
		return o.retryFailed(ctx, cred, sub, idempotencyKey)
	}
	return nil, fmt.Errorf("credential %s in unexpected status %s", cred.CredentialID, cred.Status)
}

// retryFailed re-runs provisioning for a credential whose last attempt
// definitively failed. The row is reused so the partial unique index
// never sees a second live row for the (user, node) pair.
func (o *Orchestrator) retryFailed(ctx context.Context, cred *model.Credential, sub *model.Subscription, idempotencyKey string) (*model.Credential, error) {
	op, err := o.ops.ByKey(ctx, idempotencyKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		op = &model.Operation{
			IdempotencyKey: idempotencyKey,
			Kind:           model.OperationKindProvision,
			UserID:         cred.UserID,
			NodeID:         cred.NodeID,
			CredentialID:   cred.CredentialID,
		}
		if err := o.ops.Create(ctx, op); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, fmt.Errorf("operation %s: %w", idempotencyKey, ErrInFlight)
			}
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		switch op.Outcome {
		case model.OperationOutcomeSucceeded:
			return o.creds.ByID(ctx, op.CredentialID)
		case model.OperationOutcomeFailed:
			if err := o.ops.Restart(ctx, op.ID, cred.NodeID, cred.CredentialID); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return nil, fmt.Errorf("operation %s: %w", idempotencyKey, ErrInFlight)
				}
				return nil, err
			}
		}
	}

	// A failed credential holds no capacity slot; take one back before
	// touching the node.
	if err := o.nodes.ReserveSlot(ctx, cred.NodeID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("node %s: %w", cred.NodeID, ErrNoCapacity)
		}
		return nil, err
	}
	n, err := o.nodes.ByID(ctx, cred.NodeID)
	if err != nil {
		o.releaseSlot(ctx, cred.NodeID)
		return nil, err
	}
	return o.callProvision(ctx, n, cred, op, sub.EndAt, model.CredentialStatusFailed)
}

// resume finishes a provision whose operation record exists but whose
// outcome was never written.
func (o *Orchestrator) resume(ctx context.Context, cred *model.Credential, sub *model.Subscription, op *model.Operation) (*model.Credential, error) {
	n, err := o.nodes.ByID(ctx, cred.NodeID)
	if err != nil {
		return nil, err
	}
	return o.callProvision(ctx, n, cred, op, sub.EndAt, model.CredentialStatusPending)
}

// selectNode resolves the target node: the caller's choice when named,
// otherwise the least-loaded healthy node with spare capacity.
func (o *Orchestrator) selectNode(ctx context.Context, nodeID string, exclude []string) (*model.Node, error) {
	if nodeID != "" {
		n, err := o.nodes.ByID(ctx, nodeID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("node %s: %w", nodeID, err)
		}
		return n, err
	}
	n, err := o.nodes.PickAvailable(ctx, exclude)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoCapacity
	}
	return n, err
}

// provisionFresh reserves capacity, creates the pending row and the
// operation record, then calls the node.
func (o *Orchestrator) provisionFresh(ctx context.Context, n *model.Node, sub *model.Subscription, userID, idempotencyKey string) (*model.Credential, error) {
	if err := o.nodes.ReserveSlot(ctx, n.NodeID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("node %s: %w", n.NodeID, node.ErrCapacityExceeded)
		}
		return nil, err
	}

	cred := &model.Credential{
		CredentialID: uuid.NewString(),
		UserID:       userID,
		NodeID:       n.NodeID,
		Status:       model.CredentialStatusPending,
	}
	// The node-side client identity is fixed at creation so a crashed
	// provision can still be located on the node.
	cred.NodeRef = cred.CredentialID
	if err := o.creds.CreatePending(ctx, cred); err != nil {
		o.releaseSlot(ctx, n.NodeID)
		if errors.Is(err, store.ErrConflict) {
			// A concurrent call created the live row first; that call
			// owns the node traffic.
			return nil, fmt.Errorf("credential for %s on node %s: %w", userID, n.NodeID, ErrInFlight)
		}
		return nil, err
	}

	op := &model.Operation{
		IdempotencyKey: idempotencyKey,
		Kind:           model.OperationKindProvision,
		UserID:         userID,
		NodeID:         n.NodeID,
		CredentialID:   cred.CredentialID,
	}
	if err := o.ops.Create(ctx, op); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			o.abandonPending(ctx, cred)
			return nil, err
		}
		prior, berr := o.ops.ByKey(ctx, idempotencyKey)
		if berr != nil {
			o.abandonPending(ctx, cred)
			return nil, berr
		}
		switch prior.Outcome {
		case model.OperationOutcomeSucceeded:
			// Replay of a finished call; discard the fresh row.
			o.abandonPending(ctx, cred)
			return o.creds.ByID(ctx, prior.CredentialID)
		case model.OperationOutcomeStarted:
			o.abandonPending(ctx, cred)
			return nil, fmt.Errorf("operation %s: %w", idempotencyKey, ErrInFlight)
		case model.OperationOutcomeFailed:
			if rerr := o.ops.Restart(ctx, prior.ID, n.NodeID, cred.CredentialID); rerr != nil {
				o.abandonPending(ctx, cred)
				if errors.Is(rerr, store.ErrConflict) {
					return nil, fmt.Errorf("operation %s: %w", idempotencyKey, ErrInFlight)
				}
				return nil, rerr
			}
			op = prior
			op.NodeID = n.NodeID
			op.CredentialID = cred.CredentialID
		}
	}

	return o.callProvision(ctx, n, cred, op, sub.EndAt, model.CredentialStatusPending)
}

// abandonPending retires a pending row that never reached the node and
// returns its capacity slot.
func (o *Orchestrator) abandonPending(ctx context.Context, cred *model.Credential) {
	if err := o.creds.Revoke(ctx, cred.CredentialID, "abandoned before node call"); err != nil && !errors.Is(err, store.ErrConflict) {
		o.logger.Error().Err(err).Str("credential", cred.CredentialID).Msg("failed to abandon pending credential")
	}
	o.releaseSlot(ctx, cred.NodeID)
}

// callProvision performs the node call and settles the store from its
// outcome. A timeout leaves the operation started, the credential
// pending and the slot held; reconciliation resolves them against node
// truth.
func (o *Orchestrator) callProvision(ctx context.Context, n *model.Node, cred *model.Credential, op *model.Operation, expireAt time.Time, from model.CredentialStatus) (*model.Credential, error) {
	adapter, err := o.registry.Get(n.NodeID)
	if err != nil {
		o.settleProvisionFailure(ctx, n.NodeID, cred, op, from, err)
		return nil, fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}

	nctx, cancel := context.WithTimeout(ctx, o.nodeTimeout)
	defer cancel()
	res, perr := adapter.Provision(nctx, node.ProvisionRequest{
		UserID:   cred.UserID,
		Ref:      cred.NodeRef,
		ExpireAt: expireAt,
	})
	if perr != nil {
		if nctx.Err() != nil {
			// Indeterminate: the grant may exist on the node.
			o.logger.Warn().
				Str("node", n.NodeID).
				Str("credential", cred.CredentialID).
				Err(perr).
				Msg("provision timed out, leaving operation for reconciliation")
			return nil, fmt.Errorf("node %s: %w", n.NodeID, perr)
		}
		o.settleProvisionFailure(ctx, n.NodeID, cred, op, from, perr)
		if errors.Is(perr, node.ErrCapacityExceeded) {
			return nil, fmt.Errorf("node %s: %w", n.NodeID, perr)
		}
		return nil, fmt.Errorf("node %s: %w: %w", n.NodeID, ErrProvisionFailed, perr)
	}

	if err := o.creds.Activate(ctx, cred.CredentialID, res.AccessToken, from); err != nil && !errors.Is(err, store.ErrConflict) {
		return nil, err
	}
	if err := o.ops.Finish(ctx, op.ID, model.OperationOutcomeSucceeded, "", cred.CredentialID); err != nil && !errors.Is(err, store.ErrConflict) {
		o.logger.Error().Err(err).Uint("operation", op.ID).Msg("failed to finish operation")
	}
	audit.Log(audit.ProvisionEvent{
		UserID:       cred.UserID,
		NodeID:       n.NodeID,
		CredentialID: cred.CredentialID,
		Success:      true,
	})
	o.logger.Info().
		Str("user", cred.UserID).
		Str("node", n.NodeID).
		Str("credential", cred.CredentialID).
		Msg("credential provisioned")
	return o.creds.ByID(ctx, cred.CredentialID)
}

// settleProvisionFailure records a definite node refusal: the
// credential moves to failed, the slot is returned and the operation
// finishes failed.
func (o *Orchestrator) settleProvisionFailure(ctx context.Context, nodeID string, cred *model.Credential, op *model.Operation, from model.CredentialStatus, cause error) {
	if from == model.CredentialStatusPending {
		if err := o.creds.Fail(ctx, cred.CredentialID); err != nil && !errors.Is(err, store.ErrConflict) {
			o.logger.Error().Err(err).Str("credential", cred.CredentialID).Msg("failed to mark credential failed")
		}
	}
	o.releaseSlot(ctx, nodeID)
	if err := o.ops.Finish(ctx, op.ID, model.OperationOutcomeFailed, cause.Error(), cred.CredentialID); err != nil && !errors.Is(err, store.ErrConflict) {
		o.logger.Error().Err(err).Uint("operation", op.ID).Msg("failed to finish operation")
	}
	audit.Log(audit.ProvisionEvent{
		UserID:       cred.UserID,
		NodeID:       nodeID,
		CredentialID: cred.CredentialID,
		Success:      false,
		ErrorMessage: cause.Error(),
	})
}

// RevokeCredential removes the grant from the node and marks the
// credential revoked. Revoking an already-revoked credential is a
// no-op. The node is always called before the store moves, so a revoked
// row never hides a live grant.
func (o *Orchestrator) RevokeCredential(ctx context.Context, credentialID, reason string) error {
	cred, err := o.creds.ByID(ctx, credentialID)
	if err != nil {
		return err
	}
	if cred.Status == model.CredentialStatusRevoked {
		return nil
	}

	// Revocations derive their key from the credential, so retries and
	// concurrent callers share one operation record.
	idempotencyKey := "revoke:" + credentialID
	op := &model.Operation{
		IdempotencyKey: idempotencyKey,
		Kind:           model.OperationKindRevoke,
		UserID:         cred.UserID,
		NodeID:         cred.NodeID,
		CredentialID:   credentialID,
	}
	if err := o.ops.Create(ctx, op); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		prior, berr := o.ops.ByKey(ctx, idempotencyKey)
		if berr != nil {
			return berr
		}
		switch prior.Outcome {
		case model.OperationOutcomeSucceeded:
			// Node-side removal already confirmed; settle the row.
			return o.settleRevoked(ctx, cred, reason)
		case model.OperationOutcomeFailed:
			if rerr := o.ops.Restart(ctx, prior.ID, cred.NodeID, credentialID); rerr != nil {
				if errors.Is(rerr, store.ErrConflict) {
					return fmt.Errorf("operation %s: %w", idempotencyKey, ErrInFlight)
				}
				return rerr
			}
		}
		op = prior
	}

	adapter, err := o.registry.Get(cred.NodeID)
	if err != nil {
		if ferr := o.ops.Finish(ctx, op.ID, model.OperationOutcomeFailed, err.Error(), credentialID); ferr != nil && !errors.Is(ferr, store.ErrConflict) {
			o.logger.Error().Err(ferr).Uint("operation", op.ID).Msg("failed to finish operation")
		}
		return err
	}
	nctx, cancel := context.WithTimeout(ctx, o.nodeTimeout)
	defer cancel()
	if rerr := adapter.Revoke(nctx, cred.NodeRef); rerr != nil {
		if nctx.Err() == nil {
			if ferr := o.ops.Finish(ctx, op.ID, model.OperationOutcomeFailed, rerr.Error(), credentialID); ferr != nil && !errors.Is(ferr, store.ErrConflict) {
				o.logger.Error().Err(ferr).Uint("operation", op.ID).Msg("failed to finish operation")
			}
		}
		audit.Log(audit.RevokeEvent{
			UserID:       cred.UserID,
			NodeID:       cred.NodeID,
			CredentialID: credentialID,
			Reason:       reason,
			Success:      false,
			ErrorMessage: rerr.Error(),
		})
		return fmt.Errorf("node %s: %w", cred.NodeID, rerr)
	}

	if err := o.settleRevoked(ctx, cred, reason); err != nil {
		return err
	}
	if err := o.ops.Finish(ctx, op.ID, model.OperationOutcomeSucceeded, "", credentialID); err != nil && !errors.Is(err, store.ErrConflict) {
		o.logger.Error().Err(err).Uint("operation", op.ID).Msg("failed to finish operation")
	}
	audit.Log(audit.RevokeEvent{
		UserID:       cred.UserID,
		NodeID:       cred.NodeID,
		CredentialID: credentialID,
		Reason:       reason,
		Success:      true,
	})
	o.logger.Info().
		Str("user", cred.UserID).
		Str("node", cred.NodeID).
		Str("credential", credentialID).
		Str("reason", reason).
		Msg("credential revoked")
	return nil
}

// settleRevoked moves the store row to revoked and returns the slot the
// credential held, if any. Losing the compare-and-set means a racer
// settled it first, which is success.
func (o *Orchestrator) settleRevoked(ctx context.Context, cred *model.Credential, reason string) error {
	held := cred.Status == model.CredentialStatusPending || cred.Status == model.CredentialStatusActive
	if err := o.creds.Revoke(ctx, cred.CredentialID, reason); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		held = false
	}
	if held {
		o.releaseSlot(ctx, cred.NodeID)
	}
	return nil
}

// RevokeAllForUser revokes every non-revoked credential of the user.
// Returns how many were revoked; node errors on individual credentials
// are joined, not short-circuited.
func (o *Orchestrator) RevokeAllForUser(ctx context.Context, userID, reason string) (int, error) {
	creds, err := o.creds.ListLiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	var revoked int
	var errs []error
	for i := range creds {
		if err := o.RevokeCredential(ctx, creds[i].CredentialID, reason); err != nil {
			errs = append(errs, fmt.Errorf("credential %s: %w", creds[i].CredentialID, err))
			continue
		}
		revoked++
	}
	return revoked, errors.Join(errs...)
}

func (o *Orchestrator) releaseSlot(ctx context.Context, nodeID string) {
	if err := o.nodes.ReleaseSlot(ctx, nodeID); err != nil {
		o.logger.Error().Err(err).Str("node", nodeID).Msg("failed to release capacity slot")
	}
}
