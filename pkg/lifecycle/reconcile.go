package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/mavrin/vpncore/pkg/audit"
	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/node"
	"github.com/mavrin/vpncore/pkg/store"
)

// ReconcileReport summarizes one reconciliation pass over a node.
type ReconcileReport struct {
	NodeID string `json:"node_id"`
	// Checked is how many credentials were queried on the node.
	Checked int `json:"checked"`
	// Repaired is how many store rows were moved to match node truth.
	Repaired int `json:"repaired"`
	// Skipped counts credentials too fresh to judge, typically still
	// mid-flight in another process.
	Skipped int `json:"skipped"`
	// Failures counts node queries that errored; those credentials stay
	// untouched until the next pass.
	Failures int `json:"failures"`
	// ResolvedOps is how many stale started operations were settled.
	ResolvedOps int `json:"resolved_ops"`
}

// ReconcileNode compares every unresolved credential on the node
// against the node's own state and repairs the store toward it. The
// node is the source of truth: the store only ever catches up, it never
// pushes changes during reconciliation. Also resolves stale started
// operations and refreshes the node's health.
func (o *Orchestrator) ReconcileNode(ctx context.Context, nodeID string) (*ReconcileReport, error) {
	adapter, err := o.registry.Get(nodeID)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{NodeID: nodeID}
	creds, err := o.creds.ListUnresolvedByNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	cutoff := o.now().Add(-o.staleAfter)
	reachable := false
	attempted := false
	for i := range creds {
		cred := &creds[i]
		if cred.Status == model.CredentialStatusPending && cred.UpdatedAt.After(cutoff) {
			// Fresh pending rows belong to a call that may still be in
			// flight somewhere.
			report.Skipped++
			continue
		}

		attempted = true
		res, qerr := o.queryNode(ctx, adapter, cred.NodeRef)
		if qerr != nil {
			report.Failures++
			o.logger.Warn().Err(qerr).
				Str("node", nodeID).
				Str("credential", cred.CredentialID).
				Msg("reconcile query failed")
			continue
		}
		reachable = true
		report.Checked++

		if repaired, rerr := o.repair(ctx, nodeID, cred, res); rerr != nil {
			report.Failures++
			o.logger.Error().Err(rerr).
				Str("node", nodeID).
				Str("credential", cred.CredentialID).
				Msg("reconcile repair failed")
		} else if repaired {
			report.Repaired++
		}
	}

	// With nothing to check, probe the node so health still refreshes.
	if !attempted {
		if _, qerr := o.queryNode(ctx, adapter, "health-probe"); qerr != nil {
			report.Failures++
		} else {
			reachable = true
		}
	}

	resolved, err := o.resolveStaleOps(ctx, nodeID, reachable)
	if err != nil {
		return report, err
	}
	report.ResolvedOps = resolved

	health := model.NodeHealthUnreachable
	if reachable {
		health = model.NodeHealthHealthy
	}
	if err := o.nodes.SetHealth(ctx, nodeID, health); err != nil {
		return report, err
	}
	o.logger.Info().
		Str("node", nodeID).
		Int("checked", report.Checked).
		Int("repaired", report.Repaired).
		Int("skipped", report.Skipped).
		Int("failures", report.Failures).
		Msg("reconcile pass finished")
	return report, nil
}

func (o *Orchestrator) queryNode(ctx context.Context, adapter node.Adapter, ref string) (*node.QueryResult, error) {
	nctx, cancel := context.WithTimeout(ctx, o.nodeTimeout)
	defer cancel()
	return adapter.Query(nctx, ref)
}

// repair moves one credential row toward what the node reported.
// Returns whether a transition happened. Lost compare-and-sets mean a
// racer repaired the row first and count as no-ops.
func (o *Orchestrator) repair(ctx context.Context, nodeID string, cred *model.Credential, res *node.QueryResult) (bool, error) {
	present := res.Status == node.RefActive

	switch cred.Status {
	case model.CredentialStatusPending:
		if present {
			// The crashed provision did reach the node; adopt the grant.
			if err := o.creds.Activate(ctx, cred.CredentialID, res.AccessToken, model.CredentialStatusPending); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return false, nil
				}
				return false, err
			}
			o.auditRepair(nodeID, cred, model.CredentialStatusActive)
			return true, nil
		}
		// The call never landed. Retire the row and its slot.
		if err := o.creds.Revoke(ctx, cred.CredentialID, "reconciled: absent on node"); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return false, nil
			}
			return false, err
		}
		o.releaseSlot(ctx, nodeID)
		o.auditRepair(nodeID, cred, model.CredentialStatusRevoked)
		return true, nil

	case model.CredentialStatusActive:
		if present {
			return false, nil
		}
		// The grant vanished out-of-band; record reality.
		if err := o.creds.Revoke(ctx, cred.CredentialID, "reconciled: removed on node"); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return false, nil
			}
			return false, err
		}
		o.releaseSlot(ctx, nodeID)
		o.auditRepair(nodeID, cred, model.CredentialStatusRevoked)
		return true, nil

	case model.CredentialStatusFailed:
		if !present {
			return false, nil
		}
		// The refusal was wrong or raced a success; the node holds a
		// live grant, so the store adopts it and re-accounts the slot.
		if err := o.nodes.ReserveSlot(ctx, nodeID); err != nil && !errors.Is(err, store.ErrConflict) {
			return false, err
		}
		if err := o.creds.Activate(ctx, cred.CredentialID, res.AccessToken, model.CredentialStatusFailed); err != nil {
			if errors.Is(err, store.ErrConflict) {
				o.releaseSlot(ctx, nodeID)
				return false, nil
			}
			return false, err
		}
		o.auditRepair(nodeID, cred, model.CredentialStatusActive)
		return true, nil
	}
	return false, nil
}

func (o *Orchestrator) auditRepair(nodeID string, cred *model.Credential, to model.CredentialStatus) {
	audit.Log(audit.ReconcileEvent{
		NodeID:       nodeID,
		CredentialID: cred.CredentialID,
		FromStatus:   cred.Status.String(),
		ToStatus:     to.String(),
	})
}

// resolveStaleOps settles started operations older than the stale
// cutoff from the current status of their credential. Operations whose
// credential is still indeterminate are left for the next pass.
func (o *Orchestrator) resolveStaleOps(ctx context.Context, nodeID string, reachable bool) (int, error) {
	if !reachable {
		return 0, nil
	}
	ops, err := o.ops.ListStaleStarted(ctx, nodeID, o.now().Add(-o.staleAfter))
	if err != nil {
		return 0, err
	}
	resolved := 0
	for i := range ops {
		op := &ops[i]
		if op.CredentialID == "" {
			continue
		}
		cred, err := o.creds.ByID(ctx, op.CredentialID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return resolved, err
		}

		var outcome model.OperationOutcome
		var opErr string
		switch {
		case op.Kind == model.OperationKindProvision && cred.Status == model.CredentialStatusActive:
			outcome = model.OperationOutcomeSucceeded
		case op.Kind == model.OperationKindProvision && cred.Status.Terminal():
			outcome = model.OperationOutcomeFailed
			opErr = fmt.Sprintf("credential %s", cred.Status)
		case op.Kind == model.OperationKindProvision && cred.Status == model.CredentialStatusFailed:
			outcome = model.OperationOutcomeFailed
			opErr = "provision failed"
		case op.Kind == model.OperationKindRevoke && cred.Status.Terminal():
			outcome = model.OperationOutcomeSucceeded
		default:
			// Still indeterminate.
			continue
		}
		if err := o.ops.Finish(ctx, op.ID, outcome, opErr, op.CredentialID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

// ReconcileAll runs a pass over every node with a registered adapter.
func (o *Orchestrator) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	var reports []ReconcileReport
	var errs []error
	for _, nodeID := range o.registry.NodeIDs() {
		report, err := o.ReconcileNode(ctx, nodeID)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", nodeID, err))
			continue
		}
		reports = append(reports, *report)
	}
	return reports, errors.Join(errs...)
}
