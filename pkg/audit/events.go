package audit

import "fmt"

// ProvisionEvent records a credential provisioning attempt.
type ProvisionEvent struct {
	UserID       string
	NodeID       string
	CredentialID string
	Success      bool
	ErrorMessage string
}

func (e ProvisionEvent) MessageID() string {
	return "provision"
}

func (e ProvisionEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("provisioned credential %s for %s on node %s", e.CredentialID, e.UserID, e.NodeID)
	}
	msg := fmt.Sprintf("failed to provision credential for %s on node %s", e.UserID, e.NodeID)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e ProvisionEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e ProvisionEvent) Facility() int {
	return FacilityAuthPriv
}

func (e ProvisionEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"user":       e.UserID,
			"credential": e.CredentialID,
		},
		SDIDNode: {
			"id": e.NodeID,
		},
	}
}

// RevokeEvent records a credential revocation.
type RevokeEvent struct {
	UserID       string
	NodeID       string
	CredentialID string
	Reason       string
	Success      bool
	ErrorMessage string
}

func (e RevokeEvent) MessageID() string {
	return "revoke"
}

func (e RevokeEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("revoked credential %s for %s on node %s (%s)", e.CredentialID, e.UserID, e.NodeID, e.Reason)
	}
	msg := fmt.Sprintf("failed to revoke credential %s on node %s", e.CredentialID, e.NodeID)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e RevokeEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e RevokeEvent) Facility() int {
	return FacilityAuthPriv
}

func (e RevokeEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"user":       e.UserID,
			"credential": e.CredentialID,
		},
		SDIDAction: {
			"reason": e.Reason,
		},
		SDIDNode: {
			"id": e.NodeID,
		},
	}
}

// ReconcileEvent records a mismatch repaired by reconciliation. These
// are never user errors; they mark self-healing toward node truth.
type ReconcileEvent struct {
	NodeID       string
	CredentialID string
	FromStatus   string
	ToStatus     string
}

func (e ReconcileEvent) MessageID() string {
	return "reconcile"
}

func (e ReconcileEvent) Message() string {
	return fmt.Sprintf("reconciled credential %s on node %s: %s -> %s", e.CredentialID, e.NodeID, e.FromStatus, e.ToStatus)
}

func (e ReconcileEvent) Severity() Severity {
	return SeverityNotice
}

func (e ReconcileEvent) Facility() int {
	return FacilityDaemon
}

func (e ReconcileEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"credential": e.CredentialID,
		},
		SDIDAction: {
			"from": e.FromStatus,
			"to":   e.ToStatus,
		},
		SDIDNode: {
			"id": e.NodeID,
		},
	}
}

// PaymentEvent records an accepted (or replayed) payment webhook.
type PaymentEvent struct {
	UserID         string
	IdempotencyKey string
	Method         string
	Days           int
	Replayed       bool
}

func (e PaymentEvent) MessageID() string {
	return "payment"
}

func (e PaymentEvent) Message() string {
	if e.Replayed {
		return fmt.Sprintf("replayed payment %s for %s ignored", e.IdempotencyKey, e.UserID)
	}
	return fmt.Sprintf("recorded payment %s for %s: %d days via %s", e.IdempotencyKey, e.UserID, e.Days, e.Method)
}

func (e PaymentEvent) Severity() Severity {
	return SeverityInfo
}

func (e PaymentEvent) Facility() int {
	return FacilityAuthPriv
}

func (e PaymentEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"user": e.UserID,
		},
		SDIDPayment: {
			"key":    e.IdempotencyKey,
			"method": e.Method,
		},
	}
}

// ExpiryWarningEvent records that a subscription entered the warning
// window. A front-end turns these into user notifications.
type ExpiryWarningEvent struct {
	UserID         string
	SubscriptionID uint
	EndAt          string
}

func (e ExpiryWarningEvent) MessageID() string {
	return "expiry-warning"
}

func (e ExpiryWarningEvent) Message() string {
	return fmt.Sprintf("subscription %d of %s expires at %s", e.SubscriptionID, e.UserID, e.EndAt)
}

func (e ExpiryWarningEvent) Severity() Severity {
	return SeverityNotice
}

func (e ExpiryWarningEvent) Facility() int {
	return FacilityDaemon
}

func (e ExpiryWarningEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"user": e.UserID,
		},
		SDIDAction: {
			"end_at": e.EndAt,
		},
	}
}

// SweepEvent summarizes one expiry sweep run.
type SweepEvent struct {
	Claimed int
	Revoked int
	Errors  int
}

func (e SweepEvent) MessageID() string {
	return "sweep"
}

func (e SweepEvent) Message() string {
	return fmt.Sprintf("expiry sweep claimed %d subscriptions, revoked %d credentials, %d errors", e.Claimed, e.Revoked, e.Errors)
}

func (e SweepEvent) Severity() Severity {
	if e.Errors > 0 {
		return SeverityWarning
	}
	return SeverityInfo
}

func (e SweepEvent) Facility() int {
	return FacilityDaemon
}

func (e SweepEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAction: {
			"claimed": fmt.Sprintf("%d", e.Claimed),
			"revoked": fmt.Sprintf("%d", e.Revoked),
			"errors":  fmt.Sprintf("%d", e.Errors),
		},
	}
}
