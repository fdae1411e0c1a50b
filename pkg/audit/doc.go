// Package audit provides audit logging for vpncore operations.
//
// This package implements structured audit logging for lifecycle
// operations: provisioning and revoking credentials, reconciliation
// repairs, accepted payments, and expiry sweeps.
//
// Events are written as RFC5424 syslog lines and, when
// AUDIT_DATABASE_URL is set, persisted to the audit_events table.
//
// # Usage
//
//	audit.Log(audit.RevokeEvent{
//	    UserID:       userID,
//	    NodeID:       nodeID,
//	    CredentialID: credentialID,
//	    Reason:       "subscription expired",
//	    Success:      true,
//	})
package audit
