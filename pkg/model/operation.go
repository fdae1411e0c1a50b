package model

import "time"

//go:generate go run github.com/dmarkham/enumer -type OperationOutcome -trimprefix OperationOutcome -transform lower -sql -yaml -output operation_outcome.gen.go

// OperationOutcome is the recorded outcome of an orchestrator operation.
// A row stuck in started marks an operation that may or may not have
// reached the node; reconciliation resolves it by querying the node.
type OperationOutcome int

const (
	OperationOutcomeStarted OperationOutcome = iota
	OperationOutcomeSucceeded
	OperationOutcomeFailed
)

// Operation kinds.
const (
	OperationKindProvision = "provision"
	OperationKindRevoke    = "revoke"
)

// Operation is the append-only record of every provision and revoke
// attempt. It is written before the external node call and updated with
// the outcome after, so the window between node success and store commit
// is always bridged by a started row.
type Operation struct {
	ID             uint             `gorm:"column:id;primaryKey;autoIncrement"`
	IdempotencyKey string           `gorm:"column:idempotency_key;uniqueIndex"`
	Kind           string           `gorm:"column:kind"`
	UserID         string           `gorm:"column:user_id;index"`
	NodeID         string           `gorm:"column:node_id;index"`
	CredentialID   string           `gorm:"column:credential_id;index"`
	Outcome        OperationOutcome `gorm:"column:outcome"`
	Error          string           `gorm:"column:error"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Operation) TableName() string {
	return "operations"
}
