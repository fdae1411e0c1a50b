package model

import "time"

//go:generate go run github.com/dmarkham/enumer -type NodeHealth -trimprefix NodeHealth -transform lower -sql -yaml -output node_health.gen.go

// NodeHealth is the observed health of a VPN node.
type NodeHealth int

const (
	NodeHealthHealthy NodeHealth = iota
	NodeHealthDegraded
	NodeHealthUnreachable
)

// Node represents a single VPN endpoint. ActiveCount is the number of
// capacity slots currently reserved; it is only ever changed through
// conditional single-row updates so concurrent provisions cannot
// oversubscribe the node.
type Node struct {
	NodeID  string `gorm:"column:node_id;primaryKey"`
	Adapter string `gorm:"column:adapter"`
	// URL and InboundID locate the panel-side inbound this node
	// provisions clients on. Panel login secrets stay in the node
	// inventory file and never reach the database.
	URL         string     `gorm:"column:url"`
	InboundID   int        `gorm:"column:inbound_id"`
	Capacity    int        `gorm:"column:capacity"`
	ActiveCount int        `gorm:"column:active_count"`
	Health      NodeHealth `gorm:"column:health"`
	LastSeenAt  *time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Node) TableName() string {
	return "nodes"
}

// HasSpare reports whether the node can accept another credential.
func (n *Node) HasSpare() bool {
	return n.Health == NodeHealthHealthy && n.ActiveCount < n.Capacity
}
