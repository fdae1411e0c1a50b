package model

import "time"

//go:generate go run github.com/dmarkham/enumer -type SubscriptionStatus -trimprefix SubscriptionStatus -transform lower -sql -yaml -output subscription_status.gen.go

// SubscriptionStatus is the lifecycle state of a subscription period.
type SubscriptionStatus int

const (
	SubscriptionStatusActive SubscriptionStatus = iota
	SubscriptionStatusExpired
	SubscriptionStatusCancelled
	// SubscriptionStatusSuperseded marks a row replaced by a later payment
	// that merged or extended the period. Superseded rows are history only
	// and are never returned by GetActive.
	SubscriptionStatusSuperseded
)

// Subscription represents one entitlement period for a user. A user may
// accumulate many rows over time but holds at most one in the active
// status at any instant, enforced by a partial unique index on user_id.
type Subscription struct {
	ID        uint               `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string             `gorm:"column:user_id;index"`
	Status    SubscriptionStatus `gorm:"column:status"`
	StartAt   time.Time          `gorm:"column:start_at"`
	EndAt     time.Time          `gorm:"column:end_at"`
	PlanType  string             `gorm:"column:plan_type"`
	Notified  bool               `gorm:"column:notified"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// ExpiredAt reports whether the period has ended as of now. EndAt is
// inclusive: the subscription is still good at the exact instant EndAt.
func (s *Subscription) ExpiredAt(now time.Time) bool {
	return s.EndAt.Before(now)
}

// Payment is the dedup log for incoming payment webhooks. The provider
// event ID is used as the idempotency key; a replayed webhook hits the
// unique index and is dropped without touching subscriptions.
type Payment struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID         string    `gorm:"column:user_id;index"`
	IdempotencyKey string    `gorm:"column:idempotency_key;uniqueIndex"`
	Amount         float64   `gorm:"column:amount"`
	Method         string    `gorm:"column:method"`
	Days           int       `gorm:"column:days"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
