package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// Ensure SubscriptionsStore implements store.SubscriptionsStore
var _ store.SubscriptionsStore = (*SubscriptionsStore)(nil)

// SubscriptionsStore implements store.SubscriptionsStore using GORM
type SubscriptionsStore struct {
	db *gorm.DB
}

// NewSubscriptionsStore creates a new SubscriptionsStore
func NewSubscriptionsStore(db *gorm.DB) *SubscriptionsStore {
	return &SubscriptionsStore{db: db}
}

// ActiveByUser returns the user's active subscription.
func (s *SubscriptionsStore) ActiveByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	var sub model.Subscription
	tx := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionStatusActive).
		First(&sub)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &sub, nil
}

// ListByUser returns all subscription rows for a user, newest first.
func (s *SubscriptionsStore) ListByUser(ctx context.Context, userID string) ([]model.Subscription, error) {
	var subs []model.Subscription
	tx := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&subs)
	return subs, translate(tx.Error)
}

// ReplaceActive supersedes the prior active row (when supersededID is
// non-zero) and inserts the new active row in one transaction. The
// partial unique index on (user_id) WHERE status = 'active' backs this
// up: if a concurrent payment slipped in a new active row, the insert
// conflicts and the whole transaction rolls back with ErrConflict.
func (s *SubscriptionsStore) ReplaceActive(ctx context.Context, supersededID uint, sub *model.Subscription) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if supersededID != 0 {
			res := tx.Model(&model.Subscription{}).
				Where("id = ? AND status = ?", supersededID, model.SubscriptionStatusActive).
				Update("status", model.SubscriptionStatusSuperseded)
			if err := casResult(res); err != nil {
				return err
			}
		}
		sub.Status = model.SubscriptionStatusActive
		return tx.Create(sub).Error
	})
	return translate(err)
}

// ClaimExpired moves an active subscription to expired. Overlapping
// sweeps race on this update; only one wins the row.
func (s *SubscriptionsStore) ClaimExpired(ctx context.Context, subscriptionID uint) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubscriptionStatusActive).
		Update("status", model.SubscriptionStatusExpired)
	return casResult(tx)
}

// Cancel moves an active subscription to cancelled.
func (s *SubscriptionsStore) Cancel(ctx context.Context, subscriptionID uint) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubscriptionStatusActive).
		Update("status", model.SubscriptionStatusCancelled)
	return casResult(tx)
}

// ListExpired returns active subscriptions whose period ended before now.
func (s *SubscriptionsStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Subscription, error) {
	var subs []model.Subscription
	tx := s.db.WithContext(ctx).
		Where("status = ? AND end_at < ?", model.SubscriptionStatusActive, now).
		Order("end_at").
		Limit(limit).
		Find(&subs)
	return subs, translate(tx.Error)
}

// ListExpiringUnnotified returns active, un-notified subscriptions
// ending before the deadline.
func (s *SubscriptionsStore) ListExpiringUnnotified(ctx context.Context, deadline time.Time, limit int) ([]model.Subscription, error) {
	var subs []model.Subscription
	tx := s.db.WithContext(ctx).
		Where("status = ? AND notified = false AND end_at < ?", model.SubscriptionStatusActive, deadline).
		Order("end_at").
		Limit(limit).
		Find(&subs)
	return subs, translate(tx.Error)
}

// MarkNotified flags a subscription as warned.
func (s *SubscriptionsStore) MarkNotified(ctx context.Context, subscriptionID uint) error {
	tx := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND notified = false", subscriptionID).
		Update("notified", true)
	return casResult(tx)
}

// CreatePayment records a payment webhook. A replayed webhook hits the
// unique idempotency key index and surfaces ErrConflict.
func (s *SubscriptionsStore) CreatePayment(ctx context.Context, p *model.Payment) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}
