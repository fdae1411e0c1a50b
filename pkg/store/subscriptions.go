package store

import (
	"context"
	"time"

	"github.com/mavrin/vpncore/pkg/model"
)

// SubscriptionsStore abstracts subscription and payment persistence.
// The at-most-one-active-per-user invariant is enforced by a partial
// unique index; ReplaceActive supersedes and inserts in one transaction
// so no observer ever sees zero or two active rows for a paying user.
type SubscriptionsStore interface {
	// ActiveByUser returns the user's active subscription.
	ActiveByUser(ctx context.Context, userID string) (*model.Subscription, error)

	// ListByUser returns all subscription rows for a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Subscription, error)

	// ReplaceActive inserts sub as the new active subscription, marking
	// the row with supersededID (when non-zero) superseded in the same
	// transaction. ErrConflict if the superseded row is no longer active
	// or another active row appeared concurrently.
	ReplaceActive(ctx context.Context, supersededID uint, sub *model.Subscription) error

	// ClaimExpired moves an active subscription whose period has ended to
	// expired. This is the compare-and-set that lets overlapping sweeper
	// runs each process a row at most once. ErrConflict if already
	// claimed.
	ClaimExpired(ctx context.Context, subscriptionID uint) error

	// Cancel moves an active subscription to cancelled.
	Cancel(ctx context.Context, subscriptionID uint) error

	// ListExpired returns active subscriptions with end_at before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Subscription, error)

	// ListExpiringUnnotified returns active, un-notified subscriptions
	// ending before the deadline, for the expiry warning pass.
	ListExpiringUnnotified(ctx context.Context, deadline time.Time, limit int) ([]model.Subscription, error)

	// MarkNotified flags a subscription as warned. ErrConflict when a
	// concurrent pass already flagged it.
	MarkNotified(ctx context.Context, subscriptionID uint) error

	// CreatePayment records a payment webhook. ErrConflict on a replayed
	// idempotency key.
	CreatePayment(ctx context.Context, p *model.Payment) error
}
