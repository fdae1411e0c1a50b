package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/mavrin/vpncore/pkg/audit"
	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// replaceAttempts bounds how often a payment retries the active-row
// swap when concurrent payments race on the same user.
const replaceAttempts = 3

// Revoker tears down a user's credentials when entitlement ends.
// Satisfied by lifecycle.Orchestrator.
type Revoker interface {
	RevokeAllForUser(ctx context.Context, userID, reason string) (int, error)
}

// Payment is an incoming payment notification, typically a provider
// webhook. IdempotencyKey is the provider's event ID.
type Payment struct {
	UserID         string
	Username       string
	IdempotencyKey string
	Amount         float64
	Method         string
	Days           int
	PlanType       string
}

// Ledger manages subscription entitlement.
type Ledger struct {
	users   store.UsersStore
	subs    store.SubscriptionsStore
	revoker Revoker
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger.
func New(users store.UsersStore, subs store.SubscriptionsStore, revoker Revoker, logger zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		users:   users,
		subs:    subs,
		revoker: revoker,
		logger:  logger.With().Str("component", "ledger").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordPayment applies a payment to the user's entitlement. A payment
// extends the current active period when one exists, otherwise it opens
// a new period starting now. The extended period is written as a new
// row and the old one marked superseded, so entitlement history stays
// append-only. Replayed webhooks return the current subscription with
// replayed set and change nothing.
func (l *Ledger) RecordPayment(ctx context.Context, p Payment) (sub *model.Subscription, replayed bool, err error) {
	if p.IdempotencyKey == "" {
		return nil, false, errors.New("payment idempotency key required")
	}
	if p.Days <= 0 {
		return nil, false, fmt.Errorf("payment must grant a positive number of days, got %d", p.Days)
	}

	if err := l.users.Ensure(ctx, p.UserID, p.Username); err != nil {
		return nil, false, err
	}

	record := &model.Payment{
		UserID:         p.UserID,
		IdempotencyKey: p.IdempotencyKey,
		Amount:         p.Amount,
		Method:         p.Method,
		Days:           p.Days,
	}
	if err := l.subs.CreatePayment(ctx, record); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, false, err
		}
		audit.Log(audit.PaymentEvent{
			UserID:         p.UserID,
			IdempotencyKey: p.IdempotencyKey,
			Method:         p.Method,
			Days:           p.Days,
			Replayed:       true,
		})
		l.logger.Info().
			Str("user", p.UserID).
			Str("key", p.IdempotencyKey).
			Msg("replayed payment ignored")
		current, err := l.subs.ActiveByUser(ctx, p.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, true, err
		}
		return current, true, nil
	}

	sub, err = l.extend(ctx, p)
	if err != nil {
		return nil, false, err
	}

	audit.Log(audit.PaymentEvent{
		UserID:         p.UserID,
		IdempotencyKey: p.IdempotencyKey,
		Method:         p.Method,
		Days:           p.Days,
	})
	l.logger.Info().
		Str("user", p.UserID).
		Str("key", p.IdempotencyKey).
		Int("days", p.Days).
		Time("end_at", sub.EndAt).
		Msg("payment recorded")
	return sub, false, nil
}

// extend swaps in the new entitlement period, retrying when concurrent
// payments for the same user race on the active row.
func (l *Ledger) extend(ctx context.Context, p Payment) (*model.Subscription, error) {
	var result *model.Subscription
	backoff := retry.WithMaxRetries(replaceAttempts, retry.NewConstant(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		now := l.now()
		current, err := l.subs.ActiveByUser(ctx, p.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		var supersededID uint
		startAt, base := now, now
		planType := p.PlanType
		if current != nil {
			supersededID = current.ID
			startAt = current.StartAt
			// Remaining time carries over; a payment mid-period lands on
			// top of the current end, never on top of now.
			if current.EndAt.After(base) {
				base = current.EndAt
			}
			if planType == "" {
				planType = current.PlanType
			}
		}

		next := &model.Subscription{
			UserID:   p.UserID,
			StartAt:  startAt,
			EndAt:    base.Add(time.Duration(p.Days) * 24 * time.Hour),
			PlanType: planType,
		}
		if err := l.subs.ReplaceActive(ctx, supersededID, next); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extend subscription for %s: %w", p.UserID, err)
	}
	return result, nil
}

// GetActive returns the user's active subscription, or ErrNotFound.
func (l *Ledger) GetActive(ctx context.Context, userID string) (*model.Subscription, error) {
	return l.subs.ActiveByUser(ctx, userID)
}

// History returns all subscription rows of a user, newest first.
func (l *Ledger) History(ctx context.Context, userID string) ([]model.Subscription, error) {
	return l.subs.ListByUser(ctx, userID)
}

// Cancel ends the user's active subscription immediately and revokes
// all their credentials. Unlike expiry, cancellation forfeits the
// remaining period.
func (l *Ledger) Cancel(ctx context.Context, userID string) error {
	current, err := l.subs.ActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := l.subs.Cancel(ctx, current.ID); err != nil && !errors.Is(err, store.ErrConflict) {
		return err
	}
	revoked, err := l.revoker.RevokeAllForUser(ctx, userID, "subscription cancelled")
	if err != nil {
		return fmt.Errorf("cancel %s: revoked %d credentials: %w", userID, revoked, err)
	}
	l.logger.Info().
		Str("user", userID).
		Uint("subscription", current.ID).
		Int("revoked", revoked).
		Msg("subscription cancelled")
	return nil
}

// DeactivateUser bans the user: the active subscription (if any) is
// cancelled, every credential revoked, and the user flagged so future
// payments for them still record but new credentials are refused
// upstream.
func (l *Ledger) DeactivateUser(ctx context.Context, userID string) error {
	if err := l.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	if current, err := l.subs.ActiveByUser(ctx, userID); err == nil {
		if cerr := l.subs.Cancel(ctx, current.ID); cerr != nil && !errors.Is(cerr, store.ErrConflict) {
			return cerr
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	revoked, err := l.revoker.RevokeAllForUser(ctx, userID, "user deactivated")
	if err != nil {
		return fmt.Errorf("deactivate %s: revoked %d credentials: %w", userID, revoked, err)
	}
	l.logger.Info().Str("user", userID).Int("revoked", revoked).Msg("user deactivated")
	return nil
}
