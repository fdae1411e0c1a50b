package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mavrin/vpncore/pkg/audit"
	"github.com/mavrin/vpncore/pkg/store"
)

const (
	defaultInterval    = 5 * time.Minute
	defaultWarningLead = 72 * time.Hour
	defaultBatchSize   = 100
)

// Revoker tears down credentials. Satisfied by lifecycle.Orchestrator.
type Revoker interface {
	RevokeCredential(ctx context.Context, credentialID, reason string) error
	RevokeAllForUser(ctx context.Context, userID, reason string) (int, error)
}

// Report summarizes one sweep pass.
type Report struct {
	// Claimed is how many lapsed subscriptions this pass moved to
	// expired; concurrent passes never claim the same row.
	Claimed int `json:"claimed"`
	// Revoked is how many credentials were revoked.
	Revoked int `json:"revoked"`
	// Orphans is how many credentials without an active subscription a
	// previous pass left behind and this one retired.
	Orphans int `json:"orphans"`
	// Warned is how many subscriptions entered the warning window.
	Warned int `json:"warned"`
	// Errors counts revocations that failed and stay for the next pass.
	Errors int `json:"errors"`
}

// Sweeper periodically enforces expiry.
type Sweeper struct {
	subs    store.SubscriptionsStore
	creds   store.CredentialsStore
	revoker Revoker

	logger      zerolog.Logger
	interval    time.Duration
	warningLead time.Duration
	batchSize   int
	now         func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets the pause between passes.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// WithWarningLead sets how long before expiry a subscription is warned.
func WithWarningLead(d time.Duration) Option {
	return func(s *Sweeper) { s.warningLead = d }
}

// WithBatchSize bounds how many rows one pass processes per stage.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) { s.batchSize = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a Sweeper.
func New(subs store.SubscriptionsStore, creds store.CredentialsStore, revoker Revoker, logger zerolog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		subs:        subs,
		creds:       creds,
		revoker:     revoker,
		logger:      logger.With().Str("component", "sweeper").Logger(),
		interval:    defaultInterval,
		warningLead: defaultWarningLead,
		batchSize:   defaultBatchSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs passes until the context is cancelled. The first pass
// starts immediately.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Run(ctx); err != nil {
			s.logger.Error().Err(err).Msg("sweep pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Run executes one pass: claim lapsed subscriptions, revoke their
// credentials, retire orphans, then warn soon-to-expire subscriptions.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	now := s.now()

	expired, err := s.subs.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		return nil, err
	}
	for i := range expired {
		sub := &expired[i]
		if err := s.subs.ClaimExpired(ctx, sub.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Another pass claimed it first.
				continue
			}
			return report, err
		}
		report.Claimed++

		revoked, err := s.revoker.RevokeAllForUser(ctx, sub.UserID, "subscription expired")
		report.Revoked += revoked
		if err != nil {
			// The subscription stays expired; the orphan stage of a
			// later pass finishes the revocation.
			report.Errors++
			s.logger.Warn().Err(err).
				Str("user", sub.UserID).
				Uint("subscription", sub.ID).
				Msg("revocation incomplete after expiry")
		}
	}

	orphans, err := s.creds.ListOrphaned(ctx, s.batchSize)
	if err != nil {
		return report, err
	}
	for i := range orphans {
		if err := s.revoker.RevokeCredential(ctx, orphans[i].CredentialID, "subscription expired"); err != nil {
			report.Errors++
			s.logger.Warn().Err(err).
				Str("credential", orphans[i].CredentialID).
				Msg("failed to revoke orphaned credential")
			continue
		}
		report.Orphans++
		report.Revoked++
	}

	warned, err := s.warn(ctx, now)
	if err != nil {
		return report, err
	}
	report.Warned = warned

	audit.Log(audit.SweepEvent{
		Claimed: report.Claimed,
		Revoked: report.Revoked,
		Errors:  report.Errors,
	})
	s.logger.Info().
		Int("claimed", report.Claimed).
		Int("revoked", report.Revoked).
		Int("orphans", report.Orphans).
		Int("warned", report.Warned).
		Int("errors", report.Errors).
		Msg("sweep pass finished")
	return report, nil
}

// warn flags subscriptions inside the warning window exactly once.
func (s *Sweeper) warn(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.subs.ListExpiringUnnotified(ctx, now.Add(s.warningLead), s.batchSize)
	if err != nil {
		return 0, err
	}
	warned := 0
	for i := range subs {
		sub := &subs[i]
		if sub.ExpiredAt(now) {
			// Already lapsed; the expiry stage owns it.
			continue
		}
		if err := s.subs.MarkNotified(ctx, sub.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return warned, err
		}
		audit.Log(audit.ExpiryWarningEvent{
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			EndAt:          sub.EndAt.UTC().Format(time.RFC3339),
		})
		warned++
	}
	return warned, nil
}
