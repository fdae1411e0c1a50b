package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// fakeLedgerStore backs both the users and subscriptions interfaces
// with the same compare-and-set rules the SQL layer enforces.
type fakeLedgerStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	subs     map[uint]*model.Subscription
	payments map[string]*model.Payment
	seq      uint
}

var (
	_ store.UsersStore         = (*fakeLedgerStore)(nil)
	_ store.SubscriptionsStore = (*fakeLedgerStore)(nil)
)

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		users:    make(map[string]*model.User),
		subs:     make(map[uint]*model.Subscription),
		payments: make(map[string]*model.Payment),
	}
}

func (f *fakeLedgerStore) Ensure(_ context.Context, userID, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Username = username
		return nil
	}
	f.users[userID] = &model.User{UserID: userID, Username: username}
	return nil
}

func (f *fakeLedgerStore) ByID(_ context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeLedgerStore) Deactivate(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Deactivated = true
	return nil
}

func (f *fakeLedgerStore) ActiveByUser(_ context.Context, userID string) (*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeLedgerStore) ListByUser(_ context.Context, userID string) ([]model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) ReplaceActive(_ context.Context, supersededID uint, sub *model.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if supersededID != 0 {
		old, ok := f.subs[supersededID]
		if !ok || old.Status != model.SubscriptionStatusActive {
			return store.ErrConflict
		}
		old.Status = model.SubscriptionStatusSuperseded
	}
	for _, s := range f.subs {
		if s.UserID == sub.UserID && s.Status == model.SubscriptionStatusActive {
			return store.ErrConflict
		}
	}
	f.seq++
	sub.ID = f.seq
	sub.Status = model.SubscriptionStatusActive
	cp := *sub
	f.subs[sub.ID] = &cp
	return nil
}

func (f *fakeLedgerStore) ClaimExpired(_ context.Context, subscriptionID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[subscriptionID]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return store.ErrConflict
	}
	s.Status = model.SubscriptionStatusExpired
	return nil
}

func (f *fakeLedgerStore) Cancel(_ context.Context, subscriptionID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[subscriptionID]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return store.ErrConflict
	}
	s.Status = model.SubscriptionStatusCancelled
	return nil
}

func (f *fakeLedgerStore) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Subscription, error) {
	return nil, nil
}

func (f *fakeLedgerStore) ListExpiringUnnotified(_ context.Context, deadline time.Time, limit int) ([]model.Subscription, error) {
	return nil, nil
}

func (f *fakeLedgerStore) MarkNotified(_ context.Context, subscriptionID uint) error {
	return nil
}

func (f *fakeLedgerStore) CreatePayment(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[p.IdempotencyKey]; ok {
		return store.ErrConflict
	}
	cp := *p
	f.payments[p.IdempotencyKey] = &cp
	return nil
}

func (f *fakeLedgerStore) statusOf(id uint) model.SubscriptionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[id].Status
}

type fakeRevoker struct {
	mu      sync.Mutex
	calls   []string
	reasons []string
	revoked int
	err     error
}

func (f *fakeRevoker) RevokeAllForUser(_ context.Context, userID, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	f.reasons = append(f.reasons, reason)
	return f.revoked, f.err
}

func newTestLedger(fs *fakeLedgerStore, rv *fakeRevoker, opts ...Option) *Ledger {
	return New(fs, fs, rv, zerolog.Nop(), opts...)
}

func TestRecordPayment_OpensNewPeriod(t *testing.T) {
	fs := newFakeLedgerStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLedger(fs, &fakeRevoker{}, WithClock(func() time.Time { return now }))

	sub, replayed, err := l.RecordPayment(context.Background(), Payment{
		UserID:         "alice",
		Username:       "alice_a",
		IdempotencyKey: "evt-1",
		Amount:         5,
		Method:         "stars",
		Days:           30,
		PlanType:       "monthly",
	})
	require.NoError(t, err)
	require.False(t, replayed)

	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, now, sub.StartAt)
	assert.Equal(t, now.Add(30*24*time.Hour), sub.EndAt)
	assert.Equal(t, "monthly", sub.PlanType)

	u, err := fs.ByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice_a", u.Username)
}

func TestRecordPayment_ExtendsFromCurrentEnd(t *testing.T) {
	fs := newFakeLedgerStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLedger(fs, &fakeRevoker{}, WithClock(func() time.Time { return now }))

	first, _, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", IdempotencyKey: "evt-1", Days: 30, Method: "stars", PlanType: "monthly",
	})
	require.NoError(t, err)

	// Paying mid-period stacks on top of the current end, not on now.
	second, _, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", IdempotencyKey: "evt-2", Days: 30, Method: "stars",
	})
	require.NoError(t, err)

	assert.Equal(t, first.EndAt.Add(30*24*time.Hour), second.EndAt)
	assert.Equal(t, first.StartAt, second.StartAt)
	assert.Equal(t, "monthly", second.PlanType)
	assert.Equal(t, model.SubscriptionStatusSuperseded, fs.statusOf(first.ID))
	assert.Equal(t, model.SubscriptionStatusActive, fs.statusOf(second.ID))
}

func TestRecordPayment_LapsedPeriodRestartsFromNow(t *testing.T) {
	fs := newFakeLedgerStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	l := newTestLedger(fs, &fakeRevoker{}, WithClock(func() time.Time { return clock }))

	_, _, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", IdempotencyKey: "evt-1", Days: 30, Method: "stars",
	})
	require.NoError(t, err)

	// The sweeper has not claimed the lapsed row yet when the next
	// payment arrives.
	clock = now.Add(45 * 24 * time.Hour)
	sub, _, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", IdempotencyKey: "evt-2", Days: 30, Method: "stars",
	})
	require.NoError(t, err)

	assert.Equal(t, clock.Add(30*24*time.Hour), sub.EndAt)
}

func TestRecordPayment_ReplayIsNoop(t *testing.T) {
	fs := newFakeLedgerStore()
	l := newTestLedger(fs, &fakeRevoker{})

	first, replayed, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", IdempotencyKey: "evt-1", Days: 30, Method: "stars",
	})
	require.NoError(t, err)
	require.False(t, replayed)

	second, replayed, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", IdempotencyKey: "evt-1", Days: 30, Method: "stars",
	})
	require.NoError(t, err)
	require.True(t, replayed)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.EndAt, second.EndAt)
}

func TestRecordPayment_Validation(t *testing.T) {
	l := newTestLedger(newFakeLedgerStore(), &fakeRevoker{})

	_, _, err := l.RecordPayment(context.Background(), Payment{UserID: "alice", Days: 30})
	require.Error(t, err)

	_, _, err = l.RecordPayment(context.Background(), Payment{UserID: "alice", IdempotencyKey: "evt-1", Days: 0})
	require.Error(t, err)
}

func TestRecordPayment_ConcurrentPaymentsBothCount(t *testing.T) {
	fs := newFakeLedgerStore()
	l := newTestLedger(fs, &fakeRevoker{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = l.RecordPayment(context.Background(), Payment{
				UserID:         "alice",
				IdempotencyKey: "evt-" + string(rune('a'+i)),
				Days:           30,
				Method:         "stars",
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	sub, err := l.GetActive(context.Background(), "alice")
	require.NoError(t, err)
	// Both payments landed: roughly sixty days from now remain.
	assert.InDelta(t, 60*24*time.Hour, time.Until(sub.EndAt), float64(time.Minute))
}

func TestCancel_RevokesCredentials(t *testing.T) {
	fs := newFakeLedgerStore()
	rv := &fakeRevoker{revoked: 2}
	l := newTestLedger(fs, rv)

	sub, _, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", IdempotencyKey: "evt-1", Days: 30, Method: "stars",
	})
	require.NoError(t, err)

	require.NoError(t, l.Cancel(context.Background(), "alice"))
	assert.Equal(t, model.SubscriptionStatusCancelled, fs.statusOf(sub.ID))
	require.Len(t, rv.calls, 1)
	assert.Equal(t, "alice", rv.calls[0])
	assert.Equal(t, "subscription cancelled", rv.reasons[0])

	_, err = l.GetActive(context.Background(), "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancel_NoActiveSubscription(t *testing.T) {
	l := newTestLedger(newFakeLedgerStore(), &fakeRevoker{})
	err := l.Cancel(context.Background(), "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeactivateUser(t *testing.T) {
	fs := newFakeLedgerStore()
	rv := &fakeRevoker{revoked: 1}
	l := newTestLedger(fs, rv)

	sub, _, err := l.RecordPayment(context.Background(), Payment{
		UserID: "alice", Username: "alice_a", IdempotencyKey: "evt-1", Days: 30, Method: "stars",
	})
	require.NoError(t, err)

	require.NoError(t, l.DeactivateUser(context.Background(), "alice"))

	u, err := fs.ByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, u.Deactivated)
	assert.Equal(t, model.SubscriptionStatusCancelled, fs.statusOf(sub.ID))
	require.Len(t, rv.calls, 1)
	assert.Equal(t, "user deactivated", rv.reasons[0])
}
