package endpoints

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mavrin/vpncore/pkg/ledger"
	"github.com/mavrin/vpncore/pkg/lifecycle"
	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) EnsureActiveCredential(ctx context.Context, userID, nodeID, idempotencyKey string) (*model.Credential, error) {
	args := m.Called(ctx, userID, nodeID, idempotencyKey)
	cred, _ := args.Get(0).(*model.Credential)
	return cred, args.Error(1)
}

func (m *mockLifecycle) RevokeCredential(ctx context.Context, credentialID, reason string) error {
	args := m.Called(ctx, credentialID, reason)
	return args.Error(0)
}

func (m *mockLifecycle) ReconcileNode(ctx context.Context, nodeID string) (*lifecycle.ReconcileReport, error) {
	args := m.Called(ctx, nodeID)
	report, _ := args.Get(0).(*lifecycle.ReconcileReport)
	return report, args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) RecordPayment(ctx context.Context, p ledger.Payment) (*model.Subscription, bool, error) {
	args := m.Called(ctx, p)
	sub, _ := args.Get(0).(*model.Subscription)
	return sub, args.Bool(1), args.Error(2)
}

func (m *mockLedger) GetActive(ctx context.Context, userID string) (*model.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*model.Subscription)
	return sub, args.Error(1)
}

func (m *mockLedger) History(ctx context.Context, userID string) ([]model.Subscription, error) {
	args := m.Called(ctx, userID)
	subs, _ := args.Get(0).([]model.Subscription)
	return subs, args.Error(1)
}

// fakeCreds and fakeNodes stub only what the endpoints touch; the
// embedded nil interface panics on anything else.
type fakeCreds struct {
	store.CredentialsStore
	liveByUser []model.Credential
	err        error
}

func (f fakeCreds) ListLiveByUser(_ context.Context, _ string) ([]model.Credential, error) {
	return f.liveByUser, f.err
}

type fakeNodes struct {
	store.NodesStore
	nodes []model.Node
	err   error
}

func (f fakeNodes) List(_ context.Context) ([]model.Node, error) {
	return f.nodes, f.err
}
