package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/node"
	"github.com/mavrin/vpncore/pkg/store"
)

// memStore is an in-memory implementation of the store interfaces with
// the same compare-and-set semantics as the SQL layer, so concurrency
// tests exercise the real arbitration logic.
type memStore struct {
	mu       sync.Mutex
	creds    map[string]*model.Credential
	nodes    map[string]*model.Node
	subs     map[uint]*model.Subscription
	ops      map[string]*model.Operation
	payments map[string]*model.Payment
	opSeq    uint
	subSeq   uint
}

// CredentialsStore and NodesStore both declare a ByID method with
// different signatures, so the fake exposes them through thin facades.
type memCreds struct{ *memStore }
type memNodes struct{ *memStore }

var (
	_ store.CredentialsStore   = memCreds{}
	_ store.NodesStore         = memNodes{}
	_ store.SubscriptionsStore = (*memStore)(nil)
	_ store.OperationsStore    = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		creds:    make(map[string]*model.Credential),
		nodes:    make(map[string]*model.Node),
		subs:     make(map[uint]*model.Subscription),
		ops:      make(map[string]*model.Operation),
		payments: make(map[string]*model.Payment),
	}
}

func (m *memStore) addNode(nodeID string, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[nodeID] = &model.Node{
		NodeID:   nodeID,
		Adapter:  "fake",
		Capacity: capacity,
		Health:   model.NodeHealthHealthy,
	}
}

func (m *memStore) addActiveSub(userID string, endAt time.Time) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subSeq++
	m.subs[m.subSeq] = &model.Subscription{
		ID:     m.subSeq,
		UserID: userID,
		Status: model.SubscriptionStatusActive,
		EndAt:  endAt,
	}
	return m.subSeq
}

func (m *memStore) credential(id string) model.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.creds[id]
}

func (m *memStore) nodeActiveCount(nodeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[nodeID].ActiveCount
}

func (m *memStore) operation(key string) *model.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[key]
	if !ok {
		return nil
	}
	cp := *op
	return &cp
}

// CredentialsStore

func (m *memStore) CreatePending(_ context.Context, cred *model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.UserID == cred.UserID && c.NodeID == cred.NodeID && c.Status != model.CredentialStatusRevoked {
			return store.ErrConflict
		}
	}
	cred.Status = model.CredentialStatusPending
	cred.CreatedAt = time.Now()
	cred.UpdatedAt = cred.CreatedAt
	cp := *cred
	m.creds[cred.CredentialID] = &cp
	return nil
}

func (m memCreds) ByID(_ context.Context, credentialID string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) Live(_ context.Context, userID, nodeID string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.UserID == userID && c.NodeID == nodeID && c.Status != model.CredentialStatusRevoked {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListLiveByUser(_ context.Context, userID string) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Credential
	for _, c := range m.creds {
		if c.UserID == userID && c.Status != model.CredentialStatusRevoked {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CredentialID < out[j].CredentialID })
	return out, nil
}

func (m *memStore) ListUnresolvedByNode(_ context.Context, nodeID string) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Credential
	for _, c := range m.creds {
		if c.NodeID == nodeID && c.Status != model.CredentialStatusRevoked {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CredentialID < out[j].CredentialID })
	return out, nil
}

func (m *memStore) ListOrphaned(_ context.Context, limit int) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := make(map[string]bool)
	for _, s := range m.subs {
		if s.Status == model.SubscriptionStatusActive {
			active[s.UserID] = true
		}
	}
	var out []model.Credential
	for _, c := range m.creds {
		if active[c.UserID] {
			continue
		}
		if c.Status == model.CredentialStatusActive || c.Status == model.CredentialStatusFailed {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CredentialID < out[j].CredentialID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Activate(_ context.Context, credentialID, accessToken string, from model.CredentialStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok {
		return store.ErrNotFound
	}
	if c.Status != from {
		return store.ErrConflict
	}
	c.Status = model.CredentialStatusActive
	c.AccessToken = accessToken
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) Fail(_ context.Context, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok {
		return store.ErrNotFound
	}
	if c.Status != model.CredentialStatusPending {
		return store.ErrConflict
	}
	c.Status = model.CredentialStatusFailed
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) Revoke(_ context.Context, credentialID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok {
		return store.ErrNotFound
	}
	if c.Status == model.CredentialStatusRevoked {
		return store.ErrConflict
	}
	c.Status = model.CredentialStatusRevoked
	c.RevokeReason = reason
	c.UpdatedAt = time.Now()
	return nil
}

// NodesStore

func (m *memStore) Upsert(_ context.Context, n *model.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.nodes[n.NodeID]; ok {
		n.ActiveCount = existing.ActiveCount
	}
	cp := *n
	m.nodes[n.NodeID] = &cp
	return nil
}

func (m memNodes) ByID(_ context.Context, nodeID string) (*model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memStore) List(_ context.Context) ([]model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Node
	for _, n := range m.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

func (m *memStore) PickAvailable(_ context.Context, exclude []string) (*model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var best *model.Node
	for _, n := range m.nodes {
		if excluded[n.NodeID] || n.Health != model.NodeHealthHealthy || n.ActiveCount >= n.Capacity {
			continue
		}
		if best == nil || n.ActiveCount < best.ActiveCount ||
			(n.ActiveCount == best.ActiveCount && n.NodeID < best.NodeID) {
			best = n
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memStore) ReserveSlot(_ context.Context, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return store.ErrNotFound
	}
	if n.Health != model.NodeHealthHealthy || n.ActiveCount >= n.Capacity {
		return store.ErrConflict
	}
	n.ActiveCount++
	return nil
}

func (m *memStore) ReleaseSlot(_ context.Context, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return store.ErrNotFound
	}
	if n.ActiveCount > 0 {
		n.ActiveCount--
	}
	return nil
}

func (m *memStore) SetHealth(_ context.Context, nodeID string, health model.NodeHealth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return store.ErrNotFound
	}
	n.Health = health
	now := time.Now()
	n.LastSeenAt = &now
	return nil
}

// SubscriptionsStore

func (m *memStore) ActiveByUser(_ context.Context, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ReplaceActive(_ context.Context, supersededID uint, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if supersededID != 0 {
		old, ok := m.subs[supersededID]
		if !ok || old.Status != model.SubscriptionStatusActive {
			return store.ErrConflict
		}
		old.Status = model.SubscriptionStatusSuperseded
	}
	for _, s := range m.subs {
		if s.UserID == sub.UserID && s.Status == model.SubscriptionStatusActive {
			return store.ErrConflict
		}
	}
	m.subSeq++
	sub.ID = m.subSeq
	sub.Status = model.SubscriptionStatusActive
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *memStore) ClaimExpired(_ context.Context, subscriptionID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subscriptionID]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return store.ErrConflict
	}
	s.Status = model.SubscriptionStatusExpired
	return nil
}

func (m *memStore) Cancel(_ context.Context, subscriptionID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subscriptionID]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return store.ErrConflict
	}
	s.Status = model.SubscriptionStatusCancelled
	return nil
}

func (m *memStore) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		if s.Status == model.SubscriptionStatusActive && s.EndAt.Before(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListExpiringUnnotified(_ context.Context, deadline time.Time, limit int) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		if s.Status == model.SubscriptionStatusActive && !s.Notified && s.EndAt.Before(deadline) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkNotified(_ context.Context, subscriptionID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subscriptionID]
	if !ok || s.Notified {
		return store.ErrConflict
	}
	s.Notified = true
	return nil
}

func (m *memStore) CreatePayment(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.IdempotencyKey]; ok {
		return store.ErrConflict
	}
	cp := *p
	m.payments[p.IdempotencyKey] = &cp
	return nil
}

// OperationsStore

func (m *memStore) Create(_ context.Context, op *model.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ops[op.IdempotencyKey]; ok {
		return store.ErrConflict
	}
	m.opSeq++
	op.ID = m.opSeq
	op.Outcome = model.OperationOutcomeStarted
	op.CreatedAt = time.Now()
	op.UpdatedAt = op.CreatedAt
	cp := *op
	m.ops[op.IdempotencyKey] = &cp
	return nil
}

func (m *memStore) ByKey(_ context.Context, idempotencyKey string) (*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[idempotencyKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (m *memStore) Finish(_ context.Context, id uint, outcome model.OperationOutcome, opErr string, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.ops {
		if op.ID != id {
			continue
		}
		if op.Outcome != model.OperationOutcomeStarted {
			return store.ErrConflict
		}
		op.Outcome = outcome
		op.Error = opErr
		op.CredentialID = credentialID
		op.UpdatedAt = time.Now()
		return nil
	}
	return store.ErrConflict
}

func (m *memStore) Restart(_ context.Context, id uint, nodeID, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.ops {
		if op.ID != id {
			continue
		}
		if op.Outcome != model.OperationOutcomeFailed {
			return store.ErrConflict
		}
		op.Outcome = model.OperationOutcomeStarted
		op.Error = ""
		op.NodeID = nodeID
		op.CredentialID = credentialID
		op.UpdatedAt = time.Now()
		return nil
	}
	return store.ErrConflict
}

func (m *memStore) ListStaleStarted(_ context.Context, nodeID string, olderThan time.Time) ([]model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Operation
	for _, op := range m.ops {
		if op.Outcome != model.OperationOutcomeStarted || !op.UpdatedAt.Before(olderThan) {
			continue
		}
		if nodeID != "" && op.NodeID != nodeID {
			continue
		}
		out = append(out, *op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeAdapter simulates a node panel. Grants live in a map keyed by
// ref; injectable errors simulate refusals and outages.
type fakeAdapter struct {
	mu           sync.Mutex
	grants       map[string]string
	provisions   int
	revokes      int
	queries      int
	provisionErr error
	revokeErr    error
	queryErr     error
	// hang makes node calls block until the context expires, simulating
	// a timeout with an unknown node-side outcome.
	hang bool
	// landDespiteHang records the grant even though the call times out,
	// the crash window reconciliation exists for.
	landDespiteHang bool
}

var _ node.Adapter = (*fakeAdapter)(nil)

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{grants: make(map[string]string)}
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Provision(ctx context.Context, req node.ProvisionRequest) (*node.ProvisionResult, error) {
	f.mu.Lock()
	f.provisions++
	hang := f.hang
	perr := f.provisionErr
	if hang && f.landDespiteHang {
		f.grants[req.Ref] = "token-" + req.Ref
	}
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", node.ErrNodeUnavailable, ctx.Err())
	}
	if perr != nil {
		return nil, perr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.grants[req.Ref]
	if !ok {
		token = "token-" + req.Ref
		f.grants[req.Ref] = token
	}
	return &node.ProvisionResult{Ref: req.Ref, AccessToken: token}, nil
}

func (f *fakeAdapter) Revoke(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokes++
	if f.revokeErr != nil {
		return f.revokeErr
	}
	delete(f.grants, ref)
	return nil
}

func (f *fakeAdapter) Query(ctx context.Context, ref string) (*node.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	token, ok := f.grants[ref]
	if !ok {
		return &node.QueryResult{Status: node.RefAbsent}, nil
	}
	return &node.QueryResult{Status: node.RefActive, AccessToken: token}, nil
}

func (f *fakeAdapter) setProvisionErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provisionErr = err
}

func (f *fakeAdapter) setRevokeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeErr = err
}

func (f *fakeAdapter) provisionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.provisions
}

func (f *fakeAdapter) revokeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokes
}

func (f *fakeAdapter) hasGrant(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.grants[ref]
	return ok
}

func (f *fakeAdapter) addGrant(ref, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[ref] = token
}

func (f *fakeAdapter) dropGrant(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.grants, ref)
}
