// Package integration exercises the full provision/expire/reconcile
// path against a real PostgreSQL instance.
//
// Run with:
//
//	INTEGRATION_TEST=1 go test -v ./test/integration/...
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mavrin/vpncore/pkg/ledger"
	"github.com/mavrin/vpncore/pkg/lifecycle"
	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/node"
	gormstore "github.com/mavrin/vpncore/pkg/store/gorm"
	"github.com/mavrin/vpncore/pkg/sweeper"
)

// TestContext holds everything a scenario needs.
type TestContext struct {
	DB        *gorm.DB
	Container testcontainers.Container

	Creds *gormstore.CredentialsStore
	Nodes *gormstore.NodesStore
	Subs  *gormstore.SubscriptionsStore
	Ops   *gormstore.OperationsStore
	Users *gormstore.UsersStore

	Registry     *node.Registry
	Orchestrator *lifecycle.Orchestrator
	Ledger       *ledger.Ledger
	Sweeper      *sweeper.Sweeper

	Adapter *memAdapter
}

// NewTestContext starts a postgres container, migrates it, and wires
// the full stack against a single in-memory node adapter.
func NewTestContext(ctx context.Context) (*TestContext, error) {
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("vpncore_test"),
		tcpostgres.WithUsername("vpncore"),
		tcpostgres.WithPassword("vpncore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	connStr := fmt.Sprintf("postgres://vpncore:vpncore@%s:%s/vpncore_test?sslmode=disable", host, port.Port())

	if err := runMigrations(connStr); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	tc := &TestContext{
		DB:        db,
		Container: pgContainer,
		Creds:     gormstore.NewCredentialsStore(db),
		Nodes:     gormstore.NewNodesStore(db),
		Subs:      gormstore.NewSubscriptionsStore(db),
		Ops:       gormstore.NewOperationsStore(db),
		Users:     gormstore.NewUsersStore(db),
		Registry:  node.NewRegistry(),
		Adapter:   newMemAdapter("fra-1"),
	}

	log := zerolog.Nop()
	tc.Orchestrator = lifecycle.New(tc.Creds, tc.Nodes, tc.Subs, tc.Ops, tc.Registry, log)
	tc.Ledger = ledger.New(tc.Users, tc.Subs, tc.Orchestrator, log)
	tc.Sweeper = sweeper.New(tc.Subs, tc.Creds, tc.Orchestrator, log)

	if err := tc.Nodes.Upsert(ctx, &model.Node{
		NodeID:   "fra-1",
		Adapter:  "mem",
		Capacity: 100,
		Health:   model.NodeHealthHealthy,
	}); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, err
	}
	tc.Registry.Register("fra-1", tc.Adapter)

	return tc, nil
}

// Close tears down the container.
func (tc *TestContext) Close(ctx context.Context) {
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

func runMigrations(dbURL string) error {
	_, thisFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(thisFile), "..", "..", "db", "migrations")

	m, err := migrate.New("file://"+migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// memAdapter is a node adapter backed by a map, standing in for a real
// panel.
type memAdapter struct {
	name string

	mu     sync.Mutex
	grants map[string]string

	provisionErr error
}

var _ node.Adapter = (*memAdapter)(nil)

func newMemAdapter(name string) *memAdapter {
	return &memAdapter{name: name, grants: make(map[string]string)}
}

func (a *memAdapter) Name() string { return "mem" }

func (a *memAdapter) Provision(_ context.Context, req node.ProvisionRequest) (*node.ProvisionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.provisionErr != nil {
		return nil, a.provisionErr
	}
	token, ok := a.grants[req.Ref]
	if !ok {
		token = "mem://" + a.name + "/" + req.Ref
		a.grants[req.Ref] = token
	}
	return &node.ProvisionResult{Ref: req.Ref, AccessToken: token}, nil
}

func (a *memAdapter) Revoke(_ context.Context, ref string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants, ref)
	return nil
}

func (a *memAdapter) Query(_ context.Context, ref string) (*node.QueryResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	token, ok := a.grants[ref]
	if !ok {
		return &node.QueryResult{Status: node.RefAbsent}, nil
	}
	return &node.QueryResult{Status: node.RefActive, AccessToken: token}, nil
}

func (a *memAdapter) setProvisionErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.provisionErr = err
}

func (a *memAdapter) hasGrant(ref string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.grants[ref]
	return ok
}

func (a *memAdapter) addGrant(ref, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grants[ref] = token
}
