package main

import (
	"context"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/db"
	"github.com/mavrin/vpncore/pkg/inventory"
	"github.com/mavrin/vpncore/pkg/lifecycle"
	"github.com/mavrin/vpncore/pkg/node"
	"github.com/mavrin/vpncore/pkg/store"
	gormstore "github.com/mavrin/vpncore/pkg/store/gorm"
)

type stores struct {
	creds store.CredentialsStore
	nodes store.NodesStore
	subs  store.SubscriptionsStore
	ops   store.OperationsStore
	users store.UsersStore
}

// buildOrchestrator wires a standalone orchestrator for one-shot
// commands. The fleet comes from the inventory file so node adapters
// are reachable outside the server process.
func buildOrchestrator(ctx context.Context, inventoryPath string) (*lifecycle.Orchestrator, *stores, error) {
	database, err := db.Connect(db.Config{})
	if err != nil {
		return nil, nil, err
	}

	st := &stores{
		creds: gormstore.NewCredentialsStore(database),
		nodes: gormstore.NewNodesStore(database),
		subs:  gormstore.NewSubscriptionsStore(database),
		ops:   gormstore.NewOperationsStore(database),
		users: gormstore.NewUsersStore(database),
	}

	cfg := config.Get()
	if inventoryPath == "" {
		inventoryPath = cfg.NodeInventoryPath
	}

	logger := newLogger()
	registry := node.NewRegistry()
	syncer := inventory.NewSyncer(st.nodes, registry, logger)
	if _, err := syncer.Sync(ctx, inventoryPath); err != nil {
		return nil, nil, err
	}

	orchestrator := lifecycle.New(
		st.creds, st.nodes, st.subs, st.ops, registry, logger,
		lifecycle.WithNodeTimeout(cfg.NodeTimeout()),
		lifecycle.WithStaleAfter(cfg.StaleAfter()),
	)
	return orchestrator, st, nil
}
