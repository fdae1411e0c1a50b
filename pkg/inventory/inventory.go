package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/node"
	"github.com/mavrin/vpncore/pkg/node/xui"
	"github.com/mavrin/vpncore/pkg/store"
)

// Node is one fleet entry in the inventory file.
type Node struct {
	ID       string `yaml:"id"`
	Adapter  string `yaml:"adapter"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// InboundID selects the panel inbound for xui nodes.
	InboundID          int  `yaml:"inbound_id"`
	Capacity           int  `yaml:"capacity"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// File is the inventory file layout.
type File struct {
	Nodes []Node `yaml:"nodes"`
}

// Parse decodes and validates inventory YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	if len(f.Nodes) == 0 {
		return nil, fmt.Errorf("inventory declares no nodes")
	}
	seen := make(map[string]bool, len(f.Nodes))
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("inventory node %d: id is required", i)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("inventory node %s declared twice", n.ID)
		}
		seen[n.ID] = true
		if n.URL == "" {
			return nil, fmt.Errorf("inventory node %s: url is required", n.ID)
		}
		if n.Capacity <= 0 {
			return nil, fmt.Errorf("inventory node %s: capacity must be positive, got %d", n.ID, n.Capacity)
		}
		if n.Adapter == "" {
			n.Adapter = "xui"
		}
		if n.Adapter != "xui" {
			return nil, fmt.Errorf("inventory node %s: unsupported adapter %q", n.ID, n.Adapter)
		}
	}
	return &f, nil
}

// Syncer applies inventory files to the node store and registry.
type Syncer struct {
	nodes    store.NodesStore
	registry *node.Registry
	logger   zerolog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(nodes store.NodesStore, registry *node.Registry, logger zerolog.Logger) *Syncer {
	return &Syncer{
		nodes:    nodes,
		registry: registry,
		logger:   logger.With().Str("component", "inventory").Logger(),
	}
}

// Sync loads the file, upserts every declared node and registers its
// adapter. Nodes that left the file are deregistered and marked
// unreachable so selection skips them; their rows and credential
// history stay.
func (s *Syncer) Sync(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read inventory %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return 0, err
	}

	declared := make(map[string]bool, len(f.Nodes))
	for i := range f.Nodes {
		entry := &f.Nodes[i]
		declared[entry.ID] = true

		adapter, err := xui.New(xui.Config{
			NodeID:             entry.ID,
			BaseURL:            entry.URL,
			Username:           entry.Username,
			Password:           entry.Password,
			InboundID:          entry.InboundID,
			InsecureSkipVerify: entry.InsecureSkipVerify,
		}, s.logger)
		if err != nil {
			return 0, err
		}

		if err := s.nodes.Upsert(ctx, &model.Node{
			NodeID:    entry.ID,
			Adapter:   entry.Adapter,
			URL:       entry.URL,
			InboundID: entry.InboundID,
			Capacity:  entry.Capacity,
			Health:    model.NodeHealthHealthy,
		}); err != nil {
			return 0, fmt.Errorf("upsert node %s: %w", entry.ID, err)
		}
		s.registry.Register(entry.ID, adapter)
	}

	for _, id := range s.registry.NodeIDs() {
		if declared[id] {
			continue
		}
		s.registry.Deregister(id)
		if err := s.nodes.SetHealth(ctx, id, model.NodeHealthUnreachable); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error().Err(err).Str("node", id).Msg("failed to mark removed node unreachable")
		}
		s.logger.Info().Str("node", id).Msg("node removed from inventory")
	}

	s.logger.Info().Int("nodes", len(f.Nodes)).Str("path", path).Msg("inventory synced")
	return len(f.Nodes), nil
}

// Watch re-syncs whenever the inventory file changes, until the
// context is cancelled. A broken edit logs and keeps the last good
// fleet.
func (s *Syncer) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch file %s: %w", path, err)
	}
	s.logger.Info().Str("path", path).Msg("watching inventory for changes")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if _, err := s.Sync(ctx, path); err != nil {
					s.logger.Error().Err(err).Msg("inventory reload failed, keeping previous fleet")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error().Err(err).Msg("inventory watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}
