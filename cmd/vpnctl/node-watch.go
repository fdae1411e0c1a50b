package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/db"
	"github.com/mavrin/vpncore/pkg/inventory"
	"github.com/mavrin/vpncore/pkg/node"
	gormstore "github.com/mavrin/vpncore/pkg/store/gorm"
)

// nodeWatchCmd represents the node watch command
var nodeWatchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Watch the inventory file and resync when it changes",
	Long: `Watch the inventory file and resync the fleet when it changes.

A malformed edit is logged and the previous fleet stays in effect.

Example:
  vpnctl node watch /etc/vpncore/nodes.yml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := config.Get().NodeInventoryPath
		if len(args) > 0 {
			path = args[0]
		}

		if err := watchInventory(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch inventory: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	nodeCmd.AddCommand(nodeWatchCmd)
}

func watchInventory(path string) error {
	database, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	syncer := inventory.NewSyncer(
		gormstore.NewNodesStore(database),
		node.NewRegistry(),
		newLogger(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := syncer.Sync(ctx, path); err != nil {
		return err
	}

	fmt.Printf("Watching %s for inventory changes\n", path)
	return syncer.Watch(ctx, path)
}
