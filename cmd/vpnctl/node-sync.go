package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/db"
	"github.com/mavrin/vpncore/pkg/inventory"
	"github.com/mavrin/vpncore/pkg/node"
	gormstore "github.com/mavrin/vpncore/pkg/store/gorm"
)

// nodeSyncCmd represents the node sync command
var nodeSyncCmd = &cobra.Command{
	Use:   "sync [file]",
	Short: "Load the node inventory file into the database",
	Long: `Load the node inventory file into the database.

Declared nodes are upserted; nodes that left the file are marked
unreachable so selection skips them. Defaults to the node_inventory
path from configuration.

Example:
  vpnctl node sync /etc/vpncore/nodes.yml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := config.Get().NodeInventoryPath
		if len(args) > 0 {
			path = args[0]
		}

		if err := syncInventory(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync inventory: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	nodeCmd.AddCommand(nodeSyncCmd)
}

func syncInventory(path string) error {
	database, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	syncer := inventory.NewSyncer(
		gormstore.NewNodesStore(database),
		node.NewRegistry(),
		newLogger(),
	)
	count, err := syncer.Sync(context.Background(), path)
	if err != nil {
		return err
	}

	fmt.Printf("Synced %d node(s) from %s\n", count, path)
	return nil
}
