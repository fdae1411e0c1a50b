package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [node-id]",
	Short: "Reconcile node state with the credential store",
	Long: `Reconcile node state with the credential store.

Each credential on the node is checked against the panel's actual
grants; the store is repaired toward node truth and stale operations
are resolved. Without a node ID every node in the inventory is
reconciled.

Example:
  vpnctl reconcile fra-1
  vpnctl reconcile`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inventoryPath, _ := cmd.Flags().GetString("inventory")
		nodeID := ""
		if len(args) > 0 {
			nodeID = args[0]
		}

		if err := runReconcile(nodeID, inventoryPath); err != nil {
			fmt.Fprintf(os.Stderr, "Reconcile failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().String("inventory", "", "node inventory file (defaults to node_inventory from config)")
}

func runReconcile(nodeID, inventoryPath string) error {
	ctx := context.Background()
	orchestrator, _, err := buildOrchestrator(ctx, inventoryPath)
	if err != nil {
		return err
	}

	var out interface{}
	if nodeID != "" {
		out, err = orchestrator.ReconcileNode(ctx, nodeID)
	} else {
		out, err = orchestrator.ReconcileAll(ctx)
	}
	if err != nil {
		return err
	}

	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
