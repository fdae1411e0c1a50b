package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/sweeper"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiry sweep and exit",
	Long: `Run one expiry sweep and exit.

Expired subscriptions are claimed, their credentials revoked on the
nodes, and users inside the warning window are flagged once. The server
runs the same sweep on a timer; this command is for cron-style setups
and manual runs.

Example:
  vpnctl sweep
  vpnctl sweep --inventory /etc/vpncore/nodes.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		inventoryPath, _ := cmd.Flags().GetString("inventory")

		if err := runSweep(inventoryPath); err != nil {
			fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().String("inventory", "", "node inventory file (defaults to node_inventory from config)")
}

func runSweep(inventoryPath string) error {
	ctx := context.Background()
	orchestrator, st, err := buildOrchestrator(ctx, inventoryPath)
	if err != nil {
		return err
	}

	cfg := config.Get()
	sweep := sweeper.New(
		st.subs, st.creds, orchestrator, newLogger(),
		sweeper.WithWarningLead(cfg.WarningLead()),
		sweeper.WithBatchSize(cfg.SweepBatchSize),
	)

	report, err := sweep.Run(ctx)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	return nil
}
