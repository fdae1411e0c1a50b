package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// nodeCmd represents the node command
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage the node inventory",
	Long:  `Manage the VPN node fleet loaded from the inventory file.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'node' requires a subcommand (sync, watch, list)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(nodeCmd)
}
