package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vpnctl",
	Short: "VPN credential lifecycle server and tooling",
	Long: `vpnctl runs the vpncore server and manages its database, node
inventory, and service tokens.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
