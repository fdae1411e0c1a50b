package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mavrin/vpncore/pkg/db"
	gormstore "github.com/mavrin/vpncore/pkg/store/gorm"
)

// nodeListCmd represents the node list command
var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the node fleet with capacity and health",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listNodes(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list nodes: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	nodeCmd.AddCommand(nodeListCmd)
}

func listNodes() error {
	database, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	nodes, err := gormstore.NewNodesStore(database).List(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tADAPTER\tHEALTH\tACTIVE\tCAPACITY\tURL")
	for i := range nodes {
		n := &nodes[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			n.NodeID, n.Adapter, n.Health, n.ActiveCount, n.Capacity, n.URL)
	}
	return w.Flush()
}
