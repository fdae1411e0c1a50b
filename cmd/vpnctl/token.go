package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/token"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a service token for an API caller",
	Long: `Issue a service token for an API caller.

The token is signed with VPNCORE_TOKEN_SIGNING_KEY and is presented as
a bearer token on API requests. The default lifetime comes from the
token_ttl_minutes configuration attribute.

Example:
  vpnctl token billing-webhook
  vpnctl token ops-dashboard --ttl 24h`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		subject := args[0]

		key, ok := os.LookupEnv(signingKeyEnv)
		if !ok || key == "" {
			fmt.Fprintln(os.Stderr, signingKeyEnv+" environment variable is required")
			os.Exit(1)
		}

		ttl := config.Get().TokenTTL()
		if flagTTL, _ := cmd.Flags().GetDuration("ttl"); flagTTL > 0 {
			ttl = flagTTL
		}

		raw, err := token.Issue([]byte(key), subject, ttl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(raw)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (defaults to token_ttl_minutes from config)")
}
