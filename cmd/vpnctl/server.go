package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/db"
	"github.com/mavrin/vpncore/pkg/inventory"
	"github.com/mavrin/vpncore/pkg/ledger"
	"github.com/mavrin/vpncore/pkg/lifecycle"
	"github.com/mavrin/vpncore/pkg/node"
	"github.com/mavrin/vpncore/pkg/server"
	"github.com/mavrin/vpncore/pkg/server/endpoints"
	gormstore "github.com/mavrin/vpncore/pkg/store/gorm"
	"github.com/mavrin/vpncore/pkg/sweeper"
)

const signingKeyEnv = "VPNCORE_TOKEN_SIGNING_KEY"

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("VPNCORE_LOG_LEVEL")); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the vpncore application server",
	Long: `Run the vpncore application server.

To run the server requires the environment variables DATABASE_URL and
VPNCORE_TOKEN_SIGNING_KEY.

By default, database migrations are run on startup. Use --no-migrate to skip.`,
	Run: func(cmd *cobra.Command, args []string) {
		signingKey, ok := os.LookupEnv(signingKeyEnv)
		if !ok || signingKey == "" {
			fmt.Fprintln(os.Stderr, signingKeyEnv+" environment variable is required")
			os.Exit(1)
		}
		if os.Getenv("DATABASE_URL") == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL environment variable is required")
			os.Exit(1)
		}

		cfg := config.Get()
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Bad configuration: %v\n", err)
			os.Exit(1)
		}

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			fmt.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		logger := newLogger()

		database, err := db.Connect(db.Config{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Unable to connect to DB:", err)
			os.Exit(1)
		}

		creds := gormstore.NewCredentialsStore(database)
		nodes := gormstore.NewNodesStore(database)
		subs := gormstore.NewSubscriptionsStore(database)
		ops := gormstore.NewOperationsStore(database)
		users := gormstore.NewUsersStore(database)

		registry := node.NewRegistry()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		syncer := inventory.NewSyncer(nodes, registry, logger)
		inventoryPath, _ := cmd.Flags().GetString("inventory")
		if inventoryPath == "" {
			inventoryPath = cfg.NodeInventoryPath
		}
		if n, err := syncer.Sync(ctx, inventoryPath); err != nil {
			logger.Warn().Err(err).Str("path", inventoryPath).
				Msg("inventory load failed; starting with an empty fleet")
		} else {
			logger.Info().Int("nodes", n).Msg("inventory loaded")
			go func() {
				if err := syncer.Watch(ctx, inventoryPath); err != nil {
					logger.Error().Err(err).Msg("inventory watch stopped")
				}
			}()
		}

		orchestrator := lifecycle.New(
			creds, nodes, subs, ops, registry, logger,
			lifecycle.WithNodeTimeout(cfg.NodeTimeout()),
			lifecycle.WithStaleAfter(cfg.StaleAfter()),
		)
		subLedger := ledger.New(users, subs, orchestrator, logger)
		sweep := sweeper.New(
			subs, creds, orchestrator, logger,
			sweeper.WithInterval(cfg.SweepInterval()),
			sweeper.WithWarningLead(cfg.WarningLead()),
			sweeper.WithBatchSize(cfg.SweepBatchSize),
		)
		go sweep.Start(ctx)

		srv := server.NewServer(cfg, orchestrator, subLedger, creds, nodes,
			gormstore.NewHealthStore(database), logger)
		endpoints.RegisterAll(srv, []byte(signingKey))

		go func() {
			logger.Info().Str("addr", cfg.HealthAddr()).Msg("health listener up")
			if err := srv.StartHealth(); err != nil {
				logger.Error().Err(err).Msg("health listener stopped")
			}
		}()
		go func() {
			logger.Info().Str("addr", cfg.ListenAddr()).Msg("server up")
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("server stopped")
				stop()
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown incomplete")
			os.Exit(1)
		}
		logger.Info().Msg("server drained")
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
	serverCmd.Flags().String("inventory", "", "node inventory file (defaults to node_inventory from config)")
}
