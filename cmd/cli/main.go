// Command shopkeeper is the command-line front end of the shop: it opens
// reconciliation sessions, manages the catalog and stock, prints reports
// and pushes sales to Notion.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/shopkeeper/internal/app"
	"github.com/dvloznov/shopkeeper/internal/config"
	"github.com/dvloznov/shopkeeper/internal/logger"
)

const appName = "shopkeeper"

// closeTimeout bounds how long the persistence queue may take to drain on exit.
const closeTimeout = 30 * time.Second

var (
	configPath string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Reconcile soundbox payments against the shop catalog",
		Long: `shopkeeper turns a payment amount into the basket of products that
explains it, records the sale and keeps stock and reports up to date.

Configuration is read from $HOME/.config/shopkeeper/config.yaml, the file
named by --config, and SHOPKEEPER_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		reconcileCmd(),
		transcribeCmd(),
		productsCmd(),
		inventoryCmd(),
		importCatalogCmd(),
		dashboardCmd(),
		transactionsCmd(),
		exportCmd(),
		chatCmd(),
		syncNotionCmd(),
	)
	return cmd
}

// env is what every subcommand runs against.
type env struct {
	cfg config.Config
	app *app.App
}

// withApp loads configuration, opens the shop, runs fn and closes the shop
// again so queued writes reach the store before the process exits.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	if configPath != "" {
		if err := os.Setenv("SHOPKEEPER_CONFIG", configPath); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Output: os.Stderr})
	ctx := logger.WithContext(cmd.Context(), log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}

	runErr := fn(ctx, &env{cfg: cfg, app: a})

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	return errors.Join(runErr, a.Close(closeCtx))
}
