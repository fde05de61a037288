package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/export"
	"github.com/dvloznov/shopkeeper/internal/logger"
	"github.com/dvloznov/shopkeeper/internal/notionsync"
)

func syncNotionCmd() *cobra.Command {
	var (
		startDate, endDate string
		token, databaseID  string
		dryRun             bool
	)

	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Create a Notion page for every sale in a date range",
		Long: `Push sales to a Notion database, one page per sale. Sales already in
the database are matched by their Sale ID and skipped. Sales are read
from the BigQuery mirror when one is configured and from the local
history otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, e *env) error {
				loc := e.app.Shop.Location()
				start, err := time.ParseInLocation(dateLayout, startDate, loc)
				if err != nil {
					return fmt.Errorf("%w: start-date %q, want YYYY-MM-DD", domain.ErrInput, startDate)
				}
				end, err := time.ParseInLocation(dateLayout, endDate, loc)
				if err != nil {
					return fmt.Errorf("%w: end-date %q, want YYYY-MM-DD", domain.ErrInput, endDate)
				}
				if end.Before(start) {
					return fmt.Errorf("%w: end-date must not be before start-date", domain.ErrInput)
				}

				if token == "" {
					token = e.cfg.Notion.Token
				}
				if databaseID == "" {
					databaseID = e.cfg.Notion.DatabaseID
				}
				if token == "" || databaseID == "" {
					return fmt.Errorf("%w: Notion token and database ID are required", domain.ErrInput)
				}

				var source notionsync.SalesSource = notionsync.NewHistorySource(func() []domain.Transaction {
					return e.app.Shop.Transactions(export.Filters{})
				}, e.cfg.Shop.Currency, loc)
				if e.app.Mirror != nil {
					source = e.app.Mirror
				}

				log := logger.FromContext(ctx)
				log.Info().Str("start_date", startDate).Str("end_date", endDate).Bool("dry_run", dryRun).Msg("Starting Notion sync")

				syncCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
				defer cancel()
				res, err := notionsync.SyncSales(syncCtx, source, notionsync.NewNotionClient(token), databaseID, start, end, dryRun)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sync completed: %d created, %d skipped, %d failed of %d sales\n",
					res.Created, res.Skipped, res.Failed, res.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&token, "notion-token", "", "Notion API token (defaults to notion.token)")
	cmd.Flags().StringVar(&databaseID, "notion-db-id", "", "Notion database ID (defaults to notion.database_id)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without creating pages")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
	return cmd
}
