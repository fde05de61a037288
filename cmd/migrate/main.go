package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	"github.com/dvloznov/shopkeeper/internal/config"
	infraBQ "github.com/dvloznov/shopkeeper/internal/infra/bigquery"
	"github.com/dvloznov/shopkeeper/internal/logger"
	"github.com/dvloznov/shopkeeper/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	var (
		target    = flag.String("target", "sqlite", "Schema to migrate: sqlite or bigquery")
		action    = flag.String("action", "up", "sqlite only: up, down or version")
		dbPath    = flag.String("db", cfg.Store.SQLitePath, "SQLite database path")
		projectID = flag.String("project", cfg.BigQuery.Project, "GCP project ID (bigquery)")
		datasetID = flag.String("dataset", cfg.BigQuery.Dataset, "BigQuery dataset ID")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	switch *target {
	case "sqlite":
		err = migrateSQLite(log, *dbPath, *action)
	case "bigquery":
		err = migrateBigQuery(ctx, log, *projectID, *datasetID, *appliedBy)
	default:
		err = fmt.Errorf("unknown target %q", *target)
	}
	if err != nil {
		log.Fatal().Err(err).Str("target", *target).Msg("Migration failed")
	}
}

func migrateSQLite(log zerolog.Logger, path, action string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("migrateSQLite: %w", err)
	}
	db, err := sqlite.OpenDB(path)
	if err != nil {
		return fmt.Errorf("migrateSQLite: %w", err)
	}
	defer db.Close()

	switch action {
	case "up":
		if err := sqlite.RunMigrations(db); err != nil {
			return fmt.Errorf("migrateSQLite: %w", err)
		}
	case "down":
		if err := sqlite.RollbackMigrations(db); err != nil {
			return fmt.Errorf("migrateSQLite: %w", err)
		}
	case "version":
	default:
		return fmt.Errorf("migrateSQLite: unknown action %q", action)
	}

	version, dirty, err := sqlite.Version(db)
	if err != nil {
		return fmt.Errorf("migrateSQLite: %w", err)
	}
	log.Info().
		Str("db", path).
		Str("action", action).
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("SQLite schema")
	return nil
}

func migrateBigQuery(ctx context.Context, log zerolog.Logger, projectID, datasetID, appliedBy string) error {
	if projectID == "" {
		return fmt.Errorf("migrateBigQuery: -project (or bigquery.project) is required")
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("migrateBigQuery: creating client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", projectID).Str("dataset", datasetID).Msg("Connected to BigQuery")

	count, err := infraBQ.Migrate(ctx, client, projectID, datasetID, appliedBy)
	if err != nil {
		return fmt.Errorf("migrateBigQuery: %w", err)
	}
	if count == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return nil
	}
	log.Info().Int("applied", count).Msg("Migrations applied")
	return nil
}
