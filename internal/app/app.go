// Package app builds a running shop from configuration. It is shared by the
// API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dvloznov/shopkeeper/internal/assistant"
	"github.com/dvloznov/shopkeeper/internal/config"
	"github.com/dvloznov/shopkeeper/internal/domain"
	infraBQ "github.com/dvloznov/shopkeeper/internal/infra/bigquery"
	"github.com/dvloznov/shopkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/shopkeeper/internal/metrics"
	"github.com/dvloznov/shopkeeper/internal/shop"
	"github.com/dvloznov/shopkeeper/internal/store"
	"github.com/dvloznov/shopkeeper/internal/store/gcs"
	"github.com/dvloznov/shopkeeper/internal/store/memory"
	"github.com/dvloznov/shopkeeper/internal/store/sqlite"
)

// App is a configured shop together with the resources it owns.
type App struct {
	Shop    *shop.Shop
	Metrics *metrics.Metrics
	Mirror  infraBQ.SalesRepository

	closers []io.Closer
}

// Open builds the store, the assistant collaborators and the optional
// BigQuery mirror described by cfg, then loads the shop.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Metrics: metrics.New()}

	st, err := a.openStore(ctx, cfg.Store)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("Open: %w", err)
	}

	gen, err := assistant.NewGenerator(ctx, assistant.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	})
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("Open: %w", err)
	}
	if gen == nil {
		log.Warn().Msg("No Gemini API key configured - using mock transcription and local suggestions")
	}

	local := assistant.NewLocalSuggester(cfg.SearchOptions())
	opts := shop.Options{
		Store:       st,
		Transcriber: assistant.NewFallbackTranscriber(assistant.NewGeminiTranscriber(gen), assistant.NewMockTranscriber()),
		Suggester:   local,
		Chat:        assistant.NewGeminiChat(gen),
		Metrics:     a.Metrics,
		Profile:     domain.ShopProfile{Name: cfg.Shop.Name, Type: cfg.Shop.Type},
		Currency:    cfg.Shop.Currency,
		Location:    cfg.Location(),
		Search:      cfg.SearchOptions(),
		Queue: inmemory.Config{
			Workers:    cfg.Persist.Workers,
			BufferSize: cfg.Persist.Buffer,
			MaxRetries: cfg.Persist.MaxRetries,
		},
	}
	if gen != nil {
		opts.Suggester = assistant.NewFallbackSuggester(assistant.NewGeminiSuggester(gen), local, cfg.Search.TopK)
	}

	if cfg.BigQuery.Project != "" {
		repo, err := infraBQ.NewBigQuerySalesRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("Open: %w", err)
		}
		a.closers = append(a.closers, repo)
		a.Mirror = repo
		opts.Mirror = repo
		log.Info().Str("project", cfg.BigQuery.Project).Str("dataset", cfg.BigQuery.Dataset).Msg("BigQuery sales mirror enabled")
	}

	s, err := shop.New(ctx, opts)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("Open: %w", err)
	}
	a.Shop = s
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("openStore: %w", err)
		}
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("openStore: %w", err)
		}
		a.closers = append(a.closers, st)
		return st, nil
	case config.DriverGCS:
		st, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("openStore: %w", err)
		}
		a.closers = append(a.closers, st)
		return st, nil
	case config.DriverMemory, "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("openStore: unknown driver %q", cfg.Driver)
	}
}

// Close drains the persistence queue and releases every resource.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Shop != nil {
		if err := a.Shop.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
