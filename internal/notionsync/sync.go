package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/shopkeeper/internal/logger"
)

const (
	// BatchSize defines the number of sales to process in a single batch
	BatchSize = 100
)

// Result counts what a sync did.
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// SyncSales creates a Notion page for every sale in [startDate, endDate]
// that has no page yet. Sales are matched by the Sale ID property, so
// running the sync twice creates nothing the second time.
func SyncSales(ctx context.Context, source SalesSource, notionClient NotionService, notionDBID string, startDate, endDate time.Time, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)
	log.Info().
		Time("start_date", startDate).
		Time("end_date", endDate).
		Bool("dry_run", dryRun).
		Msg("Starting sales sync to Notion")

	sales, err := source.QuerySalesByDateRange(ctx, startDate, endDate)
	if err != nil {
		return Result{}, fmt.Errorf("SyncSales: query sales: %w", err)
	}
	res := Result{Total: len(sales)}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("SyncSales: query Notion pages: %w", err)
	}
	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractSaleID(page); id != "" {
			existing[id] = true
		}
	}
	log.Info().Int("sales", len(sales)).Int("notion_pages", len(pages)).Msg("Loaded sales and existing pages")

	for i := 0; i < len(sales); i += BatchSize {
		end := min(i+BatchSize, len(sales))
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, sale := range sales[i:end] {
			if existing[sale.SaleID] {
				res.Skipped++
				continue
			}
			if dryRun {
				log.Info().Str("sale_id", sale.SaleID).Msg("[DRY RUN] Would create Notion page")
				res.Created++
				continue
			}
			if _, err := notionClient.CreatePage(ctx, notionDBID, SaleToNotionProperties(sale)); err != nil {
				log.Warn().Err(err).Str("sale_id", sale.SaleID).Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			existing[sale.SaleID] = true
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("total", res.Total).
		Msg("Sales sync completed")
	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database, following pagination.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
