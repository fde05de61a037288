// Package notionsync pushes committed sales into a Notion database.
package notionsync

import (
	"context"
	"time"

	"github.com/jomei/notionapi"

	infraBQ "github.com/dvloznov/shopkeeper/internal/infra/bigquery"
)

// NotionService defines the subset of the Notion API the sync needs.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// SalesSource lists sales by calendar date range, inclusive.
type SalesSource interface {
	QuerySalesByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*infraBQ.SaleRow, error)
}
