// Package bigquery mirrors committed sales into a BigQuery warehouse.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

// SalesRepository reads and writes the sales table.
type SalesRepository interface {
	InsertSale(ctx context.Context, row *SaleRow) error
	QuerySalesByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*SaleRow, error)
}

// BigQuerySalesRepository is the concrete SalesRepository. It holds a
// shared client to avoid creating a new connection for each operation.
type BigQuerySalesRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQuerySalesRepository creates a repository for projectID.datasetID.
func NewBigQuerySalesRepository(ctx context.Context, projectID, datasetID string) (*BigQuerySalesRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQuerySalesRepository: project is required")
	}
	if datasetID == "" {
		datasetID = "shop"
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySalesRepository: creating client: %w", err)
	}
	return &BigQuerySalesRepository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQuerySalesRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertSale delegates to InsertSaleWithClient with the shared client.
func (r *BigQuerySalesRepository) InsertSale(ctx context.Context, row *SaleRow) error {
	return InsertSaleWithClient(ctx, r.client, r.projectID, r.datasetID, row)
}

// QuerySalesByDateRange delegates to QuerySalesByDateRangeWithClient with the shared client.
func (r *BigQuerySalesRepository) QuerySalesByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*SaleRow, error) {
	return QuerySalesByDateRangeWithClient(ctx, r.client, r.projectID, r.datasetID, startDate, endDate)
}

var _ SalesRepository = (*BigQuerySalesRepository)(nil)
