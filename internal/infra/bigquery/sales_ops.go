package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	salesTable = "sales"
	dateFormat = "2006-01-02"
)

// InsertSaleWithClient streams one sale into <dataset>.sales. The sale ID is
// the insert ID, so a retried insert is deduplicated by BigQuery.
func InsertSaleWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, row *SaleRow) error {
	table := client.DatasetInProject(projectID, datasetID).Table(salesTable)
	saver := &bigquery.StructSaver{Struct: row, InsertID: row.SaleID}
	if err := table.Inserter().Put(ctx, saver); err != nil {
		return fmt.Errorf("InsertSale: inserting row %s: %w", row.SaleID, err)
	}
	return nil
}

// QuerySalesByDateRangeWithClient returns sales with sale_date in
// [startDate, endDate], oldest first.
func QuerySalesByDateRangeWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, startDate, endDate time.Time) ([]*SaleRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			sale_id,
			sale_ts,
			sale_date,
			amount,
			misc_amount,
			currency,
			payment_type,
			source_method,
			transcription,
			language,
			payer_info,
			lines,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE sale_date >= @start_date
		  AND sale_date <= @end_date
		ORDER BY sale_ts
	`, projectID, datasetID, salesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QuerySalesByDateRange: query read: %w", err)
	}

	var rows []*SaleRow
	for {
		var r SaleRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QuerySalesByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
