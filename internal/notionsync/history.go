package notionsync

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/shopkeeper/internal/domain"
	infraBQ "github.com/dvloznov/shopkeeper/internal/infra/bigquery"
)

// HistorySource serves sales straight from the local transaction history,
// for shops that run without the BigQuery mirror.
type HistorySource struct {
	list     func() []domain.Transaction
	currency string
	loc      *time.Location
}

// NewHistorySource wraps a history listing function.
func NewHistorySource(list func() []domain.Transaction, currency string, loc *time.Location) *HistorySource {
	if loc == nil {
		loc = time.UTC
	}
	return &HistorySource{list: list, currency: currency, loc: loc}
}

// QuerySalesByDateRange implements SalesSource. Sales are returned oldest first.
func (h *HistorySource) QuerySalesByDateRange(_ context.Context, startDate, endDate time.Time) ([]*infraBQ.SaleRow, error) {
	start, end := civil.DateOf(startDate), civil.DateOf(endDate)
	txs := h.list()

	var rows []*infraBQ.SaleRow
	for i := len(txs) - 1; i >= 0; i-- {
		row := infraBQ.SaleRowFromTransaction(txs[i], h.currency, h.loc)
		if row.SaleDate.Before(start) || row.SaleDate.After(end) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var _ SalesSource = (*HistorySource)(nil)
