package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// SaleRow is one committed transaction in the shop.sales table. Lines are
// stored as a REPEATED RECORD column.
type SaleRow struct {
	SaleID string `bigquery:"sale_id"` // REQUIRED

	SaleTS   time.Time  `bigquery:"sale_ts"`   // REQUIRED TIMESTAMP
	SaleDate civil.Date `bigquery:"sale_date"` // REQUIRED DATE, shop time zone

	Amount     *big.Rat `bigquery:"amount"`      // REQUIRED NUMERIC
	MiscAmount *big.Rat `bigquery:"misc_amount"` // REQUIRED NUMERIC
	Currency   string   `bigquery:"currency"`    // REQUIRED

	PaymentType  string `bigquery:"payment_type"`  // UPI | Cash
	SourceMethod string `bigquery:"source_method"` // AudioCapture | ManualEntry

	Transcription bigquery.NullString `bigquery:"transcription"`
	Language      bigquery.NullString `bigquery:"language"`
	PayerInfo     bigquery.NullString `bigquery:"payer_info"`

	Lines []SaleLineRow `bigquery:"lines"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// SaleLineRow is one sold product inside a SaleRow.
type SaleLineRow struct {
	ProductID string   `bigquery:"product_id"`
	Name      string   `bigquery:"name"`
	UnitPrice *big.Rat `bigquery:"unit_price"` // NUMERIC
	Quantity  int64    `bigquery:"quantity"`
	LineTotal *big.Rat `bigquery:"line_total"` // NUMERIC
}

// SaleRowFromTransaction maps a transaction to its warehouse row. The sale
// date is the calendar date in loc.
func SaleRowFromTransaction(tx domain.Transaction, currency string, loc *time.Location) *SaleRow {
	if loc == nil {
		loc = time.UTC
	}
	row := &SaleRow{
		SaleID:        tx.ID,
		SaleTS:        tx.Timestamp,
		SaleDate:      civil.DateOf(tx.Timestamp.In(loc)),
		Amount:        tx.Amount.Rat(),
		MiscAmount:    tx.MiscAmount.Rat(),
		Currency:      currency,
		PaymentType:   tx.SourceMethod.PaymentType(),
		SourceMethod:  string(tx.SourceMethod),
		Transcription: nullString(tx.TranscriptionText),
		Language:      nullString(tx.DetectedLanguage),
		CreatedTS:     time.Now(),
	}
	if tx.PayerInfo != nil {
		row.PayerInfo = nullString(*tx.PayerInfo)
	}
	for _, l := range tx.Lines {
		row.Lines = append(row.Lines, SaleLineRow{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.Rat(),
			Quantity:  int64(l.Quantity),
			LineTotal: l.Total().Rat(),
		})
	}
	return row
}

// Float64 converts a NUMERIC value for consumers that need a float.
func Float64(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
