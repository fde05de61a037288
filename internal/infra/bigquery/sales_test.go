package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

func TestSaleRowFromTransaction(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	payer := "ravi@upi"
	tx := domain.Transaction{
		ID:        "tx-1",
		Timestamp: time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString("37.50"),
		Lines: []domain.TransactionLine{
			{ProductID: "tea", Name: "Tea", UnitPrice: decimal.NewFromInt(10), Quantity: 3},
		},
		MiscAmount:        decimal.RequireFromString("7.50"),
		SourceMethod:      domain.SourceAudioCapture,
		TranscriptionText: "Received ₹37.50",
		PayerInfo:         &payer,
	}

	row := SaleRowFromTransaction(tx, "INR", ist)

	if row.SaleID != "tx-1" {
		t.Errorf("SaleID = %q", row.SaleID)
	}
	if want := (civil.Date{Year: 2026, Month: 10, Day: 16}); row.SaleDate != want {
		t.Errorf("SaleDate = %v, want %v (shop time zone)", row.SaleDate, want)
	}
	if row.Amount.Cmp(big.NewRat(75, 2)) != 0 {
		t.Errorf("Amount = %v", row.Amount)
	}
	if row.MiscAmount.Cmp(big.NewRat(15, 2)) != 0 {
		t.Errorf("MiscAmount = %v", row.MiscAmount)
	}
	if row.PaymentType != "UPI" || row.SourceMethod != "AudioCapture" {
		t.Errorf("payment = %s/%s", row.PaymentType, row.SourceMethod)
	}
	if !row.PayerInfo.Valid || row.PayerInfo.StringVal != payer {
		t.Errorf("PayerInfo = %+v", row.PayerInfo)
	}
	if row.Language.Valid {
		t.Errorf("Language should be NULL, got %+v", row.Language)
	}
	if len(row.Lines) != 1 || row.Lines[0].Quantity != 3 || row.Lines[0].LineTotal.Cmp(big.NewRat(30, 1)) != 0 {
		t.Errorf("Lines = %+v", row.Lines)
	}
	if Float64(row.Amount) != 37.5 || Float64(nil) != 0 {
		t.Errorf("Float64 conversion broken")
	}
}
