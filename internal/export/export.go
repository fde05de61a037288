// Package export projects the transaction history into a flat CSV sales log.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// Payment type filters.
const (
	TypeAll  = "all"
	TypeUPI  = "upi"
	TypeCash = "cash"
)

// Header is the first CSV row.
var Header = []string{"Date", "Time", "Amount", "Type", "Method", "Products", "Transcription"}

// Filters selects which transactions are listed. A zero Date means every day.
type Filters struct {
	Date     time.Time
	Type     string
	Location *time.Location
}

// ParseType normalizes a type filter value.
func ParseType(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", TypeAll:
		return TypeAll, nil
	case TypeUPI:
		return TypeUPI, nil
	case TypeCash:
		return TypeCash, nil
	default:
		return "", fmt.Errorf("%w: unknown payment type %q", domain.ErrInput, s)
	}
}

// Filter returns the transactions matching f, keeping history order.
func Filter(history []domain.Transaction, f Filters) []domain.Transaction {
	loc := location(f)
	out := []domain.Transaction{}
	for _, tx := range history {
		if !f.Date.IsZero() && !sameDay(tx.Timestamp.In(loc), f.Date.In(loc)) {
			continue
		}
		switch f.Type {
		case TypeUPI:
			if tx.SourceMethod.PaymentType() != "UPI" {
				continue
			}
		case TypeCash:
			if tx.SourceMethod.PaymentType() != "Cash" {
				continue
			}
		}
		out = append(out, tx)
	}
	return out
}

// Totals sums amounts per payment type.
type Totals struct {
	All  decimal.Decimal `json:"all"`
	UPI  decimal.Decimal `json:"upi"`
	Cash decimal.Decimal `json:"cash"`
}

// Summarize totals the given transactions.
func Summarize(txs []domain.Transaction) Totals {
	t := Totals{All: decimal.Zero, UPI: decimal.Zero, Cash: decimal.Zero}
	for _, tx := range txs {
		t.All = t.All.Add(tx.Amount)
		if tx.SourceMethod.PaymentType() == "UPI" {
			t.UPI = t.UPI.Add(tx.Amount)
		} else {
			t.Cash = t.Cash.Add(tx.Amount)
		}
	}
	return t
}

// WriteCSV writes one row per transaction matching f.
func WriteCSV(w io.Writer, history []domain.Transaction, f Filters) error {
	loc := location(f)
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	for _, tx := range Filter(history, f) {
		if err := cw.Write(Row(tx, loc)); err != nil {
			return fmt.Errorf("WriteCSV: row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

// Row renders one transaction.
func Row(tx domain.Transaction, loc *time.Location) []string {
	ts := tx.Timestamp.In(loc)
	return []string{
		ts.Format("2006-01-02"),
		ts.Format("15:04:05"),
		tx.Amount.StringFixed(2),
		tx.SourceMethod.PaymentType(),
		tx.SourceMethod.Label(),
		ProductList(tx),
		tx.TranscriptionText,
	}
}

// ProductList renders lines as "2x Tea; 1x Samosa", with any misc amount last.
func ProductList(tx domain.Transaction) string {
	parts := make([]string, 0, len(tx.Lines)+1)
	for _, l := range tx.Lines {
		parts = append(parts, fmt.Sprintf("%dx %s", l.Quantity, l.Name))
	}
	if tx.MiscAmount.IsPositive() {
		parts = append(parts, "Misc ₹"+tx.MiscAmount.StringFixed(2))
	}
	return strings.Join(parts, "; ")
}

func location(f Filters) *time.Location {
	if f.Location != nil {
		return f.Location
	}
	return time.Local
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
