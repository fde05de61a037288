package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceMethod records how the payment amount reached the shop.
type SourceMethod string

const (
	// SourceAudioCapture is an amount announced by a payment soundbox and transcribed.
	SourceAudioCapture SourceMethod = "AudioCapture"
	// SourceManualEntry is an amount typed in by the operator.
	SourceManualEntry SourceMethod = "ManualEntry"
)

// PaymentType is the coarse payment channel shown in the sales log.
func (m SourceMethod) PaymentType() string {
	if m == SourceAudioCapture {
		return "UPI"
	}
	return "Cash"
}

// Label is the human readable capture method.
func (m SourceMethod) Label() string {
	if m == SourceAudioCapture {
		return "Audio Capture"
	}
	return "Manual Entry"
}

// Valid reports whether m is one of the known methods.
func (m SourceMethod) Valid() bool {
	return m == SourceAudioCapture || m == SourceManualEntry
}

// TransactionLine is a snapshot of one sold product. Name and UnitPrice are
// copied at confirmation time and never follow later catalog edits.
type TransactionLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Total is UnitPrice * Quantity.
func (l TransactionLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Transaction is an immutable record of a reconciled payment.
type Transaction struct {
	ID                string            `json:"id"`
	Timestamp         time.Time         `json:"timestamp"`
	Amount            decimal.Decimal   `json:"amount"`
	Lines             []TransactionLine `json:"lines"`
	MiscAmount        decimal.Decimal   `json:"misc_amount"`
	SourceMethod      SourceMethod      `json:"source_method"`
	TranscriptionText string            `json:"transcription_text,omitempty"`
	DetectedLanguage  string            `json:"detected_language,omitempty"`
	PayerInfo         *string           `json:"payer_info,omitempty"`
}

// Clone returns a deep copy so callers can never alias the recorded lines.
func (t Transaction) Clone() Transaction {
	c := t
	c.Lines = append([]TransactionLine(nil), t.Lines...)
	if t.PayerInfo != nil {
		p := *t.PayerInfo
		c.PayerInfo = &p
	}
	return c
}

// LinesTotal sums every line total.
func (t Transaction) LinesTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range t.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}
