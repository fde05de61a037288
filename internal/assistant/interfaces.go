// Package assistant holds the collaborators that sit outside the
// reconciliation core: transcription of payment alerts, external product
// suggestions and the shop chat. Each has a Gemini implementation and a
// local fallback.
package assistant

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// Media is binary content attached to a prompt.
type Media struct {
	MIMEType string
	Data     []byte
}

// Generator sends a prompt, optionally with media, to a language model and
// returns its text response.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, media *Media) (string, error)
}

// Transcription is the result of transcribing a payment alert.
type Transcription struct {
	Amount    decimal.Decimal `json:"amount"`
	Text      string          `json:"transcription"`
	Language  string          `json:"language"`
	PayerInfo *string         `json:"payer_info,omitempty"`
}

// Transcriber turns soundbox audio into an amount.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcription, error)
}

// Suggester proposes ranked candidate sets for an amount.
type Suggester interface {
	Suggest(ctx context.Context, amount decimal.Decimal, catalog []domain.Product, history []domain.Transaction) ([]domain.CandidateSet, error)
}

// Snapshot is the shop state a chat answer may draw on.
type Snapshot struct {
	Profile    domain.ShopProfile
	Inventory  []domain.StockItem
	Recent     []domain.Transaction
	TodayTotal decimal.Decimal
	Location   *time.Location
}

// Chat answers free-form questions about the shop.
type Chat interface {
	Ask(ctx context.Context, question string, snap Snapshot) (string, error)
}
