package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/logger"
)

const transcribePrompt = "Transcribe this audio which is a UPI transaction alert from an Indian payment soundbox.\n" +
	"The audio might be in English, Hindi, or Kannada.\n" +
	"Extract the transaction amount in rupees and return STRICT JSON only:\n" +
	"{\n" +
	"  \"transcription\": \"full transcribed text\",\n" +
	"  \"amount\": number (amount in rupees),\n" +
	"  \"language\": \"detected language\",\n" +
	"  \"payerInfo\": \"payer name or UPI ID if mentioned, otherwise null\"\n" +
	"}\n" +
	"Do NOT wrap the response in code fences.\n"

// amountPattern finds the first rupee amount in free text.
var amountPattern = regexp.MustCompile(`₹?\s*(\d+(?:\.\d{1,2})?)`)

// GeminiTranscriber transcribes audio with a Generator.
type GeminiTranscriber struct {
	gen Generator
}

// NewGeminiTranscriber creates a transcriber. A nil gen makes every call
// fail with ErrTranscriptionUnavailable.
func NewGeminiTranscriber(gen Generator) *GeminiTranscriber {
	return &GeminiTranscriber{gen: gen}
}

// Transcribe implements Transcriber.
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcription, error) {
	if t.gen == nil {
		return Transcription{}, ErrTranscriptionUnavailable
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	raw, err := t.gen.GenerateText(ctx, transcribePrompt, &Media{MIMEType: mimeType, Data: audio})
	if err != nil {
		return Transcription{}, fmt.Errorf("Transcribe: %w: %v", ErrTranscriptionFailed, err)
	}
	return parseTranscription(raw), nil
}

type modelTranscription struct {
	Transcription string          `json:"transcription"`
	Amount        decimal.Decimal `json:"amount"`
	Language      string          `json:"language"`
	PayerInfo     *string         `json:"payerInfo"`
}

// parseTranscription decodes the model's JSON. When the JSON is malformed
// the whole response becomes the text and the first number the amount.
func parseTranscription(raw string) Transcription {
	var m modelTranscription
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &m); err == nil {
		tr := Transcription{Amount: m.Amount, Text: m.Transcription, Language: m.Language}
		if m.PayerInfo != nil && strings.TrimSpace(*m.PayerInfo) != "" {
			p := strings.TrimSpace(*m.PayerInfo)
			tr.PayerInfo = &p
		}
		if tr.Language == "" {
			tr.Language = "unknown"
		}
		return tr
	}

	tr := Transcription{Text: strings.TrimSpace(raw), Amount: decimal.Zero, Language: "unknown"}
	if match := amountPattern.FindStringSubmatch(raw); match != nil {
		if amount, err := decimal.NewFromString(match[1]); err == nil {
			tr.Amount = amount
		}
	}
	return tr
}

type mockAlert struct {
	text     string
	amount   int64
	language string
}

var mockAlerts = []mockAlert{
	{"You have received ₹35 via PhonePe", 35, "english"},
	{"Payment of ₹50 received", 50, "english"},
	{"₹25 received via UPI", 25, "english"},
	{"Transaction of ₹100 successful", 100, "english"},
	{"आपको PhonePe के माध्यम से ₹40 प्राप्त हुए", 40, "hindi"},
}

// MockTranscriber returns a canned payment alert. It stands in for the real
// backend during demos and when no API key is configured.
type MockTranscriber struct {
	pick func(n int) int
}

// NewMockTranscriber creates a mock picking alerts at random.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{pick: rand.IntN}
}

// NewMockTranscriberWithPicker creates a mock with a deterministic picker.
func NewMockTranscriberWithPicker(pick func(n int) int) *MockTranscriber {
	return &MockTranscriber{pick: pick}
}

// Transcribe implements Transcriber. The audio is ignored.
func (m *MockTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (Transcription, error) {
	a := mockAlerts[m.pick(len(mockAlerts))]
	return Transcription{
		Amount:   decimal.NewFromInt(a.amount),
		Text:     a.text,
		Language: a.language,
	}, nil
}

// FallbackTranscriber uses primary and falls back to secondary when the
// backend is unavailable or fails.
type FallbackTranscriber struct {
	primary   Transcriber
	secondary Transcriber
}

// NewFallbackTranscriber composes two transcribers.
func NewFallbackTranscriber(primary, secondary Transcriber) *FallbackTranscriber {
	return &FallbackTranscriber{primary: primary, secondary: secondary}
}

// Transcribe implements Transcriber.
func (f *FallbackTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcription, error) {
	tr, err := f.primary.Transcribe(ctx, audio, mimeType)
	if err == nil {
		return tr, nil
	}
	if !errors.Is(err, ErrTranscriptionUnavailable) && !errors.Is(err, ErrTranscriptionFailed) {
		return Transcription{}, err
	}

	log := logger.FromContext(ctx)
	log.Warn().Err(err).Msg("Transcription backend unavailable, using fallback")
	return f.secondary.Transcribe(ctx, audio, mimeType)
}
