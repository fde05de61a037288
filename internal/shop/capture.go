package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/assistant"
	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/logger"
	"github.com/dvloznov/shopkeeper/internal/session"
)

// LanguageManual is recorded as the detected language of manual entries.
const LanguageManual = "manual"

// CaptureStep is a single step of the capture pipeline.
type CaptureStep interface {
	Execute(ctx context.Context, state *CaptureState) error
}

// CaptureState is shared across the capture steps.
type CaptureState struct {
	Audio    []byte
	MIMEType string

	Method        domain.SourceMethod
	Transcription assistant.Transcription

	Catalog    []domain.Product
	Candidates []domain.CandidateSet

	Session *session.Session
}

// CapturePipeline executes steps in order, stopping at the first error.
type CapturePipeline struct {
	steps []CaptureStep
}

// NewCapturePipeline creates a pipeline with the given steps.
func NewCapturePipeline(steps ...CaptureStep) *CapturePipeline {
	return &CapturePipeline{steps: steps}
}

// Execute runs every step.
func (p *CapturePipeline) Execute(ctx context.Context, state *CaptureState) error {
	for _, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// TranscribeStep turns audio into an amount.
type TranscribeStep struct {
	Transcriber assistant.Transcriber
}

func (s *TranscribeStep) Execute(ctx context.Context, state *CaptureState) error {
	tr, err := s.Transcriber.Transcribe(ctx, state.Audio, state.MIMEType)
	if err != nil {
		return fmt.Errorf("TranscribeStep: %w", err)
	}
	state.Method = domain.SourceAudioCapture
	state.Transcription = tr
	return nil
}

// ManualEntryStep records a typed-in amount as its own transcription.
type ManualEntryStep struct {
	Amount decimal.Decimal
}

func (s *ManualEntryStep) Execute(_ context.Context, state *CaptureState) error {
	state.Method = domain.SourceManualEntry
	state.Transcription = assistant.Transcription{
		Amount:   s.Amount,
		Text:     ManualTranscription(s.Amount),
		Language: LanguageManual,
	}
	return nil
}

// ValidateAmountStep rejects non-positive amounts before anything is suggested.
type ValidateAmountStep struct{}

func (s *ValidateAmountStep) Execute(_ context.Context, state *CaptureState) error {
	if !state.Transcription.Amount.IsPositive() {
		return fmt.Errorf("ValidateAmountStep: %w: got %s", domain.ErrInvalidAmount, state.Transcription.Amount)
	}
	return nil
}

// SuggestStep ranks candidate sets for the amount.
type SuggestStep struct {
	Suggester assistant.Suggester
	History   func() []domain.Transaction
	Observe   func(d time.Duration, candidates int)
}

func (s *SuggestStep) Execute(ctx context.Context, state *CaptureState) error {
	var history []domain.Transaction
	if s.History != nil {
		history = s.History()
	}

	start := time.Now()
	sets, err := s.Suggester.Suggest(ctx, state.Transcription.Amount, state.Catalog, history)
	if err != nil {
		return fmt.Errorf("SuggestStep: %w", err)
	}
	if s.Observe != nil {
		s.Observe(time.Since(start), len(sets))
	}
	state.Candidates = sets
	return nil
}

// OpenSessionStep seeds a session with the top-ranked candidate set, or no
// lines at all when nothing matched.
type OpenSessionStep struct {
	Now   func() time.Time
	NewID func() string
}

func (s *OpenSessionStep) Execute(ctx context.Context, state *CaptureState) error {
	var seed domain.CandidateSet
	if len(state.Candidates) > 0 {
		seed = state.Candidates[0]
	}

	sess, err := session.Start(state.Transcription.Amount, seed, session.Options{
		Source: session.Source{
			Method:            state.Method,
			TranscriptionText: state.Transcription.Text,
			DetectedLanguage:  state.Transcription.Language,
			PayerInfo:         state.Transcription.PayerInfo,
		},
		Catalog: state.Catalog,
		Now:     s.Now,
		NewID:   s.NewID,
	})
	if err != nil {
		return fmt.Errorf("OpenSessionStep: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("session_id", sess.ID()).
		Str("amount", sess.TargetAmount().String()).
		Str("method", string(state.Method)).
		Int("candidate_sets", len(state.Candidates)).
		Msg("Reconciliation session opened")
	state.Session = sess
	return nil
}

// ManualTranscription is the text recorded for a manual entry.
func ManualTranscription(amount decimal.Decimal) string {
	return "Manual entry: ₹" + amount.String()
}
