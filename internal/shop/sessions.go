package shop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/assistant"
	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/logger"
	"github.com/dvloznov/shopkeeper/internal/session"
)

// CaptureResult is returned when a session is opened.
type CaptureResult struct {
	Session       session.View            `json:"session"`
	Transcription assistant.Transcription `json:"transcription"`
	Candidates    []domain.CandidateSet   `json:"candidates"`
}

// OpenManual opens a cash session for a typed-in amount.
func (s *Shop) OpenManual(ctx context.Context, amount decimal.Decimal) (CaptureResult, error) {
	p := NewCapturePipeline(
		&ManualEntryStep{Amount: amount},
		&ValidateAmountStep{},
		s.suggestStep(),
		s.openStep(),
	)
	res, err := s.capture(ctx, p, &CaptureState{})
	if err != nil {
		return CaptureResult{}, fmt.Errorf("OpenManual: %w", err)
	}
	return res, nil
}

// OpenFromAudio transcribes a payment alert and opens a UPI session for the
// amount it announces.
func (s *Shop) OpenFromAudio(ctx context.Context, audio []byte, mimeType string) (CaptureResult, error) {
	p := NewCapturePipeline(
		&TranscribeStep{Transcriber: s.opts.Transcriber},
		&ValidateAmountStep{},
		s.suggestStep(),
		s.openStep(),
	)
	res, err := s.capture(ctx, p, &CaptureState{Audio: audio, MIMEType: mimeType})
	if err != nil {
		return CaptureResult{}, fmt.Errorf("OpenFromAudio: %w", err)
	}
	return res, nil
}

func (s *Shop) capture(ctx context.Context, p *CapturePipeline, state *CaptureState) (CaptureResult, error) {
	state.Catalog = s.catalog.List()
	if err := p.Execute(ctx, state); err != nil {
		return CaptureResult{}, err
	}

	s.sessions.add(state.Session)
	if m := s.opts.Metrics; m != nil {
		m.SessionsOpened.WithLabelValues(string(state.Method)).Inc()
	}

	candidates := state.Candidates
	if candidates == nil {
		candidates = []domain.CandidateSet{}
	}
	return CaptureResult{
		Session:       state.Session.View(),
		Transcription: state.Transcription,
		Candidates:    candidates,
	}, nil
}

func (s *Shop) suggestStep() *SuggestStep {
	step := &SuggestStep{
		Suggester: s.opts.Suggester,
		History:   s.history.List,
	}
	if s.opts.Metrics != nil {
		step.Observe = s.opts.Metrics.ObserveSearch
	}
	return step
}

func (s *Shop) openStep() *OpenSessionStep {
	return &OpenSessionStep{Now: s.opts.Now, NewID: s.opts.NewID}
}

// Session returns the current view of a session.
func (s *Shop) Session(id string) (session.View, error) {
	var v session.View
	err := s.sessions.with(id, func(sess *session.Session) error {
		v = sess.View()
		return nil
	})
	if err != nil {
		return session.View{}, fmt.Errorf("Session: %w", err)
	}
	return v, nil
}

// SetQuantity sets the quantity of a session line.
func (s *Shop) SetQuantity(ctx context.Context, id, productID string, quantity int) (session.View, error) {
	v, err := s.edit(ctx, "set_quantity", id, productID, func(sess *session.Session) (session.View, error) {
		return sess.SetQuantity(productID, quantity)
	})
	if err != nil {
		return session.View{}, fmt.Errorf("SetQuantity: %w", err)
	}
	return v, nil
}

// AdjustQuantity adds delta to the quantity of a session line.
func (s *Shop) AdjustQuantity(ctx context.Context, id, productID string, delta int) (session.View, error) {
	v, err := s.edit(ctx, "adjust_quantity", id, productID, func(sess *session.Session) (session.View, error) {
		return sess.AdjustQuantity(productID, delta)
	})
	if err != nil {
		return session.View{}, fmt.Errorf("AdjustQuantity: %w", err)
	}
	return v, nil
}

// ToggleSelection flips the selection of a session line.
func (s *Shop) ToggleSelection(ctx context.Context, id, productID string) (session.View, error) {
	v, err := s.edit(ctx, "toggle_selection", id, productID, func(sess *session.Session) (session.View, error) {
		return sess.ToggleSelection(productID)
	})
	if err != nil {
		return session.View{}, fmt.Errorf("ToggleSelection: %w", err)
	}
	return v, nil
}

// AddCandidateLines adds catalog products to a session as unselected lines.
func (s *Shop) AddCandidateLines(ctx context.Context, id string, productIDs []string) (session.View, error) {
	products := make([]domain.Product, 0, len(productIDs))
	for _, pid := range productIDs {
		p, ok := s.catalog.Get(pid)
		if !ok {
			return session.View{}, fmt.Errorf("AddCandidateLines: %w: %s", domain.ErrUnknownProduct, pid)
		}
		products = append(products, p)
	}
	v, err := s.edit(ctx, "add_lines", id, "", func(sess *session.Session) (session.View, error) {
		return sess.AddCandidateLines(products)
	})
	if err != nil {
		return session.View{}, fmt.Errorf("AddCandidateLines: %w", err)
	}
	return v, nil
}

// ExplainMiscellaneous lists what the leftover amount of a session could buy.
func (s *Shop) ExplainMiscellaneous(id string) ([]session.MiscSuggestion, error) {
	var out []session.MiscSuggestion
	err := s.sessions.with(id, func(sess *session.Session) error {
		out = sess.ExplainMiscellaneous()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ExplainMiscellaneous: %w", err)
	}
	return out, nil
}

// Confirm records the session's transaction and closes the session. A
// session whose transaction cannot be recorded stays open.
func (s *Shop) Confirm(ctx context.Context, id string) (domain.Transaction, error) {
	var tx domain.Transaction
	err := s.sessions.with(id, func(sess *session.Session) error {
		var err error
		tx, err = sess.ConfirmWith(func(tx domain.Transaction) error {
			return s.recorder.Commit(ctx, tx)
		})
		if err != nil {
			return err
		}
		s.sessions.closed(id)
		return nil
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Confirm: %w", err)
	}
	s.countClosed(session.StateCommitted)
	return tx, nil
}

// Cancel discards a session.
func (s *Shop) Cancel(ctx context.Context, id string) error {
	err := s.sessions.with(id, func(sess *session.Session) error {
		if err := sess.Cancel(); err != nil {
			return err
		}
		s.sessions.closed(id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("session_id", id).Msg("Reconciliation session cancelled")
	s.countClosed(session.StateDiscarded)
	return nil
}

func (s *Shop) edit(ctx context.Context, op, id, productID string, fn func(*session.Session) (session.View, error)) (session.View, error) {
	var v session.View
	err := s.sessions.with(id, func(sess *session.Session) error {
		var err error
		v, err = fn(sess)
		return err
	})
	if err != nil {
		return session.View{}, err
	}
	if v.Rejected {
		log := logger.FromContext(ctx)
		log.Debug().
			Str("session_id", id).
			Str("product_id", productID).
			Str("operation", op).
			Msg("Edit would exceed target amount")
		if m := s.opts.Metrics; m != nil {
			m.EditsRejected.WithLabelValues(op).Inc()
		}
	}
	return v, nil
}

func (s *Shop) countClosed(state session.State) {
	if m := s.opts.Metrics; m != nil {
		m.SessionsClosed.WithLabelValues(string(state)).Inc()
	}
}

// registry holds live sessions. Each session has its own lock so edits to
// different sessions never contend. Closed sessions linger for retention so
// that late edits report ErrSessionClosed.
type registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	retention time.Duration
	now       func() time.Time
}

type entry struct {
	mu       sync.Mutex
	sess     *session.Session
	closedAt time.Time
}

func newRegistry(retention time.Duration, now func() time.Time) *registry {
	return &registry{
		entries:   make(map[string]*entry),
		retention: retention,
		now:       now,
	}
}

func (r *registry) add(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.entries[sess.ID()] = &entry{sess: sess}
}

// with runs fn with the session locked.
func (r *registry) with(id string, fn func(*session.Session) error) error {
	r.mu.Lock()
	r.prune()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sess)
}

// closed marks a session closed. It is called with the entry lock held.
func (r *registry) closed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.closedAt = r.now()
	}
}

// prune drops sessions closed longer than retention. r.mu must be held.
func (r *registry) prune() {
	cutoff := r.now().Add(-r.retention)
	for id, e := range r.entries {
		if !e.closedAt.IsZero() && e.closedAt.Before(cutoff) {
			delete(r.entries, id)
		}
	}
}

// open counts sessions that are still open.
func (r *registry) open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.closedAt.IsZero() {
			n++
		}
	}
	return n
}
