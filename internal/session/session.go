// Package session implements the interactive reconciliation of one payment.
//
// A Session holds the target amount and a list of candidate lines. Every
// operation keeps two invariants:
//
//	selectedTotal <= target
//	misc == target - selectedTotal
//
// Edits that would break the first are refused and leave the session
// untouched; the returned View reports Rejected = true.
package session

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxExplanations is the number of misc suggestions returned.
const MaxExplanations = 3

// State of a session.
type State string

const (
	StateOpen      State = "open"
	StateCommitted State = "committed"
	StateDiscarded State = "discarded"
)

// Source describes where the target amount came from. It is copied onto the
// transaction at confirmation.
type Source struct {
	Method            domain.SourceMethod
	TranscriptionText string
	DetectedLanguage  string
	PayerInfo         *string
}

// Options configures a new session.
type Options struct {
	// ID overrides the generated session ID.
	ID string
	// Source is recorded on the confirmed transaction.
	Source Source
	// Catalog is consulted by ExplainMiscellaneous for products that are
	// not already lines of the session.
	Catalog []domain.Product
	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() string
}

// MiscSuggestion is one way the leftover amount could still be spent.
type MiscSuggestion struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	ExtraQuantity int             `json:"extra_quantity"`
	ExtraValue    decimal.Decimal `json:"extra_value"`
}

// View is the snapshot returned by every operation.
type View struct {
	ID              string                 `json:"id"`
	State           State                  `json:"state"`
	TargetAmount    decimal.Decimal        `json:"target_amount"`
	Lines           []domain.CandidateLine `json:"lines"`
	SelectedTotal   decimal.Decimal        `json:"selected_total"`
	MiscAmount      decimal.Decimal        `json:"misc_amount"`
	MiscExplanation []MiscSuggestion       `json:"misc_explanation"`
	Rejected        bool                   `json:"rejected"`
}

// Session is the mutable reconciliation state for a single payment. It is
// meant to be driven by one interaction stream at a time.
type Session struct {
	id      string
	target  decimal.Decimal
	lines   []domain.CandidateLine
	misc    decimal.Decimal
	state   State
	source  Source
	catalog []domain.Product
	now     func() time.Time
	newID   func() string
}

// Start opens a session for target seeded with seed. Seed lines start
// selected; a line that would push the selected total over target is kept
// unselected with quantity 0.
func Start(target decimal.Decimal, seed domain.CandidateSet, opts Options) (*Session, error) {
	if !target.IsPositive() {
		return nil, fmt.Errorf("Start: %w", domain.ErrInvalidAmount)
	}
	if opts.Source.Method == "" {
		opts.Source.Method = domain.SourceManualEntry
	}
	if !opts.Source.Method.Valid() {
		return nil, fmt.Errorf("Start: %w: unknown source method %q", domain.ErrInput, opts.Source.Method)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.ID == "" {
		opts.ID = opts.NewID()
	}

	s := &Session{
		id:      opts.ID,
		target:  target,
		state:   StateOpen,
		source:  opts.Source,
		catalog: append([]domain.Product(nil), opts.Catalog...),
		now:     opts.Now,
		newID:   opts.NewID,
	}

	total := decimal.Zero
	for _, it := range seed.Items {
		if s.indexOf(it.Product.ID) >= 0 {
			continue
		}
		line := domain.CandidateLine{
			ProductID:  it.Product.ID,
			Name:       it.Product.Name,
			UnitPrice:  it.Product.UnitPrice,
			Confidence: it.Confidence,
		}
		if it.Quantity > 0 && total.Add(it.Total()).LessThanOrEqual(target) {
			line.Quantity = it.Quantity
			line.Selected = true
			total = total.Add(it.Total())
		}
		s.lines = append(s.lines, line)
	}
	s.recompute()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// TargetAmount returns the amount being reconciled.
func (s *Session) TargetAmount() decimal.Decimal { return s.target }

// MiscAmount returns the unexplained remainder.
func (s *Session) MiscAmount() decimal.Decimal { return s.misc }

// Lines returns a copy of the current lines.
func (s *Session) Lines() []domain.CandidateLine {
	return append([]domain.CandidateLine(nil), s.lines...)
}

// SelectedTotal sums the totals of selected lines.
func (s *Session) SelectedTotal() decimal.Decimal {
	return selectedTotal(s.lines)
}

// View returns the current snapshot including the misc explanation.
func (s *Session) View() View {
	return View{
		ID:              s.id,
		State:           s.state,
		TargetAmount:    s.target,
		Lines:           s.Lines(),
		SelectedTotal:   s.SelectedTotal(),
		MiscAmount:      s.misc,
		MiscExplanation: s.ExplainMiscellaneous(),
	}
}

// SetQuantity replaces the quantity of a line. Negative quantities are
// clamped to 0. If the new selected total would exceed the target the edit
// is refused and View.Rejected is set.
func (s *Session) SetQuantity(productID string, quantity int) (View, error) {
	if err := s.ensureOpen(); err != nil {
		return View{}, err
	}
	i := s.indexOf(productID)
	if i < 0 {
		return View{}, fmt.Errorf("SetQuantity: %w: %s", domain.ErrUnknownProduct, productID)
	}
	if quantity < 0 {
		quantity = 0
	}
	next := s.lines[i]
	next.Quantity = quantity
	next.Selected = quantity > 0
	return s.apply(i, next), nil
}

// AdjustQuantity is SetQuantity(productID, current + delta).
func (s *Session) AdjustQuantity(productID string, delta int) (View, error) {
	if err := s.ensureOpen(); err != nil {
		return View{}, err
	}
	i := s.indexOf(productID)
	if i < 0 {
		return View{}, fmt.Errorf("AdjustQuantity: %w: %s", domain.ErrUnknownProduct, productID)
	}
	cur := s.lines[i].Quantity
	if delta > 0 && cur > math.MaxInt-delta {
		return s.rejected(), nil
	}
	return s.SetQuantity(productID, cur+delta)
}

// ToggleSelection flips a line. Selecting restores max(1, previous) units
// and is refused when over budget; deselecting always succeeds.
func (s *Session) ToggleSelection(productID string) (View, error) {
	if err := s.ensureOpen(); err != nil {
		return View{}, err
	}
	i := s.indexOf(productID)
	if i < 0 {
		return View{}, fmt.Errorf("ToggleSelection: %w: %s", domain.ErrUnknownProduct, productID)
	}
	next := s.lines[i]
	if next.Selected {
		next.Selected = false
		next.Quantity = 0
	} else {
		next.Selected = true
		next.Quantity = max(1, next.Quantity)
	}
	return s.apply(i, next), nil
}

// AddCandidateLines appends unselected zero-quantity lines for products not
// already present. Totals are unaffected.
func (s *Session) AddCandidateLines(products []domain.Product) (View, error) {
	if err := s.ensureOpen(); err != nil {
		return View{}, err
	}
	for _, p := range products {
		if s.indexOf(p.ID) >= 0 {
			continue
		}
		s.lines = append(s.lines, domain.CandidateLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice,
		})
	}
	return s.View(), nil
}

// ExplainMiscellaneous suggests up to MaxExplanations products the leftover
// amount could still buy: session lines first (selected, then unselected),
// then catalog products that are not lines. Sorted by descending value.
func (s *Session) ExplainMiscellaneous() []MiscSuggestion {
	if !s.misc.IsPositive() {
		return []MiscSuggestion{}
	}

	seen := make(map[string]struct{})
	var out []MiscSuggestion
	consider := func(id, name string, price decimal.Decimal) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		if !price.IsPositive() || price.GreaterThan(s.misc) {
			return
		}
		qty := s.misc.Div(price).Floor()
		value := decimal.Min(qty.Mul(price), s.misc)
		out = append(out, MiscSuggestion{
			ProductID:     id,
			Name:          name,
			ExtraQuantity: int(qty.IntPart()),
			ExtraValue:    value,
		})
	}

	for _, l := range s.lines {
		if l.Selected {
			consider(l.ProductID, l.Name, l.UnitPrice)
		}
	}
	for _, l := range s.lines {
		if !l.Selected {
			consider(l.ProductID, l.Name, l.UnitPrice)
		}
	}
	for _, p := range s.catalog {
		consider(p.ID, p.Name, p.UnitPrice)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExtraValue.GreaterThan(out[j].ExtraValue)
	})
	if len(out) > MaxExplanations {
		out = out[:MaxExplanations]
	}
	if out == nil {
		out = []MiscSuggestion{}
	}
	return out
}

// Confirm snapshots every selected line into an immutable transaction and
// closes the session.
func (s *Session) Confirm() (domain.Transaction, error) {
	return s.ConfirmWith(nil)
}

// ConfirmWith is Confirm with a record step run before the session closes.
// If record fails the session stays open and a later call draws a new
// transaction ID.
func (s *Session) ConfirmWith(record func(domain.Transaction) error) (domain.Transaction, error) {
	if err := s.ensureOpen(); err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		ID:                s.newID(),
		Timestamp:         s.now(),
		Amount:            s.target,
		MiscAmount:        s.misc,
		SourceMethod:      s.source.Method,
		TranscriptionText: s.source.TranscriptionText,
		DetectedLanguage:  s.source.DetectedLanguage,
		Lines:             []domain.TransactionLine{},
	}
	if s.source.PayerInfo != nil {
		p := *s.source.PayerInfo
		tx.PayerInfo = &p
	}
	for _, l := range s.lines {
		if !l.Selected || l.Quantity <= 0 {
			continue
		}
		tx.Lines = append(tx.Lines, domain.TransactionLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}

	if record != nil {
		if err := record(tx); err != nil {
			return domain.Transaction{}, err
		}
	}
	s.state = StateCommitted
	return tx, nil
}

// Cancel discards the session.
func (s *Session) Cancel() error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.state = StateDiscarded
	return nil
}

// apply installs next at index i unless that breaks the budget.
func (s *Session) apply(i int, next domain.CandidateLine) View {
	total := decimal.Zero
	for j, l := range s.lines {
		if j == i {
			l = next
		}
		if l.Selected {
			total = total.Add(l.Total())
		}
	}
	if total.GreaterThan(s.target) {
		return s.rejected()
	}
	s.lines[i] = next
	s.recompute()
	return s.View()
}

// rejected is the unchanged view flagged as a refused edit.
func (s *Session) rejected() View {
	v := s.View()
	v.Rejected = true
	return v
}

func (s *Session) recompute() {
	s.misc = s.target.Sub(selectedTotal(s.lines))
}

func (s *Session) ensureOpen() error {
	if s.state != StateOpen {
		return fmt.Errorf("%w: %s", domain.ErrSessionClosed, s.state)
	}
	return nil
}

func (s *Session) indexOf(productID string) int {
	for i, l := range s.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func selectedTotal(lines []domain.CandidateLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Selected {
			sum = sum.Add(l.Total())
		}
	}
	return sum
}
