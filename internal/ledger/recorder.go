// Package ledger holds the stock ledger, the transaction history and the
// recorder that commits confirmed transactions to both.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/logger"
)

// CommitHook runs after a transaction is committed. Hooks must not block
// for long; persistence hooks enqueue work instead of writing inline.
type CommitHook func(ctx context.Context, tx domain.Transaction)

// Recorder commits transactions. Commits are serialized globally, so the
// stock decrement and the history append happen together or not at all.
type Recorder struct {
	mu      sync.Mutex
	stock   *Stock
	history *History
	hooks   []CommitHook
}

// NewRecorder creates a recorder over stock and history.
func NewRecorder(stock *Stock, history *History) *Recorder {
	return &Recorder{stock: stock, history: history}
}

// OnCommit registers a hook.
func (r *Recorder) OnCommit(hook CommitHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Commit validates tx, prepends it to the history and decrements stock for
// every line, clamping at zero. Oversold stock is not an error.
func (r *Recorder) Commit(ctx context.Context, tx domain.Transaction) error {
	if err := validateTransaction(tx); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}

	r.mu.Lock()
	if r.history.has(tx.ID) {
		r.mu.Unlock()
		return fmt.Errorf("Commit: %w: transaction %s already recorded", domain.ErrInput, tx.ID)
	}
	r.stock.deduct(tx.Lines)
	r.history.prepend(tx)
	hooks := append([]CommitHook(nil), r.hooks...)
	r.mu.Unlock()

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", tx.ID).
		Str("amount", tx.Amount.String()).
		Str("misc_amount", tx.MiscAmount.String()).
		Int("lines", len(tx.Lines)).
		Msg("Transaction committed")

	for _, hook := range hooks {
		hook(ctx, tx.Clone())
	}
	return nil
}

func validateTransaction(tx domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrInput)
	}
	if !tx.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if tx.MiscAmount.IsNegative() {
		return fmt.Errorf("%w: misc amount is negative", domain.ErrInput)
	}
	if !tx.SourceMethod.Valid() {
		return fmt.Errorf("%w: unknown source method %q", domain.ErrInput, tx.SourceMethod)
	}
	for _, l := range tx.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %s has quantity %d", domain.ErrInput, l.ProductID, l.Quantity)
		}
	}
	if !tx.LinesTotal().Add(tx.MiscAmount).Equal(tx.Amount) {
		return fmt.Errorf("%w: lines %s + misc %s != amount %s", domain.ErrInput, tx.LinesTotal(), tx.MiscAmount, tx.Amount)
	}
	return nil
}
