package ledger

import (
	"sync"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// History is the append-only transaction log, newest first.
type History struct {
	mu  sync.RWMutex
	txs []domain.Transaction
	ids map[string]struct{}
}

// NewHistory creates a history from transactions ordered newest first.
func NewHistory(txs []domain.Transaction) *History {
	h := &History{ids: make(map[string]struct{}, len(txs))}
	for _, tx := range txs {
		h.txs = append(h.txs, tx.Clone())
		h.ids[tx.ID] = struct{}{}
	}
	return h
}

// List returns deep copies of all transactions, newest first.
func (h *History) List() []domain.Transaction {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.Transaction, len(h.txs))
	for i, tx := range h.txs {
		out[i] = tx.Clone()
	}
	return out
}

// Get returns the transaction with id.
func (h *History) Get(id string) (domain.Transaction, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, tx := range h.txs {
		if tx.ID == id {
			return tx.Clone(), true
		}
	}
	return domain.Transaction{}, false
}

// Len returns the number of recorded transactions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.txs)
}

func (h *History) has(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.ids[id]
	return ok
}

func (h *History) prepend(tx domain.Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txs = append([]domain.Transaction{tx.Clone()}, h.txs...)
	h.ids[tx.ID] = struct{}{}
}
