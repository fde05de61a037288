package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// Stock is the per-product inventory ledger. Quantities never go below 0.
type Stock struct {
	mu    sync.RWMutex
	items []domain.StockItem
}

// NewStock creates a ledger holding items in the given order.
func NewStock(items []domain.StockItem) *Stock {
	s := &Stock{}
	for _, it := range items {
		if it.Quantity < 0 {
			it.Quantity = 0
		}
		s.items = append(s.items, cloneItem(it))
	}
	return s
}

// Sync re-derives the ledger from the catalog: existing items are kept
// (refreshing their name and price), new products get an item seeded with
// their initial stock, and items of removed products are dropped.
func (s *Stock) Sync(products []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]domain.StockItem, len(s.items))
	for _, it := range s.items {
		existing[it.ProductID] = it
	}

	next := make([]domain.StockItem, 0, len(products))
	for _, p := range products {
		it, ok := existing[p.ID]
		if !ok {
			it = domain.StockItem{
				ProductID:        p.ID,
				Quantity:         max(0, p.InitialStock),
				ReorderThreshold: p.ReorderThreshold,
			}
			if it.ReorderThreshold <= 0 {
				it.ReorderThreshold = domain.DefaultReorderThreshold
			}
		}
		it.Name = p.Name
		it.UnitPrice = p.UnitPrice
		next = append(next, it)
	}
	s.items = next
}

// Update sets quantity, reorder threshold and expiry of one item.
func (s *Stock) Update(productID string, quantity, reorderThreshold int, expiry *time.Time) (domain.StockItem, error) {
	if quantity < 0 || reorderThreshold < 0 {
		return domain.StockItem{}, fmt.Errorf("Update: %w", domain.ErrInvalidQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return domain.StockItem{}, fmt.Errorf("Update: %w: %s", domain.ErrUnknownProduct, productID)
	}
	s.items[i].Quantity = quantity
	s.items[i].ReorderThreshold = reorderThreshold
	s.items[i].ExpiryDate = nil
	if expiry != nil {
		e := *expiry
		s.items[i].ExpiryDate = &e
	}
	return cloneItem(s.items[i]), nil
}

// Get returns the item for productID.
func (s *Stock) Get(productID string) (domain.StockItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(productID)
	if i < 0 {
		return domain.StockItem{}, false
	}
	return cloneItem(s.items[i]), true
}

// List returns a copy of every item.
func (s *Stock) List() []domain.StockItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StockItem, len(s.items))
	for i, it := range s.items {
		out[i] = cloneItem(it)
	}
	return out
}

// deduct subtracts sold quantities, clamping at zero. Lines for products
// without a stock item are ignored.
func (s *Stock) deduct(lines []domain.TransactionLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		i := s.indexOf(l.ProductID)
		if i < 0 {
			continue
		}
		s.items[i].Quantity = max(0, s.items[i].Quantity-l.Quantity)
	}
}

func (s *Stock) indexOf(productID string) int {
	for i, it := range s.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func cloneItem(it domain.StockItem) domain.StockItem {
	if it.ExpiryDate != nil {
		e := *it.ExpiryDate
		it.ExpiryDate = &e
	}
	return it
}
