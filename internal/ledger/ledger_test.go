package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/shopkeeper/internal/catalog"
	"github.com/dvloznov/shopkeeper/internal/domain"
)

func sale(id string, lines ...domain.TransactionLine) domain.Transaction {
	tx := domain.Transaction{
		ID:           id,
		Timestamp:    time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC),
		Lines:        lines,
		MiscAmount:   decimal.Zero,
		SourceMethod: domain.SourceManualEntry,
	}
	tx.Amount = tx.LinesTotal()
	return tx
}

func line(id, name string, price int64, qty int) domain.TransactionLine {
	return domain.TransactionLine{ProductID: id, Name: name, UnitPrice: decimal.NewFromInt(price), Quantity: qty}
}

func TestStock_Sync(t *testing.T) {
	s := NewStock([]domain.StockItem{
		{ProductID: "tea", Name: "Tea", UnitPrice: decimal.NewFromInt(10), Quantity: 7, ReorderThreshold: 2},
		{ProductID: "gone", Name: "Gone", UnitPrice: decimal.NewFromInt(1), Quantity: 1},
	})

	s.Sync([]domain.Product{
		{ID: "tea", Name: "Masala Tea", UnitPrice: decimal.NewFromInt(12), InitialStock: 100},
		{ID: "samosa", Name: "Samosa", UnitPrice: decimal.NewFromInt(15), InitialStock: 20},
	})

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "tea", items[0].ProductID)
	assert.Equal(t, "Masala Tea", items[0].Name)
	assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 7, items[0].Quantity, "existing quantity is kept")
	assert.Equal(t, 2, items[0].ReorderThreshold)

	assert.Equal(t, "samosa", items[1].ProductID)
	assert.Equal(t, 20, items[1].Quantity)
	assert.Equal(t, domain.DefaultReorderThreshold, items[1].ReorderThreshold)

	_, ok := s.Get("gone")
	assert.False(t, ok)
}

func TestStock_Update(t *testing.T) {
	s := NewStock([]domain.StockItem{{ProductID: "tea", Name: "Tea", Quantity: 3}})
	expiry := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	it, err := s.Update("tea", 9, 4, &expiry)
	require.NoError(t, err)
	assert.Equal(t, 9, it.Quantity)
	assert.Equal(t, 4, it.ReorderThreshold)
	require.NotNil(t, it.ExpiryDate)
	assert.True(t, it.ExpiryDate.Equal(expiry))

	_, err = s.Update("tea", -1, 4, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.ErrorIs(t, err, domain.ErrInput)

	_, err = s.Update("nope", 1, 1, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)

	got, _ := s.Get("tea")
	assert.Equal(t, 9, got.Quantity, "failed update leaves item unchanged")
}

func TestRecorder_CommitClampsStock(t *testing.T) {
	stock := NewStock([]domain.StockItem{{ProductID: "widget", Name: "Widget", UnitPrice: decimal.NewFromInt(5), Quantity: 2}})
	history := NewHistory(nil)
	r := NewRecorder(stock, history)

	require.NoError(t, r.Commit(context.Background(), sale("t1", line("widget", "Widget", 5, 3))))

	it, _ := stock.Get("widget")
	assert.Equal(t, 0, it.Quantity)

	require.NoError(t, r.Commit(context.Background(), sale("t2", line("widget", "Widget", 5, 10))))
	it, _ = stock.Get("widget")
	assert.Equal(t, 0, it.Quantity)
	assert.Equal(t, 2, history.Len())
}

func TestRecorder_HistoryNewestFirst(t *testing.T) {
	r := NewRecorder(NewStock(nil), NewHistory(nil))
	ctx := context.Background()
	require.NoError(t, r.Commit(ctx, sale("first", line("tea", "Tea", 10, 1))))
	require.NoError(t, r.Commit(ctx, sale("second", line("tea", "Tea", 10, 2))))

	txs := r.history.List()
	require.Len(t, txs, 2)
	assert.Equal(t, "second", txs[0].ID)
	assert.Equal(t, "first", txs[1].ID)
}

func TestRecorder_SnapshotSurvivesCatalogEdits(t *testing.T) {
	cat := catalog.New([]domain.Product{{ID: "tea", Name: "Tea", UnitPrice: decimal.NewFromInt(10)}})
	stock := NewStock(nil)
	stock.Sync(cat.List())
	history := NewHistory(nil)
	r := NewRecorder(stock, history)

	p, ok := cat.Get("tea")
	require.True(t, ok)
	tx := sale("t1", domain.TransactionLine{ProductID: p.ID, Name: p.Name, UnitPrice: p.UnitPrice, Quantity: 2})
	require.NoError(t, r.Commit(context.Background(), tx))

	_, err := cat.Update("tea", "Chai", decimal.NewFromInt(99))
	require.NoError(t, err)
	tx.Lines[0].Name = "mutated by caller"

	got, ok := history.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "Tea", got.Lines[0].Name)
	assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.NewFromInt(10)))

	listed := history.List()
	listed[0].Lines[0].Name = "mutated copy"
	got, _ = history.Get("t1")
	assert.Equal(t, "Tea", got.Lines[0].Name)
}

func TestRecorder_CommitValidation(t *testing.T) {
	valid := sale("ok", line("tea", "Tea", 10, 1))

	tests := []struct {
		name   string
		mutate func(tx *domain.Transaction)
	}{
		{"missing id", func(tx *domain.Transaction) { tx.ID = "" }},
		{"zero amount", func(tx *domain.Transaction) { tx.Amount = decimal.Zero }},
		{"negative misc", func(tx *domain.Transaction) { tx.MiscAmount = decimal.NewFromInt(-1) }},
		{"unknown source", func(tx *domain.Transaction) { tx.SourceMethod = "Telepathy" }},
		{"zero quantity line", func(tx *domain.Transaction) { tx.Lines[0].Quantity = 0 }},
		{"totals disagree", func(tx *domain.Transaction) { tx.Amount = decimal.NewFromInt(11) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock := NewStock([]domain.StockItem{{ProductID: "tea", Quantity: 5}})
			history := NewHistory(nil)
			r := NewRecorder(stock, history)

			tx := valid.Clone()
			tt.mutate(&tx)
			err := r.Commit(context.Background(), tx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInput))

			it, _ := stock.Get("tea")
			assert.Equal(t, 5, it.Quantity)
			assert.Equal(t, 0, history.Len())
		})
	}
}

func TestRecorder_DuplicateIDRejected(t *testing.T) {
	stock := NewStock([]domain.StockItem{{ProductID: "tea", Quantity: 5}})
	r := NewRecorder(stock, NewHistory(nil))
	tx := sale("dup", line("tea", "Tea", 10, 1))

	require.NoError(t, r.Commit(context.Background(), tx))
	assert.ErrorIs(t, r.Commit(context.Background(), tx), domain.ErrInput)

	it, _ := stock.Get("tea")
	assert.Equal(t, 4, it.Quantity)
}

func TestRecorder_HooksAndConcurrency(t *testing.T) {
	stock := NewStock([]domain.StockItem{{ProductID: "tea", Quantity: 1000}})
	history := NewHistory(nil)
	r := NewRecorder(stock, history)

	var mu sync.Mutex
	seen := map[string]bool{}
	r.OnCommit(func(_ context.Context, tx domain.Transaction) {
		mu.Lock()
		seen[tx.ID] = true
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A'+i%26)) + string(rune('a'+i/26))
			assert.NoError(t, r.Commit(context.Background(), sale(id, line("tea", "Tea", 10, 3))))
		}(i)
	}
	wg.Wait()

	it, _ := stock.Get("tea")
	assert.Equal(t, 1000-150, it.Quantity)
	assert.Equal(t, 50, history.Len())
	assert.Len(t, seen, 50)
}
