package sales

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

type fakeHistory []domain.Transaction

func (f fakeHistory) List() []domain.Transaction { return f }

type fakeStock []domain.StockItem

func (f fakeStock) List() []domain.StockItem { return f }

var kolkata = time.FixedZone("IST", 5*3600+1800)

func at(day, hour int) time.Time {
	return time.Date(2026, 10, day, hour, 0, 0, 0, kolkata)
}

func tx(ts time.Time, amount int64, lines ...domain.TransactionLine) domain.Transaction {
	return domain.Transaction{ID: ts.String(), Timestamp: ts, Amount: decimal.NewFromInt(amount), Lines: lines}
}

func ln(name string, qty int) domain.TransactionLine {
	return domain.TransactionLine{ProductID: name, Name: name, UnitPrice: decimal.NewFromInt(1), Quantity: qty}
}

func newAgg(h fakeHistory, s fakeStock) *Aggregator {
	return NewAggregator(h, s, WithLocation(kolkata), WithClock(func() time.Time { return at(16, 12) }))
}

func TestTotalForDay(t *testing.T) {
	h := fakeHistory{
		tx(at(16, 18), 40),
		tx(at(16, 9), 25),
		// 23:00 UTC on the 15th is already the 16th in IST.
		tx(time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC), 5),
		tx(at(15, 9), 100),
	}
	a := newAgg(h, nil)

	assert.Equal(t, "70", a.TotalForDay(at(16, 0)).String())
	assert.Equal(t, "100", a.TotalForDay(at(15, 0)).String())
	assert.True(t, a.TotalForDay(at(1, 0)).IsZero())
}

func TestTopProduct(t *testing.T) {
	tests := []struct {
		name    string
		history fakeHistory
		want    string
	}{
		{"empty", nil, NoSalesYet},
		{"highest quantity", fakeHistory{
			tx(at(16, 10), 0, ln("Tea", 2), ln("Samosa", 1)),
			tx(at(15, 10), 0, ln("Samosa", 3)),
		}, "Samosa"},
		{"tie goes to first encountered", fakeHistory{
			tx(at(16, 10), 0, ln("Biscuit", 2)),
			tx(at(15, 10), 0, ln("Tea", 2)),
		}, "Biscuit"},
		{"only misc sales", fakeHistory{tx(at(16, 10), 30)}, NoSalesYet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newAgg(tt.history, nil).TopProduct())
		})
	}
}

func TestRevenueSeries(t *testing.T) {
	h := fakeHistory{
		tx(at(16, 10), 40),
		tx(at(14, 10), 15),
		tx(at(14, 11), 5),
		tx(at(1, 10), 999),
	}
	series := newAgg(h, nil).RevenueSeries(7)
	require.Len(t, series, 7)

	assert.Equal(t, at(10, 0), series[0].Date)
	assert.Equal(t, at(16, 0), series[6].Date)
	assert.Equal(t, "40", series[6].Revenue.String())
	assert.Equal(t, "20", series[4].Revenue.String())
	for _, i := range []int{0, 1, 2, 3, 5} {
		assert.True(t, series[i].Revenue.IsZero(), "day %d", i)
	}

	assert.Len(t, newAgg(h, nil).RevenueSeries(0), DefaultSeriesDays)
}

func TestStockReports(t *testing.T) {
	today := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	s := fakeStock{
		{ProductID: "a", Name: "A", Quantity: 5, ReorderThreshold: 5, ExpiryDate: &today},
		{ProductID: "b", Name: "B", Quantity: 6, ReorderThreshold: 5, ExpiryDate: &yesterday},
		{ProductID: "c", Name: "C", Quantity: 0, ReorderThreshold: 2, ExpiryDate: &tomorrow},
		{ProductID: "d", Name: "D", Quantity: 50, ReorderThreshold: 5},
	}
	a := newAgg(nil, s)

	assert.Equal(t, []string{"a", "c"}, ids(a.LowStock()))
	assert.Equal(t, []string{"a"}, ids(a.Expiring()))
	assert.Equal(t, []string{"b"}, ids(a.Expired()))
}

func TestDashboard(t *testing.T) {
	h := fakeHistory{tx(at(16, 10), 40, ln("Tea", 4))}
	d := newAgg(h, fakeStock{}).Dashboard()

	assert.Equal(t, "40", d.TodayTotal.String())
	assert.Equal(t, "Tea", d.TopProduct)
	assert.Len(t, d.Revenue, DefaultSeriesDays)
	assert.Empty(t, d.LowStock)
	assert.Equal(t, 1, d.Transactions)
}

func ids(items []domain.StockItem) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.ProductID)
	}
	return out
}
