// Package sales derives read-only reports from the transaction history and
// the stock ledger. Nothing is cached; every call recomputes.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// NoSalesYet is returned by TopProduct when the history is empty.
const NoSalesYet = "No sales yet"

// DefaultSeriesDays is the revenue series length used by the dashboard.
const DefaultSeriesDays = 7

// HistorySource lists transactions newest first.
type HistorySource interface {
	List() []domain.Transaction
}

// StockSource lists stock items.
type StockSource interface {
	List() []domain.StockItem
}

// DayRevenue is one point of the revenue series.
type DayRevenue struct {
	Date    time.Time       `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Dashboard combines every report the home screen shows.
type Dashboard struct {
	TodayTotal   decimal.Decimal    `json:"today_total"`
	TopProduct   string             `json:"top_product"`
	Revenue      []DayRevenue       `json:"revenue"`
	LowStock     []domain.StockItem `json:"low_stock"`
	Expiring     []domain.StockItem `json:"expiring"`
	Expired      []domain.StockItem `json:"expired"`
	Transactions int                `json:"transactions"`
}

// Aggregator computes reports. Calendar dates are evaluated in loc.
type Aggregator struct {
	history HistorySource
	stock   StockSource
	loc     *time.Location
	now     func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLocation sets the time zone calendar dates are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithClock overrides the current time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an aggregator over history and stock.
func NewAggregator(history HistorySource, stock StockSource, opts ...Option) *Aggregator {
	a := &Aggregator{history: history, stock: stock, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Today returns the current calendar date at midnight in the aggregator's zone.
func (a *Aggregator) Today() time.Time {
	return a.dateOf(a.now())
}

// TotalForDay sums the amount of every transaction on date's calendar day.
func (a *Aggregator) TotalForDay(date time.Time) decimal.Decimal {
	day := a.dateOf(date)
	total := decimal.Zero
	for _, tx := range a.history.List() {
		if a.dateOf(tx.Timestamp).Equal(day) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// TopProduct returns the product name with the highest summed quantity.
// Ties go to the name encountered first walking the history newest first.
func (a *Aggregator) TopProduct() string {
	counts := make(map[string]int)
	var order []string
	for _, tx := range a.history.List() {
		for _, l := range tx.Lines {
			if _, ok := counts[l.Name]; !ok {
				order = append(order, l.Name)
			}
			counts[l.Name] += l.Quantity
		}
	}
	if len(order) == 0 {
		return NoSalesYet
	}

	best := order[0]
	for _, name := range order[1:] {
		if counts[name] > counts[best] {
			best = name
		}
	}
	return best
}

// RevenueSeries returns revenue for each of the last days calendar days,
// oldest first, ending today. Days without sales are zero.
func (a *Aggregator) RevenueSeries(days int) []DayRevenue {
	if days <= 0 {
		days = DefaultSeriesDays
	}
	today := a.Today()
	series := make([]DayRevenue, days)
	index := make(map[time.Time]int, days)
	for i := 0; i < days; i++ {
		d := today.AddDate(0, 0, i-days+1)
		series[i] = DayRevenue{Date: d, Revenue: decimal.Zero}
		index[d] = i
	}
	for _, tx := range a.history.List() {
		if i, ok := index[a.dateOf(tx.Timestamp)]; ok {
			series[i].Revenue = series[i].Revenue.Add(tx.Amount)
		}
	}
	return series
}

// LowStock returns items at or below their reorder threshold.
func (a *Aggregator) LowStock() []domain.StockItem {
	return a.filterStock(func(it domain.StockItem) bool {
		return it.Quantity <= it.ReorderThreshold
	})
}

// Expiring returns items whose expiry date is today.
func (a *Aggregator) Expiring() []domain.StockItem {
	today := a.Today()
	return a.filterStock(func(it domain.StockItem) bool {
		return it.ExpiryDate != nil && a.calendarDate(*it.ExpiryDate).Equal(today)
	})
}

// Expired returns items whose expiry date is strictly before today.
func (a *Aggregator) Expired() []domain.StockItem {
	today := a.Today()
	return a.filterStock(func(it domain.StockItem) bool {
		return it.ExpiryDate != nil && a.calendarDate(*it.ExpiryDate).Before(today)
	})
}

// Dashboard computes every report at once.
func (a *Aggregator) Dashboard() Dashboard {
	return Dashboard{
		TodayTotal:   a.TotalForDay(a.now()),
		TopProduct:   a.TopProduct(),
		Revenue:      a.RevenueSeries(DefaultSeriesDays),
		LowStock:     a.LowStock(),
		Expiring:     a.Expiring(),
		Expired:      a.Expired(),
		Transactions: len(a.history.List()),
	}
}

func (a *Aggregator) filterStock(keep func(domain.StockItem) bool) []domain.StockItem {
	out := []domain.StockItem{}
	for _, it := range a.stock.List() {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// calendarDate keeps the stored year, month and day as-is. Expiry dates are
// plain calendar dates and must not shift across zones.
func (a *Aggregator) calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.loc)
}

func (a *Aggregator) dateOf(t time.Time) time.Time {
	t = t.In(a.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.loc)
}
