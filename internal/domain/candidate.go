package domain

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CandidateItem is one (product, quantity) pair of a proposed breakdown.
type CandidateItem struct {
	Product    Product
	Quantity   int
	Confidence float64
}

// Total is the product's unit price times the quantity.
func (c CandidateItem) Total() decimal.Decimal {
	return c.Product.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// CandidateSet is a proposed breakdown of a payment into product lines.
type CandidateSet struct {
	Items []CandidateItem
}

// Total sums all item totals.
func (s CandidateSet) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range s.Items {
		sum = sum.Add(it.Total())
	}
	return sum
}

// MeanConfidence is the average confidence of the member items.
func (s CandidateSet) MeanConfidence() float64 {
	if len(s.Items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range s.Items {
		sum += it.Confidence
	}
	return sum / float64(len(s.Items))
}

// Key identifies the unordered multiset of (productID, quantity) pairs.
func (s CandidateSet) Key() string {
	parts := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		parts = append(parts, it.Product.ID+"\x00"+strconv.Itoa(it.Quantity))
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x01")
}

// CandidateLine is an editable line inside a reconciliation session.
type CandidateLine struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Selected   bool            `json:"selected"`
	Confidence float64         `json:"confidence"`
}

// Total is UnitPrice * Quantity regardless of selection.
func (l CandidateLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
