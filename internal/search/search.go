// Package search proposes product-quantity combinations that explain a
// payment amount. Search is pure and deterministic: identical inputs always
// produce identical, identically ordered output.
package search

import (
	"fmt"
	"sort"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// Confidence assigned to each discovery strategy.
const (
	ConfidenceExactSingle   = 0.95
	ConfidenceExactMultiple = 0.90
	ConfidenceExactPair     = 0.80
	ConfidenceFloor         = 0.60
)

// Default bounds.
const (
	DefaultMaxMultiple     = 10
	DefaultMaxPairQuantity = 5
	DefaultTopK            = 5
)

// Config bounds the enumeration so large catalogs stay cheap.
type Config struct {
	// MaxMultiple caps the quantity of an exact single-product multiple.
	MaxMultiple int
	// MaxPairQuantity caps each side of an exact pairwise combination.
	MaxPairQuantity int
	// TopK truncates the ranked result.
	TopK int
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{
		MaxMultiple:     DefaultMaxMultiple,
		MaxPairQuantity: DefaultMaxPairQuantity,
		TopK:            DefaultTopK,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxMultiple <= 0 {
		c.MaxMultiple = DefaultMaxMultiple
	}
	if c.MaxPairQuantity <= 0 {
		c.MaxPairQuantity = DefaultMaxPairQuantity
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	return c
}

// Searcher runs Search with a fixed Config.
type Searcher struct {
	cfg Config
}

// New creates a Searcher. Zero fields of cfg fall back to the defaults.
func New(cfg Config) *Searcher {
	return &Searcher{cfg: cfg.withDefaults()}
}

// Search runs the combination search with the Searcher's bounds.
func (s *Searcher) Search(target decimal.Decimal, catalog []domain.Product) ([]domain.CandidateSet, error) {
	return Search(target, catalog, s.cfg)
}

// Search returns up to cfg.TopK candidate sets for target. Exact matches rank
// before partial fits; within a tier sets are ordered by descending mean
// confidence and then by discovery order. An empty result means no product
// fits within target and the whole amount is miscellaneous.
func Search(target decimal.Decimal, catalog []domain.Product, cfg Config) ([]domain.CandidateSet, error) {
	if !target.IsPositive() {
		return nil, fmt.Errorf("Search: %w", domain.ErrInvalidAmount)
	}
	cfg = cfg.withDefaults()

	products := affordable(target, catalog)
	if len(products) == 0 {
		return []domain.CandidateSet{}, nil
	}

	c := newCollector(target)

	// 1. A single unit priced exactly at the target.
	for _, p := range products {
		if p.UnitPrice.Equal(target) {
			c.add(ConfidenceExactSingle, item(p, 1))
		}
	}

	// 2. Whole multiples of one product.
	for _, p := range products {
		q, ok := exactQuotient(target, p.UnitPrice)
		if ok && q >= 1 && q <= cfg.MaxMultiple {
			c.add(ConfidenceExactMultiple, item(p, q))
		}
	}

	// 3. Two distinct products, each in [1, MaxPairQuantity].
	for i := 0; i < len(products); i++ {
		a := products[i]
		for j := i + 1; j < len(products); j++ {
			b := products[j]
			for qa := 1; qa <= cfg.MaxPairQuantity; qa++ {
				rest := target.Sub(a.UnitPrice.Mul(decimal.NewFromInt(int64(qa))))
				if !rest.IsPositive() {
					break
				}
				qb, ok := exactQuotient(rest, b.UnitPrice)
				if ok && qb >= 1 && qb <= cfg.MaxPairQuantity {
					c.add(ConfidenceExactPair, item(a, qa), item(b, qb))
				}
			}
		}
	}

	// 4. Best-effort floor of the most expensive affordable product.
	best := products[0]
	for _, p := range products[1:] {
		if p.UnitPrice.GreaterThan(best.UnitPrice) {
			best = p
		}
	}
	q := int(target.Div(best.UnitPrice).Floor().IntPart())
	c.add(ConfidenceFloor, item(best, q))

	return c.ranked(cfg.TopK), nil
}

// affordable keeps products with a positive price not above target, in
// catalog order.
func affordable(target decimal.Decimal, catalog []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(catalog))
	for _, p := range catalog {
		if p.UnitPrice.IsPositive() && p.UnitPrice.LessThanOrEqual(target) {
			out = append(out, p)
		}
	}
	return out
}

// exactQuotient returns amount/price when price divides amount exactly.
func exactQuotient(amount, price decimal.Decimal) (int, bool) {
	if !price.IsPositive() || !amount.Mod(price).IsZero() {
		return 0, false
	}
	return int(amount.Div(price).IntPart()), true
}

func item(p domain.Product, q int) domain.CandidateItem {
	return domain.CandidateItem{Product: p, Quantity: q}
}

type scored struct {
	set   domain.CandidateSet
	exact bool
	conf  float64
}

// collector deduplicates by multiset key, keeping the first discovery.
type collector struct {
	target decimal.Decimal
	seen   map[string]struct{}
	sets   []scored
}

func newCollector(target decimal.Decimal) *collector {
	return &collector{target: target, seen: make(map[string]struct{})}
}

func (c *collector) add(confidence float64, items ...domain.CandidateItem) {
	for i := range items {
		items[i].Confidence = confidence
	}
	set := domain.CandidateSet{Items: items}
	key := set.Key()
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}
	c.sets = append(c.sets, scored{
		set:   set,
		exact: set.Total().Equal(c.target),
		conf:  set.MeanConfidence(),
	})
}

func (c *collector) ranked(topK int) []domain.CandidateSet {
	sort.SliceStable(c.sets, func(i, j int) bool {
		a, b := c.sets[i], c.sets[j]
		if a.exact != b.exact {
			return a.exact
		}
		return a.conf > b.conf
	})
	if len(c.sets) > topK {
		c.sets = c.sets[:topK]
	}
	out := make([]domain.CandidateSet, len(c.sets))
	for i, s := range c.sets {
		out[i] = s.set
	}
	return out
}
