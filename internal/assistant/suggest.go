package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/logger"
	"github.com/dvloznov/shopkeeper/internal/search"
)

const (
	// historyPromptLimit caps how many past sales are shown to the model.
	historyPromptLimit = 10
	// defaultModelConfidence is used when the model omits or garbles confidence.
	defaultModelConfidence = 0.5
)

// LocalSuggester runs the combination search.
type LocalSuggester struct {
	searcher *search.Searcher
}

// NewLocalSuggester creates a suggester with the given search bounds.
func NewLocalSuggester(cfg search.Config) *LocalSuggester {
	return &LocalSuggester{searcher: search.New(cfg)}
}

// Suggest implements Suggester. History is not used.
func (s *LocalSuggester) Suggest(_ context.Context, amount decimal.Decimal, catalog []domain.Product, _ []domain.Transaction) ([]domain.CandidateSet, error) {
	return s.searcher.Search(amount, catalog)
}

// GeminiSuggester asks a language model for the likely basket and resolves
// the answer against the catalog.
type GeminiSuggester struct {
	gen Generator
}

// NewGeminiSuggester creates a suggester. A nil gen makes every call fail
// with ErrSuggestionUnavailable.
func NewGeminiSuggester(gen Generator) *GeminiSuggester {
	return &GeminiSuggester{gen: gen}
}

type modelSuggestion struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Confidence *float64        `json:"confidence"`
}

// Suggest implements Suggester. It returns at most one candidate set.
func (s *GeminiSuggester) Suggest(ctx context.Context, amount decimal.Decimal, catalog []domain.Product, history []domain.Transaction) ([]domain.CandidateSet, error) {
	if s.gen == nil {
		return nil, ErrSuggestionUnavailable
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("Suggest: %w", domain.ErrInvalidAmount)
	}

	raw, err := s.gen.GenerateText(ctx, buildSuggestPrompt(amount, catalog, history), nil)
	if err != nil {
		return nil, fmt.Errorf("Suggest: %w: %v", ErrSuggestionUnavailable, err)
	}

	clean := cleanModelJSON(raw)
	var suggestions []modelSuggestion
	if err := json.Unmarshal([]byte(clean), &suggestions); err != nil {
		var single modelSuggestion
		if err2 := json.Unmarshal([]byte(clean), &single); err2 != nil {
			return nil, fmt.Errorf("Suggest: %w: unmarshal JSON: %v", ErrSuggestionUnavailable, err)
		}
		suggestions = []modelSuggestion{single}
	}

	set := resolveSuggestions(suggestions, catalog)
	if len(set.Items) == 0 {
		return nil, fmt.Errorf("Suggest: %w: no suggestion matched the catalog", ErrSuggestionUnavailable)
	}
	return []domain.CandidateSet{set}, nil
}

// resolveSuggestions maps model output onto catalog products, taking price
// from the catalog. Lines naming the same product are merged.
func resolveSuggestions(suggestions []modelSuggestion, catalog []domain.Product) domain.CandidateSet {
	var set domain.CandidateSet
	index := make(map[string]int)
	for _, sug := range suggestions {
		p, ok := resolveProduct(sug, catalog)
		if !ok || sug.Quantity <= 0 {
			continue
		}
		conf := defaultModelConfidence
		if sug.Confidence != nil && *sug.Confidence >= 0 && *sug.Confidence <= 1 {
			conf = *sug.Confidence
		}
		if i, seen := index[p.ID]; seen {
			set.Items[i].Quantity += sug.Quantity
			continue
		}
		index[p.ID] = len(set.Items)
		set.Items = append(set.Items, domain.CandidateItem{Product: p, Quantity: sug.Quantity, Confidence: conf})
	}
	return set
}

// resolveProduct matches by ID first, then by the closest name within a
// small edit distance.
func resolveProduct(sug modelSuggestion, catalog []domain.Product) (domain.Product, bool) {
	if sug.ID != "" {
		for _, p := range catalog {
			if p.ID == sug.ID {
				return p, true
			}
		}
	}

	name := strings.ToLower(strings.TrimSpace(sug.Name))
	if name == "" {
		return domain.Product{}, false
	}
	best, bestDist := -1, 0
	for i, p := range catalog {
		d := levenshtein.ComputeDistance(name, strings.ToLower(p.Name))
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 || bestDist > maxNameDistance(name) {
		return domain.Product{}, false
	}
	return catalog[best], true
}

func maxNameDistance(name string) int {
	return max(1, len([]rune(name))/4)
}

func buildSuggestPrompt(amount decimal.Decimal, catalog []domain.Product, history []domain.Transaction) string {
	products := make([]string, 0, len(catalog))
	for _, p := range catalog {
		products = append(products, fmt.Sprintf("%s (id %s): ₹%s", p.Name, p.ID, p.UnitPrice.String()))
	}

	var recent strings.Builder
	for i, tx := range history {
		if i == historyPromptLimit {
			break
		}
		names := make([]string, 0, len(tx.Lines))
		for _, l := range tx.Lines {
			names = append(names, l.Name)
		}
		basket := "Unknown"
		if len(names) > 0 {
			basket = strings.Join(names, ", ")
		}
		fmt.Fprintf(&recent, "₹%s -> %s\n", tx.Amount.String(), basket)
	}

	return "A customer paid ₹" + amount.String() + " at an Indian shop.\n" +
		"Available products: " + strings.Join(products, ", ") + "\n" +
		"Recent transaction patterns:\n" + recent.String() + "\n" +
		"Suggest the most likely product combination that matches this amount.\n" +
		"Consider:\n" +
		"1. Exact price matches first\n" +
		"2. Common combinations that sum to this amount\n" +
		"3. Past purchase patterns\n" +
		"4. Typical Indian shop buying behavior\n\n" +
		"Return a STRICT JSON array, no code fences:\n" +
		"[{\"id\": \"product_id\", \"name\": \"product_name\", \"price\": price_per_unit, \"quantity\": suggested_quantity, \"confidence\": confidence_score_0_to_1}]\n" +
		"If the amount exceeds the suggested products' total, the remainder is handled as miscellaneous.\n"
}

// FallbackSuggester merges the external suggestion with local search
// results. Sets totalling the amount exactly come first; within each tier
// external sets precede local ones. Any external failure falls back to
// local only.
type FallbackSuggester struct {
	external Suggester
	local    Suggester
	topK     int
}

// NewFallbackSuggester composes an external and a local suggester. topK caps
// the merged result; zero means search.DefaultTopK.
func NewFallbackSuggester(external, local Suggester, topK int) *FallbackSuggester {
	if topK <= 0 {
		topK = search.DefaultTopK
	}
	return &FallbackSuggester{external: external, local: local, topK: topK}
}

// Suggest implements Suggester.
func (f *FallbackSuggester) Suggest(ctx context.Context, amount decimal.Decimal, catalog []domain.Product, history []domain.Transaction) ([]domain.CandidateSet, error) {
	local, err := f.local.Suggest(ctx, amount, catalog, history)
	if err != nil {
		return nil, err
	}

	external, err := f.external.Suggest(ctx, amount, catalog, history)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Debug().Err(err).Msg("External suggestion unavailable, using local search")
		return local, nil
	}

	merged := make([]domain.CandidateSet, 0, len(external)+len(local))
	seen := make(map[string]bool)
	for _, set := range append(external, local...) {
		if seen[set.Key()] {
			continue
		}
		seen[set.Key()] = true
		merged = append(merged, set)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Total().Equal(amount) && !merged[j].Total().Equal(amount)
	})
	if len(merged) > f.topK {
		merged = merged[:f.topK]
	}
	return merged, nil
}
