package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/search"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
	media    []*Media
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string, media *Media) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.media = append(f.media, media)
	return f.response, f.err
}

func product(id, name string, price int64) domain.Product {
	return domain.Product{ID: id, Name: name, UnitPrice: decimal.NewFromInt(price)}
}

var shopCatalog = []domain.Product{
	product("tea", "Tea", 10),
	product("samosa", "Samosa", 15),
	product("biscuit", "Parle-G Biscuit", 5),
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"chatter around object", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"chatter around array", "Result:\n[1,2]\nDone.", `[1,2]`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestGeminiTranscriber(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured", func(t *testing.T) {
		_, err := NewGeminiTranscriber(nil).Transcribe(ctx, []byte("x"), "audio/webm")
		assert.ErrorIs(t, err, ErrTranscriptionUnavailable)
		assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	})

	t.Run("backend error", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota exceeded")}
		_, err := NewGeminiTranscriber(gen).Transcribe(ctx, []byte("x"), "")
		assert.ErrorIs(t, err, ErrTranscriptionFailed)
	})

	t.Run("json response", func(t *testing.T) {
		gen := &fakeGenerator{response: "```json\n{\"transcription\":\"Received ₹40 from Ravi\",\"amount\":40,\"language\":\"english\",\"payerInfo\":\"ravi@upi\"}\n```"}
		tr, err := NewGeminiTranscriber(gen).Transcribe(ctx, []byte("audio"), "audio/ogg")
		require.NoError(t, err)
		assert.Equal(t, "40", tr.Amount.String())
		assert.Equal(t, "Received ₹40 from Ravi", tr.Text)
		assert.Equal(t, "english", tr.Language)
		require.NotNil(t, tr.PayerInfo)
		assert.Equal(t, "ravi@upi", *tr.PayerInfo)
		require.NotNil(t, gen.media[0])
		assert.Equal(t, "audio/ogg", gen.media[0].MIMEType)
	})

	t.Run("malformed response falls back to regex", func(t *testing.T) {
		gen := &fakeGenerator{response: "You have received ₹ 72.50 via PhonePe"}
		tr, err := NewGeminiTranscriber(gen).Transcribe(ctx, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "72.5", tr.Amount.String())
		assert.Equal(t, "unknown", tr.Language)
		assert.Nil(t, tr.PayerInfo)
	})

	t.Run("no amount at all", func(t *testing.T) {
		gen := &fakeGenerator{response: "static noise"}
		tr, err := NewGeminiTranscriber(gen).Transcribe(ctx, nil, "")
		require.NoError(t, err)
		assert.True(t, tr.Amount.IsZero())
	})
}

func TestMockTranscriber(t *testing.T) {
	ctx := context.Background()
	for i, want := range []int64{35, 50, 25, 100, 40} {
		i := i
		m := NewMockTranscriberWithPicker(func(n int) int { return i })
		tr, err := m.Transcribe(ctx, nil, "")
		require.NoError(t, err)
		assert.True(t, tr.Amount.Equal(decimal.NewFromInt(want)), "alert %d", i)
		assert.NotEmpty(t, tr.Text)
	}

	tr, err := NewMockTranscriber().Transcribe(ctx, nil, "")
	require.NoError(t, err)
	assert.True(t, tr.Amount.IsPositive())
}

func TestFallbackTranscriber(t *testing.T) {
	ctx := context.Background()
	mock := NewMockTranscriberWithPicker(func(int) int { return 0 })

	tr, err := NewFallbackTranscriber(NewGeminiTranscriber(nil), mock).Transcribe(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "35", tr.Amount.String())

	failing := NewGeminiTranscriber(&fakeGenerator{err: errors.New("timeout")})
	tr, err = NewFallbackTranscriber(failing, mock).Transcribe(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "35", tr.Amount.String())

	ok := NewGeminiTranscriber(&fakeGenerator{response: `{"transcription":"₹12","amount":12,"language":"kannada"}`})
	tr, err = NewFallbackTranscriber(ok, mock).Transcribe(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "12", tr.Amount.String())
	assert.Equal(t, "kannada", tr.Language)
}

func TestGeminiSuggester(t *testing.T) {
	ctx := context.Background()
	amount := decimal.NewFromInt(40)

	t.Run("unconfigured", func(t *testing.T) {
		_, err := NewGeminiSuggester(nil).Suggest(ctx, amount, shopCatalog, nil)
		assert.ErrorIs(t, err, ErrSuggestionUnavailable)
	})

	t.Run("resolves ids and fuzzy names with catalog prices", func(t *testing.T) {
		gen := &fakeGenerator{response: `[
			{"id":"tea","name":"Tea","price":99,"quantity":1,"confidence":0.9},
			{"name":"samosaa","price":15,"quantity":2,"confidence":1.7},
			{"name":"Unicorn Horn","price":5,"quantity":1},
			{"id":"tea","quantity":1}
		]`}
		sets, err := NewGeminiSuggester(gen).Suggest(ctx, amount, shopCatalog, nil)
		require.NoError(t, err)
		require.Len(t, sets, 1)

		items := sets[0].Items
		require.Len(t, items, 2)
		assert.Equal(t, "tea", items[0].Product.ID)
		assert.Equal(t, 2, items[0].Quantity)
		assert.True(t, items[0].Product.UnitPrice.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, 0.9, items[0].Confidence)
		assert.Equal(t, "samosa", items[1].Product.ID)
		assert.Equal(t, defaultModelConfidence, items[1].Confidence)
	})

	t.Run("single object response", func(t *testing.T) {
		gen := &fakeGenerator{response: `{"id":"biscuit","quantity":3}`}
		sets, err := NewGeminiSuggester(gen).Suggest(ctx, amount, shopCatalog, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, sets[0].Items[0].Quantity)
	})

	t.Run("garbage", func(t *testing.T) {
		gen := &fakeGenerator{response: "I think tea?"}
		_, err := NewGeminiSuggester(gen).Suggest(ctx, amount, shopCatalog, nil)
		assert.ErrorIs(t, err, ErrSuggestionUnavailable)
	})

	t.Run("nothing matches", func(t *testing.T) {
		gen := &fakeGenerator{response: `[{"name":"Diesel","quantity":1}]`}
		_, err := NewGeminiSuggester(gen).Suggest(ctx, amount, shopCatalog, nil)
		assert.ErrorIs(t, err, ErrSuggestionUnavailable)
	})

	t.Run("prompt carries catalog and history", func(t *testing.T) {
		gen := &fakeGenerator{response: `[{"id":"tea","quantity":4}]`}
		history := []domain.Transaction{{Amount: decimal.NewFromInt(30), Lines: []domain.TransactionLine{{Name: "Samosa", Quantity: 2}}}}
		_, err := NewGeminiSuggester(gen).Suggest(ctx, amount, shopCatalog, history)
		require.NoError(t, err)
		assert.Contains(t, gen.prompts[0], "₹40")
		assert.Contains(t, gen.prompts[0], "Samosa (id samosa): ₹15")
		assert.Contains(t, gen.prompts[0], "₹30 -> Samosa")
	})
}

func TestFallbackSuggester(t *testing.T) {
	ctx := context.Background()
	local := NewLocalSuggester(search.DefaultConfig())
	amount := decimal.NewFromInt(40)

	t.Run("external failure uses local", func(t *testing.T) {
		f := NewFallbackSuggester(NewGeminiSuggester(nil), local, 0)
		sets, err := f.Suggest(ctx, amount, shopCatalog, nil)
		require.NoError(t, err)
		want, _ := local.Suggest(ctx, amount, shopCatalog, nil)
		assert.Equal(t, want, sets)
	})

	t.Run("external first then local without duplicates", func(t *testing.T) {
		gen := &fakeGenerator{response: `[{"id":"tea","quantity":4}]`}
		f := NewFallbackSuggester(NewGeminiSuggester(gen), local, 3)
		sets, err := f.Suggest(ctx, amount, shopCatalog, nil)
		require.NoError(t, err)
		require.Len(t, sets, 3)
		assert.Equal(t, "tea", sets[0].Items[0].Product.ID)
		assert.Equal(t, 4, sets[0].Items[0].Quantity)
		keys := map[string]bool{}
		for _, s := range sets {
			assert.False(t, keys[s.Key()], "duplicate %s", s.Key())
			keys[s.Key()] = true
		}
	})

	t.Run("exact local sets rank above an inexact external set", func(t *testing.T) {
		gen := &fakeGenerator{response: `[{"id":"tea","quantity":3}]`}
		f := NewFallbackSuggester(NewGeminiSuggester(gen), local, 10)
		sets, err := f.Suggest(ctx, amount, shopCatalog, nil)
		require.NoError(t, err)
		require.NotEmpty(t, sets)
		assert.True(t, sets[0].Total().Equal(amount))

		external := -1
		for i, s := range sets {
			if len(s.Items) == 1 && s.Items[0].Product.ID == "tea" && s.Items[0].Quantity == 3 {
				external = i
			}
		}
		require.GreaterOrEqual(t, external, 1)
		for _, s := range sets[:external] {
			assert.True(t, s.Total().Equal(amount), "inexact set %s ranked above external", s.Key())
		}
	})

	t.Run("invalid amount propagates", func(t *testing.T) {
		f := NewFallbackSuggester(NewGeminiSuggester(nil), local, 0)
		_, err := f.Suggest(ctx, decimal.Zero, shopCatalog, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	snap := Snapshot{
		Profile: domain.ShopProfile{Name: "Ravi Stores", Type: "Kirana"},
		Inventory: []domain.StockItem{
			{Name: "Tea", Quantity: 12, UnitPrice: decimal.NewFromInt(10)},
		},
		Recent: []domain.Transaction{{
			Amount:    decimal.NewFromInt(20),
			Timestamp: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
			Lines:     []domain.TransactionLine{{Name: "Tea", Quantity: 2}},
		}},
		TodayTotal: decimal.NewFromInt(20),
		Location:   time.UTC,
	}

	assert.Equal(t, ApologyUnconfigured, Answer(ctx, NewGeminiChat(nil), "How is business?", snap))
	assert.Equal(t, ApologyFailed, Answer(ctx, NewGeminiChat(&fakeGenerator{err: errors.New("boom")}), "How is business?", snap))

	gen := &fakeGenerator{response: "  Tea is selling well.  "}
	assert.Equal(t, "Tea is selling well.", Answer(ctx, NewGeminiChat(gen), "What sells?", snap))

	prompt := gen.prompts[0]
	for _, want := range []string{
		"- Name: Ravi Stores",
		"- Type: Kirana",
		"Tea: 12 units (₹10 each)",
		"₹20 - 2x Tea (16/10/2026, 09:30)",
		"Today's Sales: ₹20",
		"User Question: What sells?",
	} {
		assert.True(t, strings.Contains(prompt, want), "prompt missing %q", want)
	}
}

func TestBuildChatPrompt_Defaults(t *testing.T) {
	prompt := BuildChatPrompt("hi", Snapshot{})
	assert.Contains(t, prompt, "- Name: Shop")
	assert.Contains(t, prompt, "- Type: General Store")
}
