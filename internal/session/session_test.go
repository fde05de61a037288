package session

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func prod(id string, price int64) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, UnitPrice: dec(price)}
}

func seedOf(items ...domain.CandidateItem) domain.CandidateSet {
	return domain.CandidateSet{Items: items}
}

func fixedOptions() Options {
	return Options{
		ID:    "sess-1",
		Now:   func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
		NewID: func() string { return "tx-1" },
	}
}

func assertInvariants(t *testing.T, s *Session) {
	t.Helper()
	assert.True(t, s.SelectedTotal().LessThanOrEqual(s.TargetAmount()), "selected %s > target %s", s.SelectedTotal(), s.TargetAmount())
	assert.True(t, s.MiscAmount().Add(s.SelectedTotal()).Equal(s.TargetAmount()))
	assert.False(t, s.MiscAmount().IsNegative())
	for _, l := range s.Lines() {
		if !l.Selected {
			assert.Zero(t, l.Quantity, "unselected line %s", l.ProductID)
		}
	}
}

func TestStart(t *testing.T) {
	tea := prod("tea", 10)
	s, err := Start(dec(37), seedOf(domain.CandidateItem{Product: tea, Quantity: 3, Confidence: 0.6}), fixedOptions())
	require.NoError(t, err)

	assert.Equal(t, StateOpen, s.State())
	require.Len(t, s.Lines(), 1)
	assert.True(t, s.Lines()[0].Selected)
	assert.True(t, s.MiscAmount().Equal(dec(7)))
	assertInvariants(t, s)
}

func TestStart_RejectsNonPositiveAmount(t *testing.T) {
	_, err := Start(dec(0), domain.CandidateSet{}, fixedOptions())
	assert.ErrorIs(t, err, domain.ErrInput)
}

func TestStart_EmptySeedIsAllMisc(t *testing.T) {
	s, err := Start(dec(25), domain.CandidateSet{}, fixedOptions())
	require.NoError(t, err)
	assert.Empty(t, s.Lines())
	assert.True(t, s.MiscAmount().Equal(dec(25)))
}

func TestStart_OverBudgetSeedLinesStayUnselected(t *testing.T) {
	a, b := prod("a", 30), prod("b", 40)
	s, err := Start(dec(50), seedOf(
		domain.CandidateItem{Product: a, Quantity: 1},
		domain.CandidateItem{Product: b, Quantity: 1},
	), fixedOptions())
	require.NoError(t, err)

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Selected)
	assert.False(t, lines[1].Selected)
	assert.Zero(t, lines[1].Quantity)
	assertInvariants(t, s)
}

func TestSetQuantity_RejectedEditIsNoOp(t *testing.T) {
	a := prod("a", 50)
	s, err := Start(dec(50), seedOf(domain.CandidateItem{Product: a, Quantity: 1, Confidence: 0.95}), fixedOptions())
	require.NoError(t, err)
	before := s.View()

	v, err := s.SetQuantity("a", 2)
	require.NoError(t, err)

	assert.True(t, v.Rejected)
	assert.Equal(t, 1, s.Lines()[0].Quantity)
	assert.Equal(t, before.Lines, v.Lines)
	assert.True(t, before.MiscAmount.Equal(v.MiscAmount))
}

func TestSetQuantity(t *testing.T) {
	tea, samosa := prod("tea", 10), prod("samosa", 15)
	s, err := Start(dec(40), seedOf(
		domain.CandidateItem{Product: tea, Quantity: 1},
		domain.CandidateItem{Product: samosa, Quantity: 2},
	), fixedOptions())
	require.NoError(t, err)

	v, err := s.SetQuantity("samosa", 1)
	require.NoError(t, err)
	assert.False(t, v.Rejected)
	assert.True(t, v.MiscAmount.Equal(dec(15)))

	v, err = s.SetQuantity("tea", -3)
	require.NoError(t, err)
	assert.False(t, v.Rejected)
	assert.False(t, v.Lines[0].Selected)
	assert.Zero(t, v.Lines[0].Quantity)
	assert.True(t, v.MiscAmount.Equal(dec(25)))
	assertInvariants(t, s)

	_, err = s.SetQuantity("missing", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)
	assert.ErrorIs(t, err, domain.ErrInput)
}

func TestAdjustQuantity(t *testing.T) {
	tea := prod("tea", 10)
	s, err := Start(dec(30), seedOf(domain.CandidateItem{Product: tea, Quantity: 1}), fixedOptions())
	require.NoError(t, err)

	v, err := s.AdjustQuantity("tea", 2)
	require.NoError(t, err)
	assert.False(t, v.Rejected)
	assert.Equal(t, 3, v.Lines[0].Quantity)
	assert.True(t, v.MiscAmount.IsZero())

	v, err = s.AdjustQuantity("tea", 1)
	require.NoError(t, err)
	assert.True(t, v.Rejected)
	assert.Equal(t, 3, v.Lines[0].Quantity)

	v, err = s.AdjustQuantity("tea", -5)
	require.NoError(t, err)
	assert.False(t, v.Lines[0].Selected)
	assert.True(t, v.MiscAmount.Equal(dec(30)))
}

func TestAdjustQuantity_HugeDeltaIsRejected(t *testing.T) {
	s, err := Start(dec(50), seedOf(domain.CandidateItem{Product: prod("a", 10), Quantity: 2}), fixedOptions())
	require.NoError(t, err)
	before := s.View()

	v, err := s.AdjustQuantity("a", math.MaxInt)
	require.NoError(t, err)
	assert.True(t, v.Rejected)
	assert.Equal(t, 2, v.Lines[0].Quantity)
	assert.True(t, v.Lines[0].Selected)
	assert.Equal(t, before.Lines, s.Lines())
	assert.True(t, s.MiscAmount().Equal(dec(30)))

	v, err = s.AdjustQuantity("a", math.MinInt)
	require.NoError(t, err)
	assert.False(t, v.Rejected)
	assert.Zero(t, v.Lines[0].Quantity)
	assert.True(t, v.MiscAmount.Equal(dec(50)))
	assertInvariants(t, s)
}

func TestToggleSelection(t *testing.T) {
	a, b := prod("a", 20), prod("b", 25)
	s, err := Start(dec(40), seedOf(domain.CandidateItem{Product: a, Quantity: 2}), fixedOptions())
	require.NoError(t, err)
	_, err = s.AddCandidateLines([]domain.Product{b})
	require.NoError(t, err)

	// b would push the total to 65.
	v, err := s.ToggleSelection("b")
	require.NoError(t, err)
	assert.True(t, v.Rejected)
	assert.False(t, v.Lines[1].Selected)

	v, err = s.ToggleSelection("a")
	require.NoError(t, err)
	assert.False(t, v.Rejected)
	assert.False(t, v.Lines[0].Selected)
	assert.Zero(t, v.Lines[0].Quantity)

	v, err = s.ToggleSelection("b")
	require.NoError(t, err)
	assert.False(t, v.Rejected)
	assert.True(t, v.Lines[1].Selected)
	assert.Equal(t, 1, v.Lines[1].Quantity)
	assert.True(t, v.MiscAmount.Equal(dec(15)))

	// Re-selecting a defaults to one unit, which would be 45 > 40.
	v, err = s.ToggleSelection("a")
	require.NoError(t, err)
	assert.True(t, v.Rejected)
	assertInvariants(t, s)
}

func TestAddCandidateLines_SkipsDuplicates(t *testing.T) {
	a, b := prod("a", 10), prod("b", 5)
	s, err := Start(dec(20), seedOf(domain.CandidateItem{Product: a, Quantity: 2}), fixedOptions())
	require.NoError(t, err)

	v, err := s.AddCandidateLines([]domain.Product{a, b, b})
	require.NoError(t, err)

	require.Len(t, v.Lines, 2)
	assert.Equal(t, 2, v.Lines[0].Quantity)
	assert.False(t, v.Lines[1].Selected)
	assert.True(t, v.MiscAmount.IsZero())
}

func TestExplainMiscellaneous(t *testing.T) {
	tea, biscuit, chips, gum := prod("tea", 10), prod("biscuit", 5), prod("chips", 20), prod("gum", 2)
	opts := fixedOptions()
	opts.Catalog = []domain.Product{tea, biscuit, chips, gum}

	s, err := Start(dec(37), seedOf(domain.CandidateItem{Product: tea, Quantity: 3}), opts)
	require.NoError(t, err)

	got := s.ExplainMiscellaneous()
	require.Len(t, got, 2)
	// misc = 7: biscuit buys 1 (5), gum buys 3 (6). Tea and chips are too expensive.
	assert.Equal(t, "gum", got[0].ProductID)
	assert.Equal(t, 3, got[0].ExtraQuantity)
	assert.True(t, got[0].ExtraValue.Equal(dec(6)))
	assert.Equal(t, "biscuit", got[1].ProductID)
}

func TestExplainMiscellaneous_TopThreeAndEmpty(t *testing.T) {
	opts := fixedOptions()
	opts.Catalog = []domain.Product{prod("a", 1), prod("b", 3), prod("c", 4), prod("d", 6)}

	s, err := Start(dec(9), domain.CandidateSet{}, opts)
	require.NoError(t, err)

	got := s.ExplainMiscellaneous()
	require.Len(t, got, MaxExplanations)
	// a=9, b=9, c=8, d=6; ties keep discovery order.
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ProductID, got[1].ProductID, got[2].ProductID})

	full, err := Start(dec(10), seedOf(domain.CandidateItem{Product: prod("x", 10), Quantity: 1}), opts)
	require.NoError(t, err)
	assert.Empty(t, full.ExplainMiscellaneous())

	cheapless, err := Start(dec(7), domain.CandidateSet{}, Options{Catalog: []domain.Product{prod("tv", 300)}})
	require.NoError(t, err)
	assert.Empty(t, cheapless.ExplainMiscellaneous())
}

func TestConfirm(t *testing.T) {
	payer := "ravi@upi"
	tea, samosa := prod("tea", 10), prod("samosa", 15)
	opts := fixedOptions()
	opts.Source = Source{
		Method:            domain.SourceAudioCapture,
		TranscriptionText: "You have received 40 rupees",
		DetectedLanguage:  "english",
		PayerInfo:         &payer,
	}
	s, err := Start(dec(40), seedOf(
		domain.CandidateItem{Product: tea, Quantity: 1},
		domain.CandidateItem{Product: samosa, Quantity: 2},
	), opts)
	require.NoError(t, err)
	_, err = s.SetQuantity("tea", 0)
	require.NoError(t, err)

	tx, err := s.Confirm()
	require.NoError(t, err)

	assert.Equal(t, "tx-1", tx.ID)
	assert.True(t, tx.Amount.Equal(dec(40)))
	assert.True(t, tx.MiscAmount.Equal(dec(10)))
	require.Len(t, tx.Lines, 1)
	assert.Equal(t, "samosa", tx.Lines[0].ProductID)
	assert.Equal(t, "Product samosa", tx.Lines[0].Name)
	assert.Equal(t, domain.SourceAudioCapture, tx.SourceMethod)
	require.NotNil(t, tx.PayerInfo)
	assert.Equal(t, payer, *tx.PayerInfo)
	assert.Equal(t, StateCommitted, s.State())

	_, err = s.SetQuantity("samosa", 1)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = s.Confirm()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.ErrorIs(t, s.Cancel(), domain.ErrSessionClosed)
}

func TestConfirmWith_FailedRecordKeepsSessionOpen(t *testing.T) {
	ids := []string{"tx-1", "tx-2"}
	opts := fixedOptions()
	opts.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	s, err := Start(dec(20), seedOf(domain.CandidateItem{Product: prod("tea", 10), Quantity: 2}), opts)
	require.NoError(t, err)

	boom := errors.New("record failed")
	_, err = s.ConfirmWith(func(domain.Transaction) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateOpen, s.State())

	var recorded []string
	tx, err := s.ConfirmWith(func(tx domain.Transaction) error {
		recorded = append(recorded, tx.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-2", tx.ID)
	assert.Equal(t, []string{"tx-2"}, recorded)
	assert.Equal(t, StateCommitted, s.State())
}

func TestCancel(t *testing.T) {
	s, err := Start(dec(10), domain.CandidateSet{}, fixedOptions())
	require.NoError(t, err)

	require.NoError(t, s.Cancel())
	assert.Equal(t, StateDiscarded, s.State())

	_, err = s.ToggleSelection("a")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestRandomEditsKeepBudget(t *testing.T) {
	catalog := []domain.Product{
		{ID: "a", Name: "A", UnitPrice: decimal.RequireFromString("3.35")},
		{ID: "b", Name: "B", UnitPrice: decimal.RequireFromString("7.10")},
		{ID: "c", Name: "C", UnitPrice: decimal.RequireFromString("12.05")},
		{ID: "d", Name: "D", UnitPrice: decimal.RequireFromString("0.45")},
	}
	target := decimal.RequireFromString("41.20")
	s, err := Start(target, seedOf(domain.CandidateItem{Product: catalog[1], Quantity: 2}), fixedOptions())
	require.NoError(t, err)
	_, err = s.AddCandidateLines(catalog)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		id := catalog[rng.Intn(len(catalog))].ID
		before := s.View()

		var v View
		switch rng.Intn(3) {
		case 0:
			v, err = s.SetQuantity(id, rng.Intn(12)-2)
		case 1:
			v, err = s.AdjustQuantity(id, rng.Intn(7)-3)
		default:
			v, err = s.ToggleSelection(id)
		}
		require.NoError(t, err)

		if v.Rejected {
			assert.Equal(t, before.Lines, v.Lines)
			assert.True(t, before.MiscAmount.Equal(v.MiscAmount))
		}
		assertInvariants(t, s)
	}
}
