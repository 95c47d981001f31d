package matching

import (
	"testing"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"ACME Traders", "Acme Traders Pvt. Ltd.", 100},
		{"M/S ACME TRADERS", "acme traders", 100},
		{"Acme Trader", "Acme Traders", 100},
		{"Acme Corp", "ACME Corporation", 100},
		{"Ravi Kumar", "Sharma Enterprises", 0},
		{"Acme Foods", "Acme Traders", 50},
		{"", "Acme", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"~"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, NameSimilarity(tt.a, tt.b), 0.01)
		})
	}
}

func TestTokensMatch(t *testing.T) {
	assert.True(t, tokensMatch("traders", "trader"))
	assert.True(t, tokensMatch("corporation", "corp"))
	assert.False(t, tokensMatch("acme", "acne"))
	assert.False(t, tokensMatch("abc", "abcdef"))
}

func TestKeywordOverlap(t *testing.T) {
	assert.Equal(t, float64(100), KeywordOverlap("INV-2024-001", "", "NEFT ACME inv2024001 payment"))
	assert.InDelta(t, 100.0/3, KeywordOverlap("INV-77", "annual maintenance", "AMC ANNUAL PAYMENT"), 0.01)
	assert.Zero(t, KeywordOverlap("", "", "anything"))
}

func TestDateCloseness(t *testing.T) {
	assert.Equal(t, float64(100), DateCloseness(0, 45))
	assert.InDelta(t, 50, DateCloseness(-22.5, 45), 0.001)
	assert.Zero(t, DateCloseness(60, 45))
}

func TestExactStrategyRequiresEqualAmount(t *testing.T) {
	s := NewExactStrategy(100)
	in := &Input{Txn: &models.BankTransaction{ReferenceNumber: "UTR-9", Amount: decimal.RequireFromString("100.01")}}
	c := Candidate{ID: "x", Number: "utr9", Amount: decimal.RequireFromString("100")}

	got, err := s.Score(in, c)
	require.NoError(t, err)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, "invoice_number", got.Criteria["matched_on"])

	in.Txn.Amount = decimal.RequireFromString("100.00")
	got, err = s.Score(in, c)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Confidence)
}

func TestStrategiesRejectBadCandidates(t *testing.T) {
	in := &Input{Txn: &models.BankTransaction{Amount: decimal.NewFromInt(10)}}
	c := Candidate{ID: "zero", Amount: decimal.Zero}

	_, err := NewFuzzyStrategy(70, 45).Score(in, c)
	assert.ErrorIs(t, err, ErrStrategyEvaluation)
	_, err = NewExactStrategy(100).Score(nil, c)
	assert.ErrorIs(t, err, ErrStrategyEvaluation)
}

func TestFrequencyPrior(t *testing.T) {
	p := FrequencyPrior{MinHits: 2}
	history := []string{"a", "b", "a", "c"}
	assert.Equal(t, 0.5, p.Weight(history, "a"))
	assert.Zero(t, p.Weight(history, "b"))
	assert.Zero(t, p.Weight(nil, "a"))
}

func TestPredictiveStrategyIsCapped(t *testing.T) {
	fuzzy := NewFuzzyStrategy(70, 45)
	s := NewPredictiveStrategy(60, fuzzy, FrequencyPrior{MinHits: 2}, 20, 99)
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	in := &Input{
		Txn: &models.BankTransaction{
			Amount:           decimal.NewFromInt(500),
			TransactionDate:  day,
			CounterpartyName: "Acme",
			Description:      "ACME INV-1",
		},
		History: []string{"acme", "acme", "acme"},
	}
	c := Candidate{ID: "inv-1", Number: "INV-1", CounterpartyName: "Acme", CounterpartyKey: "acme", Amount: decimal.NewFromInt(500), Date: day}

	got, err := s.Score(in, c)
	require.NoError(t, err)
	assert.Equal(t, 99, got.Confidence)
	assert.Equal(t, 100, got.Criteria["fuzzy_score"])
}

func TestManualStrategy(t *testing.T) {
	in := &Input{Txn: &models.BankTransaction{Amount: decimal.NewFromInt(10)}}
	got, err := ManualStrategy{}.Score(in, Candidate{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, 100, got.Confidence)
	assert.Zero(t, ManualStrategy{}.Threshold())

	in.ManualConfidence = 80
	got, err = ManualStrategy{}.Score(in, Candidate{})
	require.NoError(t, err)
	assert.Equal(t, 80, got.Confidence)

	in.ManualConfidence = 140
	_, err = ManualStrategy{}.Score(in, Candidate{})
	assert.ErrorIs(t, err, ErrStrategyEvaluation)
}
