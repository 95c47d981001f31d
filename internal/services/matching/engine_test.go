package matching_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/matching"
	mock_matching "bank-reconciliation-engine/internal/services/matching/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDay = time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

func testConfig() config.Matching {
	cfg := config.DefaultMatching()
	cfg.CandidateTimeout = time.Second
	return cfg
}

func txn(amount, ref, payer, narration string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:               uuid.New(),
		TenantID:         "tenant-1",
		Currency:         "INR",
		TransactionDate:  baseDay,
		Amount:           decimal.RequireFromString(amount),
		Direction:        models.Credit,
		Description:      narration,
		ReferenceNumber:  ref,
		CounterpartyName: payer,
		PayerKey:         models.NormalizeParty(payer),
		Status:           models.TxnProcessing,
	}
}

func candidate(id, number, customer, amount string, due time.Time) matching.Candidate {
	return matching.Candidate{
		ID:               id,
		Type:             models.TargetInvoice,
		Number:           number,
		CounterpartyName: customer,
		CounterpartyKey:  models.NormalizeParty(customer),
		Currency:         "INR",
		Amount:           decimal.RequireFromString(amount),
		Date:             due,
	}
}

func TestPipeline_Evaluate(t *testing.T) {
	exactCand := candidate("inv-a", "INV-1001", "Globex Corp", "5000", baseDay.AddDate(0, 0, -3))
	exactCand.Reference = "UTR123456"

	history := []string{
		"sharma enterprises", "sharma enterprises", "sharma enterprises", "sharma enterprises", "sharma enterprises",
		"sharma enterprises", "sharma enterprises", "sharma enterprises", "patel stores", "patel stores",
	}

	tests := []struct {
		name         string
		txn          *models.BankTransaction
		candidates   []matching.Candidate
		findErr      error
		history      []string
		wantDecision matching.Decision
		wantType     models.MatchType
		wantTarget   string
		wantScore    int
		wantDegraded bool
	}{
		{
			name:         "exact reference and amount auto-confirms",
			txn:          txn("5000.00", "utr 123456", "GLOBEX", "NEFT CR UTR123456"),
			candidates:   []matching.Candidate{exactCand},
			wantDecision: matching.DecisionAutoConfirm,
			wantType:     models.MatchExact,
			wantTarget:   "inv-a",
			wantScore:    100,
		},
		{
			name: "fuzzy in review band goes to review",
			txn:  txn("12000", "", "ACME Traders", "NEFT CR ACME TRADERS"),
			candidates: []matching.Candidate{
				candidate("inv-b", "INV-7001", "Acme Traders Pvt Ltd", "12000", baseDay.AddDate(0, 0, -5)),
			},
			wantDecision: matching.DecisionReview,
			wantType:     models.MatchFuzzy,
			wantTarget:   "inv-b",
			wantScore:    87,
		},
		{
			name: "fuzzy at the ceiling auto-confirms",
			txn:  txn("8400", "", "Initech", "IMPS INITECH INV-2044"),
			candidates: []matching.Candidate{
				candidate("inv-c", "INV-2044", "Initech Ltd", "8400", baseDay),
			},
			wantDecision: matching.DecisionAutoConfirm,
			wantType:     models.MatchFuzzy,
			wantTarget:   "inv-c",
			wantScore:    100,
		},
		{
			name: "payer habit lifts a weak fuzzy score into review",
			txn:  txn("12000", "", "Ravi Kumar", "UPI RAVI KUMAR"),
			candidates: []matching.Candidate{
				candidate("inv-d", "INV-9", "Sharma Enterprises", "12000", baseDay.AddDate(0, 0, -20)),
			},
			history:      history,
			wantDecision: matching.DecisionReview,
			wantType:     models.MatchPredictive,
			wantTarget:   "inv-d",
			wantScore:    70,
		},
		{
			name:         "no candidates routes to suspense",
			txn:          txn("999.99", "", "Unknown", "CASH DEPOSIT"),
			wantDecision: matching.DecisionSuspense,
		},
		{
			name: "candidate outside the amount band is ignored",
			txn:  txn("1000", "", "Acme", "ACME"),
			candidates: []matching.Candidate{
				candidate("inv-e", "INV-1", "Acme", "1100", baseDay),
			},
			wantDecision: matching.DecisionSuspense,
		},
		{
			name:         "lookup failure defers instead of suspense",
			txn:          txn("1000", "", "Acme", "ACME"),
			findErr:      errors.New("connection reset"),
			wantDecision: matching.DecisionDefer,
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			finder := mock_matching.NewMockReceivableFinder(ctrl)
			finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return(tt.candidates, tt.findErr)

			hist := mock_matching.NewMockHistoryProvider(ctrl)
			hist.EXPECT().PayerHistory(gomock.Any(), "tenant-1", tt.txn.PayerKey, 20).Return(tt.history, nil).AnyTimes()

			out := matching.NewPipeline(finder, hist, testConfig(), nil).Evaluate(context.Background(), tt.txn, nil)

			assert.Equal(t, tt.wantDecision, out.Decision)
			assert.Equal(t, tt.wantDegraded, out.Degraded)
			if tt.wantTarget == "" {
				assert.Nil(t, out.Best)
				return
			}
			require.NotNil(t, out.Best)
			assert.Equal(t, tt.wantType, out.Best.MatchType)
			assert.Equal(t, tt.wantTarget, out.Best.Candidate.ID)
			assert.Equal(t, tt.wantScore, out.Best.Score.Confidence)
		})
	}
}

func TestPipeline_QueryWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finder := mock_matching.NewMockReceivableFinder(ctrl)
	finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, q matching.Query) ([]matching.Candidate, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			assert.Equal(t, "tenant-1", q.TenantID)
			assert.Equal(t, "INR", q.Currency)
			assert.Equal(t, "980", q.MinAmount.String())
			assert.Equal(t, "1020", q.MaxAmount.String())
			assert.True(t, q.From.Equal(baseDay.AddDate(0, 0, -45)))
			assert.True(t, q.To.Equal(baseDay.AddDate(0, 0, 45)))
			return nil, nil
		})

	matching.NewPipeline(finder, nil, testConfig(), nil).Evaluate(context.Background(), txn("1000", "", "", "x"), nil)
}

func TestPipeline_ExcludesRejectedTargets(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cands := []matching.Candidate{
		candidate("inv-1", "INV-1", "Acme Traders", "500", baseDay),
		candidate("inv-2", "INV-2", "Acme Traders", "500", baseDay.AddDate(0, 0, -2)),
	}
	finder := mock_matching.NewMockReceivableFinder(ctrl)
	finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return(cands, nil)

	out := matching.NewPipeline(finder, nil, testConfig(), nil).
		Evaluate(context.Background(), txn("500", "", "Acme Traders", "ACME TRADERS"), []string{"inv-1"})

	require.NotNil(t, out.Best)
	assert.Equal(t, "inv-2", out.Best.Candidate.ID)
}

func TestPipeline_TieBreaksAreDeterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	due := baseDay.AddDate(0, 0, -1)
	cands := []matching.Candidate{
		candidate("inv-z", "INV-Z", "Acme Traders", "1000", due),
		candidate("inv-a", "INV-A", "Acme Traders", "1000", due),
		candidate("inv-m", "INV-M", "Acme Traders", "1000", due.AddDate(0, 0, -1)),
	}
	reversed := []matching.Candidate{cands[2], cands[1], cands[0]}

	finder := mock_matching.NewMockReceivableFinder(ctrl)
	gomock.InOrder(
		finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return(cands, nil),
		finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return(reversed, nil),
	)
	p := matching.NewPipeline(finder, nil, testConfig(), nil)
	in := txn("1000", "", "Acme Traders", "ACME TRADERS")

	first := p.Evaluate(context.Background(), in, nil)
	second := p.Evaluate(context.Background(), in, nil)

	require.NotNil(t, first.Best)
	require.NotNil(t, second.Best)
	assert.Equal(t, first.Best.Candidate.ID, second.Best.Candidate.ID)
	assert.Equal(t, first.Best.Score, second.Best.Score)
	// All three round to 89 with no amount delta; the earliest date wins.
	assert.Equal(t, "inv-m", first.Best.Candidate.ID)
}

func TestPipeline_TieBreakFallsBackToID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	due := baseDay.AddDate(0, 0, -1)
	finder := mock_matching.NewMockReceivableFinder(ctrl)
	finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return([]matching.Candidate{
		candidate("inv-z", "INV-Z", "Acme Traders", "1000", due),
		candidate("inv-a", "INV-A", "Acme Traders", "1000", due),
	}, nil)

	out := matching.NewPipeline(finder, nil, testConfig(), nil).
		Evaluate(context.Background(), txn("1000", "", "Acme Traders", "ACME TRADERS"), nil)
	require.NotNil(t, out.Best)
	assert.Equal(t, "inv-a", out.Best.Candidate.ID)
}

type failingStrategy struct{}

func (failingStrategy) Type() models.MatchType { return models.MatchFuzzy }
func (failingStrategy) Threshold() int         { return 70 }
func (failingStrategy) Score(*matching.Input, matching.Candidate) (matching.Score, error) {
	return matching.Score{}, matching.ErrStrategyEvaluation
}

func TestPipeline_StrategyErrorFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cands := []matching.Candidate{candidate("inv-1", "INV-1", "Acme", "100", baseDay)}
	finder := mock_matching.NewMockReceivableFinder(ctrl)
	finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return(cands, nil).Times(2)

	cfg := testConfig()
	base := matching.NewPipeline(finder, nil, cfg, nil)

	// A later strategy still matches after an earlier one errors.
	p := base.WithStrategies(failingStrategy{}, matching.NewFuzzyStrategy(cfg.FuzzyThreshold, cfg.DateWindowDays))
	out := p.Evaluate(context.Background(), txn("100", "", "Acme", "ACME INV-1"), nil)
	require.NotNil(t, out.Best)
	assert.True(t, out.Degraded)
	assert.Equal(t, matching.DecisionAutoConfirm, out.Decision)

	// Nothing matches and something failed: defer, never suspense.
	p = base.WithStrategies(failingStrategy{})
	out = p.Evaluate(context.Background(), txn("100", "", "Acme", "ACME"), nil)
	assert.Nil(t, out.Best)
	assert.Equal(t, matching.DecisionDefer, out.Decision)
	require.NotEmpty(t, out.Errors)
	assert.ErrorIs(t, out.Errors[0], matching.ErrStrategyEvaluation)
}

func TestPipeline_Rank(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	strong := candidate("inv-1", "INV-1", "Acme Traders", "1000", baseDay)
	weaker := candidate("inv-2", "INV-2", "Acme Traders", "1010", baseDay.AddDate(0, 0, -10))
	stranger := candidate("inv-3", "INV-3", "Zeta Labs", "995", baseDay.AddDate(0, 0, -30))

	finder := mock_matching.NewMockReceivableFinder(ctrl)
	finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return([]matching.Candidate{stranger, weaker, strong}, nil)

	got, err := matching.NewPipeline(finder, nil, testConfig(), nil).
		Rank(context.Background(), txn("1000", "", "Acme Traders", "NEFT ACME TRADERS INV-1"), nil, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "inv-1", got[0].Candidate.ID)
	assert.Equal(t, matching.ActionAutoMatch, got[0].Action)
	assert.Equal(t, "inv-2", got[1].Candidate.ID)
	assert.Equal(t, matching.ActionManualReview, got[1].Action)
}

func TestPipeline_NetsOutSettledAmounts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	paid := candidate("inv-paid", "INV-31", "Globex Corp", "5000", baseDay)
	paid.Reference = "UTR555"
	half := candidate("inv-half", "INV-32", "Globex Corp", "5000", baseDay)

	finder := mock_matching.NewMockReceivableFinder(ctrl)
	finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).Return([]matching.Candidate{paid, half}, nil).Times(2)
	settled := mock_matching.NewMockSettlementProvider(ctrl)
	settled.EXPECT().Settled(gomock.Any(), "tenant-1", gomock.Any()).Return(map[string]matching.Settlement{
		"inv-paid": {Cleared: decimal.NewFromInt(5000), Version: 1},
		"inv-half": {Cleared: decimal.NewFromInt(2500), Version: 3},
	}, nil).Times(2)

	p := matching.NewPipeline(finder, nil, testConfig(), nil).WithSettlements(settled)

	out := p.Evaluate(context.Background(), txn("5000", "UTR555", "Globex", "NEFT CR UTR555 GLOBEX"), nil)
	assert.Equal(t, matching.DecisionSuspense, out.Decision, "a fully cleared invoice is not offered again")
	assert.Zero(t, out.Considered)

	cands, err := p.Candidates(context.Background(), txn("2500", "", "Globex", "NEFT CR GLOBEX"), nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "inv-half", cands[0].ID)
	assert.Equal(t, "2500", cands[0].Amount.String())
	assert.Equal(t, "2500", cands[0].Cleared.String())
	assert.Equal(t, 3, cands[0].SettledVersion)
}

func TestPipeline_SettlementLookupFailureDefers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finder := mock_matching.NewMockReceivableFinder(ctrl)
	finder.EXPECT().FindOpenReceivables(gomock.Any(), gomock.Any()).
		Return([]matching.Candidate{candidate("inv-1", "INV-1", "Acme", "1000", baseDay)}, nil)
	settled := mock_matching.NewMockSettlementProvider(ctrl)
	settled.EXPECT().Settled(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	out := matching.NewPipeline(finder, nil, testConfig(), nil).WithSettlements(settled).
		Evaluate(context.Background(), txn("1000", "", "Acme", "ACME"), nil)
	assert.Equal(t, matching.DecisionDefer, out.Decision)
	assert.True(t, out.Degraded)
}
