package matching

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Pipeline runs the ordered strategies over a transaction's candidates.
type Pipeline struct {
	finder      ReceivableFinder
	history     HistoryProvider
	settlements SettlementProvider
	strategies  []Strategy
	cfg         config.Matching
}

// NewPipeline wires the default exact, fuzzy, predictive order. history may
// be nil, in which case predictive scoring sees an empty history.
func NewPipeline(finder ReceivableFinder, history HistoryProvider, cfg config.Matching, prior Prior) *Pipeline {
	if prior == nil {
		prior = FrequencyPrior{MinHits: cfg.PredictiveMinHits}
	}
	fuzzy := NewFuzzyStrategy(cfg.FuzzyThreshold, cfg.DateWindowDays)
	return &Pipeline{
		finder:  finder,
		history: history,
		cfg:     cfg,
		strategies: []Strategy{
			NewExactStrategy(cfg.ExactThreshold),
			fuzzy,
			NewPredictiveStrategy(cfg.PredictiveThreshold, fuzzy, prior, cfg.PredictiveBoost, cfg.PredictiveCap),
		},
	}
}

// WithStrategies replaces the strategy order.
func (p *Pipeline) WithStrategies(strategies ...Strategy) *Pipeline {
	cp := *p
	cp.strategies = strategies
	return &cp
}

// WithSettlements makes candidate lookup net out what confirmed matches
// already cleared against each target.
func (p *Pipeline) WithSettlements(sp SettlementProvider) *Pipeline {
	cp := *p
	cp.settlements = sp
	return &cp
}

func (p *Pipeline) Config() config.Matching { return p.cfg }

// Evaluate scores txn and decides what happens to it. Failures never escape:
// they mark the outcome degraded so the caller can retry later instead of
// parking the funds in suspense.
func (p *Pipeline) Evaluate(ctx context.Context, txn *models.BankTransaction, exclude []string) *Outcome {
	out := &Outcome{}

	candidates, err := p.Candidates(ctx, txn, exclude)
	if err != nil {
		log.Printf("[matching] txn %s: candidate lookup failed: %v", txn.ID, err)
		out.Degraded = true
		out.Errors = append(out.Errors, err)
		out.Decision = DecisionDefer
		return out
	}
	out.Considered = len(candidates)

	in := &Input{Txn: txn}
	in.History, err = p.payerHistory(ctx, txn)
	if err != nil {
		log.Printf("[matching] txn %s: payer history unavailable: %v", txn.ID, err)
		out.Degraded = true
		out.Errors = append(out.Errors, err)
	}

	for _, s := range p.strategies {
		best, errs := p.best(s, in, candidates)
		if len(errs) > 0 {
			out.Degraded = true
			out.Errors = append(out.Errors, errs...)
		}
		if best == nil || best.Score.Confidence < s.Threshold() {
			continue
		}
		out.Best = best
		out.Decision = p.decide(best)
		return out
	}

	if out.Degraded {
		out.Decision = DecisionDefer
	} else {
		out.Decision = DecisionSuspense
	}
	return out
}

func (p *Pipeline) decide(r *Result) Decision {
	switch r.MatchType {
	case models.MatchExact, models.MatchFuzzy:
		if r.Score.Confidence >= p.cfg.AutoConfirmCeiling {
			return DecisionAutoConfirm
		}
	}
	return DecisionReview
}

// best returns the highest scoring candidate for s. Candidates that fail to
// score are skipped and reported.
func (p *Pipeline) best(s Strategy, in *Input, candidates []Candidate) (*Result, []error) {
	var (
		best *Result
		errs []error
	)
	for _, c := range candidates {
		score, err := s.Score(in, c)
		if err != nil {
			log.Printf("[matching] %s strategy failed on candidate %s: %v", s.Type(), c.ID, err)
			errs = append(errs, fmt.Errorf("%s/%s: %w", s.Type(), c.ID, err))
			continue
		}
		r := &Result{MatchType: s.Type(), Candidate: c, Score: score}
		if best == nil || outranks(r, best) {
			best = r
		}
	}
	return best, errs
}

// outranks orders by confidence, then smallest amount delta, then earliest
// candidate date, then id.
func outranks(a, b *Result) bool {
	if a.Score.Confidence != b.Score.Confidence {
		return a.Score.Confidence > b.Score.Confidence
	}
	if c := a.Score.AmountDelta.Cmp(b.Score.AmountDelta); c != 0 {
		return c < 0
	}
	if !a.Candidate.Date.Equal(b.Candidate.Date) {
		return a.Candidate.Date.Before(b.Candidate.Date)
	}
	return a.Candidate.ID < b.Candidate.ID
}

// Candidates loads open receivables around txn within the configured amount
// band and date window, minus any excluded targets. Amounts are net of what
// the engine already cleared; fully cleared targets are dropped.
func (p *Pipeline) Candidates(ctx context.Context, txn *models.BankTransaction, exclude []string) ([]Candidate, error) {
	window := time.Duration(p.cfg.DateWindowDays) * 24 * time.Hour
	band := txn.Amount.Abs().Mul(decimal.NewFromFloat(p.cfg.AmountTolerancePct / 100))
	q := Query{
		TenantID:  txn.TenantID,
		Currency:  txn.Currency,
		MinAmount: txn.Amount.Abs().Sub(band),
		MaxAmount: txn.Amount.Abs().Add(band),
		From:      txn.TransactionDate.Add(-window),
		To:        txn.TransactionDate.Add(window),
	}

	lookupCtx, cancel := context.WithTimeout(ctx, p.cfg.CandidateTimeout)
	defer cancel()
	found, err := p.finder.FindOpenReceivables(lookupCtx, q)
	if err != nil {
		return nil, fmt.Errorf("find receivables: %w", err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	open := make([]Candidate, 0, len(found))
	for _, c := range found {
		if skip[c.ID] || c.Currency != txn.Currency {
			continue
		}
		open = append(open, c)
	}
	open, err = p.netOfSettlements(lookupCtx, txn.TenantID, open)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(open))
	for _, c := range open {
		if !withinTolerance(txn.Amount.Abs(), c.Amount, p.cfg.AmountTolerancePct) {
			continue
		}
		out = append(out, c)
	}
	// Finder order is not part of its contract; sort so ties resolve the
	// same way on every run.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Pipeline) netOfSettlements(ctx context.Context, tenantID string, candidates []Candidate) ([]Candidate, error) {
	if p.settlements == nil || len(candidates) == 0 {
		return candidates, nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	settled, err := p.settlements.Settled(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}

	out := candidates[:0]
	for _, c := range candidates {
		if st, ok := settled[c.ID]; ok {
			c.Cleared = st.Cleared
			c.SettledVersion = st.Version
			c.Amount = c.Amount.Sub(st.Cleared)
		}
		if !c.Amount.IsPositive() {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *Pipeline) payerHistory(ctx context.Context, txn *models.BankTransaction) ([]string, error) {
	if p.history == nil || txn.PayerKey == "" {
		return nil, nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, p.cfg.CandidateTimeout)
	defer cancel()
	return p.history.PayerHistory(lookupCtx, txn.TenantID, txn.PayerKey, p.cfg.PredictiveLookback)
}

// Suggestion is a ranked candidate with the action a reviewer should take.
type Suggestion struct {
	Result
	Action string `json:"recommended_action"`
}

const (
	ActionAutoMatch    = "auto_match"
	ActionManualReview = "manual_review"
)

// Rank scores every candidate under every strategy, keeps each candidate's
// best result and returns the top limit.
func (p *Pipeline) Rank(ctx context.Context, txn *models.BankTransaction, exclude []string, limit int) ([]Suggestion, error) {
	candidates, err := p.Candidates(ctx, txn, exclude)
	if err != nil {
		return nil, err
	}
	in := &Input{Txn: txn}
	if in.History, err = p.payerHistory(ctx, txn); err != nil {
		log.Printf("[matching] txn %s: ranking without payer history: %v", txn.ID, err)
	}

	results := make([]*Result, 0, len(candidates))
	for _, c := range candidates {
		var best *Result
		for _, s := range p.strategies {
			score, err := s.Score(in, c)
			if err != nil {
				continue
			}
			r := &Result{MatchType: s.Type(), Candidate: c, Score: score}
			if best == nil || r.Score.Confidence > best.Score.Confidence {
				best = r
			}
		}
		if best != nil && best.Score.Confidence > 0 {
			results = append(results, best)
		}
	}
	sort.Slice(results, func(i, j int) bool { return outranks(results[i], results[j]) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]Suggestion, len(results))
	for i, r := range results {
		out[i] = Suggestion{Result: *r, Action: ActionManualReview}
		if p.decide(r) == DecisionAutoConfirm {
			out[i].Action = ActionAutoMatch
		}
	}
	return out, nil
}
