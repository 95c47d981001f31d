package matching

import (
	"fmt"
	"math"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Fuzzy component weights; they sum to 1.
const (
	weightAmount      = 0.40
	weightDate        = 0.25
	weightName        = 0.25
	weightDescription = 0.10
)

func checkInput(in *Input, c Candidate) error {
	if in == nil || in.Txn == nil {
		return fmt.Errorf("nil transaction: %w", ErrStrategyEvaluation)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("candidate %s has non-positive amount %s: %w", c.ID, c.Amount, ErrStrategyEvaluation)
	}
	return nil
}

// ExactStrategy matches when the bank reference names the receivable and the
// amounts agree to the cent.
type ExactStrategy struct {
	threshold int
}

func NewExactStrategy(threshold int) *ExactStrategy { return &ExactStrategy{threshold: threshold} }

func (s *ExactStrategy) Type() models.MatchType { return models.MatchExact }
func (s *ExactStrategy) Threshold() int         { return s.threshold }

func (s *ExactStrategy) Score(in *Input, c Candidate) (Score, error) {
	if err := checkInput(in, c); err != nil {
		return Score{}, err
	}
	delta := in.Txn.Amount.Sub(c.Amount).Abs()
	out := Score{AmountDelta: delta, Criteria: map[string]interface{}{"strategy": string(models.MatchExact)}}

	field := referenceHit(in.Txn, c)
	if field == "" {
		out.Criteria["reference_match"] = false
		return out, nil
	}
	out.Criteria["reference_match"] = true
	out.Criteria["matched_on"] = field
	equal := in.Txn.Amount.Round(2).Equal(c.Amount.Round(2))
	out.Criteria["amount_equal"] = equal
	if equal {
		out.Confidence = 100
	}
	return out, nil
}

// referenceHit names the candidate field the transaction's reference matched.
func referenceHit(txn *models.BankTransaction, c Candidate) string {
	for _, ref := range []string{txn.ReferenceNumber, txn.InstrumentNumber} {
		r := NormalizeReference(ref)
		if r == "" {
			continue
		}
		if c.Reference != "" && r == NormalizeReference(c.Reference) {
			return "payment_reference"
		}
		if c.Number != "" && r == NormalizeReference(c.Number) {
			return "invoice_number"
		}
	}
	return ""
}

// FuzzyStrategy blends amount, date, name and narration closeness.
type FuzzyStrategy struct {
	threshold  int
	windowDays int
}

func NewFuzzyStrategy(threshold, windowDays int) *FuzzyStrategy {
	return &FuzzyStrategy{threshold: threshold, windowDays: windowDays}
}

func (s *FuzzyStrategy) Type() models.MatchType { return models.MatchFuzzy }
func (s *FuzzyStrategy) Threshold() int         { return s.threshold }

func (s *FuzzyStrategy) Score(in *Input, c Candidate) (Score, error) {
	if err := checkInput(in, c); err != nil {
		return Score{}, err
	}
	txn := in.Txn
	delta := txn.Amount.Sub(c.Amount).Abs()

	ratio, _ := delta.Div(c.Amount).Float64()
	amount := math.Max(0, 100*(1-ratio))
	days := txn.TransactionDate.Sub(c.Date).Hours() / 24
	date := DateCloseness(days, s.windowDays)

	payer := txn.CounterpartyName
	if payer == "" {
		payer = txn.Description
	}
	name := NameSimilarity(payer, c.CounterpartyName)
	desc := KeywordOverlap(c.Number, c.Description, txn.Description)

	total := weightAmount*amount + weightDate*date + weightName*name + weightDescription*desc
	return Score{
		Confidence:  int(math.Round(total)),
		AmountDelta: delta,
		Criteria: map[string]interface{}{
			"strategy":          string(models.MatchFuzzy),
			"amount_score":      round2(amount),
			"date_score":        round2(date),
			"name_score":        round2(name),
			"description_score": round2(desc),
			"days_apart":        round2(math.Abs(days)),
			"amount_delta":      delta.StringFixed(2),
		},
	}, nil
}

// Prior turns a payer's confirmed-match history into a weight in [0,1] for
// one counterparty.
type Prior interface {
	Weight(history []string, counterpartyKey string) float64
}

// FrequencyPrior is the share of history that settled counterpartyKey, or
// zero below MinHits occurrences.
type FrequencyPrior struct {
	MinHits int
}

func (p FrequencyPrior) Weight(history []string, counterpartyKey string) float64 {
	if len(history) == 0 || counterpartyKey == "" {
		return 0
	}
	hits := 0
	for _, h := range history {
		if h == counterpartyKey {
			hits++
		}
	}
	if hits < p.MinHits {
		return 0
	}
	return float64(hits) / float64(len(history))
}

// PredictiveStrategy boosts the fuzzy score by the payer's habit of paying
// this counterparty. It never reaches the auto-confirm ceiling.
type PredictiveStrategy struct {
	threshold int
	fuzzy     *FuzzyStrategy
	prior     Prior
	boost     float64
	maxScore  int
}

func NewPredictiveStrategy(threshold int, fuzzy *FuzzyStrategy, prior Prior, boost float64, maxScore int) *PredictiveStrategy {
	return &PredictiveStrategy{threshold: threshold, fuzzy: fuzzy, prior: prior, boost: boost, maxScore: maxScore}
}

func (s *PredictiveStrategy) Type() models.MatchType { return models.MatchPredictive }
func (s *PredictiveStrategy) Threshold() int         { return s.threshold }

func (s *PredictiveStrategy) Score(in *Input, c Candidate) (Score, error) {
	base, err := s.fuzzy.Score(in, c)
	if err != nil {
		return Score{}, err
	}
	weight := s.prior.Weight(in.History, c.CounterpartyKey)
	if weight == 0 {
		return Score{AmountDelta: base.AmountDelta, Criteria: map[string]interface{}{
			"strategy":    string(models.MatchPredictive),
			"prior":       0,
			"fuzzy_score": base.Confidence,
		}}, nil
	}
	conf := int(math.Round(float64(base.Confidence) + s.boost*weight))
	if conf > s.maxScore {
		conf = s.maxScore
	}
	return Score{
		Confidence:  conf,
		AmountDelta: base.AmountDelta,
		Criteria: map[string]interface{}{
			"strategy":     string(models.MatchPredictive),
			"prior":        round2(weight),
			"history_size": len(in.History),
			"fuzzy_score":  base.Confidence,
			"fuzzy":        base.Criteria,
		},
	}, nil
}

// ManualStrategy records a human decision. It has no threshold and the
// pipeline never runs it.
type ManualStrategy struct{}

func (ManualStrategy) Type() models.MatchType { return models.MatchManual }
func (ManualStrategy) Threshold() int         { return 0 }

func (ManualStrategy) Score(in *Input, c Candidate) (Score, error) {
	if in == nil || in.Txn == nil {
		return Score{}, fmt.Errorf("nil transaction: %w", ErrStrategyEvaluation)
	}
	conf := in.ManualConfidence
	if conf <= 0 {
		conf = 100
	}
	if conf > 100 {
		return Score{}, fmt.Errorf("manual confidence %d out of range: %w", conf, ErrStrategyEvaluation)
	}
	return Score{
		Confidence:  conf,
		AmountDelta: in.Txn.Amount.Sub(c.Amount).Abs(),
		Criteria: map[string]interface{}{
			"strategy":   string(models.MatchManual),
			"confidence": conf,
		},
	}, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// withinTolerance reports whether a and b differ by at most pct percent of a.
func withinTolerance(a, b decimal.Decimal, pct float64) bool {
	limit := a.Abs().Mul(decimal.NewFromFloat(pct / 100))
	return a.Sub(b).Abs().LessThanOrEqual(limit)
}
