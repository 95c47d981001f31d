package matching

import (
	"context"
	"errors"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

var ErrStrategyEvaluation = errors.New("strategy evaluation failed")

// Candidate is an open receivable a bank transaction may settle.
type Candidate struct {
	ID               string            `json:"id"`
	Type             models.TargetType `json:"type"`
	Number           string            `json:"number"`
	Reference        string            `json:"reference,omitempty"`
	CounterpartyName string            `json:"counterparty_name"`
	CounterpartyKey  string            `json:"counterparty_key"`
	Description      string            `json:"description,omitempty"`
	Currency         string            `json:"currency"`
	Amount           decimal.Decimal   `json:"amount"`
	Date             time.Time         `json:"date"`
	// Cleared is what confirmed matches already took off Amount.
	Cleared        decimal.Decimal `json:"cleared"`
	SettledVersion int             `json:"-"`
}

func FromInvoice(inv models.Invoice) Candidate {
	amount := inv.OutstandingAmount
	if amount.IsZero() {
		amount = inv.Amount
	}
	return Candidate{
		ID:               inv.ID.String(),
		Type:             models.TargetInvoice,
		Number:           inv.InvoiceNumber,
		Reference:        inv.PaymentReference,
		CounterpartyName: inv.CustomerName,
		CounterpartyKey:  models.NormalizeParty(inv.CustomerName),
		Description:      inv.Description,
		Currency:         inv.Currency,
		Amount:           amount,
		Date:             inv.DueDate,
	}
}

// Query bounds a candidate lookup to one tenant, currency, amount band and
// date window.
type Query struct {
	TenantID  string
	Currency  string
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	From      time.Time
	To        time.Time
}

//go:generate mockgen -destination=mocks/mock_receivable_finder.go -source=types.go ReceivableFinder,HistoryProvider,SettlementProvider

// ReceivableFinder is the invoicing collaborator's read side.
type ReceivableFinder interface {
	FindOpenReceivables(ctx context.Context, q Query) ([]Candidate, error)
}

// HistoryProvider returns the counterparty keys of a payer's most recent
// confirmed matches, newest first.
type HistoryProvider interface {
	PayerHistory(ctx context.Context, tenantID, payerKey string, limit int) ([]string, error)
}

// Settlement is the running total cleared against one target.
type Settlement struct {
	Cleared decimal.Decimal
	Version int
}

// SettlementProvider reports what confirmed matches already cleared against
// each target.
type SettlementProvider interface {
	Settled(ctx context.Context, tenantID string, targetIDs []string) (map[string]Settlement, error)
}

// Input is everything a strategy may look at. Strategies must not reach
// outside it, which keeps scoring deterministic.
type Input struct {
	Txn     *models.BankTransaction
	History []string
	// ManualConfidence is the human-supplied value for manual matches.
	ManualConfidence int
}

type Score struct {
	Confidence  int                    `json:"confidence"`
	AmountDelta decimal.Decimal        `json:"amount_delta"`
	Criteria    map[string]interface{} `json:"criteria"`
}

type Strategy interface {
	Type() models.MatchType
	Threshold() int
	Score(in *Input, c Candidate) (Score, error)
}

// Decision is what the caller should do with a transaction after evaluation.
type Decision string

const (
	DecisionAutoConfirm Decision = "auto_confirm"
	DecisionReview      Decision = "review"
	DecisionSuspense    Decision = "suspense"
	// DecisionDefer means evaluation was degraded by an infrastructure
	// failure; the transaction goes back to the queue.
	DecisionDefer Decision = "defer"
)

type Result struct {
	MatchType models.MatchType `json:"match_type"`
	Candidate Candidate        `json:"candidate"`
	Score     Score            `json:"score"`
}

type Outcome struct {
	Decision Decision
	Best     *Result
	Degraded bool
	Errors   []error
	// Considered is the number of candidates scored.
	Considered int
}
