package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/events"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/ledger"
	"bank-reconciliation-engine/internal/services/matching"
	"bank-reconciliation-engine/internal/services/suspense"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SystemActor is recorded on everything the pipeline does on its own.
const SystemActor = "system"

const reasonNoMatch = "no candidate above threshold"

// ReconciliationService ties the matching pipeline to the ledger, the match
// store and the suspense router. Every outcome is applied in one database
// transaction together with its postings and events.
type ReconciliationService struct {
	db       *gorm.DB
	pipeline *matching.Pipeline
	cfg      config.Matching
	now      func() time.Time
}

func NewReconciliationService(db *gorm.DB, pipeline *matching.Pipeline) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		pipeline: pipeline,
		cfg:      pipeline.Config(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewDefaultPipeline builds the standard pipeline over the invoice table,
// the match store's confirmed history and the per-target settlements.
func NewDefaultPipeline(db *gorm.DB, cfg config.Matching) *matching.Pipeline {
	return matching.NewPipeline(
		repository.NewInvoiceRepository(db),
		repository.NewMatchStore(db),
		cfg,
		nil,
	).WithSettlements(repository.NewSettlementRepository(db))
}

// ProcessResult reports what happened to one transaction.
type ProcessResult struct {
	Transaction   *models.BankTransaction     `json:"transaction"`
	Decision      matching.Decision           `json:"decision"`
	Match         *models.ReconciliationMatch `json:"match,omitempty"`
	SuspenseEntry *models.SuspenseEntry       `json:"suspense_entry,omitempty"`
	Considered    int                         `json:"candidates_considered"`
	Errors        []string                    `json:"errors,omitempty"`
}

// ProcessTransaction claims txnID, runs the pipeline and applies the
// outcome. ErrConcurrencyClaimFailed means someone else holds the claim and
// the caller should skip.
func (s *ReconciliationService) ProcessTransaction(ctx context.Context, txnID uuid.UUID) (*ProcessResult, error) {
	txns := repository.NewBankTransactionRepository(s.db)
	txn, err := txns.Claim(ctx, txnID, s.cfg.ClaimLease, s.now())
	if err != nil {
		return nil, err
	}

	exclude, err := repository.NewMatchStore(s.db).RejectedTargets(ctx, txn.ID)
	if err != nil {
		s.recoverClaim(ctx, txn.ID, err)
		return nil, fmt.Errorf("load rejected targets: %w", err)
	}

	outcome := s.pipeline.Evaluate(ctx, txn, exclude)
	res := &ProcessResult{Transaction: txn, Decision: outcome.Decision, Considered: outcome.Considered}
	for _, e := range outcome.Errors {
		res.Errors = append(res.Errors, e.Error())
	}

	switch outcome.Decision {
	case matching.DecisionAutoConfirm:
		res.Match, err = s.autoConfirm(ctx, txn, outcome.Best)
	case matching.DecisionReview:
		res.Match, err = s.suggest(ctx, txn, outcome.Best)
	case matching.DecisionSuspense:
		res.SuspenseEntry, err = s.park(ctx, txn)
	default:
		if err := s.release(ctx, txn, errors.Join(outcome.Errors...)); err != nil {
			return nil, err
		}
		return res, nil
	}
	if errors.Is(err, repository.ErrTargetSettled) {
		// Another transaction cleared the target first; score again on the
		// next run against what is left of it.
		log.Printf("[reconciliation] txn %s: %v, deferring", txn.ID, err)
		s.recoverClaim(ctx, txn.ID, err)
		res.Decision = matching.DecisionDefer
		res.Match = nil
		res.Errors = append(res.Errors, err.Error())
		return res, nil
	}
	if err != nil {
		log.Printf("[reconciliation] txn %s: applying %s failed: %v", txn.ID, outcome.Decision, err)
		s.recoverClaim(ctx, txn.ID, err)
		return nil, err
	}
	return res, nil
}

// recoverClaim releases a claim whose outcome could not be applied. The
// failed database transaction rolled back, so the row is reloaded rather
// than trusting the in-memory copy.
func (s *ReconciliationService) recoverClaim(ctx context.Context, txnID uuid.UUID, cause error) {
	fresh, err := repository.NewBankTransactionRepository(s.db).GetByID(ctx, txnID)
	if err != nil {
		log.Printf("[reconciliation] txn %s: reload after failure: %v", txnID, err)
		return
	}
	if fresh.Status != models.TxnProcessing {
		return
	}
	if err := s.release(ctx, fresh, cause); err != nil {
		log.Printf("[reconciliation] txn %s: release after failure: %v", txnID, err)
	}
}

// autoConfirm records a confirmed match and posts the clearing entry. Money
// already sitting in suspense is cleared through the router instead.
func (s *ReconciliationService) autoConfirm(ctx context.Context, txn *models.BankTransaction, best *matching.Result) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := repository.NewSuspenseRepository(tx).OpenEntryForTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		if entry != nil {
			out, err = suspense.NewRouter(tx).RematchAs(ctx, entry.ID, best.Candidate, suspense.MatchDetails{
				Type:           best.MatchType,
				Confidence:     best.Score.Confidence,
				Criteria:       criteriaJSON(best),
				AutoConfirmed:  true,
				Actor:          SystemActor,
				SettledVersion: &best.Candidate.SettledVersion,
			})
			if err != nil {
				return err
			}
			txn.Status = models.TxnMatched
		} else {
			m := newMatch(txn, best, models.MatchConfirmed)
			m.AutoConfirmed = true
			if err := repository.NewMatchStore(tx).RecordAttempt(ctx, m); err != nil {
				return err
			}
			if err := s.clear(ctx, tx, txn, m, SystemActor, "auto-confirmed", &best.Candidate.SettledVersion); err != nil {
				return err
			}
			out = m
		}

		_, err = events.NewOutbox(tx).Publish(ctx, events.Event{
			Type:              models.EventMatchAutoConfirmed,
			TenantID:          txn.TenantID,
			BankTransactionID: txn.ID,
			MatchID:           &out.ID,
			Payload: map[string]interface{}{
				"target_id":         out.TargetID,
				"match_type":        out.MatchType,
				"confidence":        out.ConfidenceScore,
				"clearing_entry_id": out.ClearingEntryID,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[reconciliation] txn %s auto-confirmed against %s (%s, %d)", txn.ID, out.TargetID, out.MatchType, out.ConfidenceScore)
	return out, nil
}

// suggest stores a pending match for a reviewer. A transaction from
// suspense keeps its funds parked until the suggestion is confirmed.
func (s *ReconciliationService) suggest(ctx context.Context, txn *models.BankTransaction, best *matching.Result) (*models.ReconciliationMatch, error) {
	m := newMatch(txn, best, models.MatchPending)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchStore(tx)
		prev, err := matches.Pending(ctx, txn.ID)
		if err != nil {
			return err
		}
		switch {
		case prev != nil && prev.TargetID == m.TargetID:
			m = prev
		case prev != nil:
			if _, err := matches.Reject(ctx, prev.ID, SystemActor, "superseded by a newer suggestion"); err != nil {
				return err
			}
			fallthrough
		default:
			if err := matches.RecordAttempt(ctx, m); err != nil {
				return err
			}
		}

		to := models.TxnPartiallyMatched
		if txn.ClaimedFromStatus == models.TxnSuspense {
			to = models.TxnSuspense
		}
		return repository.NewBankTransactionRepository(tx).Transition(ctx, txn, to, SystemActor, "awaiting review", map[string]interface{}{
			"matched_target_id": m.TargetID,
			"confidence_score":  m.ConfidenceScore,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[reconciliation] txn %s needs review: %s %s at %d", txn.ID, m.MatchType, m.TargetID, m.ConfidenceScore)
	return m, nil
}

func (s *ReconciliationService) park(ctx context.Context, txn *models.BankTransaction) (*models.SuspenseEntry, error) {
	return suspense.NewRouter(s.db).Route(ctx, txn, reasonNoMatch, SystemActor)
}

// release hands a claimed transaction back after an infrastructure failure.
// It returns to where it was claimed from until MaxAttempts, then lands in
// unmatched for triage. It is never routed to suspense from here.
func (s *ReconciliationService) release(ctx context.Context, txn *models.BankTransaction, cause error) error {
	to := txn.ClaimedFromStatus
	if to == "" {
		to = models.TxnPending
	}
	reason := "matching deferred"
	if cause != nil {
		reason = "matching deferred: " + cause.Error()
	}
	extra := map[string]interface{}{}
	if to != models.TxnSuspense && txn.Attempts >= s.cfg.MaxAttempts {
		to = models.TxnUnmatched
		reason = fmt.Sprintf("gave up after %d attempts", txn.Attempts)
		if cause != nil {
			reason += ": " + cause.Error()
		}
		extra["triage_reason"] = reason
	}
	if err := repository.NewBankTransactionRepository(s.db).Transition(ctx, txn, to, SystemActor, reason, extra); err != nil {
		return err
	}
	log.Printf("[reconciliation] txn %s released to %s: %s", txn.ID, to, reason)
	return nil
}

// clear posts the clearing entry for a confirmed match and marks the
// transaction matched. It must run inside tx. expectVersion guards an
// automatic confirmation against a target cleared since it was scored.
func (s *ReconciliationService) clear(ctx context.Context, tx *gorm.DB, txn *models.BankTransaction, m *models.ReconciliationMatch, actor, reason string, expectVersion *int) error {
	if err := repository.NewSettlementRepository(tx).Apply(ctx, txn.TenantID, m.TargetID, txn.Amount.Abs(), expectVersion); err != nil {
		return err
	}
	accts, err := repository.NewSettingsRepository(tx).PostingAccounts(ctx, txn)
	if err != nil {
		return err
	}
	entryID, err := ledger.NewService(tx).PostEntry(ctx, ledger.ClearingEntry(txn, accts.BankGL, accts.Receivables, m.ID, actor))
	if err != nil {
		return fmt.Errorf("post clearing entry: %w", err)
	}
	if err := repository.NewMatchStore(tx).SetClearingEntry(ctx, m.ID, entryID); err != nil {
		return err
	}
	m.ClearingEntryID = &entryID

	return repository.NewBankTransactionRepository(tx).Transition(ctx, txn, models.TxnMatched, actor, reason, map[string]interface{}{
		"matched_target_id": m.TargetID,
		"confidence_score":  m.ConfidenceScore,
		"triage_reason":     "",
	})
}

func newMatch(txn *models.BankTransaction, r *matching.Result, status models.MatchStatus) *models.ReconciliationMatch {
	return &models.ReconciliationMatch{
		TenantID:          txn.TenantID,
		BankTransactionID: txn.ID,
		TargetType:        targetType(r.Candidate),
		TargetID:          r.Candidate.ID,
		CounterpartyKey:   r.Candidate.CounterpartyKey,
		PayerKey:          txn.PayerKey,
		MatchType:         r.MatchType,
		ConfidenceScore:   r.Score.Confidence,
		MatchingCriteria:  criteriaJSON(r),
		Status:            status,
		Actor:             SystemActor,
	}
}

func criteriaJSON(r *matching.Result) datatypes.JSON {
	criteria := map[string]interface{}{
		"candidate_number": r.Candidate.Number,
		"amount_delta":     r.Score.AmountDelta.String(),
	}
	for k, v := range r.Score.Criteria {
		criteria[k] = v
	}
	b, err := json.Marshal(criteria)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

func targetType(c matching.Candidate) models.TargetType {
	if c.Type == "" {
		return models.TargetInvoice
	}
	return c.Type
}
