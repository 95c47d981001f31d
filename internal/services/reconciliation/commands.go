package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/ledger"
	"bank-reconciliation-engine/internal/services/matching"
	"bank-reconciliation-engine/internal/services/suspense"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrValidation = errors.New("invalid reconciliation request")

// ConfirmMatch accepts a pending suggestion and posts its clearing entry.
func (s *ReconciliationService) ConfirmMatch(ctx context.Context, matchID uuid.UUID, actor string) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchStore(tx)
		m, err := matches.Get(ctx, matchID)
		if err != nil {
			return err
		}
		if err := models.CheckMatchTransition(m.Status, models.MatchConfirmed); err != nil {
			return err
		}
		txn, err := repository.NewBankTransactionRepository(tx).GetByID(ctx, m.BankTransactionID)
		if err != nil {
			return err
		}

		entry, err := repository.NewSuspenseRepository(tx).OpenEntryForTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		if entry != nil {
			out, err = suspense.NewRouter(tx).RematchAs(ctx, entry.ID, candidateOf(m), suspense.MatchDetails{
				Type:       m.MatchType,
				Confidence: m.ConfidenceScore,
				Actor:      actor,
			})
			return err
		}

		if m, err = matches.Confirm(ctx, matchID, actor); err != nil {
			return err
		}
		if err := s.clear(ctx, tx, txn, m, actor, "confirmed by reviewer", nil); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[reconciliation] match %s confirmed by %s", matchID, actor)
	return out, nil
}

// RejectMatch turns a suggestion down. The transaction goes back to the
// queue and the rejected target is never proposed for it again.
func (s *ReconciliationService) RejectMatch(ctx context.Context, matchID uuid.UUID, actor, reason string) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repository.NewMatchStore(tx).Reject(ctx, matchID, actor, reason)
		if err != nil {
			return err
		}
		txns := repository.NewBankTransactionRepository(tx)
		txn, err := txns.GetByID(ctx, m.BankTransactionID)
		if err != nil {
			return err
		}
		if txn.Status == models.TxnPartiallyMatched {
			if err := txns.Transition(ctx, txn, models.TxnPending, actor, "suggestion rejected: "+reason, map[string]interface{}{
				"matched_target_id": nil,
				"confidence_score":  0,
			}); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[reconciliation] match %s rejected by %s: %s", matchID, actor, reason)
	return out, nil
}

// OverrideMatch replaces a confirmed match with a manual one against a
// different target. The old clearing entry is reversed and a new one posted.
func (s *ReconciliationService) OverrideMatch(ctx context.Context, matchID uuid.UUID, targetType models.TargetType, targetID, actor, reason string) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchStore(tx)
		txns := repository.NewBankTransactionRepository(tx)
		gl := ledger.NewService(tx)

		old, err := matches.Get(ctx, matchID)
		if err != nil {
			return err
		}
		if err := models.CheckMatchTransition(old.Status, models.MatchOverridden); err != nil {
			return err
		}
		txn, err := txns.GetByID(ctx, old.BankTransactionID)
		if err != nil {
			return err
		}
		target, err := s.loadTarget(ctx, tx, txn, targetType, targetID)
		if err != nil {
			return err
		}
		if target.ID == old.TargetID {
			return fmt.Errorf("match %s already points at %s: %w", matchID, targetID, ErrValidation)
		}

		if old.ClearingEntryID != nil {
			key := "override:" + old.ID.String()
			if _, err := gl.Reverse(ctx, *old.ClearingEntryID, ledger.ReverseOptions{
				Actor:          actor,
				Description:    "Match override: " + reason,
				ReferenceType:  models.RefBankClearing,
				ReferenceID:    txn.ID.String(),
				IdempotencyKey: &key,
			}); err != nil {
				return fmt.Errorf("reverse clearing entry: %w", err)
			}
		}

		criteria, _ := json.Marshal(map[string]interface{}{
			"strategy":  string(models.MatchManual),
			"overrides": old.ID,
			"reason":    reason,
		})
		replacement := &models.ReconciliationMatch{
			TargetType:       target.Type,
			TargetID:         target.ID,
			CounterpartyKey:  target.CounterpartyKey,
			MatchType:        models.MatchManual,
			ConfidenceScore:  100,
			MatchingCriteria: datatypes.JSON(criteria),
		}
		if _, err := matches.Override(ctx, old.ID, replacement, actor, reason); err != nil {
			return err
		}
		settlements := repository.NewSettlementRepository(tx)
		if err := settlements.Apply(ctx, txn.TenantID, old.TargetID, txn.Amount.Abs().Neg(), nil); err != nil {
			return err
		}
		if err := settlements.Apply(ctx, txn.TenantID, target.ID, txn.Amount.Abs(), nil); err != nil {
			return err
		}

		accts, err := repository.NewSettingsRepository(tx).PostingAccounts(ctx, txn)
		if err != nil {
			return err
		}
		entryID, err := gl.PostEntry(ctx, ledger.ClearingEntry(txn, accts.BankGL, accts.Receivables, replacement.ID, actor))
		if err != nil {
			return fmt.Errorf("post clearing entry: %w", err)
		}
		if err := matches.SetClearingEntry(ctx, replacement.ID, entryID); err != nil {
			return err
		}
		replacement.ClearingEntryID = &entryID

		if err := txns.SetMatchedTarget(ctx, txn, target.ID, replacement.ConfidenceScore, actor, reason); err != nil {
			return err
		}
		out = replacement
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[reconciliation] match %s overridden by %s with %s", matchID, actor, out.ID)
	return out, nil
}

// ManualMatch confirms a reviewer's own pick for a transaction that has no
// confirmed match yet. confidence zero means 100.
func (s *ReconciliationService) ManualMatch(ctx context.Context, txnID uuid.UUID, targetType models.TargetType, targetID string, confidence int, actor string) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := repository.NewBankTransactionRepository(tx).GetByID(ctx, txnID)
		if err != nil {
			return err
		}
		if err := models.CheckTxnTransition(txn.Status, models.TxnMatched); err != nil {
			return err
		}
		target, err := s.loadTarget(ctx, tx, txn, targetType, targetID)
		if err != nil {
			return err
		}
		score, err := matching.ManualStrategy{}.Score(&matching.Input{Txn: txn, ManualConfidence: confidence}, target)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		result := &matching.Result{MatchType: models.MatchManual, Candidate: target, Score: score}

		entry, err := repository.NewSuspenseRepository(tx).OpenEntryForTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		if entry != nil {
			out, err = suspense.NewRouter(tx).RematchAs(ctx, entry.ID, target, suspense.MatchDetails{
				Type:       models.MatchManual,
				Confidence: score.Confidence,
				Criteria:   criteriaJSON(result),
				Actor:      actor,
			})
			return err
		}

		matches := repository.NewMatchStore(tx)
		if pending, err := matches.Pending(ctx, txn.ID); err != nil {
			return err
		} else if pending != nil {
			if _, err := matches.Reject(ctx, pending.ID, actor, "superseded by manual match"); err != nil {
				return err
			}
		}
		m := newMatch(txn, result, models.MatchConfirmed)
		m.Actor = actor
		if err := matches.RecordAttempt(ctx, m); err != nil {
			return err
		}
		if err := s.clear(ctx, tx, txn, m, actor, "manual match", nil); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[reconciliation] txn %s manually matched to %s by %s", txnID, targetID, actor)
	return out, nil
}

// RematchSuspense clears an open suspense entry against a reviewer's target.
func (s *ReconciliationService) RematchSuspense(ctx context.Context, entryID uuid.UUID, targetType models.TargetType, targetID string, confidence int, actor string) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := repository.NewSuspenseRepository(tx).GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		txn, err := repository.NewBankTransactionRepository(tx).GetByID(ctx, entry.BankTransactionID)
		if err != nil {
			return err
		}
		target, err := s.loadTarget(ctx, tx, txn, targetType, targetID)
		if err != nil {
			return err
		}
		out, err = suspense.NewRouter(tx).Rematch(ctx, entryID, target, confidence, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rerun puts a transaction through the pipeline again. Unmatched
// transactions start over with a fresh attempt budget.
func (s *ReconciliationService) Rerun(ctx context.Context, txnID uuid.UUID, actor string) (*ProcessResult, error) {
	txns := repository.NewBankTransactionRepository(s.db)
	txn, err := txns.GetByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case models.TxnUnmatched:
		if err := txns.Transition(ctx, txn, models.TxnPending, actor, "rerun requested", map[string]interface{}{
			"attempts":      0,
			"triage_reason": "",
		}); err != nil {
			return nil, err
		}
	case models.TxnPartiallyMatched:
		if err := txns.Transition(ctx, txn, models.TxnPending, actor, "rerun requested", nil); err != nil {
			return nil, err
		}
	}
	return s.ProcessTransaction(ctx, txnID)
}

// loadTarget resolves a match target of the transaction's tenant.
func (s *ReconciliationService) loadTarget(ctx context.Context, db *gorm.DB, txn *models.BankTransaction, typ models.TargetType, id string) (matching.Candidate, error) {
	var (
		c   matching.Candidate
		err error
	)
	switch typ {
	case "", models.TargetInvoice:
		c, err = repository.NewInvoiceRepository(db).Candidate(ctx, txn.TenantID, id)
	case models.TargetGlEntry:
		c, err = glEntryCandidate(ctx, db, txn.TenantID, id)
	default:
		return c, fmt.Errorf("target type %q: %w", typ, ErrValidation)
	}
	if err != nil {
		return c, err
	}
	if c.Currency != txn.Currency {
		return c, fmt.Errorf("target %s is in %s, transaction in %s: %w", c.ID, c.Currency, txn.Currency, ErrValidation)
	}
	return c, nil
}

func glEntryCandidate(ctx context.Context, db *gorm.DB, tenantID, id string) (matching.Candidate, error) {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return matching.Candidate{}, fmt.Errorf("journal entry id %q: %w", id, ErrValidation)
	}
	entry, err := ledger.NewService(db).GetEntry(ctx, entryID)
	if err != nil {
		return matching.Candidate{}, err
	}
	if entry.TenantID != tenantID {
		return matching.Candidate{}, fmt.Errorf("entry %s: %w", id, ledger.ErrEntryNotFound)
	}
	if entry.Status != models.EntryPosted {
		return matching.Candidate{}, fmt.Errorf("entry %s is %s: %w", id, entry.Status, ErrValidation)
	}
	debits, _ := entry.Totals()
	return matching.Candidate{
		ID:          entry.ID.String(),
		Type:        models.TargetGlEntry,
		Number:      entry.EntryNumber,
		Description: entry.Description,
		Currency:    entry.Currency,
		Amount:      debits,
		Date:        entry.EntryDate,
	}, nil
}

func candidateOf(m *models.ReconciliationMatch) matching.Candidate {
	return matching.Candidate{
		ID:              m.TargetID,
		Type:            m.TargetType,
		CounterpartyKey: m.CounterpartyKey,
	}
}
