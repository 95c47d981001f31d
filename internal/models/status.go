package models

import (
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal status transition")

var txnTransitions = map[TxnStatus][]TxnStatus{
	TxnPending:          {TxnProcessing, TxnMatched, TxnUnmatched},
	TxnProcessing:       {TxnPending, TxnMatched, TxnPartiallyMatched, TxnSuspense, TxnUnmatched},
	TxnPartiallyMatched: {TxnMatched, TxnPending},
	TxnMatched:          {},
	TxnUnmatched:        {TxnPending, TxnMatched},
	TxnSuspense:         {TxnProcessing, TxnMatched, TxnWrittenOff},
	TxnWrittenOff:       {},
}

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchPending:    {MatchConfirmed, MatchRejected},
	MatchConfirmed:  {MatchOverridden},
	MatchRejected:   {},
	MatchOverridden: {},
}

var suspenseTransitions = map[SuspenseStatus][]SuspenseStatus{
	SuspenseOpen:   {SuspenseClosed},
	SuspenseClosed: {},
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTxnTransition reports ErrIllegalTransition for a move the table does not allow.
func CheckTxnTransition(from, to TxnStatus) error {
	if !allowed(txnTransitions, from, to) {
		return fmt.Errorf("bank transaction %s -> %s: %w", from, to, ErrIllegalTransition)
	}
	return nil
}

func CheckMatchTransition(from, to MatchStatus) error {
	if !allowed(matchTransitions, from, to) {
		return fmt.Errorf("match %s -> %s: %w", from, to, ErrIllegalTransition)
	}
	return nil
}

func CheckSuspenseTransition(from, to SuspenseStatus) error {
	if !allowed(suspenseTransitions, from, to) {
		return fmt.Errorf("suspense entry %s -> %s: %w", from, to, ErrIllegalTransition)
	}
	return nil
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&GlAccount{},
		&JournalEntry{},
		&GlLine{},
		&BankAccount{},
		&BankTransaction{},
		&Invoice{},
		&ReconciliationMatch{},
		&SuspenseAccount{},
		&SuspenseEntry{},
		&TenantLedgerSettings{},
		&MatchAuditLog{},
		&ReconciliationRun{},
		&ReconciliationEvent{},
		&TargetSettlement{},
	}
}
