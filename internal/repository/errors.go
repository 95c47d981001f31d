package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrConcurrencyClaimFailed means another worker changed the row first.
	ErrConcurrencyClaimFailed = errors.New("concurrent claim failed")
	ErrAlreadyClosed          = errors.New("suspense entry already closed")
	// ErrTargetSettled means the target was cleared by another match after
	// it was scored.
	ErrTargetSettled = errors.New("target settled concurrently")
)
