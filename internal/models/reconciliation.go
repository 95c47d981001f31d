package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// ReconciliationRun tracks one pass of the matching pipeline over a tenant's queue.
type ReconciliationRun struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         string     `gorm:"index" json:"tenant_id"`
	Trigger          string     `json:"trigger"`
	TotalClaimed     int        `json:"total_claimed"`
	ProcessedCount   int        `json:"processed_count"`
	AutoMatchedCount int        `json:"auto_matched_count"`
	NeedsReviewCount int        `json:"needs_review_count"`
	SuspenseCount    int        `json:"suspense_count"`
	DeferredCount    int        `json:"deferred_count"`
	SkippedCount     int        `json:"skipped_count"`
	FailedCount      int        `json:"failed_count"`
	MatchRate        float64    `json:"match_rate"` // percent of processed auto-matched
	Status           RunStatus  `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// UpdateMatchRate recomputes MatchRate from the counters, rounded to two
// decimals.
func (r *ReconciliationRun) UpdateMatchRate() {
	if r.ProcessedCount == 0 {
		r.MatchRate = 0
		return
	}
	r.MatchRate = math.Round(float64(r.AutoMatchedCount)*10000/float64(r.ProcessedCount)) / 100
}
