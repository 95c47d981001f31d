package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/ingestion"
	"bank-reconciliation-engine/internal/services/ledger"
	"bank-reconciliation-engine/internal/services/reconciliation"
	"bank-reconciliation-engine/internal/services/suspense"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ingestion.ErrBankAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reconciliation.ErrValidation),
		errors.Is(err, suspense.ErrValidation),
		errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrInvalidAccount),
		errors.Is(err, ingestion.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnbalancedEntry):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrIllegalTransition),
		errors.Is(err, repository.ErrConcurrencyClaimFailed),
		errors.Is(err, repository.ErrAlreadyClosed),
		errors.Is(err, ledger.ErrAlreadyReversed),
		errors.Is(err, ledger.ErrNotDraft),
		errors.Is(err, ledger.ErrAccountImmutable):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("[http] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// uuidParam parses a path parameter. On failure it writes the 400 itself.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func pageSize(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// actor identifies the caller. Authentication lives in front of this
// service and forwards the user in X-Actor.
func actor(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if a := c.GetHeader("X-Actor"); a != "" {
		return a
	}
	return "api"
}

var dayLayouts = []string{"2006-01-02", "02-01-2006", time.RFC3339}

// dayQuery reads an optional date query parameter. Missing means def.
func dayQuery(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	t, err := parseDay(raw)
	if err != nil {
		badRequest(c, "invalid "+name+", expected yyyy-mm-dd")
		return time.Time{}, false
	}
	return t, true
}

// endOfDay makes an as-of date include everything posted on that day.
func endOfDay(t time.Time) time.Time {
	return t.Truncate(24*time.Hour).Add(24*time.Hour - time.Nanosecond)
}
