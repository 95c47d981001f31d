package handler

import (
	"net/http"
	"strconv"
	"time"

	"bank-reconciliation-engine/internal/models"
	service "bank-reconciliation-engine/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
)

type ReconciliationHandler struct {
	service *service.ReconciliationService
}

func NewReconciliationHandler(s *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: s}
}

func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	tenantID := c.Param("tenantId")
	items, nextCursor, hasMore, err := h.service.ListTransactions(c.Request.Context(),
		tenantID, c.Query("status"), c.Query("cursor"), c.Query("q"), pageSize(c))
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := h.service.GetTenantStats(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
		"stats":       stats,
	})
}

func (h *ReconciliationHandler) GetTransaction(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	txn, err := h.service.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *ReconciliationHandler) ListMatches(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	matches, err := h.service.ListMatches(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": matches})
}

func (h *ReconciliationHandler) AuditTrail(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	trail, err := h.service.AuditTrail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": trail})
}

func (h *ReconciliationHandler) Suggestions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	suggestions, err := h.service.Suggestions(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": suggestions})
}

func (h *ReconciliationHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetTenantStats(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReconciliationHandler) Analytics(c *gin.Context) {
	from, ok := dayQuery(c, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := dayQuery(c, "to", time.Time{})
	if !ok {
		return
	}
	if !to.IsZero() {
		to = endOfDay(to)
	}
	stats, err := h.service.Analytics(c.Request.Context(), c.Param("tenantId"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReconciliationHandler) ListEvents(c *gin.Context) {
	after, _ := strconv.ParseUint(c.Query("after"), 10, 64)
	events, err := h.service.ListEvents(c.Request.Context(), c.Param("tenantId"), after, pageSize(c))
	if err != nil {
		respondError(c, err)
		return
	}
	var next uint64
	if len(events) > 0 {
		next = events[len(events)-1].Sequence
	}
	c.JSON(http.StatusOK, gin.H{"items": events, "next_after": next})
}

// StartRun kicks off a background pass over the tenant's queue.
func (h *ReconciliationHandler) StartRun(c *gin.Context) {
	run, err := h.service.StartRun(c.Request.Context(), c.Param("tenantId"), service.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"run_id": run.ID.String(),
		"status": run.Status,
		"total":  run.TotalClaimed,
	})
}

func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, ok := uuidParam(c, "runId")
	if !ok {
		return
	}
	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

type actorPayload struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, v interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "invalid payload")
		return false
	}
	return true
}

func (h *ReconciliationHandler) ConfirmMatch(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload actorPayload
	if !bindOptional(c, &payload) {
		return
	}
	m, err := h.service.ConfirmMatch(c.Request.Context(), id, actor(c, payload.Actor))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "match confirmed", "match": m})
}

func (h *ReconciliationHandler) RejectMatch(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload actorPayload
	if !bindOptional(c, &payload) {
		return
	}
	m, err := h.service.RejectMatch(c.Request.Context(), id, actor(c, payload.Actor), payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "match rejected", "match": m})
}

type targetPayload struct {
	TargetType models.TargetType `json:"target_type"`
	TargetID   string            `json:"target_id" binding:"required"`
	Confidence int               `json:"confidence"`
	Actor      string            `json:"actor"`
	Reason     string            `json:"reason"`
}

func (h *ReconciliationHandler) OverrideMatch(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload targetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "target_id required")
		return
	}
	if payload.Reason == "" {
		badRequest(c, "reason required")
		return
	}
	m, err := h.service.OverrideMatch(c.Request.Context(), id, payload.TargetType, payload.TargetID, actor(c, payload.Actor), payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "match overridden", "match": m})
}

func (h *ReconciliationHandler) ManualMatch(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload targetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "target_id required")
		return
	}
	m, err := h.service.ManualMatch(c.Request.Context(), id, payload.TargetType, payload.TargetID, payload.Confidence, actor(c, payload.Actor))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction manually matched", "match": m})
}

func (h *ReconciliationHandler) Rerun(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload actorPayload
	if !bindOptional(c, &payload) {
		return
	}
	res, err := h.service.Rerun(c.Request.Context(), id, actor(c, payload.Actor))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
