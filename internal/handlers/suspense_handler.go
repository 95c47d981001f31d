package handler

import (
	"net/http"
	"time"

	"bank-reconciliation-engine/internal/services/reconciliation"
	"bank-reconciliation-engine/internal/services/suspense"

	"github.com/gin-gonic/gin"
)

type SuspenseHandler struct {
	router *suspense.Router
	recon  *reconciliation.ReconciliationService
}

func NewSuspenseHandler(router *suspense.Router, recon *reconciliation.ReconciliationService) *SuspenseHandler {
	return &SuspenseHandler{router: router, recon: recon}
}

// ListOpen pages open entries together with the tenant's outstanding total.
func (h *SuspenseHandler) ListOpen(c *gin.Context) {
	tenantID := c.Param("tenantId")
	items, nextCursor, hasMore, err := h.router.ListOpen(c.Request.Context(), tenantID, c.Query("cursor"), pageSize(c))
	if err != nil {
		respondError(c, err)
		return
	}
	asOf, ok := dayQuery(c, "as_of", time.Now().UTC())
	if !ok {
		return
	}
	total, err := h.router.OutstandingTotal(c.Request.Context(), tenantID, endOfDay(asOf))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":             items,
		"next_cursor":       nextCursor,
		"has_more":          hasMore,
		"outstanding_total": total,
	})
}

func (h *SuspenseHandler) GetEntry(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.router.GetEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *SuspenseHandler) Rematch(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload targetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "target_id required")
		return
	}
	m, err := h.recon.RematchSuspense(c.Request.Context(), id, payload.TargetType, payload.TargetID, payload.Confidence, actor(c, payload.Actor))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "suspense entry rematched", "match": m})
}

func (h *SuspenseHandler) WriteOff(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload actorPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Reason == "" {
		badRequest(c, "reason required")
		return
	}
	entry, err := h.router.WriteOff(c.Request.Context(), id, actor(c, payload.Actor), payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "suspense entry written off", "entry": entry})
}
