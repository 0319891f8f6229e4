package handler

import (
	"net/http"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/management"
	"lead_engine_backend/internal/leads/transport"
	"lead_engine_backend/internal/reactivation"
	"lead_engine_backend/platform/httpkit"
	"lead_engine_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// ReactivationHandler exposes candidate selection, previews and confirmed sends.
type ReactivationHandler struct {
	svc       *reactivation.Service
	val       *validator.Validator
	sendLimit gin.HandlerFunc
}

func NewReactivationHandler(svc *reactivation.Service, val *validator.Validator, sendLimit gin.HandlerFunc) *ReactivationHandler {
	if sendLimit == nil {
		sendLimit = func(c *gin.Context) { c.Next() }
	}
	return &ReactivationHandler{svc: svc, val: val, sendLimit: sendLimit}
}

// RegisterRoutes mounts under /reactivation.
func (h *ReactivationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/candidates", h.Candidates)
	rg.GET("/candidates/export", h.ExportCandidates)
	rg.POST("/preview", h.Preview)
	rg.POST("/leads/:id", h.sendLimit, h.Reactivate)
	rg.POST("/batches", h.StartBatch)
	rg.GET("/batches/:id", h.GetBatch)
	rg.POST("/batches/:id/confirm", h.sendLimit, h.Confirm)
}

func (h *ReactivationHandler) Candidates(c *gin.Context) {
	var req transport.CandidatesRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	leads, ok := h.candidates(c, req)
	if !ok {
		return
	}

	httpkit.OK(c, transport.CandidatesResponse{
		Items: management.ToLeadResponses(leads),
		Total: len(leads),
	})
}

func (h *ReactivationHandler) candidates(c *gin.Context, req transport.CandidatesRequest) ([]domain.Lead, bool) {
	sortBy, err := reactivation.ParseSortBy(req.SortBy)
	if httpkit.HandleError(c, err) {
		return nil, false
	}

	leads, err := h.svc.Candidates(c.Request.Context(), reactivation.Filters{
		PeriodDays:      req.PeriodDays,
		MinDaysInactive: req.MinDaysInactive,
		ExcludeClosed:   req.ExcludeClosed,
		ExcludeBadLeads: req.ExcludeBadLeads,
		SortBy:          sortBy,
	})
	if httpkit.HandleError(c, err) {
		return nil, false
	}
	return leads, true
}

func (h *ReactivationHandler) Preview(c *gin.Context) {
	var req transport.PreviewRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	msg, err := h.svc.Preview(c.Request.Context(), req.LeadID, req.TemplateID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toRenderedMessageResponse(msg))
}

func (h *ReactivationHandler) Reactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.ReactivateRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	result, err := h.svc.Reactivate(c.Request.Context(), id, req.TemplateID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ReactivationResponse{
		Message:  toRenderedMessageResponse(result.Message),
		Lead:     management.ToLeadResponse(result.Lead),
		FollowUp: management.ToTaskResponse(result.FollowUp),
	})
}

func (h *ReactivationHandler) StartBatch(c *gin.Context) {
	var req transport.StartBatchRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	view, err := h.svc.StartBatch(c.Request.Context(), req.LeadIDs, req.TemplateID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toBatchResponse(view))
}

func (h *ReactivationHandler) GetBatch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, err := h.svc.GetBatch(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toBatchResponse(view))
}

func (h *ReactivationHandler) Confirm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.ConfirmBatchRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	view, err := h.svc.Confirm(c.Request.Context(), id, domain.BatchAction(req.Action))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toBatchResponse(view))
}
