package handler

import (
	"net/http"

	"lead_engine_backend/internal/automation"
	"lead_engine_backend/internal/leads/transport"
	"lead_engine_backend/platform/httpkit"
	"lead_engine_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// AutomationHandler exposes per-lead sequence control.
type AutomationHandler struct {
	svc       *automation.Service
	val       *validator.Validator
	sendLimit gin.HandlerFunc
}

// NewAutomationHandler wires the handler. sendLimit guards routes that
// dispatch a message; nil disables it.
func NewAutomationHandler(svc *automation.Service, val *validator.Validator, sendLimit gin.HandlerFunc) *AutomationHandler {
	if sendLimit == nil {
		sendLimit = func(c *gin.Context) { c.Next() }
	}
	return &AutomationHandler{svc: svc, val: val, sendLimit: sendLimit}
}

// RegisterRoutes mounts under /leads.
func (h *AutomationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/automation", h.GetState)
	rg.POST("/:id/automation/start", h.Start)
	rg.POST("/:id/automation/cancel", h.Cancel)
	rg.POST("/:id/automation/pause", h.Pause)
	rg.POST("/:id/automation/resume", h.Resume)
	rg.POST("/:id/automation/touch", h.sendLimit, h.ManualTouch)
}

func (h *AutomationHandler) GetState(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	state, err := h.svc.GetState(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toAutomationStateResponse(state))
}

func (h *AutomationHandler) Start(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.StartSequenceRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	state, err := h.svc.StartSequence(c.Request.Context(), id, req.SequenceID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toAutomationStateResponse(state))
}

func (h *AutomationHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.CancelSequence(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}

	state, err := h.svc.GetState(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toAutomationStateResponse(state))
}

func (h *AutomationHandler) Pause(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	state, err := h.svc.PauseSequence(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toAutomationStateResponse(state))
}

func (h *AutomationHandler) Resume(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	state, err := h.svc.ResumeSequence(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toAutomationStateResponse(state))
}

func (h *AutomationHandler) ManualTouch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	state, err := h.svc.TriggerManualTouch(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toAutomationStateResponse(state))
}
