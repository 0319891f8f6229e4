package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/transport"
	"lead_engine_backend/platform/httpkit"
	"lead_engine_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

var candidateCSVHeaders = []string{
	"lead_id", "name", "phone", "stage", "score", "label",
	"last_activity_at", "days_inactive", "budget_max", "reactivation_touches",
}

// ExportCandidates streams the candidate list as CSV for dialer or spreadsheet import.
// Filters come from the query string with the same names as the JSON body of Candidates.
func (h *ReactivationHandler) ExportCandidates(c *gin.Context) {
	var req transport.CandidatesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	leads, ok := h.candidates(c, req)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=reactivation-candidates.csv")
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(candidateCSVHeaders); err != nil {
		return
	}
	now := h.svc.Now()
	for _, lead := range leads {
		if err := writer.Write(candidateRow(lead, now)); err != nil {
			return
		}
	}
	writer.Flush()
}

func candidateRow(lead domain.Lead, now time.Time) []string {
	budget := ""
	if lead.BudgetMax != nil {
		budget = strconv.FormatInt(*lead.BudgetMax, 10)
	}
	activity := lead.LastActivityAt()
	return []string{
		lead.ID.String(),
		lead.Name,
		lead.Phone,
		string(lead.Stage),
		strconv.Itoa(lead.Score),
		string(lead.QualificationLabel),
		activity.UTC().Format(time.RFC3339),
		strconv.Itoa(int(now.Sub(activity).Hours() / 24)),
		budget,
		strconv.Itoa(lead.ReactivationTouchCount),
	}
}
