package management

import (
	"time"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/priority"
	"lead_engine_backend/internal/leads/transport"

	"github.com/google/uuid"
)

// ToLeadResponse converts a domain lead to its API shape.
func ToLeadResponse(lead domain.Lead) transport.LeadResponse {
	neighborhoods := lead.Neighborhoods
	if neighborhoods == nil {
		neighborhoods = []string{}
	}

	resp := transport.LeadResponse{
		ID:                     lead.ID,
		Name:                   lead.Name,
		Phone:                  lead.Phone,
		Email:                  lead.Email,
		Neighborhoods:          append([]string(nil), neighborhoods...),
		Intent:                 string(lead.Intent),
		PaymentMethod:          string(lead.PaymentMethod),
		BudgetMin:              lead.BudgetMin,
		BudgetMax:              lead.BudgetMax,
		Urgency:                string(lead.Urgency),
		DeadlineDays:           lead.DeadlineDays,
		Stage:                  string(lead.Stage),
		Score:                  lead.Score,
		QualificationLabel:     string(lead.QualificationLabel),
		IsBadLead:              lead.IsBadLead,
		CreatedAt:              lead.CreatedAt,
		LastReactivationAt:     lead.LastReactivationAt,
		ReactivationTouchCount: lead.ReactivationTouchCount,
		UpdatedAt:              lead.UpdatedAt,
	}
	if !lead.LastContactAt.IsZero() {
		at := lead.LastContactAt
		resp.LastContactAt = &at
	}
	return resp
}

// ToLeadResponses converts a list of leads, never returning nil.
func ToLeadResponses(leads []domain.Lead) []transport.LeadResponse {
	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}

// ToTaskResponse converts a domain task to its API shape.
func ToTaskResponse(task domain.Task) transport.TaskResponse {
	return transport.TaskResponse{
		ID:           task.ID,
		LeadID:       task.LeadID,
		SequenceName: task.SequenceName,
		Message:      task.Message,
		ScheduledFor: task.ScheduledFor,
		Status:       string(task.Status),
		TouchIndex:   task.TouchIndex,
		SentAt:       task.SentAt,
	}
}

// ToPrioritiesResponse joins MIT tasks with their lead for display.
func ToPrioritiesResponse(result priority.Result, leads []domain.Lead, now time.Time, staleDays int) transport.PrioritiesResponse {
	byID := make(map[uuid.UUID]domain.Lead, len(leads))
	for _, lead := range leads {
		byID[lead.ID] = lead
	}

	mits := make([]transport.MITResponse, 0, len(result.MITs))
	for _, task := range result.MITs {
		lead := byID[task.LeadID]
		mits = append(mits, transport.MITResponse{
			Task:      ToTaskResponse(task),
			LeadName:  lead.Name,
			LeadScore: lead.Score,
			LeadLabel: string(lead.QualificationLabel),
			Overdue:   task.ScheduledFor.Before(now),
		})
	}

	return transport.PrioritiesResponse{
		MITs:               mits,
		Cooling:            ToLeadResponses(result.Cooling),
		StaleThresholdDays: staleDays,
	}
}
