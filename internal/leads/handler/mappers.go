package handler

import (
	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/transport"
	"lead_engine_backend/internal/reactivation"

	"github.com/google/uuid"
)

func toAutomationStateResponse(state domain.AutomationState) transport.AutomationStateResponse {
	resp := transport.AutomationStateResponse{
		LeadID:            state.LeadID,
		Status:            string(state.Status),
		ActiveSequenceID:  state.ActiveSequenceID,
		TouchIndex:        state.TouchIndex,
		NextTouchAt:       state.NextTouchAt,
		StartedAt:         state.StartedAt,
		LastMessageSentAt: state.LastMessageSentAt,
	}
	if state.CurrentTaskID != uuid.Nil {
		id := state.CurrentTaskID
		resp.CurrentTaskID = &id
	}
	return resp
}

func toRenderedMessageResponse(msg reactivation.RenderedMessage) transport.RenderedMessageResponse {
	return transport.RenderedMessageResponse{
		LeadID:     msg.LeadID,
		LeadName:   msg.LeadName,
		Phone:      msg.Phone,
		TemplateID: msg.TemplateID,
		Text:       msg.Text,
	}
}

func toBatchResponse(view reactivation.BatchView) transport.BatchResponse {
	batch := view.Batch
	steps := make([]transport.BatchStepResponse, 0, len(batch.Steps))
	for _, step := range batch.Steps {
		steps = append(steps, transport.BatchStepResponse{
			LeadID: step.LeadID,
			Action: string(step.Action),
			Reason: step.Reason,
			At:     step.At,
		})
	}

	resp := transport.BatchResponse{
		ID:         batch.ID,
		TemplateID: batch.TemplateID,
		LeadIDs:    append([]uuid.UUID(nil), batch.LeadIDs...),
		Cursor:     batch.Cursor,
		Remaining:  batch.Remaining(),
		Status:     string(batch.Status),
		Steps:      steps,
		CreatedAt:  batch.CreatedAt,
		UpdatedAt:  batch.UpdatedAt,
	}
	if view.Current != nil {
		current := toRenderedMessageResponse(*view.Current)
		resp.Current = &current
	}
	return resp
}
