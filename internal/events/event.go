// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"lead_engine_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Automation Domain Events
// =============================================================================

// SequenceStarted is published when a lead enters a sequence.
type SequenceStarted struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	SequenceID  string    `json:"sequenceId"`
	FirstTaskID uuid.UUID `json:"firstTaskId"`
	NextTouchAt time.Time `json:"nextTouchAt"`
}

func (e SequenceStarted) EventName() string { return "automation.sequence.started" }

// TouchDispatched is published after a touch was accepted by the channel and committed.
type TouchDispatched struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	SequenceID string    `json:"sequenceId"`
	TouchIndex int       `json:"touchIndex"`
	TaskID     uuid.UUID `json:"taskId"`
	Manual     bool      `json:"manual"`
}

func (e TouchDispatched) EventName() string { return "automation.touch.dispatched" }

// SequenceCompleted is published when the last touch of a sequence was sent.
type SequenceCompleted struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	SequenceID string    `json:"sequenceId"`
	Touches    int       `json:"touches"`
}

func (e SequenceCompleted) EventName() string { return "automation.sequence.completed" }

// SequenceCancelled is published when a running or paused sequence is stopped early.
type SequenceCancelled struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	SequenceID     string    `json:"sequenceId"`
	Reason         string    `json:"reason"`
	CancelledTasks int       `json:"cancelledTasks"`
}

func (e SequenceCancelled) EventName() string { return "automation.sequence.cancelled" }

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadUpdated is published after a lead was saved with new attributes.
type LeadUpdated struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	Stage         string    `json:"stage"`
	PreviousStage string    `json:"previousStage"`
	IsBadLead     bool      `json:"isBadLead"`
	Score         int       `json:"score"`
	Label         string    `json:"label"`
}

func (e LeadUpdated) EventName() string { return "leads.lead.updated" }

// LeadReactivated is published after a reactivation message was sent.
type LeadReactivated struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	TemplateID     string     `json:"templateId"`
	FollowUpTaskID uuid.UUID  `json:"followUpTaskId"`
	BatchID        *uuid.UUID `json:"batchId,omitempty"`
	TouchCount     int        `json:"touchCount"`
}

func (e LeadReactivated) EventName() string { return "leads.lead.reactivated" }
