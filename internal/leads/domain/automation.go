package domain

import (
	"time"

	"github.com/google/uuid"
)

// AutomationStatus is the explicit state of a lead's automation.
type AutomationStatus string

const (
	AutomationIdle    AutomationStatus = "IDLE"
	AutomationRunning AutomationStatus = "RUNNING"
	AutomationPaused  AutomationStatus = "PAUSED"
)

// AutomationState tracks the active sequence of one lead.
//
//	IDLE    : no ActiveSequenceID, no NextTouchAt
//	RUNNING : ActiveSequenceID and NextTouchAt set
//	PAUSED  : ActiveSequenceID set, NextTouchAt kept for resume
//
// CurrentTaskID points at the task created for TouchIndex.
type AutomationState struct {
	LeadID            uuid.UUID
	Status            AutomationStatus
	ActiveSequenceID  string
	TouchIndex        int
	CurrentTaskID     uuid.UUID
	NextTouchAt       *time.Time
	StartedAt         *time.Time
	LastMessageSentAt *time.Time
	UpdatedAt         time.Time
}

// IdleState is the state of a lead that never ran a sequence.
func IdleState(leadID uuid.UUID) AutomationState {
	return AutomationState{LeadID: leadID, Status: AutomationIdle}
}

// IsActive reports whether a sequence is attached (running or paused).
func (s AutomationState) IsActive() bool {
	return s.Status == AutomationRunning || s.Status == AutomationPaused
}

// IsDue reports whether a running state's next touch is due at now.
func (s AutomationState) IsDue(now time.Time) bool {
	return s.Status == AutomationRunning && s.NextTouchAt != nil && !s.NextTouchAt.After(now)
}

// Consistent checks the status invariants. It returns a non-empty reason when violated.
func (s AutomationState) Consistent() string {
	switch s.Status {
	case AutomationIdle:
		if s.ActiveSequenceID != "" || s.NextTouchAt != nil {
			return "idle state must not carry a sequence or next touch"
		}
	case AutomationRunning:
		if s.ActiveSequenceID == "" || s.NextTouchAt == nil {
			return "running state requires a sequence and next touch"
		}
	case AutomationPaused:
		if s.ActiveSequenceID == "" {
			return "paused state requires a sequence"
		}
	default:
		return "unknown automation status"
	}
	return ""
}
