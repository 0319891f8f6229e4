package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the lifecycle state of a reactivation batch.
type BatchStatus string

const (
	BatchOpen      BatchStatus = "OPEN"
	BatchCompleted BatchStatus = "COMPLETED"
	BatchAborted   BatchStatus = "ABORTED"
)

// BatchAction is an operator decision on the lead under the cursor.
type BatchAction string

const (
	BatchSend  BatchAction = "send"
	BatchSkip  BatchAction = "skip"
	BatchAbort BatchAction = "abort"
)

// BatchStep records what happened to one lead of a batch.
type BatchStep struct {
	LeadID uuid.UUID   `json:"leadId"`
	Action BatchAction `json:"action"`
	Reason string      `json:"reason,omitempty"`
	At     time.Time   `json:"at"`
}

// ReactivationBatch is a resumable cursor over an ordered list of leads.
// It only moves when an operator confirms the current step.
type ReactivationBatch struct {
	ID         uuid.UUID
	TemplateID string
	LeadIDs    []uuid.UUID
	Cursor     int
	Status     BatchStatus
	Steps      []BatchStep
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen reports whether the batch accepts confirmations.
func (b ReactivationBatch) IsOpen() bool {
	return b.Status == BatchOpen && b.Cursor < len(b.LeadIDs)
}

// Current returns the lead under the cursor.
func (b ReactivationBatch) Current() (uuid.UUID, bool) {
	if !b.IsOpen() {
		return uuid.Nil, false
	}
	return b.LeadIDs[b.Cursor], true
}

// Remaining is the number of leads not yet decided.
func (b ReactivationBatch) Remaining() int {
	if b.Status != BatchOpen {
		return 0
	}
	return len(b.LeadIDs) - b.Cursor
}

// Record appends a step for the current lead and moves the cursor by one.
// Abort closes the batch without moving the cursor.
func (b *ReactivationBatch) Record(action BatchAction, reason string, at time.Time) {
	leadID, ok := b.Current()
	if !ok {
		return
	}
	b.Steps = append(b.Steps, BatchStep{LeadID: leadID, Action: action, Reason: reason, At: at})
	b.UpdatedAt = at

	if action == BatchAbort {
		b.Status = BatchAborted
		return
	}
	b.Cursor++
	if b.Cursor >= len(b.LeadIDs) {
		b.Status = BatchCompleted
	}
}

// Clone returns a deep copy.
func (b ReactivationBatch) Clone() ReactivationBatch {
	out := b
	out.LeadIDs = append([]uuid.UUID(nil), b.LeadIDs...)
	out.Steps = append([]BatchStep(nil), b.Steps...)
	return out
}
