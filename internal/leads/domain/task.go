package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskSent      TaskStatus = "SENT"
	TaskCancelled TaskStatus = "CANCELLED"
)

// SequenceNameReactivation marks follow-up tasks created by a reactivation send.
const SequenceNameReactivation = "reactivation"

var (
	// ErrTaskAlreadySent is returned when a task is marked sent a second time.
	ErrTaskAlreadySent = errors.New("task already sent")
	// ErrTaskCancelled is returned when a cancelled task is marked sent.
	ErrTaskCancelled = errors.New("task cancelled")
)

// Task is one scheduled outbound action: a sequence touch or an ad-hoc follow-up.
type Task struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	SequenceName string
	Message      string
	ScheduledFor time.Time
	Status       TaskStatus
	TouchIndex   int
	SentAt       *time.Time
	CreatedAt    time.Time
}

// NewPendingTask builds a PENDING task with a fresh ID.
func NewPendingTask(leadID uuid.UUID, sequenceName, message string, touchIndex int, scheduledFor, now time.Time) Task {
	return Task{
		ID:           uuid.New(),
		LeadID:       leadID,
		SequenceName: sequenceName,
		Message:      message,
		ScheduledFor: scheduledFor,
		Status:       TaskPending,
		TouchIndex:   touchIndex,
		CreatedAt:    now,
	}
}

// IsPending reports whether the task is still awaiting dispatch.
func (t Task) IsPending() bool {
	return t.Status == TaskPending
}

// MarkSent moves the task PENDING -> SENT. It happens at most once.
func (t *Task) MarkSent(at time.Time) error {
	switch t.Status {
	case TaskSent:
		return ErrTaskAlreadySent
	case TaskCancelled:
		return ErrTaskCancelled
	}
	t.Status = TaskSent
	t.SentAt = &at
	return nil
}

// Cancel moves a PENDING task to CANCELLED and reports whether it changed.
// SENT and CANCELLED tasks are final.
func (t *Task) Cancel() bool {
	if t.Status != TaskPending {
		return false
	}
	t.Status = TaskCancelled
	return true
}
