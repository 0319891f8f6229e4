package repository

import (
	"context"
	"errors"
	"time"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/platform/apperr"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned by UpdateLead when the stored lead changed
// after it was read.
var ErrVersionConflict = errors.New("lead version conflict")

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadFilter narrows ListLeads. Zero value lists every lead.
type LeadFilter struct {
	IDs           []uuid.UUID
	ExcludeBad    bool
	ExcludeStages []domain.Stage
	CreatedAfter  *time.Time
}

// TaskFilter narrows ListTasks. Zero value lists every task.
type TaskFilter struct {
	LeadIDs []uuid.UUID
	Status  domain.TaskStatus
}

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
}

// LeadWriter writes lead records.
type LeadWriter interface {
	// SaveLead inserts or replaces a lead as given. Used for new leads.
	SaveLead(ctx context.Context, lead domain.Lead) error
	// UpdateLead replaces a lead only if its stored Version equals lead.Version,
	// and stores it with Version+1. Fails with ErrVersionConflict otherwise.
	UpdateLead(ctx context.Context, lead domain.Lead) error
	// RecordReactivation stamps a reactivation send without touching any other
	// attribute: last reactivation and last contact become at, the touch count
	// grows by one. Returns the lead as stored.
	RecordReactivation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Lead, error)
}

// LeadStore combines lead reads and writes.
type LeadStore interface {
	LeadReader
	LeadWriter
}

// TaskStore manages scheduled outbound tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task domain.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	// MarkTaskSent atomically moves a PENDING task to SENT. It is the commit
	// point of a dispatch and fails with domain.ErrTaskAlreadySent or
	// domain.ErrTaskCancelled when the task is no longer pending.
	MarkTaskSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// CancelPendingTasks cancels every PENDING task of the lead and returns how many changed.
	CancelPendingTasks(ctx context.Context, leadID uuid.UUID) (int, error)
}

// AutomationStateStore persists per-lead automation state.
type AutomationStateStore interface {
	// GetAutomationState returns domain.IdleState when the lead has no record.
	GetAutomationState(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error)
	SaveAutomationState(ctx context.Context, state domain.AutomationState) error
	// ListDueStates returns RUNNING states with NextTouchAt <= now, oldest first.
	ListDueStates(ctx context.Context, now time.Time, limit int) ([]domain.AutomationState, error)
}

// BatchStore persists reactivation batch cursors.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch domain.ReactivationBatch) error
	GetBatch(ctx context.Context, id uuid.UUID) (domain.ReactivationBatch, error)
	SaveBatch(ctx context.Context, batch domain.ReactivationBatch) error
}

// Store is the full storage collaborator.
type Store interface {
	LeadStore
	TaskStore
	AutomationStateStore
	BatchStore
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsStage(stages []domain.Stage, stage domain.Stage) bool {
	for _, candidate := range stages {
		if candidate == stage {
			return true
		}
	}
	return false
}

func stagesToStrings(stages []domain.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

// AppError maps a storage error onto apperr. ErrNotFound becomes NotFound with
// reason "<entity>_not_found", ErrVersionConflict becomes Conflict with reason
// "<entity>_modified"; other untyped errors become retryable Unavailable.
func AppError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(entity + " not found").WithReason(entity + "_not_found")
	}
	if errors.Is(err, ErrVersionConflict) {
		return apperr.Conflict(entity+"_modified", entity+" changed concurrently, retry")
	}
	return apperr.Unavailable("storage unavailable", err).WithReason("storage_unavailable")
}
