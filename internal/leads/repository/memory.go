package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"lead_engine_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Memory is an in-process Store used when no database is configured and in tests.
// Each method applies atomically to a single record.
type Memory struct {
	mu      sync.RWMutex
	leads   map[uuid.UUID]domain.Lead
	tasks   map[uuid.UUID]domain.Task
	states  map[uuid.UUID]domain.AutomationState
	batches map[uuid.UUID]domain.ReactivationBatch
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		leads:   make(map[uuid.UUID]domain.Lead),
		tasks:   make(map[uuid.UUID]domain.Task),
		states:  make(map[uuid.UUID]domain.AutomationState),
		batches: make(map[uuid.UUID]domain.ReactivationBatch),
	}
}

func (m *Memory) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return lead.Clone(), nil
}

func (m *Memory) ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		if len(filter.IDs) > 0 && !containsID(filter.IDs, lead.ID) {
			continue
		}
		if filter.ExcludeBad && lead.IsBadLead {
			continue
		}
		if containsStage(filter.ExcludeStages, lead.Stage) {
			continue
		}
		if filter.CreatedAfter != nil && lead.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		out = append(out, lead.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) SaveLead(ctx context.Context, lead domain.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = lead.Clone()
	return nil
}

func (m *Memory) UpdateLead(ctx context.Context, lead domain.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.leads[lead.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != lead.Version {
		return ErrVersionConflict
	}
	next := lead.Clone()
	next.LastReactivationAt = stored.LastReactivationAt
	next.ReactivationTouchCount = stored.ReactivationTouchCount
	next.Version++
	m.leads[lead.ID] = next
	return nil
}

func (m *Memory) RecordReactivation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	at = at.UTC()
	lead.LastReactivationAt = &at
	lead.LastContactAt = at
	lead.ReactivationTouchCount++
	lead.UpdatedAt = at
	lead.Version++
	m.leads[id] = lead
	return lead.Clone(), nil
}

func (m *Memory) CreateTask(ctx context.Context, task domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = cloneTask(task)
	return nil
}

func (m *Memory) GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return cloneTask(task), nil
}

func (m *Memory) ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Task, 0)
	for _, task := range m.tasks {
		if len(filter.LeadIDs) > 0 && !containsID(filter.LeadIDs, task.LeadID) {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		out = append(out, cloneTask(task))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TouchIndex < out[j].TouchIndex
	})
	return out, nil
}

func (m *Memory) MarkTaskSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if err := task.MarkSent(at); err != nil {
		return err
	}
	m.tasks[id] = task
	return nil
}

func (m *Memory) CancelPendingTasks(ctx context.Context, leadID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cancelled := 0
	for id, task := range m.tasks {
		if task.LeadID != leadID {
			continue
		}
		if task.Cancel() {
			m.tasks[id] = task
			cancelled++
		}
	}
	return cancelled, nil
}

func (m *Memory) GetAutomationState(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error) {
	if err := ctx.Err(); err != nil {
		return domain.AutomationState{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[leadID]
	if !ok {
		return domain.IdleState(leadID), nil
	}
	return cloneState(state), nil
}

func (m *Memory) SaveAutomationState(ctx context.Context, state domain.AutomationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.LeadID] = cloneState(state)
	return nil
}

func (m *Memory) ListDueStates(ctx context.Context, now time.Time, limit int) ([]domain.AutomationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.AutomationState, 0)
	for _, state := range m.states {
		if state.IsDue(now) {
			out = append(out, cloneState(state))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextTouchAt.Equal(*out[j].NextTouchAt) {
			return out[i].NextTouchAt.Before(*out[j].NextTouchAt)
		}
		return out[i].LeadID.String() < out[j].LeadID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateBatch(ctx context.Context, batch domain.ReactivationBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.ID] = batch.Clone()
	return nil
}

func (m *Memory) GetBatch(ctx context.Context, id uuid.UUID) (domain.ReactivationBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReactivationBatch{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	batch, ok := m.batches[id]
	if !ok {
		return domain.ReactivationBatch{}, ErrNotFound
	}
	return batch.Clone(), nil
}

func (m *Memory) SaveBatch(ctx context.Context, batch domain.ReactivationBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[batch.ID]; !ok {
		return ErrNotFound
	}
	m.batches[batch.ID] = batch.Clone()
	return nil
}

func cloneTask(t domain.Task) domain.Task {
	if t.SentAt != nil {
		v := *t.SentAt
		t.SentAt = &v
	}
	return t
}

func cloneState(s domain.AutomationState) domain.AutomationState {
	copyTime := func(p *time.Time) *time.Time {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	s.NextTouchAt = copyTime(s.NextTouchAt)
	s.StartedAt = copyTime(s.StartedAt)
	s.LastMessageSentAt = copyTime(s.LastMessageSentAt)
	return s
}
