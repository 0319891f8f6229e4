package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead_engine_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func TestMemoryLeadRoundTripIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	budget := int64(100)
	lead := domain.Lead{ID: uuid.New(), Name: "Ana", Neighborhoods: []string{"Moema"}, BudgetMax: &budget}

	if err := store.SaveLead(ctx, lead); err != nil {
		t.Fatalf("save: %v", err)
	}
	lead.Neighborhoods[0] = "changed"
	*lead.BudgetMax = 5

	got, err := store.GetLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Neighborhoods[0] != "Moema" || *got.BudgetMax != 100 {
		t.Fatalf("store aliases caller data: %+v", got)
	}

	if _, err := store.GetLead(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryListLeadsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	old := domain.Lead{ID: uuid.New(), Stage: domain.StageNew, CreatedAt: now.AddDate(0, 0, -100)}
	closed := domain.Lead{ID: uuid.New(), Stage: domain.StageClosed, CreatedAt: now}
	bad := domain.Lead{ID: uuid.New(), Stage: domain.StageNew, IsBadLead: true, CreatedAt: now}
	fresh := domain.Lead{ID: uuid.New(), Stage: domain.StageVisit, CreatedAt: now}
	for _, l := range []domain.Lead{old, closed, bad, fresh} {
		_ = store.SaveLead(ctx, l)
	}

	cutoff := now.AddDate(0, 0, -30)
	got, err := store.ListLeads(ctx, LeadFilter{
		ExcludeBad:    true,
		ExcludeStages: []domain.Stage{domain.StageClosed},
		CreatedAfter:  &cutoff,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != fresh.ID {
		t.Fatalf("expected only fresh lead, got %d leads", len(got))
	}

	byID, _ := store.ListLeads(ctx, LeadFilter{IDs: []uuid.UUID{old.ID}})
	if len(byID) != 1 || byID[0].ID != old.ID {
		t.Fatalf("ID filter failed")
	}
}

func TestMemoryMarkTaskSentIsCommitPoint(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Now().UTC()
	task := domain.NewPendingTask(uuid.New(), "s", "oi", 0, now, now)
	_ = store.CreateTask(ctx, task)

	if err := store.MarkTaskSent(ctx, task.ID, now); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := store.MarkTaskSent(ctx, task.ID, now); !errors.Is(err, domain.ErrTaskAlreadySent) {
		t.Fatalf("expected ErrTaskAlreadySent, got %v", err)
	}
	if err := store.MarkTaskSent(ctx, uuid.New(), now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCancelPendingTasks(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Now().UTC()
	leadID := uuid.New()

	sent := domain.NewPendingTask(leadID, "s", "a", 0, now, now)
	_ = sent.MarkSent(now)
	pending := domain.NewPendingTask(leadID, "s", "b", 1, now, now)
	other := domain.NewPendingTask(uuid.New(), "s", "c", 0, now, now)
	for _, task := range []domain.Task{sent, pending, other} {
		_ = store.CreateTask(ctx, task)
	}

	n, err := store.CancelPendingTasks(ctx, leadID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 cancelled, got %d (%v)", n, err)
	}
	n, _ = store.CancelPendingTasks(ctx, leadID)
	if n != 0 {
		t.Fatalf("second cancel must be a no-op, got %d", n)
	}

	pendingOnly, _ := store.ListTasks(ctx, TaskFilter{Status: domain.TaskPending})
	if len(pendingOnly) != 1 || pendingOnly[0].ID != other.ID {
		t.Fatalf("unexpected pending tasks: %+v", pendingOnly)
	}
}

func TestMemoryAutomationStateDefaultsToIdle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	leadID := uuid.New()

	state, err := store.GetAutomationState(ctx, leadID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Status != domain.AutomationIdle || state.LeadID != leadID {
		t.Fatalf("expected idle state, got %+v", state)
	}
}

func TestMemoryListDueStates(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	due := domain.AutomationState{LeadID: uuid.New(), Status: domain.AutomationRunning, ActiveSequenceID: "s", NextTouchAt: &past}
	exact := domain.AutomationState{LeadID: uuid.New(), Status: domain.AutomationRunning, ActiveSequenceID: "s", NextTouchAt: &now}
	later := domain.AutomationState{LeadID: uuid.New(), Status: domain.AutomationRunning, ActiveSequenceID: "s", NextTouchAt: &future}
	paused := domain.AutomationState{LeadID: uuid.New(), Status: domain.AutomationPaused, ActiveSequenceID: "s", NextTouchAt: &past}
	for _, s := range []domain.AutomationState{due, exact, later, paused} {
		_ = store.SaveAutomationState(ctx, s)
	}

	got, err := store.ListDueStates(ctx, now, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].LeadID != due.LeadID || got[1].LeadID != exact.LeadID {
		t.Fatalf("unexpected due states: %+v", got)
	}

	limited, _ := store.ListDueStates(ctx, now, 1)
	if len(limited) != 1 {
		t.Fatalf("limit not applied")
	}
}

func TestMemoryBatchSaveRequiresExisting(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	batch := domain.ReactivationBatch{ID: uuid.New(), LeadIDs: []uuid.UUID{uuid.New()}, Status: domain.BatchOpen}

	if err := store.SaveBatch(ctx, batch); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown batch, got %v", err)
	}
	if err := store.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("create: %v", err)
	}
	batch.Cursor = 1
	if err := store.SaveBatch(ctx, batch); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := store.GetBatch(ctx, batch.ID)
	if got.Cursor != 1 {
		t.Fatalf("cursor not persisted")
	}
}
