package priority

import (
	"testing"
	"time"

	"lead_engine_backend/internal/leads/domain"

	"github.com/google/uuid"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func lead(score int, label domain.Label, lastContact time.Time) domain.Lead {
	return domain.Lead{
		ID:                 uuid.New(),
		Name:               "Lead",
		Stage:              domain.StageContacted,
		Score:              score,
		QualificationLabel: label,
		CreatedAt:          now.Add(-30 * 24 * time.Hour),
		LastContactAt:      lastContact,
	}
}

func pendingTask(leadID uuid.UUID, at time.Time) domain.Task {
	return domain.NewPendingTask(leadID, "novo_lead", "msg", 0, at, now.Add(-48*time.Hour))
}

func TestOverdueWarmTaskWhenHotLeadHasNoTask(t *testing.T) {
	hot := lead(80, domain.LabelHot, now)
	warm := lead(50, domain.LabelWarm, now)
	overdue := pendingTask(warm.ID, now.Add(-time.Hour))

	got := Derive([]domain.Lead{hot, warm}, []domain.Task{overdue}, now, 3)
	if len(got.MITs) != 1 || got.MITs[0].ID != overdue.ID {
		t.Fatalf("expected only the overdue warm task, got %+v", got.MITs)
	}
}

func TestHotTaskSortsBeforeOverdueWarmTask(t *testing.T) {
	hot := lead(80, domain.LabelHot, now)
	warm := lead(50, domain.LabelWarm, now)
	hotTask := pendingTask(hot.ID, now.Add(2*time.Hour))
	warmTask := pendingTask(warm.ID, now.Add(-time.Hour))

	got := Derive([]domain.Lead{warm, hot}, []domain.Task{warmTask, hotTask}, now, 3)
	if len(got.MITs) != 2 {
		t.Fatalf("expected 2 MITs, got %d", len(got.MITs))
	}
	if got.MITs[0].ID != hotTask.ID || got.MITs[1].ID != warmTask.ID {
		t.Fatalf("expected hot task first, got %+v", got.MITs)
	}
}

func TestHotAndOverdueBeatsHigherScore(t *testing.T) {
	hotA := lead(95, domain.LabelHot, now)
	hotB := lead(72, domain.LabelHot, now)
	notYet := pendingTask(hotA.ID, now.Add(time.Hour))
	late := pendingTask(hotB.ID, now.Add(-time.Minute))

	got := Derive([]domain.Lead{hotA, hotB}, []domain.Task{notYet, late}, now, 3)
	if got.MITs[0].ID != late.ID {
		t.Fatalf("expected hot-and-overdue first, got %+v", got.MITs)
	}
}

func TestTiesBreakOnScheduledFor(t *testing.T) {
	warm := lead(50, domain.LabelWarm, now)
	later := pendingTask(warm.ID, now.Add(-time.Hour))
	earlier := pendingTask(warm.ID, now.Add(-3*time.Hour))

	got := Derive([]domain.Lead{warm}, []domain.Task{later, earlier}, now, 3)
	if got.MITs[0].ID != earlier.ID {
		t.Fatalf("expected earlier task first, got %+v", got.MITs)
	}
}

func TestNonPendingTasksAreIgnored(t *testing.T) {
	hot := lead(80, domain.LabelHot, now.Add(-10*24*time.Hour))
	task := pendingTask(hot.ID, now.Add(-time.Hour))
	_ = task.MarkSent(now)

	got := Derive([]domain.Lead{hot}, []domain.Task{task}, now, 3)
	if len(got.MITs) != 0 {
		t.Fatalf("expected no MITs, got %+v", got.MITs)
	}
	if len(got.Cooling) != 1 {
		t.Fatalf("a lead with only sent tasks should be cooling, got %+v", got.Cooling)
	}
}

func TestCoolingLeads(t *testing.T) {
	stale := lead(30, domain.LabelCold, now.Add(-4*24*time.Hour))
	staler := lead(60, domain.LabelWarm, now.Add(-10*24*time.Hour))
	fresh := lead(90, domain.LabelHot, now.Add(-24*time.Hour))
	exactly := lead(10, domain.LabelCold, now.Add(-3*24*time.Hour))
	closed := lead(70, domain.LabelHot, now.Add(-30*24*time.Hour))
	closed.Stage = domain.StageClosed
	bad := lead(70, domain.LabelHot, now.Add(-30*24*time.Hour))
	bad.IsBadLead = true
	busy := lead(40, domain.LabelWarm, now.Add(-30*24*time.Hour))

	leads := []domain.Lead{stale, staler, fresh, exactly, closed, bad, busy}
	tasks := []domain.Task{pendingTask(busy.ID, now.Add(time.Hour))}

	got := Derive(leads, tasks, now, 3)
	if len(got.Cooling) != 3 {
		t.Fatalf("expected 3 cooling leads, got %d", len(got.Cooling))
	}
	want := []uuid.UUID{staler.ID, stale.ID, exactly.ID}
	for i, id := range want {
		if got.Cooling[i].ID != id {
			t.Fatalf("cooling[%d]: expected %s, got %s", i, id, got.Cooling[i].ID)
		}
	}
}

func TestNeverContactedUsesCreatedAt(t *testing.T) {
	l := lead(20, domain.LabelCold, time.Time{})
	got := Derive([]domain.Lead{l}, nil, now, DefaultStaleThresholdDays)
	if len(got.Cooling) != 1 {
		t.Fatalf("expected a never-contacted old lead to be cooling")
	}
}

func TestDeriveDoesNotMutateInputs(t *testing.T) {
	a := lead(50, domain.LabelWarm, now.Add(-5*24*time.Hour))
	a.Neighborhoods = []string{"Pinheiros"}
	b := lead(80, domain.LabelHot, now.Add(-5*24*time.Hour))
	leads := []domain.Lead{a, b}
	tasks := []domain.Task{pendingTask(b.ID, now.Add(-time.Hour)), pendingTask(b.ID, now.Add(-2*time.Hour))}
	firstTask := tasks[0].ID

	got := Derive(leads, tasks, now, 3)
	if len(got.MITs) != 2 || len(got.Cooling) != 1 {
		t.Fatalf("unexpected result: %d MITs, %d cooling", len(got.MITs), len(got.Cooling))
	}
	got.MITs[0].Message = "changed"
	got.Cooling[0].Neighborhoods[0] = "changed"

	if leads[0].ID != a.ID || tasks[0].ID != firstTask || tasks[0].Message != "msg" {
		t.Fatalf("inputs were reordered or mutated")
	}
	if leads[0].Neighborhoods[0] != "Pinheiros" {
		t.Fatalf("lead neighborhoods were aliased")
	}
}
