package management

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"lead_engine_backend/internal/events"
	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/repository"
	"lead_engine_backend/internal/leads/transport"
	"lead_engine_backend/platform/apperr"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/logger"

	"github.com/google/uuid"
)

var start = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type recordingHandler struct {
	mu     sync.Mutex
	events []events.LeadUpdated
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := event.(events.LeadUpdated); ok {
		h.events = append(h.events, e)
	}
	return h.err
}

func (h *recordingHandler) last() (events.LeadUpdated, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return events.LeadUpdated{}, false
	}
	return h.events[len(h.events)-1], true
}

func newService(t *testing.T) (*Service, *repository.Memory, *clock.Manual, *recordingHandler, *events.InMemoryBus) {
	t.Helper()
	repo := repository.NewMemory()
	clk := clock.NewManual(start)
	bus := events.NewInMemoryBus(logger.Discard())
	handler := &recordingHandler{}
	bus.Subscribe(events.LeadUpdated{}.EventName(), handler)
	return New(repo, bus, clk, 0, logger.Discard()), repo, clk, handler, bus
}

func ptr[T any](v T) *T { return &v }

func TestCreateScoresAndNormalizes(t *testing.T) {
	svc, repo, _, _, bus := newService(t)
	defer bus.Wait()

	resp, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:          "  Ana <b>Souza</b> ",
		Phone:         "+55 11 98765-4321",
		Email:         " Ana@Example.COM ",
		Neighborhoods: []string{"Moema"},
		PaymentMethod: "cash",
		BudgetMin:     ptr(int64(800000)),
		BudgetMax:     ptr(int64(900000)),
		Urgency:       "HIGH",
		DeadlineDays:  ptr(5),
		Stage:         "NEGOTIATION",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Score != 100 || resp.QualificationLabel != string(domain.LabelHot) {
		t.Fatalf("expected clamped HOT score, got %d %s", resp.Score, resp.QualificationLabel)
	}
	if resp.Phone != "+5511987654321" {
		t.Fatalf("expected E.164 phone, got %q", resp.Phone)
	}
	if resp.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %q", resp.Email)
	}
	if resp.Name != "Ana Souza" {
		t.Fatalf("expected sanitized name, got %q", resp.Name)
	}

	stored, err := repo.GetLead(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Score != resp.Score || stored.Stage != domain.StageNegotiation {
		t.Fatalf("stored lead does not match response: %+v", stored)
	}
}

func TestCreateDefaultsToNewStage(t *testing.T) {
	svc, _, _, _, bus := newService(t)
	defer bus.Wait()

	resp, err := svc.Create(context.Background(), transport.CreateLeadRequest{Name: "Bruno", Phone: "11999990000"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Stage != string(domain.StageNew) || resp.Score != 0 || resp.QualificationLabel != string(domain.LabelCold) {
		t.Fatalf("unexpected defaults: %+v", resp)
	}
	if resp.Neighborhoods == nil {
		t.Fatalf("neighborhoods should serialize as an empty list")
	}
}

func TestCreateRejectsInvertedBudget(t *testing.T) {
	svc, _, _, _, _ := newService(t)

	_, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:      "Bruno",
		Phone:     "11999990000",
		BudgetMin: ptr(int64(900)),
		BudgetMax: ptr(int64(100)),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateRescoresAndPublishesSynchronously(t *testing.T) {
	svc, _, clk, handler, bus := newService(t)
	defer bus.Wait()
	ctx := context.Background()

	created, err := svc.Create(ctx, transport.CreateLeadRequest{Name: "Carla", Phone: "11999990000", Stage: "CONTACTED"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bus.Wait()
	clk.Advance(time.Hour)

	var req transport.UpdateLeadRequest
	if err := json.Unmarshal([]byte(`{"stage":"CLOSED","urgency":"HIGH"}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	updated, err := svc.Update(ctx, created.ID, req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Score != 15 {
		t.Fatalf("expected urgency to add 15, got %d", updated.Score)
	}
	if !updated.UpdatedAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected UpdatedAt to move, got %s", updated.UpdatedAt)
	}

	event, ok := handler.last()
	if !ok {
		t.Fatalf("expected LeadUpdated to be delivered before Update returns")
	}
	if event.Stage != string(domain.StageClosed) || event.PreviousStage != string(domain.StageContacted) {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestUpdateNullClearsBudget(t *testing.T) {
	svc, _, _, _, bus := newService(t)
	defer bus.Wait()
	ctx := context.Background()

	created, err := svc.Create(ctx, transport.CreateLeadRequest{
		Name:         "Davi",
		Phone:        "11999990000",
		BudgetMin:    ptr(int64(100)),
		BudgetMax:    ptr(int64(200)),
		DeadlineDays: ptr(10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var req transport.UpdateLeadRequest
	if err := json.Unmarshal([]byte(`{"budgetMax":null}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	updated, err := svc.Update(ctx, created.ID, req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.BudgetMax != nil {
		t.Fatalf("expected budgetMax cleared")
	}
	if updated.BudgetMin == nil || *updated.BudgetMin != 100 {
		t.Fatalf("absent budgetMin must be left alone")
	}
	if updated.DeadlineDays == nil || *updated.DeadlineDays != 10 {
		t.Fatalf("absent deadlineDays must be left alone")
	}
	if updated.Score != created.Score-12 {
		t.Fatalf("expected budget factor removed, got %d from %d", updated.Score, created.Score)
	}
}

func TestUpdateSubscriberFailureDoesNotFailUpdate(t *testing.T) {
	svc, _, _, handler, bus := newService(t)
	defer bus.Wait()
	ctx := context.Background()

	created, err := svc.Create(ctx, transport.CreateLeadRequest{Name: "Eva", Phone: "11999990000"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bus.Wait()
	handler.mu.Lock()
	handler.err = errors.New("subscriber down")
	handler.mu.Unlock()

	if _, err := svc.Update(ctx, created.ID, transport.UpdateLeadRequest{IsBadLead: ptr(true)}); err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
}

func TestUpdateUnknownLead(t *testing.T) {
	svc, _, _, _, _ := newService(t)

	_, err := svc.Update(context.Background(), uuid.New(), transport.UpdateLeadRequest{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRejectsUnknownStage(t *testing.T) {
	svc, _, _, _, bus := newService(t)
	defer bus.Wait()
	ctx := context.Background()

	created, err := svc.Create(ctx, transport.CreateLeadRequest{Name: "Fabio", Phone: "11999990000"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.Update(ctx, created.ID, transport.UpdateLeadRequest{Stage: ptr("ARCHIVED")})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRescoreRepairsStaleScore(t *testing.T) {
	svc, repo, _, _, _ := newService(t)
	ctx := context.Background()

	lead := domain.Lead{
		ID:                 uuid.New(),
		Name:               "Gil",
		Stage:              domain.StageNegotiation,
		PaymentMethod:      domain.PaymentFinancing,
		Score:              3,
		QualificationLabel: domain.LabelCold,
		CreatedAt:          start,
	}
	if err := repo.SaveLead(ctx, lead); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, err := svc.Rescore(ctx, lead.ID)
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if resp.Score != 42 || resp.Factors["stage"] != 30 || resp.Factors["payment_method"] != 12 {
		t.Fatalf("unexpected score: %+v", resp)
	}
	stored, _ := repo.GetLead(ctx, lead.ID)
	if stored.Score != 42 {
		t.Fatalf("expected rescore to persist, got %d", stored.Score)
	}
}

func TestPrioritiesJoinsLeadData(t *testing.T) {
	svc, repo, _, _, _ := newService(t)
	ctx := context.Background()

	hot := domain.Lead{ID: uuid.New(), Name: "Helena", Stage: domain.StageNegotiation, Score: 85, QualificationLabel: domain.LabelHot, CreatedAt: start, LastContactAt: start}
	cold := domain.Lead{ID: uuid.New(), Name: "Igor", Stage: domain.StageContacted, Score: 10, QualificationLabel: domain.LabelCold, CreatedAt: start.Add(-10 * 24 * time.Hour)}
	for _, l := range []domain.Lead{hot, cold} {
		if err := repo.SaveLead(ctx, l); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	task := domain.NewPendingTask(hot.ID, "novo_lead", "Oi Helena", 0, start.Add(-time.Hour), start.Add(-2*time.Hour))
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("seed task: %v", err)
	}

	resp, err := svc.Priorities(ctx, 0)
	if err != nil {
		t.Fatalf("priorities: %v", err)
	}
	if len(resp.MITs) != 1 || resp.MITs[0].LeadName != "Helena" || !resp.MITs[0].Overdue {
		t.Fatalf("unexpected MITs: %+v", resp.MITs)
	}
	if len(resp.Cooling) != 1 || resp.Cooling[0].ID != cold.ID {
		t.Fatalf("unexpected cooling: %+v", resp.Cooling)
	}
	if resp.StaleThresholdDays != 3 {
		t.Fatalf("expected default stale threshold, got %d", resp.StaleThresholdDays)
	}
}

// interleavingRepo commits a reactivation between the service's read and its
// conditional write, for the first `times` writes.
type interleavingRepo struct {
	*repository.Memory
	at    time.Time
	times int
	calls int
}

func (r *interleavingRepo) UpdateLead(ctx context.Context, lead domain.Lead) error {
	r.calls++
	if r.calls <= r.times {
		if _, err := r.Memory.RecordReactivation(ctx, lead.ID, r.at); err != nil {
			return err
		}
	}
	return r.Memory.UpdateLead(ctx, lead)
}

func seedDormant(t *testing.T, repo *repository.Memory) domain.Lead {
	t.Helper()
	lead := domain.Lead{
		ID:            uuid.New(),
		Name:          "Dora",
		Stage:         domain.StageContacted,
		CreatedAt:     start.Add(-40 * 24 * time.Hour),
		LastContactAt: start.Add(-20 * 24 * time.Hour),
	}
	if err := repo.SaveLead(context.Background(), lead); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return lead
}

func TestUpdateKeepsReactivationCommittedMidway(t *testing.T) {
	mem := repository.NewMemory()
	repo := &interleavingRepo{Memory: mem, at: start, times: 1}
	svc := New(repo, events.Discard{}, clock.NewManual(start), 0, logger.Discard())
	ctx := context.Background()
	lead := seedDormant(t, mem)

	resp, err := svc.Update(ctx, lead.ID, transport.UpdateLeadRequest{Stage: ptr("CLOSED")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected one retry after the version conflict, got %d writes", repo.calls)
	}

	stored, _ := mem.GetLead(ctx, lead.ID)
	if stored.Stage != domain.StageClosed {
		t.Fatalf("expected CLOSED, got %s", stored.Stage)
	}
	if stored.LastReactivationAt == nil || !stored.LastReactivationAt.Equal(start) || stored.ReactivationTouchCount != 1 {
		t.Fatalf("update overwrote the reactivation stamp: %+v", stored)
	}
	if resp.ReactivationTouchCount != 1 || stored.Version != 2 {
		t.Fatalf("unexpected response %+v / version %d", resp, stored.Version)
	}
}

func TestUpdateGivesUpAfterRepeatedConflicts(t *testing.T) {
	mem := repository.NewMemory()
	repo := &interleavingRepo{Memory: mem, at: start, times: maxWriteAttempts}
	svc := New(repo, events.Discard{}, clock.NewManual(start), 0, logger.Discard())
	lead := seedDormant(t, mem)

	_, err := svc.Update(context.Background(), lead.ID, transport.UpdateLeadRequest{Stage: ptr("LOST")})
	if !apperr.Is(err, apperr.KindConflict) || apperr.GetReason(err) != "lead_modified" {
		t.Fatalf("expected lead_modified conflict, got %v", err)
	}
	stored, _ := mem.GetLead(context.Background(), lead.ID)
	if stored.Stage != domain.StageContacted || stored.ReactivationTouchCount != maxWriteAttempts {
		t.Fatalf("unexpected stored lead: %+v", stored)
	}
}

func TestBadLeadFlagCannotBeCleared(t *testing.T) {
	svc, repo, _, _, bus := newService(t)
	defer bus.Wait()
	ctx := context.Background()
	lead := seedDormant(t, repo)

	if _, err := svc.Update(ctx, lead.ID, transport.UpdateLeadRequest{IsBadLead: ptr(true)}); err != nil {
		t.Fatalf("mark bad: %v", err)
	}
	_, err := svc.Update(ctx, lead.ID, transport.UpdateLeadRequest{IsBadLead: ptr(false)})
	if !errors.Is(err, ErrBadLeadTerminal) {
		t.Fatalf("expected bad_lead_terminal, got %v", err)
	}
	if _, err := svc.Update(ctx, lead.ID, transport.UpdateLeadRequest{IsBadLead: ptr(true)}); err != nil {
		t.Fatalf("re-marking a bad lead should be a no-op, got %v", err)
	}

	stored, _ := repo.GetLead(ctx, lead.ID)
	if !stored.IsBadLead {
		t.Fatalf("bad-lead flag was cleared")
	}
}
