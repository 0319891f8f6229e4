// Package management handles lead CRUD operations.
// This is a vertically sliced feature package containing service logic
// for creating, reading, updating and rescoring leads.
package management

import (
	"context"
	"errors"
	"strings"
	"time"

	"lead_engine_backend/internal/events"
	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/priority"
	"lead_engine_backend/internal/leads/repository"
	"lead_engine_backend/internal/leads/scoring"
	"lead_engine_backend/internal/leads/transport"
	"lead_engine_backend/platform/apperr"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/logger"
	"lead_engine_backend/platform/phone"
	"lead_engine_backend/platform/sanitize"

	"github.com/google/uuid"
)

// ErrBadLeadTerminal rejects clearing the bad-lead flag. Once set it stays set.
var ErrBadLeadTerminal = apperr.Conflict("bad_lead_terminal", "a lead marked bad cannot be unmarked")

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
	ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error)
}

// Service handles lead management operations (CRUD).
type Service struct {
	repo      Repository
	eventBus  events.Publisher
	clock     clock.Clock
	log       *logger.Logger
	staleDays int
}

// New creates a new lead management service.
func New(repo Repository, eventBus events.Publisher, clk clock.Clock, staleDays int, log *logger.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if staleDays <= 0 {
		staleDays = priority.DefaultStaleThresholdDays
	}
	return &Service{repo: repo, eventBus: eventBus, clock: clk, log: log, staleDays: staleDays}
}

// Create stores a new lead with its score computed.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	now := s.clock.Now()

	stage := domain.StageNew
	if req.Stage != "" {
		parsed, ok := domain.ParseStage(req.Stage)
		if !ok {
			return transport.LeadResponse{}, apperr.Validation("unknown stage").WithReason("invalid_stage")
		}
		stage = parsed
	}

	lead := domain.Lead{
		ID:            uuid.New(),
		Name:          sanitize.Text(req.Name),
		Phone:         phone.NormalizeE164(req.Phone),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Neighborhoods: sanitize.TextSlice(req.Neighborhoods),
		Intent:        domain.ParseIntent(req.Intent),
		PaymentMethod: domain.ParsePaymentMethod(req.PaymentMethod),
		BudgetMin:     req.BudgetMin,
		BudgetMax:     req.BudgetMax,
		Urgency:       domain.ParseUrgency(req.Urgency),
		DeadlineDays:  req.DeadlineDays,
		Stage:         stage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := validateBudget(lead); err != nil {
		return transport.LeadResponse{}, err
	}
	lead = scoring.Apply(lead)

	if err := s.repo.SaveLead(ctx, lead); err != nil {
		return transport.LeadResponse{}, repository.AppError(err, "lead")
	}

	s.eventBus.Publish(ctx, events.LeadUpdated{
		BaseEvent: events.NewBaseEvent(now),
		LeadID:    lead.ID,
		Stage:     string(lead.Stage),
		Score:     lead.Score,
		Label:     string(lead.QualificationLabel),
	})

	return ToLeadResponse(lead), nil
}

// GetByID retrieves a lead by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, repository.AppError(err, "lead")
	}
	return ToLeadResponse(lead), nil
}

// maxWriteAttempts bounds the read-modify-write retries of Update and Rescore.
const maxWriteAttempts = 3

// Update applies a partial update, rescores the lead and publishes LeadUpdated.
// Subscribers run before Update returns, so a lead moved to CLOSED or LOST has
// its automation cancelled by the time the caller sees the response.
//
// The write is conditional on the version read. When another writer (usually a
// reactivation send) commits in between, the update is re-applied to the fresh
// lead.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	var (
		lead          domain.Lead
		previousStage domain.Stage
		now           time.Time
		err           error
	)
	for attempt := 1; ; attempt++ {
		lead, err = s.repo.GetLead(ctx, id)
		if err != nil {
			return transport.LeadResponse{}, repository.AppError(err, "lead")
		}
		previousStage = lead.Stage

		if err := applyUpdate(&lead, req); err != nil {
			return transport.LeadResponse{}, err
		}
		if err := validateBudget(lead); err != nil {
			return transport.LeadResponse{}, err
		}

		now = s.clock.Now()
		lead.UpdatedAt = now
		lead = scoring.Apply(lead)

		err = s.repo.UpdateLead(ctx, lead)
		if err == nil {
			lead.Version++
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt == maxWriteAttempts {
			return transport.LeadResponse{}, repository.AppError(err, "lead")
		}
		s.log.WithLeadID(id.String()).Debug("lead changed during update, retrying", "attempt", attempt)
	}

	err = s.eventBus.PublishSync(ctx, events.LeadUpdated{
		BaseEvent:     events.NewBaseEvent(now),
		LeadID:        lead.ID,
		Stage:         string(lead.Stage),
		PreviousStage: string(previousStage),
		IsBadLead:     lead.IsBadLead,
		Score:         lead.Score,
		Label:         string(lead.QualificationLabel),
	})
	if err != nil {
		s.log.WithLeadID(lead.ID.String()).Error("lead update subscribers failed", "error", err.Error())
	}

	return ToLeadResponse(lead), nil
}

// Rescore recomputes and stores the score of a lead.
func (s *Service) Rescore(ctx context.Context, id uuid.UUID) (transport.ScoreResponse, error) {
	for attempt := 1; ; attempt++ {
		lead, err := s.repo.GetLead(ctx, id)
		if err != nil {
			return transport.ScoreResponse{}, repository.AppError(err, "lead")
		}

		result := scoring.Score(lead)
		if lead.Score != result.Score || lead.QualificationLabel != result.Label {
			lead.Score = result.Score
			lead.QualificationLabel = result.Label
			lead.UpdatedAt = s.clock.Now()
			err = s.repo.UpdateLead(ctx, lead)
		}
		if errors.Is(err, repository.ErrVersionConflict) && attempt < maxWriteAttempts {
			continue
		}
		if err != nil {
			return transport.ScoreResponse{}, repository.AppError(err, "lead")
		}

		return transport.ScoreResponse{
			LeadID:  lead.ID,
			Score:   result.Score,
			Label:   string(result.Label),
			Factors: result.Factors,
			Version: result.Version,
		}, nil
	}
}

// Priorities derives the MIT list and cooling leads from the current snapshot.
// staleDays <= 0 uses the configured threshold.
func (s *Service) Priorities(ctx context.Context, staleDays int) (transport.PrioritiesResponse, error) {
	if staleDays <= 0 {
		staleDays = s.staleDays
	}

	leads, err := s.repo.ListLeads(ctx, repository.LeadFilter{})
	if err != nil {
		return transport.PrioritiesResponse{}, repository.AppError(err, "lead")
	}
	tasks, err := s.repo.ListTasks(ctx, repository.TaskFilter{Status: domain.TaskPending})
	if err != nil {
		return transport.PrioritiesResponse{}, repository.AppError(err, "task")
	}

	now := s.clock.Now()
	result := priority.Derive(leads, tasks, now, staleDays)
	return ToPrioritiesResponse(result, leads, now, staleDays), nil
}

func applyUpdate(lead *domain.Lead, req transport.UpdateLeadRequest) error {
	if req.Name != nil {
		lead.Name = sanitize.Text(*req.Name)
	}
	if req.Phone != nil {
		lead.Phone = phone.NormalizeE164(*req.Phone)
	}
	if req.Email != nil {
		lead.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Neighborhoods != nil {
		lead.Neighborhoods = sanitize.TextSlice(req.Neighborhoods)
	}
	if req.Intent != nil {
		lead.Intent = domain.ParseIntent(*req.Intent)
	}
	if req.PaymentMethod != nil {
		lead.PaymentMethod = domain.ParsePaymentMethod(*req.PaymentMethod)
	}
	req.BudgetMin.Apply(&lead.BudgetMin)
	req.BudgetMax.Apply(&lead.BudgetMax)
	req.DeadlineDays.Apply(&lead.DeadlineDays)
	if req.Urgency != nil {
		lead.Urgency = domain.ParseUrgency(*req.Urgency)
	}
	if req.Stage != nil {
		stage, ok := domain.ParseStage(*req.Stage)
		if !ok {
			return apperr.Validation("unknown stage").WithReason("invalid_stage")
		}
		lead.Stage = stage
	}
	if req.IsBadLead != nil {
		if lead.IsBadLead && !*req.IsBadLead {
			return ErrBadLeadTerminal
		}
		lead.IsBadLead = *req.IsBadLead
	}
	if req.LastContactAt != nil {
		lead.LastContactAt = req.LastContactAt.UTC()
	}
	return nil
}

func validateBudget(lead domain.Lead) error {
	if lead.BudgetMin != nil && lead.BudgetMax != nil && *lead.BudgetMin > *lead.BudgetMax {
		return apperr.Validation("budgetMin must not exceed budgetMax").WithReason("invalid_budget")
	}
	return nil
}
