package reactivation

import (
	"context"
	"time"

	"lead_engine_backend/internal/channel"
	"lead_engine_backend/internal/events"
	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/repository"
	"lead_engine_backend/internal/lock"
	"lead_engine_backend/internal/templates"
	"lead_engine_backend/internal/templating"
	"lead_engine_backend/platform/apperr"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/logger"

	"github.com/google/uuid"
)

// FollowUpDelay is how long after a reactivation send the follow-up task is due.
const FollowUpDelay = 24 * time.Hour

const defaultFollowUpText = "Retomar contato após mensagem de reativação"

// FollowUpTemplateID is the built-in catalog entry for follow-up task notes.
const FollowUpTemplateID = "retomar_contato"

// Repository is the storage the reactivation service needs.
type Repository interface {
	repository.LeadStore
	repository.TaskStore
	repository.BatchStore
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	StoreTimeout    time.Duration
	DispatchTimeout time.Duration
	// FollowUpTemplateID renders the follow-up task message. When empty or
	// unknown, a fixed operator note is used.
	FollowUpTemplateID string
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo    Repository
	Catalog templates.Store
	Channel channel.Channel
	Locker  lock.Locker
	Clock   clock.Clock
	Events  events.Publisher
	Log     *logger.Logger
}

// Service selects candidates and performs confirmed reactivation sends.
type Service struct {
	repo    Repository
	catalog templates.Store
	channel channel.Channel
	locker  lock.Locker
	clock   clock.Clock
	events  events.Publisher
	log     *logger.Logger
	opts    Options
}

// New creates a reactivation service.
func New(deps Deps, opts Options) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyedMutex()
	}
	if deps.Events == nil {
		deps.Events = events.Discard{}
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	return &Service{
		repo:    deps.Repo,
		catalog: deps.Catalog,
		channel: deps.Channel,
		locker:  deps.Locker,
		clock:   deps.Clock,
		events:  deps.Events,
		log:     deps.Log,
		opts:    opts,
	}
}

// RenderedMessage is a message ready for operator confirmation.
type RenderedMessage struct {
	LeadID     uuid.UUID
	LeadName   string
	Phone      string
	TemplateID string
	Text       string
}

// Result is the outcome of a confirmed send.
type Result struct {
	Message  RenderedMessage
	Lead     domain.Lead
	FollowUp domain.Task
}

// Now reports the service clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Candidates lists leads eligible for reactivation at the current time.
func (s *Service) Candidates(ctx context.Context, f Filters) ([]domain.Lead, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	filter := repository.LeadFilter{ExcludeBad: f.ExcludeBadLeads}
	if f.ExcludeClosed {
		filter.ExcludeStages = []domain.Stage{domain.StageClosed}
	}
	if f.PeriodDays > 0 {
		after := now.Add(-days(f.PeriodDays))
		filter.CreatedAfter = &after
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	leads, err := s.repo.ListLeads(ctx, filter)
	if err != nil {
		return nil, repository.AppError(err, "lead")
	}
	return SelectCandidates(leads, f, now), nil
}

// Preview renders templateID for a lead without sending.
func (s *Service) Preview(ctx context.Context, leadID uuid.UUID, templateID string) (RenderedMessage, error) {
	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return RenderedMessage{}, err
	}
	return s.render(lead, templateID)
}

// Reactivate sends templateID to a lead, records the reactivation and
// schedules a follow-up task. Closed, lost and bad leads are refused, and the
// cool-down is re-checked under the lead lock.
func (s *Service) Reactivate(ctx context.Context, leadID uuid.UUID, templateID string) (Result, error) {
	return s.reactivate(ctx, leadID, templateID, nil)
}

func (s *Service) reactivate(ctx context.Context, leadID uuid.UUID, templateID string, batchID *uuid.UUID) (Result, error) {
	unlock, err := s.locker.Lock(ctx, lock.LeadKey(leadID.String()))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return Result{}, err
	}
	if !lead.IsAutomatable() {
		return Result{}, ErrNotEligible.WithDetails(map[string]any{"stage": lead.Stage, "isBadLead": lead.IsBadLead})
	}
	if CooldownActive(lead, s.clock.Now()) {
		ends, _ := CooldownEndsAt(lead)
		return Result{}, ErrCooldownActive.WithDetails(map[string]any{"cooldownEndsAt": ends})
	}

	msg, err := s.render(lead, templateID)
	if err != nil {
		return Result{}, err
	}
	followUpText := s.followUpText(lead)

	log := s.log.WithLeadID(leadID.String())
	dctx, cancel := context.WithTimeout(ctx, s.opts.DispatchTimeout)
	err = s.channel.Send(dctx, leadID, templateID, msg.Text)
	cancel()
	if err != nil {
		log.DispatchFailed(leadID.String(), templateID, err)
		return Result{}, channel.Unavailable(err)
	}

	// Only the reactivation columns are written, so an operator update that
	// lands during the send is kept.
	now := s.clock.Now()
	lead, err = s.recordReactivation(ctx, leadID, now)
	if err != nil {
		log.CommitFailed(leadID.String(), "", err)
		return Result{}, err
	}

	followUp := domain.NewPendingTask(lead.ID, domain.SequenceNameReactivation, followUpText, 0, now.Add(FollowUpDelay), now)
	if err := s.createTask(ctx, followUp); err != nil {
		log.CommitFailed(leadID.String(), followUp.ID.String(), err)
		return Result{}, err
	}

	log.Info("lead_reactivated", "template", templateID, "touch_count", lead.ReactivationTouchCount)
	s.events.Publish(ctx, events.LeadReactivated{
		BaseEvent:      events.NewBaseEvent(now),
		LeadID:         lead.ID,
		TemplateID:     templateID,
		FollowUpTaskID: followUp.ID,
		BatchID:        batchID,
		TouchCount:     lead.ReactivationTouchCount,
	})

	return Result{Message: msg, Lead: lead, FollowUp: followUp}, nil
}

func (s *Service) render(lead domain.Lead, templateID string) (RenderedMessage, error) {
	body, err := s.catalog.GetMessageTemplate(templateID)
	if err != nil {
		return RenderedMessage{}, err
	}
	return RenderedMessage{
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		Phone:      lead.Phone,
		TemplateID: templateID,
		Text:       templating.RenderForLead(body, lead),
	}, nil
}

func (s *Service) followUpText(lead domain.Lead) string {
	if s.opts.FollowUpTemplateID == "" {
		return defaultFollowUpText
	}
	body, err := s.catalog.GetMessageTemplate(s.opts.FollowUpTemplateID)
	if err != nil {
		return defaultFollowUpText
	}
	return templating.RenderForLead(body, lead)
}

func (s *Service) getLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	lead, err := s.repo.GetLead(ctx, id)
	return lead, repository.AppError(err, "lead")
}

func (s *Service) recordReactivation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	lead, err := s.repo.RecordReactivation(ctx, id, at)
	return lead, repository.AppError(err, "lead")
}

func (s *Service) createTask(ctx context.Context, task domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return repository.AppError(s.repo.CreateTask(ctx, task), "task")
}

func isConflict(err error) bool {
	return apperr.Is(err, apperr.KindConflict)
}
