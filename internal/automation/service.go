package automation

import (
	"context"
	"errors"
	"sync"
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
	"golang.org/x/sync/errgroup"
)

// Repository is the storage the automation service needs.
type Repository interface {
	repository.LeadReader
	repository.TaskStore
	repository.AutomationStateStore
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	Parallelism     int
	StoreTimeout    time.Duration
	DispatchTimeout time.Duration
	DueBatchSize    int
}

const (
	defaultParallelism     = 8
	defaultStoreTimeout    = 5 * time.Second
	defaultDispatchTimeout = 10 * time.Second
	defaultDueBatchSize    = 500
)

func (o Options) withDefaults() Options {
	if o.Parallelism <= 0 {
		o.Parallelism = defaultParallelism
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = defaultStoreTimeout
	}
	if o.DispatchTimeout <= 0 {
		o.DispatchTimeout = defaultDispatchTimeout
	}
	if o.DueBatchSize <= 0 {
		o.DueBatchSize = defaultDueBatchSize
	}
	return o
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

// Service owns the automation state of every lead.
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

// New creates an automation service.
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
	return &Service{
		repo:    deps.Repo,
		catalog: deps.Catalog,
		channel: deps.Channel,
		locker:  deps.Locker,
		clock:   deps.Clock,
		events:  deps.Events,
		log:     deps.Log,
		opts:    opts.withDefaults(),
	}
}

// Outcome is what happened to one lead during an advance.
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeCompleted  Outcome = "completed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeFailed     Outcome = "failed"
)

// RunSummary reports one AdvanceOnSchedule pass.
type RunSummary struct {
	Due        int           `json:"due"`
	Dispatched int           `json:"dispatched"`
	Completed  int           `json:"completed"`
	Skipped    int           `json:"skipped"`
	Cancelled  int           `json:"cancelled"`
	Failed     int           `json:"failed"`
	Took       time.Duration `json:"took"`
}

func (r *RunSummary) record(outcome Outcome) {
	switch outcome {
	case OutcomeDispatched:
		r.Dispatched++
	case OutcomeCompleted:
		r.Dispatched++
		r.Completed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeCancelled:
		r.Cancelled++
	default:
		r.Failed++
	}
}

// GetState returns the automation state of a lead (IDLE when it never ran a sequence).
func (s *Service) GetState(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error) {
	if _, err := s.getLead(ctx, leadID); err != nil {
		return domain.AutomationState{}, err
	}
	return s.getState(ctx, leadID)
}

// StartSequence attaches a sequence to an idle lead and schedules its first touch.
func (s *Service) StartSequence(ctx context.Context, leadID uuid.UUID, sequenceID string) (domain.AutomationState, error) {
	unlock, err := s.locker.Lock(ctx, lock.LeadKey(leadID.String()))
	if err != nil {
		return domain.AutomationState{}, err
	}
	defer unlock()

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return domain.AutomationState{}, err
	}
	if !lead.IsAutomatable() {
		return domain.AutomationState{}, ErrNotAutomatable
	}

	seq, err := s.catalog.GetSequence(sequenceID)
	if err != nil {
		return domain.AutomationState{}, err
	}
	if len(seq.Touches) == 0 {
		return domain.AutomationState{}, ErrEmptySequence
	}

	current, err := s.getState(ctx, leadID)
	if err != nil {
		return domain.AutomationState{}, err
	}
	if current.IsActive() {
		return domain.AutomationState{}, ErrAlreadyActive
	}

	message, err := s.render(seq.Touches[0].TemplateID, lead)
	if err != nil {
		return domain.AutomationState{}, err
	}

	now := s.clock.Now()
	plan, err := Start(current, seq, message, now)
	if err != nil {
		return domain.AutomationState{}, err
	}
	if err := s.createTask(ctx, *plan.NewTask); err != nil {
		return domain.AutomationState{}, err
	}
	if err := s.saveState(ctx, plan.State); err != nil {
		return domain.AutomationState{}, err
	}

	s.events.Publish(ctx, events.SequenceStarted{
		BaseEvent:   events.NewBaseEvent(now),
		LeadID:      leadID,
		SequenceID:  seq.ID,
		FirstTaskID: plan.NewTask.ID,
		NextTouchAt: *plan.State.NextTouchAt,
	})
	return plan.State, nil
}

// AdvanceOnSchedule dispatches every touch due at now. Leads are processed in
// parallel up to Options.Parallelism, each under its own lock. Per-lead
// failures are counted in the summary and never abort the run.
func (s *Service) AdvanceOnSchedule(ctx context.Context, now time.Time) (RunSummary, error) {
	started := time.Now()

	listCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	due, err := s.repo.ListDueStates(listCtx, now, s.opts.DueBatchSize)
	cancel()
	if err != nil {
		return RunSummary{}, repository.AppError(err, "automation_state")
	}

	summary := RunSummary{Due: len(due)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.opts.Parallelism)

	for _, state := range due {
		g.Go(func() error {
			outcome, err := s.advance(ctx, state.LeadID, now, false)
			switch {
			case errors.Is(err, ErrNotRunning):
				// Cancelled or paused after the due list was read.
				outcome = OutcomeSkipped
			case err != nil:
				outcome = OutcomeFailed
			}
			mu.Lock()
			summary.record(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Took = time.Since(started)
	s.log.TickCompleted(summary.Due, summary.Dispatched, summary.Failed, summary.Took)
	return summary, ctx.Err()
}

// AdvanceLead advances one lead if its touch is due at now. A running sequence
// that is not yet due is skipped without error; a lead with no running
// sequence returns ErrNotRunning.
func (s *Service) AdvanceLead(ctx context.Context, leadID uuid.UUID, now time.Time) (Outcome, error) {
	return s.advance(ctx, leadID, now, false)
}

// TriggerManualTouch dispatches the current touch immediately, ignoring NextTouchAt.
func (s *Service) TriggerManualTouch(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error) {
	if _, err := s.advance(ctx, leadID, s.clock.Now(), true); err != nil {
		return domain.AutomationState{}, err
	}
	return s.getState(ctx, leadID)
}

// advance dispatches the current touch of a lead and commits the transition.
//
// The task is marked SENT before the state moves on. When a previous attempt
// got as far as marking the task but failed to save the state, the task is
// found SENT here and the state catches up without a second dispatch.
func (s *Service) advance(ctx context.Context, leadID uuid.UUID, now time.Time, manual bool) (Outcome, error) {
	unlock, err := s.locker.Lock(ctx, lock.LeadKey(leadID.String()))
	if err != nil {
		return OutcomeFailed, err
	}
	defer unlock()

	log := s.log.WithLeadID(leadID.String())

	state, err := s.getState(ctx, leadID)
	if err != nil {
		return OutcomeFailed, err
	}
	if state.Status != domain.AutomationRunning {
		if manual {
			return OutcomeFailed, ErrNotRunning
		}
		return OutcomeSkipped, ErrNotRunning
	}
	if !manual && !state.IsDue(now) {
		return OutcomeSkipped, nil
	}

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return OutcomeFailed, err
	}
	if !lead.IsAutomatable() {
		if _, err := s.cancelLocked(ctx, state, CancelReasonGuard); err != nil {
			return OutcomeFailed, err
		}
		if manual {
			return OutcomeCancelled, ErrNotAutomatable
		}
		return OutcomeCancelled, nil
	}

	seq, err := s.catalog.GetSequence(state.ActiveSequenceID)
	if err != nil {
		return OutcomeFailed, err
	}
	if state.TouchIndex < 0 || state.TouchIndex >= len(seq.Touches) {
		log.Warn("automation state points past the sequence, cancelling",
			"sequence_id", seq.ID, "touch_index", state.TouchIndex)
		if _, err := s.cancelLocked(ctx, state, "sequence_changed"); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeCancelled, nil
	}
	touch := seq.Touches[state.TouchIndex]

	task, err := s.currentTask(ctx, &state, touch, lead, now)
	if err != nil {
		return OutcomeFailed, err
	}

	// Render the follow-up before dispatching so a broken template never
	// leaves a sent touch without a next step.
	var nextMessage string
	if next, ok := NextTouch(state, seq); ok {
		if nextMessage, err = s.render(next.TemplateID, lead); err != nil {
			return OutcomeFailed, err
		}
	}

	var dispatchedAt time.Time
	recovered := task.Status == domain.TaskSent
	if recovered {
		dispatchedAt = now
		if task.SentAt != nil {
			dispatchedAt = *task.SentAt
		}
		log.Info("touch already sent, advancing state", "task_id", task.ID.String())
	} else {
		dctx, cancel := context.WithTimeout(ctx, s.opts.DispatchTimeout)
		err := s.channel.Send(dctx, leadID, touch.TemplateID, task.Message)
		cancel()
		if err != nil {
			log.DispatchFailed(leadID.String(), touch.TemplateID, err)
			return OutcomeFailed, channel.Unavailable(err)
		}

		dispatchedAt = s.clock.Now()
		if err := s.markSent(ctx, task.ID, dispatchedAt); err != nil && !errors.Is(err, domain.ErrTaskAlreadySent) {
			log.CommitFailed(leadID.String(), task.ID.String(), err)
			return OutcomeFailed, repository.AppError(err, "task")
		}
	}

	plan := Advance(state, seq, nextMessage, dispatchedAt)
	if recovered && plan.NewTask != nil {
		if existing, ok := s.pendingTouch(ctx, state.LeadID, seq.ID, plan.NewTask.TouchIndex); ok {
			plan.State.CurrentTaskID = existing.ID
			plan.State.NextTouchAt = &existing.ScheduledFor
			plan.NewTask = nil
		}
	}
	if plan.NewTask != nil {
		if err := s.createTask(ctx, *plan.NewTask); err != nil {
			log.CommitFailed(leadID.String(), task.ID.String(), err)
			return OutcomeFailed, err
		}
	}
	if err := s.saveState(ctx, plan.State); err != nil {
		log.CommitFailed(leadID.String(), task.ID.String(), err)
		return OutcomeFailed, err
	}

	if !recovered {
		log.TouchDispatched(leadID.String(), seq.ID, state.TouchIndex, task.ID.String())
		s.events.Publish(ctx, events.TouchDispatched{
			BaseEvent:  events.NewBaseEvent(dispatchedAt),
			LeadID:     leadID,
			SequenceID: seq.ID,
			TouchIndex: state.TouchIndex,
			TaskID:     task.ID,
			Manual:     manual,
		})
	}

	if plan.Completed {
		s.events.Publish(ctx, events.SequenceCompleted{
			BaseEvent:  events.NewBaseEvent(dispatchedAt),
			LeadID:     leadID,
			SequenceID: seq.ID,
			Touches:    len(seq.Touches),
		})
		return OutcomeCompleted, nil
	}
	return OutcomeDispatched, nil
}

// currentTask loads the task of the current touch. A missing or cancelled task
// is replaced with a fresh pending one and state is pointed at it.
func (s *Service) currentTask(ctx context.Context, state *domain.AutomationState, touch domain.Touch, lead domain.Lead, now time.Time) (domain.Task, error) {
	if state.CurrentTaskID != uuid.Nil {
		task, err := s.getTask(ctx, state.CurrentTaskID)
		if err == nil && task.Status != domain.TaskCancelled {
			return task, nil
		}
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return domain.Task{}, err
		}
	}

	message, err := s.render(touch.TemplateID, lead)
	if err != nil {
		return domain.Task{}, err
	}
	scheduled := now
	if state.NextTouchAt != nil {
		scheduled = *state.NextTouchAt
	}
	task := domain.NewPendingTask(state.LeadID, state.ActiveSequenceID, message, state.TouchIndex, scheduled, now)
	if err := s.createTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	state.CurrentTaskID = task.ID
	return task, nil
}

// pendingTouch finds a pending task left behind by an earlier attempt that
// created the next task but failed to save the state.
func (s *Service) pendingTouch(ctx context.Context, leadID uuid.UUID, sequenceID string, touchIndex int) (domain.Task, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	tasks, err := s.repo.ListTasks(ctx, repository.TaskFilter{LeadIDs: []uuid.UUID{leadID}, Status: domain.TaskPending})
	if err != nil {
		return domain.Task{}, false
	}
	for _, task := range tasks {
		if task.SequenceName == sequenceID && task.TouchIndex == touchIndex {
			return task, true
		}
	}
	return domain.Task{}, false
}

// CancelSequence clears the automation state and cancels pending tasks of the lead.
// Cancelling an idle lead is a no-op.
func (s *Service) CancelSequence(ctx context.Context, leadID uuid.UUID) error {
	unlock, err := s.locker.Lock(ctx, lock.LeadKey(leadID.String()))
	if err != nil {
		return err
	}
	defer unlock()

	state, err := s.getState(ctx, leadID)
	if err != nil {
		return err
	}
	_, err = s.cancelLocked(ctx, state, CancelReasonOperator)
	return err
}

func (s *Service) cancelLocked(ctx context.Context, state domain.AutomationState, reason string) (bool, error) {
	now := s.clock.Now()

	cancelled, err := s.cancelPending(ctx, state.LeadID)
	if err != nil {
		return false, err
	}

	next, changed := Cancel(state, now)
	if changed {
		if err := s.saveState(ctx, next); err != nil {
			return false, err
		}
	}
	if !changed && cancelled == 0 {
		return false, nil
	}

	s.events.Publish(ctx, events.SequenceCancelled{
		BaseEvent:      events.NewBaseEvent(now),
		LeadID:         state.LeadID,
		SequenceID:     state.ActiveSequenceID,
		Reason:         reason,
		CancelledTasks: cancelled,
	})
	return true, nil
}

// PauseSequence stops a running sequence from dispatching until resumed.
func (s *Service) PauseSequence(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error) {
	return s.transition(ctx, leadID, Pause)
}

// ResumeSequence puts a paused sequence back on schedule.
func (s *Service) ResumeSequence(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error) {
	return s.transition(ctx, leadID, Resume)
}

func (s *Service) transition(ctx context.Context, leadID uuid.UUID, fn func(domain.AutomationState, time.Time) (domain.AutomationState, error)) (domain.AutomationState, error) {
	unlock, err := s.locker.Lock(ctx, lock.LeadKey(leadID.String()))
	if err != nil {
		return domain.AutomationState{}, err
	}
	defer unlock()

	state, err := s.getState(ctx, leadID)
	if err != nil {
		return domain.AutomationState{}, err
	}
	next, err := fn(state, s.clock.Now())
	if err != nil {
		return domain.AutomationState{}, err
	}
	if err := s.saveState(ctx, next); err != nil {
		return domain.AutomationState{}, err
	}
	return next, nil
}

// EnforceGuards cancels automation for a lead that became closed, lost or bad.
// It reports whether anything was cancelled.
func (s *Service) EnforceGuards(ctx context.Context, lead domain.Lead) (bool, error) {
	if lead.IsAutomatable() {
		return false, nil
	}

	unlock, err := s.locker.Lock(ctx, lock.LeadKey(lead.ID.String()))
	if err != nil {
		return false, err
	}
	defer unlock()

	state, err := s.getState(ctx, lead.ID)
	if err != nil {
		return false, err
	}
	return s.cancelLocked(ctx, state, CancelReasonGuard)
}

// RegisterHandlers subscribes the guard to lead updates.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadUpdated{}.EventName(), events.HandlerFunc(s.handleLeadUpdated))
}

func (s *Service) handleLeadUpdated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadUpdated)
	if !ok {
		return nil
	}
	lead, err := s.getLead(ctx, e.LeadID)
	if err != nil {
		return err
	}
	cancelled, err := s.EnforceGuards(ctx, lead)
	if err != nil {
		return err
	}
	if cancelled {
		s.log.WithLeadID(e.LeadID.String()).Info("automation cancelled by lead update", "stage", e.Stage)
	}
	return nil
}

func (s *Service) render(templateID string, lead domain.Lead) (string, error) {
	body, err := s.catalog.GetMessageTemplate(templateID)
	if err != nil {
		return "", err
	}
	return templating.RenderForLead(body, lead), nil
}

// =====================================
// Storage calls with bounded timeouts
// =====================================

func (s *Service) getLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	lead, err := s.repo.GetLead(ctx, id)
	return lead, repository.AppError(err, "lead")
}

func (s *Service) getState(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	state, err := s.repo.GetAutomationState(ctx, leadID)
	return state, repository.AppError(err, "automation_state")
}

func (s *Service) saveState(ctx context.Context, state domain.AutomationState) error {
	if reason := state.Consistent(); reason != "" {
		return ErrStateInconsistent.WithDetails(reason)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return repository.AppError(s.repo.SaveAutomationState(ctx, state), "automation_state")
}

func (s *Service) getTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	task, err := s.repo.GetTask(ctx, id)
	return task, repository.AppError(err, "task")
}

func (s *Service) createTask(ctx context.Context, task domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return repository.AppError(s.repo.CreateTask(ctx, task), "task")
}

func (s *Service) markSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.repo.MarkTaskSent(ctx, id, at)
}

func (s *Service) cancelPending(ctx context.Context, leadID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	n, err := s.repo.CancelPendingTasks(ctx, leadID)
	return n, repository.AppError(err, "task")
}
