package scheduler

import (
	"context"
	"time"

	"lead_engine_backend/internal/automation"
	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/logger"
)

const (
	defaultTickInterval = time.Minute
	defaultDueBatchSize = 500
)

// DueLister finds sequence states whose next touch is due.
type DueLister interface {
	ListDueStates(ctx context.Context, now time.Time, limit int) ([]domain.AutomationState, error)
}

// Runner advances every due lead in-process.
type Runner interface {
	AdvanceOnSchedule(ctx context.Context, now time.Time) (automation.RunSummary, error)
}

// SequenceDispatcher claims due states on each tick and enqueues one
// touch-due task per lead for the asynq worker.
type SequenceDispatcher struct {
	states   DueLister
	enqueuer TouchEnqueuer
	clock    clock.Clock
	log      *logger.Logger
	interval time.Duration
}

func NewSequenceDispatcher(states DueLister, enqueuer TouchEnqueuer, clk clock.Clock, interval time.Duration, log *logger.Logger) *SequenceDispatcher {
	if clk == nil {
		clk = clock.Real{}
	}
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &SequenceDispatcher{states: states, enqueuer: enqueuer, clock: clk, log: log, interval: interval}
}

func (d *SequenceDispatcher) Run(ctx context.Context) {
	if d == nil || d.states == nil || d.enqueuer == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.dispatch(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatch returns how many tasks were handed to the queue.
func (d *SequenceDispatcher) dispatch(ctx context.Context) int {
	due, err := d.states.ListDueStates(ctx, d.clock.Now(), defaultDueBatchSize)
	if err != nil {
		d.log.Warn("due state claim failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, state := range due {
		if state.NextTouchAt == nil {
			continue
		}
		if err := d.enqueuer.EnqueueTouchDue(ctx, state.LeadID, *state.NextTouchAt); err != nil {
			d.log.WithLeadID(state.LeadID.String()).Warn("touch enqueue failed", "error", err)
			continue
		}
		enqueued++
	}
	return enqueued
}

// SequenceTicker advances due leads in-process on a fixed interval. It is the
// single-node mode used when Redis is not configured.
type SequenceTicker struct {
	runner   Runner
	clock    clock.Clock
	log      *logger.Logger
	interval time.Duration
}

func NewSequenceTicker(runner Runner, clk clock.Clock, interval time.Duration, log *logger.Logger) *SequenceTicker {
	if clk == nil {
		clk = clock.Real{}
	}
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &SequenceTicker{runner: runner, clock: clk, log: log, interval: interval}
}

func (t *SequenceTicker) Run(ctx context.Context) {
	if t == nil || t.runner == nil {
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if _, err := t.runner.AdvanceOnSchedule(ctx, t.clock.Now()); err != nil && ctx.Err() == nil {
			t.log.Warn("sequence tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
