package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_engine_backend/internal/automation"
	"lead_engine_backend/platform/apperr"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Advancer advances a single lead whose touch is due.
type Advancer interface {
	AdvanceLead(ctx context.Context, leadID uuid.UUID, now time.Time) (automation.Outcome, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	advancer Advancer
	clock    clock.Clock
	log      *logger.Logger
	// retries reports how often the current task was retried and its limit.
	retries func(ctx context.Context) (retried, limit int)
}

func NewWorker(cfg config.SchedulerConfig, advancer Advancer, clk clock.Clock, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(advancer, clk, log)
	w.server = server
	return w, nil
}

func newWorker(advancer Advancer, clk clock.Clock, log *logger.Logger) *Worker {
	if clk == nil {
		clk = clock.Real{}
	}
	w := &Worker{
		mux:      asynq.NewServeMux(),
		advancer: advancer,
		clock:    clk,
		log:      log,
		retries:  asynqRetries,
	}
	w.mux.HandleFunc(TaskTouchDue, w.handleTouchDue)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleTouchDue retries only failures that may heal on their own: storage
// and channel outages. Anything else is logged and dropped. The last retry
// completes the task so its id can be reused once the retention window ends.
func (w *Worker) handleTouchDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTouchDuePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	outcome, err := w.advancer.AdvanceLead(ctx, leadID, w.clock.Now())
	if err == nil {
		w.log.WithLeadID(leadID.String()).Debug("touch task processed", "outcome", string(outcome))
		return nil
	}
	if errors.Is(err, automation.ErrNotRunning) {
		w.log.WithLeadID(leadID.String()).Debug("touch task skipped, sequence no longer running")
		return nil
	}
	if apperr.IsRetryable(err) {
		if w.finalAttempt(ctx) {
			// Completing instead of archiving lets the retention window lapse,
			// after which the dispatcher can enqueue this due instant again.
			w.log.WithLeadID(leadID.String()).Warn("touch task retries exhausted, leaving touch pending", "reason", apperr.GetReason(err))
			return nil
		}
		return err
	}

	w.log.WithLeadID(leadID.String()).Warn("touch task dropped", "outcome", string(outcome), "reason", apperr.GetReason(err))
	return nil
}

func (w *Worker) finalAttempt(ctx context.Context) bool {
	retried, limit := w.retries(ctx)
	return limit > 0 && retried >= limit
}

func asynqRetries(ctx context.Context) (int, int) {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return 0, 0
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return 0, 0
	}
	return retried, limit
}
