package events

import (
	"context"
	"log/slog"

	"lead_engine_backend/platform/logger"
)

// AuditNames lists every event the audit subscriber records.
var AuditNames = []string{
	SequenceStarted{}.EventName(),
	TouchDispatched{}.EventName(),
	SequenceCompleted{}.EventName(),
	SequenceCancelled{}.EventName(),
	LeadUpdated{}.EventName(),
	LeadReactivated{}.EventName(),
}

// Audit writes one structured log line per lifecycle event.
type Audit struct {
	log *logger.Logger
}

// NewAudit creates an audit subscriber.
func NewAudit(log *logger.Logger) *Audit {
	return &Audit{log: log}
}

// Register subscribes the audit handler to every lifecycle event.
func (a *Audit) Register(bus Bus) {
	for _, name := range AuditNames {
		bus.Subscribe(name, a)
	}
}

func (a *Audit) Handle(ctx context.Context, event Event) error {
	attrs := []any{
		slog.String("event", event.EventName()),
		slog.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case SequenceStarted:
		attrs = append(attrs, slog.String("lead_id", e.LeadID.String()), slog.String("sequence_id", e.SequenceID))
	case TouchDispatched:
		attrs = append(attrs,
			slog.String("lead_id", e.LeadID.String()),
			slog.String("sequence_id", e.SequenceID),
			slog.Int("touch_index", e.TouchIndex),
			slog.Bool("manual", e.Manual),
		)
	case SequenceCompleted:
		attrs = append(attrs, slog.String("lead_id", e.LeadID.String()), slog.String("sequence_id", e.SequenceID))
	case SequenceCancelled:
		attrs = append(attrs,
			slog.String("lead_id", e.LeadID.String()),
			slog.String("sequence_id", e.SequenceID),
			slog.String("reason", e.Reason),
			slog.Int("cancelled_tasks", e.CancelledTasks),
		)
	case LeadUpdated:
		attrs = append(attrs,
			slog.String("lead_id", e.LeadID.String()),
			slog.String("stage", e.Stage),
			slog.String("previous_stage", e.PreviousStage),
			slog.Int("score", e.Score),
		)
	case LeadReactivated:
		attrs = append(attrs,
			slog.String("lead_id", e.LeadID.String()),
			slog.String("template", e.TemplateID),
			slog.Int("touch_count", e.TouchCount),
		)
	}

	a.log.WithContext(ctx).Info("audit", attrs...)
	return nil
}
