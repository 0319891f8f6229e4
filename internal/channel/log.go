package channel

import (
	"context"
	"log/slog"

	"lead_engine_backend/platform/logger"

	"github.com/google/uuid"
)

// Log is a development channel that only writes the message to the log.
type Log struct {
	log *logger.Logger
}

// NewLog creates a log-only channel.
func NewLog(log *logger.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(ctx context.Context, leadID uuid.UUID, templateName, text string) error {
	l.log.WithContext(ctx).Info("message relayed to log channel",
		slog.String("lead_id", leadID.String()),
		slog.String("template", templateName),
		slog.String("text", text),
	)
	return nil
}
