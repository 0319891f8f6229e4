package events

import (
	"context"

	platformevents "lead_engine_backend/platform/events"
	"lead_engine_backend/platform/logger"
)

type InMemoryBus = platformevents.InMemoryBus

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// Discard is a Publisher that drops every event. Services default to it when
// no bus is wired.
type Discard struct{}

func (Discard) Publish(_ context.Context, _ Event) {}

func (Discard) PublishSync(_ context.Context, _ Event) error { return nil }
