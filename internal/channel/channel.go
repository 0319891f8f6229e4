// Package channel hands rendered messages to the outbound messaging surface.
// Delivery is fire-and-forget: a nil error means the relay accepted the message,
// not that the lead received it.
package channel

import (
	"context"
	"errors"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/platform/apperr"

	"github.com/google/uuid"
)

// Channel is the Message Channel collaborator.
type Channel interface {
	Send(ctx context.Context, leadID uuid.UUID, templateName, text string) error
}

// Func adapts a function to Channel.
type Func func(ctx context.Context, leadID uuid.UUID, templateName, text string) error

// Send calls f.
func (f Func) Send(ctx context.Context, leadID uuid.UUID, templateName, text string) error {
	return f(ctx, leadID, templateName, text)
}

// LeadLookup resolves the contact details of a lead for channels that address by phone or email.
type LeadLookup interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// ErrNoRecipient is returned when the lead lacks the contact field a channel needs.
var ErrNoRecipient = apperr.Validation("lead has no usable contact for this channel").WithReason("no_recipient")

// Unavailable wraps a relay failure as a retryable error, keeping typed errors untouched.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	return apperr.Unavailable("message channel unavailable", err).WithReason("channel_unavailable")
}
