package reactivation

import "lead_engine_backend/platform/apperr"

// ReasonNotAutomatable rejects sends to closed, lost or bad leads.
const ReasonNotAutomatable = "lead_not_automatable"

var (
	ErrCooldownActive = apperr.Conflict(ReasonCooldownActive, "lead was reactivated less than 7 days ago")
	ErrNotEligible    = apperr.Conflict(ReasonNotAutomatable, "lead is closed, lost or marked bad")
	ErrBatchClosed    = apperr.Conflict("batch_closed", "batch no longer accepts confirmations")
	ErrEmptyBatch     = apperr.Validation("batch needs at least one lead").WithReason("empty_batch")
	ErrInvalidAction  = apperr.Validation("action must be send, skip or abort").WithReason("invalid_action")
	ErrIndexRange     = apperr.Validation("index is outside the batch").WithReason("index_out_of_range")
)
