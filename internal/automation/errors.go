// Package automation drives leads through operator-defined message sequences.
//
// Transitions are pure functions in machine.go. Service applies them under a
// per-lead lock and talks to storage and the message channel.
package automation

import "lead_engine_backend/platform/apperr"

var (
	ErrAlreadyActive     = apperr.Conflict("sequence_already_active", "lead already has an active sequence")
	ErrNotRunning        = apperr.Conflict("sequence_not_running", "lead has no running sequence")
	ErrNotPaused         = apperr.Conflict("sequence_not_paused", "lead sequence is not paused")
	ErrNotAutomatable    = apperr.Conflict("lead_not_automatable", "lead is closed, lost or marked bad")
	ErrEmptySequence     = apperr.Validation("sequence has no touches").WithReason("empty_sequence")
	ErrStateInconsistent = apperr.Internal("automation state is inconsistent").WithReason("state_inconsistent")
)

// Cancel reasons carried by SequenceCancelled.
const (
	CancelReasonOperator = "operator"
	CancelReasonGuard    = "lead_not_automatable"
)
