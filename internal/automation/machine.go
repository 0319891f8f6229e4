package automation

import (
	"time"

	"lead_engine_backend/internal/leads/domain"
)

// Plan is the set of writes one transition produces. Apply it in order:
// the new task first, then the state that references it.
type Plan struct {
	State     domain.AutomationState
	NewTask   *domain.Task
	Completed bool
}

// Start attaches seq to an idle lead and schedules touch 0.
// message is the rendered body of touch 0.
func Start(current domain.AutomationState, seq domain.Sequence, message string, now time.Time) (Plan, error) {
	if current.IsActive() {
		return Plan{}, ErrAlreadyActive
	}
	if len(seq.Touches) == 0 {
		return Plan{}, ErrEmptySequence
	}

	next := now.Add(seq.Touches[0].Delay())
	task := domain.NewPendingTask(current.LeadID, seq.ID, message, 0, next, now)
	started := now

	state := domain.AutomationState{
		LeadID:            current.LeadID,
		Status:            domain.AutomationRunning,
		ActiveSequenceID:  seq.ID,
		TouchIndex:        0,
		CurrentTaskID:     task.ID,
		NextTouchAt:       &next,
		StartedAt:         &started,
		LastMessageSentAt: current.LastMessageSentAt,
		UpdatedAt:         now,
	}
	return Plan{State: state, NewTask: &task}, nil
}

// NextTouch returns the touch that follows the current one, if any.
func NextTouch(state domain.AutomationState, seq domain.Sequence) (domain.Touch, bool) {
	i := state.TouchIndex + 1
	if i < 0 || i >= len(seq.Touches) {
		return domain.Touch{}, false
	}
	return seq.Touches[i], true
}

// Advance records that the current touch was dispatched at dispatchedAt and
// moves to the next touch, or back to IDLE when the sequence is exhausted.
// nextMessage is the rendered body of the following touch and is ignored on exhaustion.
func Advance(state domain.AutomationState, seq domain.Sequence, nextMessage string, dispatchedAt time.Time) Plan {
	sent := dispatchedAt
	touch, ok := NextTouch(state, seq)
	if !ok {
		idle := domain.IdleState(state.LeadID)
		idle.LastMessageSentAt = &sent
		idle.UpdatedAt = dispatchedAt
		return Plan{State: idle, Completed: true}
	}

	index := state.TouchIndex + 1
	next := scheduleAt(state, seq, touch, dispatchedAt)
	task := domain.NewPendingTask(state.LeadID, seq.ID, nextMessage, index, next, dispatchedAt)

	out := state
	out.TouchIndex = index
	out.CurrentTaskID = task.ID
	out.NextTouchAt = &next
	out.LastMessageSentAt = &sent
	out.UpdatedAt = dispatchedAt
	return Plan{State: out, NewTask: &task}
}

func scheduleAt(state domain.AutomationState, seq domain.Sequence, touch domain.Touch, dispatchedAt time.Time) time.Time {
	if seq.EffectiveAnchor() == domain.AnchorSequenceStart && state.StartedAt != nil {
		return state.StartedAt.Add(touch.Delay())
	}
	return dispatchedAt.Add(touch.Delay())
}

// Cancel clears the state. It is a no-op on an idle lead.
func Cancel(state domain.AutomationState, now time.Time) (domain.AutomationState, bool) {
	if !state.IsActive() {
		return state, false
	}
	idle := domain.IdleState(state.LeadID)
	idle.LastMessageSentAt = state.LastMessageSentAt
	idle.UpdatedAt = now
	return idle, true
}

// Pause stops ticks from dispatching while keeping the sequence attached.
func Pause(state domain.AutomationState, now time.Time) (domain.AutomationState, error) {
	if state.Status != domain.AutomationRunning {
		return state, ErrNotRunning
	}
	state.Status = domain.AutomationPaused
	state.UpdatedAt = now
	return state, nil
}

// Resume puts a paused sequence back on schedule. A touch that fell due while
// paused is scheduled at now.
func Resume(state domain.AutomationState, now time.Time) (domain.AutomationState, error) {
	if state.Status != domain.AutomationPaused {
		return state, ErrNotPaused
	}
	next := now
	if state.NextTouchAt != nil && state.NextTouchAt.After(now) {
		next = *state.NextTouchAt
	}
	state.Status = domain.AutomationRunning
	state.NextTouchAt = &next
	state.UpdatedAt = now
	return state, nil
}
