// Package priority derives the operator's most important tasks and the leads
// that are going cold from point-in-time snapshots.
package priority

import (
	"sort"
	"time"

	"lead_engine_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// DefaultStaleThresholdDays is how long a lead may sit without contact before it counts as cooling.
const DefaultStaleThresholdDays = 3

// Result holds the derived lists. Both are freshly allocated copies.
type Result struct {
	MITs    []domain.Task
	Cooling []domain.Lead
}

// Derive computes MITs and cooling leads. It never mutates its inputs.
//
// MITs are pending tasks whose lead is HOT or that are overdue, ordered
// HOT-and-overdue first, then by lead score descending, then by ScheduledFor.
// Cooling leads have no pending task, are still automatable and have been
// idle for at least staleDays; they are ordered by score descending.
func Derive(leads []domain.Lead, tasks []domain.Task, now time.Time, staleDays int) Result {
	if staleDays <= 0 {
		staleDays = DefaultStaleThresholdDays
	}

	byID := make(map[uuid.UUID]domain.Lead, len(leads))
	for _, lead := range leads {
		byID[lead.ID] = lead
	}

	type candidate struct {
		task       domain.Task
		score      int
		hotOverdue bool
	}

	pending := make(map[uuid.UUID]bool)
	mits := make([]candidate, 0)
	for _, task := range tasks {
		if !task.IsPending() {
			continue
		}
		pending[task.LeadID] = true

		lead, known := byID[task.LeadID]
		hot := known && lead.QualificationLabel == domain.LabelHot
		overdue := task.ScheduledFor.Before(now)
		if !hot && !overdue {
			continue
		}
		mits = append(mits, candidate{task: task, score: lead.Score, hotOverdue: hot && overdue})
	}

	sort.SliceStable(mits, func(i, j int) bool {
		a, b := mits[i], mits[j]
		if a.hotOverdue != b.hotOverdue {
			return a.hotOverdue
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.task.ScheduledFor.Equal(b.task.ScheduledFor) {
			return a.task.ScheduledFor.Before(b.task.ScheduledFor)
		}
		return a.task.ID.String() < b.task.ID.String()
	})

	result := Result{
		MITs:    make([]domain.Task, len(mits)),
		Cooling: make([]domain.Lead, 0),
	}
	for i, c := range mits {
		result.MITs[i] = c.task
	}

	threshold := time.Duration(staleDays) * 24 * time.Hour
	for _, lead := range leads {
		if pending[lead.ID] || !lead.IsAutomatable() {
			continue
		}
		if now.Sub(lead.LastActivityAt()) < threshold {
			continue
		}
		result.Cooling = append(result.Cooling, lead.Clone())
	}
	sort.SliceStable(result.Cooling, func(i, j int) bool {
		if result.Cooling[i].Score != result.Cooling[j].Score {
			return result.Cooling[i].Score > result.Cooling[j].Score
		}
		return result.Cooling[i].ID.String() < result.Cooling[j].ID.String()
	})

	return result
}
