// Package reactivation selects dormant leads for a re-engagement campaign and
// sends to them one confirmed step at a time.
package reactivation

import (
	"sort"
	"strings"
	"time"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/platform/apperr"
)

// Cooldown is the minimum time between two reactivation messages to the same
// lead. Filters cannot lower it.
const Cooldown = 7 * 24 * time.Hour

// SortBy orders candidates.
type SortBy string

const (
	// SortChance ranks HOT > WARM > COLD, then by score.
	SortChance SortBy = "chance"
	// SortTime puts the longest idle leads first.
	SortTime SortBy = "time"
	// SortBudget puts the highest BudgetMax first; leads without one go last.
	SortBudget SortBy = "budget"
	// SortActivity puts the most recently active leads first.
	SortActivity SortBy = "activity"
)

// ParseSortBy normalizes operator input. Empty selects SortChance.
func ParseSortBy(value string) (SortBy, error) {
	switch s := SortBy(strings.ToLower(strings.TrimSpace(value))); s {
	case "":
		return SortChance, nil
	case SortChance, SortTime, SortBudget, SortActivity:
		return s, nil
	default:
		return "", apperr.Validation("sortBy must be one of chance, time, budget, activity").WithReason("invalid_sort")
	}
}

// Filters narrows the candidate list. PeriodDays 0 means no creation limit.
type Filters struct {
	PeriodDays      int
	MinDaysInactive int
	ExcludeClosed   bool
	ExcludeBadLeads bool
	SortBy          SortBy
}

// Validate rejects negative windows and unknown sort keys.
func (f Filters) Validate() error {
	if f.PeriodDays < 0 || f.MinDaysInactive < 0 {
		return apperr.Validation("periodDays and minDaysInactive must not be negative").WithReason("invalid_filters")
	}
	_, err := ParseSortBy(string(f.SortBy))
	return err
}

// Exclusion reasons returned by Eligibility.
const (
	ReasonOutsidePeriod  = "outside_period"
	ReasonClosed         = "closed"
	ReasonBadLead        = "bad_lead"
	ReasonRecentlyActive = "recently_active"
	ReasonCooldownActive = "lead_cooldown_active"
)

// CooldownActive reports whether lead was reactivated less than Cooldown before now.
func CooldownActive(lead domain.Lead, now time.Time) bool {
	return lead.LastReactivationAt != nil && now.Sub(*lead.LastReactivationAt) < Cooldown
}

// CooldownEndsAt returns when the lead may be reactivated again, if a cool-down applies.
func CooldownEndsAt(lead domain.Lead) (time.Time, bool) {
	if lead.LastReactivationAt == nil {
		return time.Time{}, false
	}
	return lead.LastReactivationAt.Add(Cooldown), true
}

// Eligibility reports whether lead passes the filters at now, with the first failing reason.
func Eligibility(lead domain.Lead, f Filters, now time.Time) (bool, string) {
	if f.PeriodDays > 0 && now.Sub(lead.CreatedAt) > days(f.PeriodDays) {
		return false, ReasonOutsidePeriod
	}
	if f.ExcludeClosed && lead.Stage == domain.StageClosed {
		return false, ReasonClosed
	}
	if f.ExcludeBadLeads && lead.IsBadLead {
		return false, ReasonBadLead
	}
	if now.Sub(lead.LastActivityAt()) < days(f.MinDaysInactive) {
		return false, ReasonRecentlyActive
	}
	if CooldownActive(lead, now) {
		return false, ReasonCooldownActive
	}
	return true, ""
}

// SelectCandidates returns the eligible leads in f.SortBy order, ties broken by ID.
// The input slice is left untouched.
func SelectCandidates(leads []domain.Lead, f Filters, now time.Time) []domain.Lead {
	out := make([]domain.Lead, 0, len(leads))
	for _, lead := range leads {
		if ok, _ := Eligibility(lead, f, now); ok {
			out = append(out, lead.Clone())
		}
	}

	sortBy, err := ParseSortBy(string(f.SortBy))
	if err != nil {
		sortBy = SortChance
	}
	less := comparator(sortBy)
	sort.SliceStable(out, func(i, j int) bool {
		if c := less(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// comparator returns a three-way compare: negative when a sorts first.
func comparator(sortBy SortBy) func(a, b domain.Lead) int {
	switch sortBy {
	case SortTime:
		return func(a, b domain.Lead) int { return a.LastActivityAt().Compare(b.LastActivityAt()) }
	case SortActivity:
		return func(a, b domain.Lead) int { return b.LastActivityAt().Compare(a.LastActivityAt()) }
	case SortBudget:
		return func(a, b domain.Lead) int {
			switch {
			case a.BudgetMax == nil && b.BudgetMax == nil:
				return 0
			case a.BudgetMax == nil:
				return 1
			case b.BudgetMax == nil:
				return -1
			}
			return compareInt64(*b.BudgetMax, *a.BudgetMax)
		}
	default:
		return func(a, b domain.Lead) int {
			if ra, rb := a.QualificationLabel.Rank(), b.QualificationLabel.Rank(); ra != rb {
				return rb - ra
			}
			return b.Score - a.Score
		}
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
