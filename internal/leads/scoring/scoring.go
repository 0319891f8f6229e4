// Package scoring computes the qualification score and temperature label of a lead.
// Every function here is pure and safe for concurrent use.
package scoring

import (
	"encoding/json"

	"lead_engine_backend/internal/leads/domain"
)

const (
	// Version tracks the scoring model for debugging and analysis.
	// Bump this when changing scoring logic.
	Version = "2024-br-v1"

	// HotThreshold is the lowest HOT score.
	HotThreshold = 70
	// WarmThreshold is the lowest WARM score.
	WarmThreshold = 40

	minScore = 0
	maxScore = 100
)

// Factor keys, one per independent rule.
const (
	FactorDeadline    = "deadline"
	FactorPayment     = "payment_method"
	FactorBudgetRange = "budget_range"
	FactorUrgency     = "urgency"
	FactorStage       = "stage"
)

// Result is the outcome of scoring one lead.
type Result struct {
	Score   int
	Label   domain.Label
	Factors map[string]int
	Version string
}

// FactorsJSON renders the non-zero contributions for storage or display.
func (r Result) FactorsJSON() []byte {
	out, err := json.Marshal(r.Factors)
	if err != nil {
		return nil
	}
	return out
}

// Score computes the additive qualification score of lead.
// Missing inputs contribute zero; scoring never fails.
func Score(lead domain.Lead) Result {
	factors := map[string]int{}
	total := 0

	total += addFactor(factors, FactorDeadline, scoreDeadline(lead.DeadlineDays))
	total += addFactor(factors, FactorPayment, scorePayment(lead.PaymentMethod))
	total += addFactor(factors, FactorBudgetRange, scoreBudget(lead.BudgetMin, lead.BudgetMax))
	total += addFactor(factors, FactorUrgency, scoreUrgency(lead.Urgency))
	total += addFactor(factors, FactorStage, scoreStage(lead.Stage))

	score := clampScore(total)
	return Result{
		Score:   score,
		Label:   LabelFor(score),
		Factors: factors,
		Version: Version,
	}
}

// LabelFor maps a score to its temperature label.
func LabelFor(score int) domain.Label {
	switch {
	case score >= HotThreshold:
		return domain.LabelHot
	case score >= WarmThreshold:
		return domain.LabelWarm
	default:
		return domain.LabelCold
	}
}

// Apply returns a copy of lead with Score and QualificationLabel recomputed.
func Apply(lead domain.Lead) domain.Lead {
	result := Score(lead)
	out := lead.Clone()
	out.Score = result.Score
	out.QualificationLabel = result.Label
	return out
}

func addFactor(factors map[string]int, key string, value int) int {
	if value == 0 {
		return 0
	}
	factors[key] = value
	return value
}

// scoreDeadline rewards leads that want to close soon. An overdue deadline
// (negative days) counts as the nearest bucket.
func scoreDeadline(days *int) int {
	if days == nil {
		return 0
	}
	switch d := *days; {
	case d <= 7:
		return 25
	case d <= 30:
		return 15
	case d <= 90:
		return 8
	default:
		return 2
	}
}

func scorePayment(method domain.PaymentMethod) int {
	switch method {
	case domain.PaymentCash:
		return 20
	case domain.PaymentFinancing:
		return 12
	default:
		return 0
	}
}

func scoreBudget(min, max *int64) int {
	if min == nil || max == nil {
		return 0
	}
	return 12
}

func scoreUrgency(urgency domain.Urgency) int {
	if urgency == domain.UrgencyHigh {
		return 15
	}
	return 0
}

func scoreStage(stage domain.Stage) int {
	if stage == domain.StageNegotiation {
		return 30
	}
	return 0
}

func clampScore(value int) int {
	if value < minScore {
		return minScore
	}
	if value > maxScore {
		return maxScore
	}
	return value
}
