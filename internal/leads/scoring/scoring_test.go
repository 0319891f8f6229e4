package scoring

import (
	"reflect"
	"testing"

	"lead_engine_backend/internal/leads/domain"
)

func intPtr(v int) *int     { return &v }
func i64Ptr(v int64) *int64 { return &v }

func TestScoreHotNegotiatingCashBuyer(t *testing.T) {
	lead := domain.Lead{
		Urgency:       domain.UrgencyHigh,
		PaymentMethod: domain.PaymentCash,
		BudgetMin:     i64Ptr(500000),
		BudgetMax:     i64Ptr(900000),
		Stage:         domain.StageNegotiation,
	}

	got := Score(lead)
	if got.Score != 77 {
		t.Fatalf("expected score 77, got %d", got.Score)
	}
	if got.Label != domain.LabelHot {
		t.Fatalf("expected HOT, got %s", got.Label)
	}
	want := map[string]int{
		FactorUrgency:     15,
		FactorPayment:     20,
		FactorBudgetRange: 12,
		FactorStage:       30,
	}
	if !reflect.DeepEqual(got.Factors, want) {
		t.Fatalf("unexpected factors: %#v", got.Factors)
	}
}

func TestScoreEmptyLeadIsColdZero(t *testing.T) {
	got := Score(domain.Lead{})
	if got.Score != 0 || got.Label != domain.LabelCold || len(got.Factors) != 0 {
		t.Fatalf("unexpected result for empty lead: %+v", got)
	}
}

func TestLabelBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  domain.Label
	}{
		{0, domain.LabelCold},
		{39, domain.LabelCold},
		{40, domain.LabelWarm},
		{69, domain.LabelWarm},
		{70, domain.LabelHot},
		{100, domain.LabelHot},
	}
	for _, tc := range cases {
		if got := LabelFor(tc.score); got != tc.want {
			t.Fatalf("LabelFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

// Boundary scores built from real rule combinations, not just LabelFor.
func TestScoreBoundaryCombinations(t *testing.T) {
	cases := []struct {
		name string
		lead domain.Lead
		want int
		lbl  domain.Label
	}{
		{
			// 15 (8-30 days) + 12 (financing) + 12 (budget)
			name: "39 cold",
			lead: domain.Lead{DeadlineDays: intPtr(20), PaymentMethod: domain.PaymentFinancing, BudgetMin: i64Ptr(1), BudgetMax: i64Ptr(2)},
			want: 39, lbl: domain.LabelCold,
		},
		{
			// 8 (31-90 days) + 20 (cash) + 12 (budget)
			name: "40 warm",
			lead: domain.Lead{DeadlineDays: intPtr(60), PaymentMethod: domain.PaymentCash, BudgetMin: i64Ptr(1), BudgetMax: i64Ptr(2)},
			want: 40, lbl: domain.LabelWarm,
		},
		{
			// 15 (8-30 days) + 12 (financing) + 12 (budget) + 30 (negotiation)
			name: "69 warm",
			lead: domain.Lead{DeadlineDays: intPtr(8), PaymentMethod: domain.PaymentFinancing, BudgetMin: i64Ptr(1), BudgetMax: i64Ptr(2), Stage: domain.StageNegotiation},
			want: 69, lbl: domain.LabelWarm,
		},
		{
			// 8 (31-90 days) + 20 (cash) + 12 (budget) + 30 (negotiation)
			name: "70 hot",
			lead: domain.Lead{DeadlineDays: intPtr(31), PaymentMethod: domain.PaymentCash, BudgetMin: i64Ptr(1), BudgetMax: i64Ptr(2), Stage: domain.StageNegotiation},
			want: 70, lbl: domain.LabelHot,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.lead)
			if got.Score != tc.want || got.Label != tc.lbl {
				t.Fatalf("expected %d/%s, got %d/%s", tc.want, tc.lbl, got.Score, got.Label)
			}
		})
	}
}

func TestScoreDeadlineBuckets(t *testing.T) {
	cases := []struct {
		days *int
		want int
	}{
		{nil, 0},
		{intPtr(-3), 25},
		{intPtr(0), 25},
		{intPtr(7), 25},
		{intPtr(8), 15},
		{intPtr(30), 15},
		{intPtr(31), 8},
		{intPtr(90), 8},
		{intPtr(91), 2},
	}
	for _, tc := range cases {
		if got := Score(domain.Lead{DeadlineDays: tc.days}).Score; got != tc.want {
			t.Fatalf("deadline %v: expected %d, got %d", tc.days, tc.want, got)
		}
	}
}

func TestScoreIgnoresHalfBudgetAndOtherPayments(t *testing.T) {
	lead := domain.Lead{BudgetMax: i64Ptr(100), PaymentMethod: domain.PaymentExchange, Urgency: domain.UrgencyMedium}
	if got := Score(lead).Score; got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestScoreClampsToMaximum(t *testing.T) {
	lead := domain.Lead{
		DeadlineDays:  intPtr(1),
		PaymentMethod: domain.PaymentCash,
		BudgetMin:     i64Ptr(1),
		BudgetMax:     i64Ptr(2),
		Urgency:       domain.UrgencyHigh,
		Stage:         domain.StageNegotiation,
	}
	// 25 + 20 + 12 + 15 + 30 = 102
	if got := Score(lead).Score; got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	lead := domain.Lead{
		DeadlineDays:  intPtr(14),
		PaymentMethod: domain.PaymentFinancing,
		Urgency:       domain.UrgencyHigh,
		Stage:         domain.StageProposal,
	}
	first := Score(lead)
	for i := 0; i < 100; i++ {
		if got := Score(lead); !reflect.DeepEqual(got, first) {
			t.Fatalf("iteration %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	lead := domain.Lead{Urgency: domain.UrgencyHigh, Stage: domain.StageNegotiation, Score: 3, QualificationLabel: domain.LabelCold}
	out := Apply(lead)

	if out.Score != 45 || out.QualificationLabel != domain.LabelWarm {
		t.Fatalf("unexpected applied score %d/%s", out.Score, out.QualificationLabel)
	}
	if lead.Score != 3 || lead.QualificationLabel != domain.LabelCold {
		t.Fatalf("Apply mutated its input")
	}
}
