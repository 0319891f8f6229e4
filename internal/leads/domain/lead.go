// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Intent is what the lead wants to do with a property.
type Intent string

const (
	IntentUnset Intent = ""
	IntentBuy   Intent = "BUY"
	IntentRent  Intent = "RENT"
)

// PaymentMethod is how the lead intends to pay.
type PaymentMethod string

const (
	PaymentUnset      PaymentMethod = ""
	PaymentCash       PaymentMethod = "CASH"
	PaymentFinancing  PaymentMethod = "FINANCING"
	PaymentConsortium PaymentMethod = "CONSORTIUM"
	PaymentExchange   PaymentMethod = "EXCHANGE"
	PaymentUnknown    PaymentMethod = "UNKNOWN"
)

// Urgency is the operator's read on how soon the lead wants to move.
type Urgency string

const (
	UrgencyUnset  Urgency = ""
	UrgencyHigh   Urgency = "HIGH"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyLow    Urgency = "LOW"
)

// Label is the temperature derived from the score.
type Label string

const (
	LabelHot  Label = "HOT"
	LabelWarm Label = "WARM"
	LabelCold Label = "COLD"
)

// Rank orders labels for sorting: HOT > WARM > COLD.
func (l Label) Rank() int {
	switch l {
	case LabelHot:
		return 3
	case LabelWarm:
		return 2
	case LabelCold:
		return 1
	default:
		return 0
	}
}

// Lead is a prospective client tracked through the sales funnel.
//
// Score and QualificationLabel are derived; only scoring.Apply sets them.
type Lead struct {
	ID            uuid.UUID
	Name          string
	Phone         string
	Email         string
	Neighborhoods []string

	Intent        Intent
	PaymentMethod PaymentMethod
	BudgetMin     *int64
	BudgetMax     *int64
	Urgency       Urgency
	DeadlineDays  *int
	Stage         Stage

	Score              int
	QualificationLabel Label

	CreatedAt              time.Time
	LastContactAt          time.Time
	LastReactivationAt     *time.Time
	ReactivationTouchCount int
	IsBadLead              bool
	UpdatedAt              time.Time

	// Version counts committed writes. UpdateLead only succeeds against the
	// version it read.
	Version int
}

// FirstName returns the first whitespace-separated token of Name.
func (l Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// FirstNeighborhood returns the first non-blank neighborhood, if any.
func (l Lead) FirstNeighborhood() (string, bool) {
	for _, n := range l.Neighborhoods {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			return trimmed, true
		}
	}
	return "", false
}

// LastActivityAt is the last contact, falling back to creation for never-contacted leads.
func (l Lead) LastActivityAt() time.Time {
	if l.LastContactAt.IsZero() {
		return l.CreatedAt
	}
	return l.LastContactAt
}

// IsAutomatable reports whether sequences and reactivation may touch this lead.
func (l Lead) IsAutomatable() bool {
	return !IsTerminal(l.Stage, l.IsBadLead)
}

// Clone returns a deep copy so snapshot consumers can never alias caller state.
func (l Lead) Clone() Lead {
	out := l
	if l.Neighborhoods != nil {
		out.Neighborhoods = append([]string(nil), l.Neighborhoods...)
	}
	out.BudgetMin = cloneInt64(l.BudgetMin)
	out.BudgetMax = cloneInt64(l.BudgetMax)
	if l.DeadlineDays != nil {
		v := *l.DeadlineDays
		out.DeadlineDays = &v
	}
	if l.LastReactivationAt != nil {
		v := *l.LastReactivationAt
		out.LastReactivationAt = &v
	}
	return out
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ParseIntent normalizes operator input. Unknown values map to IntentUnset.
func ParseIntent(value string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(value))) {
	case IntentBuy:
		return IntentBuy
	case IntentRent:
		return IntentRent
	default:
		return IntentUnset
	}
}

// ParsePaymentMethod normalizes operator input. Unknown values map to PaymentUnknown.
func ParsePaymentMethod(value string) PaymentMethod {
	v := PaymentMethod(strings.ToUpper(strings.TrimSpace(value)))
	switch v {
	case PaymentUnset, PaymentCash, PaymentFinancing, PaymentConsortium, PaymentExchange:
		return v
	default:
		return PaymentUnknown
	}
}

// ParseUrgency normalizes operator input. Unknown values map to UrgencyUnset.
func ParseUrgency(value string) Urgency {
	v := Urgency(strings.ToUpper(strings.TrimSpace(value)))
	switch v {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
		return v
	default:
		return UrgencyUnset
	}
}
