// Package templating substitutes {PLACEHOLDER} tokens in outbound message text.
package templating

import (
	"regexp"
	"strings"

	"lead_engine_backend/internal/leads/domain"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder names understood by LeadVars.
const (
	VarLeadName = "NOME_LEAD"
	VarNeighbor = "BAIRRO"
	VarBudget   = "BUDGET"
	VarIntent   = "INTENCAO"
	VarPayment  = "PAGAMENTO"
	VarFullName = "NOME_COMPLETO"
)

// Fallback texts used when the lead lacks the underlying field.
const (
	FallbackNeighborhood = "sua região"
	FallbackBudget       = "seu orçamento"
	FallbackIntent       = "comprar ou alugar"
	FallbackPayment      = "a definir"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Z_]+)\}`)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Vars maps placeholder names to their substitution text.
type Vars map[string]string

// Render replaces every {NAME} token with vars[NAME]. Unknown names render as "".
// Tokens that do not match [A-Z_]+ are left untouched.
func Render(template string, vars Vars) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		return vars[name]
	})
}

// Placeholders lists the distinct placeholder names used by template, in order of appearance.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// LeadVars builds the standard substitution set for a lead.
func LeadVars(lead domain.Lead) Vars {
	neighborhood, ok := lead.FirstNeighborhood()
	if !ok {
		neighborhood = FallbackNeighborhood
	}

	budget := FallbackBudget
	if lead.BudgetMax != nil && *lead.BudgetMax > 0 {
		budget = FormatBRL(*lead.BudgetMax)
	}

	return Vars{
		VarLeadName: lead.FirstName(),
		VarFullName: strings.Join(strings.Fields(lead.Name), " "),
		VarNeighbor: neighborhood,
		VarBudget:   budget,
		VarIntent:   intentText(lead.Intent),
		VarPayment:  paymentText(lead.PaymentMethod),
	}
}

// RenderForLead is Render with LeadVars.
func RenderForLead(template string, lead domain.Lead) string {
	return Render(template, LeadVars(lead))
}

// FormatBRL formats a whole-real amount the way Brazilian listings do: "R$ 900.000".
func FormatBRL(amount int64) string {
	return printer.Sprintf("R$ %v", number.Decimal(amount))
}

func intentText(intent domain.Intent) string {
	switch intent {
	case domain.IntentBuy:
		return "comprar"
	case domain.IntentRent:
		return "alugar"
	default:
		return FallbackIntent
	}
}

func paymentText(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentCash:
		return "à vista"
	case domain.PaymentFinancing:
		return "financiamento"
	case domain.PaymentConsortium:
		return "consórcio"
	case domain.PaymentExchange:
		return "permuta"
	default:
		return FallbackPayment
	}
}
