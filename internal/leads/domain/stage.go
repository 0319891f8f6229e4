package domain

import "strings"

// Stage is a position in the sales pipeline.
type Stage string

const (
	StageNew         Stage = "NEW"
	StageContacted   Stage = "CONTACTED"
	StageVisit       Stage = "VISIT"
	StageProposal    Stage = "PROPOSAL"
	StageNegotiation Stage = "NEGOTIATION"
	StageClosed      Stage = "CLOSED"
	StageLost        Stage = "LOST"
)

var knownStages = map[Stage]struct{}{
	StageNew:         {},
	StageContacted:   {},
	StageVisit:       {},
	StageProposal:    {},
	StageNegotiation: {},
	StageClosed:      {},
	StageLost:        {},
}

// terminalStages are stages where the funnel is complete for the lead.
var terminalStages = map[Stage]bool{
	StageClosed: true,
	StageLost:   true,
}

// ParseStage returns the stage for value, case-insensitively.
func ParseStage(value string) (Stage, bool) {
	s := Stage(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := knownStages[s]
	return s, ok
}

// IsTerminalStage returns true if the stage alone is terminal.
func IsTerminalStage(stage Stage) bool {
	return terminalStages[stage]
}

// IsTerminal returns true if the lead is terminal based on EITHER its stage
// or the bad-lead flag. A terminal lead must not receive automated outreach.
func IsTerminal(stage Stage, isBadLead bool) bool {
	return isBadLead || terminalStages[stage]
}
