package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	Name          string   `json:"name" validate:"required,min=1,max=200"`
	Phone         string   `json:"phone" validate:"required,min=5,max=30"`
	Email         string   `json:"email,omitempty" validate:"omitempty,email"`
	Neighborhoods []string `json:"neighborhoods,omitempty" validate:"omitempty,max=20,dive,max=100"`
	Intent        string   `json:"intent,omitempty" validate:"omitempty,oneof=BUY RENT buy rent"`
	PaymentMethod string   `json:"paymentMethod,omitempty" validate:"omitempty,max=30"`
	BudgetMin     *int64   `json:"budgetMin,omitempty" validate:"omitempty,min=0"`
	BudgetMax     *int64   `json:"budgetMax,omitempty" validate:"omitempty,min=0"`
	Urgency       string   `json:"urgency,omitempty" validate:"omitempty,oneof=HIGH MEDIUM LOW high medium low"`
	DeadlineDays  *int     `json:"deadlineDays,omitempty"`
	Stage         string   `json:"stage,omitempty" validate:"omitempty,stage"`
}

type UpdateLeadRequest struct {
	Name          *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone         *string         `json:"phone,omitempty" validate:"omitempty,min=5,max=30"`
	Email         *string         `json:"email,omitempty" validate:"omitempty,email"`
	Neighborhoods []string        `json:"neighborhoods,omitempty" validate:"omitempty,max=20,dive,max=100"`
	Intent        *string         `json:"intent,omitempty" validate:"omitempty,oneof=BUY RENT buy rent"`
	PaymentMethod *string         `json:"paymentMethod,omitempty" validate:"omitempty,max=30"`
	BudgetMin     Optional[int64] `json:"budgetMin,omitempty" validate:"-"`
	BudgetMax     Optional[int64] `json:"budgetMax,omitempty" validate:"-"`
	Urgency       *string         `json:"urgency,omitempty" validate:"omitempty,oneof=HIGH MEDIUM LOW high medium low"`
	DeadlineDays  Optional[int]   `json:"deadlineDays,omitempty" validate:"-"`
	Stage         *string         `json:"stage,omitempty" validate:"omitempty,stage"`
	IsBadLead     *bool           `json:"isBadLead,omitempty"`
	LastContactAt *time.Time      `json:"lastContactAt,omitempty"`
}

type StartSequenceRequest struct {
	SequenceID string `json:"sequenceId" validate:"required,max=100"`
}

type CandidatesRequest struct {
	PeriodDays      int    `json:"periodDays" form:"periodDays" validate:"min=0,max=3650"`
	MinDaysInactive int    `json:"minDaysInactive" form:"minDaysInactive" validate:"min=0,max=3650"`
	ExcludeClosed   bool   `json:"excludeClosed" form:"excludeClosed"`
	ExcludeBadLeads bool   `json:"excludeBadLeads" form:"excludeBadLeads"`
	SortBy          string `json:"sortBy,omitempty" form:"sortBy" validate:"omitempty,sortby"`
}

type PreviewRequest struct {
	LeadID     uuid.UUID `json:"leadId" validate:"required"`
	TemplateID string    `json:"templateId" validate:"required,max=100"`
}

type ReactivateRequest struct {
	TemplateID string `json:"templateId" validate:"required,max=100"`
}

type StartBatchRequest struct {
	LeadIDs    []uuid.UUID `json:"leadIds" validate:"required,min=1,max=500"`
	TemplateID string      `json:"templateId" validate:"required,max=100"`
}

type ConfirmBatchRequest struct {
	Action string `json:"action" validate:"required,oneof=send skip abort"`
}

// Response DTOs
type LeadResponse struct {
	ID                     uuid.UUID  `json:"id"`
	Name                   string     `json:"name"`
	Phone                  string     `json:"phone"`
	Email                  string     `json:"email,omitempty"`
	Neighborhoods          []string   `json:"neighborhoods"`
	Intent                 string     `json:"intent,omitempty"`
	PaymentMethod          string     `json:"paymentMethod,omitempty"`
	BudgetMin              *int64     `json:"budgetMin,omitempty"`
	BudgetMax              *int64     `json:"budgetMax,omitempty"`
	Urgency                string     `json:"urgency,omitempty"`
	DeadlineDays           *int       `json:"deadlineDays,omitempty"`
	Stage                  string     `json:"stage"`
	Score                  int        `json:"score"`
	QualificationLabel     string     `json:"qualificationLabel"`
	IsBadLead              bool       `json:"isBadLead"`
	CreatedAt              time.Time  `json:"createdAt"`
	LastContactAt          *time.Time `json:"lastContactAt,omitempty"`
	LastReactivationAt     *time.Time `json:"lastReactivationAt,omitempty"`
	ReactivationTouchCount int        `json:"reactivationTouchCount"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

type ScoreResponse struct {
	LeadID  uuid.UUID      `json:"leadId"`
	Score   int            `json:"score"`
	Label   string         `json:"label"`
	Factors map[string]int `json:"factors"`
	Version string         `json:"version"`
}

type TaskResponse struct {
	ID           uuid.UUID  `json:"id"`
	LeadID       uuid.UUID  `json:"leadId"`
	SequenceName string     `json:"sequenceName"`
	Message      string     `json:"message"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	Status       string     `json:"status"`
	TouchIndex   int        `json:"touchIndex"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
}

type MITResponse struct {
	Task      TaskResponse `json:"task"`
	LeadName  string       `json:"leadName"`
	LeadScore int          `json:"leadScore"`
	LeadLabel string       `json:"leadLabel"`
	Overdue   bool         `json:"overdue"`
}

type PrioritiesResponse struct {
	MITs               []MITResponse  `json:"mits"`
	Cooling            []LeadResponse `json:"cooling"`
	StaleThresholdDays int            `json:"staleThresholdDays"`
}

type AutomationStateResponse struct {
	LeadID            uuid.UUID  `json:"leadId"`
	Status            string     `json:"status"`
	ActiveSequenceID  string     `json:"activeSequenceId,omitempty"`
	TouchIndex        int        `json:"touchIndex"`
	CurrentTaskID     *uuid.UUID `json:"currentTaskId,omitempty"`
	NextTouchAt       *time.Time `json:"nextTouchAt,omitempty"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	LastMessageSentAt *time.Time `json:"lastMessageSentAt,omitempty"`
}

type RenderedMessageResponse struct {
	LeadID     uuid.UUID `json:"leadId"`
	LeadName   string    `json:"leadName"`
	Phone      string    `json:"phone"`
	TemplateID string    `json:"templateId"`
	Text       string    `json:"text"`
}

type ReactivationResponse struct {
	Message  RenderedMessageResponse `json:"message"`
	Lead     LeadResponse            `json:"lead"`
	FollowUp TaskResponse            `json:"followUp"`
}

type CandidatesResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}

type BatchStepResponse struct {
	LeadID uuid.UUID `json:"leadId"`
	Action string    `json:"action"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type BatchResponse struct {
	ID         uuid.UUID                `json:"id"`
	TemplateID string                   `json:"templateId"`
	LeadIDs    []uuid.UUID              `json:"leadIds"`
	Cursor     int                      `json:"cursor"`
	Remaining  int                      `json:"remaining"`
	Status     string                   `json:"status"`
	Steps      []BatchStepResponse      `json:"steps"`
	Current    *RenderedMessageResponse `json:"current,omitempty"`
	CreatedAt  time.Time                `json:"createdAt"`
	UpdatedAt  time.Time                `json:"updatedAt"`
}
