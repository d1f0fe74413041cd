package triage

import "time"

// Status tracks where a record is in its lifecycle.
type Status string

const (
	// StatusPending means inserted, no decision applied yet
	StatusPending Status = "pending"

	// StatusNeedsReview means forwarded or held for a human
	StatusNeedsReview Status = "needs_review"

	// StatusRagAnswered means the generated reply was auto-sent
	StatusRagAnswered Status = "rag_answered"

	// StatusHumanAnswered means a human approved and sent a reply (terminal)
	StatusHumanAnswered Status = "human_answered"

	// StatusArchived means manually closed without an answer (terminal)
	StatusArchived Status = "archived"
)

// Terminal reports whether the status removes a record from SLA consideration.
func (s Status) Terminal() bool {
	return s == StatusRagAnswered || s == StatusHumanAnswered || s == StatusArchived
}

// Priority is the classifier-assigned urgency of a message.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Meta is the structured metadata stored alongside a record. ReminderSent and
// EscalationSent guard the SLA actions: once true they are never reset.
type Meta struct {
	UsedChunks     []string `json:"used_chunks,omitempty"`
	AutoSent       bool     `json:"auto_sent"`
	HoldingSent    bool     `json:"holding_sent,omitempty"`
	ReminderSent   bool     `json:"reminder_sent,omitempty"`
	EscalationSent bool     `json:"escalation_sent,omitempty"`
	Note           string   `json:"note,omitempty"`
}

// Record is one triaged inbound email. Subject, From, Body and CreatedAt are
// immutable after insert; CreatedAt sets the SLA clock.
type Record struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	From         string    `json:"from"`
	Body         string    `json:"body"`
	DepartmentID *string   `json:"department_id,omitempty"`
	Priority     Priority  `json:"priority"`
	Status       Status    `json:"status"`
	Confidence   float64   `json:"confidence"` // stored as a fraction in [0,1]
	Reply        string    `json:"reply,omitempty"`
	CC           string    `json:"cc,omitempty"`
	Meta         *Meta     `json:"meta,omitempty"`
	TokensUsed   int       `json:"tokens_used,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	SentAt       time.Time `json:"sent_at,omitempty"`
}

// Usage is the token accounting returned by the LLM-backed services.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }
