package models

import (
	"time"

	"github.com/google/uuid"
)

// DistributionSelection is the caller-supplied set of side effects to perform.
// It is recorded verbatim inside the distribution_log entry it produces.
type DistributionSelection struct {
	CreateTasks        bool      `json:"create_tasks"`
	CreateJournalEntry bool      `json:"create_journal_entry"`
	SendEmail          bool      `json:"send_email"`
	TargetProjectID    uuid.UUID `json:"target_project_id,omitempty"`
	EmailTo            string    `json:"email_to,omitempty"`
}

func (s DistributionSelection) Empty() bool {
	return !s.CreateTasks && !s.CreateJournalEntry && !s.SendEmail
}

type ActionError struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// DistributionResult is the outcome of one distributor invocation, including
// partial failures. Actions are attempted independently; an error in one does
// not suppress the others.
type DistributionResult struct {
	TasksCreated   int           `json:"tasks_created"`
	JournalCreated bool          `json:"journal_created"`
	EmailSent      bool          `json:"email_sent"`
	Errors         []ActionError `json:"errors,omitempty"`
}

// Succeeded reports whether at least one selected action went through.
func (r DistributionResult) Succeeded() bool {
	return r.TasksCreated > 0 || r.JournalCreated || r.EmailSent
}

// DistributionEntry is one immutable record in the recording's distribution
// log. Entries are append-only, never mutated or truncated.
type DistributionEntry struct {
	Date      time.Time             `json:"date"`
	Selection DistributionSelection `json:"selections"`
	Result    DistributionResult    `json:"result"`
}

type DistributionLog []DistributionEntry
