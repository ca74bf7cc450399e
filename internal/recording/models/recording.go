package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	ProcessingStatus  Status = "processing"
	AnalyzedStatus    Status = "analyzed"
	DistributedStatus Status = "distributed"
	FailedStatus      Status = "failed"
)

// Recording is the central persisted entity of the pipeline. It is created once
// when a media file is accepted and then mutated in place by the pipeline stages:
// transcription fills Transcription, analysis fills Analysis/DeepAnalysis and
// advances the status, distribution appends to DistributionLog.
type Recording struct {
	ID              uuid.UUID       `db:"id"`
	TenantID        uuid.UUID       `db:"tenant_id"`
	Title           string          `db:"title"`
	AudioURL        string          `db:"audio_url"`
	Duration        int             `db:"duration"` // seconds
	Status          Status          `db:"status"`
	Transcription   string          `db:"transcription"`
	FailedSegments  int             `db:"failed_segments"`
	Analysis        Analysis        `db:"analysis"`
	DeepAnalysis    DeepAnalysis    `db:"deep_analysis"`
	DistributionLog DistributionLog `db:"distribution_log"`
	FailureReason   string          `db:"failure_reason"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// Analysis is the basic extraction pass result. Summary is the only required
// field; the rest may be absent when the pass returned a partial result.
type Analysis struct {
	Summary   string   `json:"summary,omitempty"`
	Tasks     []string `json:"tasks,omitempty"`
	Decisions []string `json:"decisions,omitempty"`
	Dates     []string `json:"dates,omitempty"`
	Topics    []string `json:"topics,omitempty"`
}

func (a Analysis) IsEmpty() bool {
	return a.Summary == "" && len(a.Tasks) == 0 && len(a.Decisions) == 0 &&
		len(a.Dates) == 0 && len(a.Topics) == 0
}

type Person struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type Project struct {
	ProjectName string `json:"project_name"`
}

type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee,omitempty"`
	Deadline string `json:"deadline,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// DeepAnalysis is the deep extraction pass result. Same partial-failure
// semantics as Analysis: a failed pass leaves the whole object empty.
type DeepAnalysis struct {
	PeopleMentioned    []Person     `json:"people_mentioned,omitempty"`
	ProjectsIdentified []Project    `json:"projects_identified,omitempty"`
	ActionItems        []ActionItem `json:"action_items,omitempty"`
}

func (d DeepAnalysis) IsEmpty() bool {
	return len(d.PeopleMentioned) == 0 && len(d.ProjectsIdentified) == 0 &&
		len(d.ActionItems) == 0
}
