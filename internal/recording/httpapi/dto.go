package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

type DistributeRequest struct {
	CreateTasks        bool      `json:"create_tasks"`
	CreateJournalEntry bool      `json:"create_journal_entry"`
	SendEmail          bool      `json:"send_email"`
	TargetProjectID    uuid.UUID `json:"target_project_id"`
	EmailTo            string    `json:"email_to"`
}

func (r DistributeRequest) toSelection() models.DistributionSelection {
	return models.DistributionSelection{
		CreateTasks:        r.CreateTasks,
		CreateJournalEntry: r.CreateJournalEntry,
		SendEmail:          r.SendEmail,
		TargetProjectID:    r.TargetProjectID,
		EmailTo:            r.EmailTo,
	}
}

type RecordingResponse struct {
	ID              uuid.UUID              `json:"id"`
	TenantID        uuid.UUID              `json:"tenant_id"`
	Title           string                 `json:"title"`
	Status          string                 `json:"status"`
	AudioURL        string                 `json:"audio_url,omitempty"`
	Duration        int                    `json:"duration"`
	Transcription   string                 `json:"transcription,omitempty"`
	FailedSegments  int                    `json:"failed_segments"`
	Analysis        models.Analysis        `json:"analysis"`
	DeepAnalysis    models.DeepAnalysis    `json:"deep_analysis"`
	DistributionLog models.DistributionLog `json:"distribution_log"`
	FailureReason   string                 `json:"failure_reason,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type DistributeResponse struct {
	Recording RecordingResponse         `json:"recording"`
	Result    models.DistributionResult `json:"result"`
}

func toRecordingResponse(rec *models.Recording) RecordingResponse {
	return RecordingResponse{
		ID:              rec.ID,
		TenantID:        rec.TenantID,
		Title:           rec.Title,
		Status:          string(rec.Status),
		AudioURL:        rec.AudioURL,
		Duration:        rec.Duration,
		Transcription:   rec.Transcription,
		FailedSegments:  rec.FailedSegments,
		Analysis:        rec.Analysis,
		DeepAnalysis:    rec.DeepAnalysis,
		DistributionLog: rec.DistributionLog,
		FailureReason:   rec.FailureReason,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}
