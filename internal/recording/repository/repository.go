package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

type RecordingRepository interface {
	Create(ctx context.Context, rec *models.Recording) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Recording, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Recording, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Recording, error)
	SetAudioURL(ctx context.Context, id uuid.UUID, url string) (*models.Recording, error)
	SetTranscription(ctx context.Context, id uuid.UUID, text string, failedSegments int) (*models.Recording, error)
	SetAnalysis(ctx context.Context, id uuid.UUID, analysis models.Analysis, deep models.DeepAnalysis) (*models.Recording, error)
	AppendDistribution(ctx context.Context, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error)
}
