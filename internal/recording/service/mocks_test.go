package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Create(ctx context.Context, rec *models.Recording) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *StoreMock) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Recording, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Recording, error) {
	args := m.Called(ctx, id, status)
	if v := args.Get(0); v != nil {
		return v.(*models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Recording, error) {
	args := m.Called(ctx, id, reason)
	if v := args.Get(0); v != nil {
		return v.(*models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) SetAudioURL(ctx context.Context, id uuid.UUID, url string) (*models.Recording, error) {
	args := m.Called(ctx, id, url)
	if v := args.Get(0); v != nil {
		return v.(*models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) SetTranscription(ctx context.Context, id uuid.UUID, text string, failedSegments int) (*models.Recording, error) {
	args := m.Called(ctx, id, text, failedSegments)
	if v := args.Get(0); v != nil {
		return v.(*models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) SetAnalysis(ctx context.Context, id uuid.UUID, analysis models.Analysis, deep models.DeepAnalysis) (*models.Recording, error) {
	args := m.Called(ctx, id, analysis, deep)
	if v := args.Get(0); v != nil {
		return v.(*models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) AppendDistribution(ctx context.Context, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error) {
	args := m.Called(ctx, id, entry)
	if v := args.Get(0); v != nil {
		return v.(*models.Recording), args.Error(1)
	}
	return nil, args.Error(1)
}
