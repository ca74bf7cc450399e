package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*models.Recording
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data: make(map[uuid.UUID]*models.Recording),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, rec *models.Recording) error {
	if rec == nil || rec.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[rec.ID]; exists {
		return models.ErrConflict
	}

	// Защитная копия, чтобы внешняя сторона не могла мутировать хранимый объект
	cp := copyRecording(rec)
	r.data[rec.ID] = cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyRecording(rec), nil
}

func (r *MemoryRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Recording, error) {
	if tenantID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Recording
	for _, rec := range r.data {
		if rec.TenantID == tenantID {
			out = append(out, *copyRecording(rec))
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Recording, error) {
	return r.update(ctx, id, func(rec *models.Recording) {
		rec.Status = status
	})
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Recording, error) {
	return r.update(ctx, id, func(rec *models.Recording) {
		rec.Status = models.FailedStatus
		rec.FailureReason = reason
	})
}

func (r *MemoryRepository) SetAudioURL(ctx context.Context, id uuid.UUID, url string) (*models.Recording, error) {
	return r.update(ctx, id, func(rec *models.Recording) {
		rec.AudioURL = url
	})
}

func (r *MemoryRepository) SetTranscription(ctx context.Context, id uuid.UUID, text string, failedSegments int) (*models.Recording, error) {
	return r.update(ctx, id, func(rec *models.Recording) {
		rec.Transcription = text
		rec.FailedSegments = failedSegments
	})
}

func (r *MemoryRepository) SetAnalysis(ctx context.Context, id uuid.UUID, analysis models.Analysis, deep models.DeepAnalysis) (*models.Recording, error) {
	return r.update(ctx, id, func(rec *models.Recording) {
		rec.Analysis = analysis
		rec.DeepAnalysis = deep
	})
}

func (r *MemoryRepository) AppendDistribution(ctx context.Context, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error) {
	return r.update(ctx, id, func(rec *models.Recording) {
		rec.DistributionLog = append(rec.DistributionLog, entry)
	})
}

func (r *MemoryRepository) update(ctx context.Context, id uuid.UUID, mutate func(*models.Recording)) (*models.Recording, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	mutate(rec)
	rec.UpdatedAt = time.Now()
	return copyRecording(rec), nil
}

func copyRecording(rec *models.Recording) *models.Recording {
	cp := *rec
	cp.DistributionLog = append(models.DistributionLog(nil), rec.DistributionLog...)
	return &cp
}
