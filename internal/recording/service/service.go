package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/recording/domain"
	"github.com/romariotrain/recording-pipeline/internal/recording/models"
	"github.com/romariotrain/recording-pipeline/internal/recording/repository"
)

// EventOutbox persists domain events in the same transaction as the entity
// write, for later publication (outbox pattern).
type EventOutbox interface {
	Add(ctx context.Context, tx *sqlx.Tx, event models.DomainEvent) error
}

// txRepository is the optional transactional capability of a repository.
// The postgres repo implements it; the in-memory repo does not, in which case
// writes go through the plain path and no events are recorded.
type txRepository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status models.Status) (*models.Recording, error)
	MarkFailedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string) (*models.Recording, error)
	AppendDistributionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error)
}

// Service owns every status write of a Recording. No other component changes
// status directly; pipeline stages and the distributor go through it.
type Service struct {
	repo   repository.RecordingRepository
	outbox EventOutbox
	clock  func() time.Time
	idGen  func() uuid.UUID
	logger zerolog.Logger
}

func New(repo repository.RecordingRepository, outbox EventOutbox, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		outbox: outbox,
		clock:  time.Now,
		idGen:  uuid.New,
		logger: logger.With().Str("component", "recording_service").Logger(),
	}
}

// CreateRecording creates a Recording in the processing state. Service owns
// invariants: id, initial status, timestamps, generated title.
func (s *Service) CreateRecording(ctx context.Context, tenantID uuid.UUID, title string, duration int) (*models.Recording, error) {
	if tenantID == uuid.Nil || duration < 0 {
		return nil, models.ErrInvalidArgument
	}

	now := s.clock()
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Recording %s", now.Format("2006-01-02 15:04"))
	}

	rec := &models.Recording{
		ID:        s.idGen(),
		TenantID:  tenantID,
		Title:     title,
		Duration:  duration,
		Status:    models.ProcessingStatus,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetRecording(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRecordings(ctx context.Context, tenantID uuid.UUID) ([]models.Recording, error) {
	if tenantID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.ListByTenant(ctx, tenantID)
}

// SetAudioURL records the blob URL returned by the uploader. The URL may stay
// empty for the lifetime of the recording if upload failed but a transcript
// was otherwise obtained.
func (s *Service) SetAudioURL(ctx context.Context, id uuid.UUID, url string) (*models.Recording, error) {
	if id == uuid.Nil || url == "" {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.SetAudioURL(ctx, id, url)
}

// SetTranscription stores the merged transcript. Gap markers are allowed,
// total emptiness is not.
func (s *Service) SetTranscription(ctx context.Context, id uuid.UUID, text string, failedSegments int) (*models.Recording, error) {
	if id == uuid.Nil || failedSegments < 0 {
		return nil, models.ErrInvalidArgument
	}
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyTranscript
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.ProcessingStatus {
		return nil, fmt.Errorf("%w: transcription writable only while processing", domain.ErrInvalidTransition)
	}
	return s.repo.SetTranscription(ctx, id, text, failedSegments)
}

// CompleteAnalysis stores both analysis payloads and advances the recording to
// analyzed. Either payload may be empty: a transcript with no analysis is a
// legitimate, displayable state. The guard is on the transcript, which must be
// non-empty before the status may advance.
func (s *Service) CompleteAnalysis(ctx context.Context, id uuid.UUID, analysis models.Analysis, deep models.DeepAnalysis) (*models.Recording, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Transcription) == "" {
		return nil, models.ErrEmptyTranscript
	}
	if err := s.validateTransition(rec.Status, models.AnalyzedStatus); err != nil {
		return nil, err
	}

	if _, err := s.repo.SetAnalysis(ctx, id, analysis, deep); err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, rec, models.AnalyzedStatus)
}

// MarkFailed moves a recording to the terminal failed state. Allowed from
// processing and analyzed only.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Recording, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateTransition(rec.Status, models.FailedStatus); err != nil {
		return nil, err
	}

	s.logger.Warn().
		Str("recording_id", id.String()).
		Str("reason", reason).
		Msg("recording failed")

	if txRepo, ok := s.repo.(txRepository); ok && s.outbox != nil {
		tx, err := txRepo.BeginTx(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		updated, err := txRepo.MarkFailedTx(ctx, tx, id, reason)
		if err != nil {
			return nil, err
		}
		event := models.NewRecordingStatusChanged(id, rec.Status, models.FailedStatus)
		if err := s.outbox.Add(ctx, tx, event); err != nil {
			return nil, fmt.Errorf("add outbox: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return updated, nil
	}

	return s.repo.MarkFailed(ctx, id, reason)
}

// RecordDistribution appends one immutable log entry for a distributor
// invocation and, when this is the first successful one, advances the
// recording to distributed. Re-distribution appends further entries without
// changing status. Distribution against processing or failed recordings is
// rejected before any entry is written.
func (s *Service) RecordDistribution(ctx context.Context, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.AnalyzedStatus && rec.Status != models.DistributedStatus {
		return nil, models.ErrNotDistributable
	}

	advance := rec.Status == models.AnalyzedStatus && entry.Result.Succeeded()

	if txRepo, ok := s.repo.(txRepository); ok && s.outbox != nil {
		tx, err := txRepo.BeginTx(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		updated, err := txRepo.AppendDistributionTx(ctx, tx, id, entry)
		if err != nil {
			return nil, err
		}
		if err := s.outbox.Add(ctx, tx, models.NewDistributionRecorded(id, entry.Result)); err != nil {
			return nil, fmt.Errorf("add outbox: %w", err)
		}
		if advance {
			updated, err = txRepo.UpdateStatusTx(ctx, tx, id, models.DistributedStatus)
			if err != nil {
				return nil, err
			}
			event := models.NewRecordingStatusChanged(id, models.AnalyzedStatus, models.DistributedStatus)
			if err := s.outbox.Add(ctx, tx, event); err != nil {
				return nil, fmt.Errorf("add outbox: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return updated, nil
	}

	updated, err := s.repo.AppendDistribution(ctx, id, entry)
	if err != nil {
		return nil, err
	}
	if advance {
		return s.repo.UpdateStatus(ctx, id, models.DistributedStatus)
	}
	return updated, nil
}

func (s *Service) changeStatus(ctx context.Context, rec *models.Recording, to models.Status) (*models.Recording, error) {
	if rec.Status == to {
		return rec, nil
	}

	s.logger.Info().
		Str("recording_id", rec.ID.String()).
		Str("from", string(rec.Status)).
		Str("to", string(to)).
		Msg("status change")

	if txRepo, ok := s.repo.(txRepository); ok && s.outbox != nil {
		tx, err := txRepo.BeginTx(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		updated, err := txRepo.UpdateStatusTx(ctx, tx, rec.ID, to)
		if err != nil {
			return nil, err
		}
		event := models.NewRecordingStatusChanged(rec.ID, rec.Status, to)
		if err := s.outbox.Add(ctx, tx, event); err != nil {
			return nil, fmt.Errorf("add outbox: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return updated, nil
	}

	return s.repo.UpdateStatus(ctx, rec.ID, to)
}

func (s *Service) validateTransition(from, to models.Status) error {
	fromDom, err := toDomainStatus(from)
	if err != nil {
		return err
	}
	toDom, err := toDomainStatus(to)
	if err != nil {
		return err
	}
	return domain.ValidateTransition(fromDom, toDom)
}

func toDomainStatus(s models.Status) (domain.Status, error) {
	switch s {
	case models.ProcessingStatus:
		return domain.Processing, nil
	case models.AnalyzedStatus:
		return domain.Analyzed, nil
	case models.DistributedStatus:
		return domain.Distributed, nil
	case models.FailedStatus:
		return domain.Failed, nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}
