package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

const recordingColumns = `
	id, tenant_id, title, audio_url, duration, status, transcription,
	failed_segments, analysis, deep_analysis, distribution_log, failure_reason,
	created_at, updated_at
`

type RecordingRepo struct {
	db *sqlx.DB
}

func NewRecordingRepo(db *sqlx.DB) *RecordingRepo {
	return &RecordingRepo{db: db}
}

func (r *RecordingRepo) Create(ctx context.Context, rec *models.Recording) error {
	const q = `
		INSERT INTO recordings (` + recordingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.TenantID, rec.Title, rec.AudioURL, rec.Duration, rec.Status,
		rec.Transcription, rec.FailedSegments, rec.Analysis, rec.DeepAnalysis,
		rec.DistributionLog, rec.FailureReason, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording create: %w", err)
	}
	return nil
}

func (r *RecordingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`

	var rec models.Recording
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("recording get by id: %w", err)
	}
	return &rec, nil
}

func (r *RecordingRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Recording, error) {
	const q = `
		SELECT ` + recordingColumns + `
		FROM recordings
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	var recs []models.Recording
	if err := r.db.SelectContext(ctx, &recs, q, tenantID); err != nil {
		return nil, fmt.Errorf("recording list by tenant: %w", err)
	}
	return recs, nil
}

func (r *RecordingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Recording, error) {
	return r.getRow(ctx, r.db, `
		UPDATE recordings
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, status)
}

func (r *RecordingRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Recording, error) {
	return r.getRow(ctx, r.db, `
		UPDATE recordings
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, reason)
}

func (r *RecordingRepo) SetAudioURL(ctx context.Context, id uuid.UUID, url string) (*models.Recording, error) {
	return r.getRow(ctx, r.db, `
		UPDATE recordings
		SET audio_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, url)
}

func (r *RecordingRepo) SetTranscription(ctx context.Context, id uuid.UUID, text string, failedSegments int) (*models.Recording, error) {
	return r.getRow(ctx, r.db, `
		UPDATE recordings
		SET transcription = $2, failed_segments = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, text, failedSegments)
}

func (r *RecordingRepo) SetAnalysis(ctx context.Context, id uuid.UUID, analysis models.Analysis, deep models.DeepAnalysis) (*models.Recording, error) {
	return r.getRow(ctx, r.db, `
		UPDATE recordings
		SET analysis = $2, deep_analysis = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, analysis, deep)
}

// AppendDistribution relies on jsonb concatenation so the append is atomic at
// the store level: concurrent appends never lose entries.
func (r *RecordingRepo) AppendDistribution(ctx context.Context, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal distribution entry: %w", err)
	}
	return r.getRow(ctx, r.db, `
		UPDATE recordings
		SET distribution_log = distribution_log || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, payload)
}

func (r *RecordingRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *RecordingRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status models.Status) (*models.Recording, error) {
	return r.getRow(ctx, tx, `
		UPDATE recordings
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, status)
}

func (r *RecordingRepo) MarkFailedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string) (*models.Recording, error) {
	return r.getRow(ctx, tx, `
		UPDATE recordings
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, reason)
}

func (r *RecordingRepo) AppendDistributionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal distribution entry: %w", err)
	}
	return r.getRow(ctx, tx, `
		UPDATE recordings
		SET distribution_log = distribution_log || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordingColumns, id, payload)
}

type rowGetter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func (r *RecordingRepo) getRow(ctx context.Context, g rowGetter, query string, args ...any) (*models.Recording, error) {
	var rec models.Recording
	if err := g.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("recording update: %w", err)
	}
	return &rec, nil
}
