package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/recording-pipeline/internal/distributor"
)

type JournalRepo struct {
	db *sqlx.DB
}

func NewJournalRepo(db *sqlx.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) Create(ctx context.Context, entry *distributor.JournalEntry) error {
	const q = `
		INSERT INTO journal_entries (id, tenant_id, recording_id, title, body, entry_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, q,
		entry.ID, entry.TenantID, entry.RecordingID,
		entry.Title, entry.Body, entry.EntryDate, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("journal entry create: %w", err)
	}
	return nil
}
