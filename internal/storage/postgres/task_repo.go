package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/recording-pipeline/internal/distributor"
)

type TaskRepo struct {
	db *sqlx.DB
}

func NewTaskRepo(db *sqlx.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) Create(ctx context.Context, task *distributor.Task) error {
	const q = `
		INSERT INTO tasks (id, tenant_id, recording_id, project_id, title, assignee, deadline, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, q,
		task.ID, task.TenantID, task.RecordingID, task.ProjectID,
		task.Title, task.Assignee, task.Deadline, task.Priority, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("task create: %w", err)
	}
	return nil
}
