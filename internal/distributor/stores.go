package distributor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is the downstream task entity created from analysis tasks and deep
// action items. The task store is an external collaborator of the pipeline;
// only its creation contract is owned here.
type Task struct {
	ID          uuid.UUID `db:"id"`
	TenantID    uuid.UUID `db:"tenant_id"`
	RecordingID uuid.UUID `db:"recording_id"`
	ProjectID   uuid.UUID `db:"project_id"`
	Title       string    `db:"title"`
	Assignee    string    `db:"assignee"`
	Deadline    string    `db:"deadline"`
	Priority    string    `db:"priority"`
	CreatedAt   time.Time `db:"created_at"`
}

type JournalEntry struct {
	ID          uuid.UUID `db:"id"`
	TenantID    uuid.UUID `db:"tenant_id"`
	RecordingID uuid.UUID `db:"recording_id"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	EntryDate   time.Time `db:"entry_date"`
	CreatedAt   time.Time `db:"created_at"`
}

type TaskStore interface {
	Create(ctx context.Context, task *Task) error
}

type JournalStore interface {
	Create(ctx context.Context, entry *JournalEntry) error
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
