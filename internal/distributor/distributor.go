package distributor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

const (
	actionCreateTasks   = "create_tasks"
	actionCreateJournal = "create_journal_entry"
	actionSendEmail     = "send_email"
)

// RecordingService is the slice of the recording service the distributor needs.
type RecordingService interface {
	GetRecording(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	RecordDistribution(ctx context.Context, id uuid.UUID, entry models.DistributionEntry) (*models.Recording, error)
}

// Distributor fans a finished analysis out into the selected side effects.
// Actions are attempted independently: there is no transactional rollback
// across the heterogeneous downstream systems, and nothing is retried
// automatically. Every invocation appends exactly one log entry, partial
// failures included. Re-invoking with the same selection is the caller's
// explicit choice and will duplicate side effects; the log is the audit trail
// for that, not a guard against it.
type Distributor struct {
	recordings RecordingService
	tasks      TaskStore
	journal    JournalStore
	email      EmailSender
	clock      func() time.Time
	idGen      func() uuid.UUID
	logger     zerolog.Logger
}

func New(recordings RecordingService, tasks TaskStore, journal JournalStore, email EmailSender, logger zerolog.Logger) *Distributor {
	return &Distributor{
		recordings: recordings,
		tasks:      tasks,
		journal:    journal,
		email:      email,
		clock:      time.Now,
		idGen:      uuid.New,
		logger:     logger.With().Str("component", "distributor").Logger(),
	}
}

// Distribute performs the selected actions against the recording and records
// the outcome. The returned result includes per-action errors; an error return
// means the invocation itself could not proceed (unknown recording, wrong
// status, empty selection) and no side effect was attempted.
func (d *Distributor) Distribute(ctx context.Context, id uuid.UUID, sel models.DistributionSelection) (*models.Recording, models.DistributionResult, error) {
	if id == uuid.Nil {
		return nil, models.DistributionResult{}, models.ErrInvalidArgument
	}
	if sel.Empty() {
		return nil, models.DistributionResult{}, fmt.Errorf("%w: no actions selected", models.ErrInvalidArgument)
	}

	rec, err := d.recordings.GetRecording(ctx, id)
	if err != nil {
		return nil, models.DistributionResult{}, err
	}
	// Status guard before any side effect is attempted.
	if rec.Status != models.AnalyzedStatus && rec.Status != models.DistributedStatus {
		return nil, models.DistributionResult{}, models.ErrNotDistributable
	}

	var result models.DistributionResult

	if sel.CreateTasks {
		d.createTasks(ctx, rec, sel, &result)
	}
	if sel.CreateJournalEntry {
		d.createJournalEntry(ctx, rec, &result)
	}
	if sel.SendEmail {
		d.sendEmail(ctx, rec, sel, &result)
	}

	entry := models.DistributionEntry{
		Date:      d.clock(),
		Selection: sel,
		Result:    result,
	}

	updated, err := d.recordings.RecordDistribution(ctx, id, entry)
	if err != nil {
		return nil, result, fmt.Errorf("record distribution: %w", err)
	}

	d.logger.Info().
		Str("recording_id", id.String()).
		Int("tasks_created", result.TasksCreated).
		Bool("journal_created", result.JournalCreated).
		Bool("email_sent", result.EmailSent).
		Int("action_errors", len(result.Errors)).
		Msg("distribution recorded")

	return updated, result, nil
}

func (d *Distributor) createTasks(ctx context.Context, rec *models.Recording, sel models.DistributionSelection, result *models.DistributionResult) {
	for _, task := range d.buildTasks(rec, sel) {
		t := task
		if err := d.tasks.Create(ctx, &t); err != nil {
			d.logger.Error().Err(err).Str("title", t.Title).Msg("task create failed")
			result.Errors = append(result.Errors, models.ActionError{
				Action: actionCreateTasks,
				Reason: err.Error(),
			})
			continue
		}
		result.TasksCreated++
	}
}

// buildTasks merges the basic pass task list with the deep pass action items.
// Deep items carry assignee/deadline/priority; basic tasks are title-only.
func (d *Distributor) buildTasks(rec *models.Recording, sel models.DistributionSelection) []Task {
	now := d.clock()

	var tasks []Task
	for _, title := range rec.Analysis.Tasks {
		if strings.TrimSpace(title) == "" {
			continue
		}
		tasks = append(tasks, Task{
			ID:          d.idGen(),
			TenantID:    rec.TenantID,
			RecordingID: rec.ID,
			ProjectID:   sel.TargetProjectID,
			Title:       title,
			CreatedAt:   now,
		})
	}
	for _, item := range rec.DeepAnalysis.ActionItems {
		if strings.TrimSpace(item.Task) == "" {
			continue
		}
		tasks = append(tasks, Task{
			ID:          d.idGen(),
			TenantID:    rec.TenantID,
			RecordingID: rec.ID,
			ProjectID:   sel.TargetProjectID,
			Title:       item.Task,
			Assignee:    item.Assignee,
			Deadline:    item.Deadline,
			Priority:    item.Priority,
			CreatedAt:   now,
		})
	}
	return tasks
}

func (d *Distributor) createJournalEntry(ctx context.Context, rec *models.Recording, result *models.DistributionResult) {
	entry := &JournalEntry{
		ID:          d.idGen(),
		TenantID:    rec.TenantID,
		RecordingID: rec.ID,
		Title:       rec.Title,
		Body:        journalBody(rec),
		EntryDate:   d.clock(),
		CreatedAt:   d.clock(),
	}
	if err := d.journal.Create(ctx, entry); err != nil {
		d.logger.Error().Err(err).Msg("journal entry create failed")
		result.Errors = append(result.Errors, models.ActionError{
			Action: actionCreateJournal,
			Reason: err.Error(),
		})
		return
	}
	result.JournalCreated = true
}

func (d *Distributor) sendEmail(ctx context.Context, rec *models.Recording, sel models.DistributionSelection, result *models.DistributionResult) {
	if sel.EmailTo == "" {
		result.Errors = append(result.Errors, models.ActionError{
			Action: actionSendEmail,
			Reason: "recipient address is empty",
		})
		return
	}

	subject := fmt.Sprintf("Meeting notes: %s", rec.Title)
	if err := d.email.Send(ctx, sel.EmailTo, subject, journalBody(rec)); err != nil {
		d.logger.Error().Err(err).Str("to", sel.EmailTo).Msg("email send failed")
		result.Errors = append(result.Errors, models.ActionError{
			Action: actionSendEmail,
			Reason: err.Error(),
		})
		return
	}
	result.EmailSent = true
}

func journalBody(rec *models.Recording) string {
	var sb strings.Builder

	if rec.Analysis.Summary != "" {
		sb.WriteString(rec.Analysis.Summary)
		sb.WriteString("\n")
	}
	if len(rec.Analysis.Decisions) > 0 {
		sb.WriteString("\nDecisions:\n")
		for _, dec := range rec.Analysis.Decisions {
			sb.WriteString("- " + dec + "\n")
		}
	}
	if len(rec.DeepAnalysis.ActionItems) > 0 {
		sb.WriteString("\nAction items:\n")
		for _, item := range rec.DeepAnalysis.ActionItems {
			line := "- " + item.Task
			if item.Assignee != "" {
				line += " (" + item.Assignee + ")"
			}
			sb.WriteString(line + "\n")
		}
	}
	if sb.Len() == 0 {
		// Recording analyzed without any analysis payload; fall back to the
		// transcript head so the entry is not empty. Cut on a rune boundary,
		// a byte cut can leave half a multibyte character.
		excerpt := rec.Transcription
		if runes := []rune(excerpt); len(runes) > 500 {
			excerpt = string(runes[:500]) + "…"
		}
		sb.WriteString(excerpt)
	}
	return sb.String()
}
