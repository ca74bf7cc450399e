package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

type RecordingStatusChanged struct {
	eventID     uuid.UUID
	recordingID uuid.UUID
	from        Status
	to          Status
	occurredAt  time.Time
}

func NewRecordingStatusChanged(recordingID uuid.UUID, from, to Status) *RecordingStatusChanged {
	return &RecordingStatusChanged{
		eventID:     uuid.New(),
		recordingID: recordingID,
		from:        from,
		to:          to,
		occurredAt:  time.Now(),
	}
}

func (e *RecordingStatusChanged) EventID() uuid.UUID     { return e.eventID }
func (e *RecordingStatusChanged) EventType() string      { return "RecordingStatusChanged" }
func (e *RecordingStatusChanged) AggregateID() uuid.UUID { return e.recordingID }
func (e *RecordingStatusChanged) OccurredAt() time.Time  { return e.occurredAt }

func (e *RecordingStatusChanged) From() Status { return e.from }
func (e *RecordingStatusChanged) To() Status   { return e.to }

func (e *RecordingStatusChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID     uuid.UUID `json:"event_id"`
		RecordingID uuid.UUID `json:"recording_id"`
		From        Status    `json:"from"`
		To          Status    `json:"to"`
		OccurredAt  time.Time `json:"occurred_at"`
	}{
		EventID:     e.eventID,
		RecordingID: e.recordingID,
		From:        e.from,
		To:          e.to,
		OccurredAt:  e.occurredAt,
	})
}

// DistributionRecorded is emitted for every appended distribution log entry,
// including ones where all selected actions failed.
type DistributionRecorded struct {
	eventID     uuid.UUID
	recordingID uuid.UUID
	result      DistributionResult
	occurredAt  time.Time
}

func NewDistributionRecorded(recordingID uuid.UUID, result DistributionResult) *DistributionRecorded {
	return &DistributionRecorded{
		eventID:     uuid.New(),
		recordingID: recordingID,
		result:      result,
		occurredAt:  time.Now(),
	}
}

func (e *DistributionRecorded) EventID() uuid.UUID     { return e.eventID }
func (e *DistributionRecorded) EventType() string      { return "DistributionRecorded" }
func (e *DistributionRecorded) AggregateID() uuid.UUID { return e.recordingID }
func (e *DistributionRecorded) OccurredAt() time.Time  { return e.occurredAt }

func (e *DistributionRecorded) Result() DistributionResult { return e.result }

func (e *DistributionRecorded) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID     uuid.UUID          `json:"event_id"`
		RecordingID uuid.UUID          `json:"recording_id"`
		Result      DistributionResult `json:"result"`
		OccurredAt  time.Time          `json:"occurred_at"`
	}{
		EventID:     e.eventID,
		RecordingID: e.recordingID,
		Result:      e.result,
		OccurredAt:  e.occurredAt,
	})
}
