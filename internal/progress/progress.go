// Package progress carries observability events from pipeline stages to a
// single subscriber. Stages publish; the pipeline driver subscribes once and
// forwards to logging. Events are advisory and never drive control flow.
package progress

import "github.com/google/uuid"

type Stage string

const (
	StageUpload     Stage = "upload"
	StageNormalize  Stage = "normalize"
	StageTranscribe Stage = "transcribe"
	StageAnalyze    Stage = "analyze"
)

type Event struct {
	RecordingID uuid.UUID
	Stage       Stage
	Done        int
	Total       int
	Percent     int
	Message     string
}

// Bus is a bounded fan-in of progress events. Publish never blocks: when the
// subscriber is slow the event is dropped, since progress is purely
// observational. A nil *Bus is valid and discards everything.
type Bus struct {
	ch chan Event
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{ch: make(chan Event, buffer)}
}

func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Total > 0 {
		e.Percent = e.Done * 100 / e.Total
	}
	select {
	case b.ch <- e:
	default:
	}
}

func (b *Bus) Events() <-chan Event {
	if b == nil {
		return nil
	}
	return b.ch
}

func (b *Bus) Close() {
	if b != nil {
		close(b.ch)
	}
}
