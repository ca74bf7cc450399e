package transcriber

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/progress"
)

// GapMarker replaces the text of a segment that exhausted its retry budget.
// Downstream analysis is never silently fed a merged transcript with missing
// regions: the gap is explicit and counted.
const GapMarker = "[transcription unavailable]"

// SegmentTranscriber is the per-URL transcription call shared by the chunked
// and direct paths.
type SegmentTranscriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// BlobStore stages segment payloads so the transcription service can fetch
// them by URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

type Result struct {
	Text           string
	FailedSegments int
	TotalSegments  int
}

type ChunkedConfig struct {
	SegmentSize    int64 // max bytes per segment
	Workers        int   // worker pool width
	SegmentRetries int   // retries after the first attempt, per segment
	Logger         zerolog.Logger
	Progress       *progress.Bus
}

// Chunked transcribes oversized payloads: ordered segments, bounded worker
// pool, bounded per-segment retries, index-order merge.
type Chunked struct {
	client SegmentTranscriber
	blobs  BlobStore
	cfg    ChunkedConfig
	logger zerolog.Logger
}

func NewChunked(client SegmentTranscriber, blobs BlobStore, cfg ChunkedConfig) (*Chunked, error) {
	if client == nil {
		return nil, fmt.Errorf("segment transcriber is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.SegmentSize <= 0 {
		return nil, fmt.Errorf("segment size must be positive, got: %d", cfg.SegmentSize)
	}
	if cfg.SegmentRetries < 0 {
		return nil, fmt.Errorf("segment retries cannot be negative")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}

	return &Chunked{
		client: client,
		blobs:  blobs,
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "chunked_transcriber").Logger(),
	}, nil
}

// Transcribe partitions data, transcribes segments concurrently and merges the
// results back in index order. A non-zero FailedSegments is not an error:
// failed segments appear as gap markers and the caller decides whether a
// transcript with gaps is still acceptable.
func (t *Chunked) Transcribe(ctx context.Context, recordingID uuid.UUID, data []byte) (Result, error) {
	segments := Split(int64(len(data)), t.cfg.SegmentSize)
	if len(segments) == 0 {
		return Result{}, fmt.Errorf("empty payload")
	}

	t.logger.Info().
		Str("recording_id", recordingID.String()).
		Int("segments", len(segments)).
		Int("workers", t.cfg.Workers).
		Msg("chunked transcription started")

	jobs := make(chan int)
	var wg sync.WaitGroup

	// Счётчик и публикация под одним мьютексом: Done у подписчика растёт строго
	// монотонно, а не в порядке гонки воркеров.
	var (
		progressMu sync.Mutex
		settled    int
	)

	for w := 0; w < t.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Каждый воркер владеет своим индексом, общий мьютекс не нужен.
				t.processSegment(ctx, recordingID, &segments[i], data)

				progressMu.Lock()
				settled++
				t.cfg.Progress.Publish(progress.Event{
					RecordingID: recordingID,
					Stage:       progress.StageTranscribe,
					Done:        settled,
					Total:       len(segments),
				})
				progressMu.Unlock()
			}
		}()
	}

feed:
	for i := range segments {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Cancelled run: partially completed segments are discarded.
		return Result{}, err
	}

	texts := make([]string, len(segments))
	failed := 0
	for i := range segments {
		if segments[i].Status == SegmentDone {
			texts[i] = segments[i].Text
			continue
		}
		texts[i] = GapMarker
		failed++
	}

	t.logger.Info().
		Str("recording_id", recordingID.String()).
		Int("segments", len(segments)).
		Int("failed", failed).
		Msg("chunked transcription finished")

	return Result{
		Text:           strings.Join(texts, "\n"),
		FailedSegments: failed,
		TotalSegments:  len(segments),
	}, nil
}

func (t *Chunked) processSegment(ctx context.Context, recordingID uuid.UUID, seg *Segment, data []byte) {
	key := fmt.Sprintf("recordings/%s/segments/%03d", recordingID, seg.Index)

	url, err := t.blobs.Upload(ctx, key, data[seg.Start:seg.End])
	if err != nil {
		t.logger.Error().Err(err).Int("segment", seg.Index).Msg("segment upload failed")
		seg.Status = SegmentFailed
		return
	}

	text, err := t.transcribeWithRetry(ctx, url, seg)
	if err != nil {
		t.logger.Error().Err(err).
			Int("segment", seg.Index).
			Int("attempts", seg.Attempts).
			Msg("segment failed permanently")
		seg.Status = SegmentFailed
		return
	}

	seg.Status = SegmentDone
	seg.Text = text
}

// transcribeWithRetry retries transient failures up to the configured bound.
// Permanent failures (4xx from the service) stop immediately via
// backoff.Permanent from the client.
func (t *Chunked) transcribeWithRetry(ctx context.Context, url string, seg *Segment) (string, error) {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(newSegmentBackoff(), uint64(t.cfg.SegmentRetries)),
		ctx,
	)

	var text string
	op := func() error {
		seg.Attempts++
		s, err := t.client.Transcribe(ctx, url)
		if err != nil {
			return err
		}
		text = s
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return text, nil
}

func newSegmentBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	return bo
}
