// Package pipeline drives a recording from raw upload to the analyzed state:
// store the audio, normalize its format, route by size to a transcription
// strategy, then run the analysis passes. Stage failures before a transcript
// exists are fatal and mark the recording failed; after that point the
// degraded result is kept.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/analyzer"
	"github.com/romariotrain/recording-pipeline/internal/progress"
	"github.com/romariotrain/recording-pipeline/internal/recording/models"
	"github.com/romariotrain/recording-pipeline/internal/recording/service"
	"github.com/romariotrain/recording-pipeline/internal/transcriber"
)

type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, filename, audioURL string, data []byte) (string, []byte, error)
}

type DirectTranscriber interface {
	Transcribe(ctx context.Context, audioURL string) (transcriber.Result, error)
}

type ChunkedTranscriber interface {
	Transcribe(ctx context.Context, recordingID uuid.UUID, data []byte) (transcriber.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, recordingID uuid.UUID, transcript string) analyzer.Outcome
}

type Config struct {
	// DirectSizeLimit is the routing threshold in bytes. Payloads at or
	// below it go direct, anything larger is chunked.
	DirectSizeLimit int64

	UploadTimeout     time.Duration
	NormalizeTimeout  time.Duration
	TranscribeTimeout time.Duration
	AnalyzeTimeout    time.Duration
}

// Input is a raw recording as received from the upload surface.
type Input struct {
	TenantID uuid.UUID
	Filename string
	Title    string
	Duration int
	Data     []byte
}

type Pipeline struct {
	recordings *service.Service
	uploader   Uploader
	normalizer Normalizer
	direct     DirectTranscriber
	chunked    ChunkedTranscriber
	analyzer   Analyzer
	bus        *progress.Bus
	cfg        Config
	logger     zerolog.Logger
}

func New(
	recordings *service.Service,
	uploader Uploader,
	normalizer Normalizer,
	direct DirectTranscriber,
	chunked ChunkedTranscriber,
	an Analyzer,
	bus *progress.Bus,
	cfg Config,
	logger zerolog.Logger,
) (*Pipeline, error) {
	if recordings == nil || uploader == nil || normalizer == nil {
		return nil, fmt.Errorf("recordings, uploader and normalizer are required")
	}
	if direct == nil || chunked == nil || an == nil {
		return nil, fmt.Errorf("both transcription paths and the analyzer are required")
	}
	if cfg.DirectSizeLimit <= 0 {
		return nil, fmt.Errorf("direct size limit must be positive")
	}

	return &Pipeline{
		recordings: recordings,
		uploader:   uploader,
		normalizer: normalizer,
		direct:     direct,
		chunked:    chunked,
		analyzer:   an,
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Accept registers a recording for the payload and returns it in the
// processing state. The caller then hands it to Process, typically in the
// background.
func (p *Pipeline) Accept(ctx context.Context, in Input) (*models.Recording, error) {
	if strings.TrimSpace(in.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is empty", models.ErrInvalidArgument)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: payload is empty", models.ErrInvalidArgument)
	}
	return p.recordings.CreateRecording(ctx, in.TenantID, in.Title, in.Duration)
}

// Process runs the recording through every stage up to analyzed. Any error
// returned here has already been reflected in the recording's state.
func (p *Pipeline) Process(ctx context.Context, rec *models.Recording, in Input) (*models.Recording, error) {
	logger := p.logger.With().Stringer("recording_id", rec.ID).Logger()

	audioURL, err := p.upload(ctx, rec.ID, in)
	if err != nil {
		return nil, p.fail(ctx, rec.ID, fmt.Errorf("%w: %v", ErrUpload, err))
	}
	if _, err := p.recordings.SetAudioURL(ctx, rec.ID, audioURL); err != nil {
		return nil, p.fail(ctx, rec.ID, fmt.Errorf("%w: persist audio url: %v", ErrUpload, err))
	}
	p.publish(rec.ID, progress.StageUpload, "audio stored")

	audioURL, data, err := p.normalize(ctx, in.Filename, audioURL, in.Data)
	if err != nil {
		return nil, p.fail(ctx, rec.ID, fmt.Errorf("%w: %v", ErrConversion, err))
	}
	p.publish(rec.ID, progress.StageNormalize, "format ready")

	path := Route(int64(len(data)), p.cfg.DirectSizeLimit)
	logger.Info().
		Str("path", string(path)).
		Int("size", len(data)).
		Int64("threshold", p.cfg.DirectSizeLimit).
		Msg("transcription path selected")

	res, err := p.transcribe(ctx, rec.ID, path, audioURL, data)
	if err != nil {
		return nil, p.fail(ctx, rec.ID, fmt.Errorf("%w: %v", ErrTranscription, err))
	}
	if _, err := p.recordings.SetTranscription(ctx, rec.ID, res.Text, res.FailedSegments); err != nil {
		return nil, p.fail(ctx, rec.ID, fmt.Errorf("%w: persist transcript: %v", ErrTranscription, err))
	}

	outcome := p.analyze(ctx, rec.ID, res.Text)
	updated, err := p.recordings.CompleteAnalysis(ctx, rec.ID, outcome.Basic, outcome.Deep)
	if err != nil {
		return nil, p.fail(ctx, rec.ID, fmt.Errorf("persist analysis: %w", err))
	}
	p.publish(rec.ID, progress.StageAnalyze, "analysis stored")

	logger.Info().
		Int("failed_segments", updated.FailedSegments).
		Bool("basic_ok", outcome.BasicOK).
		Bool("deep_ok", outcome.DeepOK).
		Msg("recording processed")

	return updated, nil
}

// Run is Accept followed by Process in one call.
func (p *Pipeline) Run(ctx context.Context, in Input) (*models.Recording, error) {
	rec, err := p.Accept(ctx, in)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, rec, in)
}

func (p *Pipeline) upload(ctx context.Context, id uuid.UUID, in Input) (string, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.UploadTimeout)
	defer cancel()

	key := fmt.Sprintf("recordings/%s/%s", id, in.Filename)
	return p.uploader.Upload(ctx, key, in.Data)
}

func (p *Pipeline) normalize(ctx context.Context, filename, audioURL string, data []byte) (string, []byte, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.NormalizeTimeout)
	defer cancel()

	return p.normalizer.Normalize(ctx, filename, audioURL, data)
}

func (p *Pipeline) transcribe(ctx context.Context, id uuid.UUID, path Path, audioURL string, data []byte) (transcriber.Result, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.TranscribeTimeout)
	defer cancel()

	var (
		res transcriber.Result
		err error
	)
	switch path {
	case PathDirect:
		res, err = p.direct.Transcribe(ctx, audioURL)
	default:
		res, err = p.chunked.Transcribe(ctx, id, data)
	}
	if err != nil {
		return transcriber.Result{}, err
	}

	// Частичные пропуски допустимы, полный провал — нет.
	if res.TotalSegments > 0 && res.FailedSegments == res.TotalSegments {
		return transcriber.Result{}, fmt.Errorf("all %d segments failed", res.TotalSegments)
	}
	return res, nil
}

func (p *Pipeline) analyze(ctx context.Context, id uuid.UUID, transcript string) analyzer.Outcome {
	ctx, cancel := p.stageContext(ctx, p.cfg.AnalyzeTimeout)
	defer cancel()

	return p.analyzer.Analyze(ctx, id, transcript)
}

// fail marks the recording failed and returns the stage error. A failure of
// the mark itself is logged but does not mask the original cause.
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, cause error) error {
	if _, err := p.recordings.MarkFailed(ctx, id, cause.Error()); err != nil {
		p.logger.Error().Err(err).
			Stringer("recording_id", id).
			Str("cause", cause.Error()).
			Msg("failed to mark recording failed")
	}
	return cause
}

func (p *Pipeline) publish(id uuid.UUID, stage progress.Stage, msg string) {
	p.bus.Publish(progress.Event{RecordingID: id, Stage: stage, Done: 1, Total: 1, Message: msg})
}

func (p *Pipeline) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
