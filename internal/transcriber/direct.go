package transcriber

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

type DirectConfig struct {
	Retries int
	Logger  zerolog.Logger
}

// Direct is the degenerate one-segment path for payloads under the size
// threshold. Retry semantics match the chunked path; with a single segment
// there is nothing to merge and permanent failure means total transcription
// failure, which is fatal to the run.
type Direct struct {
	client SegmentTranscriber
	cfg    DirectConfig
	logger zerolog.Logger
}

func NewDirect(client SegmentTranscriber, cfg DirectConfig) (*Direct, error) {
	if client == nil {
		return nil, fmt.Errorf("segment transcriber is required")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries cannot be negative")
	}
	return &Direct{
		client: client,
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "direct_transcriber").Logger(),
	}, nil
}

func (d *Direct) Transcribe(ctx context.Context, audioURL string) (Result, error) {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(newSegmentBackoff(), uint64(d.cfg.Retries)),
		ctx,
	)

	var text string
	op := func() error {
		s, err := d.client.Transcribe(ctx, audioURL)
		if err != nil {
			return err
		}
		text = s
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return Result{}, fmt.Errorf("direct transcription: %w", err)
	}

	return Result{Text: text, TotalSegments: 1}, nil
}
