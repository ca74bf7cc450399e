// Package normalizer guarantees that audio handed to the transcription paths
// is in a codec the transcription service ingests. Supported formats pass
// through untouched; anything else goes through the external conversion
// service, which is a multi-minute job and is never retried automatically —
// a blind retry risks a duplicate billed conversion.
package normalizer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Formats the transcription service accepts directly.
var supportedFormats = map[string]struct{}{
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".mp4":  {},
	".mpeg": {},
	".mpga": {},
	".oga":  {},
	".ogg":  {},
	".wav":  {},
	".webm": {},
}

// Converter is the external conversion service contract.
type Converter interface {
	Convert(ctx context.Context, sourceURL, targetFormat string) (string, error)
}

type Config struct {
	TargetFormat    string // format unsupported inputs are converted to
	DownloadTimeout time.Duration
	Logger          zerolog.Logger
}

type Normalizer struct {
	converter  Converter
	httpClient *http.Client
	target     string
	logger     zerolog.Logger
}

func New(converter Converter, cfg Config) (*Normalizer, error) {
	if converter == nil {
		return nil, fmt.Errorf("converter is required")
	}
	if cfg.TargetFormat == "" {
		cfg.TargetFormat = "mp3"
	}
	if _, ok := supportedFormats["."+cfg.TargetFormat]; !ok {
		return nil, fmt.Errorf("target format %q is not ingestible", cfg.TargetFormat)
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 5 * time.Minute
	}

	return &Normalizer{
		converter:  converter,
		httpClient: &http.Client{Timeout: cfg.DownloadTimeout},
		target:     cfg.TargetFormat,
		logger:     cfg.Logger.With().Str("component", "normalizer").Logger(),
	}, nil
}

// Supported reports whether the transcription service ingests the file as-is.
func Supported(filename string) bool {
	_, ok := supportedFormats[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Normalize returns audio guaranteed ingestible by the transcription paths.
// For supported formats it is a pass-through. For everything else it blocks
// on the conversion service and downloads the converted payload, since the
// chunked path needs the bytes for partitioning.
func (n *Normalizer) Normalize(ctx context.Context, filename, audioURL string, data []byte) (string, []byte, error) {
	if Supported(filename) {
		return audioURL, data, nil
	}

	n.logger.Info().
		Str("filename", filename).
		Str("target", n.target).
		Msg("unsupported format, converting")

	convertedURL, err := n.converter.Convert(ctx, audioURL, n.target)
	if err != nil {
		return "", nil, fmt.Errorf("convert %s: %w", filename, err)
	}

	converted, err := n.download(ctx, convertedURL)
	if err != nil {
		return "", nil, fmt.Errorf("download converted audio: %w", err)
	}

	return convertedURL, converted, nil
}

func (n *Normalizer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download failed: status=%d body=%s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}
