package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ConversionClient talks to the format conversion service. Conversion is an
// asynchronous job: submit once, then poll until the job settles. Submission
// is deliberately not retried.
type ConversionClient struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       zerolog.Logger
}

type ConversionConfig struct {
	BaseURL      string
	Timeout      time.Duration // per-request timeout
	PollInterval time.Duration
	PollTimeout  time.Duration // total budget for a job to settle
	Logger       zerolog.Logger
}

func NewConversionClient(cfg ConversionConfig) (*ConversionClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("conversion base url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 15 * time.Minute
	}

	return &ConversionClient{
		baseURL:      cfg.BaseURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		logger:       cfg.Logger.With().Str("component", "conversion_client").Logger(),
	}, nil
}

type convertRequest struct {
	SourceURL    string `json:"source_url"`
	TargetFormat string `json:"target_format"`
}

type convertSubmitResponse struct {
	JobID string `json:"job_id"`
}

type convertJobResponse struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
	Error     string `json:"error"`
}

// Convert submits a conversion job and polls until it finishes, returning the
// URL of the converted audio.
func (c *ConversionClient) Convert(ctx context.Context, sourceURL, targetFormat string) (string, error) {
	jobID, err := c.submit(ctx, sourceURL, targetFormat)
	if err != nil {
		return "", err
	}

	c.logger.Info().Str("job_id", jobID).Str("target", targetFormat).Msg("conversion job submitted")

	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("conversion job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
			job, err := c.poll(ctx, jobID)
			if err != nil {
				// Сбой опроса не означает сбой конвертации, продолжаем.
				c.logger.Warn().Err(err).Str("job_id", jobID).Msg("poll failed")
				continue
			}
			switch job.Status {
			case "done":
				return job.ResultURL, nil
			case "failed":
				return "", fmt.Errorf("conversion job %s failed: %s", jobID, job.Error)
			}
		}
	}
}

func (c *ConversionClient) submit(ctx context.Context, sourceURL, targetFormat string) (string, error) {
	payload, err := json.Marshal(convertRequest{SourceURL: sourceURL, TargetFormat: targetFormat})
	if err != nil {
		return "", fmt.Errorf("marshal convert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build convert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit conversion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit conversion: status=%d body=%s", resp.StatusCode, body)
	}

	var out convertSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode convert response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("conversion service returned empty job id")
	}
	return out.JobID, nil
}

func (c *ConversionClient) poll(ctx context.Context, jobID string) (*convertJobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/convert/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, body)
	}

	var out convertJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
