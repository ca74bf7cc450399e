package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Client calls the external transcription service. It performs a single
// request per call; retry policy belongs to the callers (Chunked/Direct), so
// permanent failures are wrapped with backoff.Permanent to stop their loops.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     cfg.Logger.With().Str("component", "transcription_client").Logger(),
	}, nil
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
	Reason     string `json:"reason,omitempty"`
}

// Transcribe sends one audio URL to the service and returns the transcript.
// Network failures and 5xx responses are transient; 4xx responses indicate a
// payload the service will never accept and come back as permanent errors.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcribeRequest{AudioURL: audioURL})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("transcription server error: status=%d body=%s", resp.StatusCode, respBody)
	case resp.StatusCode >= 400:
		return "", backoff.Permanent(fmt.Errorf("transcription rejected: status=%d body=%s", resp.StatusCode, respBody))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode transcript: %w body=%s", err, respBody)
	}
	if parsed.Transcript == "" {
		return "", fmt.Errorf("empty transcript in response")
	}
	return parsed.Transcript, nil
}
