package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// LLMClient calls a chat-completions style gateway and decodes the structured
// JSON the model was instructed to return. The gateway is free to wrap the
// JSON in prose; the first balanced-brace substring is what gets decoded.
type LLMClient struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	logger     zerolog.Logger
}

type LLMConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

func NewLLMClient(cfg LLMConfig) (*LLMClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("llm gateway url is empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &LLMClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     cfg.Logger.With().Str("component", "llm_client").Logger(),
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Invoke sends the prompt and unmarshals the model's JSON reply into out.
// The model may return a result satisfying only the required subset of the
// requested shape; missing keys simply stay zero in out.
func (c *LLMClient) Invoke(ctx context.Context, prompt string, out any) error {
	reqBody, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.0,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("llm server error: %s", body)
			return lastErr
		case resp.StatusCode >= 400:
			lastErr = fmt.Errorf("llm request rejected: status=%d body=%s", resp.StatusCode, body)
			return backoff.Permanent(lastErr)
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
			lastErr = fmt.Errorf("unexpected llm response: %s", body)
			return lastErr
		}

		raw, ok := jsonSubstring(parsed.Choices[0].Message.Content)
		if !ok {
			lastErr = fmt.Errorf("no json object in llm reply")
			return lastErr
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = fmt.Errorf("decode llm json: %w", err)
			return lastErr
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("llm invoke failed: %w", lastErr)
	}
	return nil
}

func jsonSubstring(s string) (string, bool) {
	start := bytes.IndexByte([]byte(s), '{')
	end := bytes.LastIndexByte([]byte(s), '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
