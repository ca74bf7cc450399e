package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type converterStub struct {
	resultURL string
	err       error
	calls     int
}

func (c *converterStub) Convert(_ context.Context, _, _ string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.resultURL, nil
}

func TestSupported(t *testing.T) {
	cases := []struct {
		filename string
		want     bool
	}{
		{"standup.mp3", true},
		{"standup.MP3", true},
		{"review.m4a", true},
		{"review.webm", true},
		{"call.flac", true},
		{"call.ogg", true},
		{"meeting.avi", false},
		{"meeting.mkv", false},
		{"noext", false},
	}

	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.want, Supported(tc.filename))
		})
	}
}

func TestNormalize_SupportedFormatPassesThrough(t *testing.T) {
	conv := &converterStub{}
	n, err := New(conv, Config{Logger: zerolog.Nop()})
	require.NoError(t, err)

	data := []byte("audio-bytes")
	url, out, err := n.Normalize(context.Background(), "standup.mp3", "https://cdn/standup.mp3", data)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/standup.mp3", url)
	assert.Equal(t, data, out)
	assert.Zero(t, conv.calls, "supported formats must not hit the converter")
}

func TestNormalize_UnsupportedFormatIsConverted(t *testing.T) {
	converted := []byte("converted-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(converted)
	}))
	defer srv.Close()

	conv := &converterStub{resultURL: srv.URL + "/meeting.mp3"}
	n, err := New(conv, Config{Logger: zerolog.Nop()})
	require.NoError(t, err)

	url, out, err := n.Normalize(context.Background(), "meeting.avi", "https://cdn/meeting.avi", []byte("raw"))

	require.NoError(t, err)
	assert.Equal(t, conv.resultURL, url)
	assert.Equal(t, converted, out)
	assert.Equal(t, 1, conv.calls)
}

func TestNormalize_ConversionFailure(t *testing.T) {
	conv := &converterStub{err: fmt.Errorf("codec not supported")}
	n, err := New(conv, Config{Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, _, err = n.Normalize(context.Background(), "meeting.avi", "https://cdn/meeting.avi", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "codec not supported")
	assert.Equal(t, 1, conv.calls, "conversion must not be retried")
}

func TestConversionClient_SubmitAndPoll(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/convert":
			var req convertRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "https://cdn/meeting.avi", req.SourceURL)
			assert.Equal(t, "mp3", req.TargetFormat)
			_ = json.NewEncoder(w).Encode(convertSubmitResponse{JobID: "job-42"})
		case r.Method == http.MethodGet && r.URL.Path == "/convert/job-42":
			resp := convertJobResponse{Status: "running"}
			if polls.Add(1) >= 2 {
				resp = convertJobResponse{Status: "done", ResultURL: "https://cdn/meeting.mp3"}
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewConversionClient(ConversionConfig{
		BaseURL:      srv.URL,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	url, err := client.Convert(context.Background(), "https://cdn/meeting.avi", "mp3")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/meeting.mp3", url)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestConversionClient_JobFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(convertSubmitResponse{JobID: "job-7"})
			return
		}
		_ = json.NewEncoder(w).Encode(convertJobResponse{Status: "failed", Error: "corrupt container"})
	}))
	defer srv.Close()

	client, err := NewConversionClient(ConversionConfig{
		BaseURL:      srv.URL,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = client.Convert(context.Background(), "https://cdn/meeting.avi", "mp3")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt container")
}

func TestNew_RejectsUningestibleTarget(t *testing.T) {
	_, err := New(&converterStub{}, Config{TargetFormat: "avi", Logger: zerolog.Nop()})
	require.Error(t, err)
}
