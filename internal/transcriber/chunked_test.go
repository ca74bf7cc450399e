package transcriber

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/recording-pipeline/internal/progress"
)

// blobStoreStub returns a deterministic URL per key so the fake transcriber
// can map a URL back to the uploaded payload.
type blobStoreStub struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

func newBlobStoreStub() *blobStoreStub {
	return &blobStoreStub{uploads: make(map[string][]byte)}
}

func (s *blobStoreStub) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads["blob://"+key] = append([]byte(nil), data...)
	return "blob://" + key, nil
}

// clientStub transcribes a segment into a readable marker derived from its
// payload, optionally injecting failures.
type clientStub struct {
	mu        sync.Mutex
	blobs     *blobStoreStub
	failWith  map[string]error // url -> error on every call
	failTimes map[string]int   // url -> number of leading transient failures
	delay     bool
	calls     map[string]int
	inFlight  int32
	maxSeen   int32
}

func newClientStub(blobs *blobStoreStub) *clientStub {
	return &clientStub{
		blobs:     blobs,
		failWith:  make(map[string]error),
		failTimes: make(map[string]int),
		calls:     make(map[string]int),
	}
}

func (c *clientStub) Transcribe(ctx context.Context, audioURL string) (string, error) {
	cur := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&c.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&c.maxSeen, seen, cur) {
			break
		}
	}

	if c.delay {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	}

	c.mu.Lock()
	c.calls[audioURL]++
	n := c.calls[audioURL]
	err, failing := c.failWith[audioURL]
	transientLeft := c.failTimes[audioURL]
	data := c.blobs.uploads[audioURL]
	c.mu.Unlock()

	if failing {
		return "", err
	}
	if n <= transientLeft {
		return "", fmt.Errorf("server error: status=503")
	}
	return "text(" + string(data) + ")", nil
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func newChunkedForTest(t *testing.T, client SegmentTranscriber, blobs BlobStore, cfg ChunkedConfig) *Chunked {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	c, err := NewChunked(client, blobs, cfg)
	require.NoError(t, err)
	return c
}

func TestNewChunked_Validation(t *testing.T) {
	blobs := newBlobStoreStub()
	client := newClientStub(blobs)

	_, err := NewChunked(nil, blobs, ChunkedConfig{SegmentSize: 10})
	require.Error(t, err)

	_, err = NewChunked(client, nil, ChunkedConfig{SegmentSize: 10})
	require.Error(t, err)

	_, err = NewChunked(client, blobs, ChunkedConfig{SegmentSize: 0})
	require.Error(t, err)

	_, err = NewChunked(client, blobs, ChunkedConfig{SegmentSize: 10, SegmentRetries: -1})
	require.Error(t, err)
}

func TestChunked_MergesInIndexOrder(t *testing.T) {
	// Randomized completion order must not leak into the merged transcript:
	// the merge is by segment index, not completion order.
	ctx := context.Background()
	blobs := newBlobStoreStub()
	client := newClientStub(blobs)
	client.delay = true

	data := payload(100)
	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize: 10,
		Workers:     5,
	})

	res, err := chunked.Transcribe(ctx, uuid.New(), data)
	require.NoError(t, err)
	require.Equal(t, 10, res.TotalSegments)
	require.Zero(t, res.FailedSegments)

	var want []string
	for _, seg := range Split(int64(len(data)), 10) {
		want = append(want, "text("+string(data[seg.Start:seg.End])+")")
	}
	assert.Equal(t, strings.Join(want, "\n"), res.Text)
}

func TestChunked_GapMarkerAtFailedSegmentPosition(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStoreStub()
	client := newClientStub(blobs)

	recID := uuid.New()
	// Segment 1 of 3 fails permanently (4xx-style).
	failURL := fmt.Sprintf("blob://recordings/%s/segments/%03d", recID, 1)
	client.failWith[failURL] = backoff.Permanent(fmt.Errorf("transcription rejected: status=422"))

	data := payload(30)
	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize:    10,
		Workers:        3,
		SegmentRetries: 2,
	})

	res, err := chunked.Transcribe(ctx, recID, data)
	require.NoError(t, err)
	require.Equal(t, 1, res.FailedSegments)
	require.Equal(t, 3, res.TotalSegments)

	parts := strings.Split(res.Text, "\n")
	require.Len(t, parts, 3)
	assert.Equal(t, "text("+string(data[:10])+")", parts[0])
	assert.Equal(t, GapMarker, parts[1])
	assert.Equal(t, "text("+string(data[20:])+")", parts[2])

	// Permanent errors must not burn the retry budget.
	assert.Equal(t, 1, client.calls[failURL])
}

func TestChunked_TransientFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStoreStub()
	client := newClientStub(blobs)

	recID := uuid.New()
	flakyURL := fmt.Sprintf("blob://recordings/%s/segments/%03d", recID, 0)
	client.failTimes[flakyURL] = 2 // fails twice, succeeds on the third attempt

	data := payload(20)
	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize:    10,
		Workers:        2,
		SegmentRetries: 2,
	})

	res, err := chunked.Transcribe(ctx, recID, data)
	require.NoError(t, err)
	assert.Zero(t, res.FailedSegments)
	assert.Equal(t, 3, client.calls[flakyURL])
	assert.NotContains(t, res.Text, GapMarker)
}

func TestChunked_RetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStoreStub()
	client := newClientStub(blobs)

	recID := uuid.New()
	brokenURL := fmt.Sprintf("blob://recordings/%s/segments/%03d", recID, 0)
	client.failTimes[brokenURL] = 100 // never recovers

	data := payload(20)
	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize:    10,
		Workers:        1,
		SegmentRetries: 2,
	})

	res, err := chunked.Transcribe(ctx, recID, data)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedSegments)
	// 1 initial attempt + 2 retries
	assert.Equal(t, 3, client.calls[brokenURL])
	assert.Equal(t, GapMarker, strings.Split(res.Text, "\n")[0])
}

func TestChunked_AllSegmentsFailedIsNotAnError(t *testing.T) {
	// Total failure is reported through the result; the caller decides it is
	// fatal, not the component.
	ctx := context.Background()
	blobs := newBlobStoreStub()
	blobs.err = fmt.Errorf("bucket unavailable")
	client := newClientStub(blobs)

	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize: 10,
		Workers:     2,
	})

	res, err := chunked.Transcribe(ctx, uuid.New(), payload(30))
	require.NoError(t, err)
	assert.Equal(t, 3, res.FailedSegments)
	assert.Equal(t, 3, res.TotalSegments)
}

func TestChunked_BoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStoreStub()
	client := newClientStub(blobs)
	client.delay = true

	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize: 5,
		Workers:     3,
	})

	_, err := chunked.Transcribe(ctx, uuid.New(), payload(100))
	require.NoError(t, err)
	assert.LessOrEqual(t, client.maxSeen, int32(3))
}

func TestChunked_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blobs := newBlobStoreStub()
	client := newClientStub(blobs)
	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize: 10,
		Workers:     2,
	})

	_, err := chunked.Transcribe(ctx, uuid.New(), payload(30))
	require.ErrorIs(t, err, context.Canceled)
}

func TestChunked_ProgressCountsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStoreStub()
	client := newClientStub(blobs)
	client.delay = true

	bus := progress.NewBus(64)
	chunked := newChunkedForTest(t, client, blobs, ChunkedConfig{
		SegmentSize: 5,
		Workers:     4,
		Progress:    bus,
	})

	_, err := chunked.Transcribe(ctx, uuid.New(), payload(60))
	require.NoError(t, err)

	bus.Close()
	var dones []int
	for e := range bus.Events() {
		assert.Equal(t, 12, e.Total)
		dones = append(dones, e.Done)
	}
	require.Len(t, dones, 12)
	for i := 1; i < len(dones); i++ {
		assert.Greater(t, dones[i], dones[i-1])
	}
	assert.Equal(t, 12, dones[len(dones)-1])
}
