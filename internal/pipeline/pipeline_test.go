package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/recording-pipeline/internal/analyzer"
	"github.com/romariotrain/recording-pipeline/internal/distributor"
	"github.com/romariotrain/recording-pipeline/internal/recording/models"
	"github.com/romariotrain/recording-pipeline/internal/recording/repository"
	"github.com/romariotrain/recording-pipeline/internal/recording/service"
	"github.com/romariotrain/recording-pipeline/internal/transcriber"
)

type uploaderFake struct {
	err   error
	block bool // hang until the stage deadline fires
	calls int
	keys  []string
}

func (u *uploaderFake) Upload(ctx context.Context, key string, _ []byte) (string, error) {
	u.calls++
	u.keys = append(u.keys, key)
	if u.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn/" + key, nil
}

type normalizerFake struct {
	err error
}

func (n *normalizerFake) Normalize(_ context.Context, _, audioURL string, data []byte) (string, []byte, error) {
	if n.err != nil {
		return "", nil, n.err
	}
	return audioURL, data, nil
}

type directFake struct {
	res   transcriber.Result
	err   error
	calls int
}

func (d *directFake) Transcribe(_ context.Context, _ string) (transcriber.Result, error) {
	d.calls++
	return d.res, d.err
}

type chunkedFake struct {
	res   transcriber.Result
	err   error
	calls int
	size  int
}

func (c *chunkedFake) Transcribe(_ context.Context, _ uuid.UUID, data []byte) (transcriber.Result, error) {
	c.calls++
	c.size = len(data)
	return c.res, c.err
}

type analyzerFake struct {
	outcome    analyzer.Outcome
	transcript string
}

func (a *analyzerFake) Analyze(_ context.Context, _ uuid.UUID, transcript string) analyzer.Outcome {
	a.transcript = transcript
	return a.outcome
}

type fixture struct {
	pipeline *Pipeline
	service  *service.Service
	uploader *uploaderFake
	direct   *directFake
	chunked  *chunkedFake
	analyzer *analyzerFake
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		uploader: &uploaderFake{},
		direct: &directFake{
			res: transcriber.Result{Text: "direct transcript", TotalSegments: 1},
		},
		chunked: &chunkedFake{
			res: transcriber.Result{Text: "part one\npart two", TotalSegments: 2},
		},
		analyzer: &analyzerFake{
			outcome: analyzer.Outcome{
				Basic:   models.Analysis{Summary: "weekly sync"},
				BasicOK: true,
				DeepOK:  true,
			},
		},
	}
	f.service = service.New(repository.NewMemoryRepository(), nil, zerolog.Nop())

	var err error
	f.pipeline, err = New(f.service, f.uploader, &normalizerFake{}, f.direct, f.chunked, f.analyzer, nil, cfg, zerolog.Nop())
	require.NoError(t, err)
	return f
}

func input(size int) Input {
	return Input{
		TenantID: uuid.New(),
		Filename: "standup.mp3",
		Title:    "Weekly sync",
		Duration: 1800,
		Data:     make([]byte, size),
	}
}

func TestRun_SmallFileGoesDirect(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})

	rec, err := f.pipeline.Run(context.Background(), input(20))

	require.NoError(t, err)
	assert.Equal(t, models.AnalyzedStatus, rec.Status)
	assert.Equal(t, "direct transcript", rec.Transcription)
	assert.Equal(t, "weekly sync", rec.Analysis.Summary)
	assert.Equal(t, 1, f.direct.calls)
	assert.Zero(t, f.chunked.calls)
	assert.Equal(t, "direct transcript", f.analyzer.transcript)
	require.Len(t, f.uploader.keys, 1)
	assert.Contains(t, f.uploader.keys[0], "standup.mp3")
}

func TestRun_LargeFileGoesChunked(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})

	rec, err := f.pipeline.Run(context.Background(), input(40))

	require.NoError(t, err)
	assert.Equal(t, models.AnalyzedStatus, rec.Status)
	assert.Equal(t, "part one\npart two", rec.Transcription)
	assert.Equal(t, 1, f.chunked.calls)
	assert.Equal(t, 40, f.chunked.size)
	assert.Zero(t, f.direct.calls)
}

func TestRun_UploadFailureMarksFailed(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})
	f.uploader.err = fmt.Errorf("bucket unavailable")

	in := input(20)
	_, err := f.pipeline.Run(context.Background(), in)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpload)

	recs, lerr := f.service.ListRecordings(context.Background(), in.TenantID)
	require.NoError(t, lerr)
	require.Len(t, recs, 1)
	assert.Equal(t, models.FailedStatus, recs[0].Status)
}

func TestRun_UploadFailureRejectsDistribution(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})
	f.uploader.err = fmt.Errorf("bucket unavailable")

	in := input(20)
	rec, err := f.pipeline.Accept(context.Background(), in)
	require.NoError(t, err)

	_, err = f.pipeline.Process(context.Background(), rec, in)
	require.ErrorIs(t, err, ErrUpload)

	failed, err := f.service.GetRecording(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FailedStatus, failed.Status)
	assert.Contains(t, failed.FailureReason, "bucket unavailable")

	_, err = f.service.RecordDistribution(context.Background(), rec.ID, models.DistributionEntry{
		Result: models.DistributionResult{EmailSent: true},
	})
	assert.ErrorIs(t, err, models.ErrNotDistributable)
}

func TestRun_PartialSegmentFailureIsTolerated(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})
	f.chunked.res = transcriber.Result{
		Text:           "part one\n" + transcriber.GapMarker + "\npart three",
		FailedSegments: 1,
		TotalSegments:  3,
	}

	rec, err := f.pipeline.Run(context.Background(), input(100))

	require.NoError(t, err)
	assert.Equal(t, models.AnalyzedStatus, rec.Status)
	assert.Equal(t, 1, rec.FailedSegments)
	assert.Contains(t, rec.Transcription, transcriber.GapMarker)
}

func TestRun_AllSegmentsFailedMarksFailed(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})
	f.chunked.res = transcriber.Result{
		Text:           transcriber.GapMarker + "\n" + transcriber.GapMarker,
		FailedSegments: 2,
		TotalSegments:  2,
	}

	in := input(100)
	rec, err := f.pipeline.Accept(context.Background(), in)
	require.NoError(t, err)

	_, err = f.pipeline.Process(context.Background(), rec, in)

	require.ErrorIs(t, err, ErrTranscription)

	failed, gerr := f.service.GetRecording(context.Background(), rec.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.FailedStatus, failed.Status)
	assert.Empty(t, failed.Transcription)
}

func TestRun_ConversionFailureMarksFailed(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})

	var err error
	f.pipeline, err = New(f.service, f.uploader, &normalizerFake{err: errors.New("codec rejected")},
		f.direct, f.chunked, f.analyzer, nil, Config{DirectSizeLimit: 25}, zerolog.Nop())
	require.NoError(t, err)

	in := input(20)
	rec, err := f.pipeline.Accept(context.Background(), in)
	require.NoError(t, err)

	_, err = f.pipeline.Process(context.Background(), rec, in)

	require.ErrorIs(t, err, ErrConversion)

	failed, gerr := f.service.GetRecording(context.Background(), rec.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.FailedStatus, failed.Status)
}

func TestRun_FailedAnalysisBranchesStillAdvance(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})
	f.analyzer.outcome = analyzer.Outcome{} // обе ветки провалились

	rec, err := f.pipeline.Run(context.Background(), input(20))

	require.NoError(t, err)
	assert.Equal(t, models.AnalyzedStatus, rec.Status)
	assert.True(t, rec.Analysis.IsEmpty())
	assert.True(t, rec.DeepAnalysis.IsEmpty())
}

func TestAccept_Validation(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25})

	_, err := f.pipeline.Accept(context.Background(), Input{TenantID: uuid.New(), Data: []byte("x")})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.pipeline.Accept(context.Background(), Input{TenantID: uuid.New(), Filename: "a.mp3"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestRun_UploadStageBudgetEnforced(t *testing.T) {
	f := newFixture(t, Config{DirectSizeLimit: 25, UploadTimeout: 20 * time.Millisecond})
	f.uploader.block = true

	in := input(20)
	_, err := f.pipeline.Run(context.Background(), in)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpload)
	assert.Contains(t, err.Error(), context.DeadlineExceeded.Error())

	recs, lerr := f.service.ListRecordings(context.Background(), in.TenantID)
	require.NoError(t, lerr)
	require.Len(t, recs, 1)
	assert.Equal(t, models.FailedStatus, recs[0].Status)
}

// segmentBlobs stages segment payloads in memory so the fake transcription
// service can read them back by URL.
type segmentBlobs struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (b *segmentBlobs) Upload(_ context.Context, key string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	url := "blob://" + key
	b.uploads[url] = append([]byte(nil), data...)
	return url, nil
}

type segmentClient struct {
	blobs *segmentBlobs
}

func (c *segmentClient) Transcribe(_ context.Context, audioURL string) (string, error) {
	c.blobs.mu.Lock()
	defer c.blobs.mu.Unlock()
	data, ok := c.blobs.uploads[audioURL]
	if !ok || len(data) == 0 {
		return "", fmt.Errorf("unknown segment %s", audioURL)
	}
	return fmt.Sprintf("%c-part", data[0]), nil
}

func TestRun_ChunkedRecordingReachesDistributed(t *testing.T) {
	ctx := context.Background()

	blobs := &segmentBlobs{uploads: make(map[string][]byte)}
	chunked, err := transcriber.NewChunked(&segmentClient{blobs: blobs}, blobs, transcriber.ChunkedConfig{
		SegmentSize: 20,
		Workers:     2,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	an := &analyzerFake{
		outcome: analyzer.Outcome{
			Basic:   models.Analysis{Summary: "quarterly review", Tasks: []string{"Send recap"}},
			BasicOK: true,
			Deep: models.DeepAnalysis{ActionItems: []models.ActionItem{
				{Task: "Schedule follow-up", Assignee: "Dana", Priority: "high"},
			}},
			DeepOK: true,
		},
	}
	svc := service.New(repository.NewMemoryRepository(), nil, zerolog.Nop())
	pipe, err := New(svc, &uploaderFake{}, &normalizerFake{}, &directFake{}, chunked, an, nil,
		Config{DirectSizeLimit: 25}, zerolog.Nop())
	require.NoError(t, err)

	in := input(40)
	copy(in.Data[:20], bytes.Repeat([]byte{'a'}, 20))
	copy(in.Data[20:], bytes.Repeat([]byte{'b'}, 20))

	rec, err := pipe.Run(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.AnalyzedStatus, rec.Status)
	assert.Equal(t, "a-part\nb-part", rec.Transcription)
	assert.Zero(t, rec.FailedSegments)

	tasks := &taskSink{}
	journal := &journalSink{}
	mail := &mailSink{}
	dist := distributor.New(svc, tasks, journal, mail, zerolog.Nop())

	updated, result, err := dist.Distribute(ctx, rec.ID, models.DistributionSelection{
		CreateTasks:        true,
		CreateJournalEntry: true,
		SendEmail:          true,
		EmailTo:            "team@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, models.DistributedStatus, updated.Status)
	assert.Equal(t, 2, result.TasksCreated)
	assert.True(t, result.JournalCreated)
	assert.True(t, result.EmailSent)
	assert.Empty(t, result.Errors)
	require.Len(t, updated.DistributionLog, 1)
	assert.Len(t, tasks.created, 2)
	assert.Equal(t, 1, journal.created)
	assert.Equal(t, 1, mail.sent)
}

type taskSink struct {
	created []distributor.Task
}

func (s *taskSink) Create(_ context.Context, task *distributor.Task) error {
	s.created = append(s.created, *task)
	return nil
}

type journalSink struct {
	created int
}

func (s *journalSink) Create(_ context.Context, _ *distributor.JournalEntry) error {
	s.created++
	return nil
}

type mailSink struct {
	sent int
}

func (s *mailSink) Send(_ context.Context, _, _, _ string) error {
	s.sent++
	return nil
}
