package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/analyzer"
	"github.com/romariotrain/recording-pipeline/internal/app"
	"github.com/romariotrain/recording-pipeline/internal/config"
	"github.com/romariotrain/recording-pipeline/internal/distributor"
	"github.com/romariotrain/recording-pipeline/internal/normalizer"
	"github.com/romariotrain/recording-pipeline/internal/pipeline"
	"github.com/romariotrain/recording-pipeline/internal/progress"
	"github.com/romariotrain/recording-pipeline/internal/recording/httpapi"
	"github.com/romariotrain/recording-pipeline/internal/recording/service"
	"github.com/romariotrain/recording-pipeline/internal/storage/postgres"
	"github.com/romariotrain/recording-pipeline/internal/transcriber"
	"github.com/romariotrain/recording-pipeline/internal/uploader"
)

func run(logger zerolog.Logger) app.Runner {
	return func(ctx context.Context) error {
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err := postgres.Connect(ctx, cfg.Database.GetDSN())
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()

		if err := postgres.Migrate(db, "file://migrations"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		s3Client, err := uploader.NewClient(uploader.Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			UploadTimeout:   cfg.S3.UploadTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}

		conversionClient, err := normalizer.NewConversionClient(normalizer.ConversionConfig{
			BaseURL:      cfg.Conversion.BaseURL,
			PollInterval: cfg.Conversion.PollInterval,
			PollTimeout:  cfg.Conversion.PollTimeout,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("conversion client: %w", err)
		}

		norm, err := normalizer.New(conversionClient, normalizer.Config{
			TargetFormat: cfg.Conversion.TargetFormat,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("normalizer: %w", err)
		}

		transcriptionClient, err := transcriber.NewClient(transcriber.ClientConfig{
			BaseURL: cfg.Transcription.BaseURL,
			Timeout: cfg.Transcription.RequestTimeout,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("transcription client: %w", err)
		}

		bus := progress.NewBus(256)
		defer bus.Close()
		go logProgress(bus, logger)

		direct, err := transcriber.NewDirect(transcriptionClient, transcriber.DirectConfig{
			Retries: cfg.Transcription.SegmentRetries,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("direct transcriber: %w", err)
		}

		chunked, err := transcriber.NewChunked(transcriptionClient, s3Client, transcriber.ChunkedConfig{
			SegmentSize:    cfg.Transcription.SegmentSize,
			Workers:        cfg.Transcription.Workers,
			SegmentRetries: cfg.Transcription.SegmentRetries,
			Logger:         logger,
			Progress:       bus,
		})
		if err != nil {
			return fmt.Errorf("chunked transcriber: %w", err)
		}

		llm, err := analyzer.NewLLMClient(analyzer.LLMConfig{
			URL:     cfg.LLM.URL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("llm client: %w", err)
		}

		dual, err := analyzer.NewDual(llm, bus, logger)
		if err != nil {
			return fmt.Errorf("analyzer: %w", err)
		}

		repo := postgres.NewRecordingRepo(db)
		outboxRepo := postgres.NewOutboxRepo(db)
		svc := service.New(repo, outboxRepo, logger)

		pipe, err := pipeline.New(svc, s3Client, norm, direct, chunked, dual, bus, pipeline.Config{
			DirectSizeLimit:   cfg.Transcription.DirectSizeLimit,
			UploadTimeout:     cfg.Pipeline.UploadTimeout,
			NormalizeTimeout:  cfg.Pipeline.NormalizeTimeout,
			TranscribeTimeout: cfg.Pipeline.TranscribeTimeout,
			AnalyzeTimeout:    cfg.Pipeline.AnalyzeTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		emailSender, err := distributor.NewSESSender(distributor.SESConfig{
			Region:          cfg.Email.Region,
			AccessKeyID:     cfg.Email.AccessKeyID,
			SecretAccessKey: cfg.Email.SecretAccessKey,
			FromEmail:       cfg.Email.FromEmail,
		})
		if err != nil {
			return fmt.Errorf("email sender: %w", err)
		}

		dist := distributor.New(svc, postgres.NewTaskRepo(db), postgres.NewJournalRepo(db), emailSender, logger)

		h := httpapi.New(svc, pipe, dist, logger)
		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           httpapi.NewRouter(h),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				errCh <- err
			}
		}()

		logger.Info().Str("addr", srv.Addr).Msg("http server started")

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil

		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("listen and serve: %w", err)
		}
	}
}

// logProgress — единственный подписчик шины прогресса.
func logProgress(bus *progress.Bus, logger zerolog.Logger) {
	for e := range bus.Events() {
		logger.Info().
			Stringer("recording_id", e.RecordingID).
			Str("stage", string(e.Stage)).
			Int("percent", e.Percent).
			Str("message", e.Message).
			Msg("progress")
	}
}
