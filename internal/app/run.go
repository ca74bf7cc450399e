package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type Runner func(ctx context.Context) error

// Run executes a long-lived service until it fails or the process receives
// SIGINT/SIGTERM, and returns the process exit code.
func Run(serviceName string, logger zerolog.Logger, run Runner) int {
	logger = logger.With().Str("service", serviceName).Logger()
	logger.Info().Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		stop()
		// Даем runner'у завершить начатое.
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("shutdown finished with error")
				return 1
			}
		case <-time.After(15 * time.Second):
			logger.Warn().Msg("shutdown grace period expired")
		}
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("failed")
			return 1
		}
		logger.Info().Msg("stopped")
		return 0
	}
}
