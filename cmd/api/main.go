package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/app"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	os.Exit(app.Run("recording-api", logger, run(logger)))
}
