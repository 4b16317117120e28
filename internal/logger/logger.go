package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/config"
)

// Init configures the global zerolog logger from cfg, writing to stdout.
func Init(cfg config.LogConfig) {
	InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter configures the global zerolog logger to write to w.
func InitWithWriter(cfg config.LogConfig, w io.Writer) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
			With().Timestamp().Logger()
		return
	}

	// JSON output for production
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
