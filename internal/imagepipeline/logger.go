package imagepipeline

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/jtoivane/retkikartta/internal/logging"
)

// Package-level logger specific to the image pipeline service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "imagepipeline.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "imagepipeline", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize imagepipeline file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "imagepipeline")
		closeLogger = func() error { return nil }
	}
}

// CloseLogger releases the package log file. Called on shutdown.
func CloseLogger() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing imagepipeline logger: %v", err)
		}
	}
}
