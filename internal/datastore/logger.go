package datastore

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jtoivane/retkikartta/internal/logging"
	"gorm.io/gorm/logger"
)

var (
	dsLogger     *slog.Logger
	dsLevelVar   = new(slog.LevelVar)
	dsLoggerOnce sync.Once
	closeLogger  func() error
)

// getLogger returns the package-level datastore file logger, creating it on
// first use. Falls back to a discard logger if the log file cannot be opened.
func getLogger() *slog.Logger {
	dsLoggerOnce.Do(func() {
		var err error
		logFilePath := filepath.Join("logs", "datastore.log")
		dsLevelVar.Set(slog.LevelInfo)

		dsLogger, closeLogger, err = logging.NewFileLogger(logFilePath, "datastore", dsLevelVar)
		if err != nil {
			log.Printf("Failed to initialize datastore file logger at %s: %v", logFilePath, err)
			fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: dsLevelVar})
			dsLogger = slog.New(fbHandler).With("service", "datastore")
			closeLogger = func() error { return nil }
		}
	})
	return dsLogger
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
