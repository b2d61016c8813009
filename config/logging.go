package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// LogConfig controls the application logger.
type LogConfig struct {
	Level string
	File  string
}

// DefaultLogFilePath returns the path to the backend log file.
func DefaultLogFilePath() string {
	return filepath.Join("logs", "loan-api.log")
}

// NewLogger builds the application logger. When cfg.File is set, output is
// written to stdout and appended to that file. The returned closer releases
// the file.
func NewLogger(cfg LogConfig, prefix string) (*charmlog.Logger, io.Writer, func() error, error) {
	level := charmlog.InfoLevel
	if cfg.Level != "" {
		parsed, err := charmlog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse LOG_LEVEL %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var writer io.Writer = os.Stdout
	closer := func() error { return nil }

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), os.ModePerm); err != nil {
			return nil, nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		logFile, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writer = io.MultiWriter(os.Stdout, logFile)
		closer = logFile.Close
	}

	logger := charmlog.NewWithOptions(writer, charmlog.Options{
		Level:           level,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmlog.TextFormatter,
	})
	return logger, writer, closer, nil
}
