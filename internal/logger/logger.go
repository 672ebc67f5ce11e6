package logger

import (
	"io"
	"log/slog"
	"os"

	"study-notes-platform/internal/config"
)

var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.GinMode == "debug",
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(Logger)

	Logger.Info("Structured logging initialized", "level", level.String())
}

// With returns a logger tagged with a component name.
func With(component string, args ...any) *slog.Logger {
	return Logger.With(append([]any{"component", component}, args...)...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
