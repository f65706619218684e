package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel переводит имя уровня в slog.Level.
// Регистр не важен; неизвестное или пустое значение — INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevel читает уровень из LOG_LEVEL.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// SetupLogger создаёт логгер сервиса (stdout) и делает его глобальным.
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stdout)
	slog.SetDefault(logger)
	return logger
}

// NewLogger создаёт логгер с выводом в w.
//
// LOG_FORMAT=text включает человекочитаемый вывод, иначе JSON.
// CLI пишет логи в stderr, чтобы stdout оставался за экраном мастера.
func NewLogger(w io.Writer) *slog.Logger {
	level := LogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// WithRunID добавляет run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithSiteID добавляет site_id.
func WithSiteID(logger *slog.Logger, siteID string) *slog.Logger {
	return logger.With("site_id", siteID)
}

// WithStep добавляет step.
func WithStep(logger *slog.Logger, step string) *slog.Logger {
	return logger.With("step", step)
}
