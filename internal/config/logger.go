package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/httplog/v3"
)

// NewLogger builds the process-wide JSON logger. Records use the same ECS
// field names as the request logger so both land in one index.
func NewLogger(app AppConfig) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(app.Env != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       parseLevel(app.LogLevel),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-timekeeping"),
		slog.String("env", app.Env),
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
