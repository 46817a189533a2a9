package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
)

// ServiceName is attached to every record.
const ServiceName = "graytrack"

// Logger is the service-wide slog logger. It satisfies the narrow Logger
// interfaces the other packages declare.
type Logger struct {
	*slog.Logger
}

// New builds a logger for cfg, tagging every record with the service name
// and version. An unusable log file falls back to stderr so logging never
// blocks startup.
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWithWriter(openOutput(cfg.Output, cfg.File.Path), cfg, version)
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

func openOutput(output, path string) io.Writer {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr
	case "file":
		if f, err := openFile(path); err == nil {
			return f
		}
		return os.Stderr
	default:
		return os.Stdout
	}
}

func openFile(path string) (*os.File, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // path comes from operator config
}

// parseLevel accepts debug, info, warn (or warning) and error in any case.
// Anything else is info.
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

// With returns a child logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags a child logger with component=name.
//
//	coord.SetLogger(logger.Component("coordinator"))
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default logs JSON at info to stdout. main uses it until the config loads.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
