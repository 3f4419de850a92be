package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldops/fieldsync/internal/config"
)

// logSettings is read from FIELDSYNC_LOG_LEVEL and FIELDSYNC_LOG_FORMAT,
// with the unprefixed LOG_LEVEL as a fallback for the level
type logSettings struct {
	level  string
	format string
}

func logSettingsFromEnv() logSettings {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	s := logSettings{
		level:  v.GetString("LOG_LEVEL"),
		format: v.GetString("LOG_FORMAT"),
	}
	if s.level == "" {
		s.level = os.Getenv("LOG_LEVEL")
	}
	return s
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// newLogger builds the process logger. Unknown settings fall back to JSON at
// info level and are reported through the returned logger.
func newLogger(w io.Writer, s logSettings) *slog.Logger {
	level, levelErr := parseLogLevel(s.level)
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	var formatErr error
	switch strings.ToLower(s.format) {
	case "", "json":
		base = slog.NewJSONHandler(w, opts)
	case "text":
		base = slog.NewTextHandler(w, opts)
	default:
		base = slog.NewJSONHandler(w, opts)
		formatErr = fmt.Errorf("unknown log format %q", s.format)
	}

	logger := slog.New(spanHandler{next: base})
	if levelErr != nil {
		logger.Warn("Invalid log level, using info", "error", levelErr)
	}
	if formatErr != nil {
		logger.Warn("Invalid log format, using json", "error", formatErr)
	}
	return logger
}

// spanHandler adds the trace and span ids of the active span to each
// record, so sync cycle logs can be joined with their traces
type spanHandler struct {
	next slog.Handler
}

func (h spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h spanHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanHandler{next: h.next.WithAttrs(attrs)}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{next: h.next.WithGroup(name)}
}
