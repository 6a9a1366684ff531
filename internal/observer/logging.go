package observer

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aetherflow/aetherflow/internal/settings"
)

type ctxKey int

const loggerKey ctxKey = iota

// SetupLogger builds the process-wide slog.Logger from Settings, grounded on
// the teacher's telemetry.SetupLogger (LOG_FORMAT/LOG_LEVEL env-driven setup).
func SetupLogger(s *settings.Settings) *slog.Logger {
	level := parseLevel(s.LogLevel)
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the attached logger, or slog.Default() if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithRunContext enriches logger with flow/run identifiers, mirroring the
// teacher's WithRunID/WithFlowID helpers.
func WithRunContext(ctx context.Context, flowID, runID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With("flow_id", flowID, "run_id", runID))
}

// WithJob enriches logger with a job identifier.
func WithJob(ctx context.Context, jobID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With("job_id", jobID))
}

// WithStep enriches logger with a step identifier.
func WithStep(ctx context.Context, stepID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With("step_id", stepID))
}
