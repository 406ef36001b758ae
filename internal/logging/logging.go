// Package logging provides the structured logger shared across the API
// server, the migrator worker, and the chain syncer.
package logging

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type traceIDKey struct{}

// Logger wraps a logrus.Logger with request/worker-scoped helpers.
type Logger struct {
	*logrus.Logger
}

// New builds a Logger. In "prod" profiles it emits JSON; otherwise a
// human-readable text formatter.
func New(profile string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if profile == "prod" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &Logger{Logger: l}
}

// NewTraceID returns a fresh trace identifier for a request or worker tick.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID attaches a trace id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID extracts the trace id from the context, if any.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithContext returns a log entry pre-populated with the request trace id.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.WithField("trace_id", TraceID(ctx))
	return entry
}

// LogRequest logs a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("http request")
}

// LogSecurityEvent logs an access-control relevant event (rate limiting etc).
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	entry := l.WithContext(ctx).WithField("event", event)
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Warn("security event")
}
