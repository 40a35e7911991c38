package eventlogger

import (
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// WithTTL sets how long stored events may wait before a time-based flush. Default: 12h.
func WithTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ttl = d
		}
	}
}

// WithMaxEventCount sets the store size that triggers a volume flush. Default: 50.
func WithMaxEventCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxEventCount = n
		}
	}
}

// WithDeleteOnFailure sets whether time-based flushes drop the stored batch
// when the send fails. Default: false (events are kept for the next flush).
func WithDeleteOnFailure(v bool) Option {
	return func(e *Engine) { e.deleteOnFailure = v }
}

// WithDropDir archives batches dropped after a failed send into dir.
func WithDropDir(dir string) Option {
	return func(e *Engine) { e.dropDir = dir }
}

// WithEnvironment sets the app and device identity stamped on new events.
func WithEnvironment(env Environment) Option {
	return func(e *Engine) { e.env = env }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. Default: NoopMetrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}
