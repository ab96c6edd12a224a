package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nodeflow/engine/internal/config"
)

// InitSentry wires error tracking per internal/errortracking/sentry.go's
// sentry.Init call, narrowed to the options this engine's
// ObservabilityConfig exposes. A disabled config is a no-op whose
// returned flush function is always safe to call.
func InitSentry(cfg config.ObservabilityConfig) (flush func(), err error) {
	if !cfg.SentryEnabled {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		TracesSampleRate: cfg.SentrySampleRate,
		AttachStacktrace: true,
	}); err != nil {
		return nil, err
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}
