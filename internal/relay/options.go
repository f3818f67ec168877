package relay

import "log/slog"

// Option configures dispatchers, proxies and executions.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *Metrics
	onState func(State)
}

func resolveOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records relay activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStateObserver registers fn to be called on every execution state
// transition. fn runs on the goroutine performing the transition and must
// not block.
func WithStateObserver(fn func(State)) Option {
	return func(o *options) { o.onState = fn }
}
