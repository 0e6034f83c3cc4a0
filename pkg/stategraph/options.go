package stategraph

import (
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// runConfig holds per-call execution configuration.
type runConfig struct {
	maxSteps  int
	startAt   string
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	tracing   bool
	listeners []Listener
}

// defaultRunConfig returns the default execution configuration:
// unlimited steps, entry-point start, observability disabled.
func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures one Execute call.
type RunOption func(*runConfig)

// WithMaxSteps bounds the number of node executions performed by this
// call. When the budget is exhausted while a next node has resolved,
// the run halts with StatusPartial and can be resumed with WithStartAt.
// Zero or negative means unlimited.
//
// This is a step count, not a wall-clock budget; bound run time with an
// external context deadline.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithStartAt repositions the run's starting node, overriding the
// graph's entry point. Used to resume a Partial run:
//
//	res, _ := compiled.Execute(ctx, initial, stategraph.WithMaxSteps(1))
//	res, _ = compiled.Execute(ctx, res.FinalState, stategraph.WithStartAt(res.Next))
func WithStartAt(node string) RunOption {
	return func(c *runConfig) {
		c.startAt = node
	}
}

// WithRunLogger sets the logger for this run, overriding the context's
// logger.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics for this run.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry tracing for this run: one run span
// with a child span per node execution.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracing = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithListener registers a listener for run and node events. Listeners
// are invoked synchronously in registration order.
func WithListener(l Listener) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// FromConfig maps configuration keys to run options:
//
//	max_steps: 10       # WithMaxSteps
//	start_at: "verify"  # WithStartAt
//	metrics: true       # WithMetrics
//	tracing: true       # WithTracing
func FromConfig(cfg config.Config) RunOption {
	return func(c *runConfig) {
		if n := cfg.Int("max_steps", 0); n > 0 {
			c.maxSteps = n
		}
		if node := cfg.String("start_at", ""); node != "" {
			c.startAt = node
		}
		if cfg.Bool("metrics", false) {
			c.metrics = observability.NewMetricsRecorder()
		}
		if cfg.Bool("tracing", false) {
			c.tracing = true
			c.spans = observability.NewSpanManager()
		}
	}
}
