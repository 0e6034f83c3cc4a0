// Package observability provides structured logging, metrics, and
// tracing for stategraph runs.
//
// Logging uses slog from the standard library; metrics and tracing use
// OpenTelemetry. Metrics and tracing are opt-in and have no-op
// implementations when disabled.
package observability

import "log/slog"

// EnrichLogger returns a logger carrying run and node context.
func EnrichLogger(logger *slog.Logger, runID, node string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node", node),
	)
}

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID, entry string) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("run_id", runID),
		slog.String("entry", entry),
	)
}

// LogRunComplete logs a run that reached a node with no outgoing edge.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, steps int) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps", steps),
	)
}

// LogRunPartial logs a run halted by the step budget.
func LogRunPartial(logger *slog.Logger, runID string, durationMs float64, steps int, next string) {
	if logger == nil {
		return
	}
	logger.Info("run halted by step budget",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps", steps),
		slog.String("next", next),
	)
}

// LogRunFailed logs a run that stopped on a handler failure.
func LogRunFailed(logger *slog.Logger, runID string, err error, durationMs float64, node string) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("node", node),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, node string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node", node),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, node string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node", node),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs a node handler failure.
func LogNodeError(logger *slog.Logger, node string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node", node),
		slog.String("error", err.Error()),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, node string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node", node),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a checkpoint operation failure.
func LogCheckpointError(logger *slog.Logger, node string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node", node),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
