// Package observability provides structured logging, metrics, and tracing
// for the livegraph runtime and store.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds apply context to a logger.
// Returns a new logger with apply_id and from_version fields, so the helpers
// below do not repeat them.
//
// Example:
//
//	enriched := EnrichLogger(logger, "apply-123", 4)
//	enriched.Info("rewiring") // includes apply_id, from_version
func EnrichLogger(logger *slog.Logger, applyID string, fromVersion uint64) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("apply_id", applyID),
		slog.Uint64("from_version", fromVersion),
	)
}

// LogApplyStart logs the start of a reconcile.
func LogApplyStart(logger *slog.Logger, nodes, edges int) {
	if logger == nil {
		return
	}
	logger.Info("graph apply starting",
		slog.Int("nodes", nodes),
		slog.Int("edges", edges),
	)
}

// LogApplyComplete logs a successful reconcile and the version it produced.
func LogApplyComplete(logger *slog.Logger, version uint64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("graph apply completed",
		slog.Uint64("version", version),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogApplyError logs a reconcile that stopped at step.
func LogApplyError(logger *slog.Logger, err error, durationMs float64, step string) {
	if logger == nil {
		return
	}
	logger.Error("graph apply failed",
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("step", step),
	)
}

// LogNodeWarning logs a non-fatal per-node failure.
func LogNodeWarning(logger *slog.Logger, nodeID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("node operation failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogEdgeReversalError logs a failed edge reversal. Reversal is best-effort.
func LogEdgeReversalError(logger *slog.Logger, edgeKey string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("edge reversal failed",
		slog.String("edge", edgeKey),
		slog.String("error", err.Error()),
	)
}

// LogUpsert logs a committed graph document.
func LogUpsert(logger *slog.Logger, name string, version int, commit string) {
	if logger == nil {
		return
	}
	logger.Info("graph document committed",
		slog.String("graph", name),
		slog.Int("version", version),
		slog.String("commit", commit),
	)
}

// LogJournalError logs a failed journal write (non-fatal).
func LogJournalError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
