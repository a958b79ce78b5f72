// Package telemetry wires the history engine and mutation services to
// OpenTelemetry metrics: counters for mutations applied, undo/redo
// execution, redo-stack invalidation, and benign replay conflicts.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Meter name follows the module's own import path convention.
const meterName = "github.com/steveyegge/workgraph/core"

// Metrics holds the counters the mutation and history layers increment.
// Every method is nil-receiver-safe, so a nil *Metrics is a valid no-op
// instance for tests and callers that don't need an exporter.
type Metrics struct {
	mutationsApplied metric.Int64Counter
	undoExecuted     metric.Int64Counter
	redoExecuted     metric.Int64Counter
	redoInvalidated  metric.Int64Counter
	replayConflicts  metric.Int64Counter
}

// New builds Metrics against the global otel MeterProvider. Call
// otel.SetMeterProvider before this to actually export; otherwise otel's
// default no-op provider is used until an exporter is configured.
func New() (*Metrics, error) {
	meter := otel.Meter(meterName)

	mutationsApplied, err := meter.Int64Counter("workgraph.mutations_applied",
		metric.WithDescription("forward mutations that produced at least one undo step"))
	if err != nil {
		return nil, fmt.Errorf("build mutations_applied counter: %w", err)
	}
	undoExecuted, err := meter.Int64Counter("workgraph.undo_executed",
		metric.WithDescription("undo operations executed"))
	if err != nil {
		return nil, fmt.Errorf("build undo_executed counter: %w", err)
	}
	redoExecuted, err := meter.Int64Counter("workgraph.redo_executed",
		metric.WithDescription("redo operations executed"))
	if err != nil {
		return nil, fmt.Errorf("build redo_executed counter: %w", err)
	}
	redoInvalidated, err := meter.Int64Counter("workgraph.redo_invalidated",
		metric.WithDescription("pending undo actions invalidated by a new forward mutation"))
	if err != nil {
		return nil, fmt.Errorf("build redo_invalidated counter: %w", err)
	}
	replayConflicts, err := meter.Int64Counter("workgraph.replay_conflicts",
		metric.WithDescription("undo/redo step replays that hit a 0-row update (benign concurrent divergence)"))
	if err != nil {
		return nil, fmt.Errorf("build replay_conflicts counter: %w", err)
	}

	return &Metrics{
		mutationsApplied: mutationsApplied,
		undoExecuted:     undoExecuted,
		redoExecuted:     redoExecuted,
		redoInvalidated:  redoInvalidated,
		replayConflicts:  replayConflicts,
	}, nil
}

// MutationApplied records a forward mutation action type.
func (m *Metrics) MutationApplied(ctx context.Context, actionType string) {
	if m == nil {
		return
	}
	m.mutationsApplied.Add(ctx, 1, metric.WithAttributes(actionTypeAttr(actionType)))
}

// UndoExecuted records a completed undo.
func (m *Metrics) UndoExecuted(ctx context.Context) {
	if m == nil {
		return
	}
	m.undoExecuted.Add(ctx, 1)
}

// RedoExecuted records a completed redo.
func (m *Metrics) RedoExecuted(ctx context.Context) {
	if m == nil {
		return
	}
	m.redoExecuted.Add(ctx, 1)
}

// RedoInvalidated records how many pending undo actions a forward mutation
// invalidated.
func (m *Metrics) RedoInvalidated(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.redoInvalidated.Add(ctx, int64(count))
}

// ReplayConflict records a benign 0-row replay during undo/redo.
func (m *Metrics) ReplayConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.replayConflicts.Add(ctx, 1)
}
