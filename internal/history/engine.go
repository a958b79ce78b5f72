// Package history implements C4: the history engine that replays undo
// steps, redoes them, and enforces the linear-history redo-stack
// invalidation rule every forward mutation must trigger.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/workgraph/internal/idgen"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/telemetry"
	"github.com/steveyegge/workgraph/internal/types"
)

// Engine is C4. It owns the undo/redo transactions (each is its own
// top-level transaction via the pool) but never writes outside a caller's
// transaction for invalidation.
type Engine struct {
	store   storage.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New builds an Engine. metrics may be nil (all Metrics methods are
// nil-receiver-safe); logger defaults to slog.Default().
func New(store storage.Store, metrics *telemetry.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, metrics: metrics, logger: logger}
}

// Undo reverts the most recent not-yet-undone action. A nil, nil result
// means there was nothing to undo.
func (e *Engine) Undo(ctx context.Context) (*types.Action, error) {
	original, err := e.store.Actions().FindLastOriginalAction(ctx)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	steps, err := e.store.Actions().FindUndoStepsByActionID(ctx, original.ID)
	if err != nil {
		return nil, err
	}

	undoID := idgen.NewID()
	var result *types.Action
	err = e.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		undo := &types.Action{
			ID:         undoID,
			Timestamp:  time.Now().UTC(),
			ActionType: types.ActionUndo,
			WorkItemID: original.WorkItemID,
		}

		if len(steps) == 0 {
			undo.Description = fmt.Sprintf("Undid action: %q (no steps recorded)", original.Description)
		} else {
			undo.Description = fmt.Sprintf("Undid action: %q", original.Description)
			for i := len(steps) - 1; i >= 0; i-- {
				step := steps[i]
				if err := e.store.Items().ApplyRowState(ctx, tx, step.TableName, step.OldData); err != nil {
					return fmt.Errorf("replay undo step %s: %w", step.ID, err)
				}
			}
		}

		if err := e.store.Actions().CreateAction(ctx, tx, undo); err != nil {
			return err
		}
		if err := e.store.Actions().MarkActionAsUndone(ctx, tx, original.ID, undoID); err != nil {
			return err
		}

		undone := *original
		undone.IsUndone = true
		undone.UndoneAtActionID = &undoID
		result = &undone
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.UndoExecuted(ctx)
	return result, nil
}

// Redo reapplies the most recently undone action. A nil, nil result means
// there was nothing available to redo.
func (e *Engine) Redo(ctx context.Context) (*types.Action, error) {
	undo, err := e.store.Actions().FindLastUndoAction(ctx)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	original, err := e.store.Actions().FindActionLinkedByUndo(ctx, undo.ID)
	if err != nil {
		if !types.IsNotFound(err) {
			return nil, err
		}
		// No backlink: the UNDO has nothing to redo onto. Mark it
		// invalidated (undone_at_action_id stays null, a documented
		// exception) and report nothing available.
		txErr := e.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
			return e.store.Actions().MarkUndoActionAsRedoneOrInvalidated(ctx, tx, undo.ID, nil)
		})
		if txErr != nil {
			return nil, txErr
		}
		return nil, nil
	}

	steps, err := e.store.Actions().FindUndoStepsByActionID(ctx, original.ID)
	if err != nil {
		return nil, err
	}

	redoID := idgen.NewID()
	var result *types.Action
	err = e.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		redo := &types.Action{
			ID:         redoID,
			Timestamp:  time.Now().UTC(),
			ActionType: types.ActionRedo,
			WorkItemID: original.WorkItemID,
		}

		if len(steps) == 0 {
			redo.Description = fmt.Sprintf("Redid action: %q (no steps recorded)", original.Description)
		} else {
			redo.Description = fmt.Sprintf("Redid action: %q", original.Description)
			for _, step := range steps {
				if err := e.store.Items().ApplyRowState(ctx, tx, step.TableName, step.NewData); err != nil {
					return fmt.Errorf("replay redo step %s: %w", step.ID, err)
				}
			}
		}

		if err := e.store.Actions().CreateAction(ctx, tx, redo); err != nil {
			return err
		}
		if err := e.store.Actions().MarkActionAsNotUndone(ctx, tx, original.ID); err != nil {
			return err
		}
		if err := e.store.Actions().MarkUndoActionAsRedoneOrInvalidated(ctx, tx, undo.ID, &redoID); err != nil {
			return err
		}

		reactivated := *original
		reactivated.IsUndone = false
		reactivated.UndoneAtActionID = nil
		result = &reactivated
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RedoExecuted(ctx)
	return result, nil
}

// InvalidateRedoStack wraps the action-history repository's invalidation
// primitive for use by mutation services: it must run inside the same
// transaction as the forward mutation's own action, immediately after
// creating it and before commit.
func (e *Engine) InvalidateRedoStack(ctx context.Context, tx *sql.Tx, newActionID string) error {
	n, err := e.store.Actions().InvalidateRedoStack(ctx, tx, newActionID)
	if err != nil {
		return err
	}
	e.metrics.RedoInvalidated(ctx, n)
	return nil
}
