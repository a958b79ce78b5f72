package sqlstore

import (
	"context"
	"database/sql"

	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/types"
)

// ActionRepo implements storage.ActionStore (C3): the append-only action log
// and the undo_steps rows each action owns.
type ActionRepo struct {
	pool *storage.Pool
}

const actionColumns = `action_id, timestamp, action_type, work_item_id, description, is_undone, undone_at_action_id`

func scanAction(row rowScanner) (*types.Action, error) {
	var (
		a          types.Action
		workItemID sql.NullString
		undoneAt   sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Timestamp, &a.ActionType, &workItemID, &a.Description, &a.IsUndone, &undoneAt); err != nil {
		return nil, err
	}
	a.WorkItemID = ptrString(workItemID)
	a.UndoneAtActionID = ptrString(undoneAt)
	return &a, nil
}

func scanActions(rows *sql.Rows) ([]*types.Action, error) {
	var out []*types.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAction appends one action_history row.
func (r *ActionRepo) CreateAction(ctx context.Context, tx *sql.Tx, action *types.Action) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO action_history (`+actionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, action.ID, action.Timestamp, action.ActionType, nullString(action.WorkItemID), action.Description, action.IsUndone, nullString(action.UndoneAtActionID))
	if err != nil {
		return wrapDBErrorf(err, "insert action %s", action.ID)
	}
	return nil
}

// CreateUndoStep appends one undo_steps row belonging to step.ActionID.
// (action_id, step_order) is unique, so replaying the same step twice is
// rejected rather than silently duplicated.
func (r *ActionRepo) CreateUndoStep(ctx context.Context, tx *sql.Tx, step *types.UndoStep) error {
	oldJSON, err := marshalRowData(step.OldData)
	if err != nil {
		return wrapDBErrorf(err, "marshal old_data for step %s", step.ID)
	}
	newJSON, err := marshalRowData(step.NewData)
	if err != nil {
		return wrapDBErrorf(err, "marshal new_data for step %s", step.ID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO undo_steps (undo_step_id, action_id, step_order, step_type, table_name, record_id, old_data, new_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, step.ID, step.ActionID, step.StepOrder, step.StepType, step.TableName, step.RecordID, oldJSON, newJSON)
	if err != nil {
		return wrapDBErrorf(err, "insert undo step %s for action %s", step.ID, step.ActionID)
	}
	return nil
}

// FindActionByID looks up one action_history row.
func (r *ActionRepo) FindActionByID(ctx context.Context, id string) (*types.Action, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+actionColumns+` FROM action_history WHERE action_id = ?`, id)
	a, err := scanAction(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "find action %s", id)
	}
	return a, nil
}

// FindUndoStepsByActionID returns actionID's steps in replay order
// (ascending step_order).
func (r *ActionRepo) FindUndoStepsByActionID(ctx context.Context, actionID string) ([]*types.UndoStep, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT undo_step_id, action_id, step_order, step_type, table_name, record_id, old_data, new_data
		FROM undo_steps WHERE action_id = ? ORDER BY step_order ASC
	`, actionID)
	if err != nil {
		return nil, wrapDBErrorf(err, "find undo steps for action %s", actionID)
	}
	defer rows.Close()

	var out []*types.UndoStep
	for rows.Next() {
		var (
			s               types.UndoStep
			oldJSON, newJSON string
		)
		if err := rows.Scan(&s.ID, &s.ActionID, &s.StepOrder, &s.StepType, &s.TableName, &s.RecordID, &oldJSON, &newJSON); err != nil {
			return nil, wrapDBErrorf(err, "scan undo step for action %s", actionID)
		}
		s.OldData, err = unmarshalRowData(oldJSON)
		if err != nil {
			return nil, wrapDBErrorf(err, "unmarshal old_data for step %s", s.ID)
		}
		s.NewData, err = unmarshalRowData(newJSON)
		if err != nil {
			return nil, wrapDBErrorf(err, "unmarshal new_data for step %s", s.ID)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErrorf(err, "find undo steps for action %s", actionID)
	}
	return out, nil
}

// FindLastOriginalAction returns the most recent action that is itself
// neither an UNDO nor a REDO and has not already been undone — the target
// the next Undo call acts on.
func (r *ActionRepo) FindLastOriginalAction(ctx context.Context) (*types.Action, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+actionColumns+` FROM action_history
		WHERE is_undone = 0 AND action_type NOT IN (?, ?)
		ORDER BY timestamp DESC LIMIT 1
	`, types.ActionUndo, types.ActionRedo)
	a, err := scanAction(row)
	if err != nil {
		return nil, wrapDBError("find last original action", err)
	}
	return a, nil
}

// FindLastUndoAction returns the most recent UNDO_ACTION row that has not
// itself been redone or invalidated — the target the next Redo call acts on.
func (r *ActionRepo) FindLastUndoAction(ctx context.Context) (*types.Action, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+actionColumns+` FROM action_history
		WHERE action_type = ? AND is_undone = 0
		ORDER BY timestamp DESC LIMIT 1
	`, types.ActionUndo)
	a, err := scanAction(row)
	if err != nil {
		return nil, wrapDBError("find last undo action", err)
	}
	return a, nil
}

// FindRecentUnredoneUndoActions lists UNDO_ACTION rows still eligible for
// redo, most recent first, for the redo-stack invalidation check.
func (r *ActionRepo) FindRecentUnredoneUndoActions(ctx context.Context, limit int) ([]*types.Action, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+actionColumns+` FROM action_history
		WHERE action_type = ? AND is_undone = 0
		ORDER BY timestamp DESC LIMIT ?
	`, types.ActionUndo, limit)
	if err != nil {
		return nil, wrapDBError("find recent unredone undo actions", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// FindActionLinkedByUndo returns the original action that undoID undid. The
// link is stored on the original row (original.undone_at_action_id =
// undoID), so this is a single reverse lookup on action_history.
func (r *ActionRepo) FindActionLinkedByUndo(ctx context.Context, undoID string) (*types.Action, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+actionColumns+` FROM action_history WHERE undone_at_action_id = ?
	`, undoID)
	a, err := scanAction(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "find action linked by undo %s", undoID)
	}
	return a, nil
}

// MarkActionAsUndone sets originalID.is_undone and links it to undoID.
// A zero-row update (the action was concurrently deleted
// or already marked) is tolerated rather than treated as an error.
func (r *ActionRepo) MarkActionAsUndone(ctx context.Context, tx *sql.Tx, originalID, undoID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE action_history SET is_undone = 1, undone_at_action_id = ? WHERE action_id = ?
	`, undoID, originalID)
	if err != nil {
		return wrapDBErrorf(err, "mark action %s undone", originalID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.pool.Logger().Warn("mark action undone: no matching action_history row", "action_id", originalID)
	}
	return nil
}

// MarkActionAsNotUndone clears originalID's undone bookkeeping, used when a
// redo brings the original action back into effect.
func (r *ActionRepo) MarkActionAsNotUndone(ctx context.Context, tx *sql.Tx, originalID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE action_history SET is_undone = 0, undone_at_action_id = NULL WHERE action_id = ?
	`, originalID)
	if err != nil {
		return wrapDBErrorf(err, "mark action %s not undone", originalID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.pool.Logger().Warn("mark action not undone: no matching action_history row", "action_id", originalID)
	}
	return nil
}

// MarkUndoActionAsRedoneOrInvalidated flags undoID as consumed: either a
// REDO_ACTION replayed it (byID set) or it was invalidated because no
// original action is linked to it (byID nil). Both cases set is_undone so it
// no longer shows up in FindRecentUnredoneUndoActions / FindLastUndoAction.
// Invalidation by a new forward mutation goes through InvalidateRedoStack.
func (r *ActionRepo) MarkUndoActionAsRedoneOrInvalidated(ctx context.Context, tx *sql.Tx, undoID string, byID *string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE action_history SET is_undone = 1, undone_at_action_id = ? WHERE action_id = ?
	`, nullString(byID), undoID)
	if err != nil {
		return wrapDBErrorf(err, "mark undo action %s redone/invalidated", undoID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.pool.Logger().Warn("mark undo action redone/invalidated: no matching action_history row", "action_id", undoID)
	}
	return nil
}

// ListRecentActions is the C6 history feed: most recent first, optionally
// scoped to one work item.
func (r *ActionRepo) ListRecentActions(ctx context.Context, workItemID *string, limit int) ([]*types.Action, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + actionColumns + ` FROM action_history`
	args := []any{}
	if workItemID != nil {
		query += ` WHERE work_item_id = ?`
		args = append(args, *workItemID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list recent actions", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// InvalidateRedoStack marks every still-redoable UNDO_ACTION other than
// exceptActionID as invalidated, implementing the "a fresh mutation kills
// the redo stack" rule. Returns the count invalidated.
func (r *ActionRepo) InvalidateRedoStack(ctx context.Context, tx *sql.Tx, exceptActionID string) (int, error) {
	query := `UPDATE action_history SET is_undone = 1 WHERE action_type = ? AND is_undone = 0`
	args := []any{types.ActionUndo}
	if exceptActionID != "" {
		query += ` AND action_id != ?`
		args = append(args, exceptActionID)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapDBError("invalidate redo stack", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError("invalidate redo stack", err)
	}
	return int(n), nil
}
