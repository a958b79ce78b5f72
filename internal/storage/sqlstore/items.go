package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/telemetry"
	"github.com/steveyegge/workgraph/internal/types"
)

// ItemRepo implements storage.ItemStore (C2). Read methods use the pool
// directly; write methods require an active *sql.Tx.
type ItemRepo struct {
	pool    *storage.Pool
	metrics *telemetry.Metrics
}

const workItemColumns = `id, parent_work_item_id, name, shortname, description, status, priority, order_key, due_date, created_at, updated_at, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(row rowScanner) (*types.WorkItem, error) {
	var (
		item        types.WorkItem
		parentID    sql.NullString
		shortname   sql.NullString
		description sql.NullString
		orderKey    sql.NullString
		dueDate     sql.NullTime
	)
	if err := row.Scan(
		&item.ID, &parentID, &item.Name, &shortname, &description,
		&item.Status, &item.Priority, &orderKey, &dueDate,
		&item.CreatedAt, &item.UpdatedAt, &item.IsActive,
	); err != nil {
		return nil, err
	}
	item.ParentID = ptrString(parentID)
	item.Shortname = ptrString(shortname)
	item.Description = ptrString(description)
	item.OrderKey = ptrString(orderKey)
	item.DueDate = ptrTime(dueDate)
	return &item, nil
}

func scanWorkItems(rows *sql.Rows) ([]*types.WorkItem, error) {
	var out []*types.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByID returns a single work item, defaulting to active-only.
func (r *ItemRepo) FindByID(ctx context.Context, id string, filter types.ActiveFilter) (*types.WorkItem, error) {
	clause, args := activeFilterClause("", filter)
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = ?`
	args = append([]any{id}, args...)
	if clause != "" {
		query += ` AND ` + clause
	}
	row := r.pool.DB().QueryRowContext(ctx, query, args...)
	item, err := scanWorkItem(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "find work item %s", id)
	}
	return item, nil
}

// FindByIDs returns the subset of ids that exist (and match filter).
func (r *ItemRepo) FindByIDs(ctx context.Context, ids []string, filter types.ActiveFilter) ([]*types.WorkItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id IN (` + placeholders + `)`
	if clause, fArgs := activeFilterClause("", filter); clause != "" {
		query += ` AND ` + clause
		args = append(args, fArgs...)
	}
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("find work items by ids", err)
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

// FindRoots returns items with no parent, ordered by (order_key, created_at).
func (r *ItemRepo) FindRoots(ctx context.Context, filter types.ActiveFilter) ([]*types.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE parent_work_item_id IS NULL`
	args := []any{}
	if clause, fArgs := activeFilterClause("", filter); clause != "" {
		query += ` AND ` + clause
		args = append(args, fArgs...)
	}
	query += ` ORDER BY order_key ASC, created_at ASC`
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("find roots", err)
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

// FindChildren returns the direct children of parentID, ordered by
// (order_key, created_at).
func (r *ItemRepo) FindChildren(ctx context.Context, parentID string, filter types.ActiveFilter) ([]*types.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE parent_work_item_id = ?`
	args := []any{parentID}
	if clause, fArgs := activeFilterClause("", filter); clause != "" {
		query += ` AND ` + clause
		args = append(args, fArgs...)
	}
	query += ` ORDER BY order_key ASC, created_at ASC`
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErrorf(err, "find children of %s", parentID)
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

// FindDescendants returns the transitive children of id regardless of
// active state, for use by cascading delete.
func (r *ItemRepo) FindDescendants(ctx context.Context, id string) ([]*types.WorkItem, error) {
	var out []*types.WorkItem
	frontier := []string{id}
	seen := map[string]bool{}
	for len(frontier) > 0 {
		placeholders, args := inClause(frontier)
		query := `SELECT ` + workItemColumns + ` FROM work_items WHERE parent_work_item_id IN (` + placeholders + `)`
		rows, err := r.pool.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return nil, wrapDBErrorf(err, "find descendants of %s", id)
		}
		children, err := scanWorkItems(rows)
		rows.Close()
		if err != nil {
			return nil, wrapDBErrorf(err, "find descendants of %s", id)
		}
		frontier = frontier[:0]
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			frontier = append(frontier, c.ID)
		}
	}
	return out, nil
}

// FindSiblings returns the other items sharing id's parent (or the other
// roots), restricted by filter.
func (r *ItemRepo) FindSiblings(ctx context.Context, id string, filter types.ActiveFilter) ([]*types.WorkItem, error) {
	self, err := r.FindByID(ctx, id, types.AnyActive)
	if err != nil {
		return nil, err
	}
	var siblings []*types.WorkItem
	if self.ParentID == nil {
		siblings, err = r.FindRoots(ctx, filter)
	} else {
		siblings, err = r.FindChildren(ctx, *self.ParentID, filter)
	}
	if err != nil {
		return nil, err
	}
	out := siblings[:0:0]
	for _, s := range siblings {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out, nil
}

// SearchByNameOrDescription performs a case-insensitive substring match.
func (r *ItemRepo) SearchByNameOrDescription(ctx context.Context, q string, filter types.ActiveFilter) ([]*types.WorkItem, error) {
	like := "%" + strings.ToLower(q) + "%"
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)`
	args := []any{like, like}
	if clause, fArgs := activeFilterClause("", filter); clause != "" {
		query += ` AND ` + clause
		args = append(args, fArgs...)
	}
	query += ` ORDER BY order_key ASC, created_at ASC`
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErrorf(err, "search work items for %q", q)
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

// Create inserts item and any supplied dependencies, upserting each
// dependency to is_active=true.
func (r *ItemRepo) Create(ctx context.Context, tx *sql.Tx, item *types.WorkItem, deps []types.DependencyInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO work_items (`+workItemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID, nullString(item.ParentID), item.Name, nullString(item.Shortname), nullString(item.Description),
		item.Status, item.Priority, nullString(item.OrderKey), nullTime(item.DueDate),
		item.CreatedAt, item.UpdatedAt, item.IsActive,
	)
	if err != nil {
		return wrapDBErrorf(err, "insert work item %s", item.ID)
	}
	if len(deps) == 0 {
		return nil
	}
	if _, err := r.upsertDependencies(ctx, tx, item.ID, deps); err != nil {
		return err
	}
	return nil
}

// UpdateFields updates only the whitelisted columns, auto-setting
// updated_at, and only affects active rows.
func (r *ItemRepo) UpdateFields(ctx context.Context, tx *sql.Tx, id string, payload storage.FieldUpdate) (*types.WorkItem, error) {
	sets := []string{}
	args := []any{}
	if payload.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *payload.Name)
	}
	// payload.Description is itself a sql.NullString: Valid=false stores a
	// SQL NULL (clears the column), Valid=true stores the given string.
	if payload.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *payload.Description)
	}
	if payload.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *payload.Status)
	}
	if payload.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *payload.Priority)
	}
	if payload.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *payload.DueDate)
	}
	if payload.Shortname != nil {
		sets = append(sets, "shortname = ?")
		args = append(args, *payload.Shortname)
	}
	if payload.OrderKey != nil {
		sets = append(sets, "order_key = ?")
		args = append(args, *payload.OrderKey)
	}
	if payload.ParentID != nil {
		sets = append(sets, "parent_work_item_id = ?")
		args = append(args, *payload.ParentID)
	}
	now := time.Now().UTC()
	sets = append(sets, "updated_at = ?")
	args = append(args, now)

	query := `UPDATE work_items SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND is_active = ?`
	args = append(args, id, true)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErrorf(err, "update work item %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapDBErrorf(err, "update work item %s", id)
	}
	if n == 0 {
		return nil, nil
	}
	row := tx.QueryRowContext(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanWorkItem(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "reload work item %s", id)
	}
	return item, nil
}

// SoftDelete deactivates ids that are currently active, returning the count
// actually affected.
func (r *ItemRepo) SoftDelete(ctx context.Context, tx *sql.Tx, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, inArgs := inClause(ids)
	now := time.Now().UTC()
	args := append([]any{now}, inArgs...)
	query := `UPDATE work_items SET is_active = 0, updated_at = ? WHERE id IN (` + placeholders + `) AND is_active = 1`
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapDBError("soft delete work items", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError("soft delete work items", err)
	}
	return int(n), nil
}

// ApplyRowState is the C2 replay primitive the history engine (C4) uses: it
// updates the row identified by data's primary key with every non-key field
// present in data. For work_items, a missing updated_at is filled with now().
func (r *ItemRepo) ApplyRowState(ctx context.Context, tx *sql.Tx, table types.TableName, data types.RowData) error {
	switch table {
	case types.TableWorkItems:
		return r.applyWorkItemRowState(ctx, tx, data)
	case types.TableWorkItemDependencies:
		return r.applyDependencyRowState(ctx, tx, data)
	default:
		return fmt.Errorf("apply row state: unknown table %q", table)
	}
}

func (r *ItemRepo) applyWorkItemRowState(ctx context.Context, tx *sql.Tx, data types.RowData) error {
	idVal, ok := data["id"]
	if !ok {
		return fmt.Errorf("apply work_items row state: missing id")
	}
	id, ok := idVal.(string)
	if !ok || id == "" {
		return fmt.Errorf("apply work_items row state: invalid id %v", idVal)
	}

	sets := []string{}
	args := []any{}
	for _, col := range []string{"parent_work_item_id", "name", "shortname", "description", "status", "priority", "order_key", "due_date", "created_at", "is_active"} {
		if v, present := data[col]; present {
			sets = append(sets, col+" = ?")
			args = append(args, jsonToSQLValue(col, v))
		}
	}
	if v, present := data["updated_at"]; present {
		sets = append(sets, "updated_at = ?")
		args = append(args, jsonToSQLValue("updated_at", v))
	} else {
		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().UTC())
	}
	if len(sets) == 0 {
		return nil
	}
	query := `UPDATE work_items SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapDBErrorf(err, "apply work_items row state for %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Row vanished between the step's capture and its replay: soft-delete
		// semantics mean it can't happen via a missing row, only via a
		// concurrently-raced id, so this is logged and treated as best-effort
		// rather than failing the transaction.
		r.pool.Logger().Warn("replay conflict: no matching work_items row", "id", id)
		r.metrics.ReplayConflict(ctx)
	}
	return nil
}

// inClause builds a "?,?,?" placeholder list and the matching args.
func inClause(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

// jsonToSQLValue converts a decoded-JSON scalar (from RowData, which is
// unmarshaled from old_data/new_data's JSON text) into a value database/sql
// accepts. Nulls pass through as nil; due_date/created_at/updated_at arrive
// as RFC3339 strings and must be parsed back into time.Time.
func jsonToSQLValue(col string, v any) any {
	if v == nil {
		return nil
	}
	switch col {
	case "due_date", "created_at", "updated_at":
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
		return v
	case "is_active":
		if b, ok := v.(bool); ok {
			return b
		}
		return v
	default:
		return v
	}
}
