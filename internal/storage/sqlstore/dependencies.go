package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/workgraph/internal/types"
)

const dependencyColumns = `work_item_id, depends_on_work_item_id, dependency_type, is_active, created_at, updated_at`

func scanDependency(row rowScanner) (*types.Dependency, error) {
	var d types.Dependency
	if err := row.Scan(&d.WorkItemID, &d.DependsOnID, &d.DependencyType, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDependencies(rows *sql.Rows) ([]*types.Dependency, error) {
	var out []*types.Dependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindDependencies returns id's outgoing links, filterable independently on
// the link row and on the linked-to item.
func (r *ItemRepo) FindDependencies(ctx context.Context, id string, linkFilter, targetFilter types.ActiveFilter) ([]*types.Dependency, error) {
	return r.findLinks(ctx, "d.work_item_id", id, "d.depends_on_work_item_id", linkFilter, targetFilter)
}

// FindDependents returns id's incoming links (items that depend on id).
func (r *ItemRepo) FindDependents(ctx context.Context, id string, linkFilter, targetFilter types.ActiveFilter) ([]*types.Dependency, error) {
	return r.findLinks(ctx, "d.depends_on_work_item_id", id, "d.work_item_id", linkFilter, targetFilter)
}

func (r *ItemRepo) findLinks(ctx context.Context, anchorCol, anchorID, targetCol string, linkFilter, targetFilter types.ActiveFilter) ([]*types.Dependency, error) {
	query := `SELECT ` + qualify("d", dependencyColumns) + ` FROM work_item_dependencies d
		JOIN work_items t ON t.id = ` + targetCol + `
		WHERE ` + anchorCol + ` = ?`
	args := []any{anchorID}
	if clause, fArgs := activeFilterClause("d", linkFilter); clause != "" {
		query += ` AND ` + clause
		args = append(args, fArgs...)
	}
	if clause, fArgs := activeFilterClause("t", targetFilter); clause != "" {
		query += ` AND ` + clause
		args = append(args, fArgs...)
	}
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErrorf(err, "find links for %s", anchorID)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func qualify(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

// FindDependenciesByCompositeKeys looks up specific (work_item_id,
// depends_on_work_item_id) pairs, e.g. to re-read links a cascade is about
// to deactivate.
func (r *ItemRepo) FindDependenciesByCompositeKeys(ctx context.Context, keys [][2]string) ([]*types.Dependency, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	clauses := make([]string, len(keys))
	args := make([]any, 0, len(keys)*2)
	for i, k := range keys {
		clauses[i] = "(work_item_id = ? AND depends_on_work_item_id = ?)"
		args = append(args, k[0], k[1])
	}
	query := `SELECT ` + dependencyColumns + ` FROM work_item_dependencies WHERE ` + strings.Join(clauses, " OR ")
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("find dependencies by composite keys", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

// AddOrUpdateDependencies upserts sourceID -> dep.DependsOnID links to
// is_active=true, rejecting self-links and ignoring malformed ids (empty
// strings).
func (r *ItemRepo) AddOrUpdateDependencies(ctx context.Context, tx *sql.Tx, sourceID string, deps []types.DependencyInput) ([]*types.Dependency, error) {
	return r.upsertDependencies(ctx, tx, sourceID, deps)
}

func (r *ItemRepo) upsertDependencies(ctx context.Context, tx *sql.Tx, sourceID string, deps []types.DependencyInput) ([]*types.Dependency, error) {
	var out []*types.Dependency
	now := time.Now().UTC()
	for _, d := range deps {
		if d.DependsOnID == "" || d.DependsOnID == sourceID {
			continue
		}
		depType := d.DependencyType
		if depType == "" {
			depType = types.DependencyFinishToStart
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO work_item_dependencies (`+dependencyColumns+`)
			VALUES (?, ?, ?, 1, ?, ?)
			ON DUPLICATE KEY UPDATE dependency_type = VALUES(dependency_type), is_active = 1, updated_at = VALUES(updated_at)
		`, sourceID, d.DependsOnID, depType, now, now)
		if err != nil {
			return nil, wrapDBErrorf(err, "upsert dependency %s -> %s", sourceID, d.DependsOnID)
		}
		row := tx.QueryRowContext(ctx, `SELECT `+dependencyColumns+` FROM work_item_dependencies WHERE work_item_id = ? AND depends_on_work_item_id = ?`, sourceID, d.DependsOnID)
		dep, err := scanDependency(row)
		if err != nil {
			return nil, wrapDBErrorf(err, "reload dependency %s -> %s", sourceID, d.DependsOnID)
		}
		out = append(out, dep)
	}
	return out, nil
}

// SoftDeleteDependenciesByCompositeKeys deactivates the named links,
// returning the count actually affected.
func (r *ItemRepo) SoftDeleteDependenciesByCompositeKeys(ctx context.Context, tx *sql.Tx, keys [][2]string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	affected := 0
	for _, k := range keys {
		res, err := tx.ExecContext(ctx, `
			UPDATE work_item_dependencies SET is_active = 0, updated_at = ?
			WHERE work_item_id = ? AND depends_on_work_item_id = ? AND is_active = 1
		`, now, k[0], k[1])
		if err != nil {
			return affected, wrapDBErrorf(err, "soft delete dependency %s -> %s", k[0], k[1])
		}
		n, err := res.RowsAffected()
		if err != nil {
			return affected, wrapDBErrorf(err, "soft delete dependency %s -> %s", k[0], k[1])
		}
		affected += int(n)
	}
	return affected, nil
}

func (r *ItemRepo) applyDependencyRowState(ctx context.Context, tx *sql.Tx, data types.RowData) error {
	recordID, _ := data["record_id"].(string)
	workItemID, _ := data["work_item_id"].(string)
	dependsOnID, _ := data["depends_on_work_item_id"].(string)
	if workItemID == "" || dependsOnID == "" {
		if recordID == "" {
			return fmt.Errorf("apply work_item_dependencies row state: missing composite key")
		}
		parts := strings.SplitN(recordID, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("apply work_item_dependencies row state: invalid record_id %q", recordID)
		}
		workItemID, dependsOnID = parts[0], parts[1]
	}

	sets := []string{}
	args := []any{}
	for _, col := range []string{"dependency_type", "created_at", "is_active"} {
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
	query := `UPDATE work_item_dependencies SET ` + strings.Join(sets, ", ") + ` WHERE work_item_id = ? AND depends_on_work_item_id = ?`
	args = append(args, workItemID, dependsOnID)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapDBErrorf(err, "apply work_item_dependencies row state for %s:%s", workItemID, dependsOnID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.pool.Logger().Warn("replay conflict: no matching work_item_dependencies row", "work_item_id", workItemID, "depends_on_work_item_id", dependsOnID)
		r.metrics.ReplayConflict(ctx)
	}
	return nil
}
