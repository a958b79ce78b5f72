package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/types"
)

// FindSiblingEdgeOrderKey returns the smallest ("first") or largest
// ("last") order_key currently held by an active sibling under parentID
// (nil parentID means the root level).
func (r *ItemRepo) FindSiblingEdgeOrderKey(ctx context.Context, parentID *string, edge storage.Edge) (*string, error) {
	direction := "ASC"
	if edge == storage.EdgeLast {
		direction = "DESC"
	}
	query := `SELECT order_key FROM work_items WHERE is_active = 1 AND order_key IS NOT NULL AND `
	var args []any
	if parentID == nil {
		query += `parent_work_item_id IS NULL`
	} else {
		query += `parent_work_item_id = ?`
		args = append(args, *parentID)
	}
	query += ` ORDER BY order_key ` + direction + ` LIMIT 1`

	var key string
	err := r.pool.DB().QueryRowContext(ctx, query, args...).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBError("find sibling edge order key", err)
	}
	return &key, nil
}

// FindNeighbourOrderKeys returns the pair of order keys bracketing the slot
// where an item should land relative to pivotID: inserting "before" pivot
// returns (predecessor-of-pivot, pivot's own key); inserting "after" pivot
// returns (pivot's own key, successor-of-pivot). Either bound may come back
// nil, meaning open-ended.
func (r *ItemRepo) FindNeighbourOrderKeys(ctx context.Context, parentID *string, pivotID string, side storage.Side) (before, after *string, err error) {
	pivot, err := r.FindByID(ctx, pivotID, types.AnyActive)
	if err != nil {
		return nil, nil, err
	}
	if pivot.OrderKey == nil {
		return nil, nil, nil
	}
	pivotKey := *pivot.OrderKey

	parentClause := `parent_work_item_id IS NULL`
	args := []any{}
	if parentID != nil {
		parentClause = `parent_work_item_id = ?`
		args = append(args, *parentID)
	}

	if side == storage.SideAfter {
		// (pivot, successor)
		q := `SELECT order_key FROM work_items WHERE is_active = 1 AND order_key IS NOT NULL AND order_key > ? AND ` + parentClause + ` ORDER BY order_key ASC LIMIT 1`
		qArgs := append([]any{pivotKey}, args...)
		succ, err := r.scanSingleKey(ctx, q, qArgs)
		if err != nil {
			return nil, nil, err
		}
		return &pivotKey, succ, nil
	}

	// SideBefore: (predecessor, pivot)
	q := `SELECT order_key FROM work_items WHERE is_active = 1 AND order_key IS NOT NULL AND order_key < ? AND ` + parentClause + ` ORDER BY order_key DESC LIMIT 1`
	qArgs := append([]any{pivotKey}, args...)
	pred, err := r.scanSingleKey(ctx, q, qArgs)
	if err != nil {
		return nil, nil, err
	}
	return pred, &pivotKey, nil
}

func (r *ItemRepo) scanSingleKey(ctx context.Context, query string, args []any) (*string, error) {
	var key string
	err := r.pool.DB().QueryRowContext(ctx, query, args...).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBError("find neighbour order key", err)
	}
	return &key, nil
}
