package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/workgraph/internal/idgen"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/types"
)

// MoveToStart repositions id to be the first among its siblings.
func (s *Service) MoveToStart(ctx context.Context, id string) (*ItemView, error) {
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	first, err := s.store.Items().FindSiblingEdgeOrderKey(ctx, before.ParentID, storage.EdgeFirst)
	if err != nil {
		return nil, err
	}
	newKey, err := idgen.KeyBetween(nil, first)
	if err != nil {
		return nil, fmt.Errorf("compute order key for move-to-start: %w", err)
	}
	return s.applyOrderKey(ctx, before, newKey, "Moved work item to start")
}

// MoveToEnd repositions id to be the last among its siblings.
func (s *Service) MoveToEnd(ctx context.Context, id string) (*ItemView, error) {
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	last, err := s.store.Items().FindSiblingEdgeOrderKey(ctx, before.ParentID, storage.EdgeLast)
	if err != nil {
		return nil, err
	}
	newKey, err := idgen.KeyBetween(last, nil)
	if err != nil {
		return nil, fmt.Errorf("compute order key for move-to-end: %w", err)
	}
	return s.applyOrderKey(ctx, before, newKey, "Moved work item to end")
}

// MoveAfter repositions id immediately after
// targetSiblingID among their shared parent's children.
func (s *Service) MoveAfter(ctx context.Context, id, targetSiblingID string) (*ItemView, error) {
	before, target, err := s.loadMoveSiblings(ctx, id, targetSiblingID)
	if err != nil {
		return nil, err
	}
	pivotKey, succKey, err := s.store.Items().FindNeighbourOrderKeys(ctx, before.ParentID, target.ID, storage.SideAfter)
	if err != nil {
		return nil, err
	}
	newKey, err := idgen.KeyBetween(pivotKey, succKey)
	if err != nil {
		return nil, fmt.Errorf("compute order key for move-after: %w", err)
	}
	return s.applyOrderKey(ctx, before, newKey, fmt.Sprintf("Moved work item after %s", targetSiblingID))
}

// MoveBefore repositions id immediately
// before targetSiblingID among their shared parent's children.
func (s *Service) MoveBefore(ctx context.Context, id, targetSiblingID string) (*ItemView, error) {
	before, target, err := s.loadMoveSiblings(ctx, id, targetSiblingID)
	if err != nil {
		return nil, err
	}
	predKey, pivotKey, err := s.store.Items().FindNeighbourOrderKeys(ctx, before.ParentID, target.ID, storage.SideBefore)
	if err != nil {
		return nil, err
	}
	newKey, err := idgen.KeyBetween(predKey, pivotKey)
	if err != nil {
		return nil, fmt.Errorf("compute order key for move-before: %w", err)
	}
	return s.applyOrderKey(ctx, before, newKey, fmt.Sprintf("Moved work item before %s", targetSiblingID))
}

func (s *Service) loadMoveSiblings(ctx context.Context, id, targetSiblingID string) (self, target *types.WorkItem, err error) {
	self, err = s.requireActive(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	target, err = s.requireActive(ctx, targetSiblingID)
	if err != nil {
		return nil, nil, err
	}
	if !sameParent(self.ParentID, target.ParentID) {
		return nil, nil, types.Validationf("work item %s is not a sibling of %s", id, targetSiblingID)
	}
	if self.ID == target.ID {
		return nil, nil, types.Validationf("work item %s cannot be positioned relative to itself", id)
	}
	return self, target, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// applyOrderKey writes newKey if it differs from before's current key,
// recording a single SET_ORDER_KEY step; otherwise it's a no-op. Every
// positional move funnels through this shared write/record/hydrate path.
func (s *Service) applyOrderKey(ctx context.Context, before *types.WorkItem, newKey, description string) (*ItemView, error) {
	if before.OrderKey != nil && *before.OrderKey == newKey {
		return s.GetWorkItemByID(ctx, before.ID, types.ActiveOnly)
	}
	oldKey := derefAny(before.OrderKey)
	err := s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		after, err := s.store.Items().UpdateFields(ctx, tx, before.ID, storage.FieldUpdate{OrderKey: &newKey})
		if err != nil {
			return err
		}
		if after == nil {
			return types.NotFoundf("work item %s not found or inactive", before.ID)
		}
		step := &types.UndoStep{
			TableName: types.TableWorkItems,
			RecordID:  before.ID,
			OldData: types.RowData{
				"id":         before.ID,
				"order_key":  oldKey,
				"updated_at": before.UpdatedAt.UTC().Format(rfc3339Nano),
			},
			NewData: types.RowData{
				"id":         before.ID,
				"order_key":  newKey,
				"updated_at": after.UpdatedAt.UTC().Format(rfc3339Nano),
			},
		}
		return s.recordAction(ctx, tx, types.ActionSetOrderKey, &before.ID, description, []*types.UndoStep{step})
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkItemByID(ctx, before.ID, types.ActiveOnly)
}
