package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/workgraph/internal/idgen"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/types"
)

// PromoteToProject detaches id from its parent so it becomes a root, placed
// last among existing roots, and adds a linked dependency from its former
// parent to itself so the relationship is preserved.
func (s *Service) PromoteToProject(ctx context.Context, id string) (*ItemView, error) {
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.ParentID == nil {
		return nil, types.Validationf("work item %s is already a root", id)
	}
	formerParentID := *before.ParentID

	last, err := s.store.Items().FindSiblingEdgeOrderKey(ctx, nil, storage.EdgeLast)
	if err != nil {
		return nil, err
	}
	newKey, err := idgen.KeyBetween(last, nil)
	if err != nil {
		return nil, fmt.Errorf("compute order key for promoted item: %w", err)
	}

	err = s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		detachedParent := sql.NullString{Valid: false}
		after, err := s.store.Items().UpdateFields(ctx, tx, id, storage.FieldUpdate{
			OrderKey: &newKey,
			ParentID: &detachedParent,
		})
		if err != nil {
			return err
		}
		if after == nil {
			return types.NotFoundf("work item %s not found or inactive", id)
		}

		deps, err := s.store.Items().AddOrUpdateDependencies(ctx, tx, formerParentID, []types.DependencyInput{
			{DependsOnID: id, DependencyType: types.DependencyLinked},
		})
		if err != nil {
			return err
		}
		if len(deps) != 1 {
			return types.Wrap("promote-to-project", fmt.Errorf("expected exactly one dependency link, got %d", len(deps)))
		}
		link := deps[0]

		steps := []*types.UndoStep{
			{
				TableName: types.TableWorkItems,
				RecordID:  id,
				OldData:   workItemRowData(before),
				NewData:   workItemRowData(after),
			},
			{
				TableName: types.TableWorkItemDependencies,
				RecordID:  link.RecordID(),
				OldData:   dependencyAbsentRowData(link.WorkItemID, link.DependsOnID),
				NewData:   dependencyRowData(link),
			},
		}
		return s.recordAction(ctx, tx, types.ActionPromoteToProject, &id,
			fmt.Sprintf("Promoted work item %s to a root", id), steps)
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkItemByID(ctx, id, types.ActiveOnly)
}
