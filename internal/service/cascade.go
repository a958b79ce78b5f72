package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/workgraph/internal/types"
)

// DeleteWorkItemCascade soft-deletes every root id plus its full descendant
// closure, along with every active dependency link touching any item in
// the closure, as one action.
func (s *Service) DeleteWorkItemCascade(ctx context.Context, rootIDs []string) error {
	if len(rootIDs) == 0 {
		return types.Validationf("delete-cascade requires at least one work item id")
	}

	closure := make(map[string]*types.WorkItem)
	for _, id := range rootIDs {
		if err := validateNonEmptyID(id, "work_item_id"); err != nil {
			return err
		}
		root, err := s.store.Items().FindByID(ctx, id, types.AnyActive)
		if err != nil {
			return err
		}
		closure[root.ID] = root
		descendants, err := s.store.Items().FindDescendants(ctx, id)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			closure[d.ID] = d
		}
	}

	linksByKey := make(map[string]*types.Dependency)
	for id := range closure {
		outgoing, err := s.store.Items().FindDependencies(ctx, id, types.ActiveOnly, types.AnyActive)
		if err != nil {
			return err
		}
		for _, d := range outgoing {
			linksByKey[d.RecordID()] = d
		}
		incoming, err := s.store.Items().FindDependents(ctx, id, types.ActiveOnly, types.AnyActive)
		if err != nil {
			return err
		}
		for _, d := range incoming {
			linksByKey[d.RecordID()] = d
		}
	}

	return s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		var steps []*types.UndoStep

		linkKeys := make([][2]string, 0, len(linksByKey))
		for _, dep := range linksByKey {
			linkKeys = append(linkKeys, [2]string{dep.WorkItemID, dep.DependsOnID})
		}
		if len(linkKeys) > 0 {
			n, err := s.store.Items().SoftDeleteDependenciesByCompositeKeys(ctx, tx, linkKeys)
			if err != nil {
				return err
			}
			if n != len(linkKeys) {
				return types.Wrap("delete-cascade", fmt.Errorf("expected to deactivate %d dependency links, affected %d", len(linkKeys), n))
			}
			for _, dep := range linksByKey {
				steps = append(steps, &types.UndoStep{
					TableName: types.TableWorkItemDependencies,
					RecordID:  dep.RecordID(),
					OldData:   dependencyRowData(dep),
					NewData:   dependencyDeactivatedRowData(dep.WorkItemID, dep.DependsOnID, timeNowString()),
				})
			}
		}

		itemIDs := make([]string, 0, len(closure))
		for id, item := range closure {
			if item.IsActive {
				itemIDs = append(itemIDs, id)
			}
		}
		if len(itemIDs) > 0 {
			n, err := s.store.Items().SoftDelete(ctx, tx, itemIDs)
			if err != nil {
				return err
			}
			if n != len(itemIDs) {
				return types.Wrap("delete-cascade", fmt.Errorf("expected to deactivate %d work items, affected %d", len(itemIDs), n))
			}
			now := timeNowString()
			for _, id := range itemIDs {
				steps = append(steps, &types.UndoStep{
					TableName: types.TableWorkItems,
					RecordID:  id,
					OldData:   workItemRowData(closure[id]),
					NewData:   workItemDeactivatedRowData(id, now),
				})
			}
		}

		return s.recordAction(ctx, tx, types.ActionDeleteWorkItemTree, nil,
			fmt.Sprintf("Deleted %d work items and %d dependency links", len(itemIDs), len(linkKeys)), steps)
	})
}
