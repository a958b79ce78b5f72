package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/workgraph/internal/types"
)

// AddDependencies links sourceID to each input's DependsOnID.
func (s *Service) AddDependencies(ctx context.Context, sourceID string, inputs []types.DependencyInput) (*ItemView, error) {
	if _, err := s.requireActive(ctx, sourceID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return s.GetWorkItemByID(ctx, sourceID, types.ActiveOnly)
	}

	keys := make([][2]string, 0, len(inputs))
	for _, in := range inputs {
		if err := validateNonEmptyID(in.DependsOnID, "depends_on_work_item_id"); err != nil {
			return nil, err
		}
		if in.DependsOnID == sourceID {
			return nil, types.Validationf("work item %s cannot depend on itself", sourceID)
		}
		target, err := s.store.Items().FindByID(ctx, in.DependsOnID, types.AnyActive)
		if err != nil {
			if types.IsNotFound(err) {
				return nil, types.NotFoundf("dependency target %s not found", in.DependsOnID)
			}
			return nil, err
		}
		if !target.IsActive {
			return nil, types.Validationf("dependency target %s is inactive", in.DependsOnID)
		}
		keys = append(keys, [2]string{sourceID, in.DependsOnID})
	}

	before, err := s.store.Items().FindDependenciesByCompositeKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	beforeByTarget := make(map[string]*types.Dependency, len(before))
	for _, d := range before {
		beforeByTarget[d.DependsOnID] = d
	}

	err = s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		after, err := s.store.Items().AddOrUpdateDependencies(ctx, tx, sourceID, inputs)
		if err != nil {
			return err
		}

		var steps []*types.UndoStep
		for _, dep := range after {
			prior, existed := beforeByTarget[dep.DependsOnID]
			effective := false
			var oldData types.RowData
			switch {
			case !existed:
				effective = true
				oldData = dependencyAbsentRowData(dep.WorkItemID, dep.DependsOnID)
			case !prior.IsActive && dep.IsActive:
				effective = true
				oldData = dependencyRowData(prior)
			case prior.IsActive && prior.DependencyType != dep.DependencyType:
				effective = true
				oldData = dependencyRowData(prior)
			}
			if !effective {
				continue
			}
			steps = append(steps, &types.UndoStep{
				TableName: types.TableWorkItemDependencies,
				RecordID:  dep.RecordID(),
				OldData:   oldData,
				NewData:   dependencyRowData(dep),
			})
		}

		return s.recordAction(ctx, tx, types.ActionAddDependencies, &sourceID,
			fmt.Sprintf("Added %d dependencies to work item %s", len(steps), sourceID), steps)
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkItemByID(ctx, sourceID, types.ActiveOnly)
}

// RemoveDependencies deactivates sourceID's links to each of targetIDs.
func (s *Service) RemoveDependencies(ctx context.Context, sourceID string, targetIDs []string) (*ItemView, error) {
	if _, err := s.requireActive(ctx, sourceID); err != nil {
		return nil, err
	}
	if len(targetIDs) == 0 {
		return s.GetWorkItemByID(ctx, sourceID, types.ActiveOnly)
	}

	keys := make([][2]string, 0, len(targetIDs))
	for _, id := range targetIDs {
		if err := validateNonEmptyID(id, "depends_on_work_item_id"); err != nil {
			return nil, err
		}
		keys = append(keys, [2]string{sourceID, id})
	}

	existing, err := s.store.Items().FindDependenciesByCompositeKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	byTarget := make(map[string]*types.Dependency, len(existing))
	for _, d := range existing {
		byTarget[d.DependsOnID] = d
	}
	for _, id := range targetIDs {
		dep, ok := byTarget[id]
		if !ok {
			return nil, types.Validationf("no dependency link from %s to %s exists", sourceID, id)
		}
		if !dep.IsActive {
			return nil, types.Validationf("dependency link from %s to %s is already inactive", sourceID, id)
		}
	}

	err = s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.store.Items().SoftDeleteDependenciesByCompositeKeys(ctx, tx, keys); err != nil {
			return err
		}

		steps := make([]*types.UndoStep, 0, len(targetIDs))
		for _, id := range targetIDs {
			dep := byTarget[id]
			steps = append(steps, &types.UndoStep{
				TableName: types.TableWorkItemDependencies,
				RecordID:  dep.RecordID(),
				OldData:   dependencyRowData(dep),
				NewData:   dependencyDeactivatedRowData(dep.WorkItemID, dep.DependsOnID, timeNowString()),
			})
		}

		return s.recordAction(ctx, tx, types.ActionDeleteDependencies, &sourceID,
			fmt.Sprintf("Removed %d dependencies from work item %s", len(steps), sourceID), steps)
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkItemByID(ctx, sourceID, types.ActiveOnly)
}
