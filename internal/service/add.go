package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/workgraph/internal/idgen"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/types"
)

// AddInput is the Add request payload.
type AddInput struct {
	Name        string
	ParentID    *string
	Description *string
	Priority    types.Priority // zero value defaults to medium
	Status      types.Status   // zero value defaults to todo
	DueDate     *time.Time
	Shortname   *string
	OrderKey    *string // explicit placement; nil means "after the last active sibling"
}

// Add creates a new work item.
func (s *Service) Add(ctx context.Context, input AddInput) (*ItemView, error) {
	if input.Name == "" {
		return nil, types.Validationf("work item name must not be empty")
	}
	priority := input.Priority
	if priority == "" {
		priority = types.PriorityMedium
	} else if !priority.Valid() {
		return nil, types.Validationf("invalid priority %q", priority)
	}
	status := input.Status
	if status == "" {
		status = types.StatusTodo
	} else if !status.Valid() {
		return nil, types.Validationf("invalid status %q", status)
	}

	if input.ParentID != nil {
		if err := validateNonEmptyID(*input.ParentID, "parent_work_item_id"); err != nil {
			return nil, err
		}
		if _, err := s.store.Items().FindByID(ctx, *input.ParentID, types.ActiveOnly); err != nil {
			if types.IsNotFound(err) {
				return nil, types.NotFoundf("parent work item %s not found or inactive", *input.ParentID)
			}
			return nil, err
		}
	}

	orderKey := input.OrderKey
	if orderKey == nil {
		last, err := s.store.Items().FindSiblingEdgeOrderKey(ctx, input.ParentID, storage.EdgeLast)
		if err != nil {
			return nil, err
		}
		k, err := idgen.KeyBetween(last, nil)
		if err != nil {
			return nil, fmt.Errorf("compute order key for new item: %w", err)
		}
		orderKey = &k
	}

	var itemID string
	err := s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		item := &types.WorkItem{
			ID:          idgen.NewID(),
			ParentID:    input.ParentID,
			Name:        input.Name,
			Shortname:   input.Shortname,
			Description: input.Description,
			Status:      status,
			Priority:    priority,
			OrderKey:    orderKey,
			DueDate:     input.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
			IsActive:    true,
		}
		if err := s.store.Items().Create(ctx, tx, item, nil); err != nil {
			return err
		}
		itemID = item.ID

		step := &types.UndoStep{
			TableName: types.TableWorkItems,
			RecordID:  item.ID,
			OldData:   workItemDeactivatedRowData(item.ID, now.Format(rfc3339Nano)),
			NewData:   workItemRowData(item),
		}
		return s.recordAction(ctx, tx, types.ActionAddWorkItem, &item.ID, fmt.Sprintf("Added work item %q", item.Name), []*types.UndoStep{step})
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkItemByID(ctx, itemID, types.ActiveOnly)
}

// AddTreeNode is one node of an AddTree request forest.
type AddTreeNode struct {
	Name        string
	Description *string
	Priority    types.Priority
	Status      types.Status
	Shortname   *string
	DueDate     *time.Time
	Children    []AddTreeNode
}

// AddTree runs a single transaction creating a forest under parentID (nil
// means roots), recording one ADD_WORK_ITEM_TREE action with one UPDATE
// step per item created.
func (s *Service) AddTree(ctx context.Context, parentID *string, roots []AddTreeNode) ([]*ItemView, error) {
	if len(roots) == 0 {
		return nil, types.Validationf("add-tree requires at least one root node")
	}
	if parentID != nil {
		if _, err := s.store.Items().FindByID(ctx, *parentID, types.ActiveOnly); err != nil {
			if types.IsNotFound(err) {
				return nil, types.NotFoundf("parent work item %s not found or inactive", *parentID)
			}
			return nil, err
		}
	}
	lastKey, err := s.store.Items().FindSiblingEdgeOrderKey(ctx, parentID, storage.EdgeLast)
	if err != nil {
		return nil, err
	}

	var (
		createdIDs []string
		steps      []*types.UndoStep
	)

	var buildLevel func(ctx context.Context, tx *sql.Tx, parentID *string, nodes []AddTreeNode, lastKey *string) error
	buildLevel = func(ctx context.Context, tx *sql.Tx, parentID *string, nodes []AddTreeNode, lastKey *string) error {
		for _, n := range nodes {
			if n.Name == "" {
				return types.Validationf("work item name must not be empty")
			}
			priority := n.Priority
			if priority == "" {
				priority = types.PriorityMedium
			}
			status := n.Status
			if status == "" {
				status = types.StatusTodo
			}
			key, err := idgen.KeyBetween(lastKey, nil)
			if err != nil {
				return fmt.Errorf("compute order key for tree node %q: %w", n.Name, err)
			}
			now := time.Now().UTC()
			item := &types.WorkItem{
				ID:          idgen.NewID(),
				ParentID:    parentID,
				Name:        n.Name,
				Shortname:   n.Shortname,
				Description: n.Description,
				Status:      status,
				Priority:    priority,
				OrderKey:    &key,
				DueDate:     n.DueDate,
				CreatedAt:   now,
				UpdatedAt:   now,
				IsActive:    true,
			}
			if err := s.store.Items().Create(ctx, tx, item, nil); err != nil {
				return err
			}
			createdIDs = append(createdIDs, item.ID)
			steps = append(steps, &types.UndoStep{
				TableName: types.TableWorkItems,
				RecordID:  item.ID,
				OldData:   workItemDeactivatedRowData(item.ID, now.Format(rfc3339Nano)),
				NewData:   workItemRowData(item),
			})
			lastKey = &key

			if len(n.Children) > 0 {
				if err := buildLevel(ctx, tx, &item.ID, n.Children, nil); err != nil {
					return err
				}
			}
		}
		return nil
	}

	err = s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		if err := buildLevel(ctx, tx, parentID, roots, lastKey); err != nil {
			return err
		}
		return s.recordAction(ctx, tx, types.ActionAddWorkItemTree, parentID, fmt.Sprintf("Added work item tree (%d items)", len(steps)), steps)
	})
	if err != nil {
		return nil, err
	}

	views := make([]*ItemView, 0, len(createdIDs))
	for _, id := range createdIDs {
		v, err := s.GetWorkItemByID(ctx, id, types.ActiveOnly)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}
