package service

import (
	"context"
	"sort"

	"github.com/steveyegge/workgraph/internal/types"
)

// ItemView is the composite hydrated view returned by every mutation and by
// GetWorkItemByID: the item itself plus its outgoing dependencies, incoming
// dependents, and direct children.
type ItemView struct {
	Item         *types.WorkItem   `json:"work_item"`
	Dependencies []*types.Dependency `json:"dependencies"`
	Dependents   []*types.Dependency `json:"dependents"`
	Children     []*types.WorkItem `json:"children"`
}

// GetWorkItemByID fetches the primary row plus its immediate relational
// neighborhood, all read outside any transaction since this is a plain
// hydration read.
func (s *Service) GetWorkItemByID(ctx context.Context, id string, filter types.ActiveFilter) (*ItemView, error) {
	item, err := s.store.Items().FindByID(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	deps, err := s.store.Items().FindDependencies(ctx, id, types.ActiveOnly, types.AnyActive)
	if err != nil {
		return nil, err
	}
	dependents, err := s.store.Items().FindDependents(ctx, id, types.ActiveOnly, types.AnyActive)
	if err != nil {
		return nil, err
	}
	children, err := s.store.Items().FindChildren(ctx, id, types.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return &ItemView{Item: item, Dependencies: deps, Dependents: dependents, Children: children}, nil
}

// TreeNode is one node of a GetFullTree result: the item plus its already-
// hydrated subtree.
type TreeNode struct {
	Item     *types.WorkItem `json:"work_item"`
	Children []*TreeNode     `json:"children"`
}

// TreeOptions controls GetFullTree's traversal.
type TreeOptions struct {
	IncludeInactive bool
}

// GetFullTree fetches id's subtree, ordered at every level by order_key
// then created_at (mirroring FindChildren), with inactive subtrees pruned
// unless opts.IncludeInactive is set.
func (s *Service) GetFullTree(ctx context.Context, id string, opts TreeOptions) (*TreeNode, error) {
	filter := types.ActiveOnly
	if opts.IncludeInactive {
		filter = types.AnyActive
	}
	root, err := s.store.Items().FindByID(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	node := &TreeNode{Item: root}
	if err := s.fillChildren(ctx, node, filter); err != nil {
		return nil, err
	}
	return node, nil
}

func (s *Service) fillChildren(ctx context.Context, node *TreeNode, filter types.ActiveFilter) error {
	children, err := s.store.Items().FindChildren(ctx, node.Item.ID, filter)
	if err != nil {
		return err
	}
	node.Children = make([]*TreeNode, 0, len(children))
	for _, child := range children {
		childNode := &TreeNode{Item: child}
		if err := s.fillChildren(ctx, childNode, filter); err != nil {
			return err
		}
		node.Children = append(node.Children, childNode)
	}
	return nil
}

// ListWorkItems lists work items under a roots-only, single-parent, or
// unfiltered selection, ordered by order_key then created_at to match the
// repository's sibling ordering.
func (s *Service) ListWorkItems(ctx context.Context, filter types.WorkItemFilter) ([]*types.WorkItem, error) {
	var (
		items []*types.WorkItem
		err   error
	)
	switch {
	case filter.RootsOnly:
		items, err = s.store.Items().FindRoots(ctx, filter.IsActive)
	case filter.HasParent && filter.ParentID != nil:
		items, err = s.store.Items().FindChildren(ctx, *filter.ParentID, filter.IsActive)
	case filter.HasParent:
		items, err = s.store.Items().FindRoots(ctx, filter.IsActive)
	default:
		items, err = s.store.Items().FindRoots(ctx, filter.IsActive)
		if err != nil {
			return nil, err
		}
		var all []*types.WorkItem
		all = append(all, items...)
		for _, root := range items {
			descendants, derr := s.store.Items().FindDescendants(ctx, root.ID)
			if derr != nil {
				return nil, derr
			}
			for _, d := range descendants {
				if filter.IsActive == types.AnyActive || d.IsActive == (filter.IsActive == types.ActiveOnly) {
					all = append(all, d)
				}
			}
		}
		items = all
	}
	if err != nil {
		return nil, err
	}
	if filter.Status != nil {
		filtered := make([]*types.WorkItem, 0, len(items))
		for _, it := range items {
			if it.Status == *filter.Status {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := items[i].OrderKey, items[j].OrderKey
		if ki == nil || kj == nil {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		if *ki == *kj {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return *ki < *kj
	})
	return items, nil
}
