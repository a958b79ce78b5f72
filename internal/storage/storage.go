package storage

import (
	"context"
	"database/sql"

	"github.com/steveyegge/workgraph/internal/types"
)

// ItemStore is C2, the work-item and dependency repository. Read methods
// accept the pool directly; write methods require an active transaction
// handle.
type ItemStore interface {
	FindByID(ctx context.Context, id string, filter types.ActiveFilter) (*types.WorkItem, error)
	FindByIDs(ctx context.Context, ids []string, filter types.ActiveFilter) ([]*types.WorkItem, error)
	FindRoots(ctx context.Context, filter types.ActiveFilter) ([]*types.WorkItem, error)
	FindChildren(ctx context.Context, parentID string, filter types.ActiveFilter) ([]*types.WorkItem, error)
	FindDescendants(ctx context.Context, id string) ([]*types.WorkItem, error)
	FindSiblings(ctx context.Context, id string, filter types.ActiveFilter) ([]*types.WorkItem, error)
	SearchByNameOrDescription(ctx context.Context, q string, filter types.ActiveFilter) ([]*types.WorkItem, error)

	FindDependencies(ctx context.Context, id string, linkFilter, targetFilter types.ActiveFilter) ([]*types.Dependency, error)
	FindDependents(ctx context.Context, id string, linkFilter, targetFilter types.ActiveFilter) ([]*types.Dependency, error)
	FindDependenciesByCompositeKeys(ctx context.Context, keys [][2]string) ([]*types.Dependency, error)

	Create(ctx context.Context, tx *sql.Tx, item *types.WorkItem, deps []types.DependencyInput) error
	UpdateFields(ctx context.Context, tx *sql.Tx, id string, payload FieldUpdate) (*types.WorkItem, error)
	AddOrUpdateDependencies(ctx context.Context, tx *sql.Tx, sourceID string, deps []types.DependencyInput) ([]*types.Dependency, error)
	SoftDelete(ctx context.Context, tx *sql.Tx, ids []string) (int, error)
	SoftDeleteDependenciesByCompositeKeys(ctx context.Context, tx *sql.Tx, keys [][2]string) (int, error)

	ApplyRowState(ctx context.Context, tx *sql.Tx, table types.TableName, data types.RowData) error

	FindSiblingEdgeOrderKey(ctx context.Context, parentID *string, edge Edge) (*string, error)
	FindNeighbourOrderKeys(ctx context.Context, parentID *string, pivotID string, side Side) (before, after *string, err error)
}

// Edge selects which end of a sibling list FindSiblingEdgeOrderKey returns.
type Edge int

const (
	EdgeFirst Edge = iota
	EdgeLast
)

// Side selects which side of a pivot FindNeighbourOrderKeys inserts at.
type Side int

const (
	SideBefore Side = iota
	SideAfter
)

// FieldUpdate is the whitelist of columns UpdateFields may change. A nil
// field pointer means "not part of this update"; Description and DueDate
// are themselves tri-state (nil = unchanged, Valid=false = clear to NULL,
// Valid=true = set) because both columns are nullable and a setter must be
// able to clear them.
type FieldUpdate struct {
	Name        *string
	Description *sql.NullString
	Status      *types.Status
	Priority    *types.Priority
	DueDate     *sql.NullTime
	Shortname   *string
	OrderKey    *string
	// ParentID is tri-state like Description/DueDate: nil means unchanged,
	// Valid=false detaches the item to root, Valid=true reparents it.
	ParentID *sql.NullString
}

// ActionStore is C3, the action-history repository.
type ActionStore interface {
	CreateAction(ctx context.Context, tx *sql.Tx, action *types.Action) error
	CreateUndoStep(ctx context.Context, tx *sql.Tx, step *types.UndoStep) error
	FindActionByID(ctx context.Context, id string) (*types.Action, error)
	FindUndoStepsByActionID(ctx context.Context, actionID string) ([]*types.UndoStep, error)
	FindLastOriginalAction(ctx context.Context) (*types.Action, error)
	FindLastUndoAction(ctx context.Context) (*types.Action, error)
	FindRecentUnredoneUndoActions(ctx context.Context, limit int) ([]*types.Action, error)
	FindActionLinkedByUndo(ctx context.Context, undoID string) (*types.Action, error)
	MarkActionAsUndone(ctx context.Context, tx *sql.Tx, originalID, undoID string) error
	MarkActionAsNotUndone(ctx context.Context, tx *sql.Tx, originalID string) error
	MarkUndoActionAsRedoneOrInvalidated(ctx context.Context, tx *sql.Tx, undoID string, byID *string) error
	ListRecentActions(ctx context.Context, workItemID *string, limit int) ([]*types.Action, error)
	InvalidateRedoStack(ctx context.Context, tx *sql.Tx, exceptActionID string) (int, error)
}

// Store composes C2 and C3 into the single handle the history engine and
// mutation services depend on.
type Store interface {
	Items() ItemStore
	Actions() ActionStore
	Pool() *Pool
}
