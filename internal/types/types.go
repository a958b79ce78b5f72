// Package types holds the data model shared by the storage, history, and
// service layers: work items, dependency links, action-history records, and
// undo steps, plus the enums and filters used across the core.
package types

import "time"

// Status is the closed set of work-item lifecycle states.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the four defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Priority is the closed set of work-item priorities.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// DependencyType is the closed set of typed dependency-link kinds.
type DependencyType string

const (
	DependencyFinishToStart DependencyType = "finish-to-start"
	DependencyLinked        DependencyType = "linked"
)

func (d DependencyType) Valid() bool {
	switch d {
	case DependencyFinishToStart, DependencyLinked:
		return true
	}
	return false
}

// ActionType is the closed vocabulary of action_history.action_type values.
type ActionType string

const (
	ActionAddWorkItem         ActionType = "ADD_WORK_ITEM"
	ActionAddWorkItemTree     ActionType = "ADD_WORK_ITEM_TREE"
	ActionUpdateWorkItem      ActionType = "UPDATE_WORK_ITEM" // deprecated, still accepted on replay
	ActionSetName             ActionType = "SET_NAME"
	ActionSetDescription      ActionType = "SET_DESCRIPTION"
	ActionSetStatus           ActionType = "SET_STATUS"
	ActionSetPriority         ActionType = "SET_PRIORITY"
	ActionSetDueDate          ActionType = "SET_DUE_DATE"
	ActionSetOrderKey         ActionType = "SET_ORDER_KEY"
	ActionAddDependencies     ActionType = "ADD_DEPENDENCIES"
	ActionDeleteDependencies  ActionType = "DELETE_DEPENDENCIES"
	ActionDeleteWorkItemTree  ActionType = "DELETE_WORK_ITEM_CASCADE"
	ActionPromoteToProject    ActionType = "PROMOTE_TO_PROJECT"
	ActionUndo                ActionType = "UNDO_ACTION"
	ActionRedo                ActionType = "REDO_ACTION"
)

// IsUndoOrRedo reports whether t is one of the two history-engine-owned types.
func (t ActionType) IsUndoOrRedo() bool {
	return t == ActionUndo || t == ActionRedo
}

// WorkItem is a project, task, or subtask row.
type WorkItem struct {
	ID           string     `json:"work_item_id"`
	ParentID     *string    `json:"parent_work_item_id,omitempty"`
	Name         string     `json:"name"`
	Shortname    *string    `json:"shortname,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	OrderKey     *string    `json:"order_key,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	IsActive     bool       `json:"is_active"`
}

// Dependency is a typed, directed link from WorkItemID to DependsOnID.
type Dependency struct {
	WorkItemID     string         `json:"work_item_id"`
	DependsOnID    string         `json:"depends_on_work_item_id"`
	DependencyType DependencyType `json:"dependency_type"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RecordID renders the composite-key encoding used by undo_steps.record_id
// for work_item_dependencies rows.
func (d Dependency) RecordID() string {
	return d.WorkItemID + ":" + d.DependsOnID
}

// DependencyInput is one element of a dependency-add request.
type DependencyInput struct {
	DependsOnID    string
	DependencyType DependencyType // empty defaults to finish-to-start
}

// Action is one row of action_history.
type Action struct {
	ID               string     `json:"action_id"`
	Timestamp        time.Time  `json:"timestamp"`
	ActionType       ActionType `json:"action_type"`
	WorkItemID       *string    `json:"work_item_id,omitempty"`
	Description      string     `json:"description"`
	IsUndone         bool       `json:"is_undone"`
	UndoneAtActionID *string    `json:"undone_at_action_id,omitempty"`
}

// IsOriginal reports whether a is subject to undo/redo bookkeeping itself,
// i.e. is neither an UNDO nor a REDO action.
func (a Action) IsOriginal() bool {
	return !a.ActionType.IsUndoOrRedo()
}

// StepType is always UPDATE for core mutations; INSERT/DELETE are retained
// only as historical enum members, since every mutation here is expressed
// as a before/after row replace rather than a structural insert or delete.
type StepType string

const (
	StepUpdate StepType = "UPDATE"
	StepInsert StepType = "INSERT" // unused by any core mutation
	StepDelete StepType = "DELETE" // unused by any core mutation
)

// TableName identifies which repository replays an UndoStep.
type TableName string

const (
	TableWorkItems            TableName = "work_items"
	TableWorkItemDependencies TableName = "work_item_dependencies"
)

// RowData is the generic old/new row payload a step carries. Values are
// whatever the JSON encoding of a Go scalar produces (string, float64, bool,
// nil); callers type-assert the fields they need.
type RowData map[string]any

// UndoStep is a single reversible row mutation belonging to one action.
type UndoStep struct {
	ID         string    `json:"undo_step_id"`
	ActionID   string    `json:"action_id"`
	StepOrder  int       `json:"step_order"`
	StepType   StepType  `json:"step_type"`
	TableName  TableName `json:"table_name"`
	RecordID   string    `json:"record_id"`
	OldData    RowData   `json:"old_data"`
	NewData    RowData   `json:"new_data"`
}

// ActiveFilter selects which rows a read returns, by is_active.
type ActiveFilter int

const (
	ActiveOnly ActiveFilter = iota // default
	InactiveOnly
	AnyActive
)

// WorkItemFilter narrows ListWorkItems (C6).
type WorkItemFilter struct {
	ParentID   *string // explicit nil pointer value means "roots"; field itself unset means "no parent filter"
	HasParent  bool    // true iff ParentID was supplied (distinguishes "unset" from explicit null)
	RootsOnly  bool
	Status     *Status
	IsActive   ActiveFilter
}
