package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/types"
)

// requireActive loads id, translating a missing/inactive row into the
// NotFound kind every field setter and positional move needs.
func (s *Service) requireActive(ctx context.Context, id string) (*types.WorkItem, error) {
	item, err := s.store.Items().FindByID(ctx, id, types.ActiveOnly)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, types.NotFoundf("work item %s not found or inactive", id)
		}
		return nil, err
	}
	return item, nil
}

// applyFieldUpdate runs the common single-field-update contract once the caller has
// already determined the new value differs from the old one: update the
// column plus updated_at, produce a single partial-row undo step containing
// {id, fieldKey, updated_at}, and record the action.
func (s *Service) applyFieldUpdate(ctx context.Context, id string, actionType types.ActionType, description string, payload storage.FieldUpdate, fieldKey string, oldVal, newVal any, beforeUpdatedAt time.Time) (*ItemView, error) {
	err := s.store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		after, err := s.store.Items().UpdateFields(ctx, tx, id, payload)
		if err != nil {
			return err
		}
		if after == nil {
			return types.NotFoundf("work item %s not found or inactive", id)
		}
		step := &types.UndoStep{
			TableName: types.TableWorkItems,
			RecordID:  id,
			OldData: types.RowData{
				"id":         id,
				fieldKey:     oldVal,
				"updated_at": beforeUpdatedAt.UTC().Format(rfc3339Nano),
			},
			NewData: types.RowData{
				"id":         id,
				fieldKey:     newVal,
				"updated_at": after.UpdatedAt.UTC().Format(rfc3339Nano),
			},
		}
		return s.recordAction(ctx, tx, actionType, &id, description, []*types.UndoStep{step})
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkItemByID(ctx, id, types.ActiveOnly)
}

// SetName updates a work item's name.
func (s *Service) SetName(ctx context.Context, id, name string) (*ItemView, error) {
	if name == "" {
		return nil, types.Validationf("name must not be empty")
	}
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Name == name {
		return s.GetWorkItemByID(ctx, id, types.ActiveOnly)
	}
	return s.applyFieldUpdate(ctx, id, types.ActionSetName, fmt.Sprintf("Set name to %q", name),
		storage.FieldUpdate{Name: &name}, "name", before.Name, name, before.UpdatedAt)
}

// SetDescription updates a work item's description, nil clearing it.
// description may be nil to clear it.
func (s *Service) SetDescription(ctx context.Context, id string, description *string) (*ItemView, error) {
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if stringPtrEqual(before.Description, description) {
		return s.GetWorkItemByID(ctx, id, types.ActiveOnly)
	}
	var payload sql.NullString
	if description != nil {
		payload = sql.NullString{String: *description, Valid: true}
	}
	return s.applyFieldUpdate(ctx, id, types.ActionSetDescription, "Set description",
		storage.FieldUpdate{Description: &payload}, "description", derefAny(before.Description), derefAny(description), before.UpdatedAt)
}

// SetPriority updates a work item's priority.
func (s *Service) SetPriority(ctx context.Context, id string, priority types.Priority) (*ItemView, error) {
	if !priority.Valid() {
		return nil, types.Validationf("invalid priority %q", priority)
	}
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Priority == priority {
		return s.GetWorkItemByID(ctx, id, types.ActiveOnly)
	}
	return s.applyFieldUpdate(ctx, id, types.ActionSetPriority, fmt.Sprintf("Set priority to %q", priority),
		storage.FieldUpdate{Priority: &priority}, "priority", string(before.Priority), string(priority), before.UpdatedAt)
}

// SetStatus updates a work item's status.
func (s *Service) SetStatus(ctx context.Context, id string, status types.Status) (*ItemView, error) {
	if !status.Valid() {
		return nil, types.Validationf("invalid status %q", status)
	}
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Status == status {
		return s.GetWorkItemByID(ctx, id, types.ActiveOnly)
	}
	return s.applyFieldUpdate(ctx, id, types.ActionSetStatus, fmt.Sprintf("Set status to %q", status),
		storage.FieldUpdate{Status: &status}, "status", string(before.Status), string(status), before.UpdatedAt)
}

// SetDueDate updates a work item's due date. dueDate may
// be nil to clear it; equality is compared as normalized instants.
func (s *Service) SetDueDate(ctx context.Context, id string, dueDate *time.Time) (*ItemView, error) {
	before, err := s.requireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if timePtrEqual(before.DueDate, dueDate) {
		return s.GetWorkItemByID(ctx, id, types.ActiveOnly)
	}
	var payload sql.NullTime
	if dueDate != nil {
		payload = sql.NullTime{Time: *dueDate, Valid: true}
	}
	return s.applyFieldUpdate(ctx, id, types.ActionSetDueDate, "Set due date",
		storage.FieldUpdate{DueDate: &payload}, "due_date", timeAny(before.DueDate), timeAny(dueDate), before.UpdatedAt)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
