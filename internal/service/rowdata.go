package service

import (
	"time"

	"github.com/steveyegge/workgraph/internal/types"
)

// workItemRowData serializes item's full row for an undo step, matching the
// encoding jsonToSQLValue (internal/storage/sqlstore) decodes back: time
// fields as RFC3339Nano strings, everything else as its natural JSON
// representation.
func workItemRowData(item *types.WorkItem) types.RowData {
	return types.RowData{
		"id":                  item.ID,
		"parent_work_item_id": derefAny(item.ParentID),
		"name":                item.Name,
		"shortname":           derefAny(item.Shortname),
		"description":         derefAny(item.Description),
		"status":              string(item.Status),
		"priority":            string(item.Priority),
		"order_key":           derefAny(item.OrderKey),
		"due_date":            timeAny(item.DueDate), // nil (SQL NULL) when unset
		"created_at":          item.CreatedAt.UTC().Format(rfc3339Nano),
		"updated_at":          item.UpdatedAt.UTC().Format(rfc3339Nano),
		"is_active":           item.IsActive,
	}
}

// workItemDeactivatedRowData is the minimal "became inactive" marker used
// when the only change a step needs to express is deactivation. id is
// required: applyRowState locates the row by primary
// key, which must be present in data itself.
func workItemDeactivatedRowData(id string, updatedAt any) types.RowData {
	return types.RowData{
		"id":         id,
		"is_active":  false,
		"updated_at": updatedAt,
	}
}

// dependencyRowData serializes dep's full row for an undo step.
func dependencyRowData(dep *types.Dependency) types.RowData {
	return types.RowData{
		"work_item_id":            dep.WorkItemID,
		"depends_on_work_item_id": dep.DependsOnID,
		"dependency_type":         string(dep.DependencyType),
		"created_at":              dep.CreatedAt.UTC().Format(rfc3339Nano),
		"updated_at":              dep.UpdatedAt.UTC().Format(rfc3339Nano),
		"is_active":               dep.IsActive,
	}
}

// dependencyDeactivatedRowData is the minimal "became inactive" marker for
// a dependency link step. Both composite-key columns are required so
// applyRowState can locate the row.
func dependencyDeactivatedRowData(workItemID, dependsOnID string, updatedAt any) types.RowData {
	return types.RowData{
		"work_item_id":            workItemID,
		"depends_on_work_item_id": dependsOnID,
		"is_active":               false,
		"updated_at":              updatedAt,
	}
}

// dependencyAbsentRowData is the "link did not exist" pre-state for a
// newly-created link's undo step: undoing a creation must still resolve the
// row by primary key and deactivate it, so the identifying columns are
// carried even though the link never had a prior active/inactive state.
// updated_at is deliberately omitted so the replay primitive fills it with
// the current instant rather than writing a NULL into a NOT NULL column.
func dependencyAbsentRowData(workItemID, dependsOnID string) types.RowData {
	return types.RowData{
		"work_item_id":            workItemID,
		"depends_on_work_item_id": dependsOnID,
		"is_active":               false,
	}
}

const rfc3339Nano = "2006-01-02T15:04:05.999999999Z07:00"

func timeNowString() string {
	return time.Now().UTC().Format(rfc3339Nano)
}

func derefAny(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeAny(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(rfc3339Nano)
}
