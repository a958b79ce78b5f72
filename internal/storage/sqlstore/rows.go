package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/workgraph/internal/types"
)

// nullString converts an optional string to a sql.NullString, matching the
// teacher's habit (internal/storage/sqlite/issues.go) of turning Go pointer
// fields into driver-friendly nullable scalars at the query boundary.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

// marshalRowData encodes a RowData map as the JSON text undo_steps.old_data
// / new_data columns store. Replay relies only on field-by-field retrieval
// out of the decoded map, not on any particular encoding.
func marshalRowData(data types.RowData) (string, error) {
	if data == nil {
		data = types.RowData{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal row data: %w", err)
	}
	return string(b), nil
}

func unmarshalRowData(s string) (types.RowData, error) {
	if strings.TrimSpace(s) == "" {
		return types.RowData{}, nil
	}
	var data types.RowData
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, fmt.Errorf("unmarshal row data: %w", err)
	}
	return data, nil
}

// activeFilterClause returns the SQL predicate fragment and whether it
// should be appended at all (AnyActive means no predicate).
func activeFilterClause(alias string, filter types.ActiveFilter) (clause string, args []any) {
	col := "is_active"
	if alias != "" {
		col = alias + ".is_active"
	}
	switch filter {
	case types.ActiveOnly:
		return col + " = ?", []any{true}
	case types.InactiveOnly:
		return col + " = ?", []any{false}
	default: // AnyActive
		return "", nil
	}
}
