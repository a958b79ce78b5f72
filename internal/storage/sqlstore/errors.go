package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/steveyegge/workgraph/internal/types"
)

// wrapDBError attaches operation context and converts sql.ErrNoRows to
// types.ErrNotFound.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	// Any other database failure propagates unchanged (an Internal-kind
	// kind) so the original error chain (driver error, etc.) survives.
	return fmt.Errorf("%s: %w", op, err)
}

func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return wrapDBError(fmt.Sprintf(format, args...), err)
}
