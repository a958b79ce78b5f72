// Package service implements C5 (mutation services) and C6 (reading
// service): the outward mutation/read contract. Every mutation
// opens its own transaction via C1, reads before/after state through C2,
// records history through C3/C4, and returns a freshly hydrated view
// through the reading service.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/steveyegge/workgraph/internal/history"
	"github.com/steveyegge/workgraph/internal/idgen"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/telemetry"
	"github.com/steveyegge/workgraph/internal/types"
)

// Service composes the mutation façade (C5) and the reading service (C6)
// over one Store. Following a "builder over god-object" shape, each
// mutation lives in its own small method rather than accreting cross-cutting
// logic here; Service itself only wires the shared dependencies.
type Service struct {
	store   storage.Store
	history *history.Engine
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New builds a Service. metrics may be nil.
func New(store storage.Store, historyEngine *history.Engine, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, history: historyEngine, metrics: metrics, logger: logger}
}

// recordAction persists action and its steps (if any) and invalidates the
// redo stack. Call this from inside the caller's
// transaction, after the repository writes. If steps is empty, no action is
// recorded at all and the no-op is logged at Debug.
func (s *Service) recordAction(ctx context.Context, tx *sql.Tx, actionType types.ActionType, workItemID *string, description string, steps []*types.UndoStep) error {
	if len(steps) == 0 {
		s.logger.Debug("no effective change", "action_type", actionType, "work_item_id", derefStr(workItemID))
		return nil
	}
	actionID := idgen.NewID()
	action := &types.Action{
		ID:         actionID,
		Timestamp:  time.Now().UTC(),
		ActionType: actionType,
		WorkItemID: workItemID,
		Description: description,
	}
	if err := s.store.Actions().CreateAction(ctx, tx, action); err != nil {
		return err
	}
	for i, step := range steps {
		step.ActionID = actionID
		step.StepOrder = i + 1
		step.StepType = types.StepUpdate
		step.ID = idgen.NewID()
		if err := s.store.Actions().CreateUndoStep(ctx, tx, step); err != nil {
			return err
		}
	}
	if err := s.history.InvalidateRedoStack(ctx, tx, actionID); err != nil {
		return err
	}
	s.metrics.MutationApplied(ctx, string(actionType))
	return nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validateNonEmptyID(id, label string) error {
	if id == "" {
		return types.Validationf("%s must not be empty", label)
	}
	return nil
}
