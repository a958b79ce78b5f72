//go:build integration

package service_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/steveyegge/workgraph/internal/history"
	"github.com/steveyegge/workgraph/internal/service"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/storage/sqlstore"
	"github.com/steveyegge/workgraph/internal/types"
)

const testTimeout = 30 * time.Second

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), testTimeout)
}

func uniqueTestDBName(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 6)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return "testdb_" + hex.EncodeToString(buf)
}

// setupService boots a throwaway Dolt container and wires a full Service
// (C1-C6 plus history) against it, mirroring the composition root in
// cmd/workgraphd/main.go but without the CLI/config layer.
func setupService(t *testing.T) (*service.Service, *history.Engine, func()) {
	t.Helper()
	ctx, cancel := testContext(t)
	defer cancel()

	dbName := uniqueTestDBName(t)
	ctr, err := dolt.Run(ctx, "dolthub/dolt-sql-server:1.40.9",
		dolt.WithDatabase(dbName),
		dolt.WithUsername("root"),
		dolt.WithPassword(""),
	)
	require.NoError(t, err, "start dolt container")

	connStr, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	pool, err := storage.Open("mysql", connStr, nil)
	require.NoError(t, err)
	require.NoError(t, pool.DB().PingContext(ctx))
	require.NoError(t, sqlstore.EnsureSchema(ctx, pool.DB()))

	store := sqlstore.New(pool, nil)
	historyEngine := history.New(store, nil, nil)
	svc := service.New(store, historyEngine, nil, nil)

	cleanup := func() {
		pool.Close()
		termCtx, termCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer termCancel()
		if err := ctr.Terminate(termCtx); err != nil {
			t.Logf("terminate dolt container: %v", err)
		}
	}
	return svc, historyEngine, cleanup
}

func TestAddThenUndoRemovesItem(t *testing.T) {
	svc, hist, cleanup := setupService(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	view, err := svc.Add(ctx, service.AddInput{Name: "write onboarding doc"})
	require.NoError(t, err)
	id := view.Item.ID

	_, err = svc.GetWorkItemByID(ctx, id, types.ActiveOnly)
	require.NoError(t, err)

	undone, err := hist.Undo(ctx)
	require.NoError(t, err)
	require.NotNil(t, undone)

	_, err = svc.GetWorkItemByID(ctx, id, types.ActiveOnly)
	assert.True(t, types.IsNotFound(err))
}

func TestUndoThenRedoRestoresForwardState(t *testing.T) {
	svc, hist, cleanup := setupService(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	view, err := svc.Add(ctx, service.AddInput{Name: "ship release notes"})
	require.NoError(t, err)
	id := view.Item.ID

	newName := "ship release notes v2"
	_, err = svc.SetName(ctx, id, newName)
	require.NoError(t, err)

	_, err = hist.Undo(ctx)
	require.NoError(t, err)
	reverted, err := svc.GetWorkItemByID(ctx, id, types.ActiveOnly)
	require.NoError(t, err)
	assert.Equal(t, "ship release notes", reverted.Item.Name)

	_, err = hist.Redo(ctx)
	require.NoError(t, err)
	reapplied, err := svc.GetWorkItemByID(ctx, id, types.ActiveOnly)
	require.NoError(t, err)
	assert.Equal(t, newName, reapplied.Item.Name)
}

func TestForwardMutationInvalidatesRedoStack(t *testing.T) {
	svc, hist, cleanup := setupService(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	view, err := svc.Add(ctx, service.AddInput{Name: "investigate flaky test"})
	require.NoError(t, err)
	id := view.Item.ID

	_, err = svc.SetName(ctx, id, "investigate flaky test (renamed)")
	require.NoError(t, err)

	_, err = hist.Undo(ctx)
	require.NoError(t, err)

	// A fresh forward mutation should invalidate the now-stale redo entry.
	_, err = svc.SetPriority(ctx, id, types.PriorityHigh)
	require.NoError(t, err)

	redone, err := hist.Redo(ctx)
	require.NoError(t, err)
	assert.Nil(t, redone, "redo stack should have been invalidated by the intervening mutation")
}

func TestDeleteWorkItemCascadeDeactivatesDescendantsAndLinks(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	root, err := svc.Add(ctx, service.AddInput{Name: "epic"})
	require.NoError(t, err)
	child, err := svc.Add(ctx, service.AddInput{Name: "task", ParentID: &root.Item.ID})
	require.NoError(t, err)

	blocker, err := svc.Add(ctx, service.AddInput{Name: "blocker"})
	require.NoError(t, err)
	_, err = svc.AddDependencies(ctx, child.Item.ID, []types.DependencyInput{
		{DependsOnID: blocker.Item.ID, DependencyType: types.DependencyFinishToStart},
	})
	require.NoError(t, err)

	err = svc.DeleteWorkItemCascade(ctx, []string{root.Item.ID})
	require.NoError(t, err)

	_, err = svc.GetWorkItemByID(ctx, root.Item.ID, types.ActiveOnly)
	assert.True(t, types.IsNotFound(err))
	_, err = svc.GetWorkItemByID(ctx, child.Item.ID, types.ActiveOnly)
	assert.True(t, types.IsNotFound(err))

	// Blocker itself is untouched, but blocked's link to it is gone.
	blockerView, err := svc.GetWorkItemByID(ctx, blocker.Item.ID, types.ActiveOnly)
	require.NoError(t, err)
	assert.Empty(t, blockerView.Dependents)
}

func TestPromoteToProjectDetachesFromParent(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	parent, err := svc.Add(ctx, service.AddInput{Name: "parent initiative"})
	require.NoError(t, err)
	child, err := svc.Add(ctx, service.AddInput{Name: "nested effort", ParentID: &parent.Item.ID})
	require.NoError(t, err)

	promoted, err := svc.PromoteToProject(ctx, child.Item.ID)
	require.NoError(t, err)
	assert.Nil(t, promoted.Item.ParentID)

	parentView, err := svc.GetWorkItemByID(ctx, parent.Item.ID, types.ActiveOnly)
	require.NoError(t, err)
	found := false
	for _, dep := range parentView.Dependencies {
		if dep.DependsOnID == child.Item.ID {
			found = true
		}
	}
	assert.True(t, found, "promoted item should remain linked to its former parent as a dependency")
}
