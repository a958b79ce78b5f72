//go:build integration

package sqlstore

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/workgraph/internal/idgen"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/types"
)

func newTestItem(parentID *string, name string) *types.WorkItem {
	now := time.Now().UTC()
	key := idgen.FirstKey()
	return &types.WorkItem{
		ID:        idgen.NewID(),
		ParentID:  parentID,
		Name:      name,
		Status:    types.StatusTodo,
		Priority:  types.PriorityMedium,
		OrderKey:  &key,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
}

func createItem(t *testing.T, store *Store, item *types.WorkItem) {
	t.Helper()
	ctx, cancel := testContext(t)
	defer cancel()
	err := store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		return store.Items().Create(ctx, tx, item, nil)
	})
	require.NoError(t, err, "create work item %s", item.Name)
}

func TestCreateAndFindByID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	item := newTestItem(nil, "root item")
	createItem(t, store, item)

	found, err := store.Items().FindByID(ctx, item.ID, types.ActiveOnly)
	require.NoError(t, err)
	assert.Equal(t, item.Name, found.Name)
	assert.Equal(t, types.StatusTodo, found.Status)
	assert.Nil(t, found.ParentID)

	_, err = store.Items().FindByID(ctx, "does-not-exist", types.ActiveOnly)
	assert.True(t, types.IsNotFound(err))
}

func TestFindChildrenAndDescendants(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	root := newTestItem(nil, "root")
	createItem(t, store, root)

	child := newTestItem(&root.ID, "child")
	createItem(t, store, child)

	grandchild := newTestItem(&child.ID, "grandchild")
	createItem(t, store, grandchild)

	children, err := store.Items().FindChildren(ctx, root.ID, types.ActiveOnly)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	descendants, err := store.Items().FindDescendants(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, descendants, 2)
}

func TestUpdateFieldsTriState(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	item := newTestItem(nil, "needs description")
	createItem(t, store, item)

	newName := "has description now"
	desc := sql.NullString{String: "filled in", Valid: true}
	var after *types.WorkItem
	err := store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		var innerErr error
		after, innerErr = store.Items().UpdateFields(ctx, tx, item.ID, storage.FieldUpdate{
			Name:        &newName,
			Description: &desc,
		})
		return innerErr
	})
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, newName, after.Name)
	require.NotNil(t, after.Description)
	assert.Equal(t, "filled in", *after.Description)

	// Clearing back to NULL is expressed the same tri-state way, distinct
	// from "field not present in this update".
	cleared := sql.NullString{Valid: false}
	err = store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		var innerErr error
		after, innerErr = store.Items().UpdateFields(ctx, tx, item.ID, storage.FieldUpdate{Description: &cleared})
		return innerErr
	})
	require.NoError(t, err)
	assert.Nil(t, after.Description)
}

func TestSoftDeleteExcludesFromActiveLookups(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	item := newTestItem(nil, "to be deleted")
	createItem(t, store, item)

	err := store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		n, innerErr := store.Items().SoftDelete(ctx, tx, []string{item.ID})
		if innerErr != nil {
			return innerErr
		}
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	_, err = store.Items().FindByID(ctx, item.ID, types.ActiveOnly)
	assert.True(t, types.IsNotFound(err))

	found, err := store.Items().FindByID(ctx, item.ID, types.AnyActive)
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func TestDependencyUpsertAndSoftDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx, cancel := testContext(t)
	defer cancel()

	blocked := newTestItem(nil, "blocked")
	createItem(t, store, blocked)
	blocker := newTestItem(nil, "blocker")
	createItem(t, store, blocker)

	err := store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		deps, innerErr := store.Items().AddOrUpdateDependencies(ctx, tx, blocked.ID, []types.DependencyInput{
			{DependsOnID: blocker.ID, DependencyType: types.DependencyFinishToStart},
		})
		if innerErr != nil {
			return innerErr
		}
		require.Len(t, deps, 1)
		return nil
	})
	require.NoError(t, err)

	found, err := store.Items().FindDependencies(ctx, blocked.ID, types.ActiveOnly, types.AnyActive)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, blocker.ID, found[0].DependsOnID)

	err = store.Pool().WithTx(ctx, func(tx *sql.Tx) error {
		n, innerErr := store.Items().SoftDeleteDependenciesByCompositeKeys(ctx, tx, [][2]string{{blocked.ID, blocker.ID}})
		if innerErr != nil {
			return innerErr
		}
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	found, err = store.Items().FindDependencies(ctx, blocked.ID, types.ActiveOnly, types.AnyActive)
	require.NoError(t, err)
	assert.Empty(t, found)
}
