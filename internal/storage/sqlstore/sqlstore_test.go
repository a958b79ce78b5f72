//go:build integration

package sqlstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/steveyegge/workgraph/internal/storage"
)

// testTimeout bounds any single repository operation in these tests. The
// container speaks the MySQL wire protocol, but a cold container can still
// be slow on its first query.
const testTimeout = 30 * time.Second

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), testTimeout)
}

// uniqueTestDBName gives each test's container a randomly named database.
func uniqueTestDBName(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("generate random db name: %v", err)
	}
	return "testdb_" + hex.EncodeToString(buf)
}

// setupTestStore starts a fresh throwaway Dolt container for the calling
// test with a uniquely named database, bootstraps the schema, and returns a
// Store ready for use plus a cleanup func that closes the pool and
// terminates the container.
func setupTestStore(t *testing.T) (*Store, func()) {
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
	require.NoError(t, err, "dolt connection string")

	pool, err := storage.Open("mysql", connStr, nil)
	require.NoError(t, err, "open pool against dolt container")
	require.NoError(t, pool.DB().PingContext(ctx), "ping dolt container")
	require.NoError(t, EnsureSchema(ctx, pool.DB()), "bootstrap schema")

	store := New(pool, nil)
	cleanup := func() {
		pool.Close()
		termCtx, termCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer termCancel()
		if err := ctr.Terminate(termCtx); err != nil {
			t.Logf("terminate dolt container: %v", err)
		}
	}
	return store, cleanup
}
