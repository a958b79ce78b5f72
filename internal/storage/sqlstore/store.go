// Package sqlstore implements C2 (work-item repository) and C3 (action
// history repository) against database/sql: hand-written SQL, no ORM, '?'
// placeholders, and small per-concern files rather than one god object.
package sqlstore

import (
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/telemetry"
)

// Store wires the item and action repositories to a shared pool.
type Store struct {
	pool    *storage.Pool
	items   *ItemRepo
	actions *ActionRepo
}

// New builds a Store over an already-open pool. metrics may be nil; every
// Metrics method is nil-receiver-safe.
func New(pool *storage.Pool, metrics *telemetry.Metrics) *Store {
	return &Store{
		pool:    pool,
		items:   &ItemRepo{pool: pool, metrics: metrics},
		actions: &ActionRepo{pool: pool},
	}
}

func (s *Store) Items() storage.ItemStore     { return s.items }
func (s *Store) Actions() storage.ActionStore { return s.actions }
func (s *Store) Pool() *storage.Pool          { return s.pool }

var _ storage.Store = (*Store)(nil)
