package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the four core tables, in MySQL dialect (the
// production driver is go-sql-driver/mysql). Schema migration *execution*
// (versioning, rollout) is out of scope here; this is just the idempotent
// bootstrap DDL a fresh deployment or test database needs.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS work_items (
		id VARCHAR(36) PRIMARY KEY,
		parent_work_item_id VARCHAR(36) NULL,
		name TEXT NOT NULL,
		shortname TEXT NULL,
		description TEXT NULL,
		status VARCHAR(16) NOT NULL,
		priority VARCHAR(16) NOT NULL,
		order_key VARCHAR(256) NULL,
		due_date DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		KEY idx_work_items_parent (parent_work_item_id, order_key, created_at),
		KEY idx_work_items_active (is_active)
	)`,
	`CREATE TABLE IF NOT EXISTS work_item_dependencies (
		work_item_id VARCHAR(36) NOT NULL,
		depends_on_work_item_id VARCHAR(36) NOT NULL,
		dependency_type VARCHAR(20) NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (work_item_id, depends_on_work_item_id),
		KEY idx_deps_depends_on (depends_on_work_item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS action_history (
		action_id VARCHAR(36) PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		action_type VARCHAR(40) NOT NULL,
		work_item_id VARCHAR(36) NULL,
		description TEXT NOT NULL,
		is_undone TINYINT(1) NOT NULL DEFAULT 0,
		undone_at_action_id VARCHAR(36) NULL,
		KEY idx_action_history_work_item (work_item_id, timestamp),
		KEY idx_action_history_undone (is_undone, action_type, timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS undo_steps (
		undo_step_id VARCHAR(36) PRIMARY KEY,
		action_id VARCHAR(36) NOT NULL,
		step_order INT NOT NULL,
		step_type VARCHAR(10) NOT NULL DEFAULT 'UPDATE',
		table_name VARCHAR(40) NOT NULL,
		record_id VARCHAR(400) NOT NULL,
		old_data TEXT NOT NULL,
		new_data TEXT NOT NULL,
		UNIQUE KEY uq_undo_steps_action_order (action_id, step_order)
	)`,
}

// EnsureSchema creates the core tables if they do not already exist. Safe to
// call on every process start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
