package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all history tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cycles (
		id         TEXT PRIMARY KEY,
		workload   TEXT NOT NULL,
		workers    INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS results (
		cycle_id           TEXT NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
		worker_id          INTEGER NOT NULL,
		policy             TEXT NOT NULL,
		average_waiting    REAL NOT NULL DEFAULT 0,
		average_turnaround REAL NOT NULL DEFAULT 0,
		processes          INTEGER NOT NULL DEFAULT 0,
		error              TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (cycle_id, worker_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cycles_created_at ON cycles(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_cycles_workload ON cycles(workload)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "results",
		column:   "quantum",
		alterSQL: "ALTER TABLE results ADD COLUMN quantum INTEGER NOT NULL DEFAULT 0",
	},
	{
		table:    "results",
		column:   "duration_ns",
		alterSQL: "ALTER TABLE results ADD COLUMN duration_ns INTEGER NOT NULL DEFAULT 0",
	},
	{
		table:    "results",
		column:   "policy",
		alterSQL: "ALTER TABLE results ADD COLUMN policy TEXT NOT NULL DEFAULT ''",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_results_policy ON results(policy)",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := hasColumn(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
