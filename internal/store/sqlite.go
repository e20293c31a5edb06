package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/schedsim/pkg/model"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Cycle history ---

func (s *SQLiteStore) CreateCycle(ctx context.Context, c *model.Cycle) error {
	s.logger.Debug("sql", "op", "insert", "table", "cycles", "id", c.ID, "results", len(c.Results))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cycles (id, workload, workers, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Workload, c.Workers, c.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", c.ID, err)
	}

	for _, r := range c.Results {
		msg := r.Error
		if msg == "" && r.Err != nil {
			msg = r.Err.Error()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO results (cycle_id, worker_id, policy, average_waiting, average_turnaround, processes, quantum, duration_ns, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, r.WorkerID, string(r.Policy), r.Waiting, r.Turnaround, r.Processes, r.Quantum, int64(r.Duration), msg,
		)
		if err != nil {
			return fmt.Errorf("insert result %s/%d: %w", c.ID, r.WorkerID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetCycle(ctx context.Context, id string) (*model.Cycle, error) {
	s.logger.Debug("sql", "op", "select", "table", "cycles", "id", id)

	c, err := scanCycle(s.db.QueryRowContext(ctx,
		`SELECT id, workload, workers, created_at FROM cycles WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.Results, err = s.listResults(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) ListCycles(ctx context.Context, opts model.ListOptions) ([]*model.Cycle, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "cycles", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereSQL := ""
	var countArgs []any
	if opts.Workload != "" {
		whereSQL = " WHERE workload = ?"
		countArgs = append(countArgs, opts.Workload)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT id, workload, workers, created_at FROM cycles` + whereSQL +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}

	var cycles []*model.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	// Results are loaded after the cycle rows are released so the query
	// also works on a single-connection pool.
	for _, c := range cycles {
		if c.Results, err = s.listResults(ctx, c.ID); err != nil {
			return nil, 0, err
		}
	}
	return cycles, total, nil
}

func (s *SQLiteStore) DeleteCycle(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "cycles", "id", id)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE cycle_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewNotFoundError("Cycle", id)
	}
	return tx.Commit()
}

func (s *SQLiteStore) listResults(ctx context.Context, cycleID string) ([]model.JobResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT worker_id, policy, average_waiting, average_turnaround, processes, quantum, duration_ns, error
		 FROM results WHERE cycle_id = ? ORDER BY worker_id`, cycleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.JobResult{}
	for rows.Next() {
		r := model.JobResult{CycleID: cycleID}
		var policy string
		var duration int64
		if err := rows.Scan(&r.WorkerID, &policy, &r.Waiting, &r.Turnaround,
			&r.Processes, &r.Quantum, &duration, &r.Error); err != nil {
			return nil, err
		}
		r.Policy = model.Policy(policy)
		r.Duration = time.Duration(duration)
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner) (*model.Cycle, error) {
	var c model.Cycle
	var createdAt string
	if err := row.Scan(&c.ID, &c.Workload, &c.Workers, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}
