package cli

import (
	"context"
	"fmt"

	"github.com/me/schedsim/internal/dispatcher"
	"github.com/me/schedsim/internal/store"
	"github.com/me/schedsim/internal/workload"
)

// startPool creates the dispatcher for cfg.Workers and waits for every
// worker to be ready. Runs are bounded by cfg.RunTimeout.
func startPool(ctx context.Context) (*dispatcher.Dispatcher, error) {
	d, err := dispatcher.New(cfg.Workers, workload.NewLoader(nil, logger), logger,
		dispatcher.WithRunTimeout(cfg.RunTimeout))
	if err != nil {
		return nil, err
	}
	if err := d.Start(ctx); err != nil {
		return nil, fmt.Errorf("start workers: %w", err)
	}
	return d, nil
}

// openStore opens and migrates the history database. It returns nil when
// history is disabled.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	if cfg.NoHistory {
		return nil, nil
	}
	path, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Debug("database ready", "path", path)
	return st, nil
}
