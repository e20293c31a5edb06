// Package runner turns one job request into one set of scheduling averages:
// load the workload, order the table for the bound policy, run the engine
// and average the results.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/schedsim/internal/sched"
	"github.com/me/schedsim/internal/tracing"
	"github.com/me/schedsim/internal/workload"
	"github.com/me/schedsim/pkg/model"
)

// Outcome is the full product of one run.
type Outcome struct {
	Workload *workload.Workload
	Table    model.ProcessTable
	Averages model.Averages
}

// Runner executes job requests under a single scheduling policy.
type Runner struct {
	engine sched.Engine
	loader *workload.Loader
	logger *slog.Logger
}

// New creates a Runner bound to policy.
func New(policy model.Policy, loader *workload.Loader, logger *slog.Logger) (*Runner, error) {
	engine, err := sched.For(policy)
	if err != nil {
		return nil, err
	}
	return &Runner{
		engine: engine,
		loader: loader,
		logger: logger.With("component", "runner", "policy", policy.String()),
	}, nil
}

// Policy returns the policy this runner is bound to.
func (r *Runner) Policy() model.Policy {
	return r.engine.Policy()
}

// Run executes req and returns only the averages.
func (r *Runner) Run(ctx context.Context, req model.JobRequest) (model.Averages, error) {
	out, err := r.RunDetailed(ctx, req)
	if err != nil {
		return model.Averages{}, err
	}
	return out.Averages, nil
}

// RunDetailed executes req and returns the completed process table along
// with the averages. An empty workload yields zero averages.
func (r *Runner) RunDetailed(ctx context.Context, req model.JobRequest) (_ *Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "runner.run", map[string]any{
		"policy":   r.Policy().String(),
		"workload": req.Workload,
	})
	defer func() { span.End(err) }()

	w, err := r.loader.Load(ctx, req.Workload)
	if err != nil {
		r.logger.Debug("workload rejected", "workload", req.Workload, "error", err)
		return nil, err
	}

	table := w.Table()
	out := &Outcome{Workload: w, Table: table}
	if len(table) == 0 {
		r.logger.Debug("empty workload", "workload", req.Workload)
		return out, nil
	}

	r.engine.Order(table)
	r.engine.Schedule(table, w.Quantum)
	if n := table.Remaining(); n != 0 {
		return nil, fmt.Errorf("%s left %d unfinished processes", r.Policy(), n)
	}
	out.Averages = table.Averages()

	span.SetAttributes(map[string]any{
		"processes":          len(table),
		"quantum":            w.Quantum,
		"average_waiting":    out.Averages.Waiting,
		"average_turnaround": out.Averages.Turnaround,
	})
	r.logger.Debug("run complete",
		"workload", req.Workload,
		"processes", len(table),
		"average_waiting", out.Averages.Waiting,
		"average_turnaround", out.Averages.Turnaround,
	)
	return out, nil
}
