// Package dispatcher drives a fixed pool of workers through publish/collect
// cycles: publish one request, wait for every worker to acknowledge it,
// drain exactly one result per worker, repeat until shutdown.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/schedsim/internal/mailbox"
	"github.com/me/schedsim/internal/runner"
	"github.com/me/schedsim/internal/tracing"
	"github.com/me/schedsim/internal/worker"
	"github.com/me/schedsim/internal/workload"
	"github.com/me/schedsim/pkg/model"
)

var (
	// ErrShutdown is returned by Dispatch after Shutdown.
	ErrShutdown = errors.New("dispatcher shut down")

	// ErrNotStarted is returned by Dispatch before Start.
	ErrNotStarted = errors.New("dispatcher not started")
)

// Dispatcher owns the request and result mailboxes and the worker pool.
type Dispatcher struct {
	workers    []*worker.Worker
	requests   *mailbox.Broadcast[worker.Job]
	results    *mailbox.Rendezvous[model.JobResult]
	runTimeout time.Duration
	logger     *slog.Logger

	// cycle is a one-slot semaphore held for a whole cycle and for shutdown.
	cycle chan struct{}

	mu         sync.Mutex
	state      model.DispatcherState
	started    bool
	closing    bool
	startedAt  time.Time
	cycles     int
	runCtx     context.Context
	cancelRuns context.CancelFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRunTimeout bounds every worker run. Runs still going after d become
// failure results. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.runTimeout = d
	}
}

// New creates a dispatcher with n workers. Worker i runs Shortest-Job-First
// when i is even and Round-Robin when i is odd.
func New(n int, loader *workload.Loader, logger *slog.Logger, opts ...Option) (*Dispatcher, error) {
	if n < 1 {
		return nil, fmt.Errorf("worker count %d: must be at least 1", n)
	}
	runners := make([]worker.Runner, n)
	for i := range runners {
		r, err := runner.New(model.PolicyForWorker(i), loader, logger)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		runners[i] = r
	}
	return NewWithRunners(runners, logger, opts...), nil
}

// NewWithRunners creates a dispatcher with one worker per runner, in order.
func NewWithRunners(runners []worker.Runner, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		requests: mailbox.NewBroadcast[worker.Job](),
		results:  mailbox.NewRendezvous[model.JobResult](),
		logger:   logger.With("component", "dispatcher"),
		cycle:    make(chan struct{}, 1),
		state:    model.DispatcherStateAwaitRequest,
	}
	for _, opt := range opts {
		opt(d)
	}
	for i, r := range runners {
		d.workers = append(d.workers, worker.New(i, r, d.requests, d.results, logger))
	}
	return d
}

// Start launches the workers and blocks until every one of them is waiting
// for its first request. Cancelling ctx does not stop the pool; Shutdown does.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("dispatcher already started")
	}
	if d.closing || d.state.IsTerminal() {
		d.mu.Unlock()
		return ErrShutdown
	}
	d.started = true
	d.startedAt = time.Now()
	d.runCtx, d.cancelRuns = context.WithCancel(context.WithoutCancel(ctx))
	runCtx := d.runCtx
	d.mu.Unlock()

	for _, w := range d.workers {
		go w.Run(runCtx)
	}
	if err := d.requests.AwaitReceivers(len(d.workers)); err != nil {
		return fmt.Errorf("wait for workers: %w", err)
	}
	d.logger.Info("dispatcher ready", "workers", len(d.workers), "run_timeout", d.runTimeout)
	return nil
}

// Dispatch runs one full cycle for the workload identified by id and
// returns the drained results ordered by worker id. Workload failures are
// reported per result and do not fail the cycle.
//
// If ctx ends mid-cycle the runs are abandoned, the cycle is still drained
// so the next one starts clean, and ctx's error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) (_ *model.Cycle, err error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()

	d.mu.Lock()
	started, closing, state, poolCtx := d.started, d.closing, d.state, d.runCtx
	d.mu.Unlock()
	if closing || state.IsTerminal() {
		return nil, ErrShutdown
	}
	if !started {
		return nil, ErrNotStarted
	}

	req := model.JobRequest{ID: uuid.New().String(), Workload: id}
	ctx, span := tracing.StartSpan(ctx, "dispatcher.cycle", map[string]any{
		"cycle_id": req.ID,
		"workload": id,
		"workers":  len(d.workers),
	})
	defer func() { span.End(err) }()

	jobCtx, cancelJob := d.jobContext(ctx, poolCtx)
	defer cancelJob()

	d.setState(model.DispatcherStatePublish)
	gen, err := d.requests.Publish(worker.NewJob(jobCtx, req))
	if err != nil {
		d.setState(model.DispatcherStateAwaitRequest)
		return nil, fmt.Errorf("publish %s: %w", req.ID, err)
	}
	d.logger.Debug("request published", "cycle_id", req.ID, "workload", id, "generation", gen)

	d.setState(model.DispatcherStateAwaitAck)
	if err := d.requests.AwaitAcks(len(d.workers)); err != nil {
		return nil, fmt.Errorf("await acknowledgements: %w", err)
	}
	d.logger.Debug("all workers acknowledged", "cycle_id", req.ID)

	d.setState(model.DispatcherStateDrainResults)
	cycle := &model.Cycle{
		ID:        req.ID,
		Workload:  id,
		Workers:   len(d.workers),
		Results:   make([]model.JobResult, 0, len(d.workers)),
		CreatedAt: time.Now().UTC(),
	}
	for range d.workers {
		res, err := d.results.Take()
		if err != nil {
			return nil, fmt.Errorf("drain results: %w", err)
		}
		d.logger.Debug("result drained", "cycle_id", req.ID, "worker_id", res.WorkerID, "failed", res.Failed())
		cycle.Results = append(cycle.Results, res)
	}
	sort.Slice(cycle.Results, func(i, j int) bool {
		return cycle.Results[i].WorkerID < cycle.Results[j].WorkerID
	})
	d.setState(model.DispatcherStateAwaitRequest)

	if err := ctx.Err(); err != nil {
		d.logger.Warn("cycle abandoned", "cycle_id", req.ID, "workload", id, "error", err)
		return nil, err
	}
	if poolCtx.Err() != nil {
		return nil, ErrShutdown
	}

	d.mu.Lock()
	d.cycles++
	d.mu.Unlock()

	d.logger.Info("cycle complete", "cycle_id", req.ID, "workload", id, "failed", cycle.FailedCount())
	return cycle, nil
}

// jobContext returns the context workers run one cycle under. It keeps
// ctx's values, ends when ctx or the pool ends, and carries the run timeout.
func (d *Dispatcher) jobContext(ctx, poolCtx context.Context) (context.Context, context.CancelFunc) {
	jobCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	stopCaller := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	stopPool := context.AfterFunc(poolCtx, func() { cancel(ErrShutdown) })

	cancelTimeout := context.CancelFunc(func() {})
	if d.runTimeout > 0 {
		jobCtx, cancelTimeout = context.WithTimeout(jobCtx, d.runTimeout)
	}
	return jobCtx, func() {
		stopCaller()
		stopPool()
		cancelTimeout()
		cancel(nil)
	}
}

// Shutdown abandons any in-flight runs, waits for that cycle to drain, then
// wakes every worker and waits for them to exit. ctx bounds both waits.
// Calling it again after it succeeded is a no-op.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.state.IsTerminal() {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	started, cancelRuns := d.started, d.cancelRuns
	d.mu.Unlock()

	if cancelRuns != nil {
		cancelRuns()
	}
	if err := d.acquire(ctx); err != nil {
		return fmt.Errorf("wait for in-flight cycle: %w", err)
	}
	defer d.release()

	d.mu.Lock()
	terminal := d.state.IsTerminal()
	d.mu.Unlock()
	if terminal {
		return nil
	}

	d.setState(model.DispatcherStateShutdown)
	d.requests.Close()
	defer d.results.Close()

	if !started {
		return nil
	}
	for _, w := range d.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			return fmt.Errorf("wait for worker %d: %w", w.ID(), ctx.Err())
		}
	}
	d.logger.Info("dispatcher shut down", "cycles", d.Cycles())
	return nil
}

func (d *Dispatcher) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.cycle <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) release() { <-d.cycle }

// State returns the dispatcher's current state.
func (d *Dispatcher) State() model.DispatcherState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int { return len(d.workers) }

// WorkerStates returns each worker's state, indexed by worker id.
func (d *Dispatcher) WorkerStates() []model.WorkerState {
	states := make([]model.WorkerState, len(d.workers))
	for i, w := range d.workers {
		states[i] = w.State()
	}
	return states
}

// Policies returns each worker's policy, indexed by worker id.
func (d *Dispatcher) Policies() []model.Policy {
	policies := make([]model.Policy, len(d.workers))
	for i, w := range d.workers {
		policies[i] = w.Policy()
	}
	return policies
}

// Cycles returns the number of completed cycles.
func (d *Dispatcher) Cycles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycles
}

// Uptime returns the time since Start, or zero before Start.
func (d *Dispatcher) Uptime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return 0
	}
	return time.Since(d.startedAt)
}

func (d *Dispatcher) setState(next model.DispatcherState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.CanTransitionTo(next) {
		d.logger.Error("unexpected state change", "error", &model.InvalidTransitionError{
			Entity: "Dispatcher",
			ID:     "pool",
			From:   d.state.String(),
			To:     next.String(),
		})
	}
	d.state = next
}
