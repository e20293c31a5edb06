package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/schedsim/internal/mailbox"
	"github.com/me/schedsim/internal/runner"
	"github.com/me/schedsim/pkg/model"
)

// Runner executes one job request under a fixed policy.
type Runner interface {
	Policy() model.Policy
	RunDetailed(ctx context.Context, req model.JobRequest) (*runner.Outcome, error)
}

// Job is one published request together with the context its run obeys.
type Job struct {
	Request model.JobRequest
	ctx     context.Context
}

// NewJob pairs req with ctx. Cancelling ctx abandons the run.
func NewJob(ctx context.Context, req model.JobRequest) Job {
	return Job{Request: req, ctx: ctx}
}

// Context returns the job's context, never nil.
func (j Job) Context() context.Context {
	if j.ctx == nil {
		return context.Background()
	}
	return j.ctx
}

// Worker is a persistent pool member. It waits for each published request,
// acknowledges it, runs its engine outside any lock and hands exactly one
// result to the dispatcher per request.
type Worker struct {
	id       int
	runner   Runner
	requests *mailbox.Broadcast[Job]
	results  *mailbox.Rendezvous[model.JobResult]
	logger   *slog.Logger

	mu    sync.Mutex
	state model.WorkerState
	runs  int
	done  chan struct{}
}

// New creates a worker in the BOUND state. It does nothing until Run is called.
func New(id int, r Runner, requests *mailbox.Broadcast[Job], results *mailbox.Rendezvous[model.JobResult], logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		runner:   r,
		requests: requests,
		results:  results,
		logger:   logger.With("component", "worker", "worker_id", id, "policy", r.Policy().String()),
		state:    model.WorkerStateBound,
		done:     make(chan struct{}),
	}
}

// ID returns the worker's creation index.
func (w *Worker) ID() int { return w.id }

// Policy returns the policy of the bound runner.
func (w *Worker) Policy() model.Policy { return w.runner.Policy() }

// State returns the worker's current state.
func (w *Worker) State() model.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Runs returns the number of requests this worker has completed.
func (w *Worker) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run is the worker loop. It returns once the request mailbox is closed.
// Cancelling ctx abandons the run in progress; the loop itself only ends
// with the mailbox.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	var gen uint64
	for {
		w.setState(model.WorkerStateWaitRequest)
		job, g, ok := w.requests.Receive(gen)
		if !ok {
			w.setState(model.WorkerStateTerminated)
			w.logger.Debug("worker terminated", "runs", w.Runs())
			return
		}
		gen = g
		req := job.Request
		w.logger.Debug("request acknowledged", "cycle_id", req.ID, "generation", gen)

		w.setState(model.WorkerStateRun)
		result := w.execute(ctx, job)

		w.setState(model.WorkerStatePublishResult)
		if err := w.results.Put(result); err != nil {
			w.logger.Warn("result dropped", "cycle_id", req.ID, "error", err)
			continue
		}
		w.mu.Lock()
		w.runs++
		w.mu.Unlock()
		w.logger.Debug("result published", "cycle_id", req.ID, "failed", result.Failed())
	}
}

type attempt struct {
	out *runner.Outcome
	err error
}

// execute runs the job and always returns a result. Failures, a panicking
// engine and a run still going when its context ends all become failure
// results. An abandoned run keeps its goroutine until the runner returns.
func (w *Worker) execute(ctx context.Context, job Job) model.JobResult {
	req := job.Request
	start := time.Now()
	result := model.JobResult{
		CycleID:  req.ID,
		WorkerID: w.id,
		Policy:   w.runner.Policy(),
	}

	runCtx, cancel := context.WithCancelCause(job.Context())
	defer cancel(nil)
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	defer stop()

	done := make(chan attempt, 1)
	go w.attempt(runCtx, req, done)

	var a attempt
	select {
	case a = <-done:
	case <-runCtx.Done():
		select {
		case a = <-done:
		default:
			a.err = fmt.Errorf("run abandoned: %w", context.Cause(runCtx))
		}
	}
	result.Duration = time.Since(start)

	if a.err != nil {
		result.Err = a.err
		result.Error = a.err.Error()
		w.logger.Warn("run failed", "cycle_id", req.ID, "workload", req.Workload, "error", a.err)
		return result
	}
	if a.out == nil {
		return result
	}
	result.Averages = a.out.Averages
	result.Processes = len(a.out.Table)
	if a.out.Workload != nil {
		result.Quantum = a.out.Workload.Quantum
	}
	return result
}

// attempt calls the runner and sends exactly one attempt on done.
func (w *Worker) attempt(ctx context.Context, req model.JobRequest, done chan<- attempt) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("run panicked", "cycle_id", req.ID, "panic", r)
			done <- attempt{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err := w.runner.RunDetailed(ctx, req)
	done <- attempt{out: out, err: err}
}

func (w *Worker) setState(next model.WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.state.CanTransitionTo(next) {
		w.logger.Error("unexpected state change", "error", &model.InvalidTransitionError{
			Entity: "Worker",
			ID:     fmt.Sprint(w.id),
			From:   w.state.String(),
			To:     next.String(),
		})
	}
	w.state = next
}
