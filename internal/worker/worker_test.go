package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/me/schedsim/internal/mailbox"
	"github.com/me/schedsim/internal/runner"
	"github.com/me/schedsim/internal/workload"
	"github.com/me/schedsim/pkg/model"
)

type fakeRunner struct {
	policy model.Policy
	run    func(req model.JobRequest) (*runner.Outcome, error)
}

func (f *fakeRunner) Policy() model.Policy { return f.policy }

func (f *fakeRunner) RunDetailed(_ context.Context, req model.JobRequest) (*runner.Outcome, error) {
	return f.run(req)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type harness struct {
	requests *mailbox.Broadcast[Job]
	results  *mailbox.Rendezvous[model.JobResult]
	worker   *Worker
}

func start(t *testing.T, r Runner) *harness {
	t.Helper()
	return startWithContext(t, context.Background(), r)
}

func startWithContext(t *testing.T, ctx context.Context, r Runner) *harness {
	t.Helper()
	h := &harness{
		requests: mailbox.NewBroadcast[Job](),
		results:  mailbox.NewRendezvous[model.JobResult](),
	}
	h.worker = New(3, r, h.requests, h.results, testLogger())
	if got := h.worker.State(); got != model.WorkerStateBound {
		t.Fatalf("initial state = %s, want BOUND", got)
	}
	go h.worker.Run(ctx)
	if err := h.requests.AwaitReceivers(1); err != nil {
		t.Fatalf("AwaitReceivers: %v", err)
	}
	return h
}

func (h *harness) cycle(t *testing.T, req model.JobRequest) model.JobResult {
	t.Helper()
	if _, err := h.requests.Publish(NewJob(context.Background(), req)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := h.requests.AwaitAcks(1); err != nil {
		t.Fatalf("AwaitAcks: %v", err)
	}
	res, err := h.results.Take()
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	return res
}

// cycleAsync runs one cycle in the background. It reports errors with
// t.Errorf since it does not run on the test goroutine.
func (h *harness) cycleAsync(t *testing.T, ctx context.Context, req model.JobRequest) <-chan model.JobResult {
	out := make(chan model.JobResult, 1)
	go func() {
		if _, err := h.requests.Publish(NewJob(ctx, req)); err != nil {
			t.Errorf("Publish: %v", err)
			return
		}
		if err := h.requests.AwaitAcks(1); err != nil {
			t.Errorf("AwaitAcks: %v", err)
			return
		}
		res, err := h.results.Take()
		if err != nil {
			t.Errorf("Take: %v", err)
			return
		}
		out <- res
	}()
	return out
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.requests.Close()
	select {
	case <-h.worker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate")
	}
	if got := h.worker.State(); got != model.WorkerStateTerminated {
		t.Errorf("final state = %s, want TERMINATED", got)
	}
}

func TestWorker_PublishesResult(t *testing.T) {
	r := &fakeRunner{
		policy: model.PolicyRoundRobin,
		run: func(req model.JobRequest) (*runner.Outcome, error) {
			return &runner.Outcome{
				Workload: &workload.Workload{ID: req.Workload, Quantum: 4},
				Table:    make(model.ProcessTable, 3),
				Averages: model.Averages{Waiting: 4, Turnaround: 7},
			}, nil
		},
	}
	h := start(t, r)

	for i := 0; i < 3; i++ {
		res := h.cycle(t, model.JobRequest{ID: "cyc", Workload: "w.txt"})
		if res.Failed() {
			t.Fatalf("unexpected failure: %v", res.Err)
		}
		if res.WorkerID != 3 || res.Policy != model.PolicyRoundRobin || res.CycleID != "cyc" {
			t.Errorf("result identity = %+v", res)
		}
		if res.Processes != 3 || res.Quantum != 4 {
			t.Errorf("Processes/Quantum = %d/%d, want 3/4", res.Processes, res.Quantum)
		}
		if res.Averages != (model.Averages{Waiting: 4, Turnaround: 7}) {
			t.Errorf("Averages = %+v", res.Averages)
		}
	}

	h.stop(t)
	if got := h.worker.Runs(); got != 3 {
		t.Errorf("Runs = %d, want 3", got)
	}
}

func TestWorker_FailureResult(t *testing.T) {
	openErr := &model.WorkloadError{Kind: model.WorkloadOpen, Workload: "missing.txt", Err: errors.New("no such file")}
	r := &fakeRunner{
		policy: model.PolicyShortestJobFirst,
		run: func(model.JobRequest) (*runner.Outcome, error) {
			return nil, openErr
		},
	}
	h := start(t, r)

	res := h.cycle(t, model.JobRequest{ID: "cyc", Workload: "missing.txt"})
	if !res.Failed() {
		t.Fatal("expected a failure result")
	}
	if !errors.Is(res.Err, model.ErrWorkloadOpen) {
		t.Errorf("Err = %v, want ErrWorkloadOpen", res.Err)
	}
	if res.Error != openErr.Error() {
		t.Errorf("Error = %q, want %q", res.Error, openErr.Error())
	}
	h.stop(t)
}

func TestWorker_PanicBecomesFailure(t *testing.T) {
	calls := 0
	r := &fakeRunner{
		policy: model.PolicyRoundRobin,
		run: func(model.JobRequest) (*runner.Outcome, error) {
			calls++
			if calls == 1 {
				panic("engine exploded")
			}
			return &runner.Outcome{}, nil
		},
	}
	h := start(t, r)

	res := h.cycle(t, model.JobRequest{ID: "first"})
	if !res.Failed() {
		t.Fatal("expected panic to produce a failure result")
	}

	// The worker survives and serves the next request.
	res = h.cycle(t, model.JobRequest{ID: "second"})
	if res.Failed() {
		t.Fatalf("second run failed: %v", res.Err)
	}
	h.stop(t)
}

func TestWorker_TerminatesWithoutRequests(t *testing.T) {
	r := &fakeRunner{policy: model.PolicyRoundRobin}
	h := start(t, r)
	h.stop(t)
	if got := h.worker.Runs(); got != 0 {
		t.Errorf("Runs = %d, want 0", got)
	}
}

// stuckRunner never returns until release is closed and ignores its context,
// like a read from a FIFO or a server that never answers.
type stuckRunner struct {
	entered chan struct{}
	release chan struct{}
}

func newStuckRunner(t *testing.T) *stuckRunner {
	s := &stuckRunner{entered: make(chan struct{}, 16), release: make(chan struct{})}
	t.Cleanup(func() { close(s.release) })
	return s
}

func (s *stuckRunner) Policy() model.Policy { return model.PolicyRoundRobin }

func (s *stuckRunner) RunDetailed(context.Context, model.JobRequest) (*runner.Outcome, error) {
	s.entered <- struct{}{}
	<-s.release
	return &runner.Outcome{}, nil
}

func TestWorker_AbandonsRunWhenJobContextEnds(t *testing.T) {
	stuck := newStuckRunner(t)
	h := start(t, stuck)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := h.cycleAsync(t, ctx, model.JobRequest{ID: "stuck"})

	select {
	case res := <-done:
		if !res.Failed() {
			t.Fatal("expected a failure result for an abandoned run")
		}
		if !errors.Is(res.Err, context.DeadlineExceeded) {
			t.Errorf("Err = %v, want DeadlineExceeded", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker stayed blocked after the job context ended")
	}

	h.stop(t)
}

func TestWorker_AbandonsRunWhenCancelled(t *testing.T) {
	stuck := newStuckRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startWithContext(t, ctx, stuck)

	done := h.cycleAsync(t, context.Background(), model.JobRequest{ID: "stuck"})

	<-stuck.entered
	cancel()

	select {
	case res := <-done:
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("Err = %v, want Canceled", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker stayed blocked after cancellation")
	}

	// The loop keeps running until the mailbox closes.
	if got := h.worker.State(); got == model.WorkerStateTerminated {
		t.Errorf("state = %s after cancelling a run", got)
	}
	h.stop(t)
}
