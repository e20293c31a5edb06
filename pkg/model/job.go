package model

import "time"

// JobRequest is published by the dispatcher once per cycle. Workers treat it as read-only.
type JobRequest struct {
	ID       string `json:"id"`
	Workload string `json:"workload"`
}

// JobResult is what a worker reports back for a single cycle.
// Err is set when the run failed and no averages were produced.
type JobResult struct {
	CycleID   string        `json:"cycle_id"`
	WorkerID  int           `json:"worker_id"`
	Policy    Policy        `json:"policy"`
	Averages                // promoted: average_waiting, average_turnaround
	Processes int           `json:"processes"`
	Quantum   int           `json:"quantum"`
	Duration  time.Duration `json:"duration_ns"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// Failed reports whether the result carries an error instead of averages.
func (r JobResult) Failed() bool {
	return r.Err != nil || r.Error != ""
}

// Cycle is one completed dispatch: a request plus the N results drained for it.
type Cycle struct {
	ID        string      `json:"id"`
	Workload  string      `json:"workload"`
	Workers   int         `json:"workers"`
	Results   []JobResult `json:"results"`
	CreatedAt time.Time   `json:"created_at"`
}

// FailedCount returns the number of failure results in the cycle.
func (c *Cycle) FailedCount() int {
	n := 0
	for _, r := range c.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}
