package model

import (
	"fmt"
	"strings"
)

// ProcessRecord is one simulated process in a workload.
type ProcessRecord struct {
	ArrivalTime    int `json:"arrival_time"`
	BurstTime      int `json:"burst_time"`
	RemainingBurst int `json:"remaining_burst"`
	TurnaroundTime int `json:"turnaround_time"`
	WaitingTime    int `json:"waiting_time"`
}

// NewProcessRecord validates arrival and burst times and returns a record
// whose remaining burst equals its burst time.
func NewProcessRecord(arrival, burst int) (ProcessRecord, error) {
	if arrival < 0 {
		return ProcessRecord{}, fmt.Errorf("arrival time %d: %w", arrival, ErrInvalidArrival)
	}
	if burst < 1 {
		return ProcessRecord{}, fmt.Errorf("burst time %d: %w", burst, ErrInvalidBurst)
	}
	return ProcessRecord{
		ArrivalTime:    arrival,
		BurstTime:      burst,
		RemainingBurst: burst,
	}, nil
}

// IsComplete reports whether the record has no burst left.
func (p ProcessRecord) IsComplete() bool {
	return p.RemainingBurst == 0
}

// HasArrived reports whether the record is visible at cpuTime.
func (p ProcessRecord) HasArrived(cpuTime int) bool {
	return p.ArrivalTime <= cpuTime
}

// Complete stamps turnaround and waiting times for a record finishing at
// completion.
func (p *ProcessRecord) Complete(completion int) {
	p.RemainingBurst = 0
	p.TurnaroundTime = completion - p.ArrivalTime
	p.WaitingTime = p.TurnaroundTime - p.BurstTime
}

// ProcessTable is the ordered set of records a scheduling engine runs over.
// It is owned by a single run and never shared between goroutines.
type ProcessTable []ProcessRecord

// Remaining returns the number of records that still have burst left.
func (t ProcessTable) Remaining() int {
	n := 0
	for i := range t {
		if !t[i].IsComplete() {
			n++
		}
	}
	return n
}

// Averages returns the arithmetic mean waiting and turnaround times.
// An empty table yields zero for both.
func (t ProcessTable) Averages() Averages {
	if len(t) == 0 {
		return Averages{}
	}
	var waiting, turnaround int
	for i := range t {
		waiting += t[i].WaitingTime
		turnaround += t[i].TurnaroundTime
	}
	n := float64(len(t))
	return Averages{
		Waiting:    float64(waiting) / n,
		Turnaround: float64(turnaround) / n,
	}
}

// Averages holds the per-run summary statistics.
type Averages struct {
	Waiting    float64 `json:"average_waiting"`
	Turnaround float64 `json:"average_turnaround"`
}

// Policy identifies a scheduling policy.
type Policy string

const (
	PolicyRoundRobin       Policy = "RR"
	PolicyShortestJobFirst Policy = "SJF"
)

// String returns the short policy name.
func (p Policy) String() string {
	return string(p)
}

// ParsePolicy converts user input such as "rr" or "shortest-job-first" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rr", "round-robin", "roundrobin":
		return PolicyRoundRobin, nil
	case "sjf", "shortest-job-first", "shortestjobfirst":
		return PolicyShortestJobFirst, nil
	}
	return "", fmt.Errorf("unknown policy %q (want rr or sjf)", s)
}

// PolicyForWorker returns the policy bound to the worker created at position
// index. Even positions run SJF and odd positions run RR.
func PolicyForWorker(index int) Policy {
	if index%2 != 0 {
		return PolicyRoundRobin
	}
	return PolicyShortestJobFirst
}
