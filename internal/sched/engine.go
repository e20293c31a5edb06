// Package sched implements the CPU scheduling engines run by pool workers.
//
// Engines are stateless: every call to Schedule works only on the table it
// is handed, so one engine value may be shared by any number of goroutines
// as long as the tables are disjoint.
package sched

import (
	"fmt"
	"sort"

	"github.com/me/schedsim/pkg/model"
)

// Engine simulates one scheduling policy over a process table.
type Engine interface {
	// Policy returns the policy this engine implements.
	Policy() model.Policy

	// Order sorts the table into the order Schedule expects.
	Order(table model.ProcessTable)

	// Schedule runs every record to completion, filling in RemainingBurst,
	// TurnaroundTime and WaitingTime in place.
	Schedule(table model.ProcessTable, quantum int)
}

// For returns the engine for the given policy.
func For(p model.Policy) (Engine, error) {
	switch p {
	case model.PolicyRoundRobin:
		return RoundRobin{}, nil
	case model.PolicyShortestJobFirst:
		return ShortestJobFirst{}, nil
	}
	return nil, fmt.Errorf("no engine for policy %q", p)
}

// byArrival orders records by arrival time, keeping input order for ties.
func byArrival(table model.ProcessTable) {
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].ArrivalTime < table[j].ArrivalTime
	})
}

// byArrivalThenBurst orders records by arrival time, then by shorter burst.
func byArrivalThenBurst(table model.ProcessTable) {
	sort.SliceStable(table, func(i, j int) bool {
		if table[i].ArrivalTime != table[j].ArrivalTime {
			return table[i].ArrivalTime < table[j].ArrivalTime
		}
		return table[i].BurstTime < table[j].BurstTime
	})
}
