package sched

import "github.com/me/schedsim/pkg/model"

// RoundRobin gives each arrived process up to one quantum per visit,
// cycling through the table in order until every process completes.
type RoundRobin struct{}

// Policy implements Engine.
func (RoundRobin) Policy() model.Policy { return model.PolicyRoundRobin }

// Order implements Engine. Processes are served first-come-first-served.
func (RoundRobin) Order(table model.ProcessTable) { byArrival(table) }

// Schedule implements Engine.
//
// The cursor visits indices modulo len(table). The CPU goes idle when a visit
// finds no arrived, unfinished process; from then until a process runs, every
// visit that executes nothing (not yet arrived or already complete) costs one
// unit. Time never jumps straight to the next arrival.
func (RoundRobin) Schedule(table model.ProcessTable, quantum int) {
	if len(table) == 0 {
		return
	}
	if quantum < 1 {
		quantum = 1
	}

	cpuTime := table[0].ArrivalTime
	remaining := table.Remaining()
	idle := false

	for i := 0; remaining > 0; i = (i + 1) % len(table) {
		rec := &table[i]
		if rec.IsComplete() || !rec.HasArrived(cpuTime) {
			if idle || !anyReady(table, cpuTime) {
				idle = true
				cpuTime++
			}
			continue
		}

		idle = false
		slice := min(rec.RemainingBurst, quantum)
		cpuTime += slice
		rec.RemainingBurst -= slice

		if rec.RemainingBurst == 0 {
			rec.Complete(cpuTime)
			remaining--
		}
	}
}

// anyReady reports whether some unfinished process has arrived by cpuTime.
func anyReady(table model.ProcessTable, cpuTime int) bool {
	for i := range table {
		if !table[i].IsComplete() && table[i].HasArrived(cpuTime) {
			return true
		}
	}
	return false
}
