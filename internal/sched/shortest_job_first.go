package sched

import "github.com/me/schedsim/pkg/model"

// ShortestJobFirst is non-preemptive: the shortest arrived process runs to
// completion before the next choice is made.
type ShortestJobFirst struct{}

// Policy implements Engine.
func (ShortestJobFirst) Policy() model.Policy { return model.PolicyShortestJobFirst }

// Order implements Engine. Same-time arrivals are ordered by burst.
func (ShortestJobFirst) Order(table model.ProcessTable) { byArrivalThenBurst(table) }

// Schedule implements Engine. The quantum is ignored.
func (ShortestJobFirst) Schedule(table model.ProcessTable, _ int) {
	if len(table) == 0 {
		return
	}

	cpuTime := table[0].ArrivalTime

	for remaining := table.Remaining(); remaining > 0; remaining-- {
		next := nextShortest(table, cpuTime)
		if next < 0 {
			// CPU idle until the earliest pending arrival.
			cpuTime = earliestPendingArrival(table)
			next = nextShortest(table, cpuTime)
		}

		rec := &table[next]
		cpuTime += rec.RemainingBurst
		rec.Complete(cpuTime)
	}
}

// nextShortest returns the index of the unfinished, arrived process with the
// smallest remaining burst, or -1 if none has arrived. Ties go to the lower index.
func nextShortest(table model.ProcessTable, cpuTime int) int {
	best := -1
	for i := range table {
		rec := table[i]
		if rec.IsComplete() || !rec.HasArrived(cpuTime) {
			continue
		}
		if best < 0 || rec.RemainingBurst < table[best].RemainingBurst {
			best = i
		}
	}
	return best
}

// earliestPendingArrival returns the smallest arrival time among unfinished
// processes. The caller guarantees at least one exists.
func earliestPendingArrival(table model.ProcessTable) int {
	earliest := -1
	for i := range table {
		if table[i].IsComplete() {
			continue
		}
		if earliest < 0 || table[i].ArrivalTime < earliest {
			earliest = table[i].ArrivalTime
		}
	}
	return earliest
}
