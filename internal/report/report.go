// Package report renders simulation results as text lines and tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/me/schedsim/pkg/model"
)

// FormatResult renders one drained result as a single line.
func FormatResult(r model.JobResult) string {
	if r.Failed() {
		msg := r.Error
		if msg == "" && r.Err != nil {
			msg = r.Err.Error()
		}
		return fmt.Sprintf("T: %d. %s - Error: %s", r.WorkerID, r.Policy, msg)
	}
	return fmt.Sprintf("T: %d. %s - Average Waiting: %f. Average Turnaround: %f",
		r.WorkerID, r.Policy, r.Waiting, r.Turnaround)
}

// WriteCycle writes one line per result of c.
func WriteCycle(w io.Writer, c *model.Cycle) error {
	for _, r := range c.Results {
		if _, err := fmt.Fprintln(w, FormatResult(r)); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes the single-policy summary line.
func WriteSummary(w io.Writer, avg model.Averages) error {
	_, err := fmt.Fprintf(w, "Average turnaround time=%.2f. Average waiting time=%.2f\n", avg.Turnaround, avg.Waiting)
	return err
}

// WriteProcessTable renders a completed table with its averages as footer.
func WriteProcessTable(w io.Writer, table model.ProcessTable) {
	rows := make([][]string, 0, len(table))
	for i, p := range table {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.Itoa(p.ArrivalTime),
			strconv.Itoa(p.BurstTime),
			strconv.Itoa(p.TurnaroundTime),
			strconv.Itoa(p.WaitingTime),
		})
	}
	avg := table.Averages()

	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"#", "Arrival", "Burst", "Turnaround", "Waiting"})
	t.AppendBulk(rows)
	t.SetFooter([]string{"", "", "",
		fmt.Sprintf("Average\n%.2f", avg.Turnaround),
		fmt.Sprintf("Average\n%.2f", avg.Waiting),
	})
	t.Render()
}

// WriteHistory renders one row per result of every cycle, newest first.
func WriteHistory(w io.Writer, cycles []*model.Cycle) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Cycle", "Created", "Workload", "Worker", "Policy", "Waiting", "Turnaround"})
	t.SetAutoMergeCells(true)
	t.SetRowLine(true)
	for _, c := range cycles {
		created := c.CreatedAt.Local().Format(time.DateTime)
		for _, r := range c.Results {
			waiting, turnaround := fmt.Sprintf("%.2f", r.Waiting), fmt.Sprintf("%.2f", r.Turnaround)
			if r.Failed() {
				waiting, turnaround = "error", "error"
			}
			t.Append([]string{c.ID, created, c.Workload, strconv.Itoa(r.WorkerID), r.Policy.String(), waiting, turnaround})
		}
		if len(c.Results) == 0 {
			t.Append([]string{c.ID, created, c.Workload, "-", "-", "-", "-"})
		}
	}
	t.Render()
}
