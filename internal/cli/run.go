package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/report"
	"github.com/me/schedsim/internal/runner"
	"github.com/me/schedsim/internal/workload"
	"github.com/me/schedsim/pkg/model"
)

func newRunCmd() *cobra.Command {
	var policyName string
	var details bool

	cmd := &cobra.Command{
		Use:   "run <workload>...",
		Short: "Simulate one policy on workloads without the worker pool",
		Long: `Runs a single scheduling policy directly on each workload and prints
its average turnaround and waiting time. Invalid lines are skipped with a
warning; a workload that cannot be opened or has a bad quantum is an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := model.ParsePolicy(policyName)
			if err != nil {
				return err
			}
			r, err := runner.New(policy, workload.NewLoader(nil, logger), logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var errs []error
			for _, id := range args {
				if len(args) > 1 {
					fmt.Fprintf(out, "%s:\n", id)
				}
				res, err := r.RunDetailed(cmd.Context(), model.JobRequest{Workload: id})
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					errs = append(errs, err)
					continue
				}
				if details && len(res.Table) > 0 {
					report.WriteProcessTable(out, res.Table)
				}
				if err := report.WriteSummary(out, res.Averages); err != nil {
					return err
				}
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d workloads failed: %w", len(errs), len(args), errors.Join(errs...))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&policyName, "policy", "p", "rr", "Scheduling policy (rr, sjf)")
	cmd.Flags().BoolVar(&details, "details", false, "Print the per-process table")

	return cmd
}
