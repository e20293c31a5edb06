package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/report"
	"github.com/me/schedsim/pkg/model"
)

func newHistoryCmd() *cobra.Command {
	var remote, del bool
	opts := model.DefaultListOptions()

	cmd := &cobra.Command{
		Use:   "history [cycle_id]",
		Short: "List recorded cycles, or show one cycle's results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if del {
				if len(args) != 1 {
					return fmt.Errorf("--delete needs a cycle id")
				}
				if err := deleteCycle(cmd, args[0], remote); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted cycle %s\n", args[0])
				return nil
			}

			if len(args) == 1 {
				cycle, err := getCycle(cmd, args[0], remote)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cycle:    %s\n", cycle.ID)
				fmt.Fprintf(out, "Workload: %s\n", cycle.Workload)
				fmt.Fprintf(out, "Created:  %s\n", cycle.CreatedAt.Format("2006-01-02 15:04:05"))
				return report.WriteCycle(out, cycle)
			}

			cycles, total, err := listCycles(cmd, opts, remote)
			if err != nil {
				return err
			}
			if len(cycles) == 0 {
				fmt.Fprintln(out, "No cycles found.")
				return nil
			}
			report.WriteHistory(out, cycles)
			if opts.Offset+len(cycles) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(cycles), total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&del, "delete", false, "Delete the given cycle")
	cmd.Flags().BoolVar(&remote, "remote", false, "Query the server instead of the local database")
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Maximum cycles to list")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Cycles to skip")
	cmd.Flags().StringVar(&opts.Workload, "workload", "", "Only cycles for this workload")

	return cmd
}

func getCycle(cmd *cobra.Command, id string, remote bool) (*model.Cycle, error) {
	if remote {
		cycle, err := client.GetCycle(cmd.Context(), id)
		if err != nil {
			return nil, fmt.Errorf("get cycle: %w", err)
		}
		return cycle, nil
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("history is disabled")
	}
	defer st.Close()

	cycle, err := st.GetCycle(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, model.NewNotFoundError("Cycle", id)
	}
	return cycle, nil
}

func listCycles(cmd *cobra.Command, opts model.ListOptions, remote bool) ([]*model.Cycle, int, error) {
	if remote {
		cycles, total, err := client.ListCycles(cmd.Context(), opts)
		if err != nil {
			return nil, 0, fmt.Errorf("list cycles: %w", err)
		}
		return cycles, total, nil
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, 0, err
	}
	if st == nil {
		return nil, 0, fmt.Errorf("history is disabled")
	}
	defer st.Close()
	return st.ListCycles(cmd.Context(), opts)
}

func deleteCycle(cmd *cobra.Command, id string, remote bool) error {
	if remote {
		if err := client.DeleteCycle(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete cycle: %w", err)
		}
		return nil
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("history is disabled")
	}
	defer st.Close()
	return st.DeleteCycle(cmd.Context(), id)
}
