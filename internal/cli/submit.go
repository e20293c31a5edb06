package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/report"
)

func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <workload>",
		Short: "Run one cycle on a schedsim server",
		Long: `Asks the server to run one dispatch cycle. The workload path is resolved
by the server, so it must be readable there (or be an afs URL such as s3://).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycle, err := client.SubmitCycle(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("submit cycle: %w", err)
			}
			logger.Debug("cycle complete", "cycle_id", cycle.ID)
			return report.WriteCycle(cmd.OutOrStdout(), cycle)
		},
	}
}
