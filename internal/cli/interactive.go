package cli

import (
	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/dispatcher"
)

func newInteractiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Read workload paths from stdin and simulate each on the pool",
		Long: `Reads one workload identifier per line and runs it on every worker,
printing one result line per worker. Enter QUIT (any case) to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd)
		},
	}
}

func runInteractive(cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	var recorder dispatcher.CycleRecorder
	if st != nil {
		defer st.Close()
		recorder = st
	}

	d, err := startPool(ctx)
	if err != nil {
		return err
	}

	session := dispatcher.NewSession(d, cmd.InOrStdin(), cmd.OutOrStdout(), dispatcher.SessionConfig{
		Prompt:   cfg.Prompt,
		Sentinel: cfg.Sentinel,
	}, recorder, logger)
	return session.Run(ctx)
}
