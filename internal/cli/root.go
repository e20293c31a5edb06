package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/server"
	"github.com/me/schedsim/internal/tracing"
)

var (
	flagConfig    string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagWorkers   int
	flagDB        string
	flagNoHistory bool
	flagTraceFile  string
	flagRunTimeout time.Duration

	cfg    config.Config
	logger *slog.Logger
	client *Client

	traceOut io.Closer
)

// defaultServer returns the default server URL, checking SCHEDSIM_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("SCHEDSIM_SERVER"); s != "" {
		return s
	}
	return config.DefaultConfig().Server
}

// NewRootCmd creates the root cobra command for the schedsim CLI.
// Without a subcommand it runs an interactive session.
func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:   "schedsim",
		Short: "Round-Robin and Shortest-Job-First scheduling simulator",
		Long: `schedsim runs CPU-scheduling simulations on a fixed pool of workers.
Each workload is handed to every worker; even-numbered workers simulate
Shortest-Job-First, odd-numbered workers simulate Round-Robin.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return teardown(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd)
		},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "YAML config file")
	pf.StringVar(&flagServer, "server", defaultServer(), "schedsim server URL (or SCHEDSIM_SERVER env)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", defaults.LogFormat, "Log format (text, json)")
	pf.IntVarP(&flagWorkers, "workers", "n", defaults.Workers, "Number of pool workers")
	pf.StringVar(&flagDB, "db", "", "History database path (default ~/.schedsim/history.db)")
	pf.BoolVar(&flagNoHistory, "no-history", false, "Do not record cycles")
	pf.StringVar(&flagTraceFile, "trace-file", "", "Write OpenTelemetry spans to this file (\"-\" for stderr)")
	pf.DurationVar(&flagRunTimeout, "run-timeout", defaults.RunTimeout, "Abandon a worker run after this long (0 disables)")

	root.AddCommand(
		newInteractiveCmd(),
		newRunCmd(),
		newServeCmd(),
		newSubmitCmd(),
		newHistoryCmd(),
	)

	return root
}

// setup resolves configuration (defaults, then file, then explicit flags)
// and builds the shared logger, client and tracer.
func setup(cmd *cobra.Command) error {
	loaded, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") || loaded.Server == config.DefaultConfig().Server {
		loaded.Server = flagServer
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		loaded.LogFormat = flagLogFormat
	}
	if flags.Changed("workers") {
		loaded.Workers = flagWorkers
	}
	if flags.Changed("db") {
		loaded.DBPath = flagDB
	}
	if flags.Changed("no-history") {
		loaded.NoHistory = flagNoHistory
	}
	if flags.Changed("trace-file") {
		loaded.TraceFile = flagTraceFile
	}
	if flags.Changed("run-timeout") {
		loaded.RunTimeout = flagRunTimeout
	}
	if flagDebug {
		loaded.LogLevel = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	client = NewClient(cfg.Server, logger)

	return startTracing(cmd)
}

func startTracing(cmd *cobra.Command) error {
	traceOut = nil
	switch cfg.TraceFile {
	case "":
		return nil
	case "-":
		return tracing.Init("schedsim", server.Version, cmd.ErrOrStderr())
	}

	f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	if err := tracing.Init("schedsim", server.Version, f); err != nil {
		f.Close()
		return fmt.Errorf("init tracing: %w", err)
	}
	traceOut = f
	return nil
}

func teardown(cmd *cobra.Command) error {
	err := tracing.Shutdown(cmd.Context())
	if traceOut != nil {
		if cerr := traceOut.Close(); err == nil {
			err = cerr
		}
		traceOut = nil
	}
	return err
}
