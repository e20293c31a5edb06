package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		roots []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the worker pool over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("workload-root") {
				cfg.WorkloadRoots = roots
			}
			served, err := workloadRoots()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			opts := []server.Option{server.WithWorkloadRoots(served...)}
			if st != nil {
				defer st.Close()
				opts = append(opts, server.WithStore(st))
			}

			d, err := startPool(ctx)
			if err != nil {
				return err
			}

			srv := server.New(d, logger, opts...)
			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", "addr", cfg.Addr, "workers", cfg.Workers, "workload_roots", served)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					d.Shutdown(context.Background())
					return err
				}
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Stop taking requests before the pool goes away.
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown error", "error", err)
			}
			poolCtx, cancelPool := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPool()
			if err := d.Shutdown(poolCtx); err != nil {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultConfig().Addr, "Listen address")
	cmd.Flags().StringSliceVar(&roots, "workload-root", nil, "Directory or URL prefix submitted workloads must live under (default: working directory)")
	return cmd
}

// workloadRoots returns the configured roots, or the working directory when
// none are set.
func workloadRoots() ([]string, error) {
	if len(cfg.WorkloadRoots) > 0 {
		return cfg.WorkloadRoots, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve workload root: %w", err)
	}
	return []string{wd}, nil
}
