package dispatcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/me/schedsim/internal/report"
	"github.com/me/schedsim/pkg/model"
)

// CycleRecorder persists completed cycles.
type CycleRecorder interface {
	CreateCycle(ctx context.Context, c *model.Cycle) error
}

// SessionConfig holds the interactive loop's settings.
type SessionConfig struct {
	Prompt   string
	Sentinel string
}

// DefaultSessionConfig returns the standard prompt and sentinel.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{Prompt: "Simulation: ", Sentinel: "QUIT"}
}

// Session reads workload identifiers line by line, runs one cycle per line
// and writes a result line per worker. It ends at the sentinel or at end of
// input, shutting the dispatcher down either way.
type Session struct {
	d        *Dispatcher
	in       io.Reader
	out      io.Writer
	config   SessionConfig
	recorder CycleRecorder
	logger   *slog.Logger
}

// NewSession creates a session over a started dispatcher. recorder may be nil.
func NewSession(d *Dispatcher, in io.Reader, out io.Writer, cfg SessionConfig, recorder CycleRecorder, logger *slog.Logger) *Session {
	if cfg.Sentinel == "" {
		cfg.Sentinel = DefaultSessionConfig().Sentinel
	}
	return &Session{
		d:        d,
		in:       in,
		out:      out,
		config:   cfg,
		recorder: recorder,
		logger:   logger.With("component", "session"),
	}
}

// IsSentinel reports whether line ends the session.
func (s *Session) IsSentinel(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), s.config.Sentinel)
}

// Run loops until the sentinel, end of input or ctx cancellation.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if serr := s.d.Shutdown(context.WithoutCancel(ctx)); serr != nil && err == nil {
			err = serr
		}
	}()

	scanner := bufio.NewScanner(s.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.config.Prompt != "" {
			if _, err := io.WriteString(s.out, s.config.Prompt); err != nil {
				return fmt.Errorf("write prompt: %w", err)
			}
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			s.logger.Debug("end of input")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if s.IsSentinel(line) {
			s.logger.Debug("sentinel received")
			return nil
		}

		cycle, err := s.d.Dispatch(ctx, line)
		if err != nil {
			return err
		}
		if err := report.WriteCycle(s.out, cycle); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		if s.recorder != nil {
			if err := s.recorder.CreateCycle(ctx, cycle); err != nil {
				s.logger.Error("record cycle", "cycle_id", cycle.ID, "error", err)
			}
		}
	}
}
