package cli

import (
	"context"
	"fmt"
	"time"

	"leverage_builder/internal/health"

	"github.com/spf13/cobra"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Timeout time.Duration
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the RPC endpoint, the executor and the configured contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "timeout for all checks")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	app, err := opts.newApp(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "startup failed", err)
	}
	defer func() { _ = app.Close(context.Background()) }()

	statuses := app.Health.Status(ctx)
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := json.NewEncoder(w).Encode(statuses); err != nil {
			return WrapExitError(ExitCommandError, "write report", err)
		}
	} else {
		p := newPalette(!opts.NoColor)
		for _, s := range statuses {
			c, mark := p.good, "ok  "
			if !s.Healthy {
				c, mark = p.bad, "FAIL"
			}
			c.Fprint(w, mark)
			fmt.Fprintf(w, " %-20s %s\n", s.Component, s.Error)
		}
	}

	if !health.IsHealthy(statuses) {
		return NewExitError(ExitFailure, "health checks failed")
	}
	return nil
}
