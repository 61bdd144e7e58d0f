package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/prebuild/internal/queue"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

const stopTimeout = 30 * time.Second

// NewRunCmd creates the run command.
func NewRunCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run [job-name]...",
		Short: "Run the pre-build step of each job, then build it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.logLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			rt, err := newRuntime(ctx, opts.configDir, logger)
			if err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
				defer cancel()
				if err := rt.close(stopCtx); err != nil {
					logger.Warn("shutdown incomplete", "error", err)
				}
			}()

			return runJobs(ctx, rt, args, cmd.OutOrStdout())
		},
		ValidArgsFunction: completeJobNames(opts),
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits indefinitely)")
	return cmd
}

// runJobs queues every named job and waits for all of them. Jobs run
// concurrently, bounded by the executor pool.
func runJobs(ctx context.Context, rt *runtime, names []string, out io.Writer) error {
	builds := make([]*queue.Build, 0, len(names))
	for _, name := range names {
		if _, err := rt.registry.Get(name); err != nil {
			return err
		}
		b, err := rt.queue.Schedule(ctx, name)
		if err != nil {
			return fmt.Errorf("scheduling %s: %w", name, err)
		}
		builds = append(builds, b)
	}

	var failed []string
	for _, b := range builds {
		result, err := b.Await(ctx)
		rec := b.Record()
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(out, "%-30s %s %v\n", b.JobName(), color.RedString("%-9s", "ERROR"), err)
			failed = append(failed, b.JobName())
		default:
			_, _ = fmt.Fprintf(out, "%-30s %s %s\n", b.JobName(), resultColor(result).Sprintf("%-9s", result), b.ID())
			if reason, ok := rec.Metadata["prebuild_error"]; ok {
				_, _ = color.New(color.FgYellow).Fprintf(out, "  pre-build step failed: %v\n", reason)
			}
			if result != types.ResultSuccess {
				failed = append(failed, b.JobName())
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d jobs did not succeed: %s", len(failed), len(builds), strings.Join(failed, ", "))
	}
	return nil
}

// resultColor picks the terminal color for a build result.
func resultColor(r types.BuildResult) *color.Color {
	switch r {
	case types.ResultSuccess:
		return color.New(color.FgGreen)
	case types.ResultUnstable:
		return color.New(color.FgYellow)
	case types.ResultFailure, types.ResultAborted:
		return color.New(color.FgRed)
	default:
		return color.New(color.Faint)
	}
}
