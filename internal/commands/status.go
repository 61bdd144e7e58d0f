package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/prebuild/internal/config"
	"github.com/dwsmith1983/prebuild/internal/provider"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [job-name]",
		Short: "Show recent builds and pre-build decisions of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			prov, err := newProvider(cfg)
			if err != nil {
				return fmt.Errorf("creating provider: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := prov.Start(ctx); err != nil {
				return fmt.Errorf("connecting to provider: %w", err)
			}
			defer func() { _ = prov.Stop(ctx) }()

			return showJobStatus(ctx, cmd.OutOrStdout(), prov, args[0], limit)
		},
		ValidArgsFunction: completeJobNames(opts),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of builds and events to show")
	return cmd
}

func showJobStatus(ctx context.Context, out io.Writer, prov provider.Provider, name string, limit int) error {
	builds, err := prov.ListBuilds(ctx, name, limit)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}
	events, err := prov.ListEvents(ctx, name, limit)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "Job: %s\n", name)
	if len(builds) == 0 && len(events) == 0 {
		_, _ = color.New(color.FgYellow).Fprintln(out, "  No recorded history.")
		return nil
	}

	if len(builds) > 0 {
		_, _ = bold.Fprintln(out, "\n  Recent Builds:")
		for _, b := range builds {
			result := "-"
			if b.Result != "" {
				result = string(b.Result)
			}
			_, _ = fmt.Fprintf(out, "    %s  %-10s %s %s\n", b.BuildID, b.Status,
				resultColor(types.BuildResult(result)).Sprintf("%-9s", result), b.QueuedAt.Format(time.RFC3339))
			if b.Error != "" {
				_, _ = color.New(color.FgRed).Fprintf(out, "      error: %s\n", b.Error)
			}
		}
	}

	if len(events) > 0 {
		_, _ = bold.Fprintln(out, "\n  Recent Events:")
		for _, e := range events {
			line := fmt.Sprintf("    %s  %-18s", e.Timestamp.Format(time.RFC3339), e.Kind)
			if e.Upstream != "" {
				line += " upstream=" + e.Upstream
			}
			if e.Status != "" {
				line += " status=" + e.Status
			}
			_, _ = fmt.Fprintln(out, line)
		}
	}
	return nil
}
