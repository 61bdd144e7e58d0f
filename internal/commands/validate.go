package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/prebuild/internal/config"
	"github.com/dwsmith1983/prebuild/internal/coordinator"
	"github.com/dwsmith1983/prebuild/internal/depgraph"
	"github.com/dwsmith1983/prebuild/internal/registry"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd(opts *globalOptions) *cobra.Command {
	var cycles bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the project configuration and every job's pre-build step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			return validateJobs(cmd.OutOrStdout(), cfg, reg, cycles || cfg.RejectCycles)
		},
	}

	cmd.Flags().BoolVar(&cycles, "cycles", false, "reject dependency cycles between jobs")
	return cmd
}

// validateJobs reports every problem the coordinator would hit at run time.
func validateJobs(out io.Writer, cfg *types.ProjectConfig, reg *registry.Registry, rejectCycles bool) error {
	var problems []string
	for _, job := range reg.List() {
		if job.Prebuild == nil {
			continue
		}
		upstream := job.Prebuild.Normalize().UpstreamJob
		if msg := reg.CheckUpstream(upstream); msg != "" {
			problems = append(problems, fmt.Sprintf("%s: upstream %q: %s", job.Name, upstream, msg))
			continue
		}
		if upstream == job.Name {
			problems = append(problems, fmt.Sprintf("%s: job builds itself before itself", job.Name))
			continue
		}
		if up, err := reg.Get(upstream); err == nil && up.Disabled {
			problems = append(problems, fmt.Sprintf("%s: upstream %q is disabled", job.Name, upstream))
		}
		if job.Prebuild.WaitForCompletion() && cfg.Executors < coordinator.MinWaitCapacity {
			problems = append(problems, fmt.Sprintf("%s: waiting needs at least %d executors, have %d",
				job.Name, coordinator.MinWaitCapacity, cfg.Executors))
		}
	}

	if rejectCycles {
		if err := depgraph.Build(reg.List()).CheckAcyclic(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	red := color.New(color.FgRed)
	for _, p := range problems {
		_, _ = red.Fprintln(out, p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	_, _ = color.New(color.FgGreen).Fprintf(out, "%d jobs OK\n", len(reg.Names()))
	return nil
}
