package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/prebuild/internal/config"
)

// NewCompleteCmd creates the complete command, which prints the job names
// starting with a prefix.
func NewCompleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete [prefix]",
		Short: "List job names starting with a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) > 0 {
				prefix = args[0]
			}
			cfg, err := config.Load(opts.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			for _, name := range reg.Complete(prefix) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// completeJobNames feeds shell completion from the job registry.
func completeJobNames(opts *globalOptions) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.Load(opts.configDir)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		reg, err := loadRegistry(cfg)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return reg.Complete(toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}
