// Package commands implements the CLI subcommands for the prebuild binary.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configDir string
	logFormat string
	logLevel  string
}

// NewRootCmd creates the prebuild command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "prebuild",
		Short: "Build upstream jobs before the jobs that depend on them",
		Long: `Prebuild makes sure a designated upstream job has been built before a
primary job runs. The upstream build can be gated on SCM changes, and the
primary job can block until the upstream build finishes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configDir, "config-dir", "C", ".", "directory containing prebuild.yaml")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		NewInitCmd(),
		NewRunCmd(opts),
		NewValidateCmd(opts),
		NewCompleteCmd(opts),
		NewStatusCmd(opts),
	)
	return root
}

// newLogger builds the process logger from the global flags.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
