package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Initialize a new prebuild project",
		Long:  "Creates prebuild.yaml and a jobs directory with two example jobs.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runInit(args[0]); err != nil {
				return err
			}
			_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ Initialized prebuild project in %s\n", args[0])
			return nil
		},
	}
}

const starterConfig = `provider: memory
executors: 2
jobDirs:
  - ./jobs
alerts:
  - type: console
`

var starterJobs = map[string]string{
	"lib.yaml": `name: lib
build:
  type: command
  command:
    command: echo building lib
`,
	"app.yaml": `name: app
build:
  type: command
  command:
    command: echo building app
prebuild:
  upstreamJob: lib
  wait: true
`,
}

func runInit(dir string) error {
	jobsDir := filepath.Join(dir, "jobs")
	if err := os.MkdirAll(jobsDir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", jobsDir, err)
	}

	configPath := filepath.Join(dir, "prebuild.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	for name, body := range starterJobs {
		path := filepath.Join(jobsDir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}
