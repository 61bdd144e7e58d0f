// Package config handles loading and validation of prebuild.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// FileName is the project configuration file looked up by Load.
const FileName = "prebuild.yaml"

// DefaultExecutors is the pool size used when the project file omits it.
const DefaultExecutors = 2

// Load reads and parses prebuild.yaml from the given directory. Relative job
// directories are resolved against dir.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Executors == 0 {
		cfg.Executors = DefaultExecutors
	}
	for i, d := range cfg.JobDirs {
		if !filepath.IsAbs(d) {
			cfg.JobDirs[i] = filepath.Join(dir, d)
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.Provider {
	case "":
		return fmt.Errorf("provider is required")
	case "memory":
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return fmt.Errorf("dynamodb config is required when provider is dynamodb")
		}
		if cfg.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required")
		}
		if err := checkDuration("dynamodb.retentionTtl", cfg.DynamoDB.RetentionTTL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.Executors < 1 {
		return fmt.Errorf("executors must be at least 1, got %d", cfg.Executors)
	}
	if len(cfg.JobDirs) == 0 {
		return fmt.Errorf("at least one jobDir is required")
	}

	if cfg.SCM != nil {
		if err := checkDuration("scm.timeout", cfg.SCM.Timeout); err != nil {
			return err
		}
		if err := checkDuration("scm.cooldown", cfg.SCM.Cooldown); err != nil {
			return err
		}
		if cfg.SCM.FailThreshold < 0 {
			return fmt.Errorf("scm.failThreshold must not be negative")
		}
	}

	for i, a := range cfg.Alerts {
		if err := validateAlert(a); err != nil {
			return fmt.Errorf("alerts[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAlert(a types.AlertConfig) error {
	switch a.Type {
	case types.AlertConsole:
	case types.AlertWebhook:
		if a.URL == "" {
			return fmt.Errorf("webhook alert requires url")
		}
	case types.AlertFile:
		if a.Path == "" {
			return fmt.Errorf("file alert requires path")
		}
	case types.AlertEventBridge:
		if a.EventBusName == "" {
			return fmt.Errorf("eventbridge alert requires eventBusName")
		}
	default:
		return fmt.Errorf("unknown alert type %q", a.Type)
	}
	return nil
}

func checkDuration(field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}
