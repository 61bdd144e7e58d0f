package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/prebuild/internal/alert"
	"github.com/dwsmith1983/prebuild/internal/config"
	"github.com/dwsmith1983/prebuild/internal/coordinator"
	"github.com/dwsmith1983/prebuild/internal/depgraph"
	"github.com/dwsmith1983/prebuild/internal/provider"
	ddbprov "github.com/dwsmith1983/prebuild/internal/provider/dynamodb"
	"github.com/dwsmith1983/prebuild/internal/provider/memory"
	"github.com/dwsmith1983/prebuild/internal/queue"
	"github.com/dwsmith1983/prebuild/internal/registry"
	"github.com/dwsmith1983/prebuild/internal/scm"
	"github.com/dwsmith1983/prebuild/internal/telemetry"
	"github.com/dwsmith1983/prebuild/internal/trigger"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// newProvider creates the configured storage provider.
func newProvider(cfg *types.ProjectConfig) (provider.Provider, error) {
	switch cfg.Provider {
	case "memory":
		return memory.New(), nil
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb config is required when provider is dynamodb")
		}
		return ddbprov.New(cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// loadRegistry loads every job directory named by the project config.
func loadRegistry(cfg *types.ProjectConfig) (*registry.Registry, error) {
	reg := registry.NewRegistry()
	for _, dir := range cfg.JobDirs {
		if err := reg.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// runtime is the wired set of components behind `prebuild run`.
type runtime struct {
	cfg      *types.ProjectConfig
	logger   *slog.Logger
	registry *registry.Registry
	provider provider.Provider
	queue    *queue.Queue
	coord    *coordinator.Coordinator
	shutdown telemetry.ShutdownFunc
}

// newRuntime loads the project in configDir and wires registry, storage,
// queue, SCM poller, alerts and coordinator together. The queue is started.
func newRuntime(ctx context.Context, configDir string, logger *slog.Logger) (*runtime, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return wireRuntime(ctx, cfg, logger)
}

func wireRuntime(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (rt *runtime, err error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RejectCycles {
		if err := depgraph.Build(reg.List()).CheckAcyclic(); err != nil {
			return nil, err
		}
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = shutdown(context.WithoutCancel(ctx))
		}
	}()

	prov, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	if err := prov.Start(ctx); err != nil {
		return nil, fmt.Errorf("connecting to provider: %w", err)
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alerts, alert.WithLogger(logger))
	if err != nil {
		_ = prov.Stop(ctx)
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}

	poller, err := scm.NewPoller(reg, prov, cfg.SCM, scm.WithLogger(logger))
	if err != nil {
		_ = prov.Stop(ctx)
		return nil, err
	}

	rt = &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		provider: prov,
		shutdown: shutdown,
	}

	runner := trigger.NewRunner(trigger.WithLogger(logger))
	q, err := queue.New(reg, &prebuildBuilder{rt: rt, runner: runner}, cfg.Executors,
		queue.WithStore(prov), queue.WithLogger(logger))
	if err != nil {
		_ = prov.Stop(ctx)
		return nil, err
	}
	rt.queue = q
	rt.coord = coordinator.New(coordinator.Deps{
		Registry: reg,
		Queue:    q,
		Poller:   poller,
		Capacity: q,
		Recorder: prov,
		AlertFn:  dispatcher.AlertFunc(),
	})

	if err := q.Start(ctx); err != nil {
		_ = prov.Stop(ctx)
		return nil, err
	}
	return rt, nil
}

// close stops the queue, delivers pending alerts, then stops the provider and
// telemetry.
func (rt *runtime) close(ctx context.Context) error {
	return errors.Join(
		rt.queue.Stop(ctx),
		rt.coord.Drain(ctx),
		rt.provider.Stop(ctx),
		rt.shutdown(ctx),
	)
}

// prebuildBuilder runs a job's pre-build step on the executor the job
// occupies, then builds the job itself.
type prebuildBuilder struct {
	rt     *runtime
	runner queue.Builder
}

func (b *prebuildBuilder) Build(ctx context.Context, job types.JobConfig) (types.BuildResult, map[string]interface{}, error) {
	if job.Prebuild != nil {
		_, err := b.rt.coord.Evaluate(ctx, *job.Prebuild, job.Ref(), b.rt.logger)
		if err != nil {
			meta := map[string]interface{}{"prebuild_error": err.Error()}
			if kind, ok := coordinator.KindOf(err); ok {
				meta["prebuild_failure"] = string(kind)
			}
			return types.ResultFailure, meta, nil
		}
	}
	return b.runner.Build(ctx, job)
}
