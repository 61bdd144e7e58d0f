// Package coordinator implements the pre-build dependency trigger: before a
// primary job runs it makes sure a designated upstream job has been built,
// optionally only when the upstream's source changed, and optionally blocks
// until that build finishes.
//
// Dependency cycles (A waits on B, B waits on A) are not detected here. See
// package depgraph for the opt-in configuration-time check.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/prebuild/internal/metrics"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

const (
	// Component tags every diagnostic the coordinator writes.
	Component = "prebuild"

	// DisplayName is the human-readable name of the pre-build step.
	DisplayName = "Build another project before this build"

	// MinWaitCapacity is the smallest worker pool on which waiting is safe:
	// the primary job holds one slot and the upstream build needs another.
	MinWaitCapacity = 2
)

var tracer = otel.Tracer("github.com/dwsmith1983/prebuild/internal/coordinator")

// Action records how the upstream build was obtained.
type Action string

// Action values.
const (
	ActionSkipped   Action = "SKIPPED_NO_CHANGES"
	ActionScheduled Action = "SCHEDULED"
	ActionReused    Action = "REUSED"
	ActionNoHandle  Action = "NO_HANDLE"
)

// Decision is returned when the primary job may proceed.
type Decision struct {
	Upstream string
	Action   Action
	BuildID  string
	Waited   bool
	Result   types.BuildResult
}

// Deps holds the collaborators of a Coordinator. Poller is only required when
// a configuration enables polling; Recorder and AlertFn are optional. AlertFn
// runs in its own goroutine so slow sinks do not delay the primary job.
type Deps struct {
	Registry JobRegistry
	Queue    QueueService
	Poller   SCMPoller
	Capacity ExecutorCapacity
	Recorder EventRecorder
	AlertFn  func(context.Context, types.Alert)
}

// Coordinator evaluates pre-build trigger configurations.
type Coordinator struct {
	registry JobRegistry
	queue    QueueService
	poller   SCMPoller
	capacity ExecutorCapacity
	recorder EventRecorder
	alertFn  func(context.Context, types.Alert)
	alerts   sync.WaitGroup
}

// New creates a Coordinator.
func New(d Deps) *Coordinator {
	return &Coordinator{
		registry: d.Registry,
		queue:    d.Queue,
		poller:   d.Poller,
		capacity: d.Capacity,
		recorder: d.Recorder,
		alertFn:  d.AlertFn,
	}
}

// Evaluate runs the pre-build step for one execution of the primary job. It
// returns a Decision when the primary job may proceed. A *Failure is returned
// for every refusal; other errors come from collaborators and are equally
// terminal. Nothing is retried.
func (c *Coordinator) Evaluate(ctx context.Context, cfg types.TriggerConfig, primary types.JobRef, log *slog.Logger) (dec *Decision, err error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", Component, "job", primary.Name)

	ctx, span := tracer.Start(ctx, "prebuild.Evaluate", trace.WithAttributes(
		attribute.String("prebuild.job", primary.Name),
		attribute.String("prebuild.upstream", cfg.UpstreamJob),
		attribute.Bool("prebuild.poll", cfg.Poll),
		attribute.Bool("prebuild.wait", cfg.WaitForCompletion()),
	))
	defer func() {
		c.finish(ctx, span, cfg, primary, dec, err, log)
		span.End()
	}()

	// Nothing may be scheduled for a configuration that cannot be honoured.
	if verr := cfg.Validate(); verr != nil {
		return nil, newFailure(types.FailureInvalidConfig, cfg.UpstreamJob, verr,
			"invalid pre-build configuration of job %q", primary.Name)
	}
	cfg = cfg.Normalize()

	upstream, err := c.checkPreconditions(ctx, cfg, primary)
	if err != nil {
		return nil, err
	}

	handle, dec, err := c.ensureBuild(ctx, cfg, upstream, log)
	if err != nil {
		return nil, err
	}
	if dec.Action == ActionSkipped {
		return dec, nil
	}

	if !cfg.WaitForCompletion() || handle == nil {
		return dec, nil
	}
	return c.await(ctx, cfg, upstream, handle, dec, log)
}

// checkPreconditions validates the upstream reference. Checks run in a fixed
// order and stop at the first failure.
func (c *Coordinator) checkPreconditions(ctx context.Context, cfg types.TriggerConfig, primary types.JobRef) (types.JobRef, error) {
	name := cfg.UpstreamJob

	upstream, err := c.registry.Resolve(ctx, name)
	if errors.Is(err, types.ErrJobNotFound) {
		return types.JobRef{}, newFailure(types.FailureUnknownUpstream, name, nil,
			"upstream job %q doesn't exist but should be built before this job", name)
	}
	if err != nil {
		return types.JobRef{}, fmt.Errorf("resolving upstream job %q: %w", name, err)
	}

	if upstream.Name == primary.Name {
		return types.JobRef{}, newFailure(types.FailureSelfReferential, name, nil,
			"job %q is configured to build itself before itself", primary.Name)
	}

	buildable, err := c.registry.IsBuildable(ctx, upstream)
	if err != nil {
		return types.JobRef{}, fmt.Errorf("checking upstream job %q: %w", name, err)
	}
	if !buildable {
		return types.JobRef{}, newFailure(types.FailureUpstreamNotBuildable, name, nil,
			"upstream job %q is not buildable", name)
	}

	if cfg.WaitForCompletion() {
		if n := c.capacity.TotalCapacity(); n < MinWaitCapacity {
			return types.JobRef{}, newFailure(types.FailureInsufficientCapacity, name, nil,
				"waiting for upstream job %q needs at least %d executors, have %d", name, MinWaitCapacity, n)
		}
	}

	return upstream, nil
}

// ensureBuild makes sure an upstream build is queued, running, or
// deliberately skipped, and returns the handle to await when there is one.
func (c *Coordinator) ensureBuild(ctx context.Context, cfg types.TriggerConfig, upstream types.JobRef, log *slog.Logger) (BuildHandle, *Decision, error) {
	dec := &Decision{Upstream: upstream.Name}
	var polled types.PollResult

	inFlight, err := c.queue.IsInFlight(ctx, upstream)
	if err != nil {
		return nil, nil, fmt.Errorf("checking queue for %q: %w", upstream.Name, err)
	}

	if inFlight {
		log.Info("upstream already queued or running, reusing its build", "upstream", upstream.Name)
		handle, err := c.queue.LookupInFlight(ctx, upstream)
		if err != nil {
			return nil, nil, fmt.Errorf("looking up in-flight build of %q: %w", upstream.Name, err)
		}
		if handle == nil {
			log.Warn("upstream reported in flight but no build found, not waiting", "upstream", upstream.Name)
			dec.Action = ActionNoHandle
			return nil, dec, nil
		}
		dec.Action = ActionReused
		dec.BuildID = handle.ID()
		return handle, dec, nil
	}

	log.Info("upstream not building", "upstream", upstream.Name)

	if cfg.Poll {
		if c.poller == nil {
			return nil, nil, fmt.Errorf("polling %q: no SCM poller configured", upstream.Name)
		}
		log.Info("polling upstream SCM", "upstream", upstream.Name)
		polled, err = c.poller.Poll(ctx, upstream)
		if err != nil {
			return nil, nil, fmt.Errorf("polling SCM of %q: %w", upstream.Name, err)
		}
		if !polled.HasChanges() {
			log.Info("upstream SCM has no changes, not building", "upstream", upstream.Name)
			dec.Action = ActionSkipped
			return nil, dec, nil
		}
		log.Info("upstream SCM has changes, building", "upstream", upstream.Name)
	}

	log.Info("scheduling upstream build", "upstream", upstream.Name)
	handle, err := c.queue.ScheduleBuild(ctx, upstream)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduling build of %q: %w", upstream.Name, err)
	}
	dec.Action = ActionScheduled
	if handle != nil {
		dec.BuildID = handle.ID()
	}
	if polled.Revision != "" {
		// The build is accepted; later polls compare against this revision.
		if err := c.poller.Commit(ctx, upstream, polled.Revision, dec.BuildID); err != nil {
			log.Warn("recording upstream revision failed", "upstream", upstream.Name, "revision", polled.Revision, "error", err)
		}
	}
	return handle, dec, nil
}

func (c *Coordinator) await(ctx context.Context, cfg types.TriggerConfig, upstream types.JobRef, handle BuildHandle, dec *Decision, log *slog.Logger) (*Decision, error) {
	timeout, err := cfg.WaitTimeoutDuration()
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info("waiting for upstream build to finish", "upstream", upstream.Name, "build", handle.ID())
	start := time.Now()
	result, err := handle.Await(waitCtx)
	metrics.UpstreamWait.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("upstream", upstream.Name)))

	if err != nil {
		if timeout > 0 && ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, newFailure(types.FailureUpstreamWaitTimeout, upstream.Name, err,
				"upstream job %q did not finish within %s", upstream.Name, timeout)
		}
		return nil, newFailure(types.FailureUpstreamAwaitError, upstream.Name, err,
			"upstream job %q failed to build", upstream.Name)
	}

	dec.Waited = true
	dec.Result = result
	if !result.IsBetterThan(cfg.Threshold()) {
		return nil, newFailure(types.FailureUpstreamBuildFailed, upstream.Name, nil,
			"upstream job %q failed to build: result %s", upstream.Name, result)
	}

	log.Info("upstream build finished", "upstream", upstream.Name, "build", handle.ID(), "result", result)
	return dec, nil
}

// finish records the outcome of one evaluation: span status, metrics, audit
// event and, on failure, an alert.
func (c *Coordinator) finish(ctx context.Context, span trace.Span, cfg types.TriggerConfig, primary types.JobRef, dec *Decision, err error, log *slog.Logger) {
	now := time.Now()
	if err != nil {
		kind, ok := KindOf(err)
		if !ok {
			kind = "ERROR"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		metrics.Failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
		log.Error("pre-build step failed", "upstream", cfg.UpstreamJob, "kind", kind, "error", err)

		c.record(ctx, types.Event{
			Kind:      types.EventPrebuildFailed,
			JobName:   primary.Name,
			Upstream:  cfg.UpstreamJob,
			Status:    string(kind),
			Message:   err.Error(),
			Timestamp: now,
		})
		if c.alertFn != nil {
			a := types.Alert{
				Level:     types.AlertLevelError,
				Category:  kind,
				JobName:   primary.Name,
				Upstream:  cfg.UpstreamJob,
				Message:   err.Error(),
				Timestamp: now,
			}
			alertCtx := context.WithoutCancel(ctx)
			c.alerts.Add(1)
			go func() {
				defer c.alerts.Done()
				c.alertFn(alertCtx, a)
			}()
		}
		return
	}

	span.SetAttributes(attribute.String("prebuild.action", string(dec.Action)))
	metrics.Decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(dec.Action))))

	ev := types.Event{
		JobName:   primary.Name,
		Upstream:  dec.Upstream,
		BuildID:   dec.BuildID,
		Status:    string(dec.Action),
		Timestamp: now,
	}
	switch {
	case dec.Waited:
		ev.Kind = types.EventUpstreamWaited
		ev.Details = map[string]interface{}{"result": string(dec.Result)}
	case dec.Action == ActionSkipped:
		ev.Kind = types.EventUpstreamSkipped
	case dec.Action == ActionScheduled:
		ev.Kind = types.EventUpstreamScheduled
	default:
		ev.Kind = types.EventUpstreamReused
	}
	c.record(ctx, ev)
}

func (c *Coordinator) record(ctx context.Context, ev types.Event) {
	if c.recorder == nil {
		return
	}
	_ = c.recorder.AppendEvent(ctx, ev)
}

// Drain waits until alerts dispatched by earlier evaluations were delivered,
// or ctx ends.
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.alerts.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
