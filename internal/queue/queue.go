// Package queue runs builds on a fixed pool of executors. It is the
// QueueService and ExecutorCapacity the coordinator schedules against.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/prebuild/internal/coordinator"
	"github.com/dwsmith1983/prebuild/internal/lifecycle"
	"github.com/dwsmith1983/prebuild/internal/metrics"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// ErrStopped is returned for builds that never ran because the queue stopped.
var ErrStopped = errors.New("queue stopped")

// Compile-time interface satisfaction checks.
var (
	_ coordinator.QueueService     = (*Queue)(nil)
	_ coordinator.ExecutorCapacity = (*Queue)(nil)
	_ coordinator.BuildHandle      = (*Build)(nil)
)

// Builder executes one build of a job.
type Builder interface {
	Build(ctx context.Context, job types.JobConfig) (types.BuildResult, map[string]interface{}, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, job types.JobConfig) (types.BuildResult, map[string]interface{}, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, job types.JobConfig) (types.BuildResult, map[string]interface{}, error) {
	return f(ctx, job)
}

// JobSource looks up job definitions by name.
type JobSource interface {
	Get(name string) (*types.JobConfig, error)
}

// Store persists build records and queue events.
type Store interface {
	PutBuild(ctx context.Context, rec types.BuildRecord) error
	AppendEvent(ctx context.Context, event types.Event) error
}

// Option configures a Queue.
type Option func(*Queue)

// WithStore records build history in s.
func WithStore(s Store) Option {
	return func(q *Queue) { q.store = s }
}

// WithLogger sets the queue's logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue is a FIFO build queue served by a fixed number of executors.
type Queue struct {
	jobs      JobSource
	builder   Builder
	store     Store
	logger    *slog.Logger
	executors int

	mu       sync.Mutex
	pending  []*Build
	inFlight map[string]*Build // job -> most recently scheduled unfinished build
	started  bool
	stopped  bool
	notify   chan struct{}
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// New creates a Queue with the given number of executors.
func New(jobs JobSource, builder Builder, executors int, opts ...Option) (*Queue, error) {
	if executors < 1 {
		return nil, fmt.Errorf("executors must be at least 1, got %d", executors)
	}
	q := &Queue{
		jobs:      jobs,
		builder:   builder,
		logger:    slog.Default(),
		executors: executors,
		inFlight:  make(map[string]*Build),
		notify:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(q)
	}
	return q, nil
}

// TotalCapacity returns the number of executors.
func (q *Queue) TotalCapacity() int {
	return q.executors
}

// Start launches the executors. Builds scheduled before Start wait in the queue.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return errors.New("queue already started")
	}
	if q.stopped {
		return ErrStopped
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	q.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < q.executors; i++ {
		id := i
		q.group.Go(func() error {
			q.work(ctx, id)
			return nil
		})
	}
	q.logger.Info("build queue started", "executors", q.executors)
	q.wake()
	return nil
}

// Stop cancels running builds, drops queued ones and waits for the executors
// to exit or ctx to end.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	dropped := q.pending
	q.pending = nil
	cancel, group := q.cancel, q.group
	q.mu.Unlock()

	for _, b := range dropped {
		q.finish(context.Background(), b, types.BuildCancelled, types.ResultNotBuilt, nil, ErrStopped)
	}
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.logger.Info("build queue stopped")
		return nil
	case <-ctx.Done():
		q.logger.Warn("build queue stop timed out")
		return ctx.Err()
	}
}

// IsInFlight reports whether the job has a build that is queued or running.
func (q *Queue) IsInFlight(_ context.Context, ref types.JobRef) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inFlight[ref.Name]
	return ok, nil
}

// LookupInFlight returns the job's unfinished build, or nil when there is none.
func (q *Queue) LookupInFlight(_ context.Context, ref types.JobRef) (coordinator.BuildHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.inFlight[ref.Name]
	if !ok {
		return nil, nil
	}
	return b, nil
}

// ScheduleBuild queues a build of the job. A build of the same job that is
// still waiting for an executor is returned instead of queueing a second one.
func (q *Queue) ScheduleBuild(ctx context.Context, ref types.JobRef) (coordinator.BuildHandle, error) {
	b, err := q.Schedule(ctx, ref.Name)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Schedule is ScheduleBuild returning the concrete build.
func (q *Queue) Schedule(ctx context.Context, jobName string) (*Build, error) {
	job, err := q.jobs.Get(jobName)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, ErrStopped
	}
	for _, p := range q.pending {
		if p.job.Name == job.Name {
			q.mu.Unlock()
			q.logger.Info("build already queued", "job", job.Name, "build", p.id)
			metrics.BuildsDeduped.Add(ctx, 1, metric.WithAttributes(attribute.String("job", job.Name)))
			return p, nil
		}
	}

	b := &Build{
		id:       ulid.Make().String(),
		job:      *job,
		status:   types.BuildQueued,
		queuedAt: time.Now().UTC(),
		done:     make(chan struct{}),
	}
	q.pending = append(q.pending, b)
	q.inFlight[job.Name] = b
	q.mu.Unlock()

	q.logger.Info("build queued", "job", job.Name, "build", b.id)
	metrics.BuildsScheduled.Add(ctx, 1, metric.WithAttributes(attribute.String("job", job.Name)))
	q.persist(ctx, b, types.Event{Kind: types.EventBuildQueued, Status: string(types.BuildQueued)})
	q.wake()
	return b, nil
}

// Pending returns the number of builds waiting for an executor.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) work(ctx context.Context, executor int) {
	for {
		b := q.next()
		if b == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
				continue
			}
		}
		q.run(ctx, b, executor)
	}
}

// next pops the oldest pending build and marks it running.
func (q *Queue) next() *Build {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || len(q.pending) == 0 {
		return nil
	}
	b := q.pending[0]
	q.pending = q.pending[1:]
	if len(q.pending) > 0 {
		q.wake()
	}
	q.transition(b, types.BuildRunning)
	return b
}

func (q *Queue) run(ctx context.Context, b *Build, executor int) {
	log := q.logger.With("job", b.job.Name, "build", b.id, "executor", executor)
	log.Info("build started")
	q.persist(ctx, b, types.Event{})

	result, meta, err := q.execute(ctx, b)
	status := types.BuildCompleted
	if err != nil {
		status = types.BuildErrored
		log.Error("build errored", "error", err)
	} else {
		log.Info("build finished", "result", result)
	}
	q.finish(ctx, b, status, result, meta, err)
}

func (q *Queue) execute(ctx context.Context, b *Build) (result types.BuildResult, meta map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build panicked: %v", r)
		}
	}()
	return q.builder.Build(ctx, b.job)
}

func (q *Queue) finish(ctx context.Context, b *Build, status types.BuildStatus, result types.BuildResult, meta map[string]interface{}, err error) {
	q.mu.Lock()
	q.transition(b, status)
	b.mu.Lock()
	b.result = result
	b.meta = meta
	b.err = err
	b.mu.Unlock()
	if q.inFlight[b.job.Name] == b {
		delete(q.inFlight, b.job.Name)
	}
	q.mu.Unlock()
	defer close(b.done)

	metrics.BuildsFinished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", b.job.Name),
		attribute.String("status", string(status)),
		attribute.String("result", string(result)),
	))

	ev := types.Event{Kind: types.EventBuildFinished, Status: string(status)}
	if err != nil {
		ev.Message = err.Error()
	}
	if result != "" {
		ev.Details = map[string]interface{}{"result": string(result)}
	}
	q.persist(context.WithoutCancel(ctx), b, ev)
}

// transition moves b to status and stamps the start or finish time. Must be
// called with q.mu held.
func (q *Queue) transition(b *Build, status types.BuildStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := lifecycle.Transition(b.status, status); err != nil {
		q.logger.Error("build state machine violated", "build", b.id, "error", err)
	}
	b.status = status
	now := time.Now().UTC()
	switch {
	case status == types.BuildRunning:
		b.startedAt = &now
	case lifecycle.IsTerminal(status):
		b.finishedAt = &now
	}
}

// persist writes the build record and, when ev has a kind, an event. Storage
// failures are logged; they never fail a build.
func (q *Queue) persist(ctx context.Context, b *Build, ev types.Event) {
	if q.store == nil {
		return
	}
	rec := b.Record()
	if err := q.store.PutBuild(ctx, rec); err != nil {
		q.logger.Warn("failed to record build", "build", b.id, "error", err)
	}
	if ev.Kind == "" {
		return
	}
	ev.JobName = rec.JobName
	ev.BuildID = rec.BuildID
	ev.Timestamp = time.Now().UTC()
	if err := q.store.AppendEvent(ctx, ev); err != nil {
		q.logger.Warn("failed to record build event", "build", b.id, "error", err)
	}
}
