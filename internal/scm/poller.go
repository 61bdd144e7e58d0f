// Package scm implements change detection for upstream jobs by comparing the
// current head of a job's repository against the revision the job was last
// scheduled to build.
package scm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/prebuild/internal/metrics"
	"github.com/dwsmith1983/prebuild/internal/provider"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

const (
	defaultRef           = "HEAD"
	defaultTimeout       = 30 * time.Second
	defaultCooldown      = 30 * time.Second
	defaultFailThreshold = 5
)

// JobSource looks up job definitions by name.
type JobSource interface {
	Get(name string) (*types.JobConfig, error)
}

// RevisionStore persists the last built revision per job. GetBuild tells
// whether the build a baseline was committed for actually ran.
type RevisionStore interface {
	GetRevision(ctx context.Context, jobName string) (*types.Revision, error)
	PutRevision(ctx context.Context, rev types.Revision) error
	GetBuild(ctx context.Context, buildID string) (*types.BuildRecord, error)
}

// RevisionFunc returns the current revision of ref in repository.
type RevisionFunc func(ctx context.Context, repository, ref string) (string, error)

// Poller detects SCM changes. Probes run behind a circuit breaker so that an
// unreachable remote fails fast instead of stalling every pre-build step.
type Poller struct {
	jobs     JobSource
	store    RevisionStore
	revision RevisionFunc
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithRevisionFunc replaces the git ls-remote probe.
func WithRevisionFunc(fn RevisionFunc) Option {
	return func(p *Poller) { p.revision = fn }
}

// WithLogger sets the poller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a Poller. A nil cfg uses the defaults.
func NewPoller(jobs JobSource, store RevisionStore, cfg *types.SCMPollConfig, opts ...Option) (*Poller, error) {
	if cfg == nil {
		cfg = &types.SCMPollConfig{}
	}
	timeout, err := parseDuration(cfg.Timeout, defaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("scm timeout: %w", err)
	}
	cooldown, err := parseDuration(cfg.Cooldown, defaultCooldown)
	if err != nil {
		return nil, fmt.Errorf("scm cooldown: %w", err)
	}
	threshold := cfg.FailThreshold
	if threshold <= 0 {
		threshold = defaultFailThreshold
	}

	p := &Poller{
		jobs:     jobs,
		store:    store,
		revision: LsRemote,
		timeout:  timeout,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "scm",
		Timeout: cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(threshold)
		},
		// Caller cancellation says nothing about the remote.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p, nil
}

// Poll reports whether the job's source changed since the revision it was
// last scheduled to build. A job that was never built always has changes; a
// job without SCM configuration has nothing that can change.
//
// Poll does not record anything. The caller commits the returned revision
// once a build of it has been accepted.
func (p *Poller) Poll(ctx context.Context, ref types.JobRef) (types.PollResult, error) {
	job, err := p.jobs.Get(ref.Name)
	if err != nil {
		return types.PollResult{}, err
	}
	if job.SCM == nil || job.SCM.Repository == "" {
		p.logger.Info("job has no SCM configured", "job", ref.Name)
		p.count(ctx, ref.Name, types.PollNoChanges)
		return types.PollResult{Outcome: types.PollNoChanges}, nil
	}

	current, err := p.probe(ctx, job.SCM)
	if err != nil {
		p.count(ctx, ref.Name, "ERROR")
		return types.PollResult{}, fmt.Errorf("polling %s: %w", job.SCM.Repository, err)
	}

	built, err := p.baseline(ctx, ref.Name)
	if err != nil {
		return types.PollResult{}, err
	}

	outcome := types.PollChanges
	if built == current {
		outcome = types.PollNoChanges
	}
	p.logger.Info("polled SCM", "job", ref.Name, "revision", current, "built", built, "outcome", outcome)
	p.count(ctx, ref.Name, outcome)
	return types.PollResult{Outcome: outcome, Revision: current}, nil
}

// Commit records revision as the job's baseline, built by buildID.
func (p *Poller) Commit(ctx context.Context, ref types.JobRef, revision, buildID string) error {
	if revision == "" {
		return nil
	}
	if err := p.store.PutRevision(ctx, types.Revision{
		JobName:   ref.Name,
		Revision:  revision,
		BuildID:   buildID,
		CheckedAt: p.now().UTC(),
	}); err != nil {
		return fmt.Errorf("storing revision of %q: %w", ref.Name, err)
	}
	return nil
}

// baseline returns the revision the job was last built from, or "" when
// there is none. A baseline whose build was dropped before it ran, or whose
// record is gone, is ignored.
func (p *Poller) baseline(ctx context.Context, jobName string) (string, error) {
	prev, err := p.store.GetRevision(ctx, jobName)
	if err != nil {
		return "", fmt.Errorf("reading last revision of %q: %w", jobName, err)
	}
	if prev == nil {
		return "", nil
	}
	if prev.BuildID == "" {
		return prev.Revision, nil
	}

	rec, err := p.store.GetBuild(ctx, prev.BuildID)
	if errors.Is(err, provider.ErrNotFound) {
		p.logger.Warn("build of last revision not found, ignoring it", "job", jobName, "build", prev.BuildID)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading build %s of %q: %w", prev.BuildID, jobName, err)
	}
	if rec.Status == types.BuildCancelled {
		p.logger.Info("build of last revision never ran, ignoring it", "job", jobName, "build", prev.BuildID)
		return "", nil
	}
	return prev.Revision, nil
}

// State returns the circuit breaker state.
func (p *Poller) State() gobreaker.State {
	return p.breaker.State()
}

func (p *Poller) probe(ctx context.Context, scm *types.SCMConfig) (string, error) {
	gitRef := scm.Ref
	if gitRef == "" {
		gitRef = defaultRef
	}
	out, err := p.breaker.Execute(func() (interface{}, error) {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.revision(probeCtx, scm.Repository, gitRef)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (p *Poller) count(ctx context.Context, job string, outcome types.PollOutcome) {
	metrics.SCMPolls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("outcome", string(outcome)),
	))
}

// LsRemote resolves ref with `git ls-remote`.
func LsRemote(ctx context.Context, repository, ref string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "ls-remote", repository, ref).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git ls-remote: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git ls-remote: %w", err)
	}
	return parseLsRemote(string(out), ref)
}

// parseLsRemote picks the hash of the first line, preferring an exact ref match.
func parseLsRemote(out, ref string) (string, error) {
	var first string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[1] == ref {
			return fields[0], nil
		}
		if first == "" {
			first = fields[0]
		}
	}
	if first == "" {
		return "", fmt.Errorf("ref %s not found", ref)
	}
	return first, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}
