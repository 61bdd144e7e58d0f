package scm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/prebuild/internal/provider/memory"
	"github.com/dwsmith1983/prebuild/internal/testutil"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

type fakeRemote struct {
	mu    sync.Mutex
	heads map[string]string
	err   error
	calls int
	refs  []string
}

func (f *fakeRemote) revision(_ context.Context, repo, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.refs = append(f.refs, ref)
	if f.err != nil {
		return "", f.err
	}
	return f.heads[repo], nil
}

func newTestPoller(t *testing.T, remote *fakeRemote, cfg *types.SCMPollConfig) (*Poller, *memory.Provider) {
	t.Helper()
	jobs := testutil.NewJobs(
		&types.JobConfig{Name: "lib", SCM: &types.SCMConfig{Repository: "git@example.com:org/lib.git"}},
		&types.JobConfig{Name: "tagged", SCM: &types.SCMConfig{Repository: "git@example.com:org/tagged.git", Ref: "refs/tags/v1"}},
		&types.JobConfig{Name: "noscm"},
	)
	store := memory.New()
	p, err := NewPoller(jobs, store, cfg, WithRevisionFunc(remote.revision))
	require.NoError(t, err)
	return p, store
}

func TestPoll_FirstPollReportsChanges(t *testing.T) {
	remote := &fakeRemote{heads: map[string]string{"git@example.com:org/lib.git": "abc"}}
	p, store := newTestPoller(t, remote, nil)

	out, err := p.Poll(context.Background(), types.JobRef{Name: "lib"})
	require.NoError(t, err)
	assert.Equal(t, types.PollChanges, out.Outcome)
	assert.Equal(t, "abc", out.Revision)
	assert.Equal(t, []string{"HEAD"}, remote.refs)

	rev, err := store.GetRevision(context.Background(), "lib")
	require.NoError(t, err)
	assert.Nil(t, rev, "polling alone records nothing")
}

func TestPoll_DetectsChanges(t *testing.T) {
	remote := &fakeRemote{heads: map[string]string{"git@example.com:org/lib.git": "abc"}}
	p, _ := newTestPoller(t, remote, nil)
	ctx := context.Background()
	ref := types.JobRef{Name: "lib"}

	out, err := p.Poll(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, p.Commit(ctx, ref, out.Revision, ""))

	out, err = p.Poll(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.PollNoChanges, out.Outcome)

	remote.heads["git@example.com:org/lib.git"] = "def"
	out, err = p.Poll(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.PollChanges, out.Outcome)
	assert.Equal(t, "def", out.Revision)
}

func TestPoll_UncommittedRevisionStaysChanged(t *testing.T) {
	remote := &fakeRemote{heads: map[string]string{"git@example.com:org/lib.git": "abc"}}
	p, _ := newTestPoller(t, remote, nil)
	ctx := context.Background()
	ref := types.JobRef{Name: "lib"}

	for i := 0; i < 3; i++ {
		out, err := p.Poll(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, types.PollChanges, out.Outcome, "poll %d", i)
	}
}

func TestPoll_BaselineOfDroppedBuildIgnored(t *testing.T) {
	tests := []struct {
		name   string
		build  *types.BuildRecord
		expect types.PollOutcome
	}{
		{"cancelled before running", &types.BuildRecord{BuildID: "b1", JobName: "lib", Status: types.BuildCancelled, Result: types.ResultNotBuilt}, types.PollChanges},
		{"record missing", nil, types.PollChanges},
		{"completed", &types.BuildRecord{BuildID: "b1", JobName: "lib", Status: types.BuildCompleted, Result: types.ResultFailure}, types.PollNoChanges},
		{"still queued", &types.BuildRecord{BuildID: "b1", JobName: "lib", Status: types.BuildQueued}, types.PollNoChanges},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{heads: map[string]string{"git@example.com:org/lib.git": "abc"}}
			p, store := newTestPoller(t, remote, nil)
			ctx := context.Background()
			ref := types.JobRef{Name: "lib"}

			if tt.build != nil {
				require.NoError(t, store.PutBuild(ctx, *tt.build))
			}
			require.NoError(t, p.Commit(ctx, ref, "abc", "b1"))

			out, err := p.Poll(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, out.Outcome)
		})
	}
}

func TestCommit_RecordsBuild(t *testing.T) {
	p, store := newTestPoller(t, &fakeRemote{}, nil)
	ctx := context.Background()
	ref := types.JobRef{Name: "lib"}

	require.NoError(t, p.Commit(ctx, ref, "", "b0"))
	rev, err := store.GetRevision(ctx, "lib")
	require.NoError(t, err)
	assert.Nil(t, rev, "empty revision is not recorded")

	require.NoError(t, p.Commit(ctx, ref, "abc", "b1"))
	rev, err = store.GetRevision(ctx, "lib")
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, "abc", rev.Revision)
	assert.Equal(t, "b1", rev.BuildID)
	assert.Equal(t, time.UTC, rev.CheckedAt.Location())
}

func TestPoll_UsesConfiguredRef(t *testing.T) {
	remote := &fakeRemote{heads: map[string]string{}}
	p, _ := newTestPoller(t, remote, nil)

	_, err := p.Poll(context.Background(), types.JobRef{Name: "tagged"})
	require.NoError(t, err)
	assert.Equal(t, []string{"refs/tags/v1"}, remote.refs)
}

func TestPoll_NoSCM(t *testing.T) {
	remote := &fakeRemote{}
	p, _ := newTestPoller(t, remote, nil)

	out, err := p.Poll(context.Background(), types.JobRef{Name: "noscm"})
	require.NoError(t, err)
	assert.Equal(t, types.PollNoChanges, out.Outcome)
	assert.Empty(t, out.Revision)
	assert.Zero(t, remote.calls)
}

func TestPoll_UnknownJob(t *testing.T) {
	p, _ := newTestPoller(t, &fakeRemote{}, nil)
	_, err := p.Poll(context.Background(), types.JobRef{Name: "ghost"})
	assert.ErrorIs(t, err, types.ErrJobNotFound)
}

func TestPoll_ProbeErrorKeepsRevision(t *testing.T) {
	remote := &fakeRemote{heads: map[string]string{"git@example.com:org/lib.git": "abc"}}
	p, store := newTestPoller(t, remote, nil)
	ctx := context.Background()
	ref := types.JobRef{Name: "lib"}

	require.NoError(t, p.Commit(ctx, ref, "abc", ""))

	remote.err = errors.New("connection refused")
	_, err := p.Poll(ctx, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	rev, err := store.GetRevision(ctx, "lib")
	require.NoError(t, err)
	assert.Equal(t, "abc", rev.Revision)
}

func TestPoll_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	remote := &fakeRemote{err: errors.New("unreachable")}
	p, _ := newTestPoller(t, remote, &types.SCMPollConfig{FailThreshold: 2, Cooldown: "1h"})
	ctx := context.Background()
	ref := types.JobRef{Name: "lib"}

	for i := 0; i < 2; i++ {
		_, err := p.Poll(ctx, ref)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.Poll(ctx, ref)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, remote.calls, "open breaker must not probe")
}

func TestPoll_BreakerRecoversAfterCooldown(t *testing.T) {
	remote := &fakeRemote{err: errors.New("unreachable"), heads: map[string]string{"git@example.com:org/lib.git": "abc"}}
	p, _ := newTestPoller(t, remote, &types.SCMPollConfig{FailThreshold: 1, Cooldown: "10ms"})
	ctx := context.Background()
	ref := types.JobRef{Name: "lib"}

	_, err := p.Poll(ctx, ref)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, p.State())

	time.Sleep(20 * time.Millisecond)
	remote.mu.Lock()
	remote.err = nil
	remote.mu.Unlock()

	out, err := p.Poll(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.PollChanges, out.Outcome)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestPoll_ProbeTimeout(t *testing.T) {
	slow := func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	store := memory.New()
	p, err := NewPoller(testutil.NewJobs(&types.JobConfig{Name: "lib", SCM: &types.SCMConfig{Repository: "r"}}), store,
		&types.SCMPollConfig{Timeout: "10ms"}, WithRevisionFunc(slow))
	require.NoError(t, err)

	_, err = p.Poll(context.Background(), types.JobRef{Name: "lib"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewPoller_InvalidConfig(t *testing.T) {
	_, err := NewPoller(testutil.NewJobs(), memory.New(), &types.SCMPollConfig{Timeout: "later"})
	assert.ErrorContains(t, err, "scm timeout")

	_, err = NewPoller(testutil.NewJobs(), memory.New(), &types.SCMPollConfig{Cooldown: "-1s"})
	assert.ErrorContains(t, err, "scm cooldown")
}

func TestParseLsRemote(t *testing.T) {
	out := "1111\trefs/heads/dev\n2222\trefs/heads/main\n"

	h, err := parseLsRemote(out, "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, "2222", h)

	h, err = parseLsRemote("3333\tHEAD\n", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "3333", h)

	h, err = parseLsRemote(out, "main")
	require.NoError(t, err)
	assert.Equal(t, "1111", h)

	_, err = parseLsRemote("", "HEAD")
	assert.ErrorContains(t, err, "not found")
}
