package providertest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/prebuild/internal/provider"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// TestPing verifies the provider reports itself reachable.
func TestPing(t *testing.T, prov provider.Provider) {
	require.NoError(t, prov.Ping(context.Background()))
}

// TestBuildPutGet verifies a build record round-trips.
func TestBuildPutGet(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	queued := time.Now().UTC().Truncate(time.Millisecond)

	rec := types.BuildRecord{
		BuildID:  "ct-build-pg",
		JobName:  "ct-job-pg",
		Status:   types.BuildQueued,
		Metadata: map[string]interface{}{"trigger": "command"},
		QueuedAt: queued,
	}
	require.NoError(t, prov.PutBuild(ctx, rec))

	got, err := prov.GetBuild(ctx, "ct-build-pg")
	require.NoError(t, err)
	assert.Equal(t, "ct-job-pg", got.JobName)
	assert.Equal(t, types.BuildQueued, got.Status)
	assert.Equal(t, "command", got.Metadata["trigger"])
	assert.True(t, queued.Equal(got.QueuedAt))
}

// TestBuildUpdate verifies that a later put replaces the earlier state
// without duplicating the build in the job's history.
func TestBuildUpdate(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	queued := time.Now().UTC()

	rec := types.BuildRecord{BuildID: "ct-build-up", JobName: "ct-job-up", Status: types.BuildQueued, QueuedAt: queued}
	require.NoError(t, prov.PutBuild(ctx, rec))

	finished := queued.Add(time.Second)
	rec.Status = types.BuildCompleted
	rec.Result = types.ResultUnstable
	rec.FinishedAt = &finished
	require.NoError(t, prov.PutBuild(ctx, rec))

	got, err := prov.GetBuild(ctx, "ct-build-up")
	require.NoError(t, err)
	assert.Equal(t, types.BuildCompleted, got.Status)
	assert.Equal(t, types.ResultUnstable, got.Result)
	require.NotNil(t, got.FinishedAt)

	list, err := prov.ListBuilds(ctx, "ct-job-up", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, types.BuildCompleted, list[0].Status)
}

// TestBuildList verifies builds are listed newest first and limited.
func TestBuildList(t *testing.T, prov provider.Provider) {
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, prov.PutBuild(ctx, types.BuildRecord{
			BuildID:  fmt.Sprintf("ct-build-list-%d", i),
			JobName:  "ct-job-list",
			Status:   types.BuildQueued,
			QueuedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := prov.ListBuilds(ctx, "ct-job-list", 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ct-build-list-4", list[0].BuildID)
	assert.Equal(t, "ct-build-list-2", list[2].BuildID)

	empty, err := prov.ListBuilds(ctx, "ct-job-none", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestBuildNotFound verifies missing builds wrap provider.ErrNotFound.
func TestBuildNotFound(t *testing.T, prov provider.Provider) {
	_, err := prov.GetBuild(context.Background(), "ct-build-missing")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

// TestRevisionPutGet verifies SCM revisions round-trip and absent ones are nil.
func TestRevisionPutGet(t *testing.T, prov provider.Provider) {
	ctx := context.Background()

	got, err := prov.GetRevision(ctx, "ct-job-rev")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, prov.PutRevision(ctx, types.Revision{JobName: "ct-job-rev", Revision: "abc123", CheckedAt: time.Now()}))
	require.NoError(t, prov.PutRevision(ctx, types.Revision{JobName: "ct-job-rev", Revision: "def456", BuildID: "ct-build-rev", CheckedAt: time.Now()}))

	got, err = prov.GetRevision(ctx, "ct-job-rev")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "def456", got.Revision)
	assert.Equal(t, "ct-build-rev", got.BuildID)
}
