package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

func job(name, upstream string) *types.JobConfig {
	j := &types.JobConfig{Name: name}
	if upstream != "" {
		j.Prebuild = &types.TriggerConfig{UpstreamJob: upstream}
	}
	return j
}

func TestBuild_Edges(t *testing.T) {
	g := Build([]*types.JobConfig{
		job("app", "lib"),
		job("cli", "lib"),
		job("lib", ""),
	})

	up, ok := g.Upstream("app")
	require.True(t, ok)
	assert.Equal(t, "lib", up)

	_, ok = g.Upstream("lib")
	assert.False(t, ok)

	assert.Equal(t, []string{"app", "cli"}, g.Dependents("lib"))
	assert.Empty(t, g.Dependents("app"))
	assert.NoError(t, g.CheckAcyclic())
}

func TestDetectCycles_TwoJobs(t *testing.T) {
	g := Build([]*types.JobConfig{job("a", "b"), job("b", "a")})

	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0])

	err := g.CheckAcyclic()
	require.Error(t, err)
	assert.Equal(t, "cycle detected: a -> b -> a", err.Error())
}

func TestDetectCycles_SelfLoop(t *testing.T) {
	g := Build([]*types.JobConfig{job("a", "a")})
	assert.Equal(t, [][]string{{"a", "a"}}, g.DetectCycles())
}

func TestDetectCycles_TailIntoCycle(t *testing.T) {
	// x -> y -> z -> y: only the y/z loop is a cycle.
	g := Build([]*types.JobConfig{job("x", "y"), job("y", "z"), job("z", "y")})

	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"y", "z", "y"}, cycles[0])
}

func TestDetectCycles_Independent(t *testing.T) {
	g := Build([]*types.JobConfig{
		job("a", "b"), job("b", "a"),
		job("c", "d"), job("d", "c"),
		job("e", "a"),
	})
	assert.Len(t, g.DetectCycles(), 2)
}

func TestDangling(t *testing.T) {
	g := Build([]*types.JobConfig{job("app", "ghost"), job("lib", "")})
	assert.Equal(t, []string{"app -> ghost"}, g.Dangling())
	assert.NoError(t, g.CheckAcyclic())
}
