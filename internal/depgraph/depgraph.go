// Package depgraph builds the pre-build dependency graph of registered jobs.
//
// Each job names at most one upstream job. The graph is used at
// configuration time only: the coordinator itself never walks it, so a cycle
// that slips through here surfaces at run time as two builds waiting on each
// other.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// Graph maps each job to the upstream it builds first.
type Graph struct {
	upstream   map[string]string
	dependents map[string][]string
	names      []string
}

// Build creates a graph from job definitions. Jobs without a prebuild
// configuration are nodes with no outgoing edge.
func Build(jobs []*types.JobConfig) *Graph {
	g := &Graph{
		upstream:   make(map[string]string),
		dependents: make(map[string][]string),
	}
	for _, job := range jobs {
		g.names = append(g.names, job.Name)
		if job.Prebuild == nil {
			continue
		}
		up := strings.TrimSpace(job.Prebuild.UpstreamJob)
		if up == "" {
			continue
		}
		g.upstream[job.Name] = up
		g.dependents[up] = append(g.dependents[up], job.Name)
	}
	sort.Strings(g.names)
	for _, d := range g.dependents {
		sort.Strings(d)
	}
	return g
}

// Upstream returns the job built before name, if any.
func (g *Graph) Upstream(name string) (string, bool) {
	up, ok := g.upstream[name]
	return up, ok
}

// Dependents returns the jobs that build name first, sorted.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// Dangling returns "job -> upstream" for every edge whose upstream is not a
// known job.
func (g *Graph) Dangling() []string {
	known := make(map[string]bool, len(g.names))
	for _, n := range g.names {
		known[n] = true
	}
	var out []string
	for _, n := range g.names {
		if up, ok := g.upstream[n]; ok && !known[up] {
			out = append(out, n+" -> "+up)
		}
	}
	return out
}

// DetectCycles returns every distinct cycle as a path that starts and ends
// on the same job, e.g. [a b a].
func (g *Graph) DetectCycles() [][]string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var cycles [][]string

	for _, start := range g.names {
		if state[start] != unvisited {
			continue
		}
		var path []string
		node := start
		for {
			if state[node] == visiting {
				for i, id := range path {
					if id == node {
						cycle := append(append([]string{}, path[i:]...), node)
						cycles = append(cycles, cycle)
						break
					}
				}
				break
			}
			if state[node] == done {
				break
			}
			state[node] = visiting
			path = append(path, node)
			next, ok := g.upstream[node]
			if !ok {
				break
			}
			node = next
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return cycles
}

// CheckAcyclic returns an error naming the first cycle found.
func (g *Graph) CheckAcyclic() error {
	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		return nil
	}
	return fmt.Errorf("cycle detected: %s", strings.Join(cycles[0], " -> "))
}
