// Package providertest provides shared conformance tests for provider.Provider
// implementations. Call RunAll from a test function to verify a provider
// satisfies the full behavioral contract.
package providertest

import (
	"testing"

	"github.com/dwsmith1983/prebuild/internal/provider"
)

// RunAll runs the complete provider conformance suite as subtests.
func RunAll(t *testing.T, prov provider.Provider) {
	t.Helper()

	t.Run("Ping", func(t *testing.T) { TestPing(t, prov) })
	t.Run("BuildPutGet", func(t *testing.T) { TestBuildPutGet(t, prov) })
	t.Run("BuildUpdate", func(t *testing.T) { TestBuildUpdate(t, prov) })
	t.Run("BuildList", func(t *testing.T) { TestBuildList(t, prov) })
	t.Run("BuildNotFound", func(t *testing.T) { TestBuildNotFound(t, prov) })
	t.Run("RevisionPutGet", func(t *testing.T) { TestRevisionPutGet(t, prov) })
	t.Run("EventAppendAndList", func(t *testing.T) { TestEventAppendAndList(t, prov) })
}
