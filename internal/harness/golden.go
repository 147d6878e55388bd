package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/husk/internal/canonical"
)

// RunGolden executes scenario and compares its canonical trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunGolden(t *testing.T, fixture Fixture, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(fixture, scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}

	trace := make([]any, len(result.Trace))
	for i, entry := range result.Trace {
		trace[i] = entry
	}
	snapshot := map[string]any{
		"scenario": scenario.Name,
		"session":  scenario.session(),
		"trace":    trace,
	}

	traceJSON, err := canonical.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal trace for %s: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return result
}
