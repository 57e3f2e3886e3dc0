package cfgbuild

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathsCoverEveryEdge(t *testing.T) {
	for _, tc := range []struct {
		src, method string
	}{
		{guardSource, "f"},
		{loopSource, "sumEven"},
	} {
		cfg := buildOne(t, tc.src, tc.method)
		paths := EnumeratePaths(cfg, 5*time.Second)
		require.NotEmpty(t, paths, "no paths for %s", tc.method)

		covered := make(map[edgeKey]struct{})
		for _, p := range paths {
			for i := 0; i+1 < len(p.Nodes); i++ {
				for _, e := range cfg.Edges {
					if e.Src == p.Nodes[i] && e.Dst == p.Nodes[i+1] {
						covered[keyOf(e)] = struct{}{}
					}
				}
			}
		}
		assert.Len(t, covered, len(cfg.Edges),
			"independent paths of %s must cover every edge", tc.method)
	}
}

func TestPathCountBoundedByComplexity(t *testing.T) {
	cfg := buildOne(t, guardSource, "f")
	paths := EnumeratePaths(cfg, 5*time.Second)
	assert.LessOrEqual(t, len(paths), cfg.Complexity)
	assert.Equal(t, cfg.Complexity, len(paths), "reducible guard graph: count equals complexity")
}

func TestNestedLoopYieldsMultiplePaths(t *testing.T) {
	cfg := buildOne(t, loopSource, "sumEven")
	paths := EnumeratePaths(cfg, 5*time.Second)
	assert.GreaterOrEqual(t, len(paths), 3, "loop with inner branch should yield at least 3 independent paths")
}

func TestPathsStartAtEntryEndAtExit(t *testing.T) {
	cfg := buildOne(t, loopSource, "sumEven")
	for _, p := range EnumeratePaths(cfg, 5*time.Second) {
		require.NotEmpty(t, p.Nodes)
		assert.Equal(t, cfg.EntryID, p.Nodes[0])
		assert.Equal(t, cfg.ExitID, p.Nodes[len(p.Nodes)-1])
	}
}

func TestPathLabelsAreStable(t *testing.T) {
	cfg := buildOne(t, guardSource, "f")
	first := EnumeratePaths(cfg, 5*time.Second)
	second := EnumeratePaths(cfg, 5*time.Second)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Label, second[i].Label)
	}
}

func TestConditionTraceAnnotatesBranches(t *testing.T) {
	cfg := buildOne(t, guardSource, "f")
	paths := EnumeratePaths(cfg, 5*time.Second)

	var traces []string
	for _, p := range paths {
		traces = append(traces, p.ConditionTrace)
	}
	assert.Condition(t, func() bool {
		for _, tr := range traces {
			if containsAll(tr, "if (x > 0)", "[true]") {
				return true
			}
		}
		return false
	}, "expected a trace taking the guard's true branch, got %v", traces)
	assert.Condition(t, func() bool {
		for _, tr := range traces {
			if containsAll(tr, "if (x > 0)", "[false]") {
				return true
			}
		}
		return false
	}, "expected a trace taking the guard's false branch, got %v", traces)
}

func TestEnumerationTimeoutReturnsPartial(t *testing.T) {
	cfg := buildOne(t, loopSource, "sumEven")
	// An immediate deadline still returns without hanging; the result may
	// be empty but must be well-formed.
	paths := EnumeratePaths(cfg, 0)
	for _, p := range paths {
		assert.NotEmpty(t, p.Nodes)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
