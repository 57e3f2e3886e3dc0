package pathselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/covergen/internal/cfgbuild"
)

func candidates() []cfgbuild.Path {
	return []cfgbuild.Path{
		{MethodName: "f", Label: "f_1_0", MissedValue: 5},
		{MethodName: "f", Label: "f_1_1", MissedValue: 2},
		{MethodName: "f", Label: "f_1_2", MissedValue: 8},
	}
}

func TestPickTwoReturnsExploitAndExplore(t *testing.T) {
	h := make(History)
	h["f_1_2"] = 3 // the highest-missed path has been visited before

	s := New(10, 0.7, nil)
	picked := s.PickTwo(candidates(), h)
	require.Len(t, picked, 2)

	assert.Equal(t, "f_1_2", picked[0].Label, "exploit = argmax missed value")
	assert.Equal(t, "f_1_0", picked[1].Label, "explore = argmin visits (first in order)")
}

func TestPickTwoCollapsesDuplicates(t *testing.T) {
	h := make(History)
	s := New(10, 0.7, nil)

	// A single candidate is both exploit and explore.
	picked := s.PickTwo(candidates()[:1], h)
	require.Len(t, picked, 1)
	// The duplicate still pays both visits.
	assert.Equal(t, 2, h.Visits("f_1_0"))
}

func TestPickTwoPaysVisitsAtSelection(t *testing.T) {
	h := make(History)
	s := New(10, 0.7, nil)

	picked := s.PickTwo(candidates(), h)
	require.Len(t, picked, 2)
	for _, p := range picked {
		assert.Equal(t, 1, h.Visits(p.Label), "selected path must pay a visit")
	}
	assert.Equal(t, 0, h.Visits("f_1_1"), "unselected path stays unvisited")
}

func TestPickTwoFiltersExhaustedPaths(t *testing.T) {
	h := make(History)
	h["f_1_2"] = 10 // at max_visit
	s := New(10, 0.7, nil)

	picked := s.PickTwo(candidates(), h)
	for _, p := range picked {
		assert.NotEqual(t, "f_1_2", p.Label, "exhausted path must not be selected")
	}
}

func TestPickTwoEmptyWhenAllExhausted(t *testing.T) {
	h := History{"f_1_0": 10, "f_1_1": 10, "f_1_2": 10}
	s := New(10, 0.7, nil)
	assert.Empty(t, s.PickTwo(candidates(), h))
}

func TestPickOneBlendsMissedValueAndNovelty(t *testing.T) {
	h := make(History)
	s := New(10, 0.7, nil)

	p, ok := s.PickOne(candidates(), h)
	require.True(t, ok)
	assert.Equal(t, "f_1_2", p.Label, "fresh history: highest missed value wins")
	assert.Equal(t, 1, h.Visits("f_1_2"))
}

func TestPickOnePrefersNoveltyWhenExploitSaturates(t *testing.T) {
	h := History{"f_1_2": 9}
	cands := []cfgbuild.Path{
		{Label: "f_1_2", MissedValue: 8},
		{Label: "f_1_0", MissedValue: 8},
	}
	s := New(10, 0.7, nil)
	p, ok := s.PickOne(cands, h)
	require.True(t, ok)
	assert.Equal(t, "f_1_0", p.Label, "equal missed value: fewer visits wins")
}

func TestVisitMonotonicity(t *testing.T) {
	h := make(History)
	s := New(10, 0.7, nil)
	for i := 0; i < 25; i++ {
		s.PickTwo(candidates(), h)
	}
	for label, visits := range h {
		assert.LessOrEqual(t, visits, 10+1, "label %s exceeded max_visit by more than the final pay", label)
		assert.GreaterOrEqual(t, visits, 0)
	}
}
