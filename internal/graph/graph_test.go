package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/plugind/internal/plugin"
)

type node struct {
	id       string
	deps     []string
	priority int
}

func opts() Options[node] {
	return Options[node]{
		ID:        func(n node) string { return n.id },
		DependsOn: func(n node) []string { return n.deps },
		Priority:  func(n node) int { return n.priority },
	}
}

func ids(nodes []node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

func TestSort_DependencyBeforeDependent(t *testing.T) {
	got, err := Sort([]node{
		{id: "p", deps: []string{"q"}, priority: 1},
		{id: "q", priority: 99},
	}, opts())
	require.NoError(t, err)
	assert.Equal(t, []string{"q", "p"}, ids(got))
}

func TestSort_PriorityTieBreak(t *testing.T) {
	got, err := Sort([]node{
		{id: "c", priority: 30},
		{id: "a", priority: 10},
		{id: "b", priority: 20},
	}, opts())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestSort_DeclarationOrderIsStable(t *testing.T) {
	got, err := Sort([]node{
		{id: "first", priority: 10},
		{id: "second", priority: 10},
		{id: "third", priority: 10},
	}, opts())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids(got))
}

func TestSort_TransitiveChain(t *testing.T) {
	// The heuristic pairwise sort this resolver replaces could misorder
	// exactly this shape: a transitive chain declared in reverse.
	got, err := Sort([]node{
		{id: "app", deps: []string{"api"}},
		{id: "api", deps: []string{"db"}},
		{id: "db"},
	}, opts())
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api", "app"}, ids(got))
}

func TestSort_CycleReportsAllParticipants(t *testing.T) {
	_, err := Sort([]node{
		{id: "a", deps: []string{"b"}},
		{id: "b", deps: []string{"c"}},
		{id: "c", deps: []string{"a"}},
	}, opts())
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrCycle)

	var cerr *CycleError
	require.True(t, errors.As(err, &cerr))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cerr.Participants)
}

func TestSort_SelfCycle(t *testing.T) {
	_, err := Sort([]node{{id: "a", deps: []string{"a"}}}, opts())
	assert.ErrorIs(t, err, plugin.ErrCycle)
}

func TestSort_UnknownDependency(t *testing.T) {
	_, err := Sort([]node{{id: "a", deps: []string{"ghost"}}}, opts())
	assert.ErrorIs(t, err, plugin.ErrDependency)
}

func TestSort_DuplicateNode(t *testing.T) {
	_, err := Sort([]node{{id: "a"}, {id: "a"}}, opts())
	assert.Error(t, err)
}

func TestSort_Empty(t *testing.T) {
	got, err := Sort(nil, opts())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSort_DiamondIsDeterministic(t *testing.T) {
	nodes := []node{
		{id: "top", deps: []string{"left", "right"}},
		{id: "left", deps: []string{"base"}, priority: 20},
		{id: "right", deps: []string{"base"}, priority: 10},
		{id: "base"},
	}
	first, err := Sort(nodes, opts())
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "right", "left", "top"}, ids(first))

	for i := 0; i < 10; i++ {
		again, err := Sort(nodes, opts())
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
}
