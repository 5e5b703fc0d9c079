// Package graph computes deterministic, cycle-free execution orders from
// declared dependencies. It is used at two levels: plugin ordering within a
// category, and hook ordering within a lifecycle event.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/plugind/internal/plugin"
)

// CycleError reports a circular dependency. It names every participant of
// the cycle, in traversal order. A cycle is a configuration bug: the
// resolution call that found it fails entirely.
type CycleError struct {
	Participants []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Participants, " -> "))
}

// Unwrap makes the error match plugin.ErrCycle under errors.Is.
func (e *CycleError) Unwrap() error { return plugin.ErrCycle }

// Options adapts an arbitrary node type to the resolver.
type Options[N any] struct {
	// ID returns the node's unique identifier.
	ID func(N) string

	// DependsOn returns IDs that must be ordered before the node.
	DependsOn func(N) []string

	// Priority breaks ties among nodes with no relative ordering
	// constraint; lower runs earlier.
	Priority func(N) int
}

// DFS marking colors.
const (
	colorWhite = iota // unvisited
	colorGray         // in progress
	colorBlack        // done
)

// Sort returns the nodes ordered so every dependency precedes its
// dependents. Ties are broken by ascending priority, then declaration
// order, so the result is stable across runs.
//
// An edge naming an unknown ID is an error: unmet dependencies must be
// resolved or excluded by the caller before ordering.
func Sort[N any](nodes []N, opt Options[N]) ([]N, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		id := opt.ID(n)
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("duplicate node %q", id)
		}
		index[id] = i
	}

	for _, n := range nodes {
		for _, dep := range opt.DependsOn(n) {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("%w: %q depends on unknown node %q", plugin.ErrDependency, opt.ID(n), dep)
			}
		}
	}

	if err := detectCycle(nodes, opt, index); err != nil {
		return nil, err
	}

	return order(nodes, opt, index), nil
}

// detectCycle runs a three-color depth-first traversal. Encountering a
// gray (in-progress) node means the current path loops back on itself; the
// error carries the full participant set.
func detectCycle[N any](nodes []N, opt Options[N], index map[string]int) error {
	colors := make([]int, len(nodes))
	stack := make([]string, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		colors[i] = colorGray
		stack = append(stack, opt.ID(nodes[i]))

		for _, dep := range opt.DependsOn(nodes[i]) {
			j := index[dep]
			switch colors[j] {
			case colorGray:
				return &CycleError{Participants: cycleFrom(stack, dep)}
			case colorWhite:
				if err := visit(j); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[i] = colorBlack
		return nil
	}

	for i := range nodes {
		if colors[i] == colorWhite {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleFrom slices the traversal stack starting at the repeated node.
func cycleFrom(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			return append([]string(nil), stack[i:]...)
		}
	}
	return append([]string(nil), stack...)
}

// order produces the linear order. The graph is known acyclic here, so
// repeatedly emitting the ready node with the lowest (priority,
// declaration index) pair terminates and yields the documented tie-break.
func order[N any](nodes []N, opt Options[N], index map[string]int) []N {
	remaining := make([]int, 0, len(nodes))
	blockers := make([]int, len(nodes))
	dependents := make(map[int][]int, len(nodes))

	for i, n := range nodes {
		deps := opt.DependsOn(n)
		blockers[i] = len(deps)
		for _, dep := range deps {
			j := index[dep]
			dependents[j] = append(dependents[j], i)
		}
		remaining = append(remaining, i)
	}

	// Stable candidate order: priority ascending, then declaration order.
	sort.SliceStable(remaining, func(a, b int) bool {
		pa, pb := opt.Priority(nodes[remaining[a]]), opt.Priority(nodes[remaining[b]])
		if pa != pb {
			return pa < pb
		}
		return remaining[a] < remaining[b]
	})

	out := make([]N, 0, len(nodes))
	emitted := make([]bool, len(nodes))
	for len(out) < len(nodes) {
		for _, i := range remaining {
			if emitted[i] || blockers[i] > 0 {
				continue
			}
			emitted[i] = true
			out = append(out, nodes[i])
			for _, d := range dependents[i] {
				blockers[d]--
			}
			break
		}
	}
	return out
}
