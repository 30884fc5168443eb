// Package graph builds and validates the task dependency graph for a
// feature: cycle detection, deterministic topological order, and the
// parallel-eligibility waves reported during analysis.
package graph

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sdwkit/sdw/internal/types"
)

// Graph is the directed dependency graph over one feature's tasks.
// An edge (from, to) means to cannot start before from completes.
type Graph struct {
	// order lists task ids in document order.
	order []string

	// successors maps a task to the tasks that depend on it.
	successors map[string][]string

	// predecessors maps a task to its declared dependencies, resolved ones
	// only.
	predecessors map[string][]string

	// Unresolved lists declared dependencies whose target task does not
	// exist, as (taskID, missing dependency id) pairs in document order.
	Unresolved []Edge
}

// Edge is a single dependency reference.
type Edge struct {
	From string // the dependency (must complete first)
	To   string // the dependent task
}

// Build constructs the graph from parsed tasks. Dependency references to
// unknown task ids are recorded in Unresolved rather than dropped: the
// analyzer reports them as dangling.
func Build(tasks []types.Task) *Graph {
	g := &Graph{
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
	}

	known := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if !known[task.ID] {
			known[task.ID] = true
			g.order = append(g.order, task.ID)
		}
	}

	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if !known[dep] {
				g.Unresolved = append(g.Unresolved, Edge{From: dep, To: task.ID})
				continue
			}
			g.predecessors[task.ID] = append(g.predecessors[task.ID], dep)
			g.successors[dep] = append(g.successors[dep], task.ID)
		}
	}

	return g
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	return len(g.order)
}

// dfs colors for cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS path
	black              // fully explored
)

// FindCycle runs a three-color DFS over the graph and returns the first
// cycle found as an ordered task id path, or nil if the graph is acyclic.
// A back-edge to a gray node is a cycle; the returned path starts at the
// revisited node. Traversal order is document order so the result is
// deterministic.
func (g *Graph) FindCycle() []string {
	colors := make(map[string]color, len(g.order))
	var path []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		colors[node] = gray
		path = append(path, node)

		for _, next := range g.successors[node] {
			switch colors[next] {
			case gray:
				// Back-edge: extract the cycle from the current path.
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				cycle = append([]string{}, path[start:]...)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}

		colors[node] = black
		path = path[:len(path)-1]
		return false
	}

	for _, node := range g.order {
		if colors[node] == white {
			path = path[:0]
			if visit(node) {
				return cycle
			}
		}
	}

	return nil
}

// TopologicalOrder computes a deterministic topological order via Kahn's
// algorithm, breaking ties by ascending task id (numeric-aware, so task 2
// precedes task 10 and 3.2 precedes 3.10). Returns nil if the graph has a
// cycle.
func (g *Graph) TopologicalOrder() []string {
	indegree := make(map[string]int, len(g.order))
	for _, node := range g.order {
		indegree[node] = len(g.predecessors[node])
	}

	var ready []string
	for _, node := range g.order {
		if indegree[node] == 0 {
			ready = append(ready, node)
		}
	}
	sortTaskIDs(ready)

	var out []string
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		out = append(out, node)

		var unlocked []string
		for _, next := range g.successors[node] {
			indegree[next]--
			if indegree[next] == 0 {
				unlocked = append(unlocked, next)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sortTaskIDs(ready)
		}
	}

	if len(out) != len(g.order) {
		return nil
	}
	return out
}

// Waves partitions the tasks into execution waves: wave 0 holds every task
// with no predecessors, wave n+1 every task whose predecessors all sit in
// earlier waves. Tasks in the same wave are mutually parallel-eligible.
// Returns nil if the graph has a cycle.
func (g *Graph) Waves() [][]string {
	depth := make(map[string]int, len(g.order))
	order := g.TopologicalOrder()
	if order == nil {
		return nil
	}

	maxDepth := 0
	for _, node := range order {
		d := 0
		for _, dep := range g.predecessors[node] {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[node] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]string, maxDepth+1)
	for _, node := range order {
		waves[depth[node]] = append(waves[depth[node]], node)
	}
	for _, wave := range waves {
		sortTaskIDs(wave)
	}
	return waves
}

// ParallelEligible reports whether two tasks may run concurrently: neither
// may be a transitive predecessor of the other.
func (g *Graph) ParallelEligible(a, b string) bool {
	if a == b {
		return false
	}
	return !g.reaches(a, b) && !g.reaches(b, a)
}

// reaches reports whether there is a path from one task to another.
func (g *Graph) reaches(from, to string) bool {
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == to {
			return true
		}
		if seen[node] {
			continue
		}
		seen[node] = true
		stack = append(stack, g.successors[node]...)
	}
	return false
}

// sortTaskIDs orders ids ascending with numeric-aware comparison of the
// dotted segments: "2" < "10", "3.2" < "3.10".
func sortTaskIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return lessTaskID(ids[i], ids[j])
	})
}

func lessTaskID(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			if as[i] != bs[i] {
				return as[i] < bs[i]
			}
			continue
		}
		if an != bn {
			return an < bn
		}
	}
	return len(as) < len(bs)
}
