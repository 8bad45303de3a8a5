package schema

import (
	"fmt"
	"strings"
)

// RelationshipGraph represents the belongs_to dependency graph between models.
// An edge a -> b means rows of a reference rows of b, so b must exist first.
type RelationshipGraph struct {
	nodes []string
	edges map[string][]string
}

// NewRelationshipGraph builds the dependency graph for the given models,
// keeping their order for deterministic output. Self references are ignored.
func NewRelationshipGraph(models []*Model) *RelationshipGraph {
	graph := &RelationshipGraph{
		nodes: make([]string, 0, len(models)),
		edges: make(map[string][]string),
	}

	for _, m := range models {
		graph.nodes = append(graph.nodes, m.Key())
	}

	for _, m := range models {
		for _, rel := range m.BelongsTo() {
			target := rel.TargetModel()
			if target == nil || target == m {
				continue
			}
			graph.edges[m.Key()] = append(graph.edges[m.Key()], target.Key())
		}
	}

	return graph
}

// DetectCycles finds all circular dependencies in the graph
func (g *RelationshipGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		recursionStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns model keys with every model after the models it
// references. Ties keep registration order.
func (g *RelationshipGraph) TopologicalSort() ([]string, error) {
	outDegree := make(map[string]int, len(g.nodes))
	reverseEdges := make(map[string][]string)
	for _, node := range g.nodes {
		outDegree[node] = len(g.edges[node])
		for _, target := range g.edges[node] {
			reverseEdges[target] = append(reverseEdges[target], node)
		}
	}

	queue := []string{}
	for _, node := range g.nodes {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycles := g.DetectCycles(); len(cycles) > 0 {
			return nil, &CycleError{Cycles: cycles}
		}
		return nil, &CycleError{}
	}

	return result, nil
}

// GetDependencies returns the models a model references
func (g *RelationshipGraph) GetDependencies(model string) []string {
	return g.edges[model]
}

// GetDependents returns the models referencing a model
func (g *RelationshipGraph) GetDependents(model string) []string {
	var dependents []string
	for _, source := range g.nodes {
		for _, target := range g.edges[source] {
			if target == model {
				dependents = append(dependents, source)
				break
			}
		}
	}
	return dependents
}

// CycleError reports circular belongs_to dependencies
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	if len(e.Cycles) == 0 {
		return "circular dependency detected"
	}
	return fmt.Sprintf("circular dependency detected:\n%s", formatCycles(e.Cycles))
}

func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}
