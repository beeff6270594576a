package schema

import (
	"fmt"
	"sort"
	"strings"
)

// RelationGraph represents the dependency graph between entities. An entity
// depends on the targets of its belongs-to relations and, for pivots, on
// both joined entities.
type RelationGraph struct {
	nodes map[string]*Entity
	edges map[string][]string // entity -> dependencies
}

// NewRelationGraph creates a new relation graph
func NewRelationGraph(entities map[string]*Entity) *RelationGraph {
	graph := &RelationGraph{
		nodes: entities,
		edges: make(map[string][]string),
	}

	for _, name := range sortedKeys(entities) {
		e := entities[name]
		for _, fieldName := range e.RelationNames() {
			rel := e.Fields[fieldName].Relation
			switch rel.Type {
			case RelationBelongsTo, RelationHasManyBy:
				graph.addEdge(name, rel.Related)
			case RelationBelongsToMany, RelationMorphToMany, RelationMorphedByMany:
				graph.addEdge(rel.Pivot, name)
				graph.addEdge(rel.Pivot, rel.Related)
			}
		}
	}

	return graph
}

func (g *RelationGraph) addEdge(from, to string) {
	if from == to {
		return
	}
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Validate checks that every relation target, pivot and through entity is
// registered
func (g *RelationGraph) Validate() error {
	for _, name := range sortedKeys(g.nodes) {
		e := g.nodes[name]
		for _, fieldName := range e.RelationNames() {
			rel := e.Fields[fieldName].Relation
			for _, target := range rel.Targets() {
				if _, exists := g.nodes[target]; !exists {
					return fmt.Errorf("entity %s references unknown entity %s in relation %s: %w",
						name, target, fieldName, ErrInvalidRelation)
				}
			}
		}
	}
	return nil
}

// DetectCycles detects circular dependencies in the graph
func (g *RelationGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				if dfs(neighbor, path) {
					return true
				}
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
				return true
			}
		}

		recursionStack[node] = false
		return false
	}

	for _, node := range sortedKeys(g.nodes) {
		if !visited[node] {
			dfs(node, []string{})
		}
	}

	return cycles
}

// TopologicalSort returns entities in dependency order (dependencies first).
// Ties are broken by name.
func (g *RelationGraph) TopologicalSort() ([]string, error) {
	outDegree := make(map[string]int)
	for node := range g.nodes {
		outDegree[node] = len(g.edges[node])
	}

	reverseEdges := make(map[string][]string)
	for source, targets := range g.edges {
		for _, target := range targets {
			reverseEdges[target] = append(reverseEdges[target], source)
		}
	}

	var queue []string
	for _, node := range sortedKeys(g.nodes) {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		dependents := reverseEdges[node]
		sort.Strings(dependents)
		for _, dependent := range dependents {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycles := g.DetectCycles(); len(cycles) > 0 {
			return nil, fmt.Errorf("circular dependency detected:\n%s", formatCycles(cycles))
		}
		return nil, fmt.Errorf("circular dependency detected")
	}

	return result, nil
}

// Dependencies returns the direct dependencies of an entity
func (g *RelationGraph) Dependencies(entity string) []string {
	return append([]string(nil), g.edges[entity]...)
}

// formatCycles formats cycle information for error messages
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
