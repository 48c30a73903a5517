package plugins

import (
	"fmt"
	"sort"
	"strings"
)

// GraphBuilder builds the dependency graph over a set of interface
// classes: an edge runs from a producer to every interface consuming one
// of its outputs. The graph drives sequence suggestion and catalog
// visualization.
type GraphBuilder struct {
	// classes maps class names to their prototypes
	classes map[string]Interface

	// adjacencyList maps class names to their dependents
	adjacencyList map[string][]string

	// reverseAdjacencyList maps class names to their dependencies
	reverseAdjacencyList map[string][]string

	// edgeVariables records which variables induced each edge
	edgeVariables map[[2]string][]string

	// inDegree tracks the number of incoming edges for each node
	inDegree map[string]int

	// levels maps execution level to class names at that level
	levels [][]string
}

// InterfaceGraph is the computed dependency graph.
type InterfaceGraph struct {
	Nodes map[string]*GraphNode
	Edges []GraphEdge
	Roots []string
	Depth int
}

// GraphNode is one interface class in the graph.
type GraphNode struct {
	ClassName    string
	Level        int
	Dependencies []string
	Dependents   []string
}

// GraphEdge records that From produces variables consumed by To.
type GraphEdge struct {
	From      string
	To        string
	Variables []string
}

// NewGraphBuilder creates an empty graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		classes:              make(map[string]Interface),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		edgeVariables:        make(map[[2]string][]string),
		inDegree:             make(map[string]int),
	}
}

// BuildGraph constructs the dependency graph for the named classes of a
// registry, detects cycles and computes topological levels.
func (b *GraphBuilder) BuildGraph(registry *Registry, classNames []string) (*InterfaceGraph, error) {
	if len(classNames) == 0 {
		return &InterfaceGraph{
			Nodes: make(map[string]*GraphNode),
			Edges: make([]GraphEdge, 0),
			Roots: make([]string, 0),
		}, nil
	}

	if err := b.initialize(registry, classNames); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildInterfaceGraph(), nil
}

// initialize indexes the prototypes and derives producer-to-consumer
// edges from shared variables.
func (b *GraphBuilder) initialize(registry *Registry, classNames []string) error {
	producers := make(map[string][]string)

	for _, className := range classNames {
		if _, exists := b.classes[className]; exists {
			return fmt.Errorf("duplicate interface class: %s", className)
		}

		prototype, err := registry.Prototype(className)
		if err != nil {
			return err
		}

		b.classes[className] = prototype
		b.adjacencyList[className] = make([]string, 0)
		b.reverseAdjacencyList[className] = make([]string, 0)
		b.inDegree[className] = 0

		for _, id := range prototype.DeclareOutputs() {
			producers[id] = append(producers[id], className)
		}
	}

	for _, className := range classNames {
		inputs, _ := InputIDs(b.classes[className])
		for _, id := range inputs {
			for _, producer := range producers[id] {
				if producer == className {
					continue
				}
				key := [2]string{producer, className}
				if len(b.edgeVariables[key]) == 0 {
					b.adjacencyList[producer] = append(b.adjacencyList[producer], className)
					b.reverseAdjacencyList[className] = append(b.reverseAdjacencyList[className], producer)
					b.inDegree[className]++
				}
				b.edgeVariables[key] = append(b.edgeVariables[key], id)
			}
		}
	}

	return nil
}

// detectCycles uses depth-first search to detect circular dependencies.
func (b *GraphBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	names := make([]string, 0, len(b.classes))
	for name := range b.classes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if cycle := b.detectCyclesUtil(name, visited, recStack, path); cycle != nil {
				return fmt.Errorf("circular interface dependency detected: %s",
					strings.Join(cycle, " -> "))
			}
		}
	}

	return nil
}

func (b *GraphBuilder) detectCyclesUtil(
	node string,
	visited map[string]bool,
	recStack map[string]bool,
	path []string,
) []string {
	visited[node] = true
	recStack[node] = true
	path = append(path, node)

	for _, dependent := range b.adjacencyList[node] {
		if !visited[dependent] {
			if cycle := b.detectCyclesUtil(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			cycleStart := -1
			for i, id := range path {
				if id == dependent {
					cycleStart = i
					break
				}
			}
			if cycleStart >= 0 {
				return append(path[cycleStart:], dependent)
			}
		}
	}

	recStack[node] = false
	return nil
}

// computeLevels assigns topological levels with Kahn's algorithm.
// Interfaces at the same level have no data dependency between them.
func (b *GraphBuilder) computeLevels() error {
	inDegreeCopy := make(map[string]int)
	for id, degree := range b.inDegree {
		inDegreeCopy[id] = degree
	}

	currentLevel := make([]string, 0)
	for id, degree := range inDegreeCopy {
		if degree == 0 {
			currentLevel = append(currentLevel, id)
		}
	}

	if len(currentLevel) == 0 && len(b.classes) > 0 {
		return fmt.Errorf("no root interfaces found: every interface has dependencies")
	}

	processedCount := 0
	for len(currentLevel) > 0 {
		sort.Strings(currentLevel)
		b.levels = append(b.levels, currentLevel)
		processedCount += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, node := range currentLevel {
			for _, dependent := range b.adjacencyList[node] {
				inDegreeCopy[dependent]--
				if inDegreeCopy[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}

		currentLevel = nextLevel
	}

	if processedCount != len(b.classes) {
		return fmt.Errorf("failed to process all interfaces: possible cycle")
	}

	return nil
}

func (b *GraphBuilder) buildInterfaceGraph() *InterfaceGraph {
	graph := &InterfaceGraph{
		Nodes: make(map[string]*GraphNode),
		Edges: make([]GraphEdge, 0, len(b.edgeVariables)),
		Roots: make([]string, 0),
		Depth: len(b.levels),
	}

	for level, names := range b.levels {
		for _, name := range names {
			graph.Nodes[name] = &GraphNode{
				ClassName:    name,
				Level:        level,
				Dependencies: b.reverseAdjacencyList[name],
				Dependents:   b.adjacencyList[name],
			}
			if level == 0 {
				graph.Roots = append(graph.Roots, name)
			}
		}
	}

	keys := make([][2]string, 0, len(b.edgeVariables))
	for key := range b.edgeVariables {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	for _, key := range keys {
		graph.Edges = append(graph.Edges, GraphEdge{
			From:      key[0],
			To:        key[1],
			Variables: b.edgeVariables[key],
		})
	}

	return graph
}

// Levels returns the computed topological levels.
func (b *GraphBuilder) Levels() [][]string {
	return b.levels
}

// TopologicalOrder flattens the levels into one execution order, level by
// level with classes within a level sorted by name.
func (g *InterfaceGraph) TopologicalOrder() []string {
	order := make([]string, 0, len(g.Nodes))

	byLevel := make(map[int][]string)
	for name, node := range g.Nodes {
		byLevel[node.Level] = append(byLevel[node.Level], name)
	}

	for level := 0; level < g.Depth; level++ {
		names := byLevel[level]
		sort.Strings(names)
		order = append(order, names...)
	}

	return order
}

// ToDOT renders the graph in Graphviz DOT format.
func (b *GraphBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph InterfaceGraph {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, names := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, name := range names {
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\\n%s\"];\n",
				name, name, b.classes[name].Name()))
		}

		sb.WriteString("  }\n\n")
	}

	keys := make([][2]string, 0, len(b.edgeVariables))
	for key := range b.edgeVariables {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	for _, key := range keys {
		sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"%s\"];\n",
			key[0], key[1], strings.Join(b.edgeVariables[key], "\\n")))
	}

	sb.WriteString("}\n")
	return sb.String()
}
