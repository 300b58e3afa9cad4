package graph

import "fmt"

// Graph is an ordered collection of nodes. Node order follows insertion
// order, which for exported programs is topological.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]*Node)}
}

// Nodes returns the graph's nodes in insertion order. The returned slice
// is owned by the graph and must not be modified.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Node looks up a node by name.
func (g *Graph) Node(name string) *Node {
	return g.byName[name]
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Add inserts a node and wires it as a user of every distinct node its
// arguments reference. It returns an error on duplicate names or dangling
// references to nodes not yet in the graph.
func (g *Graph) Add(n *Node) error {
	if n.Name == "" {
		return fmt.Errorf("node has no name")
	}
	if _, exists := g.byName[n.Name]; exists {
		return fmt.Errorf("duplicate node name %q", n.Name)
	}
	for _, in := range n.InputNodes() {
		if g.byName[in.Name] != in {
			return fmt.Errorf("node %q references %q which is not in the graph", n.Name, in.Name)
		}
	}
	for _, in := range n.InputNodes() {
		in.Users = append(in.Users, n)
	}
	g.byName[n.Name] = n
	g.nodes = append(g.nodes, n)
	return nil
}

// Program is the graph container plus a side table of stored constant
// parameters. It is constructed and owned upstream of the resolvers, which
// only read it.
type Program struct {
	graph  *Graph
	params map[string]bool
}

// NewProgram creates a program around an existing graph.
func NewProgram(g *Graph) *Program {
	if g == nil {
		g = NewGraph()
	}
	return &Program{graph: g, params: make(map[string]bool)}
}

// Graph returns the underlying graph.
func (p *Program) Graph() *Graph {
	return p.graph
}

// BindParam registers a node name as backed by an immutable stored
// parameter.
func (p *Program) BindParam(name string) {
	p.params[name] = true
}

// IsParam reports whether the node is backed by an immutable stored
// parameter. Computed values are never parameters.
func (p *Program) IsParam(n *Node) bool {
	if n == nil || n.Kind != KindParam {
		return false
	}
	return p.params[n.Name]
}
