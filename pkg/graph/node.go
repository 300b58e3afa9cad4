// Package graph defines the dataflow-graph data model consumed by the
// partition resolvers. It provides nodes, typed operation arguments, and
// the program container that owns the graph and its parameter table.
package graph

// NodeKind discriminates what a node represents in the dataflow graph.
type NodeKind string

const (
	KindCall   NodeKind = "call"   // Computed operation
	KindParam  NodeKind = "param"  // Load of a stored constant parameter
	KindInput  NodeKind = "input"  // Graph boundary input
	KindOutput NodeKind = "output" // Graph boundary output
)

// ArgKind discriminates the payload of an Arg.
type ArgKind string

const (
	ArgNone    ArgKind = "none"     // Absent / null argument
	ArgNode    ArgKind = "node"     // Reference to another node
	ArgInt     ArgKind = "int"      // Literal integer
	ArgIntList ArgKind = "int_list" // Literal list of integers
	ArgFloat   ArgKind = "float"    // Literal float
	ArgBool    ArgKind = "bool"     // Literal boolean
)

// Arg is one positional argument of an operation node. It is a tagged
// union: exactly one payload field is meaningful, selected by Kind.
type Arg struct {
	Kind  ArgKind
	Node  *Node
	Int   int
	Ints  []int
	Float float64
	Bool  bool
}

// NodeArg builds a node-reference argument.
func NodeArg(n *Node) Arg { return Arg{Kind: ArgNode, Node: n} }

// IntArg builds a literal integer argument.
func IntArg(v int) Arg { return Arg{Kind: ArgInt, Int: v} }

// IntListArg builds a literal integer-list argument.
func IntListArg(v ...int) Arg { return Arg{Kind: ArgIntList, Ints: v} }

// FloatArg builds a literal float argument.
func FloatArg(v float64) Arg { return Arg{Kind: ArgFloat, Float: v} }

// BoolArg builds a literal boolean argument.
func BoolArg(v bool) Arg { return Arg{Kind: ArgBool, Bool: v} }

// NoneArg builds an absent argument.
func NoneArg() Arg { return Arg{Kind: ArgNone} }

// IsNode reports whether the argument references another node.
func (a Arg) IsNode() bool { return a.Kind == ArgNode && a.Node != nil }

// Node is one operation or value in the dataflow graph. The graph container
// owns all nodes; resolvers only read them, except for the fully-reversible
// transient argument/user swap performed during addmm adaptation.
type Node struct {
	Name   string   // Unique name within the graph
	Kind   NodeKind // What the node represents
	Target string   // Operator target identifier (empty for non-call nodes)
	Args   []Arg    // Ordered argument list
	Users  []*Node  // Consumers of this node's value, in insertion order
	Shape  []int    // Static value shape, when known

	// SourceFn and SourcePartition carry exporter metadata identifying the
	// higher-level call this node was decomposed from, if any.
	SourceFn        string
	SourcePartition string

	meta map[string]any
}

// Arg returns the i-th argument and whether it exists.
func (n *Node) Arg(i int) (Arg, bool) {
	if i < 0 || i >= len(n.Args) {
		return Arg{}, false
	}
	return n.Args[i], true
}

// Input returns the node referenced by the i-th argument, or nil if the
// argument is absent or not a node reference.
func (n *Node) Input(i int) *Node {
	a, ok := n.Arg(i)
	if !ok || !a.IsNode() {
		return nil
	}
	return a.Node
}

// IntsAt returns the integer-list payload of the i-th argument, or nil.
func (n *Node) IntsAt(i int) []int {
	a, ok := n.Arg(i)
	if !ok || a.Kind != ArgIntList {
		return nil
	}
	return a.Ints
}

// IntAt returns the integer payload of the i-th argument, or 0.
func (n *Node) IntAt(i int) int {
	a, ok := n.Arg(i)
	if !ok || a.Kind != ArgInt {
		return 0
	}
	return a.Int
}

// BoolAt returns the boolean payload of the i-th argument, or false.
func (n *Node) BoolAt(i int) bool {
	a, ok := n.Arg(i)
	if !ok || a.Kind != ArgBool {
		return false
	}
	return a.Bool
}

// InputNodes returns the distinct nodes referenced by this node's arguments,
// in first-occurrence order.
func (n *Node) InputNodes() []*Node {
	seen := make(map[*Node]bool, len(n.Args))
	var inputs []*Node
	for _, a := range n.Args {
		if !a.IsNode() || seen[a.Node] {
			continue
		}
		seen[a.Node] = true
		inputs = append(inputs, a.Node)
	}
	return inputs
}

// SetMeta attaches a metadata value to the node under the given key.
func (n *Node) SetMeta(key string, value any) {
	if n.meta == nil {
		n.meta = make(map[string]any)
	}
	n.meta[key] = value
}

// Meta returns the metadata value stored under the given key.
func (n *Node) Meta(key string) (any, bool) {
	v, ok := n.meta[key]
	return v, ok
}

// MetaBool returns the boolean metadata value under the given key, or false.
func (n *Node) MetaBool(key string) bool {
	v, ok := n.meta[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
