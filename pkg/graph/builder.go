package graph

// Builder assembles a Program node by node. It exists so tests and loaders
// can declare graphs without hand-wiring user lists. The first error is
// remembered and surfaced by Finish.
type Builder struct {
	program *Program
	err     error
}

// NewBuilder creates a builder around an empty program.
func NewBuilder() *Builder {
	return &Builder{program: NewProgram(NewGraph())}
}

// Param adds a stored-parameter node and registers it in the program's
// parameter table.
func (b *Builder) Param(name string, shape ...int) *Node {
	n := &Node{Name: name, Kind: KindParam, Shape: shape}
	b.add(n)
	b.program.BindParam(name)
	return n
}

// Input adds a graph boundary input node.
func (b *Builder) Input(name string, shape ...int) *Node {
	n := &Node{Name: name, Kind: KindInput, Shape: shape}
	b.add(n)
	return n
}

// Call adds a computed operation node with the given target and arguments.
func (b *Builder) Call(name, target string, args ...Arg) *Node {
	n := &Node{Name: name, Kind: KindCall, Target: target, Args: args}
	b.add(n)
	return n
}

// Output adds a graph boundary output node consuming the given value.
func (b *Builder) Output(name string, value *Node) *Node {
	n := &Node{Name: name, Kind: KindOutput, Args: []Arg{NodeArg(value)}}
	b.add(n)
	return n
}

func (b *Builder) add(n *Node) {
	if b.err != nil {
		return
	}
	b.err = b.program.Graph().Add(n)
}

// Finish returns the assembled program, or the first error encountered.
func (b *Builder) Finish() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.program, nil
}
