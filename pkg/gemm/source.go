package gemm

import (
	"github.com/nnfission/go-gemm-partition/pkg/graph"
)

// SourcePartition is a previously discovered cluster of low-level nodes
// known to jointly implement one higher-level call, recovered from the
// exporter metadata carried on each node.
type SourcePartition struct {
	SourceFn string        // Higher-level call the members decompose
	Inputs   []*graph.Node // Boundary inputs feeding the partition
	Nodes    []*graph.Node // Interior members
	Outputs  []*graph.Node // Members consumed outside the partition
}

// FindSourcePartitions groups the graph's nodes by the higher-level call
// they were decomposed from, for the wanted source functions. Parameter
// nodes tagged with partition metadata are members too, since a decomposed
// call owns its weights. Members, inputs, and outputs are in graph order.
func FindSourcePartitions(g *graph.Graph, wanted ...string) []SourcePartition {
	wantedSet := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		wantedSet[w] = true
	}

	type key struct{ fn, id string }
	members := make(map[key][]*graph.Node)
	var order []key
	for _, n := range g.Nodes() {
		if n.SourcePartition == "" || !wantedSet[n.SourceFn] {
			continue
		}
		k := key{n.SourceFn, n.SourcePartition}
		if _, seen := members[k]; !seen {
			order = append(order, k)
		}
		members[k] = append(members[k], n)
	}

	partitions := make([]SourcePartition, 0, len(order))
	for _, k := range order {
		nodes := members[k]
		memberSet := make(map[*graph.Node]bool, len(nodes))
		for _, n := range nodes {
			memberSet[n] = true
		}

		var inputs []*graph.Node
		seenInput := make(map[*graph.Node]bool)
		for _, n := range nodes {
			for _, in := range n.InputNodes() {
				if memberSet[in] || seenInput[in] {
					continue
				}
				seenInput[in] = true
				inputs = append(inputs, in)
			}
		}

		var outputs []*graph.Node
		for _, n := range nodes {
			for _, u := range n.Users {
				if !memberSet[u] {
					outputs = append(outputs, n)
					break
				}
			}
		}

		partitions = append(partitions, SourcePartition{
			SourceFn: k.fn,
			Inputs:   inputs,
			Nodes:    nodes,
			Outputs:  outputs,
		})
	}
	return partitions
}

// sourcePartitionFor returns the linear source partition containing the
// node, or nil. The index over the whole graph is computed once per
// resolver and cached; sync.Once keeps first use single-writer.
func (r *Resolver) sourcePartitionFor(node *graph.Node, prog *graph.Program) *SourcePartition {
	r.srcOnce.Do(func() {
		r.srcPartitions = FindSourcePartitions(prog.Graph(), TargetLinear)
	})
	for i := range r.srcPartitions {
		for _, n := range r.srcPartitions[i].Nodes {
			if n == node {
				return &r.srcPartitions[i]
			}
		}
	}
	return nil
}

// depsFromSourcePartition resolves an addmm/mm node that is the
// decomposition of a linear call. The node's arguments are remapped to the
// partition boundary, simulating the arguments the linear node would have
// had, and the generic resolution runs against that simulated node. The
// node's real arguments and users are restored on every exit path.
func (r *Resolver) depsFromSourcePartition(node *graph.Node, prog *graph.Program, sp *SourcePartition) (bool, []*graph.Node) {
	memberSet := make(map[*graph.Node]bool, len(sp.Nodes))
	for _, n := range sp.Nodes {
		memberSet[n] = true
	}
	inputSet := make(map[*graph.Node]bool, len(sp.Inputs))
	for _, n := range sp.Inputs {
		inputSet[n] = true
	}

	// Walk single-input chains back to the partition boundary. The hop
	// count is bounded by the partition's interior size to keep malformed
	// graphs from looping.
	findBoundary := func(arg graph.Arg) (graph.Arg, bool) {
		if !arg.IsNode() {
			return arg, true
		}
		cur := arg.Node
		for hops := 0; hops <= len(sp.Nodes); hops++ {
			inputs := cur.InputNodes()
			if inputSet[cur] || len(inputs) == 0 {
				return graph.NodeArg(cur), true
			}
			cur = inputs[0]
		}
		return graph.Arg{}, false
	}

	fakeArgs := make([]graph.Arg, len(node.Args))
	for i, arg := range node.Args {
		fake, ok := findBoundary(arg)
		if !ok {
			r.whyf(node, "invalid source partition")
			return false, nil
		}
		fakeArgs[i] = fake
	}

	argNode := func(i int) *graph.Node {
		if i < 0 || i >= len(fakeArgs) || !fakeArgs[i].IsNode() {
			return nil
		}
		return fakeArgs[i].Node
	}

	bias := argNode(r.profile.BiasIdx)
	act := argNode(r.profile.ActIdx)
	weight := argNode(r.profile.WeightIdx)
	if (r.profile.BiasIdx >= 0 && !memberSet[bias]) ||
		!inputSet[act] ||
		(!memberSet[weight] && !inputSet[weight]) ||
		len(sp.Outputs) != 1 {
		r.whyf(node, "invalid source partition")
		return false, nil
	}

	// Simulate the linear call: install the boundary arguments and the
	// partition output's users, resolve, and restore unconditionally.
	origArgs, origUsers := node.Args, node.Users
	node.Args = fakeArgs
	node.Users = sp.Outputs[0].Users
	defer func() {
		node.Args = origArgs
		node.Users = origUsers
	}()

	valid, deps := r.genericDeps(node, prog)

	// With forced non-static weights only nodes outside the reconstructed
	// source pattern may be claimed; otherwise claim everything either
	// source identified.
	if r.forceNonStaticWeights {
		deps = intersectNodes(deps, memberSet)
	} else {
		deps = unionNodes(deps, sp.Nodes)
	}
	return valid, deps
}

func intersectNodes(deps []*graph.Node, keep map[*graph.Node]bool) []*graph.Node {
	var out []*graph.Node
	for _, d := range deps {
		if keep[d] {
			out = append(out, d)
		}
	}
	return out
}

func unionNodes(deps []*graph.Node, extra []*graph.Node) []*graph.Node {
	seen := make(map[*graph.Node]bool, len(deps)+len(extra))
	out := make([]*graph.Node, 0, len(deps)+len(extra))
	for _, d := range deps {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range extra {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
