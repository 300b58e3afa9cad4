package gemm

import "github.com/nnfission/go-gemm-partition/pkg/graph"

// biasDeps resolves the optional bias operand. A present bias must be a
// stored parameter; an absent bias is simply not partitioned.
func (r *Resolver) biasDeps(node *graph.Node, prog *graph.Program, precision Precision) (bool, []*graph.Node) {
	if precision == FP32 && r.forceNonStaticWeights {
		// Weights are kept out of the partition, so the bias stays out too.
		return true, nil
	}
	if r.profile.BiasIdx < 0 {
		return true, nil
	}
	if len(node.InputNodes()) <= 2 {
		return true, nil
	}
	bias := node.Input(r.profile.BiasIdx)
	if bias == nil {
		return true, nil
	}
	if !prog.IsParam(bias) {
		r.whyf(node, "expected bias to be a static param")
		return false, nil
	}
	return true, []*graph.Node{bias}
}
