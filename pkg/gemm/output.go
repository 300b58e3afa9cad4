package gemm

import (
	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/quant"
)

// outputDeps resolves what must follow the op. Every static-quantized GEMM
// must feed a quantize node, optionally through one fused activation. An
// fp32 GEMM opportunistically pulls in a single fused-activation user.
// Dynamic quantization has no output requirements.
func (r *Resolver) outputDeps(node *graph.Node, prog *graph.Program, precision Precision) (bool, []*graph.Node) {
	var deps []*graph.Node

	switch precision {
	case StaticQuant:
		if len(node.Users) != 1 {
			r.whyf(node, "expected quantized node to have a single user")
			return false, nil
		}
		output := node.Users[0]
		if r.isFusedAct(output) {
			deps = append(deps, output)
			if len(output.Users) == 1 {
				output = output.Users[0]
			}
		}
		if !quant.IsQuant(output) {
			// Expected op -> fused activation (optional) -> quantize.
			r.whyf(node, "expected output node to have a quantize node")
			return false, nil
		}
		deps = append(deps, output)

	case FP32:
		if len(node.Users) == 1 && r.isFusedAct(node.Users[0]) {
			deps = append(deps, node.Users[0])
		}
	}

	return true, deps
}

func (r *Resolver) isFusedAct(n *graph.Node) bool {
	return n != nil && n.Kind == graph.KindCall && r.profile.FusedActs[n.Target]
}
