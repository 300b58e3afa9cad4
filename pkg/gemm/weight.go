package gemm

import (
	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/quant"
)

// weightDeps resolves the weight operand. An fp32 weight must be a stored
// parameter; a quantized weight must be a dequantize wrapper over a stored
// parameter, with the wrapper's scale/zero-point nodes pulled in for the
// channel-wise encodings.
func (r *Resolver) weightDeps(node *graph.Node, prog *graph.Program, precision Precision) (bool, []*graph.Node) {
	switch r.family {
	case FamilyLinear:
		if precision == FP32 && r.forceNonStaticWeights {
			// Weights stay outside the partition so the backend treats
			// them as runtime inputs.
			return true, nil
		}
		// A linear's weights are static, so a quantized op overwritten to
		// fp32 must also keep its weight out of the partition.
		overwritten, newPrecision := r.overwritePrecision(node)
		if overwritten && newPrecision == FP32 {
			return true, nil
		}
	case FamilyAddmm, FamilyMM:
		if precision == FP32 && r.forceNonStaticWeights {
			return true, nil
		}
	}
	return r.genericWeightDeps(node, prog, precision)
}

func (r *Resolver) genericWeightDeps(node *graph.Node, prog *graph.Program, precision Precision) (bool, []*graph.Node) {
	if precision == FP32 {
		weight := node.Input(r.profile.WeightIdx)
		if !prog.IsParam(weight) {
			r.whyf(node, "expected weight to be a static param")
			return false, nil
		}
		return true, []*graph.Node{weight}
	}

	dequant := node.Input(r.profile.WeightIdx)
	if !quant.IsDequant(dequant) {
		r.whyf(node, "expected weight to have a dequantize node")
		return false, nil
	}
	deps := []*graph.Node{dequant}

	weight := dequant.Input(0)
	if !prog.IsParam(weight) {
		r.whyf(node, "expected weight to be a static param")
		return false, nil
	}
	deps = append(deps, weight)

	if quant.IsPerTensor(dequant) && precision == DynamicQuant {
		r.whyf(node, "per-tensor quantized weights are not supported with dynamic quantization of activations")
		return false, nil
	}

	if quant.IsPerChannel(dequant) || quant.IsPerChannelGroup(dequant) {
		inputs := dequant.InputNodes()
		if len(inputs) < 2 {
			r.whyf(node, "expected channel quantized weight to have scale and zero point nodes")
			return false, nil
		}
		// Scale and zero point sit right after the weight input.
		end := 3
		if end > len(inputs) {
			end = len(inputs)
		}
		deps = append(deps, inputs[1:end]...)
	}

	return true, deps
}
