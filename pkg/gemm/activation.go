package gemm

import (
	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/quant"
)

// activationDeps resolves the activation operand. Quantized variants must
// read the activation through a dequantize wrapper. Dynamic quantization
// additionally requires the full calibration sub-pattern:
//
//	activation -> choose_qparams -> getitem x2 -> quantize -> dequantize -> op
//
// where quantize's scale and zero point are the two tuple accessors.
func (r *Resolver) activationDeps(node *graph.Node, prog *graph.Program, precision Precision) (bool, []*graph.Node) {
	if precision == FP32 {
		return true, nil
	}

	dqInput := node.Input(r.profile.ActIdx)
	if !quant.IsDequant(dqInput) {
		r.whyf(node, "expected activation input to be a dequantize node")
		return false, nil
	}
	deps := []*graph.Node{dqInput}
	if precision == StaticQuant {
		return true, deps
	}

	qInput := dqInput.Input(0)
	if !quant.IsQuant(qInput) {
		r.whyf(node, "expected dequantize input to be a quantize node")
		return false, nil
	}
	deps = append(deps, qInput)

	qArgs := quant.CanonicalArgs(qInput)
	if len(qArgs) < 3 || !qArgs[1].IsNode() || !qArgs[2].IsNode() {
		r.whyf(node, "expected to find getitem nodes from choose_qparams")
		return false, nil
	}
	getitem1 := qArgs[1].Node
	getitem2 := qArgs[2].Node
	if !quant.IsGetItem(getitem1) || !quant.IsGetItem(getitem2) {
		r.whyf(node, "expected getitem nodes from choose_qparams")
		return false, nil
	}
	deps = append(deps, getitem1, getitem2)

	chooseQParams := getitem1.Input(0)
	if !quant.IsChooseQParams(chooseQParams) {
		r.whyf(node, "expected to find choose_qparams node")
		return false, nil
	}
	deps = append(deps, chooseQParams)
	return true, deps
}
