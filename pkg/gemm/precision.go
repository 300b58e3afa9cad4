package gemm

import (
	"github.com/nnfission/go-gemm-partition/internal/log"
	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/quant"
)

// Precision is the numeric precision regime of an operation, classified
// from the local graph shape around it.
type Precision int

const (
	FP32 Precision = iota
	StaticQuant
	DynamicQuant
)

func (p Precision) String() string {
	switch p {
	case FP32:
		return "fp32"
	case StaticQuant:
		return "static_quant"
	case DynamicQuant:
		return "dynamic_quant"
	default:
		return "unknown"
	}
}

// ParsePrecision maps a config name to a Precision.
func ParsePrecision(name string) (Precision, bool) {
	switch name {
	case "fp32":
		return FP32, true
	case "static_quant":
		return StaticQuant, true
	case "dynamic_quant":
		return DynamicQuant, true
	}
	return 0, false
}

// detectPrecision classifies the node by looking one hop at its weight and
// activation operands. It never walks further into the graph.
func (r *Resolver) detectPrecision(node *graph.Node) Precision {
	weight := node.Input(r.profile.WeightIdx)
	if !quant.IsDequant(weight) {
		return FP32
	}
	activation := node.Input(r.profile.ActIdx)
	if quant.IsDynamicDequant(activation) {
		return DynamicQuant
	}
	return StaticQuant
}

// overwritePrecision decides whether a detected quantized precision must be
// coerced to fp32. That happens only when the detected precision is not
// enabled and fp32 is the sole enabled precision: the backend can still
// partition the op as an fp32 GEMM inside a quantized graph. The returned
// bool reports whether an overwrite happened.
func (r *Resolver) overwritePrecision(node *graph.Node) (bool, Precision) {
	precision := r.detectPrecision(node)
	if !r.enabled[precision] {
		if len(r.enabled) == 1 && r.enabled[FP32] &&
			(precision == StaticQuant || precision == DynamicQuant) {
			log.Default().Debug("overwriting precision, partitioning as fp32", "node", node.Name)
			return true, FP32
		}
	}
	return false, precision
}
