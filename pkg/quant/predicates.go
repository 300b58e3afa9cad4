// Package quant classifies quantization-wrapper nodes in a dataflow graph.
// It provides the wrapper-kind and granularity predicates the partition
// resolvers consume as boolean oracles, plus argument extraction for the
// affine-decomposed encoding.
package quant

import (
	"strings"

	"github.com/nnfission/go-gemm-partition/pkg/graph"
)

// Operator targets for quantization wrapper nodes. Per-tensor and
// per-channel variants carry scale/zero-point inline; the affine encoding
// carries a block-size list describing the granularity instead.
const (
	TargetQuantizePerTensor         = "quantize_per_tensor"
	TargetDequantizePerTensor       = "dequantize_per_tensor"
	TargetQuantizePerChannel        = "quantize_per_channel"
	TargetDequantizePerChannel      = "dequantize_per_channel"
	TargetQuantizePerChannelGroup   = "quantize_per_channel_group"
	TargetDequantizePerChannelGroup = "dequantize_per_channel_group"
	TargetQuantizeAffine            = "quantize_affine"
	TargetDequantizeAffine          = "dequantize_affine"
	TargetChooseQParams             = "choose_qparams"
	TargetGetItem                   = "getitem"
)

// Argument positions shared by the non-affine quantize/dequantize encodings:
// (input, scale, zero_point, axis, group_size, ...).
const (
	argInput     = 0
	argScale     = 1
	argZeroPoint = 2
	argAxis      = 3
	argGroupSize = 4
)

func isCall(n *graph.Node) bool {
	return n != nil && n.Kind == graph.KindCall
}

// IsQuant reports whether the node is a quantize wrapper of any encoding.
func IsQuant(n *graph.Node) bool {
	return isCall(n) && strings.HasPrefix(n.Target, "quantize")
}

// IsDequant reports whether the node is a dequantize wrapper of any encoding.
func IsDequant(n *graph.Node) bool {
	return isCall(n) && strings.HasPrefix(n.Target, "dequantize")
}

// IsAffine reports whether the node uses the affine-decomposed encoding,
// which stores a block-size list between the input and the scale.
func IsAffine(n *graph.Node) bool {
	if !isCall(n) {
		return false
	}
	return n.Target == TargetQuantizeAffine || n.Target == TargetDequantizeAffine
}

// IsChooseQParams reports whether the node computes quantization parameters
// at run time from its input values.
func IsChooseQParams(n *graph.Node) bool {
	return isCall(n) && strings.HasPrefix(n.Target, TargetChooseQParams)
}

// IsGetItem reports whether the node is a tuple-element accessor.
func IsGetItem(n *graph.Node) bool {
	return isCall(n) && n.Target == TargetGetItem
}

// CanonicalArgs returns the node's arguments with scale at index 1 and zero
// point at index 2. For affine-encoded nodes this drops the block-size
// argument; all other encodings already have that layout.
func CanonicalArgs(n *graph.Node) []graph.Arg {
	if !IsAffine(n) || len(n.Args) < 2 {
		return n.Args
	}
	args := make([]graph.Arg, 0, len(n.Args)-1)
	args = append(args, n.Args[0])
	args = append(args, n.Args[2:]...)
	return args
}

// IsPerTensor reports whether the wrapper applies one scale/zero-point pair
// to the whole tensor.
func IsPerTensor(n *graph.Node) bool {
	if !IsQuant(n) && !IsDequant(n) {
		return false
	}
	if IsAffine(n) {
		return len(n.IntsAt(1)) == 0
	}
	return strings.Contains(n.Target, "per_tensor")
}

// IsPerChannelGroup reports whether the wrapper applies one scale/zero-point
// pair per group of channels. Affine-encoded wrappers are per-channel-group
// when their block size covers less than a full row of the input.
func IsPerChannelGroup(n *graph.Node) bool {
	if !IsQuant(n) && !IsDequant(n) {
		return false
	}
	if strings.Contains(n.Target, "per_channel_group") {
		return true
	}
	if !IsAffine(n) {
		return false
	}
	bs := n.IntsAt(1)
	in := n.Input(0)
	return len(bs) == 2 && bs[0] == 1 && in != nil && len(in.Shape) == 2 && bs[1] < in.Shape[1]
}

// IsPerChannel reports whether the wrapper applies one scale/zero-point pair
// per output channel.
func IsPerChannel(n *graph.Node) bool {
	if !IsQuant(n) && !IsDequant(n) {
		return false
	}
	if strings.Contains(n.Target, "per_channel") && !strings.Contains(n.Target, "per_channel_group") {
		return true
	}
	if !IsAffine(n) {
		return false
	}
	bs := n.IntsAt(1)
	in := n.Input(0)
	return len(bs) == 2 && bs[0] == 1 && in != nil && len(in.Shape) == 2 && bs[1] == in.Shape[1]
}

// IsDynamicDequant reports whether the node is a dequantize wrapper whose
// scale and zero point are computed at run time, i.e. both are references
// to other nodes rather than literals.
func IsDynamicDequant(n *graph.Node) bool {
	if !IsDequant(n) {
		return false
	}
	args := CanonicalArgs(n)
	if len(args) <= argZeroPoint {
		return false
	}
	return args[argScale].IsNode() && args[argZeroPoint].IsNode()
}
