package quant

import "github.com/nnfission/go-gemm-partition/pkg/graph"

// WeightQuantParams summarizes how a quantized weight's scale and zero point
// apply, recovered from the dequantize wrapper sitting on the weight operand.
type WeightQuantParams struct {
	PerChannel      bool // One scale/zero-point pair per channel (or group)
	PerChannelGroup bool // Channel-group granularity specifically
	Axis            int  // Channel axis the scales apply along
}

// WeightParams inspects a weight operand and returns its quantization
// parameters, or nil when the operand is not a dequantize wrapper. The axis
// is read from the wrapper's axis argument for the per-channel encodings;
// affine-encoded wrappers always quantize along axis 0.
func WeightParams(n *graph.Node) *WeightQuantParams {
	if !IsDequant(n) {
		return nil
	}
	p := &WeightQuantParams{}
	switch {
	case IsPerChannelGroup(n):
		p.PerChannel = true
		p.PerChannelGroup = true
		if !IsAffine(n) {
			p.Axis = n.IntAt(argAxis)
		}
	case IsPerChannel(n):
		p.PerChannel = true
		if !IsAffine(n) {
			p.Axis = n.IntAt(argAxis)
		}
	}
	return p
}
