package gemm

import (
	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/quant"
)

// checkConvolutionConstraints enforces the backend's structural limits on
// convolutions, after generic dependency resolution has already accepted
// the node. There is no 3-D convolution support.
func (r *Resolver) checkConvolutionConstraints(node *graph.Node, prog *graph.Program) bool {
	stride := node.IntsAt(convArgStride)
	if len(stride) > 2 {
		r.whyf(node, "only 1D and 2D convolutions are supported")
		return false
	}

	kernel := node.Input(r.profile.WeightIdx)
	if kernel == nil {
		r.whyf(node, "expected convolution to have a kernel operand")
		return false
	}
	kernelShape := kernel.Shape
	weightParams := quant.WeightParams(kernel)
	groups := node.IntAt(convArgGroups)
	transposed := node.BoolAt(convArgTransposed)

	// Dynamically quantized convolutions must be standard 2D convolutions.
	if r.detectPrecision(node) == DynamicQuant &&
		(len(stride) != 2 || isDepthwiseConv(kernelShape, groups, transposed)) {
		r.whyf(node, "only standard 2D convolutions are supported for dynamic quantization")
		return false
	}

	if transposed {
		for _, pad := range node.IntsAt(convArgOutputPadding) {
			if pad != 0 {
				r.whyf(node, "transposed convolutions with non-zero output padding are not supported")
				return false
			}
		}
	}

	if transposed && weightParams != nil && weightParams.PerChannel &&
		(groups > 1 || weightParams.Axis != 1) {
		r.whyf(node, "per input channel quantization is not supported for transposed convolutions with groups > 1")
		return false
	}

	return true
}

// isDepthwiseConv classifies a convolution as depthwise from its kernel
// shape, group count, and transpose flag. A convolution is depthwise when
// each group convolves a single input channel.
func isDepthwiseConv(kernelShape []int, groups int, transposed bool) bool {
	if len(kernelShape) < 2 || groups <= 1 {
		return false
	}
	groupInputChannels := kernelShape[1]
	if transposed {
		groupInputChannels = kernelShape[0] / groups
	}
	return groupInputChannels == 1
}
