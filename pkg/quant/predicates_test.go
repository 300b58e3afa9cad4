package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnfission/go-gemm-partition/pkg/graph"
)

func buildWrapper(t *testing.T, target string, shape []int, args func(in *graph.Node) []graph.Arg) *graph.Node {
	t.Helper()
	b := graph.NewBuilder()
	in := b.Param("w", shape...)
	n := b.Call("wrap", target, args(in)...)
	b.Output("out", n)
	_, err := b.Finish()
	require.NoError(t, err)
	return n
}

func perTensorDequant(t *testing.T) *graph.Node {
	return buildWrapper(t, TargetDequantizePerTensor, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.FloatArg(0.1), graph.IntArg(0)}
	})
}

func TestWrapperKindPredicates(t *testing.T) {
	dq := perTensorDequant(t)
	assert.True(t, IsDequant(dq))
	assert.False(t, IsQuant(dq))
	assert.True(t, IsPerTensor(dq))
	assert.False(t, IsPerChannel(dq))
	assert.False(t, IsAffine(dq))

	q := buildWrapper(t, TargetQuantizePerTensor, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.FloatArg(0.1), graph.IntArg(0)}
	})
	assert.True(t, IsQuant(q))
	assert.False(t, IsDequant(q))
}

func TestPredicatesRejectNonCalls(t *testing.T) {
	param := &graph.Node{Name: "w", Kind: graph.KindParam, Target: TargetQuantizePerTensor}
	assert.False(t, IsQuant(param))
	assert.False(t, IsDequant(param))
	assert.False(t, IsGetItem(param))
	assert.False(t, IsQuant(nil))
}

func TestPerChannelGranularity(t *testing.T) {
	dq := buildWrapper(t, TargetDequantizePerChannel, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.NodeArg(in), graph.NodeArg(in), graph.IntArg(0)}
	})
	assert.True(t, IsPerChannel(dq))
	assert.False(t, IsPerChannelGroup(dq))
	assert.False(t, IsPerTensor(dq))

	group := buildWrapper(t, TargetDequantizePerChannelGroup, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.NodeArg(in), graph.NodeArg(in), graph.IntArg(0), graph.IntArg(2)}
	})
	assert.True(t, IsPerChannelGroup(group))
	assert.False(t, IsPerChannel(group))
}

func TestAffineGranularityFromBlockSize(t *testing.T) {
	// Block size spanning a full input row is per-channel.
	perChannel := buildWrapper(t, TargetDequantizeAffine, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.IntListArg(1, 4), graph.FloatArg(0.1), graph.IntArg(0)}
	})
	assert.True(t, IsAffine(perChannel))
	assert.True(t, IsPerChannel(perChannel))
	assert.False(t, IsPerChannelGroup(perChannel))

	// Block size covering part of a row is per-channel-group.
	perGroup := buildWrapper(t, TargetDequantizeAffine, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.IntListArg(1, 2), graph.FloatArg(0.1), graph.IntArg(0)}
	})
	assert.True(t, IsPerChannelGroup(perGroup))
	assert.False(t, IsPerChannel(perGroup))
}

func TestCanonicalArgsDropsBlockSize(t *testing.T) {
	affine := buildWrapper(t, TargetDequantizeAffine, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.IntListArg(1, 4), graph.FloatArg(0.1), graph.IntArg(7)}
	})
	args := CanonicalArgs(affine)
	require.Len(t, args, 3)
	assert.Equal(t, 0.1, args[1].Float)
	assert.Equal(t, 7, args[2].Int)

	dq := perTensorDequant(t)
	assert.Equal(t, dq.Args, CanonicalArgs(dq))
}

func TestIsDynamicDequant(t *testing.T) {
	assert.False(t, IsDynamicDequant(perTensorDequant(t)))

	b := graph.NewBuilder()
	x := b.Input("x", 1, 16)
	cq := b.Call("cq", TargetChooseQParams, graph.NodeArg(x))
	g1 := b.Call("g1", TargetGetItem, graph.NodeArg(cq), graph.IntArg(0))
	g2 := b.Call("g2", TargetGetItem, graph.NodeArg(cq), graph.IntArg(1))
	qx := b.Call("qx", TargetQuantizePerTensor,
		graph.NodeArg(x), graph.NodeArg(g1), graph.NodeArg(g2))
	dqx := b.Call("dqx", TargetDequantizePerTensor,
		graph.NodeArg(qx), graph.NodeArg(g1), graph.NodeArg(g2))
	b.Output("out", dqx)
	_, err := b.Finish()
	require.NoError(t, err)

	assert.True(t, IsDynamicDequant(dqx))
	assert.True(t, IsChooseQParams(cq))
	assert.True(t, IsGetItem(g1))
}

func TestWeightParams(t *testing.T) {
	param := &graph.Node{Name: "w", Kind: graph.KindParam}
	assert.Nil(t, WeightParams(param))

	perTensor := perTensorDequant(t)
	p := WeightParams(perTensor)
	require.NotNil(t, p)
	assert.False(t, p.PerChannel)

	perChannel := buildWrapper(t, TargetDequantizePerChannel, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.NodeArg(in), graph.NodeArg(in), graph.IntArg(1)}
	})
	p = WeightParams(perChannel)
	require.NotNil(t, p)
	assert.True(t, p.PerChannel)
	assert.False(t, p.PerChannelGroup)
	assert.Equal(t, 1, p.Axis)

	group := buildWrapper(t, TargetDequantizePerChannelGroup, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.NodeArg(in), graph.NodeArg(in), graph.IntArg(0), graph.IntArg(2)}
	})
	p = WeightParams(group)
	require.NotNil(t, p)
	assert.True(t, p.PerChannel)
	assert.True(t, p.PerChannelGroup)

	affine := buildWrapper(t, TargetDequantizeAffine, []int{8, 4}, func(in *graph.Node) []graph.Arg {
		return []graph.Arg{graph.NodeArg(in), graph.IntListArg(1, 4), graph.FloatArg(0.1), graph.IntArg(0)}
	})
	p = WeightParams(affine)
	require.NotNil(t, p)
	assert.True(t, p.PerChannel)
	assert.Equal(t, 0, p.Axis)
}
