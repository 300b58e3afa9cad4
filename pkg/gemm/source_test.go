package gemm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnfission/go-gemm-partition/pkg/graph"
)

// tagLinearPartition marks nodes as decomposed from one linear call.
func tagLinearPartition(id string, nodes ...*graph.Node) {
	for _, n := range nodes {
		n.SourceFn = TargetLinear
		n.SourcePartition = id
	}
}

// addmmProgram builds the canonical decomposition of a linear call:
// the weight is permuted and addmm consumes (bias, activation, permuted
// weight). All four nodes carry partition metadata.
func addmmProgram(t *testing.T) *graph.Program {
	t.Helper()
	b := graph.NewBuilder()
	x := b.Input("x", 1, 16)
	w := b.Param("w", 32, 16)
	bias := b.Param("b", 32)
	perm := b.Call("perm", "permute", graph.NodeArg(w))
	addmm := b.Call("addmm", TargetAddmm,
		graph.NodeArg(bias), graph.NodeArg(x), graph.NodeArg(perm))
	b.Output("out", addmm)
	tagLinearPartition("p0", w, bias, perm, addmm)
	prog, err := b.Finish()
	require.NoError(t, err)
	return prog
}

func TestFindSourcePartitions(t *testing.T) {
	prog := addmmProgram(t)
	g := prog.Graph()

	parts := FindSourcePartitions(g, TargetLinear)
	require.Len(t, parts, 1)
	sp := parts[0]

	assert.Equal(t, TargetLinear, sp.SourceFn)
	assert.Equal(t, []string{"w", "b", "perm", "addmm"}, names(sp.Nodes))
	assert.Equal(t, []string{"x"}, names(sp.Inputs))
	assert.Equal(t, []string{"addmm"}, names(sp.Outputs))
}

func TestFindSourcePartitionsIgnoresOtherSourceFns(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", 1, 16)
	w := b.Param("w", 16, 16)
	mm := b.Call("mm", TargetMM, graph.NodeArg(x), graph.NodeArg(w))
	b.Output("out", mm)
	tagLinearPartition("p0", w, mm)
	mm.SourceFn = "matmul"
	w.SourceFn = "matmul"
	prog, err := b.Finish()
	require.NoError(t, err)

	assert.Empty(t, FindSourcePartitions(prog.Graph(), TargetLinear))
}

func TestAddmmSourcePartitionRemap(t *testing.T) {
	prog := addmmProgram(t)
	addmm := prog.Graph().Node("addmm")

	r := NewAddmm()
	require.True(t, r.CheckConstraints(addmm, prog))

	// The greedy combine claims everything either the role resolvers or
	// the partition itself identified, including the permute.
	cluster := r.ClusterNodes(addmm, prog)
	assert.Equal(t, []string{"addmm", "b", "w", "perm"}, names(cluster))

	// The same layer written as a native linear call. Modulo the roots and
	// the partition-interior permute, the decomposed form must claim the
	// same operand set.
	lb := graph.NewBuilder()
	lx := lb.Input("x", 1, 16)
	lw := lb.Param("w", 32, 16)
	lbias := lb.Param("b", 32)
	lin := lb.Call("lin", TargetLinear,
		graph.NodeArg(lx), graph.NodeArg(lw), graph.NodeArg(lbias))
	lb.Output("out", lin)
	linProg, err := lb.Finish()
	require.NoError(t, err)

	linResolver := NewLinear()
	require.True(t, linResolver.CheckConstraints(lin, linProg))
	linCluster := linResolver.ClusterNodes(lin, linProg)

	operands := func(root string, cluster []*graph.Node) []string {
		out := []string{}
		for _, n := range cluster {
			if n.Name != root && n.Name != "perm" {
				out = append(out, n.Name)
			}
		}
		return out
	}
	assert.ElementsMatch(t,
		operands("lin", linCluster), operands("addmm", cluster))
}

func TestAddmmRemapRestoresNode(t *testing.T) {
	prog := addmmProgram(t)
	addmm := prog.Graph().Node("addmm")

	origArgs := append([]graph.Arg(nil), addmm.Args...)
	origUsers := append([]*graph.Node(nil), addmm.Users...)

	r := NewAddmm()
	first := r.ClusterNodes(addmm, prog)
	second := r.ClusterNodes(addmm, prog)

	assert.Equal(t, origArgs, addmm.Args)
	assert.Equal(t, origUsers, addmm.Users)
	assert.Equal(t, names(first), names(second))
}

func TestAddmmForceNonStaticSubset(t *testing.T) {
	greedyProg := addmmProgram(t)
	greedy := NewAddmm().
		ClusterNodes(greedyProg.Graph().Node("addmm"), greedyProg)

	forcedProg := addmmProgram(t)
	forced := NewAddmm(WithForceNonStaticWeights()).
		ClusterNodes(forcedProg.Graph().Node("addmm"), forcedProg)

	// With forced non-static weights the partition claims only the root:
	// weight and bias stay outside so they can be shared or updated.
	assert.Equal(t, []string{"addmm"}, names(forced))
	greedySet := make(map[string]bool)
	for _, n := range greedy {
		greedySet[n.Name] = true
	}
	for _, n := range forced {
		assert.True(t, greedySet[n.Name], "%s not in greedy cluster", n.Name)
	}
}

func TestAddmmInvalidPartitionRejected(t *testing.T) {
	// A second boundary output makes the partition ambiguous.
	b := graph.NewBuilder()
	x := b.Input("x", 1, 16)
	w := b.Param("w", 32, 16)
	bias := b.Param("b", 32)
	perm := b.Call("perm", "permute", graph.NodeArg(w))
	addmm := b.Call("addmm", TargetAddmm,
		graph.NodeArg(bias), graph.NodeArg(x), graph.NodeArg(perm))
	b.Output("out", addmm)
	b.Output("out2", perm)
	tagLinearPartition("p0", w, bias, perm, addmm)
	prog, err := b.Finish()
	require.NoError(t, err)

	rec := &whyRecorder{}
	r := NewAddmm(WithWhy(rec.fn))
	assert.False(t, r.CheckConstraints(prog.Graph().Node("addmm"), prog))
	assert.Contains(t, rec.last(), "invalid source partition")
}

func TestAddmmBiasOutsidePartitionRejected(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", 1, 16)
	w := b.Param("w", 32, 16)
	bias := b.Param("b", 32)
	perm := b.Call("perm", "permute", graph.NodeArg(w))
	addmm := b.Call("addmm", TargetAddmm,
		graph.NodeArg(bias), graph.NodeArg(x), graph.NodeArg(perm))
	b.Output("out", addmm)
	tagLinearPartition("p0", w, perm, addmm) // bias left untagged
	prog, err := b.Finish()
	require.NoError(t, err)

	rec := &whyRecorder{}
	r := NewAddmm(WithWhy(rec.fn))
	assert.False(t, r.CheckConstraints(prog.Graph().Node("addmm"), prog))
	assert.Contains(t, rec.last(), "invalid source partition")
}

func TestAddmmWithoutPartitionMetadataUsesGenericPath(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", 1, 16)
	w := b.Param("w", 16, 32)
	bias := b.Param("b", 32)
	addmm := b.Call("addmm", TargetAddmm,
		graph.NodeArg(bias), graph.NodeArg(x), graph.NodeArg(w))
	b.Output("out", addmm)
	prog, err := b.Finish()
	require.NoError(t, err)

	r := NewAddmm()
	node := prog.Graph().Node("addmm")
	require.True(t, r.CheckConstraints(node, prog))
	assert.Equal(t, []string{"addmm", "b", "w"}, names(r.ClusterNodes(node, prog)))
}

func TestMMSourcePartitionRemap(t *testing.T) {
	b := graph.NewBuilder()
	x := b.Input("x", 1, 16)
	w := b.Param("w", 32, 16)
	perm := b.Call("perm", "permute", graph.NodeArg(w))
	mm := b.Call("mm", TargetMM, graph.NodeArg(x), graph.NodeArg(perm))
	b.Output("out", mm)
	tagLinearPartition("p0", w, perm, mm)
	prog, err := b.Finish()
	require.NoError(t, err)

	r := NewMM()
	node := prog.Graph().Node("mm")
	require.True(t, r.CheckConstraints(node, prog))
	assert.Equal(t, []string{"mm", "w", "perm"}, names(r.ClusterNodes(node, prog)))
}
