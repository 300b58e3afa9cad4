package graphio

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnfission/go-gemm-partition/pkg/graph"
)

func sampleProgram(t *testing.T) *graph.Program {
	t.Helper()
	b := graph.NewBuilder()
	x := b.Input("x", 1, 4, 32, 32)
	w := b.Param("w", 8, 4, 3, 3)
	bias := b.Param("b", 8)
	conv := b.Call("conv", "convolution",
		graph.NodeArg(x), graph.NodeArg(w), graph.NodeArg(bias),
		graph.IntListArg(1, 1), graph.IntListArg(0, 0), graph.IntListArg(1, 1),
		graph.BoolArg(false), graph.IntListArg(0, 0), graph.IntArg(1))
	conv.SourceFn = "conv2d"
	conv.SourcePartition = "p0"
	b.Output("out", conv)
	prog, err := b.Finish()
	require.NoError(t, err)
	return prog
}

func assertSameProgram(t *testing.T, want, got *graph.Program) {
	t.Helper()
	require.Equal(t, want.Graph().Len(), got.Graph().Len())
	for i, wn := range want.Graph().Nodes() {
		gn := got.Graph().Nodes()[i]
		assert.Equal(t, wn.Name, gn.Name)
		assert.Equal(t, wn.Kind, gn.Kind)
		assert.Equal(t, wn.Target, gn.Target)
		assert.Equal(t, wn.Shape, gn.Shape)
		assert.Equal(t, wn.SourceFn, gn.SourceFn)
		assert.Equal(t, wn.SourcePartition, gn.SourcePartition)
		require.Len(t, gn.Args, len(wn.Args))
		for j, wa := range wn.Args {
			ga := gn.Args[j]
			assert.Equal(t, wa.Kind, ga.Kind)
			if wa.IsNode() {
				assert.Equal(t, wa.Node.Name, ga.Node.Name)
			}
		}
		if want.IsParam(wn) {
			assert.True(t, got.IsParam(gn))
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	prog := sampleProgram(t)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, prog))
	got, err := Decode(&buf)
	require.NoError(t, err)

	assertSameProgram(t, prog, got)
	assert.Equal(t, []*graph.Node{got.Graph().Node("conv")},
		got.Graph().Node("x").Users, "user edges are rebuilt on decode")
}

func TestYAMLRoundTrip(t *testing.T) {
	prog := sampleProgram(t)

	var buf bytes.Buffer
	require.NoError(t, EncodeYAML(&buf, prog))
	got, err := DecodeYAML(&buf)
	require.NoError(t, err)

	assertSameProgram(t, prog, got)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeYAML(&buf, sampleProgram(t)))
	mangled := bytes.Replace(buf.Bytes(), []byte("version: 1"), []byte("version: 99"), 1)

	_, err := DecodeYAML(bytes.NewReader(mangled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format version")
}

func TestDecodeRejectsUnknownNodeReference(t *testing.T) {
	src := `
version: 1
nodes:
  - name: op
    kind: call
    target: mm
    args:
      - kind: node
        node: ghost
`
	_, err := DecodeYAML(bytes.NewReader([]byte(src)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")
}

func TestDecodeRejectsUnknownArgKind(t *testing.T) {
	src := `
version: 1
nodes:
  - name: op
    kind: call
    target: mm
    args:
      - kind: tensor
`
	_, err := DecodeYAML(bytes.NewReader([]byte(src)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestFileFormatChosenByExtension(t *testing.T) {
	prog := sampleProgram(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "prog.yaml")
	require.NoError(t, SaveFile(yamlPath, prog))
	fromYAML, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assertSameProgram(t, prog, fromYAML)

	binPath := filepath.Join(dir, "prog.bin")
	require.NoError(t, SaveFile(binPath, prog))
	fromBin, err := LoadFile(binPath)
	require.NoError(t, err)
	assertSameProgram(t, prog, fromBin)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.bin"))
	assert.Error(t, err)
}
