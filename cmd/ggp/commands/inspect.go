package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/graphio"
	"github.com/nnfission/go-gemm-partition/pkg/quant"
)

// InspectOutput represents the output of the inspect command
type InspectOutput struct {
	GraphFile    string         `json:"graph_file"`
	TotalNodes   int            `json:"total_nodes"`
	NodesByKind  map[string]int `json:"nodes_by_kind"`
	CallTargets  map[string]int `json:"call_targets,omitempty"`
	QuantWrapped int            `json:"quant_wrapped"`
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <graph-file>",
	Short: "Summarize a serialized graph",
	Long:  `Loads a serialized dataflow graph and prints node counts per kind and per operator target.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return runInspect(args[0], jsonOutput)
	},
}

func init() {
	inspectCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(inspectCmd)
}

func runInspect(path string, jsonOutput bool) error {
	prog, err := graphio.LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading graph: %w", err)
	}

	out := InspectOutput{
		GraphFile:   path,
		TotalNodes:  prog.Graph().Len(),
		NodesByKind: make(map[string]int),
		CallTargets: make(map[string]int),
	}
	for _, n := range prog.Graph().Nodes() {
		out.NodesByKind[string(n.Kind)]++
		if n.Kind == graph.KindCall {
			out.CallTargets[n.Target]++
		}
		if quant.IsQuant(n) || quant.IsDequant(n) {
			out.QuantWrapped++
		}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Graph: %s\n", path)
	fmt.Printf("Nodes: %d\n", out.TotalNodes)
	for _, kind := range sortedKeys(out.NodesByKind) {
		fmt.Printf("  %s: %d\n", kind, out.NodesByKind[kind])
	}
	fmt.Printf("Operator targets:\n")
	for _, target := range sortedKeys(out.CallTargets) {
		fmt.Printf("  %s: %d\n", target, out.CallTargets[target])
	}
	fmt.Printf("Quantize/dequantize wrappers: %d\n", out.QuantWrapped)
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
