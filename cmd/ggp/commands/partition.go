package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nnfission/go-gemm-partition/internal/config"
	"github.com/nnfission/go-gemm-partition/internal/log"
	"github.com/nnfission/go-gemm-partition/pkg/cache"
	"github.com/nnfission/go-gemm-partition/pkg/gemm"
	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/graphio"
)

// ClusterOutput represents one accepted cluster in the partition output
type ClusterOutput struct {
	Operator string   `json:"operator"`
	Root     string   `json:"root"`
	Nodes    []string `json:"nodes"`
}

// RejectionOutput represents one rejected candidate
type RejectionOutput struct {
	Operator string `json:"operator"`
	Root     string `json:"root"`
	Reason   string `json:"reason"`
}

// PartitionOutput represents the output of the partition command
type PartitionOutput struct {
	GraphFile  string            `json:"graph_file"`
	Clusters   []ClusterOutput   `json:"clusters"`
	Rejections []RejectionOutput `json:"rejections,omitempty"`
}

// partitionCmd represents the partition command
var partitionCmd = &cobra.Command{
	Use:   "partition <graph-file>",
	Short: "Resolve clusters for every GEMM-like op in a graph",
	Long: `Loads a serialized dataflow graph, runs cluster resolution for every
matrix-multiply-family operation, and reports the accepted clusters together
with the rejection reasons for ineligible candidates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		return runPartition(args[0], jsonOutput, noCache)
	},
}

func init() {
	partitionCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	partitionCmd.Flags().Bool("no-cache", false, "Skip the report cache")
	RootCmd.AddCommand(partitionCmd)
}

func buildResolvers(cfg *config.Config) ([]*gemm.Resolver, error) {
	var precisions []gemm.Precision
	for _, name := range cfg.EnabledPrecisions {
		p, ok := gemm.ParsePrecision(name)
		if !ok {
			return nil, fmt.Errorf("unknown precision %q", name)
		}
		precisions = append(precisions, p)
	}

	opts := []gemm.Option{gemm.WithEnabledPrecisions(precisions...)}
	if cfg.ForceNonStaticWeights {
		opts = append(opts, gemm.WithForceNonStaticWeights())
	}

	var resolvers []*gemm.Resolver
	for _, op := range cfg.Operators {
		switch op {
		case config.OperatorLinear:
			resolvers = append(resolvers, gemm.NewLinear(opts...))
		case config.OperatorConvolution:
			resolvers = append(resolvers, gemm.NewConvolution(opts...))
		case config.OperatorAddmm:
			resolvers = append(resolvers, gemm.NewAddmm(opts...))
		case config.OperatorMM:
			resolvers = append(resolvers, gemm.NewMM(opts...))
		default:
			return nil, fmt.Errorf("unknown operator %q", op)
		}
	}
	return resolvers, nil
}

// cacheFilePath is where partition reports are persisted between runs.
const cacheFilePath = ".ggp/cache/reports.bin"

// cacheSettings captures every config knob that influences the report, so
// changing any of them invalidates cached entries.
func cacheSettings(cfg *config.Config) map[string]string {
	return map[string]string{
		"precisions": strings.Join(cfg.EnabledPrecisions, ","),
		"operators":  strings.Join(cfg.Operators, ","),
		"force":      fmt.Sprintf("%t", cfg.ForceNonStaticWeights),
	}
}

func runPartition(path string, jsonOutput, noCache bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Verbose {
		log.Default().SetLevel(log.DebugLevel)
	}

	var reports *cache.ReportCache
	var cacheKey string
	if !noCache {
		if data, err := os.ReadFile(path); err == nil {
			cacheKey = cache.Key(data, cacheSettings(cfg))
			reports = cache.New(64)
			if err := reports.LoadFile(cacheFilePath); err != nil {
				log.Default().Debug("report cache unreadable, starting fresh", "error", err)
			}
			if cached, found := reports.Get(cacheKey); found {
				log.Default().Debug("using cached partition report", "graph", path)
				var out PartitionOutput
				if err := json.Unmarshal(cached, &out); err == nil {
					return emitPartitionOutput(out, jsonOutput)
				}
				reports.Delete(cacheKey)
			}
		}
	}

	prog, err := graphio.LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading graph: %w", err)
	}

	resolvers, err := buildResolvers(cfg)
	if err != nil {
		return err
	}

	out := PartitionOutput{GraphFile: path}
	rejections := make(map[string]string)
	for i := range resolvers {
		r := resolvers[i]
		whyOpt := gemm.WithWhy(func(n *graph.Node, reason string) {
			rejections[string(r.Family())+"/"+n.Name] = reason
			log.Default().Debug("node not partitioned", "node", n.Name, "reason", reason)
		})
		whyOpt(r)
	}

	for _, node := range prog.Graph().Nodes() {
		for _, r := range resolvers {
			if node.Kind != graph.KindCall || node.Target != r.Target() {
				continue
			}
			if r.CheckConstraints(node, prog) {
				cluster := r.ClusterNodes(node, prog)
				names := make([]string, 0, len(cluster))
				for _, c := range cluster {
					names = append(names, c.Name)
				}
				out.Clusters = append(out.Clusters, ClusterOutput{
					Operator: string(r.Family()),
					Root:     node.Name,
					Nodes:    names,
				})
			} else {
				out.Rejections = append(out.Rejections, RejectionOutput{
					Operator: string(r.Family()),
					Root:     node.Name,
					Reason:   rejections[string(r.Family())+"/"+node.Name],
				})
			}
		}
	}

	if reports != nil {
		if data, err := json.Marshal(out); err == nil {
			reports.Set(cacheKey, data)
			if err := reports.SaveFile(cacheFilePath); err != nil {
				log.Default().Debug("failed to persist report cache", "error", err)
			}
		}
	}

	return emitPartitionOutput(out, jsonOutput)
}

func emitPartitionOutput(out PartitionOutput, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Graph: %s\n", out.GraphFile)
	fmt.Printf("Accepted clusters: %d\n", len(out.Clusters))
	for _, c := range out.Clusters {
		fmt.Printf("  %s %s: %v\n", c.Operator, c.Root, c.Nodes)
	}
	if len(out.Rejections) > 0 {
		fmt.Printf("Rejected candidates: %d\n", len(out.Rejections))
		for _, rej := range out.Rejections {
			reason := rej.Reason
			if reason == "" {
				reason = "constraints not met"
			}
			fmt.Printf("  %s %s: %s\n", rej.Operator, rej.Root, reason)
		}
	}
	if len(out.Clusters) == 0 && len(out.Rejections) == 0 {
		fmt.Fprintln(os.Stderr, "no GEMM-like operations found in graph")
	}
	return nil
}
