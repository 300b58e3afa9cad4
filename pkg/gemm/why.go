package gemm

import (
	"fmt"

	"github.com/nnfission/go-gemm-partition/internal/log"
	"github.com/nnfission/go-gemm-partition/pkg/graph"
)

// WhyFn receives a human-readable reason every time a node is rejected.
// It is a write-only side channel; nothing is consumed from it.
type WhyFn func(node *graph.Node, reason string)

func defaultWhy(node *graph.Node, reason string) {
	log.Default().Debug("node not partitioned", "node", node.Name, "reason", reason)
}

func (r *Resolver) whyf(node *graph.Node, format string, args ...interface{}) {
	r.why(node, fmt.Sprintf(format, args...))
}
