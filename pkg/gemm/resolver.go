package gemm

import (
	"sync"

	"github.com/nnfission/go-gemm-partition/pkg/graph"
	"github.com/nnfission/go-gemm-partition/pkg/quant"
)

// MetaImplicitQDQ marks a quantize/dequantize node that belongs to the
// interior of a partition rather than its boundary.
const MetaImplicitQDQ = "implicit_qdq"

// Resolver decides cluster membership for one operator family. A resolver
// is stateless across calls except for the lazily-built source-partition
// index; see GetDeps for the concurrency contract.
type Resolver struct {
	family  Family
	profile Profile

	// enabled is the intersection of the precisions the backend instance
	// enables and the precisions the family supports.
	enabled map[Precision]bool

	// forceNonStaticWeights keeps fp32 linear-family weights out of the
	// partition so the backend treats them as runtime inputs.
	forceNonStaticWeights bool

	why         WhyFn
	tagImplicit func(*graph.Node)

	srcOnce       sync.Once
	srcPartitions []SourcePartition
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnabledPrecisions restricts the precisions the backend instance
// enables. The default enables every precision the family supports.
func WithEnabledPrecisions(ps ...Precision) Option {
	return func(r *Resolver) {
		r.enabled = make(map[Precision]bool, len(ps))
		for _, p := range ps {
			r.enabled[p] = true
		}
	}
}

// WithForceNonStaticWeights keeps weights and biases of fp32 linear-family
// ops out of the partition.
func WithForceNonStaticWeights() Option {
	return func(r *Resolver) { r.forceNonStaticWeights = true }
}

// WithWhy installs a diagnostic sink for rejection reasons.
func WithWhy(fn WhyFn) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.why = fn
		}
	}
}

// WithImplicitTagger overrides how interior quantize/dequantize nodes are
// tagged. The default records MetaImplicitQDQ on the node's metadata.
func WithImplicitTagger(fn func(*graph.Node)) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.tagImplicit = fn
		}
	}
}

func newResolver(f Family, opts ...Option) *Resolver {
	profile, ok := ProfileFor(f)
	if !ok {
		panic("gemm: unknown operator family " + string(f))
	}
	r := &Resolver{
		family:      f,
		profile:     profile,
		why:         defaultWhy,
		tagImplicit: func(n *graph.Node) { n.SetMeta(MetaImplicitQDQ, true) },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.enabled == nil {
		r.enabled = make(map[Precision]bool)
		for _, p := range r.SupportedPrecisions() {
			r.enabled[p] = true
		}
	} else {
		supported := make(map[Precision]bool)
		for _, p := range r.SupportedPrecisions() {
			supported[p] = true
		}
		for p := range r.enabled {
			if !supported[p] {
				delete(r.enabled, p)
			}
		}
	}
	return r
}

// NewLinear creates a resolver for dense/linear ops.
func NewLinear(opts ...Option) *Resolver { return newResolver(FamilyLinear, opts...) }

// NewConvolution creates a resolver for convolution ops.
func NewConvolution(opts ...Option) *Resolver { return newResolver(FamilyConvolution, opts...) }

// NewAddmm creates a resolver for addmm ops, including the legacy form
// where an addmm is the decomposition of a linear call.
func NewAddmm(opts ...Option) *Resolver { return newResolver(FamilyAddmm, opts...) }

// NewMM creates a resolver for plain matmul ops without bias.
func NewMM(opts ...Option) *Resolver { return newResolver(FamilyMM, opts...) }

// Family returns the operator family this resolver matches.
func (r *Resolver) Family() Family { return r.family }

// Target returns the operator target this resolver matches.
func (r *Resolver) Target() string { return r.profile.Target }

// SupportedPrecisions lists the precisions the backend can execute for this
// family. All four families support all three.
func (r *Resolver) SupportedPrecisions() []Precision {
	return []Precision{FP32, StaticQuant, DynamicQuant}
}

// OriginalOp returns the higher-level op this family is lowered from, or ""
// when the family is not a lowering target.
func (r *Resolver) OriginalOp() string {
	if r.family == FamilyLinear {
		return TargetLinear
	}
	return ""
}

// checkCommon gates resolution on cheap structural facts: the node must be
// a computed op with this family's target, and the backend instance must
// have at least one precision enabled for the family.
func (r *Resolver) checkCommon(node *graph.Node, prog *graph.Program) bool {
	if node == nil || node.Kind != graph.KindCall || node.Target != r.profile.Target {
		return false
	}
	if len(r.enabled) == 0 {
		r.whyf(node, "no enabled precision for %s", r.family)
		return false
	}
	return true
}

// CheckConstraints reports whether the node is eligible for partitioning,
// after full dependency resolution and, for convolution, the extra
// structural checks.
func (r *Resolver) CheckConstraints(node *graph.Node, prog *graph.Program) bool {
	if !r.checkCommon(node, prog) {
		return false
	}
	valid, _ := r.GetDeps(node, prog)
	if !valid {
		return false
	}
	if r.family == FamilyConvolution {
		return r.checkConvolutionConstraints(node, prog)
	}
	return true
}

// ClusterNodes returns the candidate node plus every dependency node that
// must accompany it into the partition, as an ordered set. The source
// partition path can rediscover the candidate itself, so duplicates are
// dropped.
func (r *Resolver) ClusterNodes(node *graph.Node, prog *graph.Program) []*graph.Node {
	_, deps := r.GetDeps(node, prog)
	return unionNodes([]*graph.Node{node}, deps)
}

// GetDeps resolves all dependencies for this GEMM partition. It returns
// whether the dependencies are valid and the list of dependency nodes.
//
// For the addmm/mm families, a node that belongs to a linear source
// partition is resolved by remapping its arguments to the partition
// boundary; that path briefly rewrites the node's argument and user lists
// and must not run concurrently for the same node.
func (r *Resolver) GetDeps(node *graph.Node, prog *graph.Program) (bool, []*graph.Node) {
	if r.family == FamilyAddmm || r.family == FamilyMM {
		if sp := r.sourcePartitionFor(node, prog); sp != nil {
			return r.depsFromSourcePartition(node, prog, sp)
		}
	}
	return r.genericDeps(node, prog)
}

// genericDeps runs detection, override, and the four role resolvers, then
// aggregates their results.
func (r *Resolver) genericDeps(node *graph.Node, prog *graph.Program) (bool, []*graph.Node) {
	detected := r.detectPrecision(node)
	_, precision := r.overwritePrecision(node)
	if !r.enabled[precision] {
		r.whyf(node, "unsupported precision type %s", detected)
		return false, nil
	}

	validBias, biasDeps := r.biasDeps(node, prog, precision)
	validWeight, weightDeps := r.weightDeps(node, prog, precision)
	validAct, actDeps := r.activationDeps(node, prog, precision)
	validOutput, outputDeps := r.outputDeps(node, prog, precision)

	valid := validBias && validWeight && validAct && validOutput

	deps := make([]*graph.Node, 0, len(biasDeps)+len(weightDeps)+len(actDeps)+len(outputDeps))
	deps = append(deps, biasDeps...)
	deps = append(deps, weightDeps...)
	deps = append(deps, actDeps...)
	deps = append(deps, outputDeps...)

	// Quantize/dequantize nodes pulled into the cluster are interior, not
	// partition boundaries.
	for _, dep := range deps {
		if quant.IsQuant(dep) || quant.IsDequant(dep) {
			r.tagImplicit(dep)
		}
	}

	return valid, deps
}
