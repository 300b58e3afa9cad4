// Package gemm decides whether a matrix-multiply-family operation, together
// with its parameter nodes, quantization wrappers, and fused activation,
// forms a legal self-contained cluster for the accelerator backend, and
// computes the exact node set belonging to that cluster.
//
// GEMM-like ops (linear, convolution, addmm, mm) mostly behave the same
// way: there is some weight, bias, and activation operand. The difference
// between the families is only where those operands live in the argument
// list, so the resolution logic is written once against a per-family
// Profile.
package gemm

// Operator targets handled by this package.
const (
	TargetLinear      = "linear"
	TargetConvolution = "convolution"
	TargetAddmm       = "addmm"
	TargetMM          = "mm"
	TargetRelu        = "relu"
	TargetHardtanh    = "hardtanh"
)

// Positional arguments of a convolution node beyond activation/weight/bias.
const (
	convArgStride        = 3
	convArgPadding       = 4
	convArgDilation      = 5
	convArgTransposed    = 6
	convArgOutputPadding = 7
	convArgGroups        = 8
)

// Family identifies one GEMM-like operator family.
type Family string

const (
	FamilyLinear      Family = "linear"
	FamilyConvolution Family = "convolution"
	FamilyAddmm       Family = "addmm"
	FamilyMM          Family = "mm"
)

// Profile fixes the argument layout and fusible follow-on ops for one
// operator family. Profiles are static for the process lifetime.
type Profile struct {
	Target    string          // Operator target this family matches
	WeightIdx int             // Argument index of the weight operand
	BiasIdx   int             // Argument index of the bias operand, -1 if none
	ActIdx    int             // Argument index of the activation operand
	FusedActs map[string]bool // Targets that may fuse into the partition
}

// fusedActs is shared by every profile: the backend can fold these
// elementwise ops into the preceding GEMM.
var fusedActs = map[string]bool{
	TargetRelu:     true,
	TargetHardtanh: true,
}

var profiles = map[Family]Profile{
	FamilyLinear: {
		Target:    TargetLinear,
		WeightIdx: 1,
		BiasIdx:   2,
		ActIdx:    0,
		FusedActs: fusedActs,
	},
	FamilyConvolution: {
		Target:    TargetConvolution,
		WeightIdx: 1,
		BiasIdx:   2,
		ActIdx:    0,
		FusedActs: fusedActs,
	},
	FamilyAddmm: {
		Target:    TargetAddmm,
		WeightIdx: 2,
		BiasIdx:   0,
		ActIdx:    1,
		FusedActs: fusedActs,
	},
	FamilyMM: {
		Target:    TargetMM,
		WeightIdx: 1,
		BiasIdx:   -1,
		ActIdx:    0,
		FusedActs: fusedActs,
	},
}

// ProfileFor returns the argument-layout profile for an operator family.
func ProfileFor(f Family) (Profile, bool) {
	p, ok := profiles[f]
	return p, ok
}
