// Package optimizer holds the MIR-to-MIR transformation passes. The
// package currently provides:
// 1. The function inliner core (single call-site substitution)
// 2. The per-instruction inlining cost model
// 3. A size-threshold inline policy used by the rill-opt driver
package optimizer

import (
	"fmt"

	"github.com/rill-lang/rill/internal/mir"
)

// ApplySite is a full call site: either a non-throwing apply or a throwing
// try_apply terminator.
type ApplySite struct {
	call *mir.Instr
}

// Apply wraps a call instruction as an apply site. It panics if the
// instruction is not a call.
func Apply(in *mir.Instr) ApplySite {
	if in.Kind != mir.InstrApply && in.Kind != mir.InstrTryApply {
		panic(fmt.Sprintf("optimizer: %s is not an apply site", in.Kind))
	}
	return ApplySite{call: in}
}

// Instr returns the underlying call instruction.
func (a ApplySite) Instr() *mir.Instr { return a.call }

// Block returns the block containing the call.
func (a ApplySite) Block() *mir.Block { return a.call.Parent() }

// Function returns the function containing the call.
func (a ApplySite) Function() *mir.Function { return a.Block().Function() }

// IsTry reports whether the site is a throwing try_apply.
func (a ApplySite) IsTry() bool { return a.call.Kind == mir.InstrTryApply }

// Callee returns the called value (usually a function_ref result).
func (a ApplySite) Callee() mir.Value { return a.call.Operands[0] }

// Args returns the call arguments, excluding the callee.
func (a ApplySite) Args() []mir.Value { return a.call.Operands[1:] }

// NormalBlock returns the normal successor of a try_apply, or nil for an
// apply.
func (a ApplySite) NormalBlock() *mir.Block {
	if !a.IsTry() {
		return nil
	}
	return a.call.Succs[0].Block
}

// ErrorBlock returns the error successor of a try_apply, or nil for an
// apply.
func (a ApplySite) ErrorBlock() *mir.Block {
	if !a.IsTry() {
		return nil
	}
	return a.call.Succs[1].Block
}
