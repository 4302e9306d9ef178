package optimizer

import "github.com/rill-lang/rill/internal/mir"

// FunctionInlineCost sums the instruction cost over a function's body,
// counting one unit per Expensive instruction. Free instructions do not
// contribute.
func FunctionInlineCost(f *mir.Function) int {
	total := 0
	for _, bb := range f.Blocks {
		for _, in := range bb.Instrs {
			if InstructionInlineCost(in) == CostExpensive {
				total++
			}
		}
	}
	return total
}

// InlineAll inlines every eligible direct, non-throwing apply site in
// caller whose callee's summed cost is at most threshold, and deletes each
// replaced call. One pass only: apply sites introduced by the inlined
// bodies are left for a later run. Returns the number of sites inlined.
//
// A site is eligible when the callee is a function_ref to a function in the
// caller's module with an available body, is not the caller itself, and —
// under mandatory inlining — has native representation.
func InlineAll(caller *mir.Function, threshold int, kind InlineKind) int {
	type work struct {
		site   ApplySite
		callee *mir.Function
	}
	var sites []work
	for _, bb := range caller.Blocks {
		for _, in := range bb.Instrs {
			if in.Kind != mir.InstrApply {
				continue
			}
			ref, ok := in.Operands[0].(*mir.Instr)
			if !ok || ref.Kind != mir.InstrFunctionRef {
				continue
			}
			callee := caller.Module.Function(ref.StrValue)
			if callee == nil || callee == caller || callee.Entry() == nil {
				continue
			}
			if kind == MandatoryInline && callee.Representation != mir.RepNative {
				continue
			}
			if FunctionInlineCost(callee) > threshold {
				continue
			}
			sites = append(sites, work{Apply(in), callee})
		}
	}

	inlined := 0
	for _, w := range sites {
		in := NewInliner(caller, w.callee, kind, caller.Scope)
		if !in.CanInline(w.site) {
			continue
		}
		in.Inline(w.site, w.site.Args())
		call := w.site.Instr()
		call.Parent().RemoveInstr(call)
		inlined++
	}
	return inlined
}
