package optimizer

import "github.com/rill-lang/rill/internal/mir"

// cloneInstr emits a remapped copy of src at the builder's insertion
// point. Operands are substituted through the value map, successor edges
// through the block map, and the debug scope is rebuilt for the caller.
// Debug annotations are dropped under mandatory inlining, as if the callee
// had been compiled without debug info.
func (in *Inliner) cloneInstr(src *mir.Instr) {
	if src.Kind.IsDebug() && in.kind == MandatoryInline {
		return
	}

	c := &mir.Instr{
		Kind:            src.Kind,
		ResultType:      src.ResultType,
		ResultOwnership: src.ResultOwnership,
		Loc:             src.Loc,
		Scope:           in.inlineScope(src.Scope),
		IntValue:        src.IntValue,
		FloatValue:      src.FloatValue,
		StrValue:        src.StrValue,
		Enforcement:     src.Enforcement,
		MetatypeRep:     src.MetatypeRep,
	}
	if len(src.Operands) > 0 {
		c.Operands = make([]mir.Value, len(src.Operands))
		for i, op := range src.Operands {
			c.Operands[i] = in.remapValue(op)
		}
	}
	if len(src.Succs) > 0 {
		c.Succs = make([]mir.Succ, len(src.Succs))
		for i, s := range src.Succs {
			ns := mir.Succ{Block: in.remapBlock(s.Block)}
			if len(s.Args) > 0 {
				ns.Args = make([]mir.Value, len(s.Args))
				for j, a := range s.Args {
					ns.Args[j] = in.remapValue(a)
				}
			}
			c.Succs[i] = ns
		}
	}
	if len(src.Cases) > 0 {
		c.Cases = append([]string(nil), src.Cases...)
	}

	in.builder.Emit(c)
	in.instrMap[src] = c
	if src.HasResult() {
		in.valueMap[src] = c
	}
}
