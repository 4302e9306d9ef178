package optimizer

import (
	"fmt"

	"github.com/rill-lang/rill/internal/mir"
)

// InlineKind selects the inlining flavor.
type InlineKind int

const (
	// MandatoryInline is required by language semantics: the call must
	// disappear before diagnostics-complete code generation. Foreign
	// callees are forbidden and debug annotations are dropped, as if the
	// callee were a no-debug function.
	MandatoryInline InlineKind = iota
	// PerformanceInline is optimizer-driven. Any callee is allowed, debug
	// annotations survive, and a fresh inline scope records the call site.
	PerformanceInline
)

func (k InlineKind) String() string {
	switch k {
	case MandatoryInline:
		return "mandatory"
	case PerformanceInline:
		return "performance"
	default:
		return "unknown"
	}
}

type blockPair struct {
	src *mir.Block // callee block
	dst *mir.Block // its caller-side image
}

// Inliner splices clones of one callee's body into call sites inside one
// caller. An instance may be reused across many sites of the same
// caller/callee pair; the per-call state below is reset on every Inline.
type Inliner struct {
	caller      *mir.Function
	callee      *mir.Function
	kind        InlineKind
	callerScope *mir.DebugScope

	builder *mir.Builder

	// Per-call state.
	valueMap    map[mir.Value]mir.Value
	blockMap    map[*mir.Block]*mir.Block
	instrMap    map[*mir.Instr]*mir.Instr
	scopeCache  map[*mir.DebugScope]*mir.DebugScope
	cloned      []blockPair // blockMap in cloning order
	callSite    *mir.DebugScope
	loc         mir.Location
	calleeEntry *mir.Block
	insertAfter *mir.Block // block the call's parent precedes, nil if last
}

// NewInliner creates an inliner that splices callee into caller.
// callerScope is the fallback debug scope for call instructions that carry
// none; passing caller.Scope is the common choice.
func NewInliner(caller, callee *mir.Function, kind InlineKind, callerScope *mir.DebugScope) *Inliner {
	return &Inliner{
		caller:      caller,
		callee:      callee,
		kind:        kind,
		callerScope: callerScope,
		builder:     mir.NewBuilder(caller),
		valueMap:    make(map[mir.Value]mir.Value),
		blockMap:    make(map[*mir.Block]*mir.Block),
		instrMap:    make(map[*mir.Instr]*mir.Instr),
		scopeCache:  make(map[*mir.DebugScope]*mir.DebugScope),
	}
}

// CanInline reports whether the site may be inlined by this inliner.
// Self-inlining is the only condition rejected here; visibility, recursion
// and body availability are the calling policy's concern.
func (in *Inliner) CanInline(site ApplySite) bool {
	return site.Function() != in.callee
}

// Inline splices a clone of the callee's body into the caller at the given
// call site, binding args to the callee's entry-block parameters. It
// performs one step of inlining only. The call instruction itself is left
// in place; deleting it is the caller's responsibility.
//
// Violated preconditions are programmer errors and panic; there is no
// partial-success state.
func (in *Inliner) Inline(site ApplySite, args []mir.Value) {
	if !in.CanInline(site) {
		panic("optimizer: asked to inline a function into itself")
	}
	if site.Function() != in.caller {
		panic(fmt.Sprintf("optimizer: apply site belongs to @%s, inliner built for @%s",
			site.Function().Name, in.caller.Name))
	}
	if in.kind == MandatoryInline && in.callee.Representation != mir.RepNative {
		panic(fmt.Sprintf("optimizer: cannot mandatory-inline %s callee @%s",
			in.callee.Representation, in.callee.Name))
	}
	in.calleeEntry = in.callee.Entry()
	if in.calleeEntry == nil {
		panic(fmt.Sprintf("optimizer: callee @%s has no body", in.callee.Name))
	}
	if len(args) != len(in.calleeEntry.Params) {
		panic(fmt.Sprintf("optimizer: @%s expects %d entry arguments, got %d",
			in.callee.Name, len(in.calleeEntry.Params), len(args)))
	}

	call := site.Instr()

	// The location stamped on every synthesized terminator.
	if in.kind == PerformanceInline {
		in.loc = mir.InlinedLocation(call.Loc)
	} else {
		in.loc = mir.MandatoryInlinedLocation(call.Loc)
	}

	aiScope := call.Scope
	if aiScope == nil {
		aiScope = in.callerScope
	}
	if in.kind == MandatoryInline {
		// The call's own scope is the call-site scope, so inlined code
		// appears to originate in the caller. Cloned instructions keep
		// their callee locations.
		in.callSite = aiScope
	} else {
		// Construct a proper inline scope pointing back to the call site,
		// preserving the call site's own inlined-at chain.
		in.callSite = in.caller.Module.NewScope(call.Loc, nil, aiScope, aiScope.InlinedCallSite)
	}

	// Keep the callee's debug metadata alive for emission even if later
	// passes drop its body.
	in.callee.SetInlined()

	// New blocks are placed before the block that follows the call's
	// parent, so the inlined body reads contiguously in the textual form.
	in.insertAfter = blockAfter(site.Block())

	clear(in.valueMap)
	clear(in.blockMap)
	clear(in.instrMap)
	clear(in.scopeCache)
	in.cloned = in.cloned[:0]

	for i, p := range in.calleeEntry.Params {
		in.valueMap[p] = args[i]
	}

	// The callee's entry block is not cloned: its instructions are emitted
	// directly into the caller's block, before the call.
	in.blockMap[in.calleeEntry] = site.Block()
	in.cloned = append(in.cloned, blockPair{in.calleeEntry, site.Block()})
	in.builder.SetInsertionPoint(call)
	in.visitBlock(in.calleeEntry)

	// Fast path: a non-throwing apply of a single-block callee ending in
	// return needs no split and no synthesized branch.
	if !site.IsTry() {
		if term := in.calleeEntry.Terminator(); term.Kind == mir.InstrReturn {
			in.caller.ReplaceAllUses(call, in.remapValue(term.Operands[0]))
			return
		}
	}

	var returnTo *mir.Block
	if site.IsTry() {
		returnTo = site.NormalBlock()
	} else {
		// Split the caller block at the call with no connecting branch;
		// the cloned returns branch into the tail instead.
		returnTo = site.Block().SplitAt(call)
		if in.insertAfter != nil {
			in.caller.MoveBlockBefore(returnTo, in.insertAfter)
		} else {
			in.caller.MoveBlockToEnd(returnTo)
		}
		ret := returnTo.AddParam(call.ResultType, mir.OwnershipOwned)
		in.caller.ReplaceAllUses(call, ret)
	}

	// Patch the deferred terminators now that every value is remapped.
	for _, pair := range in.cloned {
		term := pair.src.Terminator()
		in.builder.SetInsertionPointAtEnd(pair.dst)
		switch term.Kind {
		case mir.InstrReturn:
			in.builder.EmitBranch(in.loc, in.inlineScope(term.Scope), returnTo, in.remapValue(term.Operands[0]))
		case mir.InstrThrow:
			if !site.IsTry() {
				// A throw reached from a non-throwing apply is dead by
				// front-end contract.
				in.builder.EmitUnreachable(in.loc, in.inlineScope(term.Scope))
				continue
			}
			in.builder.EmitBranch(in.loc, in.inlineScope(term.Scope), site.ErrorBlock(), in.remapValue(term.Operands[0]))
		default:
			in.cloneInstr(term)
		}
	}
}

// visitBlock clones src's non-terminator instructions at the current
// insertion point, then walks src's successors in depth-first preorder,
// allocating a caller block for each unvisited callee block.
func (in *Inliner) visitBlock(src *mir.Block) {
	for _, inst := range src.Instrs {
		if inst.Kind.IsTerminator() {
			break
		}
		in.cloneInstr(inst)
	}
	term := src.Terminator()
	if term == nil {
		panic(fmt.Sprintf("optimizer: callee block %s has no terminator", src))
	}
	for _, s := range term.Succs {
		if _, seen := in.blockMap[s.Block]; seen {
			continue
		}
		dst := in.caller.NewBlockBefore(in.insertAfter)
		for _, p := range s.Block.Params {
			np := dst.AddParam(p.Type(), p.Ownership())
			in.valueMap[p] = np
		}
		in.blockMap[s.Block] = dst
		in.cloned = append(in.cloned, blockPair{s.Block, dst})
		in.builder.SetInsertionPointAtEnd(dst)
		in.visitBlock(s.Block)
	}
}

// blockAfter returns the block following bb in its function's block list,
// or nil if bb is last.
func blockAfter(bb *mir.Block) *mir.Block {
	blocks := bb.Function().Blocks
	for i, b := range blocks {
		if b == bb && i+1 < len(blocks) {
			return blocks[i+1]
		}
	}
	return nil
}

// inlineScope returns the caller-side image of a callee debug scope,
// mirroring lexical nesting while rerooting the inlined-at chain at the
// call site. Each callee scope is copied at most once per Inline.
func (in *Inliner) inlineScope(calleeScope *mir.DebugScope) *mir.DebugScope {
	if calleeScope == nil {
		return in.callSite
	}
	if s, ok := in.scopeCache[calleeScope]; ok {
		return s
	}
	inlinedAt := in.inlineScope(calleeScope.InlinedCallSite)
	s := in.caller.Module.NewScope(calleeScope.Loc, calleeScope.ParentFunc, calleeScope.ParentScope, inlinedAt)
	in.scopeCache[calleeScope] = s
	return s
}

// remapValue returns the caller-side value for a callee value. Values with
// no mapping pass through unchanged: undef remaps to itself, and caller
// values bound as arguments are already on the caller side.
func (in *Inliner) remapValue(v mir.Value) mir.Value {
	if mapped, ok := in.valueMap[v]; ok {
		return mapped
	}
	return v
}

// remapBlock returns the caller-side block for a callee block.
func (in *Inliner) remapBlock(bb *mir.Block) *mir.Block {
	mapped, ok := in.blockMap[bb]
	if !ok {
		panic(fmt.Sprintf("optimizer: callee block %s has no caller image", bb))
	}
	return mapped
}
