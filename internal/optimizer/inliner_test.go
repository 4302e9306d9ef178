// Tests for the inliner core: call-site substitution, control-flow
// splicing, return-value threading, and debug-scope reconstruction.
package optimizer

import (
	"testing"

	"github.com/rill-lang/rill/internal/mir"
)

func testLoc(line int) mir.Location {
	return mir.Location{File: "test.rl", Line: line, Col: 1}
}

var intType = mir.NamedType("Int")

// buildIdentity builds "func @id(x: Int) { return x }".
func buildIdentity(m *mir.Module) *mir.Function {
	f := m.NewFunction("id", testLoc(10))
	f.Params = []*mir.Type{intType}
	f.ResultType = intType
	bb := f.NewBlock()
	x := bb.AddParam(intType, mir.OwnershipOwned)
	b := mir.NewBuilder(f)
	b.Loc, b.Scope = testLoc(11), f.Scope
	b.SetInsertionPointAtEnd(bb)
	b.EmitReturn(testLoc(11), f.Scope, x)
	return f
}

// buildTwoBlock builds "func @two(x) { bb0: br bb1(x)  bb1(y): return y }".
func buildTwoBlock(m *mir.Module) *mir.Function {
	f := m.NewFunction("two", testLoc(20))
	f.Params = []*mir.Type{intType}
	f.ResultType = intType
	bb0 := f.NewBlock()
	x := bb0.AddParam(intType, mir.OwnershipOwned)
	bb1 := f.NewBlock()
	y := bb1.AddParam(intType, mir.OwnershipOwned)
	b := mir.NewBuilder(f)
	b.Loc, b.Scope = testLoc(21), f.Scope
	b.SetInsertionPointAtEnd(bb0)
	b.EmitBranch(testLoc(21), f.Scope, bb1, x)
	b.SetInsertionPointAtEnd(bb1)
	b.EmitReturn(testLoc(22), f.Scope, y)
	return f
}

// buildThrower builds "func @fail() { bb0: %e = integer_literal; throw %e }".
func buildThrower(m *mir.Module) *mir.Function {
	f := m.NewFunction("fail", testLoc(30))
	f.ResultType = intType
	bb := f.NewBlock()
	b := mir.NewBuilder(f)
	b.Loc, b.Scope = testLoc(31), f.Scope
	b.SetInsertionPointAtEnd(bb)
	e := b.EmitIntegerLiteral(mir.NamedType("Error"), 1)
	b.EmitThrow(testLoc(32), f.Scope, e)
	return f
}

// buildApplyCaller builds a single-block caller applying callee to a fresh
// literal, feeding the result into a struct and returning it. Returns the
// caller, the site, the argument literal, and the consumer instruction.
func buildApplyCaller(m *mir.Module, callee *mir.Function) (*mir.Function, ApplySite, *mir.Instr, *mir.Instr) {
	f := m.NewFunction("caller", testLoc(1))
	f.ResultType = mir.NamedType("Box")
	bb := f.NewBlock()
	b := mir.NewBuilder(f)
	b.Loc, b.Scope = testLoc(2), f.Scope
	b.SetInsertionPointAtEnd(bb)
	fr := b.EmitFunctionRef(callee)
	arg := b.EmitIntegerLiteral(intType, 7)
	call := b.EmitApply(fr, []mir.Value{arg}, intType)
	call.Loc = testLoc(3)
	consumer := b.EmitStruct(mir.NamedType("Box"), call)
	b.EmitReturn(testLoc(4), f.Scope, consumer)
	return f, Apply(call), arg, consumer
}

// owningFunction resolves which function defines a value, or nil for
// undef.
func owningFunction(v mir.Value) *mir.Function {
	switch x := v.(type) {
	case *mir.Instr:
		if x.Parent() != nil {
			return x.Parent().Function()
		}
	case *mir.Param:
		return x.Block().Function()
	}
	return nil
}

// assertNoCalleeValues checks the value-isolation invariant: no operand in
// caller references a value defined in callee.
func assertNoCalleeValues(t *testing.T, caller, callee *mir.Function) {
	t.Helper()
	for _, bb := range caller.Blocks {
		for _, in := range bb.Instrs {
			for _, op := range in.Operands {
				if owningFunction(op) == callee {
					t.Errorf("operand of %s still references callee value %v", in.Kind, op)
				}
			}
			for _, s := range in.Succs {
				for _, a := range s.Args {
					if owningFunction(a) == callee {
						t.Errorf("branch argument of %s still references callee value %v", in.Kind, a)
					}
				}
			}
		}
	}
}

func expectPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic: %s", what)
		}
	}()
	fn()
}

func TestCanInlineRejectsOnlySelfInlining(t *testing.T) {
	m := mir.NewModule("test")
	id := buildIdentity(m)
	caller, site, _, _ := buildApplyCaller(m, id)

	if !NewInliner(caller, id, PerformanceInline, caller.Scope).CanInline(site) {
		t.Errorf("cross-function site must be inlinable")
	}
	if NewInliner(caller, caller, PerformanceInline, caller.Scope).CanInline(site) {
		t.Errorf("self-inlining must be rejected")
	}
}

func TestLeafIdentityFastPath(t *testing.T) {
	m := mir.NewModule("test")
	id := buildIdentity(m)
	caller, site, arg, consumer := buildApplyCaller(m, id)
	blocksBefore := len(caller.Blocks)

	in := NewInliner(caller, id, MandatoryInline, caller.Scope)
	in.Inline(site, site.Args())

	if consumer.Operands[0] != mir.Value(arg) {
		t.Errorf("result use was not rethreaded to the argument")
	}
	if len(caller.Blocks) != blocksBefore {
		t.Errorf("fast path must not create blocks, went %d -> %d", blocksBefore, len(caller.Blocks))
	}
	if site.Instr().Parent() == nil {
		t.Errorf("the call instruction must survive; deleting it is the policy's job")
	}
	assertNoCalleeValues(t, caller, id)
}

func TestTwoBlockCalleeSplitsAndThreadsReturn(t *testing.T) {
	m := mir.NewModule("test")
	two := buildTwoBlock(m)
	caller, site, arg, consumer := buildApplyCaller(m, two)
	entry := site.Block()

	in := NewInliner(caller, two, PerformanceInline, caller.Scope)
	in.Inline(site, site.Args())

	if len(caller.Blocks) != 3 {
		t.Fatalf("expected entry + cloned block + return-to, got %d blocks", len(caller.Blocks))
	}
	cloned, returnTo := caller.Blocks[1], caller.Blocks[2]

	// The entry now ends in a branch into the cloned body, passing the
	// original argument.
	br := entry.Terminator()
	if br == nil || br.Kind != mir.InstrBranch || br.Succs[0].Block != cloned {
		t.Fatalf("entry must branch into the cloned body")
	}
	if br.Succs[0].Args[0] != mir.Value(arg) {
		t.Errorf("entry branch must carry the remapped argument")
	}

	// The cloned block's return became a branch into the return-to block.
	cbr := cloned.Terminator()
	if cbr.Kind != mir.InstrBranch || cbr.Succs[0].Block != returnTo {
		t.Fatalf("cloned return must branch to the return-to block")
	}
	if cbr.Loc.Kind != mir.LocInlined {
		t.Errorf("synthesized branch location must be marked inlined, got %v", cbr.Loc.Kind)
	}
	if cbr.Succs[0].Args[0] != mir.Value(cloned.Params[0]) {
		t.Errorf("cloned return must pass its own block parameter")
	}

	// The return-to block owns the threaded result.
	if len(returnTo.Params) != 1 {
		t.Fatalf("return-to block needs exactly one parameter, got %d", len(returnTo.Params))
	}
	p := returnTo.Params[0]
	if p.Ownership() != mir.OwnershipOwned {
		t.Errorf("threaded result must be owned, got %s", p.Ownership())
	}
	if consumer.Operands[0] != mir.Value(p) {
		t.Errorf("uses of the call result must reference the return-to parameter")
	}
	if site.Instr().Parent() != returnTo {
		t.Errorf("the call must have moved into the return-to block")
	}
	assertNoCalleeValues(t, caller, two)
}

func TestMultipleReturnsConvergeOnReturnTo(t *testing.T) {
	m := mir.NewModule("test")
	f := m.NewFunction("pick", testLoc(40))
	f.Params = []*mir.Type{intType}
	f.ResultType = intType
	bb0 := f.NewBlock()
	x := bb0.AddParam(intType, mir.OwnershipOwned)
	bb1 := f.NewBlock()
	bb2 := f.NewBlock()
	b := mir.NewBuilder(f)
	b.Loc, b.Scope = testLoc(41), f.Scope
	b.SetInsertionPointAtEnd(bb0)
	b.EmitCondBranch(testLoc(41), f.Scope, x, bb1, bb2)
	b.SetInsertionPointAtEnd(bb1)
	one := b.EmitIntegerLiteral(intType, 1)
	b.EmitReturn(testLoc(42), f.Scope, one)
	b.SetInsertionPointAtEnd(bb2)
	b.EmitReturn(testLoc(43), f.Scope, x)

	caller, site, arg, _ := buildApplyCaller(m, f)
	in := NewInliner(caller, f, PerformanceInline, caller.Scope)
	in.Inline(site, site.Args())

	returnTo := site.Instr().Parent()
	var preds []*mir.Instr
	for _, bb := range caller.Blocks {
		if term := bb.Terminator(); term != nil && term.Kind == mir.InstrBranch && term.Succs[0].Block == returnTo {
			preds = append(preds, term)
		}
	}
	if len(preds) != 2 {
		t.Fatalf("return-to block must gain two predecessors, got %d", len(preds))
	}
	seenArg := false
	for _, pred := range preds {
		if pred.Succs[0].Args[0] == mir.Value(arg) {
			seenArg = true
		}
	}
	if !seenArg {
		t.Errorf("one return path must thread the original argument")
	}
	assertNoCalleeValues(t, caller, f)
}

// buildTryApplyCaller builds a caller with "try_apply @callee() normal
// bbN(r), error bbE(q)".
func buildTryApplyCaller(m *mir.Module, callee *mir.Function) (*mir.Function, ApplySite) {
	f := m.NewFunction("trycaller", testLoc(50))
	f.ResultType = intType
	bb := f.NewBlock()
	normal := f.NewBlock()
	r := normal.AddParam(intType, mir.OwnershipOwned)
	errBB := f.NewBlock()
	q := errBB.AddParam(mir.NamedType("Error"), mir.OwnershipOwned)
	b := mir.NewBuilder(f)
	b.Loc, b.Scope = testLoc(51), f.Scope
	b.SetInsertionPointAtEnd(bb)
	fr := b.EmitFunctionRef(callee)
	call := b.EmitTryApply(fr, nil, normal, errBB)
	call.Loc = testLoc(52)
	b.SetInsertionPointAtEnd(normal)
	b.EmitReturn(testLoc(53), f.Scope, r)
	b.SetInsertionPointAtEnd(errBB)
	b.EmitThrow(testLoc(54), f.Scope, q)
	return f, Apply(call)
}

func TestThrowingCalleeUnderTryApply(t *testing.T) {
	m := mir.NewModule("test")
	thrower := buildThrower(m)
	caller, site := buildTryApplyCaller(m, thrower)
	normal, errBB := site.NormalBlock(), site.ErrorBlock()
	blocksBefore := len(caller.Blocks)

	in := NewInliner(caller, thrower, PerformanceInline, caller.Scope)
	in.Inline(site, nil)

	if len(caller.Blocks) != blocksBefore {
		t.Errorf("single-block thrower must not add blocks")
	}
	entry := site.Block()
	last := entry.Instrs[len(entry.Instrs)-1]
	if last.Kind != mir.InstrBranch || last.Succs[0].Block != errBB {
		t.Fatalf("caller tail must branch to the error successor")
	}
	thrown := last.Succs[0].Args[0]
	if owner := owningFunction(thrown); owner != caller {
		t.Errorf("thrown value must be the remapped clone, owner is %v", owner)
	}
	// The normal successor keeps its shape even though this path cannot
	// reach it.
	if len(normal.Params) != 1 {
		t.Errorf("normal successor must keep its result parameter")
	}
	assertNoCalleeValues(t, caller, thrower)
}

func TestThrowUnderNonThrowingApplyBecomesUnreachable(t *testing.T) {
	m := mir.NewModule("test")
	thrower := buildThrower(m)
	caller, site, _, _ := buildApplyCaller(m, thrower)
	// The thrower takes no parameters, so no arguments are bound.
	entry := site.Block()

	in := NewInliner(caller, thrower, PerformanceInline, caller.Scope)
	in.Inline(site, nil)

	last := entry.Instrs[len(entry.Instrs)-1]
	if last.Kind != mir.InstrUnreachable {
		t.Fatalf("throw reached from a non-throwing apply must become unreachable, got %s", last.Kind)
	}
	assertNoCalleeValues(t, caller, thrower)
}

func TestReturnAndThrowUnderTryApply(t *testing.T) {
	m := mir.NewModule("test")
	f := m.NewFunction("maybe", testLoc(60))
	f.Params = []*mir.Type{intType}
	f.ResultType = intType
	bb0 := f.NewBlock()
	x := bb0.AddParam(intType, mir.OwnershipOwned)
	bb1 := f.NewBlock()
	bb2 := f.NewBlock()
	b := mir.NewBuilder(f)
	b.Loc, b.Scope = testLoc(61), f.Scope
	b.SetInsertionPointAtEnd(bb0)
	b.EmitCondBranch(testLoc(61), f.Scope, x, bb1, bb2)
	b.SetInsertionPointAtEnd(bb1)
	b.EmitReturn(testLoc(62), f.Scope, x)
	b.SetInsertionPointAtEnd(bb2)
	e := b.EmitIntegerLiteral(mir.NamedType("Error"), 9)
	b.EmitThrow(testLoc(63), f.Scope, e)

	caller, site := buildTryApplyCaller(m, f)
	normal, errBB := site.NormalBlock(), site.ErrorBlock()

	in := NewInliner(caller, f, PerformanceInline, caller.Scope)
	lit := mir.NewBuilder(caller)
	lit.Loc, lit.Scope = testLoc(64), caller.Scope
	lit.SetInsertionPoint(site.Instr())
	a := lit.EmitIntegerLiteral(intType, 3)
	in.Inline(site, []mir.Value{a})

	var toNormal, toErr int
	for _, bb := range caller.Blocks {
		if term := bb.Terminator(); term != nil && term.Kind == mir.InstrBranch {
			switch term.Succs[0].Block {
			case normal:
				toNormal++
			case errBB:
				toErr++
			}
		}
	}
	if toNormal != 1 || toErr != 1 {
		t.Errorf("expected one new predecessor each for normal (%d) and error (%d)", toNormal, toErr)
	}
	assertNoCalleeValues(t, caller, f)
}

func TestMandatoryInlineDropsDebugAnnotations(t *testing.T) {
	for _, tc := range []struct {
		kind InlineKind
		want int
	}{
		{MandatoryInline, 0},
		{PerformanceInline, 1},
	} {
		m := mir.NewModule("test")
		f := m.NewFunction("dbg", testLoc(70))
		f.Params = []*mir.Type{intType}
		f.ResultType = intType
		bb := f.NewBlock()
		x := bb.AddParam(intType, mir.OwnershipOwned)
		b := mir.NewBuilder(f)
		b.Loc, b.Scope = testLoc(71), f.Scope
		b.SetInsertionPointAtEnd(bb)
		b.EmitDebugValue(x)
		b.EmitReturn(testLoc(72), f.Scope, x)

		caller, site, _, _ := buildApplyCaller(m, f)
		in := NewInliner(caller, f, tc.kind, caller.Scope)
		in.Inline(site, site.Args())

		got := 0
		for _, bb := range caller.Blocks {
			for _, inst := range bb.Instrs {
				if inst.Kind.IsDebug() {
					got++
				}
			}
		}
		if got != tc.want {
			t.Errorf("%s inlining: expected %d debug annotations in caller, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestInlineMarksCalleeInlined(t *testing.T) {
	m := mir.NewModule("test")
	id := buildIdentity(m)
	caller, site, _, _ := buildApplyCaller(m, id)
	if id.IsInlined() {
		t.Fatal("callee must start unmarked")
	}
	NewInliner(caller, id, PerformanceInline, caller.Scope).Inline(site, site.Args())
	if !id.IsInlined() {
		t.Errorf("callee must be marked inlined so its debug metadata survives")
	}
}

func TestInlineScopeChainReachesCallSite(t *testing.T) {
	m := mir.NewModule("test")
	two := buildTwoBlock(m)
	caller, site, _, _ := buildApplyCaller(m, two)

	in := NewInliner(caller, two, PerformanceInline, caller.Scope)
	in.Inline(site, site.Args())

	// Every cloned instruction's inlined-at chain must terminate at the
	// fresh call-site scope, whose location is the call's and whose
	// lexical parent is the call's scope.
	for _, bb := range caller.Blocks {
		for _, inst := range bb.Instrs {
			if inst == site.Instr() || inst.Scope == nil || inst.Scope.InlinedCallSite == nil {
				continue
			}
			root := inst.Scope.InlinedCallSite
			for root.InlinedCallSite != nil {
				root = root.InlinedCallSite
			}
			if root.Loc != site.Instr().Loc {
				t.Errorf("%s: inlined-at chain does not root at the call site", inst.Kind)
			}
			if root.ParentScope != caller.Scope {
				t.Errorf("%s: call-site scope must nest in the caller's scope", inst.Kind)
			}
			if root.ParentFunc != nil {
				t.Errorf("%s: call-site scope leaves parent-function unset", inst.Kind)
			}
		}
	}
}

func TestNestedPerformanceInlineChainsCallSites(t *testing.T) {
	m := mir.NewModule("test")

	// g contains a distinctive literal.
	g := m.NewFunction("g", testLoc(80))
	g.ResultType = intType
	gbb := g.NewBlock()
	gb := mir.NewBuilder(g)
	gb.Loc, gb.Scope = testLoc(81), g.Scope
	gb.SetInsertionPointAtEnd(gbb)
	marker := gb.EmitIntegerLiteral(intType, 42)
	gb.EmitReturn(testLoc(81), g.Scope, marker)

	// f applies g.
	f := m.NewFunction("f", testLoc(90))
	f.ResultType = intType
	fbb := f.NewBlock()
	fb := mir.NewBuilder(f)
	fb.Loc, fb.Scope = testLoc(91), f.Scope
	fb.SetInsertionPointAtEnd(fbb)
	gref := fb.EmitFunctionRef(g)
	gcall := fb.EmitApply(gref, nil, intType)
	gcall.Loc = testLoc(92)
	fb.EmitReturn(testLoc(93), f.Scope, gcall)

	gIn := NewInliner(f, g, PerformanceInline, f.Scope)
	gIn.Inline(Apply(gcall), nil)
	gcall.Parent().RemoveInstr(gcall)

	// h applies f.
	h := m.NewFunction("h", testLoc(100))
	h.ResultType = intType
	hbb := h.NewBlock()
	hb := mir.NewBuilder(h)
	hb.Loc, hb.Scope = testLoc(101), h.Scope
	hb.SetInsertionPointAtEnd(hbb)
	fref := hb.EmitFunctionRef(f)
	fcall := hb.EmitApply(fref, nil, intType)
	fcall.Loc = testLoc(102)
	hb.EmitReturn(testLoc(103), h.Scope, fcall)

	fIn := NewInliner(h, f, PerformanceInline, h.Scope)
	fIn.Inline(Apply(fcall), nil)
	fcall.Parent().RemoveInstr(fcall)

	// Find the clone of g's literal inside h.
	var clone *mir.Instr
	for _, bb := range h.Blocks {
		for _, inst := range bb.Instrs {
			if inst.Kind == mir.InstrIntegerLiteral && inst.IntValue == 42 {
				clone = inst
			}
		}
	}
	if clone == nil {
		t.Fatal("g's literal did not reach h")
	}
	if got := clone.Scope.InlineDepth(); got != 2 {
		t.Fatalf("expected inline depth 2, got %d", got)
	}
	inner := clone.Scope.InlinedCallSite
	outer := inner.InlinedCallSite
	if inner.Loc != (testLoc(92)) {
		t.Errorf("innermost inlined-at must be the call site in f, got %v", inner.Loc)
	}
	if outer.Loc != (testLoc(102)) {
		t.Errorf("root inlined-at must be the call site in h, got %v", outer.Loc)
	}
}

func TestInlinePreconditionPanics(t *testing.T) {
	m := mir.NewModule("test")
	id := buildIdentity(m)
	caller, site, _, _ := buildApplyCaller(m, id)

	expectPanic(t, "argument count mismatch", func() {
		NewInliner(caller, id, PerformanceInline, caller.Scope).Inline(site, nil)
	})

	foreign := buildIdentity(m)
	foreign.Name = "cfunc"
	foreign.Representation = mir.RepForeignC
	caller2, site2, _, _ := buildApplyCaller(m, foreign)
	expectPanic(t, "mandatory inline of foreign callee", func() {
		NewInliner(caller2, foreign, MandatoryInline, caller2.Scope).Inline(site2, site2.Args())
	})

	expectPanic(t, "site from the wrong caller", func() {
		NewInliner(foreign, id, PerformanceInline, foreign.Scope).Inline(site, site.Args())
	})
}

func TestInlineAllRespectsThresholdAndDeletesCalls(t *testing.T) {
	m := mir.NewModule("test")
	id := buildIdentity(m)

	big := m.NewFunction("big", testLoc(110))
	big.Params = []*mir.Type{intType}
	big.ResultType = intType
	bbb := big.NewBlock()
	x := bbb.AddParam(intType, mir.OwnershipOwned)
	bb := mir.NewBuilder(big)
	bb.Loc, bb.Scope = testLoc(111), big.Scope
	bb.SetInsertionPointAtEnd(bbb)
	slot := bb.EmitAllocStack(intType)
	bb.EmitStore(x, slot)
	loaded := bb.EmitLoad(slot, intType)
	bb.EmitDeallocStack(slot)
	bb.EmitReturn(testLoc(112), big.Scope, loaded)

	caller := m.NewFunction("main", testLoc(120))
	caller.ResultType = intType
	cbb := caller.NewBlock()
	cb := mir.NewBuilder(caller)
	cb.Loc, cb.Scope = testLoc(121), caller.Scope
	cb.SetInsertionPointAtEnd(cbb)
	a := cb.EmitIntegerLiteral(intType, 5)
	idRef := cb.EmitFunctionRef(id)
	c1 := cb.EmitApply(idRef, []mir.Value{a}, intType)
	bigRef := cb.EmitFunctionRef(big)
	c2 := cb.EmitApply(bigRef, []mir.Value{c1}, intType)
	cb.EmitReturn(testLoc(122), caller.Scope, c2)

	// @id costs 0 (return only); @big costs 4.
	if n := InlineAll(caller, 0, PerformanceInline); n != 1 {
		t.Fatalf("expected exactly the identity call inlined, got %d", n)
	}
	for _, bb := range caller.Blocks {
		for _, inst := range bb.Instrs {
			if inst == c1 {
				t.Errorf("inlined call must be deleted")
			}
		}
	}
	if c2.Parent() == nil {
		t.Errorf("call over threshold must survive")
	}
	if c2.Operands[1] != mir.Value(a) {
		t.Errorf("surviving call must consume the threaded identity result")
	}
}
