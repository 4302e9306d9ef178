// Tests for the MIR data structures: block surgery, use replacement, and
// the builder's insertion-point discipline.
package mir

import (
	"strings"
	"testing"
)

func testLoc(line int) Location {
	return Location{File: "test.rl", Line: line, Col: 1}
}

func TestBuilderInsertsBeforePoint(t *testing.T) {
	m := NewModule("test")
	f := m.NewFunction("f", testLoc(1))
	bb := f.NewBlock()

	b := NewBuilder(f)
	b.Scope = f.Scope
	b.SetInsertionPointAtEnd(bb)
	first := b.EmitIntegerLiteral(NamedType("Int"), 1)
	ret := b.EmitReturn(testLoc(2), f.Scope, first)

	b.SetInsertionPoint(ret)
	second := b.EmitIntegerLiteral(NamedType("Int"), 2)

	if len(bb.Instrs) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(bb.Instrs))
	}
	if bb.Instrs[0] != first || bb.Instrs[1] != second || bb.Instrs[2] != ret {
		t.Errorf("unexpected instruction order: %v", bb.Instrs)
	}
	if second.Parent() != bb {
		t.Errorf("inserted instruction has wrong parent")
	}
}

func TestSplitAtMovesTailWithoutBranch(t *testing.T) {
	m := NewModule("test")
	f := m.NewFunction("f", testLoc(1))
	bb := f.NewBlock()

	b := NewBuilder(f)
	b.Scope = f.Scope
	b.SetInsertionPointAtEnd(bb)
	lit := b.EmitIntegerLiteral(NamedType("Int"), 7)
	dv := b.EmitDebugValue(lit)
	ret := b.EmitReturn(testLoc(3), f.Scope, lit)

	tail := bb.SplitAt(dv)

	if len(bb.Instrs) != 1 || bb.Instrs[0] != lit {
		t.Fatalf("predecessor should keep only the literal, got %d instructions", len(bb.Instrs))
	}
	if bb.Terminator() != nil {
		t.Errorf("split must not insert a terminator into the predecessor")
	}
	if len(tail.Instrs) != 2 || tail.Instrs[0] != dv || tail.Instrs[1] != ret {
		t.Fatalf("tail should hold the split instruction and everything after it")
	}
	if dv.Parent() != tail || ret.Parent() != tail {
		t.Errorf("moved instructions must be reparented to the tail")
	}
	if len(f.Blocks) != 2 || f.Blocks[0] != bb || f.Blocks[1] != tail {
		t.Errorf("tail should directly follow the split block in the block list")
	}
}

func TestReplaceAllUsesRewritesOperandsAndBranchArgs(t *testing.T) {
	m := NewModule("test")
	f := m.NewFunction("f", testLoc(1))
	bb0 := f.NewBlock()
	bb1 := f.NewBlock()
	p := bb1.AddParam(NamedType("Int"), OwnershipOwned)

	b := NewBuilder(f)
	b.Scope = f.Scope
	b.SetInsertionPointAtEnd(bb0)
	old := b.EmitIntegerLiteral(NamedType("Int"), 1)
	b.EmitBranch(testLoc(2), f.Scope, bb1, old)
	b.SetInsertionPointAtEnd(bb1)
	b.EmitReturn(testLoc(3), f.Scope, p)

	b.SetInsertionPoint(old)
	replacement := b.EmitIntegerLiteral(NamedType("Int"), 2)

	f.ReplaceAllUses(old, replacement)

	br := bb0.Terminator()
	if br.Succs[0].Args[0] != Value(replacement) {
		t.Errorf("branch argument was not rewritten")
	}
	if bb1.Terminator().Operands[0] != Value(p) {
		t.Errorf("unrelated operand must stay untouched")
	}
}

func TestMoveBlockBeforeAndToEnd(t *testing.T) {
	m := NewModule("test")
	f := m.NewFunction("f", testLoc(1))
	a := f.NewBlock()
	bb := f.NewBlock()
	c := f.NewBlock()

	f.MoveBlockBefore(c, bb)
	if f.Blocks[0] != a || f.Blocks[1] != c || f.Blocks[2] != bb {
		t.Fatalf("unexpected order after MoveBlockBefore: %v", f.Blocks)
	}
	f.MoveBlockToEnd(a)
	if f.Blocks[0] != c || f.Blocks[1] != bb || f.Blocks[2] != a {
		t.Fatalf("unexpected order after MoveBlockToEnd: %v", f.Blocks)
	}
}

func TestScopeArenaOwnership(t *testing.T) {
	m := NewModule("test")
	f := m.NewFunction("f", testLoc(1))
	before := m.NumScopes()
	s := m.NewScope(testLoc(4), nil, f.Scope, nil)
	if m.NumScopes() != before+1 {
		t.Errorf("scope was not recorded in the module arena")
	}
	if s.ParentScope != f.Scope {
		t.Errorf("lexical parent lost")
	}
	if s.InlineDepth() != 0 {
		t.Errorf("fresh scope must have inline depth 0, got %d", s.InlineDepth())
	}
}

func TestPrinterEmitsStableForm(t *testing.T) {
	m := NewModule("demo")
	f := m.NewFunction("id", testLoc(1))
	f.Params = []*Type{NamedType("Int")}
	f.ResultType = NamedType("Int")
	bb := f.NewBlock()
	x := bb.AddParam(NamedType("Int"), OwnershipOwned)

	b := NewBuilder(f)
	b.Scope = f.Scope
	b.SetInsertionPointAtEnd(bb)
	b.EmitReturn(testLoc(1), f.Scope, x)

	got := m.String()
	want := "; mir-format " + FormatVersion + "\n" +
		"module demo\n" +
		"\n" +
		"func @id : $(Int) -> Int {\n" +
		"bb0(%0 : $Int owned):\n" +
		"  return %0\n" +
		"}\n"
	if got != want {
		t.Errorf("printer output mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestPrinterMarksForeignRepresentation(t *testing.T) {
	m := NewModule("demo")
	f := m.NewFunction("cfn", testLoc(1))
	f.ResultType = NamedType("()")
	f.Representation = RepForeignC
	bb := f.NewBlock()
	b := NewBuilder(f)
	b.Scope = f.Scope
	b.SetInsertionPointAtEnd(bb)
	b.EmitUnreachable(testLoc(1), f.Scope)

	if !strings.Contains(f.String(), "[foreign_c]") {
		t.Errorf("foreign representation missing from header:\n%s", f.String())
	}
}
