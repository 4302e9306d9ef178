package mir

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatVersion is the version stamped on printed .mir text.
const FormatVersion = "1.0.0"

func (m *Module) String() string {
	if m == nil {
		return "<nil-mir-module>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "; mir-format %s\n", FormatVersion)
	fmt.Fprintf(&b, "module %s\n", m.Name)
	for _, f := range m.Functions {
		b.WriteByte('\n')
		b.WriteString(f.String())
	}
	return b.String()
}

func (f *Function) String() string {
	if f == nil {
		return "<nil-func>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "func @%s : $(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
	}
	b.WriteString(") -> ")
	if f.ResultType != nil {
		b.WriteString(f.ResultType.Name)
	} else {
		b.WriteString("()")
	}
	if f.Representation != RepNative {
		fmt.Fprintf(&b, " [%s]", f.Representation)
	}
	b.WriteString(" {\n")
	for i, bb := range f.Blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(bb.longString())
	}
	b.WriteString("}\n")
	return b.String()
}

func (b *Block) longString() string {
	var sb strings.Builder
	sb.WriteString(b.String())
	if len(b.Params) > 0 {
		sb.WriteByte('(')
		for i, p := range b.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s : %s", p.valueRef(), p.typ)
			if p.own != OwnershipAny {
				sb.WriteByte(' ')
				sb.WriteString(p.own.String())
			}
		}
		sb.WriteByte(')')
	}
	sb.WriteString(":\n")
	for _, in := range b.Instrs {
		sb.WriteString("  ")
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (in *Instr) String() string {
	var b strings.Builder
	if in.HasResult() {
		fmt.Fprintf(&b, "%s = ", in.valueRef())
	}
	b.WriteString(in.Kind.String())
	switch in.Kind {
	case InstrIntegerLiteral:
		fmt.Fprintf(&b, " %s, %d", in.ResultType, in.IntValue)
	case InstrFloatLiteral:
		fmt.Fprintf(&b, " %s, %s", in.ResultType, strconv.FormatFloat(in.FloatValue, 'g', -1, 64))
	case InstrStringLiteral, InstrUntypedStringLiteral:
		fmt.Fprintf(&b, " %q", in.StrValue)
	case InstrFunctionRef:
		fmt.Fprintf(&b, " @%s", in.StrValue)
	case InstrGlobalAddr, InstrGlobalValue, InstrAllocGlobal:
		fmt.Fprintf(&b, " @%s", in.StrValue)
	case InstrBuiltin:
		fmt.Fprintf(&b, " %q", in.StrValue)
		writeOperandList(&b, in.Operands)
		fmt.Fprintf(&b, " : %s", in.ResultType)
	case InstrApply:
		b.WriteByte(' ')
		b.WriteString(in.Operands[0].valueRef())
		writeOperandList(&b, in.Operands[1:])
		fmt.Fprintf(&b, " : %s", in.ResultType)
	case InstrTryApply:
		b.WriteByte(' ')
		b.WriteString(in.Operands[0].valueRef())
		writeOperandList(&b, in.Operands[1:])
		fmt.Fprintf(&b, " : normal %s, error %s", succString(in.Succs[0]), succString(in.Succs[1]))
	case InstrBranch:
		fmt.Fprintf(&b, " %s", succString(in.Succs[0]))
	case InstrCondBranch:
		fmt.Fprintf(&b, " %s, %s, %s", in.Operands[0].valueRef(), succString(in.Succs[0]), succString(in.Succs[1]))
	case InstrSwitchEnum, InstrSwitchEnumAddr:
		fmt.Fprintf(&b, " %s :", in.Operands[0].valueRef())
		for i, s := range in.Succs {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, " #%s %s", in.Cases[i], succString(s))
		}
	case InstrEnum:
		fmt.Fprintf(&b, " %s, #%s", in.ResultType, in.StrValue)
		if len(in.Operands) > 0 {
			writeOperandList(&b, in.Operands)
		}
	case InstrStruct, InstrTuple:
		fmt.Fprintf(&b, " %s", in.ResultType)
		writeOperandList(&b, in.Operands)
	case InstrStructExtract, InstrTupleExtract, InstrStructElementAddr, InstrTupleElementAddr:
		fmt.Fprintf(&b, " %s, #%d : %s", in.Operands[0].valueRef(), in.IntValue, in.ResultType)
	case InstrAllocStack:
		fmt.Fprintf(&b, " $%s", in.StrValue)
	case InstrMetatype:
		fmt.Fprintf(&b, " $@%s %s.Type", in.MetatypeRep, in.StrValue)
	case InstrBeginAccess, InstrEndAccess, InstrBeginUnpairedAccess, InstrEndUnpairedAccess:
		fmt.Fprintf(&b, " [%s]", in.Enforcement)
		writeOperands(&b, in.Operands)
	case InstrLoad:
		fmt.Fprintf(&b, " %s : %s", in.Operands[0].valueRef(), in.ResultType)
	default:
		writeOperands(&b, in.Operands)
		if in.HasResult() {
			fmt.Fprintf(&b, " : %s", in.ResultType)
		}
		for i, s := range in.Succs {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, " %s", succString(s))
		}
	}
	return b.String()
}

// writeOperands prints " %a, %b" for a bare operand list.
func writeOperands(b *strings.Builder, ops []Value) {
	for i, op := range ops {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		b.WriteString(op.valueRef())
	}
}

// writeOperandList prints "(%a, %b)" for a call-style argument list.
func writeOperandList(b *strings.Builder, ops []Value) {
	b.WriteByte('(')
	for i, op := range ops {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(op.valueRef())
	}
	b.WriteByte(')')
}

func succString(s Succ) string {
	if len(s.Args) == 0 {
		return s.Block.String()
	}
	var b strings.Builder
	b.WriteString(s.Block.String())
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.valueRef())
	}
	b.WriteByte(')')
	return b.String()
}
