package mir

import (
	"fmt"
	"strconv"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// formatConstraint is the range of .mir format versions this parser
// accepts.
var formatConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint(">= 1.0.0, < 2.0.0")
	if err != nil {
		panic(err)
	}
	return c
}()

// instrKindByName maps textual mnemonics back to kinds.
var instrKindByName = func() map[string]InstrKind {
	m := make(map[string]InstrKind, numInstrKinds)
	for k := InstrInvalid + 1; k < numInstrKinds; k++ {
		m[instrKindNames[k]] = k
	}
	return m
}()

// ParseModule parses the textual .mir form produced by Module.String. The
// text must open with a "; mir-format <version>" header inside the
// supported range. The parser accepts the instruction subset the printer
// emits for optimizer fixtures; unknown or unsupported instructions are
// reported with their line number.
func ParseModule(src string) (*Module, error) {
	p := &parser{lines: strings.Split(src, "\n")}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	for {
		line, ok := p.next()
		if !ok {
			break
		}
		if !strings.HasPrefix(line, "func @") {
			return nil, p.errf("expected function, got %q", line)
		}
		if err := p.parseFunction(line); err != nil {
			return nil, err
		}
	}
	if p.module.Name == "" {
		return nil, fmt.Errorf("mir: missing module declaration")
	}
	return p.module, nil
}

type parser struct {
	lines  []string
	n      int // current line number, 1-based after next()
	module *Module
}

// next returns the next significant line, skipping blanks and comments.
func (p *parser) next() (string, bool) {
	for p.n < len(p.lines) {
		line := strings.TrimRight(p.lines[p.n], " \t\r")
		p.n++
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}
		return line, true
	}
	return "", false
}

func (p *parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("mir: line %d: %s", p.n, fmt.Sprintf(format, args...))
}

// parseHeader consumes the mir-format version line and the module
// declaration.
func (p *parser) parseHeader() error {
	var version string
	for p.n < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.n])
		p.n++
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "; mir-format"); ok {
			version = strings.TrimSpace(rest)
			break
		}
		return fmt.Errorf("mir: missing \"; mir-format\" header")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("mir: bad format version %q: %w", version, err)
	}
	if !formatConstraint.Check(v) {
		return fmt.Errorf("mir: format version %s outside supported range %s", v, formatConstraint)
	}
	line, ok := p.next()
	if !ok {
		return fmt.Errorf("mir: missing module declaration")
	}
	name, ok := strings.CutPrefix(line, "module ")
	if !ok {
		return p.errf("expected module declaration, got %q", line)
	}
	p.module = NewModule(strings.TrimSpace(name))
	return nil
}

// parseFunction parses one "func @name : $(A, B) -> R [rep] {" body.
func (p *parser) parseFunction(header string) error {
	sc := newScanner(header)
	sc.expect("func @")
	name := sc.ident()
	sc.expect(" : $(")
	var params []*Type
	for !sc.consume(")") {
		if len(params) > 0 {
			sc.expect(", ")
		}
		params = append(params, NamedType(sc.typeName()))
	}
	sc.expect(" -> ")
	result := "()"
	if !sc.consume("()") {
		result = sc.typeName()
	}
	rep := RepNative
	if sc.consume(" [foreign_method]") {
		rep = RepForeignMethod
	} else if sc.consume(" [foreign_c]") {
		rep = RepForeignC
	}
	sc.expect(" {")
	if sc.err != nil {
		return p.errf("bad function header: %v", sc.err)
	}

	f := p.module.NewFunction(name, AutoGeneratedLocation())
	f.Params = params
	f.ResultType = NamedType(result)
	f.Representation = rep

	// Collect the body so blocks can be created before branches that
	// reference them forward.
	start := p.n
	var body []string
	for {
		line, ok := p.next()
		if !ok {
			return p.errf("unterminated function @%s", name)
		}
		if strings.TrimSpace(line) == "}" {
			break
		}
		body = append(body, line)
	}
	end := p.n

	values := map[string]Value{"undef": Undef}
	blocks := map[string]*Block{}

	// First pass: block headers, in file order.
	p.n = start
	for _, line := range body {
		p.n++
		if strings.HasPrefix(line, "  ") {
			continue
		}
		label, bb, err := p.parseBlockHeader(f, line, values)
		if err != nil {
			return err
		}
		if _, dup := blocks[label]; dup {
			return p.errf("duplicate block %s", label)
		}
		blocks[label] = bb
	}

	// Second pass: instructions.
	b := NewBuilder(f)
	b.Scope = f.Scope
	p.n = start
	var cur *Block
	for _, line := range body {
		p.n++
		if !strings.HasPrefix(line, "  ") {
			cut := strings.IndexAny(line, "(:")
			if cut < 0 {
				return p.errf("malformed block header %q", line)
			}
			cur = blocks[line[:cut]]
			b.SetInsertionPointAtEnd(cur)
			continue
		}
		if cur == nil {
			return p.errf("instruction outside block: %q", line)
		}
		if err := p.parseInstr(b, strings.TrimSpace(line), values, blocks); err != nil {
			return err
		}
	}
	p.n = end
	return nil
}

// parseBlockHeader parses "bb0(%0 : $Int owned, %1 : $Int):" or "bb1:".
func (p *parser) parseBlockHeader(f *Function, line string, values map[string]Value) (string, *Block, error) {
	sc := newScanner(line)
	label := sc.ident()
	bb := f.NewBlock()
	if sc.consume("(") {
		first := true
		for !sc.consume(")") {
			if !first {
				sc.expect(", ")
			}
			first = false
			ref := sc.valueRef()
			sc.expect(" : $")
			typ := NamedType(sc.typeName())
			own := OwnershipAny
			for k := OwnershipOwned; k <= OwnershipTrivial; k++ {
				if sc.consume(" " + k.String()) {
					own = k
					break
				}
			}
			param := bb.AddParam(typ, own)
			values[ref] = param
		}
	}
	sc.expect(":")
	if sc.err != nil {
		return "", nil, p.errf("bad block header: %v", sc.err)
	}
	return label, bb, nil
}

// parseInstr parses a single instruction line at the builder's insertion
// point.
func (p *parser) parseInstr(b *Builder, line string, values map[string]Value, blocks map[string]*Block) error {
	sc := newScanner(line)

	result := ""
	if strings.HasPrefix(line, "%") {
		result = sc.valueRef()
		sc.expect(" = ")
	}
	mnemonic := sc.ident()
	kind, ok := instrKindByName[mnemonic]
	if !ok {
		return p.errf("unknown instruction %q", mnemonic)
	}

	in := &Instr{Kind: kind}
	switch kind {
	case InstrIntegerLiteral:
		sc.expect(" $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipTrivial
		sc.expect(", ")
		in.IntValue = sc.integer()
	case InstrFloatLiteral:
		sc.expect(" $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipTrivial
		sc.expect(", ")
		in.FloatValue = sc.float()
	case InstrStringLiteral, InstrUntypedStringLiteral:
		sc.expect(" ")
		in.StrValue = sc.quoted()
		in.ResultType = NamedType("String")
		in.ResultOwnership = OwnershipOwned
	case InstrFunctionRef:
		sc.expect(" @")
		in.StrValue = sc.ident()
		in.ResultType = NamedType("(" + in.StrValue + ")")
		in.ResultOwnership = OwnershipTrivial
	case InstrBuiltin:
		sc.expect(" ")
		in.StrValue = sc.quoted()
		in.Operands = sc.valueList(values)
		sc.expect(" : $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipTrivial
	case InstrApply:
		sc.expect(" ")
		callee := sc.value(values)
		args := sc.valueList(values)
		sc.expect(" : $")
		in.Operands = append([]Value{callee}, args...)
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipOwned
	case InstrTryApply:
		sc.expect(" ")
		callee := sc.value(values)
		args := sc.valueList(values)
		in.Operands = append([]Value{callee}, args...)
		sc.expect(" : normal ")
		normal := sc.succ(values, blocks)
		sc.expect(", error ")
		errSucc := sc.succ(values, blocks)
		in.Succs = []Succ{normal, errSucc}
	case InstrBranch:
		sc.expect(" ")
		in.Succs = []Succ{sc.succ(values, blocks)}
	case InstrCondBranch:
		sc.expect(" ")
		cond := sc.value(values)
		sc.expect(", ")
		t := sc.succ(values, blocks)
		sc.expect(", ")
		fs := sc.succ(values, blocks)
		in.Operands = []Value{cond}
		in.Succs = []Succ{t, fs}
	case InstrSwitchEnum:
		sc.expect(" ")
		in.Operands = []Value{sc.value(values)}
		sc.expect(" :")
		for sc.consume(" #") || sc.consume(", #") {
			in.Cases = append(in.Cases, sc.ident())
			sc.expect(" ")
			in.Succs = append(in.Succs, sc.succ(values, blocks))
		}
	case InstrEnum:
		sc.expect(" $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipOwned
		sc.expect(", #")
		in.StrValue = sc.ident()
		if sc.peekIs('(') {
			in.Operands = sc.valueList(values)
		}
	case InstrStruct, InstrTuple:
		sc.expect(" $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipOwned
		in.Operands = sc.valueList(values)
	case InstrStructExtract, InstrTupleExtract, InstrStructElementAddr, InstrTupleElementAddr:
		sc.expect(" ")
		in.Operands = []Value{sc.value(values)}
		sc.expect(", #")
		in.IntValue = sc.integer()
		sc.expect(" : $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipGuaranteed
	case InstrAllocStack:
		sc.expect(" $")
		in.StrValue = sc.typeName()
		in.ResultType = NamedType("*" + in.StrValue)
	case InstrMetatype:
		sc.expect(" $@")
		switch {
		case sc.consume("thin "):
			in.MetatypeRep = MetatypeThin
		case sc.consume("thick "):
			in.MetatypeRep = MetatypeThick
		case sc.consume("foreign "):
			in.MetatypeRep = MetatypeForeign
		default:
			sc.fail("metatype representation")
		}
		full := sc.typeName()
		in.StrValue = strings.TrimSuffix(full, ".Type")
		in.ResultType = NamedType("@" + in.MetatypeRep.String() + " " + full)
		in.ResultOwnership = OwnershipTrivial
	case InstrBeginAccess, InstrEndAccess, InstrBeginUnpairedAccess, InstrEndUnpairedAccess:
		sc.expect(" [")
		switch {
		case sc.consume("static"):
			in.Enforcement = EnforcementStatic
		case sc.consume("dynamic"):
			in.Enforcement = EnforcementDynamic
		case sc.consume("unsafe"):
			in.Enforcement = EnforcementUnsafe
		case sc.consume("unknown"):
			in.Enforcement = EnforcementUnknown
		default:
			sc.fail("enforcement")
		}
		sc.expect("] ")
		in.Operands = []Value{sc.value(values)}
		if kind == InstrBeginAccess || kind == InstrBeginUnpairedAccess {
			in.ResultType = in.Operands[0].Type()
		}
	case InstrLoad:
		sc.expect(" ")
		in.Operands = []Value{sc.value(values)}
		sc.expect(" : $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipOwned
	case InstrStore, InstrCopyAddr, InstrAssign:
		sc.expect(" ")
		in.Operands = []Value{sc.value(values)}
		sc.expect(", ")
		in.Operands = append(in.Operands, sc.value(values))
	case InstrReturn, InstrThrow, InstrDebugValue, InstrDebugValueAddr,
		InstrDeallocStack, InstrDestroyValue, InstrDestroyAddr,
		InstrFixLifetime, InstrEndLifetime, InstrEndBorrow,
		InstrStrongRetain, InstrStrongRelease, InstrRetainValue,
		InstrReleaseValue, InstrCondFail:
		sc.expect(" ")
		in.Operands = []Value{sc.value(values)}
	case InstrCopyValue, InstrBeginBorrow, InstrLoadBorrow, InstrUpcast:
		sc.expect(" ")
		in.Operands = []Value{sc.value(values)}
		sc.expect(" : $")
		in.ResultType = NamedType(sc.typeName())
		in.ResultOwnership = OwnershipOwned
	case InstrUnreachable:
		// no operands
	default:
		return p.errf("instruction %q not supported in textual form", mnemonic)
	}
	if sc.err != nil {
		return p.errf("bad %s: %v", mnemonic, sc.err)
	}
	if !sc.done() {
		return p.errf("trailing text in %s: %q", mnemonic, sc.rest())
	}
	if (result != "") != in.HasResult() {
		return p.errf("%s: result mismatch", mnemonic)
	}
	emitted := b.Emit(in)
	if result != "" {
		if _, dup := values[result]; dup {
			return p.errf("redefinition of %s", result)
		}
		values[result] = emitted
	}
	return nil
}

// scanner is a cursor over one source line.
type scanner struct {
	s   string
	i   int
	err error
}

func newScanner(s string) *scanner { return &scanner{s: strings.TrimSpace(s)} }

func (sc *scanner) done() bool   { return sc.err != nil || sc.i >= len(sc.s) }
func (sc *scanner) rest() string { return sc.s[sc.i:] }

func (sc *scanner) fail(what string) {
	if sc.err == nil {
		sc.err = fmt.Errorf("expected %s at %q", what, sc.s[sc.i:])
	}
}

func (sc *scanner) peekIs(c byte) bool {
	return sc.err == nil && sc.i < len(sc.s) && sc.s[sc.i] == c
}

// consume advances past the literal prefix if present.
func (sc *scanner) consume(prefix string) bool {
	if sc.err != nil || !strings.HasPrefix(sc.s[sc.i:], prefix) {
		return false
	}
	sc.i += len(prefix)
	return true
}

// expect advances past the literal prefix or records an error.
func (sc *scanner) expect(prefix string) {
	if !sc.consume(prefix) {
		sc.fail(strconv.Quote(prefix))
	}
}

// ident scans an identifier [A-Za-z0-9_]+.
func (sc *scanner) ident() string {
	if sc.err != nil {
		return ""
	}
	start := sc.i
	for sc.i < len(sc.s) {
		c := sc.s[sc.i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			sc.i++
			continue
		}
		break
	}
	if sc.i == start {
		sc.fail("identifier")
		return ""
	}
	return sc.s[start:sc.i]
}

// typeName scans a type spelling, stopping at a structural delimiter.
func (sc *scanner) typeName() string {
	if sc.err != nil {
		return ""
	}
	start := sc.i
	for sc.i < len(sc.s) {
		c := sc.s[sc.i]
		if c == ',' || c == ')' || c == '(' || c == ':' || c == ' ' || c == '{' {
			break
		}
		sc.i++
	}
	if sc.i == start {
		sc.fail("type")
		return ""
	}
	return sc.s[start:sc.i]
}

// valueRef scans "%N" or "undef" and returns the textual name.
func (sc *scanner) valueRef() string {
	if sc.consume("undef") {
		return "undef"
	}
	sc.expect("%")
	return "%" + sc.ident()
}

// value scans a value reference and resolves it.
func (sc *scanner) value(values map[string]Value) Value {
	ref := sc.valueRef()
	if sc.err != nil {
		return nil
	}
	v, ok := values[ref]
	if !ok {
		sc.err = fmt.Errorf("use of undefined value %s", ref)
		return nil
	}
	return v
}

// valueList scans "(%a, %b)".
func (sc *scanner) valueList(values map[string]Value) []Value {
	sc.expect("(")
	var out []Value
	for !sc.consume(")") {
		if len(out) > 0 {
			sc.expect(", ")
		}
		v := sc.value(values)
		if sc.err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// succ scans "bbN" with an optional "(%a, %b)" argument list.
func (sc *scanner) succ(values map[string]Value, blocks map[string]*Block) Succ {
	label := sc.ident()
	if sc.err != nil {
		return Succ{}
	}
	bb, ok := blocks[label]
	if !ok {
		sc.err = fmt.Errorf("branch to undefined block %s", label)
		return Succ{}
	}
	s := Succ{Block: bb}
	if sc.peekIs('(') {
		s.Args = sc.valueList(values)
	}
	return s
}

// integer scans a possibly signed decimal integer.
func (sc *scanner) integer() int64 {
	if sc.err != nil {
		return 0
	}
	start := sc.i
	if sc.peekIs('-') {
		sc.i++
	}
	for sc.i < len(sc.s) && sc.s[sc.i] >= '0' && sc.s[sc.i] <= '9' {
		sc.i++
	}
	n, err := strconv.ParseInt(sc.s[start:sc.i], 10, 64)
	if err != nil {
		sc.err = fmt.Errorf("bad integer at %q", sc.s[start:])
	}
	return n
}

// float scans a floating-point literal.
func (sc *scanner) float() float64 {
	if sc.err != nil {
		return 0
	}
	start := sc.i
	for sc.i < len(sc.s) {
		c := sc.s[sc.i]
		if c == ',' || c == ' ' {
			break
		}
		sc.i++
	}
	f, err := strconv.ParseFloat(sc.s[start:sc.i], 64)
	if err != nil {
		sc.err = fmt.Errorf("bad float at %q", sc.s[start:])
	}
	return f
}

// quoted scans a Go-quoted string.
func (sc *scanner) quoted() string {
	if sc.err != nil {
		return ""
	}
	if !sc.peekIs('"') {
		sc.fail("quoted string")
		return ""
	}
	end := sc.i + 1
	for end < len(sc.s) {
		if sc.s[end] == '\\' {
			end += 2
			continue
		}
		if sc.s[end] == '"' {
			break
		}
		end++
	}
	if end >= len(sc.s) {
		sc.fail("closing quote")
		return ""
	}
	out, err := strconv.Unquote(sc.s[sc.i : end+1])
	if err != nil {
		sc.err = fmt.Errorf("bad string literal: %w", err)
		return ""
	}
	sc.i = end + 1
	return out
}
