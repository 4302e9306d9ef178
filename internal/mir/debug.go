package mir

import "fmt"

// LocKind marks how a location reached its current position in the code.
type LocKind int

const (
	LocNormal            LocKind = iota
	LocInlined                   // reached by performance inlining
	LocMandatoryInlined          // reached by mandatory inlining
	LocAutoGenerated             // compiler-synthesized, no source range
)

// Location is a source-range datum attached to instructions and scopes.
type Location struct {
	File string
	Line int
	Col  int
	Kind LocKind
}

// InlinedLocation wraps a location, marking it as reached by performance
// inlining.
func InlinedLocation(l Location) Location {
	l.Kind = LocInlined
	return l
}

// MandatoryInlinedLocation wraps a location, marking it as reached by
// mandatory inlining.
func MandatoryInlinedLocation(l Location) Location {
	l.Kind = LocMandatoryInlined
	return l
}

// AutoGeneratedLocation returns a location for synthesized code with no
// source range.
func AutoGeneratedLocation() Location {
	return Location{Kind: LocAutoGenerated}
}

func (l Location) String() string {
	if l.File == "" {
		return "<compiler-generated>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// DebugScope associates instructions with a lexical source region. Scopes
// form a tree through ParentScope/ParentFunc; InlinedCallSite threads the
// chain of call sites an instruction was inlined through, innermost first.
// Scopes are allocated by Module.NewScope and live in the module arena.
type DebugScope struct {
	Loc             Location
	ParentFunc      *Function
	ParentScope     *DebugScope
	InlinedCallSite *DebugScope
}

// InlineDepth reports how many inlined call sites the scope is nested
// under.
func (s *DebugScope) InlineDepth() int {
	n := 0
	for c := s.InlinedCallSite; c != nil; c = c.InlinedCallSite {
		n++
	}
	return n
}
