// Package mir defines the Rill mid-level IR used between the front end and
// codegen. It is SSA-formed: every value has a single definition, and
// control flow carries data between basic blocks through typed block
// parameters. The package provides:
// 1. Module, function, block and instruction representation
// 2. Debug locations and a module-owned debug-scope arena
// 3. A builder for insertion-point instruction construction
// 4. A textual printer and parser for .mir files
package mir

import "fmt"

// Representation tags how a function's body and calling convention are
// produced.
type Representation int

const (
	RepNative        Representation = iota // ordinary Rill function
	RepForeignMethod                       // foreign object-model method
	RepForeignC                            // C function pointer
)

func (r Representation) String() string {
	switch r {
	case RepNative:
		return "native"
	case RepForeignMethod:
		return "foreign_method"
	case RepForeignC:
		return "foreign_c"
	default:
		return "unknown"
	}
}

// Module is a compilation unit of MIR. It owns its functions and the
// debug-scope arena: scopes are allocated through NewScope and live until
// the module is dropped.
type Module struct {
	Name      string
	Functions []*Function

	scopes []*DebugScope
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// NewFunction creates a function, registers it with the module, and gives it
// a function-level debug scope at loc.
func (m *Module) NewFunction(name string, loc Location) *Function {
	f := &Function{Name: name, Module: m, Representation: RepNative}
	f.Scope = m.NewScope(loc, f, nil, nil)
	m.Functions = append(m.Functions, f)
	return f
}

// Function returns the function with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// NewScope allocates a debug scope into the module arena. Scopes are never
// freed before the module itself.
func (m *Module) NewScope(loc Location, parentFunc *Function, parentScope *DebugScope, inlinedCallSite *DebugScope) *DebugScope {
	s := &DebugScope{
		Loc:             loc,
		ParentFunc:      parentFunc,
		ParentScope:     parentScope,
		InlinedCallSite: inlinedCallSite,
	}
	m.scopes = append(m.scopes, s)
	return s
}

// NumScopes reports how many scopes the arena holds.
func (m *Module) NumScopes() int { return len(m.scopes) }

// Function is an ordered list of basic blocks. Blocks[0] is the entry block;
// its parameters are the function arguments.
type Function struct {
	Name           string
	Module         *Module
	Blocks         []*Block
	Params         []*Type // signature parameter types
	ResultType     *Type
	Representation Representation
	Scope          *DebugScope

	inlined bool

	nextValueID int
	nextBlockID int
}

// Entry returns the entry block, or nil for a body-less function.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// SetInlined marks the function as having been inlined into another
// function, so later passes keep its debug metadata alive for emission.
func (f *Function) SetInlined() { f.inlined = true }

// IsInlined reports whether the function has been inlined anywhere.
func (f *Function) IsInlined() bool { return f.inlined }

// NewBlock creates a new empty block and appends it to the function.
func (f *Function) NewBlock() *Block {
	b := &Block{id: f.nextBlockID, fn: f}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewBlockBefore creates a new empty block placed immediately before the
// given block in the function's block list. A nil before appends at the end.
// Block order is cosmetic for the textual form; correctness never depends
// on it.
func (f *Function) NewBlockBefore(before *Block) *Block {
	b := &Block{id: f.nextBlockID, fn: f}
	f.nextBlockID++
	if before == nil {
		f.Blocks = append(f.Blocks, b)
		return b
	}
	i := f.blockIndex(before)
	f.Blocks = append(f.Blocks, nil)
	copy(f.Blocks[i+1:], f.Blocks[i:])
	f.Blocks[i] = b
	return b
}

// MoveBlockBefore repositions bb immediately before the given block.
func (f *Function) MoveBlockBefore(bb, before *Block) {
	f.removeFromList(bb)
	i := f.blockIndex(before)
	f.Blocks = append(f.Blocks, nil)
	copy(f.Blocks[i+1:], f.Blocks[i:])
	f.Blocks[i] = bb
}

// MoveBlockToEnd repositions bb at the end of the block list.
func (f *Function) MoveBlockToEnd(bb *Block) {
	f.removeFromList(bb)
	f.Blocks = append(f.Blocks, bb)
}

func (f *Function) removeFromList(bb *Block) {
	i := f.blockIndex(bb)
	copy(f.Blocks[i:], f.Blocks[i+1:])
	f.Blocks = f.Blocks[:len(f.Blocks)-1]
}

func (f *Function) blockIndex(bb *Block) int {
	for i, b := range f.Blocks {
		if b == bb {
			return i
		}
	}
	panic(fmt.Sprintf("mir: block %s does not belong to function %s", bb, f.Name))
}

// ReplaceAllUses rewrites every operand and branch argument in f that
// references old so that it references new instead.
func (f *Function) ReplaceAllUses(old, new Value) {
	for _, bb := range f.Blocks {
		for _, in := range bb.Instrs {
			for i, op := range in.Operands {
				if op == old {
					in.Operands[i] = new
				}
			}
			for si := range in.Succs {
				args := in.Succs[si].Args
				for i, a := range args {
					if a == old {
						args[i] = new
					}
				}
			}
		}
	}
}
