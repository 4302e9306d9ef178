package mir

// Builder inserts instructions into a function at a movable insertion
// point. New instructions receive their value id from the function being
// built, so a builder must only be used with instructions destined for its
// own function.
type Builder struct {
	fn    *Function
	block *Block
	index int

	// Defaults stamped onto emitted instructions; Emit leaves explicit
	// values alone.
	Loc   Location
	Scope *DebugScope
}

// NewBuilder creates a builder for f with no insertion point set.
func NewBuilder(f *Function) *Builder {
	return &Builder{fn: f}
}

// Function returns the function the builder emits into.
func (b *Builder) Function() *Function { return b.fn }

// SetInsertionPoint places the insertion point immediately before the given
// instruction.
func (b *Builder) SetInsertionPoint(before *Instr) {
	bb := before.parent
	b.block = bb
	b.index = bb.instrIndex(before)
}

// SetInsertionPointAtEnd places the insertion point after the last
// instruction of the given block.
func (b *Builder) SetInsertionPointAtEnd(bb *Block) {
	b.block = bb
	b.index = len(bb.Instrs)
}

// InsertionBlock returns the block the builder currently emits into.
func (b *Builder) InsertionBlock() *Block { return b.block }

// Emit inserts the instruction at the insertion point and advances past it.
// The instruction is given a fresh value id; a zero Loc/Scope is replaced
// by the builder defaults.
func (b *Builder) Emit(in *Instr) *Instr {
	if b.block == nil {
		panic("mir: builder has no insertion point")
	}
	in.id = b.fn.nextValueID
	b.fn.nextValueID++
	in.parent = b.block
	if in.Scope == nil {
		in.Scope = b.Scope
	}
	if in.Loc == (Location{}) {
		in.Loc = b.Loc
	}
	instrs := b.block.Instrs
	instrs = append(instrs, nil)
	copy(instrs[b.index+1:], instrs[b.index:])
	instrs[b.index] = in
	b.block.Instrs = instrs
	b.index++
	return in
}

// EmitBranch emits an unconditional branch to target, binding args to the
// target's block parameters.
func (b *Builder) EmitBranch(loc Location, scope *DebugScope, target *Block, args ...Value) *Instr {
	return b.Emit(&Instr{
		Kind:  InstrBranch,
		Succs: []Succ{{Block: target, Args: args}},
		Loc:   loc,
		Scope: scope,
	})
}

// EmitCondBranch emits a two-way conditional branch.
func (b *Builder) EmitCondBranch(loc Location, scope *DebugScope, cond Value, t, f *Block) *Instr {
	return b.Emit(&Instr{
		Kind:     InstrCondBranch,
		Operands: []Value{cond},
		Succs:    []Succ{{Block: t}, {Block: f}},
		Loc:      loc,
		Scope:    scope,
	})
}

// EmitReturn emits a function return of v.
func (b *Builder) EmitReturn(loc Location, scope *DebugScope, v Value) *Instr {
	return b.Emit(&Instr{Kind: InstrReturn, Operands: []Value{v}, Loc: loc, Scope: scope})
}

// EmitThrow emits an error propagation of v.
func (b *Builder) EmitThrow(loc Location, scope *DebugScope, v Value) *Instr {
	return b.Emit(&Instr{Kind: InstrThrow, Operands: []Value{v}, Loc: loc, Scope: scope})
}

// EmitUnreachable emits an unreachable terminator.
func (b *Builder) EmitUnreachable(loc Location, scope *DebugScope) *Instr {
	return b.Emit(&Instr{Kind: InstrUnreachable, Loc: loc, Scope: scope})
}

// EmitIntegerLiteral emits an integer literal of the given type.
func (b *Builder) EmitIntegerLiteral(typ *Type, v int64) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrIntegerLiteral,
		ResultType:      typ,
		ResultOwnership: OwnershipTrivial,
		IntValue:        v,
	})
}

// EmitFunctionRef emits a reference to the named function.
func (b *Builder) EmitFunctionRef(callee *Function) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrFunctionRef,
		ResultType:      NamedType("(" + callee.Name + ")"),
		ResultOwnership: OwnershipTrivial,
		StrValue:        callee.Name,
	})
}

// EmitApply emits a non-throwing call of callee with args, producing a
// value of resultType.
func (b *Builder) EmitApply(callee Value, args []Value, resultType *Type) *Instr {
	ops := append([]Value{callee}, args...)
	return b.Emit(&Instr{
		Kind:            InstrApply,
		Operands:        ops,
		ResultType:      resultType,
		ResultOwnership: OwnershipOwned,
	})
}

// EmitTryApply emits a throwing call of callee with args. Control resumes
// at normal with the result bound to its parameter, or at errBB with the
// thrown value bound to its parameter.
func (b *Builder) EmitTryApply(callee Value, args []Value, normal, errBB *Block) *Instr {
	ops := append([]Value{callee}, args...)
	return b.Emit(&Instr{
		Kind:     InstrTryApply,
		Operands: ops,
		Succs:    []Succ{{Block: normal}, {Block: errBB}},
	})
}

// EmitBuiltin emits a builtin intrinsic call.
func (b *Builder) EmitBuiltin(name string, args []Value, resultType *Type) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrBuiltin,
		Operands:        args,
		ResultType:      resultType,
		ResultOwnership: OwnershipTrivial,
		StrValue:        name,
	})
}

// EmitDebugValue emits a debug annotation binding v to its source variable.
func (b *Builder) EmitDebugValue(v Value) *Instr {
	return b.Emit(&Instr{Kind: InstrDebugValue, Operands: []Value{v}})
}

// EmitStruct emits construction of a struct value from field operands.
func (b *Builder) EmitStruct(typ *Type, fields ...Value) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrStruct,
		Operands:        fields,
		ResultType:      typ,
		ResultOwnership: OwnershipOwned,
	})
}

// EmitStructExtract emits extraction of field index from a struct value.
func (b *Builder) EmitStructExtract(v Value, index int64, fieldType *Type) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrStructExtract,
		Operands:        []Value{v},
		ResultType:      fieldType,
		ResultOwnership: OwnershipGuaranteed,
		IntValue:        index,
	})
}

// EmitAllocStack emits a stack slot allocation.
func (b *Builder) EmitAllocStack(typ *Type) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrAllocStack,
		ResultType:      NamedType("*" + typ.Name),
		ResultOwnership: OwnershipAny,
		StrValue:        typ.Name,
	})
}

// EmitDeallocStack emits deallocation of a stack slot.
func (b *Builder) EmitDeallocStack(addr Value) *Instr {
	return b.Emit(&Instr{Kind: InstrDeallocStack, Operands: []Value{addr}})
}

// EmitLoad emits a load from addr.
func (b *Builder) EmitLoad(addr Value, typ *Type) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrLoad,
		Operands:        []Value{addr},
		ResultType:      typ,
		ResultOwnership: OwnershipOwned,
	})
}

// EmitStore emits a store of v to addr.
func (b *Builder) EmitStore(v, addr Value) *Instr {
	return b.Emit(&Instr{Kind: InstrStore, Operands: []Value{v, addr}})
}

// EmitBeginAccess emits a memory-access marker on addr with the given
// enforcement.
func (b *Builder) EmitBeginAccess(addr Value, e Enforcement) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrBeginAccess,
		Operands:        []Value{addr},
		ResultType:      addr.Type(),
		ResultOwnership: OwnershipAny,
		Enforcement:     e,
	})
}

// EmitEndAccess emits the end of a memory-access region.
func (b *Builder) EmitEndAccess(access Value, e Enforcement) *Instr {
	return b.Emit(&Instr{Kind: InstrEndAccess, Operands: []Value{access}, Enforcement: e})
}

// EmitMetatype emits a metatype value with the given representation.
func (b *Builder) EmitMetatype(typ *Type, rep MetatypeRep) *Instr {
	return b.Emit(&Instr{
		Kind:            InstrMetatype,
		ResultType:      NamedType("@" + rep.String() + " " + typ.Name + ".Type"),
		ResultOwnership: OwnershipTrivial,
		StrValue:        typ.Name,
		MetatypeRep:     rep,
	})
}
