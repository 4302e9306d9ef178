package mir

import "fmt"

// InstrKind identifies the operation an instruction performs. The enum is
// the single dispatch point for the printer, the parser, the cloner, and
// the optimizer's exhaustive switches.
type InstrKind int

const (
	InstrInvalid InstrKind = iota

	// Literals.
	InstrIntegerLiteral
	InstrFloatLiteral
	InstrStringLiteral
	InstrUntypedStringLiteral

	// Debug annotations. No runtime effect.
	InstrDebugValue
	InstrDebugValueAddr

	// Lifetime and borrow markers.
	InstrFixLifetime
	InstrBeginBorrow
	InstrEndBorrow
	InstrEndBorrowArgument
	InstrMarkDependence
	InstrEndLifetime
	InstrUncheckedOwnershipConversion

	// Function and global references.
	InstrFunctionRef
	InstrGlobalAddr
	InstrGlobalValue
	InstrAllocGlobal

	// Typed address projections.
	InstrTupleElementAddr
	InstrStructElementAddr
	InstrProjectBlockStorage

	// Aggregate construction and extraction.
	InstrTuple
	InstrStruct
	InstrTupleExtract
	InstrStructExtract

	// Unchecked bit-pattern casts.
	InstrAddressToPointer
	InstrPointerToAddress
	InstrUncheckedRefCast
	InstrUncheckedAddrCast
	InstrUncheckedTrivialBitCast
	InstrUncheckedBitwiseCast
	InstrRawPointerToRef
	InstrRefToRawPointer
	InstrUpcast
	InstrThinToThickFunction
	InstrConvertFunction
	InstrBridgeObjectToWord

	// Foreign interop conversions.
	InstrForeignProtocol
	InstrExistentialMetatypeToObject
	InstrMetatypeToObject
	InstrThickToForeignMetatype
	InstrForeignToThickMetatype
	InstrBridgeObjectToRef
	InstrRefToBridgeObject

	// Memory-access markers.
	InstrBeginAccess
	InstrEndAccess
	InstrBeginUnpairedAccess
	InstrEndUnpairedAccess

	// Metatypes.
	InstrMetatype
	InstrValueMetatype
	InstrExistentialMetatype

	// Builtin intrinsic call.
	InstrBuiltin

	// Calls.
	InstrApply
	InstrTryApply
	InstrPartialApply

	// Allocation and deallocation.
	InstrAllocStack
	InstrAllocBox
	InstrAllocRef
	InstrAllocRefDynamic
	InstrAllocExistentialBox
	InstrAllocValueBuffer
	InstrDeallocStack
	InstrDeallocBox
	InstrDeallocRef
	InstrDeallocPartialRef
	InstrDeallocExistentialBox
	InstrDeallocValueBuffer
	InstrProjectBox
	InstrProjectValueBuffer
	InstrProjectExistentialBox

	// Reference counting and value lifetime.
	InstrRetainValue
	InstrReleaseValue
	InstrStrongRetain
	InstrStrongRelease
	InstrUnownedRetain
	InstrUnownedRelease
	InstrAutoreleaseValue
	InstrCopyValue
	InstrDestroyValue
	InstrIsUnique

	// Memory operations.
	InstrLoad
	InstrStore
	InstrLoadBorrow
	InstrStoreBorrow
	InstrLoadWeak
	InstrStoreWeak
	InstrLoadUnowned
	InstrStoreUnowned
	InstrCopyAddr
	InstrDestroyAddr
	InstrAssign
	InstrBindMemory
	InstrIndexAddr
	InstrIndexRawPointer
	InstrTailAddr
	InstrRefElementAddr
	InstrRefTailAddr

	// Enums.
	InstrEnum
	InstrUncheckedEnumData
	InstrInitEnumDataAddr
	InstrInjectEnumAddr
	InstrUncheckedTakeEnumDataAddr
	InstrSelectEnum
	InstrSelectEnumAddr
	InstrSelectValue

	// Dynamic casts.
	InstrUnconditionalCheckedCast
	InstrUnconditionalCheckedCastAddr

	// Method dispatch.
	InstrClassMethod
	InstrSuperMethod
	InstrWitnessMethod
	InstrDynamicMethod

	// Existentials.
	InstrOpenExistentialAddr
	InstrOpenExistentialRef
	InstrOpenExistentialBox
	InstrOpenExistentialValue
	InstrOpenExistentialMetatype
	InstrInitExistentialAddr
	InstrInitExistentialRef
	InstrInitExistentialValue
	InstrInitExistentialMetatype
	InstrDeinitExistentialAddr

	// Key paths.
	InstrKeyPath

	// Other expensive operations.
	InstrCondFail
	InstrCopyBlock

	// Terminators.
	InstrBranch
	InstrCondBranch
	InstrReturn
	InstrThrow
	InstrUnreachable
	InstrSwitchEnum
	InstrSwitchEnumAddr
	InstrSwitchValue
	InstrCheckedCastBranch
	InstrCheckedCastAddrBranch
	InstrDynamicMethodBranch

	// Only valid in raw (non-canonical) MIR.
	InstrMarkUninitialized
	InstrMarkFunctionEscape

	// Only valid at module scope, never inside a function body.
	InstrObject

	numInstrKinds
)

// instrKindNames maps each kind to its textual mnemonic.
var instrKindNames = [numInstrKinds]string{
	InstrInvalid:                      "invalid",
	InstrIntegerLiteral:               "integer_literal",
	InstrFloatLiteral:                 "float_literal",
	InstrStringLiteral:                "string_literal",
	InstrUntypedStringLiteral:         "untyped_string_literal",
	InstrDebugValue:                   "debug_value",
	InstrDebugValueAddr:               "debug_value_addr",
	InstrFixLifetime:                  "fix_lifetime",
	InstrBeginBorrow:                  "begin_borrow",
	InstrEndBorrow:                    "end_borrow",
	InstrEndBorrowArgument:            "end_borrow_argument",
	InstrMarkDependence:               "mark_dependence",
	InstrEndLifetime:                  "end_lifetime",
	InstrUncheckedOwnershipConversion: "unchecked_ownership_conversion",
	InstrFunctionRef:                  "function_ref",
	InstrGlobalAddr:                   "global_addr",
	InstrGlobalValue:                  "global_value",
	InstrAllocGlobal:                  "alloc_global",
	InstrTupleElementAddr:             "tuple_element_addr",
	InstrStructElementAddr:            "struct_element_addr",
	InstrProjectBlockStorage:          "project_block_storage",
	InstrTuple:                        "tuple",
	InstrStruct:                       "struct",
	InstrTupleExtract:                 "tuple_extract",
	InstrStructExtract:                "struct_extract",
	InstrAddressToPointer:             "address_to_pointer",
	InstrPointerToAddress:             "pointer_to_address",
	InstrUncheckedRefCast:             "unchecked_ref_cast",
	InstrUncheckedAddrCast:            "unchecked_addr_cast",
	InstrUncheckedTrivialBitCast:      "unchecked_trivial_bit_cast",
	InstrUncheckedBitwiseCast:         "unchecked_bitwise_cast",
	InstrRawPointerToRef:              "raw_pointer_to_ref",
	InstrRefToRawPointer:              "ref_to_raw_pointer",
	InstrUpcast:                       "upcast",
	InstrThinToThickFunction:          "thin_to_thick_function",
	InstrConvertFunction:              "convert_function",
	InstrBridgeObjectToWord:           "bridge_object_to_word",
	InstrForeignProtocol:              "foreign_protocol",
	InstrExistentialMetatypeToObject:  "existential_metatype_to_object",
	InstrMetatypeToObject:             "metatype_to_object",
	InstrThickToForeignMetatype:       "thick_to_foreign_metatype",
	InstrForeignToThickMetatype:       "foreign_to_thick_metatype",
	InstrBridgeObjectToRef:            "bridge_object_to_ref",
	InstrRefToBridgeObject:            "ref_to_bridge_object",
	InstrBeginAccess:                  "begin_access",
	InstrEndAccess:                    "end_access",
	InstrBeginUnpairedAccess:          "begin_unpaired_access",
	InstrEndUnpairedAccess:            "end_unpaired_access",
	InstrMetatype:                     "metatype",
	InstrValueMetatype:                "value_metatype",
	InstrExistentialMetatype:          "existential_metatype",
	InstrBuiltin:                      "builtin",
	InstrApply:                        "apply",
	InstrTryApply:                     "try_apply",
	InstrPartialApply:                 "partial_apply",
	InstrAllocStack:                   "alloc_stack",
	InstrAllocBox:                     "alloc_box",
	InstrAllocRef:                     "alloc_ref",
	InstrAllocRefDynamic:              "alloc_ref_dynamic",
	InstrAllocExistentialBox:          "alloc_existential_box",
	InstrAllocValueBuffer:             "alloc_value_buffer",
	InstrDeallocStack:                 "dealloc_stack",
	InstrDeallocBox:                   "dealloc_box",
	InstrDeallocRef:                   "dealloc_ref",
	InstrDeallocPartialRef:            "dealloc_partial_ref",
	InstrDeallocExistentialBox:        "dealloc_existential_box",
	InstrDeallocValueBuffer:           "dealloc_value_buffer",
	InstrProjectBox:                   "project_box",
	InstrProjectValueBuffer:           "project_value_buffer",
	InstrProjectExistentialBox:        "project_existential_box",
	InstrRetainValue:                  "retain_value",
	InstrReleaseValue:                 "release_value",
	InstrStrongRetain:                 "strong_retain",
	InstrStrongRelease:                "strong_release",
	InstrUnownedRetain:                "unowned_retain",
	InstrUnownedRelease:               "unowned_release",
	InstrAutoreleaseValue:             "autorelease_value",
	InstrCopyValue:                    "copy_value",
	InstrDestroyValue:                 "destroy_value",
	InstrIsUnique:                     "is_unique",
	InstrLoad:                         "load",
	InstrStore:                        "store",
	InstrLoadBorrow:                   "load_borrow",
	InstrStoreBorrow:                  "store_borrow",
	InstrLoadWeak:                     "load_weak",
	InstrStoreWeak:                    "store_weak",
	InstrLoadUnowned:                  "load_unowned",
	InstrStoreUnowned:                 "store_unowned",
	InstrCopyAddr:                     "copy_addr",
	InstrDestroyAddr:                  "destroy_addr",
	InstrAssign:                       "assign",
	InstrBindMemory:                   "bind_memory",
	InstrIndexAddr:                    "index_addr",
	InstrIndexRawPointer:              "index_raw_pointer",
	InstrTailAddr:                     "tail_addr",
	InstrRefElementAddr:               "ref_element_addr",
	InstrRefTailAddr:                  "ref_tail_addr",
	InstrEnum:                         "enum",
	InstrUncheckedEnumData:            "unchecked_enum_data",
	InstrInitEnumDataAddr:             "init_enum_data_addr",
	InstrInjectEnumAddr:               "inject_enum_addr",
	InstrUncheckedTakeEnumDataAddr:    "unchecked_take_enum_data_addr",
	InstrSelectEnum:                   "select_enum",
	InstrSelectEnumAddr:               "select_enum_addr",
	InstrSelectValue:                  "select_value",
	InstrUnconditionalCheckedCast:     "unconditional_checked_cast",
	InstrUnconditionalCheckedCastAddr: "unconditional_checked_cast_addr",
	InstrClassMethod:                  "class_method",
	InstrSuperMethod:                  "super_method",
	InstrWitnessMethod:                "witness_method",
	InstrDynamicMethod:                "dynamic_method",
	InstrOpenExistentialAddr:          "open_existential_addr",
	InstrOpenExistentialRef:           "open_existential_ref",
	InstrOpenExistentialBox:           "open_existential_box",
	InstrOpenExistentialValue:         "open_existential_value",
	InstrOpenExistentialMetatype:      "open_existential_metatype",
	InstrInitExistentialAddr:          "init_existential_addr",
	InstrInitExistentialRef:           "init_existential_ref",
	InstrInitExistentialValue:         "init_existential_value",
	InstrInitExistentialMetatype:      "init_existential_metatype",
	InstrDeinitExistentialAddr:        "deinit_existential_addr",
	InstrKeyPath:                      "key_path",
	InstrCondFail:                     "cond_fail",
	InstrCopyBlock:                    "copy_block",
	InstrBranch:                       "br",
	InstrCondBranch:                   "cond_br",
	InstrReturn:                       "return",
	InstrThrow:                        "throw",
	InstrUnreachable:                  "unreachable",
	InstrSwitchEnum:                   "switch_enum",
	InstrSwitchEnumAddr:               "switch_enum_addr",
	InstrSwitchValue:                  "switch_value",
	InstrCheckedCastBranch:            "checked_cast_br",
	InstrCheckedCastAddrBranch:        "checked_cast_addr_br",
	InstrDynamicMethodBranch:          "dynamic_method_br",
	InstrMarkUninitialized:            "mark_uninitialized",
	InstrMarkFunctionEscape:           "mark_function_escape",
	InstrObject:                       "object",
}

func (k InstrKind) String() string {
	if k > InstrInvalid && k < numInstrKinds {
		return instrKindNames[k]
	}
	return "unknown"
}

// IsTerminator reports whether the kind transfers control out of its block.
func (k InstrKind) IsTerminator() bool {
	switch k {
	case InstrBranch, InstrCondBranch, InstrReturn, InstrThrow,
		InstrUnreachable, InstrTryApply, InstrSwitchEnum,
		InstrSwitchEnumAddr, InstrSwitchValue, InstrCheckedCastBranch,
		InstrCheckedCastAddrBranch, InstrDynamicMethodBranch:
		return true
	}
	return false
}

// IsDebug reports whether the kind is a pure debug annotation.
func (k InstrKind) IsDebug() bool {
	return k == InstrDebugValue || k == InstrDebugValueAddr
}

// Enforcement is the policy attached to a memory-access region.
type Enforcement int

const (
	EnforcementUnknown Enforcement = iota // not yet inferred
	EnforcementStatic                     // verified at compile time
	EnforcementDynamic                    // checked at run time
	EnforcementUnsafe                     // unchecked
)

func (e Enforcement) String() string {
	switch e {
	case EnforcementStatic:
		return "static"
	case EnforcementDynamic:
		return "dynamic"
	case EnforcementUnsafe:
		return "unsafe"
	default:
		return "unknown"
	}
}

// MetatypeRep distinguishes how a metatype value is represented.
type MetatypeRep int

const (
	MetatypeThin    MetatypeRep = iota // compile-time constant, no storage
	MetatypeThick                      // runtime type descriptor
	MetatypeForeign                    // foreign object-model class object
)

func (r MetatypeRep) String() string {
	switch r {
	case MetatypeThin:
		return "thin"
	case MetatypeThick:
		return "thick"
	case MetatypeForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// BuiltinBranchHint is the branch-prediction hint intrinsic; it lowers to
// metadata only.
const BuiltinBranchHint = "int_expect_Int1"

// BuiltinOnFastPath marks the fast path for the optimizer and lowers to
// nothing.
const BuiltinOnFastPath = "onFastPath"

// Succ is one outgoing control-flow edge of a terminator, carrying the
// branch arguments bound to the target's block parameters.
type Succ struct {
	Block *Block
	Args  []Value
}

// Instr is a single MIR instruction. One struct represents every kind;
// Kind selects which aux fields are meaningful.
type Instr struct {
	id     int
	parent *Block

	Kind     InstrKind
	Operands []Value
	Succs    []Succ // terminators only

	// ResultType is non-nil iff the instruction produces a value.
	ResultType      *Type
	ResultOwnership OwnershipKind

	Loc   Location
	Scope *DebugScope

	// Aux payloads.
	IntValue    int64       // integer_literal, *_element_addr/extract index
	FloatValue  float64     // float_literal
	StrValue    string      // string literals, function_ref/builtin/global names
	Enforcement Enforcement // access markers
	MetatypeRep MetatypeRep // metatype
	Cases       []string    // switch_enum/select_enum case names
}

// Parent returns the block containing the instruction, or nil if detached.
func (in *Instr) Parent() *Block { return in.parent }

// HasResult reports whether the instruction produces a value.
func (in *Instr) HasResult() bool { return in.ResultType != nil }

// Type returns the result type. The instruction itself is the produced
// value, so *Instr satisfies Value.
func (in *Instr) Type() *Type { return in.ResultType }

// Ownership returns the result's ownership kind.
func (in *Instr) Ownership() OwnershipKind { return in.ResultOwnership }

func (in *Instr) valueRef() string { return fmt.Sprintf("%%%d", in.id) }
