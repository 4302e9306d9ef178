package optimizer

import (
	"fmt"

	"github.com/rill-lang/rill/internal/mir"
)

// InlineCost classifies an instruction's contribution to post-inline code
// size. Free approximates instructions that lower to nothing or to a
// trivial machine op; Expensive approximates everything else. Policies sum
// the cost over a callee to estimate code growth.
type InlineCost int

const (
	CostFree InlineCost = iota
	CostExpensive
)

func (c InlineCost) String() string {
	switch c {
	case CostFree:
		return "free"
	case CostExpensive:
		return "expensive"
	default:
		return "unknown"
	}
}

// enforcementCost prices a memory-access marker by its enforcement mode.
// Unknown enforcement must not survive to the optimizer.
func enforcementCost(e mir.Enforcement) InlineCost {
	switch e {
	case mir.EnforcementUnknown:
		panic("optimizer: evaluating cost of access with unknown enforcement")
	case mir.EnforcementDynamic:
		return CostExpensive
	case mir.EnforcementStatic, mir.EnforcementUnsafe:
		return CostFree
	}
	panic(fmt.Sprintf("optimizer: bad enforcement %d", e))
}

// InstructionInlineCost returns the inlining cost class of a canonical MIR
// instruction. The function is pure and total over canonical instructions;
// calling it on a kind that is only valid in raw MIR, or outside function
// bodies, is a programmer error and panics.
//
// For now the model assumes every MIR instruction is one-to-one with a
// machine instruction, which is of course very much not true.
func InstructionInlineCost(in *mir.Instr) InlineCost {
	switch in.Kind {
	case mir.InstrIntegerLiteral,
		mir.InstrFloatLiteral,
		mir.InstrStringLiteral,
		mir.InstrUntypedStringLiteral,
		mir.InstrDebugValue,
		mir.InstrDebugValueAddr,
		mir.InstrFixLifetime,
		mir.InstrBeginBorrow,
		mir.InstrEndBorrow,
		mir.InstrEndBorrowArgument,
		mir.InstrMarkDependence,
		mir.InstrEndLifetime,
		mir.InstrUncheckedOwnershipConversion,
		mir.InstrFunctionRef,
		mir.InstrAllocGlobal,
		mir.InstrGlobalAddr:
		return CostFree

	// Typed address projections are free.
	case mir.InstrTupleElementAddr,
		mir.InstrStructElementAddr,
		mir.InstrProjectBlockStorage:
		return CostFree

	// Aggregates are exploded during lowering; these are effectively
	// no-ops.
	case mir.InstrTuple,
		mir.InstrStruct,
		mir.InstrStructExtract,
		mir.InstrTupleExtract:
		return CostFree

	// Unchecked casts are free.
	case mir.InstrAddressToPointer,
		mir.InstrPointerToAddress,
		mir.InstrUncheckedRefCast,
		mir.InstrUncheckedAddrCast,
		mir.InstrUncheckedTrivialBitCast,
		mir.InstrUncheckedBitwiseCast,
		mir.InstrRawPointerToRef,
		mir.InstrRefToRawPointer,
		mir.InstrUpcast,
		mir.InstrThinToThickFunction,
		mir.InstrConvertFunction,
		mir.InstrBridgeObjectToWord:
		return CostFree

	// Access markers are free unless dynamically enforced.
	case mir.InstrBeginAccess,
		mir.InstrEndAccess,
		mir.InstrBeginUnpairedAccess,
		mir.InstrEndUnpairedAccess:
		return enforcementCost(in.Enforcement)

	// Thick and foreign metatype conversions materialize a class object.
	case mir.InstrThickToForeignMetatype,
		mir.InstrForeignToThickMetatype:
		return CostExpensive

	// Bridge-object narrowing implies a masking operation.
	case mir.InstrBridgeObjectToRef,
		mir.InstrRefToBridgeObject:
		return CostExpensive

	case mir.InstrMetatype:
		// Thin metatypes are compile-time constants. Thick metatypes are
		// treated as expensive even when no generic or lazy instantiation
		// is required; a known over-approximation.
		if in.MetatypeRep == mir.MetatypeThin {
			return CostFree
		}
		return CostExpensive

	// Protocol descriptor references are free.
	case mir.InstrForeignProtocol:
		return CostFree

	// Metatype-to-object conversions are free.
	case mir.InstrExistentialMetatypeToObject,
		mir.InstrMetatypeToObject:
		return CostFree

	// Control-flow leaves are free.
	case mir.InstrReturn,
		mir.InstrThrow,
		mir.InstrUnreachable:
		return CostFree

	case mir.InstrBuiltin:
		// Branch-prediction and fast-path hints lower to metadata.
		if in.StrValue == mir.BuiltinBranchHint || in.StrValue == mir.BuiltinOnFastPath {
			return CostFree
		}
		return CostExpensive

	case mir.InstrApply,
		mir.InstrTryApply,
		mir.InstrPartialApply,
		mir.InstrAllocStack,
		mir.InstrAllocBox,
		mir.InstrAllocRef,
		mir.InstrAllocRefDynamic,
		mir.InstrAllocExistentialBox,
		mir.InstrAllocValueBuffer,
		mir.InstrDeallocStack,
		mir.InstrDeallocBox,
		mir.InstrDeallocRef,
		mir.InstrDeallocPartialRef,
		mir.InstrDeallocExistentialBox,
		mir.InstrDeallocValueBuffer,
		mir.InstrProjectBox,
		mir.InstrProjectValueBuffer,
		mir.InstrProjectExistentialBox,
		mir.InstrRetainValue,
		mir.InstrReleaseValue,
		mir.InstrStrongRetain,
		mir.InstrStrongRelease,
		mir.InstrUnownedRetain,
		mir.InstrUnownedRelease,
		mir.InstrAutoreleaseValue,
		mir.InstrCopyValue,
		mir.InstrDestroyValue,
		mir.InstrIsUnique,
		mir.InstrLoad,
		mir.InstrStore,
		mir.InstrLoadBorrow,
		mir.InstrStoreBorrow,
		mir.InstrLoadWeak,
		mir.InstrStoreWeak,
		mir.InstrLoadUnowned,
		mir.InstrStoreUnowned,
		mir.InstrCopyAddr,
		mir.InstrDestroyAddr,
		mir.InstrAssign,
		mir.InstrBindMemory,
		mir.InstrIndexAddr,
		mir.InstrIndexRawPointer,
		mir.InstrTailAddr,
		mir.InstrRefElementAddr,
		mir.InstrRefTailAddr,
		mir.InstrEnum,
		mir.InstrUncheckedEnumData,
		mir.InstrInitEnumDataAddr,
		mir.InstrInjectEnumAddr,
		mir.InstrUncheckedTakeEnumDataAddr,
		mir.InstrSelectEnum,
		mir.InstrSelectEnumAddr,
		mir.InstrSelectValue,
		mir.InstrUnconditionalCheckedCast,
		mir.InstrUnconditionalCheckedCastAddr,
		mir.InstrClassMethod,
		mir.InstrSuperMethod,
		mir.InstrWitnessMethod,
		mir.InstrDynamicMethod,
		mir.InstrOpenExistentialAddr,
		mir.InstrOpenExistentialRef,
		mir.InstrOpenExistentialBox,
		mir.InstrOpenExistentialValue,
		mir.InstrOpenExistentialMetatype,
		mir.InstrInitExistentialAddr,
		mir.InstrInitExistentialRef,
		mir.InstrInitExistentialValue,
		mir.InstrInitExistentialMetatype,
		mir.InstrDeinitExistentialAddr,
		mir.InstrKeyPath,
		mir.InstrCondFail,
		mir.InstrCopyBlock,
		mir.InstrGlobalValue,
		mir.InstrValueMetatype,
		mir.InstrExistentialMetatype,
		mir.InstrBranch,
		mir.InstrCondBranch,
		mir.InstrSwitchEnum,
		mir.InstrSwitchEnumAddr,
		mir.InstrSwitchValue,
		mir.InstrCheckedCastBranch,
		mir.InstrCheckedCastAddrBranch,
		mir.InstrDynamicMethodBranch:
		return CostExpensive

	case mir.InstrMarkUninitialized, mir.InstrMarkFunctionEscape:
		panic(fmt.Sprintf("optimizer: %s is not valid in canonical MIR", in.Kind))
	case mir.InstrObject:
		panic("optimizer: object is not valid in a function body")
	}
	panic(fmt.Sprintf("optimizer: unhandled instruction kind %d", in.Kind))
}
