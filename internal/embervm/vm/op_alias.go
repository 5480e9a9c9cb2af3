package vm

import "github.com/emberlang/embervm/internal/embervm/bytecode"

// Op aliases bytecode.Op so dispatch code in this package can name
// opcodes without repeating the bytecode. qualifier everywhere.
type Op = bytecode.Op

const (
	OpNop = bytecode.OpNop

	OpPushTrue   = bytecode.OpPushTrue
	OpPushFalse  = bytecode.OpPushFalse
	OpPushNone   = bytecode.OpPushNone
	OpPushConst  = bytecode.OpPushConst
	OpLoad       = bytecode.OpLoad
	OpLoadRetain = bytecode.OpLoadRetain
	OpSet        = bytecode.OpSet
	OpReleaseSet = bytecode.OpReleaseSet
	OpSetInitN   = bytecode.OpSetInitN

	OpAdd    = bytecode.OpAdd
	OpSub    = bytecode.OpSub
	OpSub1   = bytecode.OpSub1
	OpSub2   = bytecode.OpSub2
	OpMul    = bytecode.OpMul
	OpDiv    = bytecode.OpDiv
	OpMod    = bytecode.OpMod
	OpPow    = bytecode.OpPow
	OpNeg    = bytecode.OpNeg
	OpNot    = bytecode.OpNot
	OpBitAnd = bytecode.OpBitAnd

	OpEq  = bytecode.OpEq
	OpNeq = bytecode.OpNeq
	OpLt  = bytecode.OpLt
	OpGt  = bytecode.OpGt
	OpLe  = bytecode.OpLe
	OpGe  = bytecode.OpGe

	OpJump            = bytecode.OpJump
	OpJumpBack        = bytecode.OpJumpBack
	OpJumpCond        = bytecode.OpJumpCond
	OpJumpNotCond     = bytecode.OpJumpNotCond
	OpJumpCondKeep    = bytecode.OpJumpCondKeep
	OpJumpNotCondKeep = bytecode.OpJumpNotCondKeep

	OpPushList            = bytecode.OpPushList
	OpPushMapEmpty        = bytecode.OpPushMapEmpty
	OpPushMap             = bytecode.OpPushMap
	OpPushStructInitSmall = bytecode.OpPushStructInitSmall
	OpPushSlice           = bytecode.OpPushSlice
	OpStringTemplate      = bytecode.OpStringTemplate

	OpPushIndex        = bytecode.OpPushIndex
	OpPushReverseIndex = bytecode.OpPushReverseIndex
	OpSetIndex         = bytecode.OpSetIndex

	OpPushField                    = bytecode.OpPushField
	OpPushFieldRetain              = bytecode.OpPushFieldRetain
	OpPushFieldParentRelease       = bytecode.OpPushFieldParentRelease
	OpPushFieldRetainParentRelease = bytecode.OpPushFieldRetainParentRelease
	OpSetField                     = bytecode.OpSetField
	OpReleaseSetField              = bytecode.OpReleaseSetField

	OpCall0       = bytecode.OpCall0
	OpCall1       = bytecode.OpCall1
	OpCallSym0    = bytecode.OpCallSym0
	OpCallSym1    = bytecode.OpCallSym1
	OpCallObjSym0 = bytecode.OpCallObjSym0
	OpCallObjSym1 = bytecode.OpCallObjSym1

	OpPushLambda  = bytecode.OpPushLambda
	OpPushClosure = bytecode.OpPushClosure

	OpForIter  = bytecode.OpForIter
	OpForRange = bytecode.OpForRange

	OpLoopBodyEnd = bytecode.OpLoopBodyEnd
	OpBreak       = bytecode.OpBreak

	OpRet0 = bytecode.OpRet0
	OpRet1 = bytecode.OpRet1
	OpEnd  = bytecode.OpEnd
)
