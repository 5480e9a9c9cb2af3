package vm

import (
	"github.com/emberlang/embervm/internal/embervm/bytecode"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// Eval clears the panic message, resets the stack, rebinds to code, and
// runs it to completion. Heap pages carry over between runs.
func (s *State) Eval(code *bytecode.ByteCodeBuffer) *Error {
	s.code = code
	s.panicMsg = ""
	s.ensureCapacity(int(code.MainLocalSize) + 1 + reservedSpareSlots)

	// continueFlag=false on the synthetic main-frame RetInfo: when main
	// returns, the loop exits instead of resuming a caller.
	s.stack[0] = value.InitRetInfo(0, 0, 0, false)
	for i := 0; i < int(code.MainLocalSize); i++ {
		s.stack[1+i] = value.InitNone()
	}
	s.framePtr = 0
	s.top = 1 + int(code.MainLocalSize)
	s.pc = 0

	return s.evalLoopGrowStack()
}

// evalLoopGrowStack runs dispatch with grow-and-resume, then records the
// panic message for any terminal panic. forIter/forRange loop bodies
// re-enter dispatchGrow directly, so their overflows never unwind past the
// owning loop opcode.
func (s *State) evalLoopGrowStack() *Error {
	err := s.dispatchGrow()
	if err != nil && (err.Kind == KindPanic || err.Kind == KindOutOfBounds) {
		s.panicMsg = err.Msg
	}
	return err
}

// dispatchGrow runs evalLoop, enlarging the stack by one slot and resuming
// from the same pc on a StackOverflow signal. Resumption is sound because
// the overflow check fires at the top of the dispatch loop, before the
// instruction at pc has decoded anything; no exec handler holds a raw Go
// slice/pointer into s.stack across the growth point.
func (s *State) dispatchGrow() *Error {
	for {
		err := s.evalLoop()
		if err == nil || err.Kind != KindStackOverflow {
			return err
		}
		grown := make([]value.Value, len(s.stack)+1)
		copy(grown, s.stack)
		s.stack = grown
	}
}

// evalLoop is the switch-dispatched core: ops[pc] decodes, mutates pc/
// framePtr/stack/heap state, and falls through to the next iteration.
func (s *State) evalLoop() *Error {
	for {
		if s.top >= len(s.stack)-reservedSpareSlots {
			return stackOverflow()
		}

		op := Op(s.opAt(s.pc))
		switch op {

		case OpNop:
			s.pc++

		case OpPushTrue:
			s.pc++
			if err := s.push(value.InitBool(true)); err != nil {
				return err
			}
		case OpPushFalse:
			s.pc++
			if err := s.push(value.InitBool(false)); err != nil {
				return err
			}
		case OpPushNone:
			s.pc++
			if err := s.push(value.InitNone()); err != nil {
				return err
			}
		case OpPushConst:
			idx := s.readU16(s.pc + 1)
			s.pc += 3
			if int(idx) >= len(s.code.Consts) {
				return panicf("constant index %d out of range", idx)
			}
			if err := s.push(s.code.Consts[idx]); err != nil {
				return err
			}

		case OpLoad:
			slot := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.push(s.slot(int(slot))); err != nil {
				return err
			}
		case OpLoadRetain:
			slot := s.readU16(s.pc + 1)
			s.pc += 3
			v := s.slot(int(slot))
			s.retainIfPointer(v)
			if err := s.push(v); err != nil {
				return err
			}
		case OpSet:
			slot := s.readU16(s.pc + 1)
			s.pc += 3
			s.setSlot(int(slot), s.pop())
		case OpReleaseSet:
			slot := s.readU16(s.pc + 1)
			s.pc += 3
			s.releaseIfPointer(s.slot(int(slot)))
			s.setSlot(int(slot), s.pop())
		case OpSetInitN:
			n := s.readU16(s.pc + 1)
			pc := s.pc + 3
			for i := 0; i < int(n); i++ {
				slot := s.readU16(pc)
				pc += 2
				s.setSlot(int(slot), value.InitNone())
			}
			s.pc = pc

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow, OpBitAnd:
			s.pc++
			if err := s.execBinaryArith(op); err != nil {
				return err
			}
		case OpSub1:
			a, b := s.readU16(s.pc+1), s.readU16(s.pc+3)
			s.pc += 5
			if err := s.execSubPositional(int(a), int(b), false); err != nil {
				return err
			}
		case OpSub2:
			a, b := s.readU16(s.pc+1), s.readU16(s.pc+3)
			s.pc += 5
			if err := s.execSubPositional(int(a), int(b), true); err != nil {
				return err
			}
		case OpNeg:
			s.pc++
			if err := s.execNeg(); err != nil {
				return err
			}
		case OpNot:
			s.pc++
			v := s.pop()
			if err := s.push(value.InitBool(!v.ToBool())); err != nil {
				return err
			}

		case OpEq, OpNeq, OpLt, OpGt, OpLe, OpGe:
			s.pc++
			if err := s.execCompare(op); err != nil {
				return err
			}

		case OpJump:
			off := s.readI16(s.pc + 1)
			s.pc += int(off)
		case OpJumpBack:
			off := s.readI16(s.pc + 1)
			s.pc -= int(off)
		case OpJumpCond:
			off := s.readI16(s.pc + 1)
			v := s.pop()
			if v.ToBool() {
				s.pc += int(off)
			} else {
				s.pc += 3
			}
		case OpJumpNotCond:
			off := s.readI16(s.pc + 1)
			v := s.pop()
			if !v.ToBool() {
				s.pc += int(off)
			} else {
				s.pc += 3
			}
		case OpJumpCondKeep:
			off := s.readI16(s.pc + 1)
			v := s.peek(0)
			if v.ToBool() {
				s.pc += int(off)
			} else {
				s.pop()
				s.pc += 3
			}
		case OpJumpNotCondKeep:
			off := s.readI16(s.pc + 1)
			v := s.peek(0)
			if !v.ToBool() {
				s.pc += int(off)
			} else {
				s.pop()
				s.pc += 3
			}

		case OpPushList:
			n := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execPushList(int(n)); err != nil {
				return err
			}
		case OpPushMapEmpty:
			s.pc++
			if err := s.execPushMapEmpty(); err != nil {
				return err
			}
		case OpPushMap:
			n := s.readU16(s.pc + 1)
			constIdx := s.readU16(s.pc + 3)
			s.pc += 5
			if err := s.execPushMap(int(n), int(constIdx)); err != nil {
				return err
			}
		case OpPushStructInitSmall:
			typeID := s.readU16(s.pc + 1)
			n := s.readU16(s.pc + 3)
			pc := s.pc + 5
			offsets := make([]uint16, n)
			for i := range offsets {
				offsets[i] = s.readU16(pc)
				pc += 2
			}
			s.pc = pc
			if err := s.execPushStructInitSmall(uint32(typeID), offsets); err != nil {
				return err
			}
		case OpPushSlice:
			s.pc++
			if err := s.execPushSlice(); err != nil {
				return err
			}
		case OpStringTemplate:
			n := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execStringTemplate(int(n)); err != nil {
				return err
			}

		case OpPushIndex:
			s.pc++
			if err := s.execPushIndex(); err != nil {
				return err
			}
		case OpPushReverseIndex:
			s.pc++
			if err := s.execPushReverseIndex(); err != nil {
				return err
			}
		case OpSetIndex:
			s.pc++
			if err := s.execSetIndex(); err != nil {
				return err
			}

		case OpPushField:
			fid := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execPushField(int(fid), false, false); err != nil {
				return err
			}
		case OpPushFieldRetain:
			fid := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execPushField(int(fid), true, false); err != nil {
				return err
			}
		case OpPushFieldParentRelease:
			fid := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execPushField(int(fid), false, true); err != nil {
				return err
			}
		case OpPushFieldRetainParentRelease:
			fid := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execPushField(int(fid), true, true); err != nil {
				return err
			}
		case OpSetField:
			fid := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execSetField(int(fid), false); err != nil {
				return err
			}
		case OpReleaseSetField:
			fid := s.readU16(s.pc + 1)
			s.pc += 3
			if err := s.execSetField(int(fid), true); err != nil {
				return err
			}

		case OpCall0, OpCall1:
			numArgs := s.readU16(s.pc + 1)
			returnPC := s.pc + 3
			s.pc = returnPC
			required := 0
			if op == OpCall1 {
				required = 1
			}
			if err := s.execCallValue(int(numArgs), required, returnPC); err != nil {
				return err
			}
		case OpCallSym0, OpCallSym1:
			funcID := s.readU16(s.pc + 1)
			numArgs := s.readU16(s.pc + 3)
			returnPC := s.pc + 5
			s.pc = returnPC
			required := 0
			if op == OpCallSym1 {
				required = 1
			}
			if err := s.execCallSym(int(funcID), int(numArgs), required, returnPC); err != nil {
				return err
			}
		case OpCallObjSym0, OpCallObjSym1:
			methodID := s.readU16(s.pc + 1)
			numArgs := s.readU16(s.pc + 3)
			returnPC := s.pc + 5
			s.pc = returnPC
			required := 0
			if op == OpCallObjSym1 {
				required = 1
			}
			if err := s.execCallObjSym(int(methodID), int(numArgs), required, returnPC); err != nil {
				return err
			}

		case OpPushLambda:
			relPC := s.readI32(s.pc + 1)
			nParams := s.readU16(s.pc + 5)
			nLocals := s.readU16(s.pc + 7)
			s.pc += 9
			if err := s.execPushLambda(int(relPC), int(nParams), int(nLocals)); err != nil {
				return err
			}
		case OpPushClosure:
			relPC := s.readI32(s.pc + 1)
			nParams := s.readU16(s.pc + 5)
			nCaps := s.readU16(s.pc + 7)
			nLocals := s.readU16(s.pc + 9)
			s.pc += 11
			if err := s.execPushClosure(int(relPC), int(nParams), int(nCaps), int(nLocals)); err != nil {
				return err
			}

		case OpForIter:
			slot := s.readU16(s.pc + 1)
			endOff := s.readU16(s.pc + 3)
			bodyPC := s.pc + 5
			contPC := s.pc + int(endOff)
			if err := s.execForIter(int(slot), bodyPC); err != nil && err.Kind != KindLoopBreak {
				return err
			}
			// The body's nested dispatch left pc at its terminator; resume
			// past the loop regardless of how many iterations ran.
			s.pc = contPC
		case OpForRange:
			slot := s.readU16(s.pc + 1)
			endOff := s.readU16(s.pc + 3)
			bodyPC := s.pc + 5
			contPC := s.pc + int(endOff)
			if err := s.execForRange(int(slot), bodyPC); err != nil && err.Kind != KindLoopBreak {
				return err
			}
			s.pc = contPC

		case OpLoopBodyEnd:
			return nil
		case OpBreak:
			return errLoopBreak

		case OpRet0:
			cont, err := s.popStackFrame(0)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		case OpRet1:
			cont, err := s.popStackFrame(1)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}

		case OpEnd:
			return nil

		default:
			return panicf("unknown opcode %d at pc %d", op, s.pc)
		}
	}
}
