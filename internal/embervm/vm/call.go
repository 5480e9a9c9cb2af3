package vm

import "github.com/emberlang/embervm/internal/embervm/value"

// pushStackFrame sets up a callee frame: the caller's continuation is
// packed into a RetInfo Value at the new frame's slot 0, where
// framePtr = stack.top - numArgs.
//
// numArgs counts one extra slot on top of the parameters. For a value
// call that top slot holds the callee, read here before it is overwritten
// and re-homed just past the new frame's locals; for a symbol call the
// compiler emits a throwaway placeholder there. The params arrive one slot
// below their final frame position and are shifted up by one (over the top
// slot) so the bottom slot can become the RetInfo.
func (s *State) pushStackFrame(numArgs, entryPC, numParams, numLocals, requiredReturn int, returnPC int) (calleeVal value.Value, err *Error) {
	newFramePtr := s.top - numArgs
	calleeVal = s.stack[s.top-1]

	for i := numParams - 1; i >= 0; i-- {
		s.stack[newFramePtr+1+i] = s.stack[newFramePtr+i]
	}

	retInfo := value.InitRetInfo(returnPC, s.framePtr, requiredReturn, true)
	s.stack[newFramePtr] = retInfo

	s.framePtr = newFramePtr
	s.pc = entryPC

	localsStart := newFramePtr + 1 + numParams
	s.ensureCapacity(localsStart + numLocals + reservedSpareSlots + 1)
	for i := 0; i < numLocals; i++ {
		s.stack[localsStart+i] = value.InitNone()
	}
	s.top = localsStart + numLocals

	// Re-home the callee/receiver just past the frame's locals: one extra
	// slot the compiler knows to address as framePtr+1+numParams+numLocals.
	s.stack[s.top] = calleeVal
	s.top++

	return calleeVal, nil
}

// popStackFrame reconciles the callee's actual return count against the
// RetInfo's required count and restores the caller's pc/framePtr.
// numProduced is 0 or 1 values already sitting just below the current top.
func (s *State) popStackFrame(numProduced int) (continueFlag bool, err *Error) {
	retInfo := s.stack[s.framePtr]
	returnPC, prevFramePtr, required, continueFlag := retInfo.RetInfoFields()

	switch {
	case numProduced == required:
		if required == 1 {
			s.stack[s.framePtr] = s.pop()
		}
		s.top = s.framePtr + required

	case numProduced == 0 && required > 0:
		s.ensureCapacity(s.framePtr + required + reservedSpareSlots)
		s.stack[s.framePtr] = value.InitNone()
		s.top = s.framePtr + required

	case numProduced == 1 && required == 0:
		s.releaseIfPointer(s.pop())
		s.top = s.framePtr

	default:
		s.top = s.framePtr + required
	}

	s.pc = returnPC
	s.framePtr = prevFramePtr
	return continueFlag, nil
}
