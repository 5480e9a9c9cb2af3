package vm

import (
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// execPushLambda implements pushLambda. relPC is relative to the
// instruction immediately following pushLambda's operands (unlike the jump
// opcodes, whose offsets are measured from their own start).
func (s *State) execPushLambda(relPC, nParams, nLocals int) *Error {
	funcPC := s.pc + relPC
	v, err := s.allocHeapValue(object.TypeLambda, &object.Lambda{
		FuncPC: funcPC, NumParams: nParams, NumLocals: nLocals,
	})
	if err != nil {
		return err
	}
	return s.push(v)
}

// execPushClosure implements pushClosure: pops nCaps captured values (top
// of stack is the last-declared capture) and builds a Closure referencing
// them.
func (s *State) execPushClosure(relPC, nParams, nCaps, nLocals int) *Error {
	funcPC := s.pc + relPC
	captures := make([]value.Value, nCaps)
	for i := nCaps - 1; i >= 0; i-- {
		captures[i] = s.pop()
	}
	v, err := s.allocHeapValue(object.TypeClosure, object.NewClosure(funcPC, nParams, nLocals, captures))
	if err != nil {
		return err
	}
	return s.push(v)
}
