package vm

import (
	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/symtab"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// runLoopBody runs a forIter/forRange body as a nested dispatch starting
// at bodyPC. The body is an ordinary ops range terminated by OpLoopBodyEnd
// or OpBreak, the latter propagated up to the owning loop opcode. Entering
// through dispatchGrow keeps a mid-body StackOverflow local: it grows and
// resumes here instead of unwinding past the loop.
func (s *State) runLoopBody(bodyPC int) *Error {
	s.pc = bodyPC
	return s.dispatchGrow()
}

// execForIter implements forIter: pops the iterable, resolves an
// iterator() (built in for List/Map, otherwise the registered method
// symbol), then repeatedly calls next(), binding each yielded value to
// slot and running the loop body until exhaustion or a break.
func (s *State) execForIter(slot int, bodyPC int) *Error {
	iterableVal := s.pop()
	iterVal, err := s.resolveIterator(iterableVal)
	if err != nil {
		return err
	}

	for {
		nextVal, hasNext, nerr := s.iteratorNext(iterVal)
		if nerr != nil {
			s.releaseIfPointer(iterVal)
			return nerr
		}
		if !hasNext {
			break
		}
		s.setSlot(slot, nextVal)
		if err := s.runLoopBody(bodyPC); err != nil {
			s.releaseIfPointer(iterVal)
			return err
		}
	}

	s.releaseIfPointer(iterVal)
	return nil
}

// resolveIterator obtains the iterator value for iterableVal, transferring
// ownership of the popped iterable into the returned iterator: List and Map
// are their own iterators (a builtin cursor lives directly on the object),
// so ownership simply passes through unchanged; any other heap kind must
// have a registered native iterator() method.
func (s *State) resolveIterator(iterableVal value.Value) (value.Value, *Error) {
	if !iterableVal.IsPointer() {
		return value.Value(0), panicf("for loop target is not iterable")
	}
	switch s.object(iterableVal).(type) {
	case *object.List, *object.Map:
		return iterableVal, nil
	}

	receiverType := s.Heap.TypeID(heap.Address(iterableVal.AsPointer()))
	entry, ok := s.Methods.Resolve(s.IteratorMethodID, receiverType)
	if !ok {
		s.releaseIfPointer(iterableVal)
		return value.Value(0), panicf("Missing function symbol %q", s.Methods.Name(s.IteratorMethodID))
	}
	if entry.Kind != symtab.MethodEntryNativeOne {
		s.releaseIfPointer(iterableVal)
		return value.Value(0), panicf("iterator() must be a native method")
	}
	res, nerr := entry.NativeOne(iterableVal, nil)
	s.releaseIfPointer(iterableVal)
	if nerr != nil {
		return value.Value(0), panicf("%s", nerr.Error())
	}
	return res, nil
}

// iteratorNext advances iterVal, returning (value, true) on a hit or
// (_, false) once exhausted.
func (s *State) iteratorNext(iterVal value.Value) (value.Value, bool, *Error) {
	if !iterVal.IsPointer() {
		return value.Value(0), false, panicf("iterator is not a heap object")
	}
	switch o := s.object(iterVal).(type) {
	case *object.List:
		v, ok := o.Next()
		if ok {
			s.retainIfPointer(v)
		}
		return v, ok, nil
	case *object.Map:
		v, ok := o.Next()
		if ok {
			s.retainIfPointer(v)
		}
		return v, ok, nil
	}

	receiverType := s.Heap.TypeID(heap.Address(iterVal.AsPointer()))
	entry, ok := s.Methods.Resolve(s.NextMethodID, receiverType)
	if !ok {
		return value.Value(0), false, panicf("Missing function symbol %q", s.Methods.Name(s.NextMethodID))
	}
	if entry.Kind != symtab.MethodEntryNativeOne {
		return value.Value(0), false, panicf("next() must be a native method")
	}
	v, nerr := entry.NativeOne(iterVal, nil)
	if nerr != nil {
		return value.Value(0), false, panicf("%s", nerr.Error())
	}
	if v.IsNone() {
		return v, false, nil
	}
	return v, true, nil
}

// execForRange implements forRange: pops {start, end, step} (step pushed
// last), chooses ascending or descending based on start <= end, and steps
// by |step| until end is reached.
func (s *State) execForRange(slot int, bodyPC int) *Error {
	stepV := s.pop()
	endV := s.pop()
	startV := s.pop()

	start, ok1 := s.toFloat(startV)
	end, ok2 := s.toFloat(endV)
	step, ok3 := s.toFloat(stepV)
	if !ok1 || !ok2 || !ok3 {
		return panicf("for-range bounds must be numbers")
	}
	if step == 0 {
		return panicf("for-range step must be nonzero")
	}
	if step < 0 {
		step = -step
	}

	if start <= end {
		for i := start; i < end; i += step {
			s.setSlot(slot, value.InitFloat(i))
			if err := s.runLoopBody(bodyPC); err != nil {
				return err
			}
		}
	} else {
		for i := start; i > end; i -= step {
			s.setSlot(slot, value.InitFloat(i))
			if err := s.runLoopBody(bodyPC); err != nil {
				return err
			}
		}
	}
	return nil
}
