package vm

import (
	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/symtab"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// execCallValue implements call0/call1: the callee sits at stack top
// (numArgs includes that slot) and is either a Lambda or a Closure.
// Closure.NumLocals already includes the frame slots reserved for its
// captures, which bindClosureCaptures fills in after frame setup.
func (s *State) execCallValue(numArgs, required, returnPC int) *Error {
	calleeVal := s.stack[s.top-1]
	if !calleeVal.IsPointer() {
		return panicf("call target is not callable")
	}
	switch fn := s.object(calleeVal).(type) {
	case *object.Lambda:
		if _, err := s.pushStackFrame(numArgs, fn.FuncPC, fn.NumParams, fn.NumLocals, required, returnPC); err != nil {
			return err
		}
		return nil
	case *object.Closure:
		if _, err := s.pushStackFrame(numArgs, fn.FuncPC, fn.NumParams, fn.NumLocals, required, returnPC); err != nil {
			return err
		}
		s.bindClosureCaptures(fn)
		return nil
	default:
		return panicf("call target is not callable")
	}
}

// bindClosureCaptures copies a Closure's captured values into the frame
// slots immediately following its parameters, retaining each since the
// Closure itself keeps its own reference.
func (s *State) bindClosureCaptures(c *object.Closure) {
	n := c.NumCaptured()
	base := s.framePtr + 1 + c.NumParams
	for i := 0; i < n; i++ {
		v := c.Capture(i)
		s.retainIfPointer(v)
		s.stack[base+i] = v
	}
}

// execCallSym implements callSym0/callSym1: funcID resolves directly
// through FuncTable; the compiler emits a throwaway placeholder in the top
// slot since the callee is resolved by ID.
func (s *State) execCallSym(funcID, numArgs, required, returnPC int) *Error {
	sym, serr := s.Funcs.Get(funcID)
	if serr != nil {
		return panicf("%s", serr.Error())
	}

	switch sym.Kind {
	case symtab.FuncUser:
		if _, err := s.pushStackFrame(numArgs, sym.PC, sym.NumParams, sym.NumLocals, required, returnPC); err != nil {
			return err
		}
		return nil

	case symtab.FuncNative:
		argsStart := s.top - numArgs
		args := append([]value.Value(nil), s.stack[argsStart:argsStart+numArgs-1]...)
		result, nerr := sym.Native(args)
		s.top = argsStart
		if nerr != nil {
			return panicf("%s", nerr.Error())
		}
		if required == 1 {
			return s.push(result)
		}
		s.releaseIfPointer(result)
		return nil

	default:
		return panicf("Missing function symbol %q", sym.Name)
	}
}

// execCallObjSym implements callObjSym0/callObjSym1: the receiver is the
// first of numArgs, its heap typeId drives the method cache, and a miss on
// a Map receiver falls back to a by-name lookup of a callable stored under
// the method's name before panicking.
func (s *State) execCallObjSym(methodID, numArgs, required, returnPC int) *Error {
	if numArgs < 1 {
		return panicf("callObjSym requires a receiver argument")
	}
	argsStart := s.top - numArgs
	receiver := s.stack[argsStart]

	var receiverType uint32
	if receiver.IsPointer() {
		receiverType = s.Heap.TypeID(heap.Address(receiver.AsPointer()))
	}

	entry, ok := s.Methods.Resolve(methodID, receiverType)
	if !ok {
		if receiver.IsPointer() {
			if m, isMap := s.object(receiver).(*object.Map); isMap {
				key := s.fieldNameKey(s.Methods.Name(methodID))
				if callee, found := m.Get(key); found && callee.IsPointer() {
					// Re-home the looked-up callable into the placeholder
					// slot and dispatch through the ordinary value-call path.
					s.stack[s.top-1] = callee
					s.retainIfPointer(callee)
					return s.execCallValue(numArgs, required, returnPC)
				}
			}
		}
		return panicf("Missing function symbol %q", s.Methods.Name(methodID))
	}

	s.retainIfPointer(receiver)

	switch entry.Kind {
	case symtab.MethodEntryUser:
		if _, err := s.pushStackFrame(numArgs, entry.PC, entry.NumParams, entry.NumLocals, required, returnPC); err != nil {
			return err
		}
		return nil

	case symtab.MethodEntryNativeOne:
		args := append([]value.Value(nil), s.stack[argsStart+1:argsStart+numArgs-1]...)
		result, nerr := entry.NativeOne(receiver, args)
		s.releaseIfPointer(receiver)
		s.top = argsStart
		if nerr != nil {
			return panicf("%s", nerr.Error())
		}
		if required == 1 {
			return s.push(result)
		}
		s.releaseIfPointer(result)
		return nil

	case symtab.MethodEntryNativeTwo:
		args := append([]value.Value(nil), s.stack[argsStart+1:argsStart+numArgs-1]...)
		primary, secondary, nerr := entry.NativeTwo(receiver, args)
		s.releaseIfPointer(receiver)
		s.top = argsStart
		if nerr != nil {
			return panicf("%s", nerr.Error())
		}
		// callObjSym0/callObjSym1 reserve at most one return slot; the
		// secondary value (e.g. a map-delete found flag) is always released
		// unread.
		s.releaseIfPointer(secondary)
		if required == 1 {
			return s.push(primary)
		}
		s.releaseIfPointer(primary)
		return nil

	default:
		return panicf("Missing function symbol %q", s.Methods.Name(methodID))
	}
}
