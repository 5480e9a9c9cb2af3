// Package vm implements the switch-dispatched bytecode interpreter: the
// value stack with in-band call-frame linkage, the instruction handlers
// grouped by category, the call ABI, and stack growth.
package vm

import (
	"github.com/emberlang/embervm/internal/embervm/bytecode"
	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/symtab"
	"github.com/emberlang/embervm/internal/embervm/trace"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// minStackSlots is the value stack's minimum pre-sized capacity.
const minStackSlots = 512

// minMethodBuckets is the method table's minimum initial reservation.
const minMethodBuckets = 512

// reservedSpareSlots is the number of guaranteed spare stack slots every
// frame carries so popStackFrame's None-fill path never needs to check
// capacity itself.
const reservedSpareSlots = 2

// State is the complete mutable state of one VM instance: the value stack
// (doubling as the call stack via in-band RetInfo), the object heap, the
// three symbol tables, and the currently-bound bytecode buffer.
type State struct {
	Heap *heap.Heap

	Funcs   *symtab.FuncTable
	Fields  *symtab.FieldTable
	Methods *symtab.MethodTable

	// IteratorMethodID and NextMethodID are the method symbols the compiler
	// is expected to have pre-resolved for forIter's iterator()/next()
	// protocol.
	IteratorMethodID int
	NextMethodID     int

	stack    []value.Value
	top      int
	framePtr int
	pc       int

	code *bytecode.ByteCodeBuffer

	panicMsg string
	trace    *trace.Sink

	// fieldNameKeys/fieldNamePool intern field names as ConstString Values
	// for the Map-by-name field fallback, independent of whatever string
	// pool the currently-bound bytecode buffer carries.
	fieldNameKeys map[string]value.Value
	fieldNamePool []byte
}

// New constructs a VM bound to a fresh heap and empty symbol tables, with
// a pre-sized stack, the reserved iterator/next method symbols, and the
// first heap page allocated.
func New() *State {
	return NewWithStackSlots(minStackSlots)
}

// NewWithStackSlots is New with an explicit initial stack capacity,
// clamped to the 512-slot minimum.
func NewWithStackSlots(stackSlots int) *State {
	if stackSlots < minStackSlots {
		stackSlots = minStackSlots
	}
	s := &State{
		Heap:    heap.New(),
		Funcs:   symtab.NewFuncTable(),
		Fields:  symtab.NewFieldTable(),
		Methods: symtab.NewMethodTable(),
		stack:   make([]value.Value, stackSlots),
	}
	s.IteratorMethodID = s.Methods.Declare("iterator")
	s.NextMethodID = s.Methods.Declare("next")
	return s
}

// SetTrace installs a trace sink; nil disables tracing.
func (s *State) SetTrace(sink *trace.Sink) { s.trace = sink }

// PanicMsg returns the message set by the most recent panicking Eval.
func (s *State) PanicMsg() string { return s.panicMsg }

// StackTop returns the current stack height.
func (s *State) StackTop() int { return s.top }

// FramePtr returns the current frame pointer, used by the public facade to
// unwind a panic's in-band RetInfo chain.
func (s *State) FramePtr() int { return s.framePtr }

// StackSlice returns the live portion of the value stack, for unwinding.
func (s *State) StackSlice() []value.Value { return s.stack[:s.top] }

// DebugTable returns the currently-bound bytecode buffer's debug table.
func (s *State) DebugTable() []bytecode.DebugSym {
	if s.code == nil {
		return nil
	}
	return s.code.DebugTable
}

// Code returns the currently-bound bytecode buffer.
func (s *State) Code() *bytecode.ByteCodeBuffer { return s.code }

// CheckMemory runs the cycle-breaking sweep and reports whether the live
// heap was cycle-free.
func (s *State) CheckMemory() bool { return s.Heap.CheckMemory() }

// Deinit releases all heap pages unconditionally, ignoring any still-live
// reference counts.
func (s *State) Deinit() {
	s.Heap = heap.New()
}

func (s *State) ensureCapacity(n int) {
	for len(s.stack) < n {
		grown := make([]value.Value, len(s.stack)*2)
		copy(grown, s.stack)
		s.stack = grown
	}
}

func (s *State) push(v value.Value) *Error {
	if s.top >= len(s.stack) {
		s.ensureCapacity(s.top + 1)
	}
	s.stack[s.top] = v
	s.top++
	return nil
}

func (s *State) pop() value.Value {
	s.top--
	v := s.stack[s.top]
	s.stack[s.top] = value.InitNone()
	return v
}

func (s *State) peek(depthFromTop int) value.Value {
	return s.stack[s.top-1-depthFromTop]
}

func (s *State) slot(i int) value.Value { return s.stack[s.framePtr+i] }

func (s *State) setSlot(i int, v value.Value) { s.stack[s.framePtr+i] = v }

// releaseIfPointer releases v's referent if v is a heap pointer.
func (s *State) releaseIfPointer(v value.Value) {
	if v.IsPointer() {
		s.Heap.Release(heap.Address(v.AsPointer()))
		if s.trace != nil {
			s.trace.RecordRelease()
		}
	}
}

func (s *State) retainIfPointer(v value.Value) {
	if v.IsPointer() {
		s.Heap.Retain(heap.Address(v.AsPointer()))
		if s.trace != nil {
			s.trace.RecordRetain()
		}
	}
}

// object resolves a Value known to be a pointer into its concrete payload.
func (s *State) object(v value.Value) heap.Object {
	return s.Heap.ObjectAt(heap.Address(v.AsPointer()))
}

// stringOf resolves a String-kind Value (interned constant or heap object)
// to its Go string, used by the float-coercion table and string
// concatenation.
func (s *State) stringOf(v value.Value) (string, bool) {
	if v.IsString() {
		return s.code.StringAt(v)
	}
	if v.IsPointer() {
		if str, ok := s.object(v).(*object.String); ok {
			return string(str.Bytes), true
		}
	}
	return "", false
}

func (s *State) toFloat(v value.Value) (float64, bool) {
	return v.ToFloat(func(v value.Value) (string, bool) { return s.stringOf(v) })
}
