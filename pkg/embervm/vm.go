package embervm

import (
	"github.com/emberlang/embervm/internal/embervm/bytecode"
	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/symtab"
	"github.com/emberlang/embervm/internal/embervm/trace"
	"github.com/emberlang/embervm/internal/embervm/value"
	internalvm "github.com/emberlang/embervm/internal/embervm/vm"
)

// The public surface re-exports the wire-format and value types a host needs
// to assemble a program and read back results, so callers outside this
// module never import internal/embervm directly.
type (
	// Value is the VM's tagged 64-bit word.
	Value = value.Value
	// ByteCodeBuffer is the unit of work Eval runs.
	ByteCodeBuffer = bytecode.ByteCodeBuffer
	// Builder hand-assembles a ByteCodeBuffer; this module ships no compiler.
	Builder = bytecode.Builder
	// NativeFn is the free-function native call ABI.
	NativeFn = symtab.NativeFn
	// NativeMethodOne is the one-return native method ABI.
	NativeMethodOne = symtab.NativeMethodOne
	// NativeMethodTwo is the two-return native method ABI.
	NativeMethodTwo = symtab.NativeMethodTwo
	// StackFrame is one entry of a materialized panic trace.
	StackFrame = trace.StackFrame
	// FrameNamer resolves a debug table's frameNodeIndex to a function name.
	FrameNamer = trace.FrameNamer
	// PositionResolver maps an AST node index to a source (line, col).
	PositionResolver = trace.PositionResolver
)

func NewBuilder() *Builder { return bytecode.NewBuilder() }

// Value constructors, re-exported so hosts can assemble constant pools and
// native-function results without importing internal packages.
var (
	InitFloat       = value.InitFloat
	InitBool        = value.InitBool
	InitNone        = value.InitNone
	InitConstString = value.InitConstString
)

// TraceInfo configures GetStackTrace's name/position resolution and
// whether the retain/release accounting sink is installed. The compiler
// owns the AST, so Namer/Pos are supplied by the host.
type TraceInfo struct {
	Namer  FrameNamer
	Pos    PositionResolver
	Enable bool
}

// VM is the host-facing facade over the internal interpreter: construction,
// the eval/release lifecycle, string marshaling, and panic-trace retrieval.
// It is a thin wrapper translating internal errors to the public Error
// type and internal state to public Values.
type VM struct {
	state *internalvm.State
	cfg   *Config
	trace *TraceInfo
}

// New constructs a VM per cfg: pre-sized stack, reserved iterator/next
// method symbols, first heap page allocated. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*VM, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Code: ErrInvalidConfig, Message: "invalid VM configuration", Cause: err}
	}
	vm := &VM{
		state: internalvm.NewWithStackSlots(cfg.InitialStackSlots),
		cfg:   cfg,
	}
	if cfg.EnableTrace {
		vm.state.SetTrace(&trace.Sink{})
	}
	return vm, nil
}

// Deinit frees all heap pages unconditionally, ignoring any still-live
// reference counts.
func (v *VM) Deinit() {
	v.state.Deinit()
}

// SetTrace stores info and installs the retain/release accounting sink when
// info.Enable is set; nil or Enable=false removes the sink. GetStackTrace
// takes its resolvers from its own argument, not from the stored info.
func (v *VM) SetTrace(info *TraceInfo) {
	v.trace = info
	if info == nil || !info.Enable {
		v.state.SetTrace(nil)
		return
	}
	v.state.SetTrace(&trace.Sink{})
}

// Eval rebinds code and runs it to completion; heap pages carry over
// between runs. On a clean exit it returns the top-of-stack Value (None if
// the program left no result); on a panic it returns a *Error wrapping the
// internal panic kind.
func (v *VM) Eval(code *ByteCodeBuffer) (Value, error) {
	if code == nil {
		return value.InitNone(), &Error{Code: ErrInvalidInput, Message: "nil bytecode buffer"}
	}
	err := v.state.Eval(code)
	if err != nil {
		return value.InitNone(), translateError(err)
	}
	// The main frame occupies slots [0, MainLocalSize]: slot 0 is the
	// synthetic RetInfo, then the locals. Anything above that is a result.
	if v.state.StackTop() > int(code.MainLocalSize)+1 {
		return v.state.StackSlice()[v.state.StackTop()-1], nil
	}
	return value.InitNone(), nil
}

func translateError(err *internalvm.Error) *Error {
	code := ErrPanic
	switch err.Kind {
	case internalvm.KindStackOverflow:
		code = ErrStackOverflow
	case internalvm.KindOutOfMemory:
		code = ErrOutOfMemory
	case internalvm.KindNoDebugSym:
		code = ErrNoDebugSym
	case internalvm.KindPanic, internalvm.KindOutOfBounds:
		code = ErrPanic
	}
	return &Error{Code: code, Message: err.Msg}
}

// GetPanicMsg returns the message captured by the most recent panicking
// Eval, or "" if the last Eval succeeded.
func (v *VM) GetPanicMsg() string {
	return v.state.PanicMsg()
}

// GetStackTrace unwinds the in-band RetInfo chain from the VM's current
// frame pointer back to main, resolving each frame via info.Namer/info.Pos.
// Call it immediately after a panicking Eval, before the next Eval rebinds
// the stack. Returns ErrNoDebugSym wrapped as a *Error if the debug table is
// incomplete.
func (v *VM) GetStackTrace(info *TraceInfo) ([]StackFrame, error) {
	if info == nil || info.Namer == nil || info.Pos == nil {
		return nil, &Error{Code: ErrInvalidInput, Message: "GetStackTrace requires a Namer and Pos resolver"}
	}
	frames, err := trace.Unwind(v.state.StackSlice(), v.state.FramePtr(), v.state.DebugTable(), info.Namer, info.Pos)
	if err != nil {
		return frames, &Error{Code: ErrNoDebugSym, Message: "incomplete debug table during unwind", Cause: err}
	}
	return frames, nil
}

// CheckMemory runs the cycle-breaking sweep and reports whether the live
// heap was cycle-free. Debugging-only: it force-releases any cycle it
// finds, it is not a scheduled collector.
func (v *VM) CheckMemory() bool {
	return v.state.CheckMemory()
}

// Release decrements a Value's reference count if it is a heap pointer; a
// no-op for any other Value kind. Hosts must call this for every Value
// handed back across the Eval boundary once they are done with it.
func (v *VM) Release(val Value) {
	if val.IsPointer() {
		v.state.Heap.Release(heap.Address(val.AsPointer()))
	}
}

// Retain increments a Value's reference count if it is a heap pointer,
// mirroring Release for hosts that fan a single result out to multiple
// owners.
func (v *VM) Retain(val Value) {
	if val.IsPointer() {
		v.state.Heap.Retain(heap.Address(val.AsPointer()))
	}
}

// AllocString allocates s as a heap-resident (non-interned) String object,
// for constructing host-supplied arguments that a bytecode buffer's own
// constant pool cannot express (the constant pool is fixed at assembly
// time). The returned Value owns one reference; release it like any other
// heap Value.
func (v *VM) AllocString(s string) Value {
	addr := v.state.Heap.AllocObject()
	v.state.Heap.InitSlot(addr, object.TypeString, 1, object.NewString(s))
	return value.InitPointer(uint64(addr))
}

// ValueAsString reads a String Value's bytes back, whether it is a heap
// String object or a ConstString interned against code's string pool. code
// may be nil if val is known not to be a ConstString.
func (v *VM) ValueAsString(val Value, code *ByteCodeBuffer) ([]byte, bool) {
	if val.IsString() {
		if code == nil {
			return nil, false
		}
		s, ok := code.StringAt(val)
		if !ok {
			return nil, false
		}
		return []byte(s), true
	}
	if val.IsPointer() {
		if str, ok := v.state.Heap.ObjectAt(heap.Address(val.AsPointer())).(*object.String); ok {
			return str.Bytes, true
		}
	}
	return nil, false
}

// --- Symbol registration ---------------------------------------------------
//
// The compiler that would normally populate these tables is external to
// this module; the host API exposes the registration primitives directly
// so a test harness or embedding compiler can bind user/native functions,
// methods, and fields before calling Eval. Native callbacks that need the
// VM itself (to allocate strings or retain/release values) capture the *VM
// in the closure they register.

// DeclareFunc reserves a function symbol, returning its id for use as a
// callSym operand.
func (v *VM) DeclareFunc(name string) int { return v.state.Funcs.Declare(name) }

// DefineUserFunc fills in a previously declared symbol as a bytecode
// function living at pc within the buffer Eval will run.
func (v *VM) DefineUserFunc(id, pc, numParams, numLocals int) {
	v.state.Funcs.DefineUser(id, pc, numParams, numLocals)
}

// DefineNativeFunc fills in a previously declared symbol as a host-provided
// Go function.
func (v *VM) DefineNativeFunc(id int, fn NativeFn) {
	v.state.Funcs.DefineNative(id, fn)
}

// LookupFunc resolves a function symbol by name.
func (v *VM) LookupFunc(name string) (int, bool) { return v.state.Funcs.Lookup(name) }

// DeclareMethod reserves a method symbol, returning its id for use as a
// callObjSym operand.
func (v *VM) DeclareMethod(name string) int { return v.state.Methods.Declare(name) }

// AddUserMethod registers typeID's user-function implementation of
// methodID, following the {empty, oneType, manyTypes+MRU} promotion ladder.
func (v *VM) AddUserMethod(methodID int, typeID uint32, pc, numParams, numLocals int) error {
	return v.state.Methods.AddMethodSym(methodID, typeID, symtab.MethodEntry{
		Kind: symtab.MethodEntryUser, PC: pc, NumParams: numParams, NumLocals: numLocals,
	})
}

// AddNativeMethodOne registers typeID's one-return native implementation of
// methodID.
func (v *VM) AddNativeMethodOne(methodID int, typeID uint32, fn NativeMethodOne) error {
	return v.state.Methods.AddMethodSym(methodID, typeID, symtab.MethodEntry{
		Kind: symtab.MethodEntryNativeOne, NativeOne: fn,
	})
}

// AddNativeMethodTwo registers typeID's two-return native implementation of
// methodID (e.g. a deletion reporting a found flag alongside its result).
func (v *VM) AddNativeMethodTwo(methodID int, typeID uint32, fn NativeMethodTwo) error {
	return v.state.Methods.AddMethodSym(methodID, typeID, symtab.MethodEntry{
		Kind: symtab.MethodEntryNativeTwo, NativeTwo: fn,
	})
}

// DeclareField reserves a field symbol, returning its id for use as a
// pushField/setField operand.
func (v *VM) DeclareField(name string) int { return v.state.Fields.Declare(name) }

// BindField caches fieldID against typeID's SmallObject slot index.
// isSmallObject is recorded on the symbol but not consulted by field access:
// a Map receiver is always looked up by name.
func (v *VM) BindField(fieldID int, typeID uint32, fieldIndex int, isSmallObject bool) {
	v.state.Fields.Bind(fieldID, typeID, fieldIndex, isSmallObject)
}

// IteratorMethodID and NextMethodID are the reserved iterator()/next()
// method symbols forIter resolves against for non-builtin iterable kinds.
// Host-registered iterable types implement these via AddNativeMethodOne.
func (v *VM) IteratorMethodID() int { return v.state.IteratorMethodID }
func (v *VM) NextMethodID() int     { return v.state.NextMethodID }

// Built-in type IDs, re-exported so a host assigning user type IDs knows
// where FirstUserType begins.
const (
	TypeList      = object.TypeList
	TypeMap       = object.TypeMap
	TypeClosure   = object.TypeClosure
	TypeLambda    = object.TypeLambda
	TypeString    = object.TypeString
	FirstUserType = object.FirstUserType
)
