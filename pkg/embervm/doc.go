// Package embervm is the public facade over the bytecode virtual machine
// core: a stack-based interpreter with a NaN-boxed tagged value
// representation, a slab-allocated reference-counted object heap, and a
// method/field dispatch cache.
//
// # Features
//
//   - A tagged 64-bit Value word distinguishing native doubles from boxed
//     None/True/False/ConstString/Pointer/RetInfo payloads.
//   - A fixed-slot slab heap with an intrusive free-span list, reference
//     counting, and a debugging cycle-breaking sweep (CheckMemory).
//   - A switch-dispatched interpreter loop over a contiguous value stack
//     doubling as the call stack via in-band return-frame linkage.
//   - Function, field, and method symbol tables with an
//     {empty, one-type, many-types+MRU} polymorphic-cache promotion ladder.
//   - Panic unwinding to a source-mapped stack trace via a host-supplied
//     debug table and name/position resolvers.
//
// This package has no lexer, parser, or compiler of its own: the host
// assembles a ByteCodeBuffer directly (or via Builder, for tests and small
// embeddings) and registers function/method/field symbols through the VM's
// Declare*/Define*/Add* methods before calling Eval.
//
// # Quick Start
//
//	vm, err := embervm.New(embervm.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer vm.Deinit()
//
//	b := embervm.NewBuilder()
//	b.MainLocals(0)
//	b.Emit1U16(embervm.OpPushConst, b.Const(embervm.InitFloat(42)))
//	b.Emit0(embervm.OpEnd)
//	result, err := vm.Eval(b.Build())
//	if err != nil {
//		var vmErr *embervm.Error
//		if errors.As(err, &vmErr) && vmErr.Code == embervm.ErrPanic {
//			fmt.Println("panic:", vm.GetPanicMsg())
//		}
//	}
//
// # Architecture
//
// internal/embervm/value implements the NaN-boxed Value type.
// internal/embervm/heap implements the slab allocator, reference counting,
// and cycle detector. internal/embervm/object defines the closed set of
// heap-resident kinds (List, Map, String, Lambda, Closure, SmallObject).
// internal/embervm/symtab implements the three symbol tables. internal/
// embervm/bytecode defines the opcode vocabulary, the ByteCodeBuffer wire
// format, and the hand-assembly Builder. internal/embervm/vm implements the
// dispatch loop itself. internal/embervm/trace implements stack-trace
// unwinding and bytecode-buffer fingerprinting. This package wraps all of
// the above behind a stable API, translating internal errors to the public
// Error type.
package embervm
