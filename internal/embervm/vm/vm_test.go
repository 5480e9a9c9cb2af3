package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/embervm/internal/embervm/bytecode"
	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/symtab"
	"github.com/emberlang/embervm/internal/embervm/trace"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// TestArithmeticPrecedence evaluates 1 + 2 * 3. No compiler exists, so the
// program is hand-assembled in stack order.
func TestArithmeticPrecedence(t *testing.T) {
	b := bytecode.NewBuilder()
	b.MainLocals(0)
	c1 := b.Const(value.InitFloat(1))
	c2 := b.Const(value.InitFloat(2))
	c3 := b.Const(value.InitFloat(3))
	b.Emit1U16(bytecode.OpPushConst, c1)
	b.Emit1U16(bytecode.OpPushConst, c2)
	b.Emit1U16(bytecode.OpPushConst, c3)
	b.Emit0(bytecode.OpMul)
	b.Emit0(bytecode.OpAdd)
	b.Emit0(bytecode.OpEnd)
	code := b.Build()

	s := New()
	err := s.Eval(code)
	require.Nil(t, err)
	require.Greater(t, s.StackTop(), int(code.MainLocalSize))
	assert.Equal(t, float64(7), s.StackSlice()[s.StackTop()-1].AsFloat())
}

// TestListNegativeIndexAndSlice covers a[-1] and a[1:3] over a four-element
// list, plus the retain/release balance the indexing path produces when no
// element it touches is itself a pointer.
func TestListNegativeIndexAndSlice(t *testing.T) {
	buildList := func(b *bytecode.Builder) {
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(10)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(20)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(30)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(40)))
		b.Emit1U16(bytecode.OpPushList, 4)
	}

	t.Run("negative index", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		buildList(b)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(-1)))
		b.Emit0(bytecode.OpPushIndex)
		b.Emit0(bytecode.OpEnd)
		code := b.Build()

		s := New()
		s.SetTrace(&trace.Sink{})
		err := s.Eval(code)
		require.Nil(t, err)
		assert.Equal(t, float64(40), s.StackSlice()[s.StackTop()-1].AsFloat())
		assert.Equal(t, 0, s.Heap.LiveCount(), "the source list must be released once consumed")
	})

	t.Run("slice 1:3", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		buildList(b)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(3)))
		b.Emit0(bytecode.OpPushSlice)
		b.Emit0(bytecode.OpEnd)
		code := b.Build()

		s := New()
		err := s.Eval(code)
		require.Nil(t, err)

		result := s.StackSlice()[s.StackTop()-1]
		require.True(t, result.IsPointer())
		sliced, ok := s.object(result).(*object.List)
		require.True(t, ok)
		require.Equal(t, 2, sliced.Len())
		assert.Equal(t, float64(20), sliced.Items[0].AsFloat())
		assert.Equal(t, float64(30), sliced.Items[1].AsFloat())
		addr := heap.Address(result.AsPointer())
		assert.GreaterOrEqual(t, s.Heap.RC(addr), int32(1))

		s.Heap.Release(addr)
		assert.Equal(t, 0, s.Heap.LiveCount())
	})
}

// TestRetainReleaseBalanceInTraceMode checks retain/release accounting for
// a cycle-free program whose only pointer is the source list itself: the
// retrieved element is a plain number, so no retain fires, and the one
// release is the list going to zero refs once pushIndex consumes it.
func TestRetainReleaseBalanceInTraceMode(t *testing.T) {
	b := bytecode.NewBuilder()
	b.MainLocals(0)
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(2)))
	b.Emit1U16(bytecode.OpPushList, 2)
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(0)))
	b.Emit0(bytecode.OpPushIndex)
	b.Emit0(bytecode.OpEnd)
	code := b.Build()

	s := New()
	sink := &trace.Sink{}
	s.SetTrace(sink)
	err := s.Eval(code)
	require.Nil(t, err)

	assert.Equal(t, uint64(0), sink.NumRetains)
	assert.Equal(t, uint64(1), sink.NumReleases)
	assert.Equal(t, 0, s.Heap.LiveCount())
}

// TestClosureCapture builds (n => (x => x + n))(10)(5) == 15 entirely by
// hand: a forward jump over two nested function bodies, an outer Lambda that
// captures its single parameter into an inner Closure, and a main body that
// calls the outer lambda then immediately calls the closure it returns.
func TestClosureCapture(t *testing.T) {
	b := bytecode.NewBuilder()

	jumpPos := b.Label()
	b.EmitJump(bytecode.OpJump, 0)

	innerLabel := b.Label()
	b.Emit1U16(bytecode.OpLoad, 1) // x (param)
	b.Emit1U16(bytecode.OpLoad, 2) // n (capture)
	b.Emit0(bytecode.OpAdd)
	b.Emit0(bytecode.OpRet1)

	outerLabel := b.Label()
	b.Emit1U16(bytecode.OpLoad, 1) // n (param), captured below
	closurePos := b.Label()
	relInner := int32(innerLabel - (closurePos + 11))
	b.EmitPushClosure(relInner, 1, 1, 1)
	b.Emit0(bytecode.OpRet1)

	b.PatchJump(jumpPos)

	b.MainLocals(1)
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(10)))
	lambdaPos := b.Label()
	relOuter := int32(outerLabel - (lambdaPos + 9))
	b.EmitPushLambda(relOuter, 1, 0)
	b.Emit1U16(bytecode.OpCall1, 2)
	b.Emit1U16(bytecode.OpSet, 1)
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(5)))
	b.Emit1U16(bytecode.OpLoad, 1)
	b.Emit1U16(bytecode.OpCall1, 2)
	b.Emit0(bytecode.OpEnd)

	code := b.Build()
	s := New()
	err := s.Eval(code)
	require.Nil(t, err)
	assert.Equal(t, float64(15), s.StackSlice()[s.StackTop()-1].AsFloat())
}

// TestDynamicDispatchPromotion registers a method on two distinct types and
// alternates calls between them, asserting the table promotes to
// manyTypes+MRU and every call resolves to the right implementation, through
// the full callObjSym execution path (not just MethodTable directly).
func TestDynamicDispatchPromotion(t *testing.T) {
	const typeA uint32 = object.FirstUserType
	const typeB uint32 = object.FirstUserType + 1

	b := bytecode.NewBuilder()
	jumpPos := b.Label()
	b.EmitJump(bytecode.OpJump, 0)

	methodALabel := b.Label()
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(100)))
	b.Emit0(bytecode.OpRet1)

	methodBLabel := b.Label()
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(200)))
	b.Emit0(bytecode.OpRet1)

	b.PatchJump(jumpPos)
	b.MainLocals(0)

	s := New()
	methodM := s.Methods.Declare("m")
	require.NoError(t, s.Methods.AddMethodSym(methodM, typeA, symtab.MethodEntry{
		Kind: symtab.MethodEntryUser, PC: methodALabel,
	}))
	assert.Equal(t, symtab.MethodOneType, s.Methods.Shape(methodM))
	require.NoError(t, s.Methods.AddMethodSym(methodM, typeB, symtab.MethodEntry{
		Kind: symtab.MethodEntryUser, PC: methodBLabel,
	}))
	assert.Equal(t, symtab.MethodManyTypes, s.Methods.Shape(methodM))

	addrA := s.Heap.AllocObject()
	s.Heap.InitSlot(addrA, typeA, 1, object.NewSmallObject(typeA, nil))
	addrB := s.Heap.AllocObject()
	s.Heap.InitSlot(addrB, typeB, 1, object.NewSmallObject(typeB, nil))

	for i := 0; i < 10; i++ {
		addr := addrA
		want := float64(100)
		if i%2 == 1 {
			addr = addrB
			want = 200
		}

		call := bytecode.NewBuilder()
		call.MainLocals(0)
		call.Emit1U16(bytecode.OpPushConst, call.Const(value.InitPointer(uint64(addr))))
		call.Emit0(bytecode.OpPushNone)
		call.Emit2U16(bytecode.OpCallObjSym1, uint16(methodM), 2)
		call.Emit0(bytecode.OpEnd)

		// Share the function bodies' PCs across every per-iteration buffer
		// by prefixing each call's own bytecode with the two method bodies,
		// since a ByteCodeBuffer's Ops field is independent per Eval.
		prefixed := bytecode.NewBuilder()
		prefixedJump := prefixed.Label()
		prefixed.EmitJump(bytecode.OpJump, 0)
		require.Equal(t, methodALabel, prefixed.Label())
		prefixed.Emit1U16(bytecode.OpPushConst, prefixed.Const(value.InitFloat(100)))
		prefixed.Emit0(bytecode.OpRet1)
		require.Equal(t, methodBLabel, prefixed.Label())
		prefixed.Emit1U16(bytecode.OpPushConst, prefixed.Const(value.InitFloat(200)))
		prefixed.Emit0(bytecode.OpRet1)
		prefixed.PatchJump(prefixedJump)
		prefixed.MainLocals(0)
		prefixed.Emit1U16(bytecode.OpPushConst, prefixed.Const(value.InitPointer(uint64(addr))))
		prefixed.Emit0(bytecode.OpPushNone)
		prefixed.Emit2U16(bytecode.OpCallObjSym1, uint16(methodM), 2)
		prefixed.Emit0(bytecode.OpEnd)

		_ = call // the standalone call buffer is not executed: PCs must match the
		// declared method bodies, which only the prefixed buffer reproduces.
		err := s.Eval(prefixed.Build())
		require.Nil(t, err, "iteration %d", i)
		assert.Equal(t, want, s.StackSlice()[s.StackTop()-1].AsFloat(), "iteration %d", i)
	}
}

// TestPanicTraceFromMissingMethod calls a missing method inside bar
// (called from main), expecting a "Missing function symbol" panic and an
// unwound trace of [bar, main], top-most first.
func TestPanicTraceFromMissingMethod(t *testing.T) {
	b := bytecode.NewBuilder()

	jumpPos := b.Label()
	b.EmitJump(bytecode.OpJump, 0)

	barLabel := b.Label()
	b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
	b.Emit0(bytecode.OpPushNone)
	callObjPos := b.Label()
	b.Emit2U16(bytecode.OpCallObjSym0, 0 /* fooMethodID, patched below */, 2)
	b.Emit0(bytecode.OpEnd)

	b.PatchJump(jumpPos)
	b.MainLocals(0)
	b.Emit0(bytecode.OpPushNone)
	callSymPos := b.Label()
	b.Emit2U16(bytecode.OpCallSym0, 0 /* barFuncID, patched below */, 1)
	b.Emit0(bytecode.OpEnd)

	s := New()
	fooMethodID := s.Methods.Declare("foo")
	barFuncID := s.Funcs.Declare("bar")
	s.Funcs.DefineUser(barFuncID, barLabel, 0, 0)

	raw := b.Build()
	// Patch the two symbol-id operands now that the ids are known (the
	// Builder has no symbol-aware emit helper since no compiler exists to
	// resolve names to ids ahead of bytecode assembly).
	raw.Ops[callObjPos+1] = byte(uint16(fooMethodID) >> 8)
	raw.Ops[callObjPos+2] = byte(uint16(fooMethodID))
	raw.Ops[callSymPos+1] = byte(uint16(barFuncID) >> 8)
	raw.Ops[callSymPos+2] = byte(uint16(barFuncID))

	returnPCFromBar := callSymPos + 5
	raw.DebugTable = []bytecode.DebugSym{
		{PC: returnPCFromBar, NodeIndex: 100, FrameNodeIndex: 1},
		{PC: 0, NodeIndex: 200, FrameNodeIndex: bytecode.NullFrameNode},
	}

	err := s.Eval(raw)
	require.NotNil(t, err)
	assert.Equal(t, KindPanic, err.Kind)
	assert.Equal(t, `Missing function symbol "foo"`, s.PanicMsg())

	namer := func(idx int) string {
		if idx == bytecode.NullFrameNode {
			return "main"
		}
		return "bar"
	}
	positions := map[int][2]int{100: {5, 3}, 200: {1, 1}}
	pos := func(nodeIndex int) (int, int) {
		p := positions[nodeIndex]
		return p[0], p[1]
	}

	frames, uerr := trace.Unwind(s.StackSlice(), s.FramePtr(), s.DebugTable(), namer, pos)
	require.NoError(t, uerr)
	require.Len(t, frames, 2)
	assert.Equal(t, "bar", frames[0].FunctionName)
	assert.Equal(t, "main", frames[1].FunctionName)
}

// TestCheckMemoryBreaksCycleThroughState builds a self-referential list
// that survives an explicit release at rc=1 only because of its own
// back-reference, then checks CheckMemory breaks it.
func TestCheckMemoryBreaksCycleThroughState(t *testing.T) {
	s := New()
	addr := s.Heap.AllocObject()
	list := object.NewList(nil)
	s.Heap.InitSlot(addr, object.TypeList, 1, list)

	list.Items = append(list.Items, value.InitPointer(uint64(addr)))
	s.Heap.Retain(addr)
	s.Heap.Release(addr)
	require.Equal(t, int32(1), s.Heap.RC(addr))

	assert.False(t, s.CheckMemory())
	assert.Equal(t, 0, s.Heap.LiveCount())
}

// TestStructFieldsAndMapLiteral covers pushStructInitSmall + the field
// opcodes' oneType fast path, and pushMap + map indexing by interned key.
func TestStructFieldsAndMapLiteral(t *testing.T) {
	t.Run("small object field read and write", func(t *testing.T) {
		const pointType = object.FirstUserType

		s := New()
		fieldX := s.Fields.Declare("x")
		s.Fields.Bind(fieldX, pointType, 0, true)

		b := bytecode.NewBuilder()
		b.MainLocals(1)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(2)))
		b.EmitPushStructInitSmall(uint16(pointType), []uint16{0, 1})
		b.Emit1U16(bytecode.OpSet, 1)
		b.Emit1U16(bytecode.OpLoadRetain, 1)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(42)))
		b.Emit1U16(bytecode.OpSetField, uint16(fieldX))
		b.Emit1U16(bytecode.OpLoad, 1)
		b.Emit1U16(bytecode.OpPushField, uint16(fieldX))
		b.Emit0(bytecode.OpEnd)

		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, float64(42), s.StackSlice()[s.StackTop()-1].AsFloat())
		assert.Equal(t, 1, s.Heap.LiveCount(), "the struct in slot 1 is still live")
		assert.True(t, s.CheckMemory())
	})

	t.Run("map literal indexes by interned key", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(10)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(20)))
		keyA := b.ConstString("a")
		b.ConstString("b") // contiguous with keyA, as pushMap's operand requires
		b.Emit2U16(bytecode.OpPushMap, 2, keyA)
		b.Emit1U16(bytecode.OpPushConst, keyA)
		b.Emit0(bytecode.OpPushIndex)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, float64(10), s.StackSlice()[s.StackTop()-1].AsFloat())
		assert.Equal(t, 0, s.Heap.LiveCount(), "the consumed map must be released")
	})

	t.Run("missing map key yields none", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		b.Emit0(bytecode.OpPushMapEmpty)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(9)))
		b.Emit0(bytecode.OpPushIndex)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.True(t, s.StackSlice()[s.StackTop()-1].IsNone())
	})
}

// TestForRangeAndForIter covers the nested-dispatch loop protocol: forRange
// over a numeric interval, forIter over a list's built-in iterator, and
// break unwinding exactly one loop level before execution continues past
// the loop.
func TestForRangeAndForIter(t *testing.T) {
	t.Run("forRange sums 0..5", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(2) // slot 1: accumulator, slot 2: loop variable
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(0)))
		b.Emit1U16(bytecode.OpSet, 1)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(0)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(5)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
		pos := b.EmitForRange(2)
		b.Emit1U16(bytecode.OpLoad, 1)
		b.Emit1U16(bytecode.OpLoad, 2)
		b.Emit0(bytecode.OpAdd)
		b.Emit1U16(bytecode.OpSet, 1)
		b.Emit0(bytecode.OpLoopBodyEnd)
		b.PatchForEnd(pos)
		b.Emit1U16(bytecode.OpLoad, 1)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, float64(10), s.StackSlice()[s.StackTop()-1].AsFloat())
	})

	t.Run("forRange descends when start exceeds end", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(2)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(0)))
		b.Emit1U16(bytecode.OpSet, 1)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(3)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(0)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
		pos := b.EmitForRange(2)
		b.Emit1U16(bytecode.OpLoad, 1)
		b.Emit1U16(bytecode.OpLoad, 2)
		b.Emit0(bytecode.OpAdd)
		b.Emit1U16(bytecode.OpSet, 1)
		b.Emit0(bytecode.OpLoopBodyEnd)
		b.PatchForEnd(pos)
		b.Emit1U16(bytecode.OpLoad, 1)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, float64(6), s.StackSlice()[s.StackTop()-1].AsFloat(), "3+2+1 iterating down to but not including 0")
	})

	t.Run("forIter sums a list", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(2)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(0)))
		b.Emit1U16(bytecode.OpSet, 1)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(2)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(3)))
		b.Emit1U16(bytecode.OpPushList, 3)
		pos := b.EmitForIter(2)
		b.Emit1U16(bytecode.OpLoad, 1)
		b.Emit1U16(bytecode.OpLoad, 2)
		b.Emit0(bytecode.OpAdd)
		b.Emit1U16(bytecode.OpSet, 1)
		b.Emit0(bytecode.OpLoopBodyEnd)
		b.PatchForEnd(pos)
		b.Emit1U16(bytecode.OpLoad, 1)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, float64(6), s.StackSlice()[s.StackTop()-1].AsFloat())
		assert.Equal(t, 0, s.Heap.LiveCount(), "the consumed list must be released once iteration ends")
	})

	t.Run("break unwinds one loop level", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(2)
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(0)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(10)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(1)))
		pos := b.EmitForRange(2)
		b.Emit0(bytecode.OpBreak)
		b.Emit0(bytecode.OpLoopBodyEnd)
		b.PatchForEnd(pos)
		b.Emit1U16(bytecode.OpLoad, 2)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()), "break must not surface as an error")
		assert.Equal(t, float64(0), s.StackSlice()[s.StackTop()-1].AsFloat(), "the loop stopped on its first iteration")
	})
}

// TestStringConcatAndTemplate covers add's string path and the
// stringTemplate opcode, both of which must produce a heap String rather
// than coercing through the arithmetic table.
func TestStringConcatAndTemplate(t *testing.T) {
	readString := func(s *State, v value.Value) string {
		require.True(t, v.IsPointer())
		str, ok := s.object(v).(*object.String)
		require.True(t, ok)
		return string(str.Bytes)
	}

	t.Run("add concatenates strings", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		b.Emit1U16(bytecode.OpPushConst, b.ConstString("foo"))
		b.Emit1U16(bytecode.OpPushConst, b.ConstString("bar"))
		b.Emit0(bytecode.OpAdd)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, "foobar", readString(s, s.StackSlice()[s.StackTop()-1]))
	})

	t.Run("add concatenates string and number", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		b.Emit1U16(bytecode.OpPushConst, b.ConstString("n="))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(7)))
		b.Emit0(bytecode.OpAdd)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, "n=7", readString(s, s.StackSlice()[s.StackTop()-1]))
	})

	t.Run("template joins literal and computed parts", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		b.Emit1U16(bytecode.OpPushConst, b.ConstString("sum is "))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(2)))
		b.Emit1U16(bytecode.OpPushConst, b.Const(value.InitFloat(3)))
		b.Emit0(bytecode.OpAdd)
		b.Emit1U16(bytecode.OpPushConst, b.ConstString("!"))
		b.Emit1U16(bytecode.OpStringTemplate, 3)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		result := s.StackSlice()[s.StackTop()-1]
		assert.Equal(t, "sum is 5!", readString(s, result))

		s.Heap.Release(heap.Address(result.AsPointer()))
		assert.Equal(t, 0, s.Heap.LiveCount())
	})

	t.Run("template stringifies singletons", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		b.Emit0(bytecode.OpPushTrue)
		b.Emit1U16(bytecode.OpPushConst, b.ConstString("/"))
		b.Emit0(bytecode.OpPushNone)
		b.Emit1U16(bytecode.OpStringTemplate, 3)
		b.Emit0(bytecode.OpEnd)

		s := New()
		require.Nil(t, s.Eval(b.Build()))
		assert.Equal(t, "true/none", readString(s, s.StackSlice()[s.StackTop()-1]))
	})

	t.Run("template rejects a list part", func(t *testing.T) {
		b := bytecode.NewBuilder()
		b.MainLocals(0)
		b.Emit1U16(bytecode.OpPushList, 0)
		b.Emit1U16(bytecode.OpStringTemplate, 1)
		b.Emit0(bytecode.OpEnd)

		s := New()
		err := s.Eval(b.Build())
		require.NotNil(t, err)
		assert.Equal(t, KindPanic, err.Kind)
		assert.Equal(t, 0, s.Heap.LiveCount(), "the rejected part must still be released")
	})
}

// TestStackGrowsOnOverflow pushes well past the minimum 512-slot stack in a
// single frame, forcing dispatchGrow's grow-and-resume path before
// the list aggregates everything back down.
func TestStackGrowsOnOverflow(t *testing.T) {
	const n = 600
	b := bytecode.NewBuilder()
	b.MainLocals(0)
	c := b.Const(value.InitFloat(42))
	for i := 0; i < n; i++ {
		b.Emit1U16(bytecode.OpPushConst, c)
	}
	b.Emit1U16(bytecode.OpPushList, n)
	b.Emit0(bytecode.OpEnd)
	code := b.Build()

	s := New()
	err := s.Eval(code)
	require.Nil(t, err)

	result := s.StackSlice()[s.StackTop()-1]
	require.True(t, result.IsPointer())
	list, ok := s.object(result).(*object.List)
	require.True(t, ok)
	assert.Equal(t, n, list.Len())
}
