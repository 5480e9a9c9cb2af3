package bytecode

import "github.com/emberlang/embervm/internal/embervm/value"

// Builder assembles a ByteCodeBuffer by hand. It exists because this module
// has no compiler: tests that exercise the interpreter construct their
// program directly through Builder, playing the role the external compiler
// would in production.
type Builder struct {
	ops           []byte
	consts        []value.Value
	strBuf        []byte
	debug         []DebugSym
	mainLocalSize uint32
}

func NewBuilder() *Builder { return &Builder{} }

// MainLocals sets the main frame's reserved local-slot count.
func (b *Builder) MainLocals(n uint32) *Builder {
	b.mainLocalSize = n
	return b
}

// Const interns v and returns its constant-pool index.
func (b *Builder) Const(v value.Value) uint16 {
	b.consts = append(b.consts, v)
	return uint16(len(b.consts) - 1)
}

// ConstString interns s into the string pool and returns a ConstString
// constant-pool index.
func (b *Builder) ConstString(s string) uint16 {
	start := uint32(len(b.strBuf))
	b.strBuf = append(b.strBuf, s...)
	end := uint32(len(b.strBuf))
	return b.Const(value.InitConstString(start, end))
}

// Label returns the current write offset, for later use as a jump target.
func (b *Builder) Label() int { return len(b.ops) }

func (b *Builder) byte(v byte)   { b.ops = append(b.ops, v) }
func (b *Builder) u16(v uint16)  { b.ops = append(b.ops, byte(v>>8), byte(v)) }
func (b *Builder) i16(v int16)   { b.u16(uint16(v)) }
func (b *Builder) i32(v int32) {
	b.ops = append(b.ops, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Emit0 appends an opcode with no operands.
func (b *Builder) Emit0(op Op) *Builder {
	b.byte(byte(op))
	return b
}

// Emit1U16 appends an opcode with a single u16 operand.
func (b *Builder) Emit1U16(op Op, a uint16) *Builder {
	b.byte(byte(op))
	b.u16(a)
	return b
}

// Emit2U16 appends an opcode with two u16 operands.
func (b *Builder) Emit2U16(op Op, a, c uint16) *Builder {
	b.byte(byte(op))
	b.u16(a)
	b.u16(c)
	return b
}

// EmitJump appends a branching opcode with a signed 16-bit offset, measured
// from the instruction's own start, matching the interpreter's pc update
// convention (see vm.evalLoop).
func (b *Builder) EmitJump(op Op, offset int16) *Builder {
	b.byte(byte(op))
	b.i16(offset)
	return b
}

// PatchJump rewrites the i16 operand at ops[pos+1:pos+3] so the jump at pos
// targets the current write offset. Used for forward jumps whose target is
// not known until the branch body is emitted.
func (b *Builder) PatchJump(pos int) {
	target := len(b.ops)
	offset := int16(target - pos)
	b.ops[pos+1] = byte(uint16(offset) >> 8)
	b.ops[pos+2] = byte(uint16(offset))
}

// EmitSetInitN appends setInitN with the given slot list.
func (b *Builder) EmitSetInitN(slots []uint16) *Builder {
	b.byte(byte(OpSetInitN))
	b.u16(uint16(len(slots)))
	for _, s := range slots {
		b.u16(s)
	}
	return b
}

// EmitPushLambda appends pushLambda with a relative PC and frame shape.
func (b *Builder) EmitPushLambda(relPC int32, nParams, nLocals uint16) *Builder {
	b.byte(byte(OpPushLambda))
	b.i32(relPC)
	b.u16(nParams)
	b.u16(nLocals)
	return b
}

// EmitPushClosure appends pushClosure with a relative PC and frame shape.
func (b *Builder) EmitPushClosure(relPC int32, nParams, nCaps, nLocals uint16) *Builder {
	b.byte(byte(OpPushClosure))
	b.i32(relPC)
	b.u16(nParams)
	b.u16(nCaps)
	b.u16(nLocals)
	return b
}

// EmitPushStructInitSmall appends pushStructInitSmall with its field offset
// list.
func (b *Builder) EmitPushStructInitSmall(typeID uint16, offsets []uint16) *Builder {
	b.byte(byte(OpPushStructInitSmall))
	b.u16(typeID)
	b.u16(uint16(len(offsets)))
	for _, o := range offsets {
		b.u16(o)
	}
	return b
}

// EmitForIter appends forIter with a placeholder endOff and returns the
// instruction's start offset, for later use with PatchForEnd.
func (b *Builder) EmitForIter(slot uint16) int {
	pos := len(b.ops)
	b.byte(byte(OpForIter))
	b.u16(slot)
	b.u16(0)
	return pos
}

// EmitForRange appends forRange with a placeholder endOff and returns the
// instruction's start offset, for later use with PatchForEnd.
func (b *Builder) EmitForRange(slot uint16) int {
	pos := len(b.ops)
	b.byte(byte(OpForRange))
	b.u16(slot)
	b.u16(0)
	return pos
}

// PatchForEnd rewrites a forIter/forRange instruction's endOff (measured
// from the instruction's own start, matching the interpreter's pc update
// convention) so it skips to the current write offset.
func (b *Builder) PatchForEnd(instrPos int) {
	target := len(b.ops)
	offset := uint16(target - instrPos)
	b.ops[instrPos+3] = byte(offset >> 8)
	b.ops[instrPos+4] = byte(offset)
}

// Debug records a debug-table entry mapping the given pc to an AST node and
// its enclosing frame node.
func (b *Builder) Debug(pc, nodeIndex, frameNodeIndex int) *Builder {
	b.debug = append(b.debug, DebugSym{PC: pc, NodeIndex: nodeIndex, FrameNodeIndex: frameNodeIndex})
	return b
}

// Build finalizes the buffer.
func (b *Builder) Build() *ByteCodeBuffer {
	return &ByteCodeBuffer{
		Ops:           b.ops,
		Consts:        b.consts,
		StrBuf:        b.strBuf,
		DebugTable:    b.debug,
		MainLocalSize: b.mainLocalSize,
	}
}
