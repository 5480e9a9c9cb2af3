// Package trace provides panic-trace unwinding, bytecode-buffer
// fingerprinting, and the optional retain/release accounting sink.
package trace

import (
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/emberlang/embervm/internal/embervm/bytecode"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// StackFrame is one entry of a materialized panic trace, top-most first.
type StackFrame struct {
	FunctionName string
	Line, Col    int
}

// FrameNamer resolves a debug table's frameNodeIndex to a function name.
// The compiler owns the AST, so the mapping is supplied by the host.
// frameNodeIndex == bytecode.NullFrameNode must resolve to "main".
type FrameNamer func(frameNodeIndex int) string

// PositionResolver maps an AST node index to its source (line, col).
type PositionResolver func(nodeIndex int) (line, col int)

// ErrNoDebugSym is returned when unwinding reaches a PC with no matching
// debug table entry.
var ErrNoDebugSym = fmt.Errorf("no debug symbol during unwind")

// Unwind walks the in-band RetInfo chain starting at framePtr, looking up
// each saved PC in debugTable and resolving it to a function name and
// source position.
func Unwind(stack []value.Value, framePtr int, debugTable []bytecode.DebugSym, namer FrameNamer, pos PositionResolver) ([]StackFrame, error) {
	var frames []StackFrame
	fp := framePtr
	for {
		retInfo := stack[fp]
		returnPC, prevFramePtr, _, _ := retInfo.RetInfoFields()

		sym, ok := debugSymFor(debugTable, returnPC)
		if !ok {
			return frames, ErrNoDebugSym
		}

		name := namer(sym.FrameNodeIndex)
		line, col := pos(sym.NodeIndex)
		frames = append(frames, StackFrame{FunctionName: name, Line: line, Col: col})

		if sym.FrameNodeIndex == bytecode.NullFrameNode {
			break
		}
		if prevFramePtr == fp {
			break // malformed chain
		}
		fp = prevFramePtr
	}
	return frames, nil
}

func debugSymFor(table []bytecode.DebugSym, pc int) (bytecode.DebugSym, bool) {
	for _, d := range table {
		if d.PC == pc {
			return d, true
		}
	}
	return bytecode.DebugSym{}, false
}

// Fingerprint hashes a bytecode buffer's ops, consts, and string pool with
// SHA3-256, giving callers a stable identity to log or compare across runs.
func Fingerprint(buf *bytecode.ByteCodeBuffer) [32]byte {
	h := sha3.New256()
	h.Write(buf.Ops)
	for _, c := range buf.Consts {
		var b [8]byte
		v := uint64(c)
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		h.Write(b[:])
	}
	h.Write(buf.StrBuf)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sink accumulates retain/release counts in trace mode. For a cycle-free
// program, NumRetains == NumReleases + live references at program end.
type Sink struct {
	NumRetains  uint64
	NumReleases uint64
}

func (s *Sink) RecordRetain()  { s.NumRetains++ }
func (s *Sink) RecordRelease() { s.NumReleases++ }
