package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/embervm/internal/embervm/bytecode"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// testNamer resolves the frame-node indices the tests below assign: the
// main-frame sentinel maps to "main", everything else to "bar".
func testNamer(idx int) string {
	if idx == bytecode.NullFrameNode {
		return "main"
	}
	return "bar"
}

func TestUnwindTwoFrames(t *testing.T) {
	// Hand-built frame chain: main's synthetic RetInfo at slot 0, bar's
	// frame at slot 3 with its return address pointing back into main.
	stack := []value.Value{
		value.InitRetInfo(0, 0, 0, false),
		value.InitNone(),
		value.InitNone(),
		value.InitRetInfo(10, 0, 0, true),
		value.InitNone(),
	}
	debug := []bytecode.DebugSym{
		{PC: 0, NodeIndex: 200, FrameNodeIndex: bytecode.NullFrameNode},
		{PC: 10, NodeIndex: 100, FrameNodeIndex: 7},
	}
	positions := map[int][2]int{100: {5, 3}, 200: {1, 1}}
	pos := func(nodeIndex int) (int, int) {
		p := positions[nodeIndex]
		return p[0], p[1]
	}

	frames, err := Unwind(stack, 3, debug, testNamer, pos)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, StackFrame{FunctionName: "bar", Line: 5, Col: 3}, frames[0])
	assert.Equal(t, StackFrame{FunctionName: "main", Line: 1, Col: 1}, frames[1])
}

func TestUnwindMissingDebugSym(t *testing.T) {
	stack := []value.Value{value.InitRetInfo(42, 0, 0, false)}
	_, err := Unwind(stack, 0, nil, testNamer, func(int) (int, int) { return 0, 0 })
	assert.ErrorIs(t, err, ErrNoDebugSym)
}

func TestFingerprint(t *testing.T) {
	a := &bytecode.ByteCodeBuffer{
		Ops:    []byte{1, 2, 3},
		Consts: []value.Value{value.InitFloat(1)},
		StrBuf: []byte("abc"),
	}
	b := &bytecode.ByteCodeBuffer{
		Ops:    []byte{1, 2, 3},
		Consts: []value.Value{value.InitFloat(1)},
		StrBuf: []byte("abc"),
	}
	c := &bytecode.ByteCodeBuffer{
		Ops:    []byte{1, 2, 4},
		Consts: []value.Value{value.InitFloat(1)},
		StrBuf: []byte("abc"),
	}

	assert.Equal(t, Fingerprint(a), Fingerprint(b), "identical buffers hash identically")
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c), "a one-byte ops change must change the digest")
}

func TestSinkCounts(t *testing.T) {
	var s Sink
	s.RecordRetain()
	s.RecordRetain()
	s.RecordRelease()
	assert.Equal(t, uint64(2), s.NumRetains)
	assert.Equal(t, uint64(1), s.NumReleases)
}
