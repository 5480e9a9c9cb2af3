package vm

import "fmt"

// Kind distinguishes the ways the dispatch loop can stop short of a normal
// end. OutOfBounds is kept distinct from Panic only so tests can assert on
// it directly; the public facade collapses it back into a Panic.
type Kind int

const (
	KindPanic Kind = iota
	KindStackOverflow
	KindOutOfMemory
	KindOutOfBounds
	KindNoDebugSym
	KindLoopBreak // internal control-flow signal for forIter/forRange's break; never escapes evalLoop
)

// Error is the dispatch loop's internal error type. Exec handlers return one
// to halt dispatch; evalLoop inspects Kind to decide whether to grow-and-resume
// (StackOverflow) or unwind (everything else).
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func panicf(format string, args ...any) *Error {
	return &Error{Kind: KindPanic, Msg: fmt.Sprintf(format, args...)}
}

func outOfBoundsf(format string, args ...any) *Error {
	return &Error{Kind: KindOutOfBounds, Msg: fmt.Sprintf(format, args...)}
}

func stackOverflow() *Error {
	return &Error{Kind: KindStackOverflow, Msg: "stack overflow"}
}

func outOfMemory() *Error {
	return &Error{Kind: KindOutOfMemory, Msg: "out of memory"}
}

func noDebugSym(pc int) *Error {
	return &Error{Kind: KindNoDebugSym, Msg: fmt.Sprintf("no debug symbol for pc %d", pc)}
}

var errLoopBreak = &Error{Kind: KindLoopBreak, Msg: "break"}
