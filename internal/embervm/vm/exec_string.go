package vm

import (
	"strconv"
	"strings"

	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// isStringLike reports whether v reads as a string for concatenation:
// either an interned ConstString or a heap String object.
func (s *State) isStringLike(v value.Value) bool {
	if v.IsString() {
		return true
	}
	if v.IsPointer() {
		_, ok := s.object(v).(*object.String)
		return ok
	}
	return false
}

// displayString renders v the way string interpolation and concatenation
// see it: numbers drop a trailing ".0", singletons print their keyword,
// strings pass through. List, Map, and the function kinds have no display
// form at this layer (the host's print binding owns that), so they report
// ok=false and the caller panics.
func (s *State) displayString(v value.Value) (string, bool) {
	if v.IsNumber() {
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64), true
	}
	switch v.GetTag() {
	case value.TagNone:
		return "none", true
	case value.TagTrue:
		return "true", true
	case value.TagFalse:
		return "false", true
	case value.TagConstString:
		return s.stringOf(v)
	case value.TagPointer:
		if str, ok := s.object(v).(*object.String); ok {
			return string(str.Bytes), true
		}
	}
	return "", false
}

// execStringConcat is add's string path: when either operand is a string,
// add concatenates into a new heap String instead of coercing through the
// arithmetic table. Pointer operands are consumed.
func (s *State) execStringConcat(a, b value.Value) *Error {
	as, aok := s.displayString(a)
	bs, bok := s.displayString(b)
	if !aok || !bok {
		s.releaseIfPointer(a)
		s.releaseIfPointer(b)
		return panicf("unsupported operand types for string concatenation")
	}
	s.releaseIfPointer(a)
	s.releaseIfPointer(b)

	v, err := s.allocHeapValue(object.TypeString, object.NewString(as+bs))
	if err != nil {
		return err
	}
	return s.push(v)
}

// execStringTemplate implements stringTemplate: pops n parts (literal
// ConstString segments interleaved by the compiler with interpolated
// expression results), stringifies each, and joins them into one heap
// String.
func (s *State) execStringTemplate(n int) *Error {
	parts := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		parts[i] = s.pop()
	}

	var sb strings.Builder
	for _, p := range parts {
		ps, ok := s.displayString(p)
		if !ok {
			for _, q := range parts {
				s.releaseIfPointer(q)
			}
			return panicf("unsupported value in string template")
		}
		sb.WriteString(ps)
	}
	for _, p := range parts {
		s.releaseIfPointer(p)
	}

	v, err := s.allocHeapValue(object.TypeString, object.NewString(sb.String()))
	if err != nil {
		return err
	}
	return s.push(v)
}
