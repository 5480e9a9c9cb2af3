package vm

import "github.com/emberlang/embervm/internal/embervm/value"

// execCompare implements eq/neq/lt/gt/le/ge. Number-number is direct;
// string-string (interned or heap) compares bytes, other pointer-pointer
// pairs compare identity, and
// other pairs fall through the float coercion table.
func (s *State) execCompare(op Op) *Error {
	b := s.pop()
	a := s.pop()

	var result bool
	switch {
	case a.IsNumber() && b.IsNumber():
		result = compareFloats(op, a.AsFloat(), b.AsFloat())

	case s.isStringLike(a) && s.isStringLike(b):
		as, _ := s.stringOf(a)
		bs, _ := s.stringOf(b)
		result = compareOrdered(op, as == bs, as < bs)

	case a.IsPointer() && b.IsPointer():
		result = compareOrdered(op, a.AsPointer() == b.AsPointer(), false)

	default:
		af, aok := s.toFloat(a)
		bf, bok := s.toFloat(b)
		if !aok || !bok {
			return panicf("unsupported operand types for comparison")
		}
		result = compareFloats(op, af, bf)
	}

	return s.push(value.InitBool(result))
}

func compareFloats(op Op, a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpLt:
		return a < b
	case OpGt:
		return a > b
	case OpLe:
		return a <= b
	case OpGe:
		return a >= b
	}
	return false
}

// compareOrdered adapts an equality+less-than pair (the only meaningful
// relation for identity/byte comparisons) to the six comparison opcodes.
func compareOrdered(op Op, eq, lt bool) bool {
	switch op {
	case OpEq:
		return eq
	case OpNeq:
		return !eq
	case OpLt:
		return lt
	case OpGt:
		return !eq && !lt
	case OpLe:
		return eq || lt
	case OpGe:
		return eq || !lt
	}
	return false
}
