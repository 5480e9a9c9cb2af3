package vm

import (
	"math"

	"github.com/emberlang/embervm/internal/embervm/value"
)

// execBinaryArith implements add/sub/mul/div/mod/pow/bitAnd. The fast path
// covers number-number; the fallback coerces bool/none/string operands via
// ToFloat or panics.
func (s *State) execBinaryArith(op Op) *Error {
	b := s.pop()
	a := s.pop()

	if a.IsNumber() && b.IsNumber() {
		return s.push(value.InitFloat(applyArith(op, a.AsFloat(), b.AsFloat())))
	}

	// add with a string on either side concatenates instead of coercing.
	if op == OpAdd && (s.isStringLike(a) || s.isStringLike(b)) {
		return s.execStringConcat(a, b)
	}

	af, aok := s.toFloat(a)
	bf, bok := s.toFloat(b)
	if !aok || !bok {
		return panicf("unsupported operand types for arithmetic operator")
	}
	return s.push(value.InitFloat(applyArith(op, af, bf)))
}

func applyArith(op Op, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMod:
		return math.Mod(a, b)
	case OpPow:
		return math.Pow(a, b)
	case OpBitAnd:
		return float64(int64(a) & int64(b))
	}
	return 0
}

// execSubPositional implements sub1/sub2: subtraction over two explicit
// local slots rather than the stack. reversed selects sub2's operand order
// (b - a) versus sub1's (a - b).
func (s *State) execSubPositional(aSlot, bSlot int, reversed bool) *Error {
	a := s.slot(aSlot)
	b := s.slot(bSlot)
	if !a.IsNumber() || !b.IsNumber() {
		af, aok := s.toFloat(a)
		bf, bok := s.toFloat(b)
		if !aok || !bok {
			return panicf("unsupported operand types for arithmetic operator")
		}
		if reversed {
			return s.push(value.InitFloat(bf - af))
		}
		return s.push(value.InitFloat(af - bf))
	}
	if reversed {
		return s.push(value.InitFloat(b.AsFloat() - a.AsFloat()))
	}
	return s.push(value.InitFloat(a.AsFloat() - b.AsFloat()))
}

func (s *State) execNeg() *Error {
	v := s.pop()
	if v.IsNumber() {
		return s.push(value.InitFloat(-v.AsFloat()))
	}
	f, ok := s.toFloat(v)
	if !ok {
		return panicf("unsupported operand type for unary -")
	}
	return s.push(value.InitFloat(-f))
}
