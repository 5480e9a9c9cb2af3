package vm

import (
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// execPushIndex implements pushIndex: lists index by integer, maps index
// by value; out-of-bounds list access panics.
func (s *State) execPushIndex() *Error {
	idx := s.pop()
	recv := s.pop()
	v, err := s.indexGet(recv, idx, false)
	if err != nil {
		return err
	}
	return s.push(v)
}

// execPushReverseIndex implements pushReverseIndex: for a list, the index is
// reinterpreted as len - i; for a map, the numeric key is negated before
// lookup.
func (s *State) execPushReverseIndex() *Error {
	idx := s.pop()
	recv := s.pop()
	v, err := s.indexGet(recv, idx, true)
	if err != nil {
		return err
	}
	return s.push(v)
}

func (s *State) indexGet(recv, idx value.Value, reverse bool) (value.Value, *Error) {
	if !recv.IsPointer() {
		return value.Value(0), panicf("index target is not a list or map")
	}
	switch o := s.object(recv).(type) {
	case *object.List:
		i, ok := s.toFloat(idx)
		if !ok {
			s.releaseIfPointer(recv)
			return value.Value(0), panicf("list index must be a number")
		}
		n := o.Len()
		ii := int(i)
		if reverse {
			ii = n - ii
		} else if ii < 0 {
			ii += n
		}
		if ii < 0 || ii >= n {
			s.releaseIfPointer(recv)
			return value.Value(0), outOfBoundsf("list index %d out of bounds for length %d", int(i), n)
		}
		v := o.Items[ii]
		s.retainIfPointer(v)
		s.releaseIfPointer(recv)
		return v, nil

	case *object.Map:
		key := idx
		if reverse {
			if f, ok := s.toFloat(idx); ok {
				key = value.InitFloat(-f)
			}
		}
		v, ok := o.Get(key)
		if !ok {
			s.releaseIfPointer(recv)
			return value.InitNone(), nil
		}
		s.retainIfPointer(v)
		s.releaseIfPointer(recv)
		return v, nil

	default:
		s.releaseIfPointer(recv)
		return value.Value(0), panicf("index target is not a list or map")
	}
}

// execSetIndex implements setIndex: pops {value, index, target} (value
// pushed last) and writes value at index into target in place.
func (s *State) execSetIndex() *Error {
	val := s.pop()
	idx := s.pop()
	recv := s.pop()

	if !recv.IsPointer() {
		return panicf("index assignment target is not a list or map")
	}
	switch o := s.object(recv).(type) {
	case *object.List:
		i, ok := s.toFloat(idx)
		if !ok {
			return panicf("list index must be a number")
		}
		n := o.Len()
		ii := int(i)
		if ii < 0 {
			ii += n
		}
		if ii < 0 || ii >= n {
			return outOfBoundsf("list index %d out of bounds for length %d", int(i), n)
		}
		s.releaseIfPointer(o.Items[ii])
		o.Items[ii] = val

	case *object.Map:
		old, existed := o.Get(idx)
		if existed {
			s.releaseIfPointer(old)
		}
		o.Set(idx, val)

	default:
		return panicf("index assignment target is not a list or map")
	}

	s.releaseIfPointer(recv)
	return nil
}
