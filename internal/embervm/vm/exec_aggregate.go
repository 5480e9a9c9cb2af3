package vm

import (
	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/value"
)

func (s *State) allocHeapValue(typeID uint32, obj heap.Object) (value.Value, *Error) {
	addr := s.Heap.AllocObject()
	// AllocObject never hands out slot 0 (the reserved sentinel); a zero
	// address would mean page growth failed, which the Go allocator reports
	// by panicking instead. The check keeps the OutOfMemory path wired for
	// an allocator that can fail.
	if addr == heap.Address(heap.NullID) {
		return value.Value(0), outOfMemory()
	}
	s.Heap.InitSlot(addr, typeID, 1, obj)
	return value.InitPointer(uint64(addr)), nil
}

// execPushList pops n values (in push order, so the first popped is the
// list's last element) and builds a List.
func (s *State) execPushList(n int) *Error {
	items := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		items[i] = s.pop()
	}
	v, err := s.allocHeapValue(object.TypeList, object.NewList(items))
	if err != nil {
		return err
	}
	return s.push(v)
}

func (s *State) execPushMapEmpty() *Error {
	v, err := s.allocHeapValue(object.TypeMap, object.NewMap())
	if err != nil {
		return err
	}
	return s.push(v)
}

// execPushMap pops n values (the map's values, in push order) and reads n
// contiguous interned-constant keys starting at constIdx.
func (s *State) execPushMap(n, constIdx int) *Error {
	values := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		values[i] = s.pop()
	}
	keys := make([]value.Value, n)
	for i := 0; i < n; i++ {
		if constIdx+i >= len(s.code.Consts) {
			return panicf("map constant key index out of range")
		}
		keys[i] = s.code.Consts[constIdx+i]
	}
	v, err := s.allocHeapValue(object.TypeMap, object.NewMapFromConsts(keys, values))
	if err != nil {
		return err
	}
	return s.push(v)
}

// execPushStructInitSmall builds a SmallObject (<=4 fields) by popping one
// stack value per offset operand and storing them in push order. Only the
// number of offsets is used; the offset values themselves are not read.
func (s *State) execPushStructInitSmall(typeID uint32, offsets []uint16) *Error {
	fields := make([]value.Value, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		fields[i] = s.pop()
	}
	v, err := s.allocHeapValue(typeID, object.NewSmallObject(typeID, fields))
	if err != nil {
		return err
	}
	return s.push(v)
}

// execPushSlice pops {list, end, start} (end pushed last) and builds a new
// List over [start, end) with negative-index adjustment, panicking on
// out-of-bounds.
func (s *State) execPushSlice() *Error {
	endV := s.pop()
	startV := s.pop()
	listV := s.pop()

	if !listV.IsPointer() {
		return panicf("slice target is not a list")
	}
	list, ok := s.object(listV).(*object.List)
	if !ok {
		return panicf("slice target is not a list")
	}

	start, ok1 := s.toFloat(startV)
	end, ok2 := s.toFloat(endV)
	if !ok1 || !ok2 {
		return panicf("slice bounds must be numbers")
	}

	n := list.Len()
	startIdx := normalizeSliceIndex(int(start), n)
	endIdx := normalizeSliceIndex(int(end), n)
	if startIdx < 0 || endIdx > n || startIdx > endIdx {
		s.releaseIfPointer(listV)
		return outOfBoundsf("slice [%d:%d] out of bounds for length %d", int(start), int(end), n)
	}

	items := make([]value.Value, endIdx-startIdx)
	for i := range items {
		items[i] = list.Items[startIdx+i]
		s.retainIfPointer(items[i])
	}
	s.releaseIfPointer(listV)

	v, err := s.allocHeapValue(object.TypeList, object.NewList(items))
	if err != nil {
		return err
	}
	return s.push(v)
}

func normalizeSliceIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return i
}
