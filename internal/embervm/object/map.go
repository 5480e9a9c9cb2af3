package object

import (
	"github.com/dolthub/swiss"

	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// Map is the heap payload for the language's dictionary type: a thin
// wrapper over github.com/dolthub/swiss keyed directly by value.Value,
// which is a plain uint64 and therefore comparable and hashable. Numbers
// and interned strings compare by bit pattern, heap pointers by identity.
type Map struct {
	table *swiss.Map[value.Value, value.Value]
	// order preserves insertion order for iteration; swiss.Map's own
	// iteration order is unspecified.
	order  []value.Value
	cursor int // iterator cursor used by forIter's built-in map iterator
}

// defaultMapBuckets seeds a Map's initial bucket count; swiss.Map grows
// geometrically past this as needed.
const defaultMapBuckets = 8

func NewMap() *Map {
	return &Map{table: swiss.NewMap[value.Value, value.Value](defaultMapBuckets)}
}

// NewMapFromConsts builds a Map from parallel interned-constant keys and a
// popped value list, as pushMap's operand describes (keys are interned
// constants resolved by the caller).
func NewMapFromConsts(keys []value.Value, values []value.Value) *Map {
	m := NewMap()
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		m.Set(keys[i], values[i])
	}
	return m
}

// Get looks up key, returning (value, true) on a hit.
func (m *Map) Get(key value.Value) (value.Value, bool) {
	return m.table.Get(key)
}

// Set inserts or overwrites key -> val.
func (m *Map) Set(key value.Value, val value.Value) {
	if !m.table.Has(key) {
		m.order = append(m.order, key)
	}
	m.table.Put(key, val)
}

// Delete removes key, returning whether it was present.
func (m *Map) Delete(key value.Value) bool {
	if !m.table.Has(key) {
		return false
	}
	m.table.Delete(key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of entries.
func (m *Map) Len() int { return m.table.Count() }

// Keys returns the map's keys in insertion order.
func (m *Map) Keys() []value.Value { return m.order }

// Next advances the iterator cursor over the map's keys in insertion order,
// returning (key, true) or (value.Value(zero), false) once exhausted. Used
// by the built-in map iterator that forIter resolves through the reserved
// iterator()/next() method symbols, mirroring List.Next.
func (m *Map) Next() (value.Value, bool) {
	if m.cursor >= len(m.order) {
		return value.Value(0), false
	}
	k := m.order[m.cursor]
	m.cursor++
	return k, true
}

func (m *Map) Destroy(h *heap.Heap) {
	m.table.Iter(func(k, v value.Value) bool {
		releaseIfPointer(h, k)
		releaseIfPointer(h, v)
		return false
	})
	m.order = nil
}

func (m *Map) Children(dst []uint64) []uint64 {
	m.table.Iter(func(k, v value.Value) bool {
		if k.IsPointer() {
			dst = append(dst, k.AsPointer())
		}
		if v.IsPointer() {
			dst = append(dst, v.AsPointer())
		}
		return false
	})
	return dst
}
