// Package object defines the layouts for the heap's closed set of object
// kinds: List, Map, String, Lambda, Closure, and SmallObject. Every kind
// satisfies heap.Object so the allocator and refcounting machinery never
// need to know about a concrete kind.
package object

import (
	"github.com/emberlang/embervm/internal/embervm/heap"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// Built-in type IDs reserved by the type descriptor table.
const (
	TypeList uint32 = iota + 1
	TypeMap
	TypeClosure
	TypeLambda
	TypeString
	// FirstUserType is the first type ID available to compiler-defined
	// (SmallObject) struct types.
	FirstUserType
)

// List is the heap payload for a dynamic array of Values.
type List struct {
	Items  []value.Value
	cursor int // iterator cursor used by forIter's built-in list iterator
}

func NewList(items []value.Value) *List {
	return &List{Items: items}
}

func (l *List) Destroy(h *heap.Heap) {
	for _, v := range l.Items {
		releaseIfPointer(h, v)
	}
	l.Items = nil
}

func (l *List) Children(dst []uint64) []uint64 {
	for _, v := range l.Items {
		if v.IsPointer() {
			dst = append(dst, v.AsPointer())
		}
	}
	return dst
}

// Len returns the number of elements.
func (l *List) Len() int { return len(l.Items) }

// Next advances the iterator cursor, returning (value, true) or
// (value.InitNone(), false) once exhausted. Used by the built-in list
// iterator that forIter resolves through the reserved iterator()/next()
// method symbols.
func (l *List) Next() (value.Value, bool) {
	if l.cursor >= len(l.Items) {
		return value.InitNone(), false
	}
	v := l.Items[l.cursor]
	l.cursor++
	return v, true
}

// Lambda is the heap payload for a non-capturing function value.
type Lambda struct {
	FuncPC    int
	NumParams int
	NumLocals int
}

func (*Lambda) Destroy(h *heap.Heap)         {}
func (*Lambda) Children(dst []uint64) []uint64 { return dst }

// maxInlineCaptures is the number of captures a Closure stores inline
// before spilling to a separate slice.
const maxInlineCaptures = 3

// Closure is the heap payload for a capturing function value.
type Closure struct {
	FuncPC    int
	NumParams int
	NumLocals int
	inline    [maxInlineCaptures]value.Value
	numInline int
	spill     []value.Value // captures beyond maxInlineCaptures
}

// NewClosure builds a Closure from the popped capture list (top of stack
// last, in the order pushClosure's operand encodes).
func NewClosure(funcPC, numParams, numLocals int, captures []value.Value) *Closure {
	c := &Closure{FuncPC: funcPC, NumParams: numParams, NumLocals: numLocals}
	for i, v := range captures {
		if i < maxInlineCaptures {
			c.inline[i] = v
			c.numInline++
		} else {
			c.spill = append(c.spill, v)
		}
	}
	return c
}

// NumCaptured returns the total number of captured values.
func (c *Closure) NumCaptured() int {
	return c.numInline + len(c.spill)
}

// Capture returns the i'th captured value.
func (c *Closure) Capture(i int) value.Value {
	if i < c.numInline {
		return c.inline[i]
	}
	return c.spill[i-c.numInline]
}

func (c *Closure) Destroy(h *heap.Heap) {
	for i := 0; i < c.numInline; i++ {
		releaseIfPointer(h, c.inline[i])
	}
	for _, v := range c.spill {
		releaseIfPointer(h, v)
	}
	c.spill = nil
}

func (c *Closure) Children(dst []uint64) []uint64 {
	for i := 0; i < c.numInline; i++ {
		if c.inline[i].IsPointer() {
			dst = append(dst, c.inline[i].AsPointer())
		}
	}
	for _, v := range c.spill {
		if v.IsPointer() {
			dst = append(dst, v.AsPointer())
		}
	}
	return dst
}

// String is the heap payload for a mutable (non-interned) string.
type String struct {
	Bytes []byte
}

func NewString(s string) *String {
	return &String{Bytes: []byte(s)}
}

func (*String) Destroy(h *heap.Heap)            {}
func (*String) Children(dst []uint64) []uint64 { return dst }

// maxSmallObjectFields is the SmallObject inline-slot budget: user-defined
// records with up to 4 fields stored inline in a single slot.
const maxSmallObjectFields = 4

// SmallObject is the heap payload for a compiler-defined struct with up to
// four fields, stored inline with no further indirection.
type SmallObject struct {
	TypeID uint32
	Fields [maxSmallObjectFields]value.Value
	numSet int
}

func NewSmallObject(typeID uint32, fields []value.Value) *SmallObject {
	o := &SmallObject{TypeID: typeID}
	o.numSet = len(fields)
	if o.numSet > maxSmallObjectFields {
		o.numSet = maxSmallObjectFields
	}
	copy(o.Fields[:o.numSet], fields)
	return o
}

func (o *SmallObject) Destroy(h *heap.Heap) {
	for i := 0; i < o.numSet; i++ {
		releaseIfPointer(h, o.Fields[i])
	}
}

func (o *SmallObject) Children(dst []uint64) []uint64 {
	for i := 0; i < o.numSet; i++ {
		if o.Fields[i].IsPointer() {
			dst = append(dst, o.Fields[i].AsPointer())
		}
	}
	return dst
}

func releaseIfPointer(h *heap.Heap, v value.Value) {
	if v.IsPointer() {
		h.Release(heap.Address(v.AsPointer()))
	}
}
