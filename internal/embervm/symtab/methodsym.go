package symtab

import (
	"fmt"

	"github.com/emberlang/embervm/internal/embervm/value"
)

// MethodShape is the polymorphic-cache progression: empty -> oneType ->
// manyTypes, matching general inline-cache literature.
type MethodShape int

const (
	MethodEmpty MethodShape = iota
	MethodOneType
	MethodManyTypes
)

// MethodEntryKind distinguishes a user method from the two native method
// shapes.
type MethodEntryKind int

const (
	MethodEntryUser MethodEntryKind = iota
	MethodEntryNativeOne
	MethodEntryNativeTwo
)

// NativeMethodOne is the one-return native method ABI: receiver plus call
// args in, a single Value or an error out. As with NativeFn, a native
// needing the host VM captures it in its registering closure.
type NativeMethodOne func(receiver value.Value, args []value.Value) (value.Value, error)

// NativeMethodTwo is the two-return native method ABI used by built-ins
// that report an auxiliary status value alongside their primary result
// (e.g. map deletion's found flag).
type NativeMethodTwo func(receiver value.Value, args []value.Value) (value.Value, value.Value, error)

// MethodEntry describes how to dispatch a method call once a receiver type
// is known.
type MethodEntry struct {
	Kind MethodEntryKind

	// MethodEntryUser payload.
	PC        int
	NumLocals int
	NumParams int

	// MethodEntryNativeOne / MethodEntryNativeTwo payload.
	NativeOne NativeMethodOne
	NativeTwo NativeMethodTwo
}

type methodKey struct {
	typeID   uint32
	methodID int
}

// MethodSym is one entry of the method-symbol table.
type MethodSym struct {
	Shape MethodShape
	Name  string

	// oneType payload.
	typeID uint32
	entry  MethodEntry

	// manyTypes MRU payload.
	mruTypeID uint32
	mruEntry  MethodEntry
}

// MethodTable is the `methodSyms[id]` registry plus the
// `methodTable[(typeId, methodId)] -> entry` polymorphic side table.
type MethodTable struct {
	syms []MethodSym
	side map[methodKey]MethodEntry
}

func NewMethodTable() *MethodTable {
	return &MethodTable{side: make(map[methodKey]MethodEntry)}
}

// Declare reserves a new, empty method symbol and returns its id.
func (t *MethodTable) Declare(name string) int {
	id := len(t.syms)
	t.syms = append(t.syms, MethodSym{Name: name})
	return id
}

// AddMethodSym registers typeID's implementation of methodID, promoting the
// symbol's shape: empty -> oneType on first registration, oneType ->
// manyTypes on the second distinct type (inserting the original oneType
// entry into the side table first), manyTypes stays manyTypes.
func (t *MethodTable) AddMethodSym(methodID int, typeID uint32, entry MethodEntry) error {
	if methodID < 0 || methodID >= len(t.syms) {
		return fmt.Errorf("method symbol %d out of range", methodID)
	}
	s := &t.syms[methodID]
	switch s.Shape {
	case MethodEmpty:
		s.Shape = MethodOneType
		s.typeID = typeID
		s.entry = entry
	case MethodOneType:
		if s.typeID == typeID {
			s.entry = entry
			return nil
		}
		t.side[methodKey{s.typeID, methodID}] = s.entry
		t.side[methodKey{typeID, methodID}] = entry
		s.Shape = MethodManyTypes
		s.mruTypeID = typeID
		s.mruEntry = entry
	case MethodManyTypes:
		t.side[methodKey{typeID, methodID}] = entry
		s.mruTypeID = typeID
		s.mruEntry = entry
	}
	return nil
}

// Resolve dispatches methodID against receiverType. An empty symbol falls
// back to the caller, oneType resolves only its registered type, and
// manyTypes checks the MRU slot before falling back to the side table and
// updating the MRU.
func (t *MethodTable) Resolve(methodID int, receiverType uint32) (MethodEntry, bool) {
	if methodID < 0 || methodID >= len(t.syms) {
		return MethodEntry{}, false
	}
	s := &t.syms[methodID]
	switch s.Shape {
	case MethodEmpty:
		return MethodEntry{}, false
	case MethodOneType:
		if s.typeID == receiverType {
			return s.entry, true
		}
		return MethodEntry{}, false
	case MethodManyTypes:
		if s.mruTypeID == receiverType {
			return s.mruEntry, true
		}
		entry, ok := t.side[methodKey{receiverType, methodID}]
		if !ok {
			return MethodEntry{}, false
		}
		s.mruTypeID = receiverType
		s.mruEntry = entry
		return entry, true
	}
	return MethodEntry{}, false
}

// Shape returns the current shape of methodID.
func (t *MethodTable) Shape(methodID int) MethodShape {
	return t.syms[methodID].Shape
}

// Name returns methodID's declared name.
func (t *MethodTable) Name(methodID int) string {
	return t.syms[methodID].Name
}
