package symtab

import "fmt"

// FieldShape distinguishes a field symbol that has not been bound to any
// type yet from one cached against a single concrete type.
type FieldShape int

const (
	FieldUnbound FieldShape = iota
	FieldOneType
)

// FieldSym is one entry of the field-symbol table. Shape oneType caches
// {typeId, fieldIndex, isSmallObject} so repeated field access on the same
// receiver type skips a name lookup entirely.
type FieldSym struct {
	Shape FieldShape
	Name  string

	TypeID        uint32
	FieldIndex    int
	IsSmallObject bool
}

// FieldTable is the `fieldSyms[id]` registry.
type FieldTable struct {
	syms []FieldSym
}

func NewFieldTable() *FieldTable {
	return &FieldTable{}
}

// Declare reserves a new field symbol and returns its id.
func (t *FieldTable) Declare(name string) int {
	id := len(t.syms)
	t.syms = append(t.syms, FieldSym{Name: name})
	return id
}

// Bind caches a oneType entry for id. A later Bind to a different type
// points the symbol at the newest type; a SmallObject of the earlier type
// then misses the cache, and since the map-by-name path only serves Map
// receivers, that lookup panics with a missing-field error.
func (t *FieldTable) Bind(id int, typeID uint32, fieldIndex int, isSmallObject bool) {
	s := &t.syms[id]
	s.Shape = FieldOneType
	s.TypeID = typeID
	s.FieldIndex = fieldIndex
	s.IsSmallObject = isSmallObject
}

// Get returns the symbol at id.
func (t *FieldTable) Get(id int) (*FieldSym, error) {
	if id < 0 || id >= len(t.syms) {
		return nil, fmt.Errorf("field symbol %d out of range", id)
	}
	return &t.syms[id], nil
}
