package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/embervm/internal/embervm/symtab"
	"github.com/emberlang/embervm/internal/embervm/value"
)

func TestFuncTableDeclareDefineLookup(t *testing.T) {
	t.Run("user function", func(t *testing.T) {
		ft := symtab.NewFuncTable()
		id := ft.Declare("bar")
		ft.DefineUser(id, 42, 1, 2)

		got, err := ft.Get(id)
		require.NoError(t, err)
		assert.Equal(t, symtab.FuncUser, got.Kind)
		assert.Equal(t, 42, got.PC)
		assert.Equal(t, 1, got.NumParams)
		assert.Equal(t, 2, got.NumLocals)

		lookupID, ok := ft.Lookup("bar")
		require.True(t, ok)
		assert.Equal(t, id, lookupID)
	})

	t.Run("native function", func(t *testing.T) {
		ft := symtab.NewFuncTable()
		id := ft.Declare("native_add")
		ft.DefineNative(id, func(args []value.Value) (value.Value, error) {
			return value.InitFloat(args[0].AsFloat() + args[1].AsFloat()), nil
		})

		got, err := ft.Get(id)
		require.NoError(t, err)
		assert.Equal(t, symtab.FuncNative, got.Kind)
		result, err := got.Native([]value.Value{value.InitFloat(2), value.InitFloat(3)})
		require.NoError(t, err)
		assert.Equal(t, float64(5), result.AsFloat())
	})

	t.Run("declared but never defined reports missing", func(t *testing.T) {
		ft := symtab.NewFuncTable()
		id := ft.Declare("bar")
		_, err := ft.Get(id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `Missing function symbol "bar"`)
	})

	t.Run("out of range id errors", func(t *testing.T) {
		ft := symtab.NewFuncTable()
		_, err := ft.Get(99)
		assert.Error(t, err)
	})
}

func TestFieldTableBindAndGet(t *testing.T) {
	ft := symtab.NewFieldTable()
	id := ft.Declare("x")

	sym, err := ft.Get(id)
	require.NoError(t, err)
	assert.Equal(t, symtab.FieldUnbound, sym.Shape)

	ft.Bind(id, 7, 2, true)
	sym, err = ft.Get(id)
	require.NoError(t, err)
	assert.Equal(t, symtab.FieldOneType, sym.Shape)
	assert.Equal(t, uint32(7), sym.TypeID)
	assert.Equal(t, 2, sym.FieldIndex)
	assert.True(t, sym.IsSmallObject)
}

func TestMethodTablePromotionLadder(t *testing.T) {
	mt := symtab.NewMethodTable()
	m := mt.Declare("m")
	assert.Equal(t, symtab.MethodEmpty, mt.Shape(m))

	_, ok := mt.Resolve(m, 1)
	assert.False(t, ok, "an empty symbol never resolves")

	const typeA uint32 = 1
	const typeB uint32 = 2
	entryA := symtab.MethodEntry{Kind: symtab.MethodEntryUser, PC: 10, NumParams: 1}
	entryB := symtab.MethodEntry{Kind: symtab.MethodEntryUser, PC: 20, NumParams: 1}

	require.NoError(t, mt.AddMethodSym(m, typeA, entryA))
	assert.Equal(t, symtab.MethodOneType, mt.Shape(m))

	got, ok := mt.Resolve(m, typeA)
	require.True(t, ok)
	assert.Equal(t, entryA, got)

	_, ok = mt.Resolve(m, typeB)
	assert.False(t, ok, "oneType shape only resolves its single registered type")

	require.NoError(t, mt.AddMethodSym(m, typeB, entryB))
	assert.Equal(t, symtab.MethodManyTypes, mt.Shape(m), "a second distinct type promotes to manyTypes")

	// Alternate calls between the two types 10 times, asserting every call
	// resolves to the entry registered for its receiver type.
	for i := 0; i < 10; i++ {
		wantType, wantEntry := typeA, entryA
		if i%2 == 1 {
			wantType, wantEntry = typeB, entryB
		}
		got, ok := mt.Resolve(m, wantType)
		require.True(t, ok, "iteration %d", i)
		assert.Equal(t, wantEntry, got, "iteration %d", i)
	}
}

func TestMethodTableSameTypeRebindStaysOneType(t *testing.T) {
	mt := symtab.NewMethodTable()
	m := mt.Declare("m")
	const typeA uint32 = 1
	entry1 := symtab.MethodEntry{Kind: symtab.MethodEntryUser, PC: 10}
	entry2 := symtab.MethodEntry{Kind: symtab.MethodEntryUser, PC: 11}

	require.NoError(t, mt.AddMethodSym(m, typeA, entry1))
	require.NoError(t, mt.AddMethodSym(m, typeA, entry2))
	assert.Equal(t, symtab.MethodOneType, mt.Shape(m))

	got, ok := mt.Resolve(m, typeA)
	require.True(t, ok)
	assert.Equal(t, entry2, got, "rebinding the same type overwrites in place")
}

func TestMethodTableOutOfRangeDeclare(t *testing.T) {
	mt := symtab.NewMethodTable()
	err := mt.AddMethodSym(99, 1, symtab.MethodEntry{})
	assert.Error(t, err)
}
