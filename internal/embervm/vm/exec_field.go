package vm

import (
	"github.com/emberlang/embervm/internal/embervm/object"
	"github.com/emberlang/embervm/internal/embervm/symtab"
	"github.com/emberlang/embervm/internal/embervm/value"
)

// fieldLookup resolves fid against recv: a oneType-shaped symbol whose
// cached TypeID matches the receiver's SmallObject is a direct indexed
// load; any other shape falls back to a by-name lookup when the receiver
// is a Map.
func (s *State) fieldLookup(fid int, recv value.Value) (value.Value, *Error) {
	sym, err := s.Fields.Get(fid)
	if err != nil {
		return value.Value(0), panicf("%s", err.Error())
	}

	if recv.IsPointer() {
		if small, ok := s.object(recv).(*object.SmallObject); ok {
			if sym.Shape == symtab.FieldOneType && small.TypeID == sym.TypeID {
				return small.Fields[sym.FieldIndex], nil
			}
		}
		if m, ok := s.object(recv).(*object.Map); ok {
			key := s.fieldNameKey(sym.Name)
			v, found := m.Get(key)
			if !found {
				return value.InitNone(), nil
			}
			return v, nil
		}
	}

	return value.Value(0), panicf("missing field %q", sym.Name)
}

// fieldNameKey interns a field name as a ConstString key so the
// map-by-name fallback can use Map's ordinary key equality. Names go into
// a private pool that outlives a single Eval call.
func (s *State) fieldNameKey(name string) value.Value {
	if v, ok := s.fieldNameKeys[name]; ok {
		return v
	}
	start := uint32(len(s.fieldNamePool))
	s.fieldNamePool = append(s.fieldNamePool, name...)
	end := uint32(len(s.fieldNamePool))
	v := value.InitConstString(start, end)
	// Repeated lookups must hash/compare the same bit pattern; ConstString
	// equality only holds if both offsets match exactly.
	if s.fieldNameKeys == nil {
		s.fieldNameKeys = make(map[string]value.Value)
	}
	s.fieldNameKeys[name] = v
	return v
}

// execPushField implements pushField/pushFieldRetain and their
// …ParentRelease variants.
func (s *State) execPushField(fid int, retain, parentRelease bool) *Error {
	recv := s.pop()
	v, err := s.fieldLookup(fid, recv)
	if err != nil {
		return err
	}
	if retain {
		s.retainIfPointer(v)
	}
	if parentRelease {
		s.releaseIfPointer(recv)
	}
	return s.push(v)
}

// execSetField implements setField/releaseSetField: pops {value, target}
// (value pushed last) and writes value into target's field fid.
func (s *State) execSetField(fid int, releaseOld bool) *Error {
	val := s.pop()
	recv := s.pop()

	sym, err := s.Fields.Get(fid)
	if err != nil {
		return panicf("%s", err.Error())
	}

	if recv.IsPointer() {
		if small, ok := s.object(recv).(*object.SmallObject); ok {
			if sym.Shape == symtab.FieldOneType && small.TypeID == sym.TypeID {
				if releaseOld {
					s.releaseIfPointer(small.Fields[sym.FieldIndex])
				}
				small.Fields[sym.FieldIndex] = val
				s.releaseIfPointer(recv)
				return nil
			}
		}
		if m, ok := s.object(recv).(*object.Map); ok {
			key := s.fieldNameKey(sym.Name)
			if releaseOld {
				if old, existed := m.Get(key); existed {
					s.releaseIfPointer(old)
				}
			}
			m.Set(key, val)
			s.releaseIfPointer(recv)
			return nil
		}
	}

	return panicf("missing field %q", sym.Name)
}
