package heap

// Retain increments the reference count of a heap pointer's referent. It
// does not inspect a Value's tag: callers pass the raw 48-bit payload of a
// pointer Value and filter out non-pointer Values themselves.
func (h *Heap) Retain(addr Address) {
	s := h.slotAt(int(addr))
	s.rc++
}

// Release decrements the reference count of addr's referent. At zero it
// dispatches to the object's Destroy method (which recursively releases any
// Values the object owns), then returns the slot to the free pool.
//
// Only the decrement crossing 1 -> 0 destroys; a cyclic reference back to
// addr released while its own Destroy is running drives rc negative and
// returns, so cycle roots force-released by CheckMemory are destroyed
// exactly once. The payload is detached before Destroy for the same reason.
func (h *Heap) Release(addr Address) {
	s := h.slotAt(int(addr))
	s.rc--
	if s.rc != 0 {
		return
	}
	obj := s.object
	s.object = nil
	if obj != nil {
		obj.Destroy(h)
	}
	h.FreeObject(addr)
}
