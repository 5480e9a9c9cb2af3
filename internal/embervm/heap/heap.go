// Package heap implements the slab-allocated, reference-counted object
// heap: fixed-size pages of object slots threaded through an intrusive
// free-span list, plus the cycle detector used as a debugging sweep.
//
// The allocation and coalescing algorithm is adapted from the Go runtime's
// own page allocator (free spans recorded by a header in their first slot
// and a back-pointer in their last slot), generalized from page-granularity
// memory spans down to single-HeapObject-granularity slots.
package heap

// PageSlots is the number of object slots in a page.
const PageSlots = 1600

// NullID marks a free-span slot's TypeID; no live object may use it.
const NullID uint32 = 0

// sentinelTypeID marks the permanently-reserved first slot of every page,
// so a backwards probe from any slot is always safe.
const sentinelTypeID uint32 = ^uint32(0)

const noFree = -1

// Object is the interface every heap-resident kind (List, Map, String,
// Lambda, Closure, SmallObject) implements.
type Object interface {
	// Destroy recursively releases any Values this object owns and frees
	// any non-heap buffers (string bytes, backing arrays). It must not
	// remove the slot from the heap itself; FreeObject does that after
	// Destroy returns.
	Destroy(h *Heap)
	// Children appends this object's directly-owned heap-pointer payloads
	// (for the cycle detector's graph walk) to dst and returns the result.
	Children(dst []uint64) []uint64
}

// freeSpan describes a run of consecutive free slots. It is stored in the
// span's first slot; the span's last slot additionally carries a back-
// pointer (start) to the first slot, enabling O(1) coalescing on free.
type freeSpan struct {
	len   int
	start int // set in the span's first and last slots; authoritative at the tail
	next  int // flat slot index of the next free span, or noFree
}

// slot is the uniform storage cell for one HeapObject.
type slot struct {
	typeID uint32
	rc     int32
	object Object // nil while the slot is a free span
	span   freeSpan
}

// page is a fixed array of slots.
type page struct {
	slots [PageSlots]slot
}

// Address identifies a slot by its flat index across all pages.
type Address int

// Heap owns the slab pages and the free-span list. Slot addresses are flat
// indices (page*PageSlots + offset) so the free list can thread through
// page boundaries without special-casing them.
type Heap struct {
	pages    []*page
	freeHead int // flat slot index of the first free span, or noFree
	live     int // count of allocated (non-free, non-sentinel) slots
}

// New constructs a Heap with its first page allocated and the sentinel slot
// reserved.
func New() *Heap {
	h := &Heap{freeHead: noFree}
	h.growPages(1)
	sentinel := h.slotAt(0)
	sentinel.typeID = sentinelTypeID
	sentinel.rc = 1
	h.linkSpan(1, PageSlots-1)
	return h
}

func (h *Heap) slotAt(addr int) *slot {
	p := addr / PageSlots
	o := addr % PageSlots
	return &h.pages[p].slots[o]
}

func (h *Heap) growPages(n int) {
	for i := 0; i < n; i++ {
		h.pages = append(h.pages, &page{})
	}
}

// linkSpan writes a free-span header/back-pointer pair over
// [start, start+length) and pushes it onto freeHead.
func (h *Heap) linkSpan(start, length int) {
	if length <= 0 {
		return
	}
	head := h.slotAt(start)
	head.typeID = NullID
	head.span = freeSpan{len: length, start: start, next: h.freeHead}
	tail := h.slotAt(start + length - 1)
	tail.typeID = NullID
	tail.span.start = start
	h.freeHead = start
}

// AllocObject returns one uninitialized slot's address. The caller must
// immediately write a TypeID (!= NullID), RC (normally 1), and an Object
// payload via InitSlot.
func (h *Heap) AllocObject() Address {
	if h.freeHead == noFree {
		grow := len(h.pages)
		if grow < 1 {
			grow = 1
		}
		grow = (grow*3 + 1) / 2 // ceil(pages * 1.5), minimum 1
		firstNew := len(h.pages)
		h.growPages(grow)
		// Reserve each new page's sentinel and link its initial span; the
		// lowest new page is linked last so it ends up at freeHead.
		for p := firstNew + grow - 1; p >= firstNew; p-- {
			sentinel := h.slotAt(p * PageSlots)
			sentinel.typeID = sentinelTypeID
			sentinel.rc = 1
			h.linkSpan(p*PageSlots+1, PageSlots-1)
		}
	}

	head := h.freeHead
	span := h.slotAt(head).span

	if span.len == 1 {
		h.freeHead = span.next
	} else {
		newStart := head + 1
		newLen := span.len - 1
		h.linkSpanKeepingNext(newStart, newLen, span.next)
	}

	h.live++
	return Address(head)
}

// linkSpanKeepingNext is linkSpan but threading an explicit next pointer
// instead of the current freeHead (used when splitting a span: the
// remainder inherits the span's old "next", not whatever freeHead was
// before the split, which is exactly the slot being split).
func (h *Heap) linkSpanKeepingNext(start, length, next int) {
	head := h.slotAt(start)
	head.typeID = NullID
	head.span = freeSpan{len: length, start: start, next: next}
	tail := h.slotAt(start + length - 1)
	tail.typeID = NullID
	tail.span.start = start
	h.freeHead = start
}

// FreeObject returns obj's slot to the free pool, coalescing with an
// adjacent free span to its left when present.
func (h *Heap) FreeObject(obj Address) {
	h.live--
	idx := int(obj)
	s := h.slotAt(idx)
	s.object = nil

	if idx > 0 {
		left := h.slotAt(idx - 1)
		if left.typeID == NullID {
			startIdx := left.span.start
			start := h.slotAt(startIdx)
			start.span.len++
			s.typeID = NullID
			s.span.start = startIdx
			return
		}
	}

	s.typeID = NullID
	s.span = freeSpan{len: 1, start: idx, next: h.freeHead}
	h.freeHead = idx
}

// TypeID returns the current occupant kind of addr (NullID for a free span).
func (h *Heap) TypeID(addr Address) uint32 {
	return h.slotAt(int(addr)).typeID
}

// RC returns the reference count stored at addr.
func (h *Heap) RC(addr Address) int32 {
	return h.slotAt(int(addr)).rc
}

// SetRC overwrites the reference count stored at addr.
func (h *Heap) SetRC(addr Address, rc int32) {
	h.slotAt(int(addr)).rc = rc
}

// ObjectAt returns the Object payload stored at addr.
func (h *Heap) ObjectAt(addr Address) Object {
	return h.slotAt(int(addr)).object
}

// InitSlot writes a freshly allocated slot's header and payload.
func (h *Heap) InitSlot(addr Address, typeID uint32, rc int32, obj Object) {
	s := h.slotAt(int(addr))
	s.typeID = typeID
	s.rc = rc
	s.object = obj
}

// LiveCount returns the number of currently allocated (non-free,
// non-sentinel) slots.
func (h *Heap) LiveCount() int {
	return h.live
}

// PageCount returns the number of pages the heap currently holds.
func (h *Heap) PageCount() int {
	return len(h.pages)
}

// FreeListLength walks freeHead to the end, returning the number of spans
// and erroring out (via a bounded walk) instead of looping forever if the
// list is accidentally cyclic; used by tests asserting loop-freedom.
func (h *Heap) FreeListLength() (spans int, terminates bool) {
	seen := make(map[int]bool)
	cur := h.freeHead
	for cur != noFree {
		if seen[cur] {
			return spans, false
		}
		seen[cur] = true
		spans++
		cur = h.slotAt(cur).span.next
	}
	return spans, true
}

// ForEachLive calls fn for every slot whose TypeID is neither NullID nor a
// page's sentinel. Used by the cycle detector and by diagnostics.
func (h *Heap) ForEachLive(fn func(addr Address, typeID uint32, obj Object)) {
	total := len(h.pages) * PageSlots
	for i := 0; i < total; i++ {
		s := h.slotAt(i)
		if s.typeID == NullID || s.typeID == sentinelTypeID {
			continue
		}
		fn(Address(i), s.typeID, s.object)
	}
}
