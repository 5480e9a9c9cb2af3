package heap

// CheckMemory performs the debugging-only cycle sweep: DFS over every
// currently-live slot with entered/visited marks, recording any object
// reached along a back-edge as a cycle root, then force-releasing each
// root. It is not a scheduled collector; production code with
// mutually-capturing closures must break cycles manually.
//
// CheckMemory returns true iff no cycle was found.
func (h *Heap) CheckMemory() bool {
	entered := make(map[Address]bool)
	visited := make(map[Address]bool)
	var roots []Address

	var dfs func(addr Address)
	dfs = func(addr Address) {
		if visited[addr] {
			return
		}
		if entered[addr] {
			roots = append(roots, addr)
			return
		}
		entered[addr] = true

		obj := h.ObjectAt(addr)
		if obj != nil {
			var buf [8]uint64
			children := obj.Children(buf[:0])
			for _, payload := range children {
				child := Address(payload)
				if h.TypeID(child) != NullID && h.TypeID(child) != sentinelTypeID {
					dfs(child)
				}
			}
		}

		entered[addr] = false
		visited[addr] = true
	}

	h.ForEachLive(func(addr Address, typeID uint32, obj Object) {
		if !visited[addr] {
			dfs(addr)
		}
	})

	for _, root := range roots {
		if h.TypeID(root) == NullID {
			continue // already freed while force-releasing an earlier root
		}
		h.SetRC(root, 1)
		h.Release(root)
	}

	return len(roots) == 0
}
