package ir

// memcpyOpt is the three-phase memory-copy optimization:
//
//  1. copy-propagation of redundant stack slots: a local D whose single
//     store copies another local S, with S unwritten between that store and
//     every use of D, has every get_local(D) redirected into S;
//  2. a store(dst, load(src)) with src unclobbered between the load and
//     the store becomes mem_copy_val(dst, src);
//  3. intra-block propagation: a later load that must-alias an available
//     copy's destination is rewritten to read the copy's source, with
//     availability invalidated by may-aliasing writes.
func memcpyOpt(pm *PassManager, f *Function) bool {
	raw, err := pm.GetAnalysis("escape", f)
	if err != nil {
		return false
	}
	escaped := raw.(EscapedSymbols)

	changed := localCopyProp(f, escaped)
	if loadStoreToMemcpy(f, escaped) {
		changed = true
	}
	if propagateMemcpys(f, escaped) {
		changed = true
	}
	return changed
}

// localCopyProp is phase 1. The candidate shape: exactly one store to D in
// the whole function, whose value is a whole-slot load of another local S
// of the same type, with no write to S after that store anywhere. Neither
// slot may have escaped.
func localCopyProp(f *Function, escaped EscapedSymbols) bool {
	type storeInfo struct {
		count int
		store *Value
		blk   *Block
		idx   int
	}
	stores := map[int]*storeInfo{}
	for _, blk := range f.Blocks {
		for i, ins := range blk.Instrs {
			if !writesMemory(ins) {
				continue
			}
			if root, ok := wholeSlotPtr(ins.Operands[0]); ok {
				info := stores[root]
				if info == nil {
					info = &storeInfo{}
					stores[root] = info
				}
				info.count++
				info.store, info.blk, info.idx = ins, blk, i
			}
		}
	}

	changed := false
	for d, info := range stores {
		if info.count != 1 || info.store.Op != OpStore || escaped[d] {
			continue
		}
		load := info.store.Operands[1]
		if load.Op != OpLoad {
			continue
		}
		s, ok := wholeSlotPtr(load.Operands[0])
		if !ok || s == d || escaped[s] {
			continue
		}
		if f.Locals[s].Type != f.Locals[d].Type {
			continue
		}
		if slotWrittenAfter(f, s, info.blk, info.idx) {
			continue
		}
		// Only worthwhile when D is actually read back somewhere; a slot
		// that is written once and never read is phase 2's business (the
		// copy itself becomes a memcpy), not a propagation candidate.
		if !slotReadElsewhere(f, d, info.store) {
			continue
		}
		// Redirect every get_local(D) into S and drop the copying store.
		for _, blk := range f.Blocks {
			for _, ins := range blk.Instrs {
				if ins.Op == OpGetLocal && ins.Local == d {
					ins.Local = s
				}
			}
		}
		removeInstr(info.blk, info.store)
		changed = true
	}
	return changed
}

// slotReadElsewhere reports whether some pointer into local d is consumed
// by an instruction other than the copying store itself.
func slotReadElsewhere(f *Function, d int, copyStore *Value) bool {
	for _, blk := range f.Blocks {
		for _, ins := range blk.Instrs {
			if ins == copyStore {
				continue
			}
			for _, o := range ins.Operands {
				if root, ok := rootLocal(o); ok && root == d {
					return true
				}
			}
		}
	}
	return false
}

// slotWrittenAfter reports whether local s is stored to at any point that
// could execute after position (blk, idx): later in the same block, or
// anywhere in a different block. Block-order position is a conservative
// stand-in for path sensitivity.
func slotWrittenAfter(f *Function, s int, blk *Block, idx int) bool {
	for _, other := range f.Blocks {
		for i, ins := range other.Instrs {
			if !writesMemory(ins) {
				continue
			}
			root, ok := rootLocal(ins.Operands[0])
			if !ok || root != s {
				continue
			}
			if other != blk || i > idx {
				return true
			}
		}
	}
	return false
}

// writesMemory reports whether ins writes through its first operand.
func writesMemory(ins *Value) bool {
	switch ins.Op {
	case OpStore, OpMemCopyVal, OpMemCopyBytes:
		return len(ins.Operands) > 0
	}
	return false
}

// wholeSlotPtr reports the local index a pointer names when it addresses
// the entire slot (a bare get_local, no projection).
func wholeSlotPtr(v *Value) (int, bool) {
	if v.Op == OpGetLocal {
		return v.Local, true
	}
	return 0, false
}

// loadStoreToMemcpy is phase 2, restricted to a load and store in one
// block with no clobbering write to the source in between.
func loadStoreToMemcpy(f *Function, escaped EscapedSymbols) bool {
	changed := false
	for _, blk := range f.Blocks {
		loadPos := map[*Value]int{}
		for i, ins := range blk.Instrs {
			if ins.Op == OpLoad {
				loadPos[ins] = i
			}
		}
		for i := 0; i < len(blk.Instrs); i++ {
			ins := blk.Instrs[i]
			if ins.Op != OpStore {
				continue
			}
			load := ins.Operands[1]
			start, sameBlock := loadPos[load]
			if load.Op != OpLoad || !sameBlock {
				continue
			}
			src := load.Operands[0]
			dst := ins.Operands[0]
			if clobberedBetween(blk, start+1, i, src, escaped) {
				continue
			}
			// Rewrite the store in place into mem_copy_val(dst, src).
			ins.Op = OpMemCopyVal
			ins.Operands = []*Value{dst, src}
			if useCount(f, load) == 0 {
				removeInstr(blk, load)
				i--
			}
			changed = true
		}
	}
	return changed
}

func clobberedBetween(blk *Block, from, to int, ptr *Value, escaped EscapedSymbols) bool {
	for i := from; i < to; i++ {
		ins := blk.Instrs[i]
		switch {
		case writesMemory(ins):
			if MayAlias(ins.Operands[0], ptr, escaped) {
				return true
			}
		case ins.Op == OpCall || ins.Op == OpContractCall || ins.Op == OpAsmBlock || ins.Op == OpWriteStorage:
			// Calls may write through any escaped pointer.
			if root, ok := rootLocal(ptr); !ok || escaped[root] {
				return true
			}
		}
	}
	return false
}

// propagateMemcpys is phase 3: a per-block availability scan keyed by the
// copies' endpoints.
func propagateMemcpys(f *Function, escaped EscapedSymbols) bool {
	changed := false
	for _, blk := range f.Blocks {
		var avail []*Value // OpMemCopyVal instructions still valid here
		invalidate := func(ptr *Value) {
			kept := avail[:0]
			for _, cp := range avail {
				if !MayAlias(cp.Operands[0], ptr, escaped) && !MayAlias(cp.Operands[1], ptr, escaped) {
					kept = append(kept, cp)
				}
			}
			avail = kept
		}
		for _, ins := range blk.Instrs {
			switch ins.Op {
			case OpLoad:
				for _, cp := range avail {
					if MustAlias(ins.Operands[0], cp.Operands[0]) {
						ins.Operands[0] = cp.Operands[1]
						changed = true
						break
					}
				}
			case OpMemCopyVal:
				invalidate(ins.Operands[0])
				avail = append(avail, ins)
			case OpStore, OpMemCopyBytes:
				invalidate(ins.Operands[0])
			case OpCall, OpContractCall, OpAsmBlock:
				// Anything escaped may be written by the callee.
				kept := avail[:0]
				for _, cp := range avail {
					rd, okd := rootLocal(cp.Operands[0])
					rs, oks := rootLocal(cp.Operands[1])
					if okd && oks && !escaped[rd] && !escaped[rs] {
						kept = append(kept, cp)
					}
				}
				avail = kept
			}
		}
	}
	return changed
}

func useCount(f *Function, v *Value) int {
	count := 0
	for _, blk := range f.Blocks {
		for _, ins := range blk.Instrs {
			for _, o := range ins.Operands {
				if o == v {
					count++
				}
			}
			for _, o := range ins.TargetArgs {
				if o == v {
					count++
				}
			}
			for _, o := range ins.TrueArgs {
				if o == v {
					count++
				}
			}
			for _, o := range ins.FalseArgs {
				if o == v {
					count++
				}
			}
		}
	}
	return count
}

func removeInstr(blk *Block, v *Value) {
	for i, ins := range blk.Instrs {
		if ins == v {
			blk.Instrs = append(blk.Instrs[:i], blk.Instrs[i+1:]...)
			return
		}
	}
}
