package ir

// This file holds the per-function analyses the pass manager serves on
// demand: the dominator tree, escaped-symbol analysis, and the
// alias queries built on top of escape results.

// DomTree maps each block to its immediate dominator. The entry block's
// idom is itself.
type DomTree struct {
	idom map[*Block]*Block
	// order caches reverse-postorder numbers for the intersection walk and
	// for deterministic iteration.
	order map[*Block]int
}

// ComputeDominators runs the classic iterative idom algorithm over a
// reverse-postorder of the CFG.
func ComputeDominators(f *Function) *DomTree {
	entry := f.Entry()
	rpo := reversePostorder(f)
	order := make(map[*Block]int, len(rpo))
	for i, b := range rpo {
		order[b] = i
	}

	idom := map[*Block]*Block{entry: entry}
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom *Block
			for _, p := range b.Preds {
				if _, processed := idom[p]; !processed {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom, idom, order)
				}
			}
			if newIdom == nil {
				continue
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return &DomTree{idom: idom, order: order}
}

func intersect(a, b *Block, idom map[*Block]*Block, order map[*Block]int) *Block {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(f *Function) []*Block {
	var post []*Block
	seen := map[*Block]bool{}
	var walk func(b *Block)
	walk = func(b *Block) {
		if seen[b] {
			return
		}
		seen[b] = true
		for _, s := range b.Successors() {
			walk(s)
		}
		post = append(post, b)
	}
	if f.Entry() != nil {
		walk(f.Entry())
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Dominates reports whether a dominates b (reflexively).
func (d *DomTree) Dominates(a, b *Block) bool {
	for {
		if a == b {
			return true
		}
		next, ok := d.idom[b]
		if !ok || next == b {
			return false
		}
		b = next
	}
}

// Reachable reports whether the analysis saw b at all; unreachable blocks
// have no idom entry (except the entry itself).
func (d *DomTree) Reachable(b *Block) bool {
	_, ok := d.order[b]
	return ok
}

// EscapedSymbols is the escape-analysis result: the set of local indices
// whose address is observable outside the defining function — stored
// anywhere (including into another local), passed to a call, asm block or
// log, returned, or cast to an integer.
type EscapedSymbols map[int]bool

// ComputeEscapes walks every instruction looking at where get_local
// pointers flow.
func ComputeEscapes(f *Function) EscapedSymbols {
	escaped := EscapedSymbols{}
	for _, blk := range f.Blocks {
		for _, ins := range blk.Instrs {
			switch ins.Op {
			case OpStore:
				// Storing a pointer value (not storing *through* it) leaks it.
				if len(ins.Operands) == 2 {
					if root, ok := rootLocal(ins.Operands[1]); ok {
						escaped[root] = true
					}
				}
			case OpCall, OpContractCall, OpAsmBlock, OpLog:
				for _, o := range ins.Operands {
					if root, ok := rootLocal(o); ok {
						escaped[root] = true
					}
				}
			case OpRet:
				for _, o := range ins.Operands {
					if root, ok := rootLocal(o); ok {
						escaped[root] = true
					}
				}
			case OpPtrToInt, OpCastPtr:
				if root, ok := rootLocal(ins.Operands[0]); ok {
					escaped[root] = true
				}
			}
		}
	}
	return escaped
}

// rootLocal chases a pointer value back to the get_local it was derived
// from, through get_elem_ptr chains. Reports false for values that are not
// pointer-typed or not rooted in a local slot.
func rootLocal(v *Value) (int, bool) {
	for {
		switch v.Op {
		case OpGetLocal:
			return v.Local, true
		case OpGetElemPtr, OpIntToPtr, OpCastPtr:
			if len(v.Operands) == 0 {
				return 0, false
			}
			v = v.Operands[0]
		default:
			return 0, false
		}
	}
}

// MayAlias reports whether two pointers may address overlapping memory:
// true iff their root symbols are the same or at least one root has
// escaped (or cannot be traced to a local at all).
func MayAlias(a, b *Value, escaped EscapedSymbols) bool {
	ra, oka := rootLocal(a)
	rb, okb := rootLocal(b)
	if !oka || !okb {
		return true
	}
	if ra == rb {
		return true
	}
	return escaped[ra] || escaped[rb]
}

// MustAlias reports whether two pointers definitely address the same
// location: the same root symbol and syntactically equal index chains.
func MustAlias(a, b *Value) bool {
	ca, oka := indexChain(a)
	cb, okb := indexChain(b)
	if !oka || !okb || ca.local != cb.local || len(ca.indices) != len(cb.indices) {
		return false
	}
	for i := range ca.indices {
		if ca.indices[i] != cb.indices[i] {
			return false
		}
	}
	return true
}

type chain struct {
	local   int
	indices []int
}

func indexChain(v *Value) (chain, bool) {
	var rev [][]int
	for {
		switch v.Op {
		case OpGetLocal:
			var c chain
			c.local = v.Local
			for i := len(rev) - 1; i >= 0; i-- {
				c.indices = append(c.indices, rev[i]...)
			}
			return c, true
		case OpGetElemPtr:
			rev = append(rev, v.Indices)
			v = v.Operands[0]
		default:
			return chain{}, false
		}
	}
}
