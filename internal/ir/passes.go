package ir

// This file holds the remaining default transforms: constant folding,
// dead-code elimination, and the single-call-site inliner.

// constFold folds binary_op and cmp instructions whose operands are both
// integer literals, rewriting the instruction in place into a const so
// every existing use stays valid.
func constFold(_ *PassManager, f *Function) bool {
	changed := false
	for {
		folded := false
		for _, blk := range f.Blocks {
			for _, ins := range blk.Instrs {
				if len(ins.Operands) != 2 {
					continue
				}
				a, b := ins.Operands[0], ins.Operands[1]
				if a.Op != OpConst || b.Op != OpConst || len(a.Raw) > 0 || len(b.Raw) > 0 {
					continue
				}
				// b256 constants carry their value in B256, not Imm.
				if a.B256 != ([32]byte{}) || b.B256 != ([32]byte{}) {
					continue
				}
				switch ins.Op {
				case OpBinary:
					v, ok := evalBinary(ins.Bin, a.Imm, b.Imm)
					if !ok {
						continue
					}
					ins.Op = OpConst
					ins.Imm = v
					ins.Operands = nil
					folded = true
				case OpCmp:
					ins.Op = OpConst
					if evalCmp(ins.Pred, a.Imm, b.Imm) {
						ins.Imm = 1
					} else {
						ins.Imm = 0
					}
					ins.Operands = nil
					folded = true
				}
			}
		}
		if !folded {
			break
		}
		changed = true
	}
	return changed
}

func evalBinary(kind BinaryKind, a, b uint64) (uint64, bool) {
	switch kind {
	case BinAdd:
		return a + b, true
	case BinSub:
		return a - b, true
	case BinMul:
		return a * b, true
	case BinDiv:
		if b == 0 {
			return 0, false // keep the runtime trap
		}
		return a / b, true
	case BinMod:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case BinAnd:
		return a & b, true
	case BinOr:
		return a | b, true
	case BinXor:
		return a ^ b, true
	case BinShl:
		return a << (b & 63), true
	case BinShr:
		return a >> (b & 63), true
	}
	return 0, false
}

func evalCmp(pred CmpPred, a, b uint64) bool {
	switch pred {
	case CmpEq:
		return a == b
	case CmpNe:
		return a != b
	case CmpLt:
		return a < b
	case CmpLe:
		return a <= b
	case CmpGt:
		return a > b
	case CmpGe:
		return a >= b
	}
	return false
}

// deadCodeElim removes side-effect-free instructions with unused results
// and blocks unreachable from the entry.
func deadCodeElim(pm *PassManager, f *Function) bool {
	changed := false

	// Unreachable blocks first so their uses don't keep instructions alive.
	raw, err := pm.GetAnalysis("dominators", f)
	if err == nil {
		dom := raw.(*DomTree)
		kept := f.Blocks[:0]
		for _, blk := range f.Blocks {
			if dom.Reachable(blk) {
				kept = append(kept, blk)
			} else {
				changed = true
			}
		}
		f.Blocks = kept
		for _, blk := range f.Blocks {
			preds := blk.Preds[:0]
			for _, p := range blk.Preds {
				if dom.Reachable(p) {
					preds = append(preds, p)
				}
			}
			blk.Preds = preds
		}
	}

	for {
		removed := false
		uses := map[*Value]int{}
		for _, blk := range f.Blocks {
			for _, ins := range blk.Instrs {
				for _, lists := range [][]*Value{ins.Operands, ins.TargetArgs, ins.TrueArgs, ins.FalseArgs} {
					for _, o := range lists {
						uses[o]++
					}
				}
			}
		}
		for _, blk := range f.Blocks {
			for i := len(blk.Instrs) - 1; i >= 0; i-- {
				ins := blk.Instrs[i]
				if ins.HasSideEffect() || uses[ins] > 0 {
					continue
				}
				blk.Instrs = append(blk.Instrs[:i], blk.Instrs[i+1:]...)
				removed = true
			}
		}
		if !removed {
			break
		}
		changed = true
	}
	return changed
}

// inlineThreshold is the instruction-count ceiling below which a callee
// with a single call site is spliced into its caller.
const inlineThreshold = 24

func inlineSmallFunctions(pm *PassManager, f *Function) bool {
	changed := false
	for {
		site := findInlinableCall(pm.Module, f)
		if site == nil {
			break
		}
		inlineCall(f, site)
		changed = true
	}
	return changed
}

type callSite struct {
	blk    *Block
	idx    int
	call   *Value
	callee *Function
}

func findInlinableCall(m *Module, f *Function) *callSite {
	for _, blk := range f.Blocks {
		for i, ins := range blk.Instrs {
			if ins.Op != OpCall || ins.Callee == f {
				continue
			}
			callee := ins.Callee
			if instrCount(callee) > inlineThreshold {
				continue
			}
			if callSiteCount(m, callee) != 1 {
				continue
			}
			return &callSite{blk: blk, idx: i, call: ins, callee: callee}
		}
	}
	return nil
}

func instrCount(f *Function) int {
	n := 0
	for _, blk := range f.Blocks {
		n += len(blk.Instrs)
	}
	return n
}

func callSiteCount(m *Module, callee *Function) int {
	n := 0
	for _, f := range m.Functions {
		for _, blk := range f.Blocks {
			for _, ins := range blk.Instrs {
				if ins.Op == OpCall && ins.Callee == callee {
					n++
				}
			}
		}
	}
	return n
}

// inlineCall splices the callee's cloned blocks between the two halves of
// the call's block: parameters map to the call's arguments, every ret
// becomes a branch to the continuation carrying the return value as a
// block argument.
func inlineCall(f *Function, site *callSite) {
	callee := site.callee

	cont := f.NewBlock("inlinecont")
	cont.Preds = nil
	contArg := f.newValue(OpArg, site.call.Type)
	contArg.Block = cont
	cont.Args = append(cont.Args, contArg)

	// Move the instructions after the call into the continuation.
	cont.Instrs = append(cont.Instrs, site.blk.Instrs[site.idx+1:]...)
	for _, ins := range cont.Instrs {
		ins.Block = cont
	}
	site.blk.Instrs = site.blk.Instrs[:site.idx]

	// Successor predecessor links move from the split block to cont.
	for _, succ := range cont.Successors() {
		for i, p := range succ.Preds {
			if p == site.blk {
				succ.Preds[i] = cont
			}
		}
	}

	// Clone the callee body, remapping values as we go. Callee locals are
	// appended to the caller's slots with their indices shifted.
	localBase := len(f.Locals)
	f.Locals = append(f.Locals, callee.Locals...)

	valueMap := map[*Value]*Value{}
	blockMap := map[*Block]*Block{}
	for i, p := range callee.Params {
		valueMap[p] = site.call.Operands[i]
	}
	for _, cb := range callee.Blocks {
		nb := f.NewBlock("inline")
		blockMap[cb] = nb
		for _, arg := range cb.Args {
			if _, mapped := valueMap[arg]; mapped {
				continue // entry args were mapped to call operands
			}
			na := f.newValue(OpArg, arg.Type)
			na.Block = nb
			nb.Args = append(nb.Args, na)
			valueMap[arg] = na
		}
	}

	remap := func(vs []*Value) []*Value {
		if vs == nil {
			return nil
		}
		out := make([]*Value, len(vs))
		for i, v := range vs {
			if nv, ok := valueMap[v]; ok {
				out[i] = nv
			} else {
				out[i] = v
			}
		}
		return out
	}

	for _, cb := range callee.Blocks {
		nb := blockMap[cb]
		for _, ins := range cb.Instrs {
			if ins.Op == OpRet {
				br := f.newValue(OpBranch, ins.Type)
				br.Target = cont
				br.TargetArgs = remap(ins.Operands)
				br.Block = nb
				nb.Instrs = append(nb.Instrs, br)
				cont.Preds = append(cont.Preds, nb)
				continue
			}
			clone := *ins
			clone.ID = f.nextID
			f.nextID++
			clone.Block = nb
			clone.Operands = remap(ins.Operands)
			clone.TargetArgs = remap(ins.TargetArgs)
			clone.TrueArgs = remap(ins.TrueArgs)
			clone.FalseArgs = remap(ins.FalseArgs)
			if clone.Op == OpGetLocal {
				clone.Local += localBase
			}
			if clone.Target != nil {
				clone.Target = blockMap[clone.Target]
			}
			if clone.TrueBlk != nil {
				clone.TrueBlk = blockMap[clone.TrueBlk]
			}
			if clone.FalseBlk != nil {
				clone.FalseBlk = blockMap[clone.FalseBlk]
			}
			valueMap[ins] = &clone
			nb.Instrs = append(nb.Instrs, &clone)
		}
		for _, p := range cb.Preds {
			if np, ok := blockMap[p]; ok {
				nb.Preds = append(nb.Preds, np)
			}
		}
	}

	// The split block now branches into the cloned entry.
	entryClone := blockMap[callee.Entry()]
	br := f.newValue(OpBranch, site.call.Type)
	br.Target = entryClone
	br.Block = site.blk
	site.blk.Instrs = append(site.blk.Instrs, br)
	entryClone.Preds = append(entryClone.Preds, site.blk)

	// Every former use of the call's result reads the continuation arg.
	replaceUses(f, site.call, contArg)
}

func replaceUses(f *Function, old, new *Value) {
	for _, blk := range f.Blocks {
		for _, ins := range blk.Instrs {
			for _, lists := range [][]*Value{ins.Operands, ins.TargetArgs, ins.TrueArgs, ins.FalseArgs} {
				for i, o := range lists {
					if o == old {
						lists[i] = new
					}
				}
			}
		}
	}
}
