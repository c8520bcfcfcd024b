package asm

import (
	"fmt"
	"sort"
)

// ExpandSaveRestore replaces each push_all/pop_all pair with concrete
// stores and loads of the registers actually written inside the bracketed
// region: the set is computed in a first pass over the op stream,
// then each push becomes (save stack base to scratch; reserve 8×N bytes;
// store each register) and each pop the mirrored loads plus the release.
// Nested and overlapping regions are supported; a region's registers are
// whatever was defined while its label was active.
func (s *InstructionSet) ExpandSaveRestore() {
	regSets := map[Label]map[Register]bool{}
	active := map[Label]bool{}
	for _, op := range s.Ops {
		if op.Ctrl != nil {
			switch op.Ctrl.Kind {
			case CtrlPushAll:
				active[op.Ctrl.Label] = true
				continue
			case CtrlPopAll:
				delete(active, op.Ctrl.Label)
				continue
			}
		}
		def, ok := op.defRegister()
		if !ok || !def.IsAllocatable() {
			continue
		}
		for lab := range active {
			set := regSets[lab]
			if set == nil {
				set = map[Register]bool{}
				regSets[lab] = set
			}
			set[def] = true
		}
	}

	sortedRegs := func(lab Label) []Register {
		var regs []Register
		for r := range regSets[lab] {
			regs = append(regs, r)
		}
		sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
		return regs
	}

	newOps := make([]Op, 0, len(s.Ops))
	for _, op := range s.Ops {
		if op.Ctrl == nil || (op.Ctrl.Kind != CtrlPushAll && op.Ctrl.Kind != CtrlPopAll) {
			newOps = append(newOps, op)
			continue
		}
		regs := sortedRegs(op.Ctrl.Label)
		stackBytes := uint64(len(regs)) * 8

		if op.Ctrl.Kind == CtrlPushAll {
			newOps = append(newOps,
				realOp(RealOp{Opcode: MOVE, RegA: RegScratch, RegB: RegStackPtr}, "save base stack value"),
				realOp(RealOp{Opcode: CFEI, Imm: stackBytes}, "reserve space for saved registers"),
			)
			for i, r := range regs {
				newOps = append(newOps,
					realOp(RealOp{Opcode: SW, RegA: RegScratch, RegB: r, Imm: uint64(i)}, fmt.Sprintf("save %s", r)))
			}
		} else {
			newOps = append(newOps,
				realOp(RealOp{Opcode: SUBI, RegA: RegScratch, RegB: RegStackPtr, Imm: stackBytes}, "save base stack value"))
			for i, r := range regs {
				newOps = append(newOps,
					realOp(RealOp{Opcode: LW, RegA: r, RegB: RegScratch, Imm: uint64(i)}, fmt.Sprintf("restore %s", r)))
			}
			newOps = append(newOps,
				realOp(RealOp{Opcode: CFSI, Imm: stackBytes}, "recover space from saved registers"))
		}
	}
	s.Ops = newOps
}
