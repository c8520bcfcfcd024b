package asm

import "sort"

// RelocateControlFlow moves the largest non-control-flow blocks to the end
// of the program when the furthest label exceeds the 18-bit budget,
// bracketing each moved block with a jump out and a jump back, so
// conditional jumps stay within immediate range. Run before
// RealizeLabels.
func (s *InstructionSet) RelocateControlFlow(ds *DataSection) {
	hasFar, furthest, layout := s.mapLabelOffsets(ds)
	if !hasFar {
		return
	}

	type sized struct {
		label Label
		blk   BasicBlock
	}
	sorted := make([]sized, 0, len(layout))
	for lab, blk := range layout {
		sorted = append(sorted, sized{lab, blk})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].blk.FinalLen > sorted[j].blk.FinalLen })

	reductionTarget := furthest - eighteenBits
	var moved uint64
	toMove := map[Label]int{}
	for _, cand := range sorted {
		if moved >= reductionTarget {
			break
		}
		toMove[cand.label] = cand.blk.AbstractLen
		moved += cand.blk.FinalLen
	}

	newLabelIdx := len(s.Ops)
	var newOps, movedOps []Op
	mkCtrl := func(kind CtrlKind, lab Label) Op {
		return ctrlOp(CtrlOp{Kind: kind, Label: lab}, "")
	}

	readIdx := 0
	for readIdx < len(s.Ops) {
		op := s.Ops[readIdx]
		newOps = append(newOps, op)
		readIdx++

		if op.Ctrl == nil || op.Ctrl.Kind != CtrlLabel {
			continue
		}
		count, wanted := toMove[op.Ctrl.Label]
		if !wanted {
			continue
		}
		count-- // the recorded length includes the label op itself

		movedLabel := Label(newLabelIdx)
		newLabelIdx++
		movedOps = append(movedOps, mkCtrl(CtrlLabel, movedLabel))
		movedOps = append(movedOps, s.Ops[readIdx:readIdx+count]...)
		newOps = append(newOps, mkCtrl(CtrlJump, movedLabel))
		readIdx += count

		if readIdx >= len(s.Ops) {
			break
		}
		next := s.Ops[readIdx]
		switch {
		case next.Ctrl != nil && next.Ctrl.Kind == CtrlLabel:
			// Fall through to the following label: the moved copy jumps back.
			movedOps = append(movedOps, mkCtrl(CtrlJump, next.Ctrl.Label))
		case next.Ctrl != nil && (next.Ctrl.Kind == CtrlJumpIfNotEq || next.Ctrl.Kind == CtrlJumpIfNotZero):
			// A conditional terminator must not move; terminate the moved
			// copy at a fresh return label placed before it.
			jumpBack := Label(newLabelIdx)
			newLabelIdx++
			newOps = append(newOps, mkCtrl(CtrlLabel, jumpBack))
			movedOps = append(movedOps, mkCtrl(CtrlJump, jumpBack))
		case next.Ctrl != nil && next.Ctrl.Kind == CtrlJump:
			// An unconditional jump moves along with its block.
			movedOps = append(movedOps, next)
			readIdx++
		}
	}

	s.Ops = append(newOps, movedOps...)
}
