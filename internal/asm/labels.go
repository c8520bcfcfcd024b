package asm

import "fmt"

// Immediate-width budgets for the three jump forms: 24 bits for
// unconditional, 18 for zero-compare, 12 for pairwise-compare.
const (
	twelveBits     = (1 << 12) - 1
	eighteenBits   = (1 << 18) - 1
	twentyFourBits = (1 << 24) - 1
)

// maxLabelIterations caps the resolve loop against pathological
// oscillation around the immediate-width boundaries.
const maxLabelIterations = 10

// BasicBlock is the per-label layout record tracked during resolution:
// the block's word offset, its abstract op count, and its final length in
// words once multi-word ops are accounted for.
type BasicBlock struct {
	Offset      uint64
	AbstractLen int
	FinalLen    uint64
}

// LabelLayout maps each label to its block record; exposed so tests can
// assert the fixpoint's offsets satisfy every jump's width budget.
type LabelLayout map[Label]BasicBlock

// InstructionSet is the allocated abstract op list flowing through the
// backend's late phases.
type InstructionSet struct {
	Ops []Op
}

// RealizeLabels resolves label offsets iteratively and rewrites the
// organizational ops into concrete instructions. Jumps whose targets
// exceed their immediate width are rewritten through the scratch register
// (costing one extra word) and the offsets recomputed, up to the
// iteration cap.
func (s *InstructionSet) RealizeLabels(ds *DataSection) ([]RealOp, LabelLayout, error) {
	layout, err := s.resolveLabels(ds, 0)
	if err != nil {
		return nil, nil, err
	}

	var out []RealOp
	for _, op := range s.Ops {
		if op.Real != nil {
			r := *op.Real
			r.Span = op.Span
			out = append(out, r)
			continue
		}
		c := op.Ctrl
		switch c.Kind {
		case CtrlJump:
			out = append(out, RealOp{Opcode: JI, Imm: layout[c.Label].Offset})
		case CtrlJumpIfNotEq:
			out = append(out, RealOp{Opcode: JNEI, RegA: c.RegA, RegB: c.RegB, Imm: layout[c.Label].Offset})
		case CtrlJumpIfNotZero:
			out = append(out, RealOp{Opcode: JNZI, RegA: c.RegA, Imm: layout[c.Label].Offset})
		case CtrlMoveAddress:
			out = append(out, RealOp{Opcode: MOVI, RegA: c.RegA, Imm: layout[c.Label].Offset})
		case CtrlLoadLabel:
			id := ds.Insert(NewWordEntry(layout[c.Label].Offset))
			out = append(out, RealOp{Opcode: LW, RegA: c.RegA, Data: id, HasData: true})
		case CtrlDataSectionOffsetPlaceholder:
			// Re-encoded once the final section offset is known; keep a
			// two-word hole via a dedicated marker pair during emission.
			out = append(out, RealOp{Opcode: NOOP, HasData: true, Data: -1})
		case CtrlLabel, CtrlComment:
			// Organizational only; nothing to emit.
		case CtrlPushAll, CtrlPopAll:
			return nil, nil, fmt.Errorf("push_all/pop_all survived caller-save expansion")
		}
	}
	return out, layout, nil
}

func (s *InstructionSet) resolveLabels(ds *DataSection, iter int) (LabelLayout, error) {
	if iter > maxLabelIterations {
		return nil, fmt.Errorf("failed to resolve label offsets after %d iterations", maxLabelIterations)
	}
	remapNeeded, _, layout := s.mapLabelOffsets(ds)
	if !remapNeeded || !s.rewriteFarJumps(layout) {
		return layout, nil
	}
	return s.resolveLabels(ds, iter+1)
}

// mapLabelOffsets computes each label's block record in one walk and
// reports whether any jump may exceed its immediate budget. A
// load-from-data op counts one or two words depending on whether the
// entry has a copy type; the data-section offset placeholder counts two.
func (s *InstructionSet) mapLabelOffsets(ds *DataSection) (bool, uint64, LabelLayout) {
	layout := LabelLayout{}
	var curOffset uint64
	var furthest uint64
	jneiTargets := map[Label]bool{}

	type openBlock struct {
		label Label
		idx   int
		offs  uint64
	}
	var cur *openBlock
	closeBlock := func(endIdx int) {
		if cur == nil {
			return
		}
		layout[cur.label] = BasicBlock{
			Offset:      cur.offs,
			AbstractLen: endIdx - cur.idx,
			FinalLen:    curOffset - cur.offs,
		}
		cur = nil
	}

	for i, op := range s.Ops {
		if op.Ctrl != nil {
			switch op.Ctrl.Kind {
			case CtrlLabel, CtrlJump, CtrlJumpIfNotEq, CtrlJumpIfNotZero:
				closeBlock(i)
			}
		}
		switch {
		case op.Ctrl != nil && op.Ctrl.Kind == CtrlLabel:
			cur = &openBlock{label: op.Ctrl.Label, idx: i, offs: curOffset}
			if curOffset > furthest {
				furthest = curOffset
			}
		case op.Ctrl != nil && op.Ctrl.Kind == CtrlComment:
			// Zero words.
		case op.Ctrl != nil && op.Ctrl.Kind == CtrlDataSectionOffsetPlaceholder:
			curOffset += 2
		case op.Ctrl != nil && op.Ctrl.Kind == CtrlJumpIfNotEq:
			jneiTargets[op.Ctrl.Label] = true
			curOffset++
		case op.Real != nil && op.Real.Opcode == LW && op.Real.HasData:
			if ds.HasCopyType(op.Real.Data) {
				curOffset++
			} else {
				curOffset += 2
			}
		case op.Real != nil && op.Real.Opcode == BLOB:
			curOffset += op.Real.Imm
		default:
			curOffset++
		}
	}
	closeBlock(len(s.Ops))

	remapNeeded := furthest > eighteenBits
	for lab := range jneiTargets {
		if layout[lab].Offset > twelveBits {
			remapNeeded = true
		}
	}
	return remapNeeded, furthest, layout
}

// rewriteFarJumps replaces each jump whose target exceeds its immediate
// width with a load of the offset from the data section into the scratch
// register followed by the register form of the jump. Reports whether
// anything changed.
func (s *InstructionSet) rewriteFarJumps(layout LabelLayout) bool {
	modified := false
	newOps := make([]Op, 0, len(s.Ops))
	for _, op := range s.Ops {
		if op.Ctrl == nil {
			newOps = append(newOps, op)
			continue
		}
		c := op.Ctrl
		switch c.Kind {
		case CtrlJump:
			if layout[c.Label].Offset <= twentyFourBits {
				newOps = append(newOps, op)
			} else {
				newOps = append(newOps,
					ctrlOp(CtrlOp{Kind: CtrlLoadLabel, RegA: RegScratch, Label: c.Label}, ""),
					Op{Real: &RealOp{Opcode: JMP, RegA: RegScratch}, Comment: op.Comment, Span: op.Span},
				)
				modified = true
			}
		case CtrlJumpIfNotEq:
			if layout[c.Label].Offset <= twelveBits {
				newOps = append(newOps, op)
			} else {
				newOps = append(newOps,
					ctrlOp(CtrlOp{Kind: CtrlLoadLabel, RegA: RegScratch, Label: c.Label}, ""),
					Op{Real: &RealOp{Opcode: JNE, RegA: c.RegA, RegB: c.RegB, RegC: RegScratch}, Comment: op.Comment, Span: op.Span},
				)
				modified = true
			}
		case CtrlJumpIfNotZero:
			if layout[c.Label].Offset <= eighteenBits {
				newOps = append(newOps, op)
			} else {
				newOps = append(newOps,
					ctrlOp(CtrlOp{Kind: CtrlLoadLabel, RegA: RegScratch, Label: c.Label}, ""),
					Op{Real: &RealOp{Opcode: JNE, RegA: c.RegA, RegB: RegZero, RegC: RegScratch}, Comment: op.Comment, Span: op.Span},
				)
				modified = true
			}
		case CtrlMoveAddress:
			if layout[c.Label].Offset <= eighteenBits {
				newOps = append(newOps, op)
			} else {
				newOps = append(newOps, ctrlOp(CtrlOp{Kind: CtrlLoadLabel, RegA: c.RegA, Label: c.Label}, op.Comment))
				modified = true
			}
		default:
			newOps = append(newOps, op)
		}
	}
	s.Ops = newOps
	return modified
}
