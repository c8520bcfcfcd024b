package asm

import (
	"testing"
)

// A conditional jump whose target sits far beyond the 12-bit budget must
// be rewritten into load_label + the register-compare form, and the final
// offsets must satisfy every jump's immediate width.
func TestFarJumpRewrite(t *testing.T) {
	ds := &DataSection{}
	far := Label(1)

	set := &InstructionSet{}
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{Kind: CtrlLabel, Label: Label(0)}, ""))
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{
		Kind: CtrlJumpIfNotEq, RegA: FirstAllocatable, RegB: FirstAllocatable + 1, Label: far,
	}, ""))
	// 300 000 instructions of padding push the target far past every
	// immediate budget a jnei or jnzi could carry.
	set.Ops = append(set.Ops, realOp(RealOp{Opcode: BLOB, Imm: 300000}, "padding"))
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{Kind: CtrlLabel, Label: far}, ""))
	set.Ops = append(set.Ops, realOp(RealOp{Opcode: RET, RegA: RegZero}, ""))

	realized, layout, err := set.RealizeLabels(ds)
	if err != nil {
		t.Fatalf("label resolution failed: %v", err)
	}

	// The jnei must have become load_label + jne through the scratch
	// register.
	sawJNE := false
	for i, op := range realized {
		if op.Opcode == JNE && op.RegC == RegScratch {
			sawJNE = true
			if i == 0 || !(realized[i-1].Opcode == LW && realized[i-1].HasData) {
				t.Fatalf("jne not preceded by a scratch load of the target offset")
			}
		}
		if op.Opcode == JNEI {
			if op.Imm > twelveBits {
				t.Fatalf("jnei immediate %d exceeds 12 bits", op.Imm)
			}
		}
		if op.Opcode == JNZI && op.Imm > eighteenBits {
			t.Fatalf("jnzi immediate %d exceeds 18 bits", op.Imm)
		}
		if op.Opcode == JI && op.Imm > twentyFourBits {
			t.Fatalf("ji immediate %d exceeds 24 bits", op.Imm)
		}
	}
	if !sawJNE {
		t.Fatalf("conditional far jump was not rewritten to the register form")
	}
	if layout[far].Offset <= twelveBits {
		t.Fatalf("fixture target unexpectedly within immediate range")
	}
}

// The resolve loop must reach a fixpoint within the iteration cap even
// when rewriting shifts labels across the immediate boundaries.
func TestLabelResolutionFixpoint(t *testing.T) {
	ds := &DataSection{}
	set := &InstructionSet{}

	// A ladder of blocks each conditionally jumping to the last label,
	// padded so several targets straddle the 12-bit boundary.
	last := Label(100)
	for i := 0; i < 8; i++ {
		set.Ops = append(set.Ops, ctrlOp(CtrlOp{Kind: CtrlLabel, Label: Label(i)}, ""))
		set.Ops = append(set.Ops, ctrlOp(CtrlOp{
			Kind: CtrlJumpIfNotEq, RegA: FirstAllocatable, RegB: FirstAllocatable + 1, Label: last,
		}, ""))
		set.Ops = append(set.Ops, realOp(RealOp{Opcode: BLOB, Imm: 1000}, ""))
	}
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{Kind: CtrlLabel, Label: last}, ""))
	set.Ops = append(set.Ops, realOp(RealOp{Opcode: RET, RegA: RegZero}, ""))

	realized, layout, err := set.RealizeLabels(ds)
	if err != nil {
		t.Fatalf("resolution did not converge: %v", err)
	}
	if len(realized) == 0 || len(layout) == 0 {
		t.Fatalf("empty realization")
	}
	for _, op := range realized {
		switch op.Opcode {
		case JNEI:
			if op.Imm > twelveBits {
				t.Fatalf("jnei immediate %d exceeds its width after fixpoint", op.Imm)
			}
		case JNZI:
			if op.Imm > eighteenBits {
				t.Fatalf("jnzi immediate %d exceeds its width after fixpoint", op.Imm)
			}
		}
	}
}

func TestRelocateControlFlowRecoversRange(t *testing.T) {
	ds := &DataSection{}
	set := &InstructionSet{}

	// One giant straight-line block pushes the trailing label past the
	// 18-bit budget; relocation should move it behind the program end so
	// the conditional jump's target comes back into range.
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{Kind: CtrlLabel, Label: Label(0)}, ""))
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{
		Kind: CtrlJumpIfNotZero, RegA: FirstAllocatable, Label: Label(2),
	}, ""))
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{Kind: CtrlLabel, Label: Label(1)}, ""))
	set.Ops = append(set.Ops, realOp(RealOp{Opcode: BLOB, Imm: 400000}, "bulk"))
	set.Ops = append(set.Ops, ctrlOp(CtrlOp{Kind: CtrlLabel, Label: Label(2)}, ""))
	set.Ops = append(set.Ops, realOp(RealOp{Opcode: RET, RegA: RegZero}, ""))

	before := len(set.Ops)
	set.RelocateControlFlow(ds)
	if len(set.Ops) <= before {
		t.Fatalf("relocation did not restructure the op stream")
	}

	if _, _, err := set.RealizeLabels(ds); err != nil {
		t.Fatalf("post-relocation resolution failed: %v", err)
	}
}

func TestDataSectionDedup(t *testing.T) {
	ds := &DataSection{}
	a := ds.Insert(NewWordEntry(42))
	b := ds.Insert(NewWordEntry(42))
	c := ds.Insert(NewWordEntry(43))
	if a != b {
		t.Fatalf("identical words were not deduplicated")
	}
	if a == c {
		t.Fatalf("distinct words share a DataID")
	}
	var key [32]byte
	key[0] = 1
	d := ds.Insert(NewB256Entry(key))
	e := ds.Insert(NewB256Entry(key))
	if d != e {
		t.Fatalf("identical b256 entries were not deduplicated")
	}
	if ds.HasCopyType(a) != true || ds.HasCopyType(d) != false {
		t.Fatalf("copy-type classification wrong")
	}
}
