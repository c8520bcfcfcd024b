package asm

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// Assemble-then-disassemble must reproduce the instruction sequence,
// noop padding excluded.
func TestEncodeRoundTrip(t *testing.T) {
	ds := &DataSection{}
	wide := ds.Insert(NewWordEntry(1 << 40))

	ops := []RealOp{
		{Opcode: NOOP, HasData: true, Data: -1}, // data-section offset hole
		{Opcode: MOVI, RegA: FirstAllocatable, Imm: 42},
		{Opcode: ADD, RegA: FirstAllocatable + 2, RegB: FirstAllocatable, RegC: FirstAllocatable + 1},
		{Opcode: LW, RegA: FirstAllocatable + 3, Data: wide, HasData: true},
		{Opcode: JNEI, RegA: FirstAllocatable, RegB: FirstAllocatable + 1, Imm: 7},
		{Opcode: SW, RegA: FirstAllocatable + 2, RegB: FirstAllocatable + 3, Imm: 1},
		{Opcode: RET, RegA: RegReturnValue},
	}
	prog, err := Emit(ops, ds)
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	decoded, err := DecodeProgram(prog.Words)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// The flat form keeps the placeholder's two slots at its front; decoded
	// output starts right after them.
	want := prog.Instrs[2:]
	if len(decoded) < len(want) {
		t.Fatalf("decoded %d instructions, want at least %d", len(decoded), len(want))
	}
	for i, w := range want {
		got := decoded[i]
		if got.Opcode == NOOP && w.Opcode == NOOP {
			continue
		}
		if got.Opcode != w.Opcode || got.RegA != w.RegA || got.RegB != w.RegB ||
			got.RegC != w.RegC || got.Imm != w.Imm {
			t.Fatalf("instruction %d mismatch: encoded %s, decoded %s", i, w.String(), got.String())
		}
	}
}

func TestDataOffsetWord(t *testing.T) {
	ds := &DataSection{}
	ds.Insert(NewWordEntry(7))
	ops := []RealOp{
		{Opcode: NOOP, HasData: true, Data: -1},
		{Opcode: RET, RegA: RegZero},
	}
	prog, err := Emit(ops, ds)
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	// Placeholder (2 slots) + ret + pad = 4 instruction slots = 16 bytes.
	if prog.Words[0] != 16 {
		t.Fatalf("data-section offset word is %d, want 16", prog.Words[0])
	}
}

func TestDisassemblyListing(t *testing.T) {
	ds := &DataSection{}
	key := [32]byte{0xAA}
	ds.Insert(NewB256Entry(key))
	ops := []RealOp{
		{Opcode: NOOP, HasData: true, Data: -1},
		{Opcode: MOVI, RegA: FirstAllocatable, Imm: 42},
		{Opcode: MOVE, RegA: RegReturnValue, RegB: FirstAllocatable},
		{Opcode: RET, RegA: RegReturnValue},
	}
	prog, err := Emit(ops, ds)
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	snaps.MatchSnapshot(t, Disassemble(prog))
}
