package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/vmlang/corec/internal/span"
)

// Program is the fully-encoded output: little-endian 64-bit words, two
// 32-bit instructions per word, a data-section offset in the placeholder
// word, then the data section. Instrs keeps the flat
// decoded form for the disassembler and the source map.
type Program struct {
	Words  []uint64
	Instrs []RealOp
	Data   *DataSection

	// SourceMap maps an instruction index to the span of its originating
	// IR, which in turn points back to the typed AST and the source.
	SourceMap map[int]span.ID
}

// isDataPlaceholder reports whether r is the marker for the two-slot hole
// the data-section byte offset is patched into.
func isDataPlaceholder(r RealOp) bool {
	return r.Opcode == NOOP && r.HasData && r.Data == -1
}

// FlattenDataLoads expands every data-referencing load into its final
// one- or two-instruction form: copy-type entries load directly from the
// data-section register; for larger entries the payload's address is
// computed as the entry's byte offset plus the data-section register
// (MOVI + ADD). No pointer entry is loaded from the data section, and the
// instruction-start register is not involved.
func FlattenDataLoads(ops []RealOp, ds *DataSection) []RealOp {
	out := make([]RealOp, 0, len(ops))
	for _, op := range ops {
		if op.Opcode == LW && op.HasData && !isDataPlaceholder(op) {
			off := ds.OffsetWords(op.Data)
			if ds.HasCopyType(op.Data) {
				out = append(out, RealOp{Opcode: LW, RegA: op.RegA, RegB: RegDataSection, Imm: off, Span: op.Span})
			} else {
				// Address of the payload: $ds + off words, in bytes.
				out = append(out,
					RealOp{Opcode: MOVI, RegA: op.RegA, Imm: off * 8, Span: op.Span},
					RealOp{Opcode: ADD, RegA: op.RegA, RegB: op.RegA, RegC: RegDataSection, Span: op.Span},
				)
			}
			continue
		}
		if op.Opcode == BLOB {
			for i := uint64(0); i < op.Imm; i++ {
				out = append(out, RealOp{Opcode: NOOP})
			}
			continue
		}
		out = append(out, op)
	}
	return out
}

// EncodeInstr packs one instruction into its 32-bit form:
// [8-bit opcode][6-bit rA][6-bit rB][6-bit rC][6-bit rD], with the tail
// fields reinterpreted as the 12-, 18-, or 24-bit immediate of the *I
// forms.
func EncodeInstr(r RealOp) uint32 {
	word := uint32(r.Opcode) << 24
	switch r.Opcode {
	case JI, CFEI, CFSI:
		word |= uint32(r.Imm) & twentyFourBits
	case MOVI, JNZI:
		word |= uint32(r.RegA) << 18
		word |= uint32(r.Imm) & eighteenBits
	case ADDI, SUBI, XORI, JNEI, LW, SW, MCPI:
		word |= uint32(r.RegA) << 18
		word |= uint32(r.RegB) << 12
		word |= uint32(r.Imm) & twelveBits
	default:
		word |= uint32(r.RegA) << 18
		word |= uint32(r.RegB) << 12
		word |= uint32(r.RegC) << 6
	}
	return word
}

// DecodeInstr is EncodeInstr's inverse.
func DecodeInstr(word uint32) RealOp {
	op := Opcode(word >> 24)
	r := RealOp{Opcode: op}
	switch op {
	case JI, CFEI, CFSI:
		r.Imm = uint64(word & twentyFourBits)
	case MOVI, JNZI:
		r.RegA = Register((word >> 18) & 0x3f)
		r.Imm = uint64(word & eighteenBits)
	case ADDI, SUBI, XORI, JNEI, LW, SW, MCPI:
		r.RegA = Register((word >> 18) & 0x3f)
		r.RegB = Register((word >> 12) & 0x3f)
		r.Imm = uint64(word & twelveBits)
	default:
		r.RegA = Register((word >> 18) & 0x3f)
		r.RegB = Register((word >> 12) & 0x3f)
		r.RegC = Register((word >> 6) & 0x3f)
	}
	return r
}

// Emit lays out the final bytecode: flattened instructions (padded with a
// trailing noop to an even count), the data-section byte offset patched
// into the placeholder hole, then the serialized data section.
func Emit(ops []RealOp, ds *DataSection) (*Program, error) {
	flat := FlattenDataLoads(ops, ds)

	// The placeholder occupies two instruction slots (one 64-bit word);
	// expand the hole so offsets stay word-aligned.
	placeholderAt := -1
	expanded := make([]RealOp, 0, len(flat)+1)
	for _, op := range flat {
		if isDataPlaceholder(op) {
			if placeholderAt >= 0 {
				return nil, fmt.Errorf("more than one data-section offset placeholder")
			}
			placeholderAt = len(expanded)
			expanded = append(expanded, op, RealOp{Opcode: NOOP})
			continue
		}
		expanded = append(expanded, op)
	}
	flat = expanded

	if len(flat)%2 != 0 {
		flat = append(flat, RealOp{Opcode: NOOP})
	}
	dataOffsetBytes := uint64(len(flat)) * 4

	var raw []byte
	var buf [4]byte
	srcMap := map[int]span.ID{}
	for i, op := range flat {
		if placeholderAt >= 0 && i == placeholderAt {
			var hole [8]byte
			binary.LittleEndian.PutUint64(hole[:], dataOffsetBytes)
			raw = append(raw, hole[:]...)
			continue
		}
		if placeholderAt >= 0 && i == placeholderAt+1 {
			continue // second half of the hole, already written
		}
		binary.LittleEndian.PutUint32(buf[:], EncodeInstr(op))
		raw = append(raw, buf[:]...)
		if !op.Span.IsNone() {
			srcMap[i] = op.Span
		}
	}
	raw = append(raw, ds.Serialize()...)

	words := make([]uint64, 0, len(raw)/8)
	for i := 0; i+8 <= len(raw); i += 8 {
		words = append(words, binary.LittleEndian.Uint64(raw[i:]))
	}
	return &Program{Words: words, Instrs: flat, Data: ds, SourceMap: srcMap}, nil
}
