package asm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders a program's instruction stream as a textual
// listing, one instruction per line with its word offset. The data
// section is summarized entry by entry after the code.
func Disassemble(p *Program) string {
	var sb strings.Builder
	sb.WriteString(".program:\n")
	for i, op := range p.Instrs {
		fmt.Fprintf(&sb, "%08x  %s\n", i, op.String())
	}
	if p.Data.Len() > 0 {
		sb.WriteString(".data:\n")
		for i := 0; i < p.Data.Len(); i++ {
			e := p.Data.entries[i]
			fmt.Fprintf(&sb, "  data_%d %s %d bytes\n", i, e.Kind, len(e.payload()))
		}
	}
	return sb.String()
}

func (k EntryKind) String() string {
	switch k {
	case EntryWord:
		return "word"
	case EntryCollection:
		return "collection"
	case EntryByteArray:
		return "bytes"
	case EntryB256:
		return "b256"
	}
	return "?"
}

// DecodeProgram recovers the instruction sequence from encoded words: the
// instruction region runs from the start to the data-section byte offset
// carried in the placeholder word at the program head.
func DecodeProgram(words []uint64) ([]RealOp, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	raw := make([]byte, 0, len(words)*8)
	var buf [8]byte
	for _, w := range words {
		binary.LittleEndian.PutUint64(buf[:], w)
		raw = append(raw, buf[:]...)
	}
	dataOffset := binary.LittleEndian.Uint64(raw[:8])
	if dataOffset > uint64(len(raw)) {
		return nil, fmt.Errorf("data-section offset %d beyond program end", dataOffset)
	}
	var out []RealOp
	// The first word is the offset itself; decoding resumes after it.
	for at := uint64(8); at+4 <= dataOffset; at += 4 {
		out = append(out, DecodeInstr(binary.LittleEndian.Uint32(raw[at:])))
	}
	return out, nil
}
