package asm

import (
	"fmt"
	"strings"

	"github.com/vmlang/corec/internal/span"
)

// Opcode is one real VM instruction. Encoding is fixed 32-bit:
// [8-bit opcode][6-bit rA][6-bit rB][6-bit rC][6-bit rD], with the
// trailing register fields reinterpreted as a 12-, 18-, or 24-bit
// immediate for the *I forms.
type Opcode uint8

const (
	NOOP Opcode = iota

	// Arithmetic, bitwise, compare: rA = rB <op> rC.
	ADD
	SUB
	MUL
	DIV
	MOD
	AND
	OR
	XOR
	SLL
	SRL
	EQ
	GT
	LT
	NOT // rA = ~rB

	MOVE // rA = rB
	MOVI // rA = imm18
	ADDI // rA = rB + imm12
	SUBI // rA = rB - imm12
	XORI // rA = rB ^ imm12

	JI   // jump to imm24
	JNEI // if rA != rB jump to imm12
	JNZI // if rA != 0 jump to imm18
	JMP  // jump to address in rA
	JNE  // if rA != rB jump to address in rC

	LW   // rA = mem[rB + imm12*8]
	SW   // mem[rA + imm12*8] = rB
	CFEI // extend call frame by imm24 bytes
	CFSI // shrink call frame by imm24 bytes
	MCP  // copy rC bytes from rB to rA
	MCPI // copy imm12 bytes from rB to rA

	RET  // return rA
	RVRT // revert rA

	SRW // rA = storage[key at rB]
	SWW // storage[key at rA] = rB
	LOG
	MINT
	BURN
	TR
	CALL

	// BLOB reserves imm24 words of zeroed code space; test-only padding.
	BLOB
)

var opcodeNames = map[Opcode]string{
	NOOP: "noop", ADD: "add", SUB: "sub", MUL: "mul", DIV: "div", MOD: "mod",
	AND: "and", OR: "or", XOR: "xor", SLL: "sll", SRL: "srl", EQ: "eq",
	GT: "gt", LT: "lt", NOT: "not", MOVE: "move", MOVI: "movi", ADDI: "addi",
	SUBI: "subi", XORI: "xori", JI: "ji", JNEI: "jnei", JNZI: "jnzi",
	JMP: "jmp", JNE: "jne", LW: "lw", SW: "sw", CFEI: "cfei", CFSI: "cfsi",
	MCP: "mcp", MCPI: "mcpi", RET: "ret", RVRT: "rvrt", SRW: "srw",
	SWW: "sww", LOG: "log", MINT: "mint", BURN: "burn", TR: "tr",
	CALL: "call", BLOB: "blob",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op%d", uint8(o))
}

// opcodeByName is the inverse table, used by the inline-assembly
// translator and the disassembler tests.
var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// Label identifies a jump target before offsets are known.
type Label int

func (l Label) String() string { return fmt.Sprintf(".L%d", int(l)) }

// CtrlKind discriminates the organizational ops that exist only before
// label realization.
type CtrlKind int

const (
	CtrlLabel CtrlKind = iota
	CtrlJump
	CtrlJumpIfNotZero
	CtrlJumpIfNotEq
	CtrlMoveAddress
	CtrlPushAll
	CtrlPopAll
	CtrlLoadLabel
	CtrlDataSectionOffsetPlaceholder
	CtrlComment
)

// CtrlOp is one organizational op.
type CtrlOp struct {
	Kind   CtrlKind
	Label  Label
	RegA   Register
	RegB   Register
}

// RealOp is one concrete VM instruction with registers assigned. For
// LW-from-data loads the DataID field selects the data-section entry; the
// immediate is resolved once the section is laid out.
type RealOp struct {
	Opcode Opcode
	RegA   Register
	RegB   Register
	RegC   Register
	Imm    uint64
	Data   DataID
	HasData bool
	Span    span.ID
}

// Op is one allocated abstract instruction: either a real opcode or an
// organizational op, never both.
type Op struct {
	Real *RealOp
	Ctrl *CtrlOp

	Comment string
	Span    span.ID
}

func realOp(r RealOp, comment string) Op {
	cp := r
	return Op{Real: &cp, Comment: comment}
}

func ctrlOp(c CtrlOp, comment string) Op {
	cp := c
	return Op{Ctrl: &cp, Comment: comment}
}

func (o Op) String() string {
	var body string
	switch {
	case o.Real != nil:
		body = o.Real.String()
	case o.Ctrl != nil:
		body = o.Ctrl.String()
	}
	if o.Comment != "" {
		return fmt.Sprintf("%-40s ; %s", body, o.Comment)
	}
	return body
}

func (r *RealOp) String() string {
	parts := []string{r.Opcode.String()}
	switch r.Opcode {
	case NOOP:
	case MOVI:
		parts = append(parts, r.RegA.String(), fmt.Sprintf("%d", r.Imm))
	case JI, CFEI, CFSI, BLOB:
		parts = append(parts, fmt.Sprintf("%d", r.Imm))
	case JNZI:
		parts = append(parts, r.RegA.String(), fmt.Sprintf("%d", r.Imm))
	case JNEI:
		parts = append(parts, r.RegA.String(), r.RegB.String(), fmt.Sprintf("%d", r.Imm))
	case JMP, RET, RVRT, LOG, MINT, BURN:
		parts = append(parts, r.RegA.String())
	case NOT, MOVE:
		parts = append(parts, r.RegA.String(), r.RegB.String())
	case ADDI, SUBI, XORI, MCPI:
		parts = append(parts, r.RegA.String(), r.RegB.String(), fmt.Sprintf("%d", r.Imm))
	case LW:
		if r.HasData {
			parts = append(parts, r.RegA.String(), fmt.Sprintf("data_%d", r.Data))
		} else {
			parts = append(parts, r.RegA.String(), r.RegB.String(), fmt.Sprintf("%d", r.Imm))
		}
	case SW:
		parts = append(parts, r.RegA.String(), r.RegB.String(), fmt.Sprintf("%d", r.Imm))
	default:
		parts = append(parts, r.RegA.String(), r.RegB.String(), r.RegC.String())
	}
	return strings.Join(parts, " ")
}

func (c *CtrlOp) String() string {
	switch c.Kind {
	case CtrlLabel:
		return c.Label.String() + ":"
	case CtrlJump:
		return "jump " + c.Label.String()
	case CtrlJumpIfNotZero:
		return "jnzi " + c.RegA.String() + " " + c.Label.String()
	case CtrlJumpIfNotEq:
		return "jnei " + c.RegA.String() + " " + c.RegB.String() + " " + c.Label.String()
	case CtrlMoveAddress:
		return "movaddr " + c.RegA.String() + " " + c.Label.String()
	case CtrlPushAll:
		return "pusha " + c.Label.String()
	case CtrlPopAll:
		return "popa " + c.Label.String()
	case CtrlLoadLabel:
		return "loadlabel " + c.RegA.String() + " " + c.Label.String()
	case CtrlDataSectionOffsetPlaceholder:
		return ".data_section_offset"
	case CtrlComment:
		return ";"
	}
	return "?"
}

// defRegister reports the register an op writes, if any; the caller-save
// expansion collects these per push/pop region.
func (o Op) defRegister() (Register, bool) {
	if o.Ctrl != nil {
		switch o.Ctrl.Kind {
		case CtrlMoveAddress, CtrlLoadLabel:
			return o.Ctrl.RegA, true
		}
		return 0, false
	}
	switch o.Real.Opcode {
	case ADD, SUB, MUL, DIV, MOD, AND, OR, XOR, SLL, SRL, EQ, GT, LT, NOT,
		MOVE, MOVI, ADDI, SUBI, XORI, LW, SRW:
		return o.Real.RegA, true
	}
	return 0, false
}
