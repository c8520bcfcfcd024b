package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/ir"
	"github.com/vmlang/corec/internal/types"
)

// selector translates IR to abstract instructions with virtual registers.
// One selector covers a whole module so function labels resolve across
// call sites; per-function state is reset in genFunction.
type selector struct {
	ctx   *types.Context
	ds    *DataSection
	diags *diag.Handler

	vops      []VOp
	nextVReg  VReg
	nextLabel int

	fnLabel map[*ir.Function]Label
	entry   *ir.Function

	// per-function state
	fn          *ir.Function
	vregOf      map[*ir.Value]VReg
	blockLabel  map[*ir.Block]Label
	localOffset []uint64
	frameSize   uint64
	frameReg    VReg
	raSave      VReg
}

// Generate selects abstract instructions for every function of the
// module, allocates registers, and returns the instruction set plus the
// data section under construction. entryName names the function executed
// first (the script/predicate main or the contract dispatcher).
func Generate(m *ir.Module, entryName string, h *diag.Handler) (*InstructionSet, *DataSection, error) {
	s := &selector{
		ctx:     m.Types,
		ds:      &DataSection{},
		diags:   h,
		fnLabel: make(map[*ir.Function]Label),
	}
	s.entry = m.Function(entryName)
	if s.entry == nil {
		return nil, nil, fmt.Errorf("no function named %q to use as the program entry", entryName)
	}
	for _, f := range m.Functions {
		s.fnLabel[f] = s.newLabel()
	}

	// Program header: the data-section offset hole, then transfer to the
	// entry function; other functions follow in module order.
	s.ctrl(CtrlOp{Kind: CtrlDataSectionOffsetPlaceholder}, "data section offset")
	s.ctrl(CtrlOp{Kind: CtrlJump, Label: s.fnLabel[s.entry]}, "jump to entry")

	s.genFunction(s.entry)
	for _, f := range m.Functions {
		if f != s.entry {
			s.genFunction(f)
		}
	}

	ops, err := AllocateRegisters(s.vops)
	if err != nil {
		return nil, nil, err
	}
	return &InstructionSet{Ops: ops}, s.ds, nil
}

func (s *selector) newVReg() VReg {
	v := s.nextVReg
	s.nextVReg++
	return v
}

func (s *selector) newLabel() Label {
	l := Label(s.nextLabel)
	s.nextLabel++
	return l
}

func (s *selector) push(v VOp) {
	s.vops = append(s.vops, v)
}

func (s *selector) real(r RealOp, comment string, regs ...VReg) {
	v := VOp{Op: realOp(r, comment), A: NoVReg, B: NoVReg, C: NoVReg}
	if len(regs) > 0 {
		v.A = regs[0]
	}
	if len(regs) > 1 {
		v.B = regs[1]
	}
	if len(regs) > 2 {
		v.C = regs[2]
	}
	s.push(v)
}

func (s *selector) ctrl(c CtrlOp, comment string, regs ...VReg) {
	v := VOp{Op: ctrlOp(c, comment), A: NoVReg, B: NoVReg, C: NoVReg}
	if len(regs) > 0 {
		v.A = regs[0]
	}
	if len(regs) > 1 {
		v.B = regs[1]
	}
	s.push(v)
}

func (s *selector) genFunction(f *ir.Function) {
	s.fn = f
	s.vregOf = make(map[*ir.Value]VReg)
	s.blockLabel = make(map[*ir.Block]Label)
	for _, blk := range f.Blocks {
		s.blockLabel[blk] = s.newLabel()
		for _, arg := range blk.Args {
			s.vregOf[arg] = s.newVReg()
		}
	}

	s.localOffset = make([]uint64, len(f.Locals))
	s.frameSize = 0
	for i, l := range f.Locals {
		s.localOffset[i] = s.frameSize
		s.frameSize += roundUpToWord(ir.SizeOf(s.ctx, l.Type))
	}

	s.ctrl(CtrlOp{Kind: CtrlLabel, Label: s.fnLabel[f]}, "fn "+f.Name)
	s.frameReg = s.newVReg()
	s.real(RealOp{Opcode: MOVE, RegB: RegStackPtr}, "frame base", s.frameReg)
	if s.frameSize > 0 {
		s.real(RealOp{Opcode: CFEI, Imm: s.frameSize}, "reserve locals")
	}
	if f != s.entry {
		s.raSave = s.newVReg()
		s.real(RealOp{Opcode: MOVE, RegB: RegReturnAddr}, "save return address", s.raSave)
	}
	for i, p := range f.Params {
		if i >= len(ArgRegisters) {
			s.diags.Errorf(diag.KindBackend, f.Span, "function %q takes more arguments than the call convention carries", f.Name)
			break
		}
		s.real(RealOp{Opcode: MOVE, RegB: ArgRegisters[i]}, "param "+strconv.Itoa(i), s.vregOf[p])
	}

	for _, blk := range f.Blocks {
		s.ctrl(CtrlOp{Kind: CtrlLabel, Label: s.blockLabel[blk]}, "")
		for _, ins := range blk.Instrs {
			s.genInstr(ins)
		}
	}
}

// use returns the virtual register holding an already-generated value.
func (s *selector) use(v *ir.Value) VReg {
	if r, ok := s.vregOf[v]; ok {
		return r
	}
	// A miss is a dominance bug upstream; recover with a zeroed register.
	r := s.newVReg()
	s.vregOf[v] = r
	s.real(RealOp{Opcode: MOVE, RegB: RegZero}, "recovery zero", r)
	return r
}

func (s *selector) def(v *ir.Value) VReg {
	r := s.newVReg()
	s.vregOf[v] = r
	return r
}

func (s *selector) genInstr(v *ir.Value) {
	switch v.Op {
	case ir.OpConst:
		s.genConst(v)
	case ir.OpGetLocal:
		r := s.def(v)
		s.real(RealOp{Opcode: ADDI, Imm: s.localOffset[v.Local]}, "addr of "+s.fn.Locals[v.Local].Name, r, s.frameReg)
	case ir.OpLoad:
		r := s.def(v)
		p := s.use(v.Operands[0])
		if ir.IsReferenceType(s.ctx, v.Type) {
			// Reference values travel as addresses.
			s.real(RealOp{Opcode: MOVE}, "", r, p)
		} else {
			s.real(RealOp{Opcode: LW, Imm: 0}, "", r, p)
		}
	case ir.OpStore:
		p := s.use(v.Operands[0])
		val := s.use(v.Operands[1])
		elem := v.Operands[1].Type
		if ir.IsReferenceType(s.ctx, elem) {
			s.genMemCopy(p, val, ir.SizeOf(s.ctx, elem))
		} else {
			s.real(RealOp{Opcode: SW, Imm: 0}, "", p, val)
		}
	case ir.OpGetElemPtr:
		r := s.def(v)
		base := s.use(v.Operands[0])
		off := s.elemOffset(v.Operands[0].Type, v.Indices)
		s.real(RealOp{Opcode: ADDI, Imm: off}, "", r, base)
	case ir.OpMemCopyVal:
		dst := s.use(v.Operands[0])
		src := s.use(v.Operands[1])
		s.genMemCopy(dst, src, s.pointeeSize(v.Operands[0]))
	case ir.OpMemCopyBytes:
		dst := s.use(v.Operands[0])
		src := s.use(v.Operands[1])
		n := s.use(v.Operands[2])
		s.real(RealOp{Opcode: MCP}, "", dst, src, n)
	case ir.OpBinary:
		s.genBinary(v)
	case ir.OpCmp:
		s.genCmp(v)
	case ir.OpUnary:
		s.genUnary(v)
	case ir.OpBranch:
		s.moveBlockArgs(v.Target, v.TargetArgs)
		s.ctrl(CtrlOp{Kind: CtrlJump, Label: s.blockLabel[v.Target]}, "")
	case ir.OpCondBranch:
		cond := s.use(v.Operands[0])
		s.moveBlockArgs(v.TrueBlk, v.TrueArgs)
		s.ctrl(CtrlOp{Kind: CtrlJumpIfNotZero, Label: s.blockLabel[v.TrueBlk]}, "", cond)
		s.moveBlockArgs(v.FalseBlk, v.FalseArgs)
		s.ctrl(CtrlOp{Kind: CtrlJump, Label: s.blockLabel[v.FalseBlk]}, "")
	case ir.OpRet:
		s.genRet(v)
	case ir.OpRevert:
		r := s.use(v.Operands[0])
		s.real(RealOp{Opcode: RVRT}, "", r)
	case ir.OpExtractValue:
		s.genExtract(v)
	case ir.OpInsertValue:
		s.genInsert(v)
	case ir.OpCall:
		s.genCall(v)
	case ir.OpAsmBlock:
		s.genAsmBlock(v)
	case ir.OpReadStorage:
		key := s.keyAddress(v.Key)
		r := s.def(v)
		s.real(RealOp{Opcode: SRW}, "read storage", r, key)
	case ir.OpWriteStorage:
		key := s.keyAddress(v.Key)
		val := s.use(v.Operands[0])
		s.real(RealOp{Opcode: SWW}, "write storage", key, val)
	case ir.OpLog:
		r := s.use(v.Operands[0])
		s.real(RealOp{Opcode: LOG}, "", r)
	case ir.OpMint:
		r := s.use(v.Operands[0])
		s.real(RealOp{Opcode: MINT}, "", r)
	case ir.OpBurn:
		r := s.use(v.Operands[0])
		s.real(RealOp{Opcode: BURN}, "", r)
	case ir.OpTransfer:
		a := s.use(v.Operands[0])
		b := s.use(v.Operands[1])
		c := s.use(v.Operands[2])
		s.real(RealOp{Opcode: TR}, "", a, b, c)
	case ir.OpContractCall:
		a := s.use(v.Operands[0])
		b := s.use(v.Operands[1])
		c := s.use(v.Operands[2])
		s.real(RealOp{Opcode: CALL}, "", a, b, c)
	case ir.OpCastPtr, ir.OpIntToPtr, ir.OpPtrToInt:
		r := s.def(v)
		s.real(RealOp{Opcode: MOVE}, "", r, s.use(v.Operands[0]))
	case ir.OpArg:
		// Block arguments materialize through moveBlockArgs.
	default:
		s.diags.Errorf(diag.KindBackend, v.Span, "no selection rule for IR op %d", v.Op)
	}
}

func (s *selector) genConst(v *ir.Value) {
	r := s.def(v)
	switch {
	case len(v.Raw) > 0:
		id := s.ds.Insert(NewByteArrayEntry(v.Raw))
		s.real(RealOp{Opcode: LW, Data: id, HasData: true}, "string literal", r)
	case s.ctx.GetType(v.Type).Tag == types.TagB256:
		id := s.ds.Insert(NewB256Entry(v.B256))
		s.real(RealOp{Opcode: LW, Data: id, HasData: true}, "b256 literal", r)
	case v.Imm == 0:
		s.real(RealOp{Opcode: MOVE, RegB: RegZero}, "", r)
	case v.Imm <= eighteenBits:
		s.real(RealOp{Opcode: MOVI, Imm: v.Imm}, "", r)
	default:
		id := s.ds.Insert(NewWordEntry(v.Imm))
		s.real(RealOp{Opcode: LW, Data: id, HasData: true}, "wide literal", r)
	}
}

func (s *selector) genMemCopy(dst, src VReg, size uint64) {
	if size <= twelveBits {
		s.real(RealOp{Opcode: MCPI, Imm: size}, "", dst, src)
		return
	}
	n := s.newVReg()
	s.real(RealOp{Opcode: MOVI, Imm: size}, "", n)
	s.real(RealOp{Opcode: MCP}, "", dst, src, n)
}

func (s *selector) genBinary(v *ir.Value) {
	ops := map[ir.BinaryKind]Opcode{
		ir.BinAdd: ADD, ir.BinSub: SUB, ir.BinMul: MUL, ir.BinDiv: DIV,
		ir.BinMod: MOD, ir.BinAnd: AND, ir.BinOr: OR, ir.BinXor: XOR,
		ir.BinShl: SLL, ir.BinShr: SRL,
	}
	r := s.def(v)
	a := s.use(v.Operands[0])
	b := s.use(v.Operands[1])
	s.real(RealOp{Opcode: ops[v.Bin]}, "", r, a, b)
}

func (s *selector) genCmp(v *ir.Value) {
	a := s.use(v.Operands[0])
	b := s.use(v.Operands[1])
	r := s.def(v)
	switch v.Pred {
	case ir.CmpEq:
		s.real(RealOp{Opcode: EQ}, "", r, a, b)
	case ir.CmpNe:
		s.real(RealOp{Opcode: EQ}, "", r, a, b)
		s.real(RealOp{Opcode: XORI, Imm: 1}, "", r, r)
	case ir.CmpLt:
		s.real(RealOp{Opcode: LT}, "", r, a, b)
	case ir.CmpGt:
		s.real(RealOp{Opcode: GT}, "", r, a, b)
	case ir.CmpLe:
		s.real(RealOp{Opcode: GT}, "", r, a, b)
		s.real(RealOp{Opcode: XORI, Imm: 1}, "", r, r)
	case ir.CmpGe:
		s.real(RealOp{Opcode: LT}, "", r, a, b)
		s.real(RealOp{Opcode: XORI, Imm: 1}, "", r, r)
	}
}

func (s *selector) genUnary(v *ir.Value) {
	r := s.def(v)
	a := s.use(v.Operands[0])
	switch v.Un {
	case ir.UnNot:
		s.real(RealOp{Opcode: XORI, Imm: 1}, "", r, a)
	case ir.UnBitNot:
		s.real(RealOp{Opcode: NOT}, "", r, a)
	case ir.UnNeg:
		s.real(RealOp{Opcode: SUB, RegB: RegZero}, "", r, NoVReg, a)
	}
}

func (s *selector) genRet(v *ir.Value) {
	var result VReg
	if len(v.Operands) > 0 {
		result = s.use(v.Operands[0])
	} else {
		result = s.newVReg()
		s.real(RealOp{Opcode: MOVE, RegB: RegZero}, "", result)
	}
	s.real(RealOp{Opcode: MOVE, RegA: RegReturnValue}, "return value", NoVReg, result)
	if s.frameSize > 0 {
		s.real(RealOp{Opcode: CFSI, Imm: s.frameSize}, "release locals")
	}
	if s.fn == s.entry {
		s.real(RealOp{Opcode: RET, RegA: RegReturnValue}, "")
	} else {
		s.real(RealOp{Opcode: JMP}, "return", s.raSave)
	}
}

func (s *selector) genExtract(v *ir.Value) {
	agg := s.use(v.Operands[0])
	off := s.elemOffset(v.Operands[0].Type, v.Indices)
	r := s.def(v)
	if ir.IsReferenceType(s.ctx, v.Type) {
		s.real(RealOp{Opcode: ADDI, Imm: off}, "", r, agg)
	} else {
		addr := s.newVReg()
		s.real(RealOp{Opcode: ADDI, Imm: off}, "", addr, agg)
		s.real(RealOp{Opcode: LW, Imm: 0}, "", r, addr)
	}
}

func (s *selector) genInsert(v *ir.Value) {
	agg := s.use(v.Operands[0])
	val := s.use(v.Operands[1])
	off := s.elemOffset(v.Operands[0].Type, v.Indices)
	addr := s.newVReg()
	s.real(RealOp{Opcode: ADDI, Imm: off}, "", addr, agg)
	elem := v.Operands[1].Type
	if ir.IsReferenceType(s.ctx, elem) {
		s.genMemCopy(addr, val, ir.SizeOf(s.ctx, elem))
	} else {
		s.real(RealOp{Opcode: SW, Imm: 0}, "", addr, val)
	}
	s.vregOf[v] = agg
}

func (s *selector) genCall(v *ir.Value) {
	if len(v.Operands) > len(ArgRegisters) {
		s.diags.Errorf(diag.KindBackend, v.Span, "call passes more arguments than the call convention carries")
		return
	}
	saveLabel := s.newLabel()
	retLabel := s.newLabel()

	s.ctrl(CtrlOp{Kind: CtrlPushAll, Label: saveLabel}, "")
	for i, a := range v.Operands {
		s.real(RealOp{Opcode: MOVE, RegA: ArgRegisters[i]}, "arg "+strconv.Itoa(i), NoVReg, s.use(a))
	}
	s.ctrl(CtrlOp{Kind: CtrlMoveAddress, RegA: RegReturnAddr, Label: retLabel}, "")
	s.ctrl(CtrlOp{Kind: CtrlJump, Label: s.fnLabel[v.Callee]}, "call "+v.Callee.Name)
	s.ctrl(CtrlOp{Kind: CtrlLabel, Label: retLabel}, "")
	s.ctrl(CtrlOp{Kind: CtrlPopAll, Label: saveLabel}, "")

	r := s.def(v)
	s.real(RealOp{Opcode: MOVE, RegB: RegReturnValue}, "call result", r)
}

// genAsmBlock binds declared registers to fresh virtuals and translates
// the raw op lines through the opcode name table. Operand tokens resolve
// to bound registers first, then to constant-register names, then parse as
// immediates.
func (s *selector) genAsmBlock(v *ir.Value) {
	bound := map[string]VReg{}
	for _, reg := range v.AsmRegs {
		r := s.newVReg()
		bound[reg.Name] = r
		if reg.Init >= 0 {
			s.real(RealOp{Opcode: MOVE}, "asm init "+reg.Name, r, s.use(v.Operands[reg.Init]))
		}
	}
	for _, line := range v.AsmOps {
		opcode, ok := opcodeByName[strings.ToLower(line.Mnemonic)]
		if !ok {
			s.diags.Errorf(diag.KindBackend, v.Span, "unknown asm mnemonic %q", line.Mnemonic)
			continue
		}
		real := RealOp{Opcode: opcode}
		vregs := []VReg{NoVReg, NoVReg, NoVReg}
		slot := 0
		for _, tok := range line.Operands {
			if r, isBound := bound[tok]; isBound && slot < 3 {
				vregs[slot] = r
				slot++
				continue
			}
			if hard, isConst := constRegByName(tok); isConst && slot < 3 {
				switch slot {
				case 0:
					real.RegA = hard
				case 1:
					real.RegB = hard
				case 2:
					real.RegC = hard
				}
				slot++
				continue
			}
			if imm, err := strconv.ParseUint(tok, 0, 64); err == nil {
				real.Imm = imm
				continue
			}
			s.diags.Errorf(diag.KindBackend, v.Span, "unresolvable asm operand %q", tok)
		}
		s.real(real, "", vregs[0], vregs[1], vregs[2])
	}
	if v.AsmReturn != "" {
		s.vregOf[v] = bound[v.AsmReturn]
	} else {
		r := s.def(v)
		s.real(RealOp{Opcode: MOVE, RegB: RegZero}, "", r)
	}
}

func constRegByName(name string) (Register, bool) {
	for r := Register(0); r < FirstAllocatable; r++ {
		if r.String() == name {
			return r, true
		}
	}
	return 0, false
}

func (s *selector) moveBlockArgs(target *ir.Block, args []*ir.Value) {
	for i, a := range args {
		if i >= len(target.Args) {
			break
		}
		s.real(RealOp{Opcode: MOVE}, "block arg", s.vregOf[target.Args[i]], s.use(a))
	}
}

// keyAddress materializes a 256-bit storage key as a data-section entry
// and loads its address.
func (s *selector) keyAddress(key [32]byte) VReg {
	id := s.ds.Insert(NewB256Entry(key))
	r := s.newVReg()
	s.real(RealOp{Opcode: LW, Data: id, HasData: true}, "storage key", r)
	return r
}

// elemOffset computes the byte offset of a projection chain through an
// aggregate type.
func (s *selector) elemOffset(aggregate types.TypeHandle, indices []int) uint64 {
	var off uint64
	// The aggregate operand is a pointer; step inside it first.
	ty := aggregate
	if d := s.ctx.GetType(ty); d.Tag == types.TagPtr {
		ty = d.Elem
	}
	for _, idx := range indices {
		d := s.ctx.GetType(ty)
		switch d.Tag {
		case types.TagTuple:
			for i := 0; i < idx && i < len(d.Elems); i++ {
				off += ir.SizeOf(s.ctx, d.Elems[i])
			}
			if idx < len(d.Elems) {
				ty = d.Elems[idx]
			}
		case types.TagStruct:
			decl := s.ctx.GetDecl(d.Decl)
			for i := 0; i < idx && i < len(decl.Struct.Fields); i++ {
				off += ir.SizeOf(s.ctx, decl.Struct.Fields[i].Type)
			}
			if idx < len(decl.Struct.Fields) {
				ty = decl.Struct.Fields[idx].Type
			}
		case types.TagEnum:
			if idx == 1 {
				off += 8 // past the tag word
			}
			ty = s.ctx.UInt(64)
		case types.TagArray:
			off += uint64(idx) * ir.SizeOf(s.ctx, d.Elem)
			ty = d.Elem
		}
	}
	return off
}

// pointeeSize resolves the byte size behind a pointer-typed value.
func (s *selector) pointeeSize(ptr *ir.Value) uint64 {
	d := s.ctx.GetType(ptr.Type)
	if d.Tag == types.TagPtr {
		return ir.SizeOf(s.ctx, d.Elem)
	}
	return 8
}

func roundUpToWord(n uint64) uint64 {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}
