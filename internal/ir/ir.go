// Package ir implements the mid-level intermediate representation:
// a module owns functions, a function owns basic blocks, a block owns an
// ordered instruction list plus optional block arguments. Instructions are
// values — they can be operands of later instructions — and types reuse
// the shared type arena, so the IR never copies type structure.
package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

// OpKind discriminates instruction variants.
type OpKind int

const (
	OpArg OpKind = iota // block argument, the only non-instruction Value

	OpConst
	OpGetLocal
	OpLoad
	OpStore
	OpGetElemPtr
	OpMemCopyVal
	OpMemCopyBytes

	OpBinary
	OpCmp
	OpUnary

	OpBranch
	OpCondBranch
	OpRet
	OpRevert

	OpInsertValue
	OpExtractValue

	OpCall
	OpAsmBlock

	OpReadStorage
	OpWriteStorage
	OpLog
	OpMint
	OpBurn
	OpTransfer
	OpContractCall

	OpCastPtr
	OpIntToPtr
	OpPtrToInt
)

// BinaryKind covers arithmetic, bitwise, and logical binary_op flavors.
type BinaryKind int

const (
	BinAdd BinaryKind = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
)

// CmpPred is a cmp predicate.
type CmpPred int

const (
	CmpEq CmpPred = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// UnaryKind covers unary_op flavors.
type UnaryKind int

const (
	UnNot UnaryKind = iota
	UnBitNot
	UnNeg
)

// AsmReg is one bound register of an asm_block instruction; Init indexes
// into the instruction's operands, or is -1 for an uninitialized register.
type AsmReg struct {
	Name string
	Init int
}

// AsmOp is one raw VM instruction line inside an asm_block.
type AsmOp struct {
	Mnemonic string
	Operands []string
}

// Value is one instruction or block argument. A Value defined in block B
// must dominate every use; block arguments are the only
// way a use sees a definition that is not strictly before it.
type Value struct {
	ID   int
	Op   OpKind
	Type types.TypeHandle
	Span span.ID

	Block    *Block
	Operands []*Value

	// OpConst.
	Imm  uint64
	B256 [32]byte
	Raw  []byte // string payloads

	// OpGetLocal.
	Local int

	// OpGetElemPtr / OpInsertValue / OpExtractValue.
	Indices []int

	// OpBinary / OpCmp / OpUnary.
	Bin  BinaryKind
	Pred CmpPred
	Un   UnaryKind

	// Terminators.
	Target   *Block // OpBranch
	TrueBlk  *Block // OpCondBranch: Operands[0] is the condition
	FalseBlk *Block
	// Branch arguments feeding the target block's parameters; for a
	// cond_branch, TrueArgs feed TrueBlk and FalseArgs feed FalseBlk.
	TargetArgs []*Value
	TrueArgs   []*Value
	FalseArgs  []*Value

	// OpCall / OpContractCall.
	Callee *Function

	// OpReadStorage / OpWriteStorage.
	Key [32]byte

	// OpAsmBlock.
	AsmRegs   []AsmReg
	AsmOps    []AsmOp
	AsmReturn string
}

// IsTerminator reports whether v ends a basic block.
func (v *Value) IsTerminator() bool {
	switch v.Op {
	case OpBranch, OpCondBranch, OpRet, OpRevert:
		return true
	}
	return false
}

// HasSideEffect reports whether removing v could change observable
// behavior even if its result is unused — the predicate DCE keys on.
func (v *Value) HasSideEffect() bool {
	switch v.Op {
	case OpStore, OpMemCopyVal, OpMemCopyBytes, OpWriteStorage, OpLog,
		OpMint, OpBurn, OpTransfer, OpContractCall, OpCall, OpAsmBlock,
		OpBranch, OpCondBranch, OpRet, OpRevert:
		return true
	}
	return false
}

// Local is one stack slot of a function.
type Local struct {
	Name string
	Type types.TypeHandle
}

// Block is one basic block: arguments, an ordered instruction list ending
// in exactly one terminator, and predecessor links maintained by the
// builder and the passes that edit control flow.
type Block struct {
	Label  string
	Fn     *Function
	Args   []*Value
	Instrs []*Value
	Preds  []*Block
}

// Terminator returns the block's final instruction, or nil if the block is
// still under construction.
func (b *Block) Terminator() *Value {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// Successors lists the blocks this block's terminator can transfer to.
func (b *Block) Successors() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	switch t.Op {
	case OpBranch:
		return []*Block{t.Target}
	case OpCondBranch:
		return []*Block{t.TrueBlk, t.FalseBlk}
	}
	return nil
}

// Function is one IR function. Params double as the entry block's
// arguments; Locals are the get_local-addressable stack slots.
type Function struct {
	Name   string
	Params []*Value // OpArg values owned by the entry block
	Return types.TypeHandle
	Locals []Local
	Blocks []*Block
	Span   span.ID

	nextID    int
	nextLabel int
}

// Entry returns the function's entry block.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewBlock appends a fresh empty block with a unique label.
func (f *Function) NewBlock(hint string) *Block {
	if hint == "" {
		hint = "block"
	}
	b := &Block{Label: hint + strconv.Itoa(f.nextLabel), Fn: f}
	f.nextLabel++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewLocal reserves a stack slot and returns its index.
func (f *Function) NewLocal(name string, ty types.TypeHandle) int {
	f.Locals = append(f.Locals, Local{Name: name, Type: ty})
	return len(f.Locals) - 1
}

func (f *Function) newValue(op OpKind, ty types.TypeHandle) *Value {
	v := &Value{ID: f.nextID, Op: op, Type: ty}
	f.nextID++
	return v
}

// Module owns functions and borrows the shared type arena for lookups.
type Module struct {
	Types     *types.Context
	Functions []*Function

	// byName resolves call targets during lowering and inlining.
	byName map[string]*Function
}

func NewModule(ctx *types.Context) *Module {
	return &Module{Types: ctx, byName: make(map[string]*Function)}
}

func (m *Module) AddFunction(f *Function) {
	m.Functions = append(m.Functions, f)
	m.byName[f.Name] = f
}

func (m *Module) Function(name string) *Function {
	return m.byName[name]
}

// String renders the module as a listing, one function at a time, for
// debugging and fixture tests.
func (m *Module) String() string {
	var sb strings.Builder
	for _, f := range m.Functions {
		sb.WriteString(f.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fn %s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%%%d", p.ID)
	}
	sb.WriteString("):\n")
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Label)
		for _, ins := range b.Instrs {
			fmt.Fprintf(&sb, "  %s\n", ins.String())
		}
	}
	return sb.String()
}

func (v *Value) String() string {
	var sb strings.Builder
	if !v.IsTerminator() && v.Op != OpStore {
		fmt.Fprintf(&sb, "%%%d = ", v.ID)
	}
	sb.WriteString(v.opName())
	for _, o := range v.Operands {
		fmt.Fprintf(&sb, " %%%d", o.ID)
	}
	switch v.Op {
	case OpConst:
		fmt.Fprintf(&sb, " %d", v.Imm)
	case OpGetLocal:
		fmt.Fprintf(&sb, " $%d", v.Local)
	case OpBranch:
		fmt.Fprintf(&sb, " %s", v.Target.Label)
	case OpCondBranch:
		fmt.Fprintf(&sb, " %s %s", v.TrueBlk.Label, v.FalseBlk.Label)
	case OpGetElemPtr, OpExtractValue, OpInsertValue:
		fmt.Fprintf(&sb, " %v", v.Indices)
	}
	return sb.String()
}

func (v *Value) opName() string {
	names := map[OpKind]string{
		OpArg: "arg", OpConst: "const", OpGetLocal: "get_local", OpLoad: "load",
		OpStore: "store", OpGetElemPtr: "get_elem_ptr", OpMemCopyVal: "mem_copy_val",
		OpMemCopyBytes: "mem_copy_bytes", OpBinary: "binary_op", OpCmp: "cmp",
		OpUnary: "unary_op", OpBranch: "branch", OpCondBranch: "cond_branch",
		OpRet: "ret", OpRevert: "revert", OpInsertValue: "insert_value",
		OpExtractValue: "extract_value", OpCall: "call", OpAsmBlock: "asm_block",
		OpReadStorage: "read_storage", OpWriteStorage: "write_storage", OpLog: "log",
		OpMint: "mint", OpBurn: "burn", OpTransfer: "transfer",
		OpContractCall: "contract_call", OpCastPtr: "cast_ptr",
		OpIntToPtr: "int_to_ptr", OpPtrToInt: "ptr_to_int",
	}
	return names[v.Op]
}
