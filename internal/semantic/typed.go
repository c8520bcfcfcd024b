package semantic

import (
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

// TypedModule is the analyzer's output: every declaration resolved to
// arena handles and every function body rewritten as a TypedExpr tree with
// a concrete type on every node. This is the program handed to the IR
// builder; it never carries ast nodes, only spans pointing back at them.
type TypedModule struct {
	Kind      ast.ProgramKind
	Name      string
	Namespace *namespace.Module

	Functions []*TypedFunction
	Consts    []*TypedConst
	Storage   []types.DeclHandle
	Abis      []types.DeclHandle
}

// TypedFunction is one fully-checked function body. Monomorphized
// instances appear here alongside the functions written by the programmer;
// un-monomorphized generics do not (their bodies are checked once against
// their generic signature but lowered per instance).
type TypedFunction struct {
	Decl   types.DeclHandle
	Name   string
	Params []TypedParam
	Return types.TypeHandle
	Body   *TypedExpr
	Purity ast.Purity
	Span   span.ID
}

type TypedParam struct {
	Name string
	Type types.TypeHandle
}

// TypedConst is one checked constant initializer.
type TypedConst struct {
	Decl  types.DeclHandle
	Name  string
	Type  types.TypeHandle
	Value *TypedExpr
}

// ExprKind discriminates TypedExpr variants.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprVariable
	ExprCall
	ExprStructLit
	ExprEnumLit
	ExprTuple
	ExprArray
	ExprIndex
	ExprFieldAccess
	ExprTupleIndex
	ExprBinary
	ExprUnary
	ExprBlock
	ExprIf
	ExprMatch
	ExprWhile
	ExprReassign
	ExprAsm
	ExprIntrinsic
	ExprStorageRead
	ExprStorageWrite
	ExprRecovery
)

// LiteralValue is a checked literal with a concrete width.
type LiteralValue struct {
	Kind ast.LiteralKind
	Bool bool
	Int  uint64
	B256 [32]byte
	Str  string
}

// TypedMatchArm is one checked arm: the restricted-form pattern plus its
// checked body.
type TypedMatchArm struct {
	Pattern  *MatchPattern
	Body     *TypedExpr
	Bindings []TypedParam // variables the pattern introduces for the body
	Span     span.ID
}

// TypedStatement is a checked let-binding or expression statement inside a
// block.
type TypedStatement struct {
	// Let fields; Name empty means this is a bare expression statement.
	Name    string
	Mutable bool
	Type    types.TypeHandle
	Init    *TypedExpr
	Span    span.ID
}

// TypedAsmRegister is one declared asm-block register and its optional
// checked initializer.
type TypedAsmRegister struct {
	Name string
	Init *TypedExpr // nil for an uninitialized register
}

// TypedExpr is the typed expression tree. Exactly the fields relevant to
// Kind are populated; Type is always populated (ErrorRecovery on checked
// failures so downstream stages keep running, per the propagation policy).
type TypedExpr struct {
	Kind ExprKind
	Type types.TypeHandle
	Span span.ID

	Literal LiteralValue

	// ExprVariable: resolved local name, or declaration for a const.
	VarName   string
	ConstDecl types.DeclHandle

	// ExprCall: resolved (possibly monomorphized) callee plus arguments.
	// Args doubles as the operand list of intrinsics, struct-literal field
	// values (in declared field order), tuple/array elements, reassignment
	// (LHS, RHS), and index (base, index).
	Callee types.DeclHandle
	Args   []*TypedExpr

	// ExprStructLit / ExprEnumLit.
	FieldNames []string
	Variant    int // enum variant index

	// ExprFieldAccess / ExprTupleIndex: Args[0] is the receiver.
	Field      string
	FieldIndex int

	// ExprBinary / ExprUnary over Args.
	BinOp ast.BinaryOp
	UnOp  ast.UnaryOp

	// ExprBlock.
	Stmts []TypedStatement
	Tail  *TypedExpr

	// ExprIf / ExprWhile: Args[0] cond; Then is the body for a while.
	Then *TypedExpr
	Else *TypedExpr // nil if no else

	// ExprMatch: Args[0] is the scrutinee.
	Arms []TypedMatchArm

	// ExprAsm.
	AsmRegs   []TypedAsmRegister
	AsmOps    []ast.AsmOp
	AsmReturn string

	// ExprIntrinsic.
	Intrinsic string
	TypeArgs  []types.TypeHandle

	// ExprStorageRead / ExprStorageWrite.
	StorageField types.DeclHandle
}

func recovery(ctx *types.Context, sp span.ID) *TypedExpr {
	return &TypedExpr{Kind: ExprRecovery, Type: ctx.ErrorRecovery(), Span: sp}
}
