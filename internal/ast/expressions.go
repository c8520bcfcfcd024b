package ast

import "github.com/vmlang/corec/internal/span"

// Expression is any node that produces a value, tagged by the
// expressionNode marker method.
type Expression interface {
	Node
	expressionNode()
}

// LiteralKind distinguishes the literal forms the language supports.
type LiteralKind int

const (
	LitUnit LiteralKind = iota
	LitBool
	LitInt // arbitrary-width; the concrete uN width is inferred, not parsed
	LitB256
	LitString
)

type LiteralExpr struct {
	Kind   LiteralKind
	Bool   bool
	Int    string // decimal/hex text, parsed during lowering to avoid overflow surprises
	B256   [32]byte
	Str    string
	Suffix string // optional explicit width suffix, e.g. "u64" in `1u64`
	Sp     span.ID
}

func (n *LiteralExpr) expressionNode() {}
func (n *LiteralExpr) Span() span.ID   { return n.Sp }
func (n *LiteralExpr) String() string  { return "literal" }

// VarExpr is a bare identifier or path reference used as a value.
type VarExpr struct {
	Path []string
	Sp   span.ID
}

func (n *VarExpr) expressionNode() {}
func (n *VarExpr) Span() span.ID   { return n.Sp }
func (n *VarExpr) String() string  { return joinPath(n.Path) }

// CallExpr is a call; TurboFish holds its explicit type arguments:
// `f::<u64>(x)`.
type CallExpr struct {
	Callee    Expression
	TurboFish []TypeExpr
	Args      []Expression
	Sp        span.ID
}

func (n *CallExpr) expressionNode() {}
func (n *CallExpr) Span() span.ID   { return n.Sp }
func (n *CallExpr) String() string  { return "call" }

// MethodCallExpr is `receiver.method::<Args>(args)`.
type MethodCallExpr struct {
	Receiver  Expression
	Method    string
	TurboFish []TypeExpr
	Args      []Expression
	Sp        span.ID
}

func (n *MethodCallExpr) expressionNode() {}
func (n *MethodCallExpr) Span() span.ID   { return n.Sp }
func (n *MethodCallExpr) String() string  { return "." + n.Method + "(...)" }

// FieldExpr is `receiver.field`.
type FieldExpr struct {
	Receiver Expression
	Field    string
	Sp       span.ID
}

func (n *FieldExpr) expressionNode() {}
func (n *FieldExpr) Span() span.ID   { return n.Sp }
func (n *FieldExpr) String() string  { return "." + n.Field }

// TupleIndexExpr is `receiver.0`.
type TupleIndexExpr struct {
	Receiver Expression
	Index    int
	Sp       span.ID
}

func (n *TupleIndexExpr) expressionNode() {}
func (n *TupleIndexExpr) Span() span.ID   { return n.Sp }
func (n *TupleIndexExpr) String() string  { return "tuple index" }

// StructFieldInit is one `name: expr` entry in a struct expression.
type StructFieldInit struct {
	Name  string
	Value Expression
	Sp    span.ID
}

// StructExpr is `Struct { f: e, ... }`.
type StructExpr struct {
	TypeName string
	TypeArgs []TypeExpr
	Fields   []StructFieldInit
	Sp       span.ID
}

func (n *StructExpr) expressionNode() {}
func (n *StructExpr) Span() span.ID   { return n.Sp }
func (n *StructExpr) String() string  { return n.TypeName + "{...}" }

// EnumExpr is `Enum::Variant(payload?)`.
type EnumExpr struct {
	TypeName string
	TypeArgs []TypeExpr
	Variant  string
	Payload  Expression // nil for a unit variant
	Sp       span.ID
}

func (n *EnumExpr) expressionNode() {}
func (n *EnumExpr) Span() span.ID   { return n.Sp }
func (n *EnumExpr) String() string  { return n.TypeName + "::" + n.Variant }

// TupleExpr is `(e1, ..., en)`.
type TupleExpr struct {
	Elems []Expression
	Sp    span.ID
}

func (n *TupleExpr) expressionNode() {}
func (n *TupleExpr) Span() span.ID   { return n.Sp }
func (n *TupleExpr) String() string  { return "(tuple)" }

// ArrayExpr is `[e1, ..., en]`.
type ArrayExpr struct {
	Elems []Expression
	Sp    span.ID
}

func (n *ArrayExpr) expressionNode() {}
func (n *ArrayExpr) Span() span.ID   { return n.Sp }
func (n *ArrayExpr) String() string  { return "[array]" }

// IndexExpr is `base[index]`.
type IndexExpr struct {
	Base  Expression
	Index Expression
	Sp    span.ID
}

func (n *IndexExpr) expressionNode() {}
func (n *IndexExpr) Span() span.ID   { return n.Sp }
func (n *IndexExpr) String() string  { return "index" }

type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
)

type BinaryExpr struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
	Sp    span.ID
}

func (n *BinaryExpr) expressionNode() {}
func (n *BinaryExpr) Span() span.ID   { return n.Sp }
func (n *BinaryExpr) String() string  { return "binary" }

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
	OpBitNot
	OpRef   // `&e`
	OpDeref // `*e`
)

type UnaryExpr struct {
	Op   UnaryOp
	Expr Expression
	Sp   span.ID
}

func (n *UnaryExpr) expressionNode() {}
func (n *UnaryExpr) Span() span.ID   { return n.Sp }
func (n *UnaryExpr) String() string  { return "unary" }

// BlockExpr is `{ stmts...; tail? }`; its type is the tail expression's
// type, or unit if there is no tail.
type BlockExpr struct {
	Block *Block
	Sp    span.ID
}

func (n *BlockExpr) expressionNode() {}
func (n *BlockExpr) Span() span.ID   { return n.Sp }
func (n *BlockExpr) String() string  { return "block" }

// IfExpr is `if cond { then } else { else }`; Else may itself be an
// IfExpr (else-if chain) or a BlockExpr, or nil for a statement-position if
// with no else (in which case it must type to unit).
type IfExpr struct {
	Cond Expression
	Then *Block
	Else Expression
	Sp   span.ID
}

func (n *IfExpr) expressionNode() {}
func (n *IfExpr) Span() span.ID   { return n.Sp }
func (n *IfExpr) String() string  { return "if" }

// WhileExpr is `while cond { body }`; it always types to unit.
type WhileExpr struct {
	Cond Expression
	Body *Block
	Sp   span.ID
}

func (n *WhileExpr) expressionNode() {}
func (n *WhileExpr) Span() span.ID   { return n.Sp }
func (n *WhileExpr) String() string  { return "while" }

// MatchArm is one `pattern => expr` arm of a match expression.
type MatchArm struct {
	Pattern Pattern
	Guard   Expression // nil if no `if` guard
	Body    Expression
	Sp      span.ID
}

type MatchExpr struct {
	Scrutinee Expression
	Arms      []MatchArm
	Sp        span.ID
}

func (n *MatchExpr) expressionNode() {}
func (n *MatchExpr) Span() span.ID   { return n.Sp }
func (n *MatchExpr) String() string  { return "match" }

// LambdaExpr is `|params| -> ret { body }` / `|params| expr`.
type LambdaExpr struct {
	Params     []Param
	ReturnType TypeExpr
	Body       Expression
	Sp         span.ID
}

func (n *LambdaExpr) expressionNode() {}
func (n *LambdaExpr) Span() span.ID   { return n.Sp }
func (n *LambdaExpr) String() string  { return "lambda" }

// AsmRegister is one `let r1 = v;` / `let r2;` binding inside an asm block.
type AsmRegister struct {
	Name string
	Init Expression // nil for an uninitialized register
	Sp   span.ID
}

// AsmOp is one raw instruction line inside an `asm` block, e.g. `add r1 r2 r3;`.
type AsmOp struct {
	Mnemonic string
	Operands []string
	Sp       span.ID
}

// AsmExpr is an inline-assembly block: `asm(r1: x, r2, ...) { add r1 r2 r1; r1 }`.
type AsmExpr struct {
	Registers []AsmRegister
	Ops       []AsmOp
	ReturnReg string // empty if the block returns unit
	ReturnTy  TypeExpr
	Sp        span.ID
}

func (n *AsmExpr) expressionNode() {}
func (n *AsmExpr) Span() span.ID   { return n.Sp }
func (n *AsmExpr) String() string  { return "asm" }

// IntrinsicExpr is a call to a fixed-table compiler intrinsic such as
// `__size_of::<T>()` or `__is_reference_type::<T>()`.
type IntrinsicExpr struct {
	Name      string
	TypeArgs  []TypeExpr
	Args      []Expression
	Sp        span.ID
}

func (n *IntrinsicExpr) expressionNode() {}
func (n *IntrinsicExpr) Span() span.ID   { return n.Sp }
func (n *IntrinsicExpr) String() string  { return n.Name }

// ReassignExpr is `lhs = rhs` (and compound forms, already desugared by the
// parser into plain assignment by this point).
type ReassignExpr struct {
	LHS Expression
	RHS Expression
	Sp  span.ID
}

func (n *ReassignExpr) expressionNode() {}
func (n *ReassignExpr) Span() span.ID   { return n.Sp }
func (n *ReassignExpr) String() string  { return "assign" }
