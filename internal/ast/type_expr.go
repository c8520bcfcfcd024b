package ast

import "github.com/vmlang/corec/internal/span"

// TypeExpr is the untyped syntax for a type annotation, as written by the
// programmer — a path, a pointer/slice/array wrapper, a tuple, or a
// primitive keyword. It is resolved to a types.TypeHandle by the semantic
// analyzer; it never carries a resolved handle itself.
type TypeExpr interface {
	Node
	typeExprNode()
}

// NamedTypeExpr is a path to a named type, optionally with type arguments:
// `Foo`, `Option<u64>`, `std::vec::Vec<T>`.
type NamedTypeExpr struct {
	Path []string
	Args []TypeExpr
	Sp   span.ID
}

func (n *NamedTypeExpr) typeExprNode()  {}
func (n *NamedTypeExpr) Span() span.ID  { return n.Sp }
func (n *NamedTypeExpr) String() string { return joinPath(n.Path) }

// PrimitiveTypeExpr covers unit, bool, uN, b256, raw_ptr, str.
type PrimitiveKeyword int

const (
	PrimUnit PrimitiveKeyword = iota
	PrimBool
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU256
	PrimB256
	PrimRawPtr
	PrimRawSlice
	PrimStr
)

type PrimitiveTypeExpr struct {
	Keyword PrimitiveKeyword
	Sp      span.ID
}

func (n *PrimitiveTypeExpr) typeExprNode() {}
func (n *PrimitiveTypeExpr) Span() span.ID { return n.Sp }
func (n *PrimitiveTypeExpr) String() string {
	names := [...]string{"()", "bool", "u8", "u16", "u32", "u64", "u256", "b256", "raw_ptr", "raw_slice", "str"}
	if int(n.Keyword) < len(names) {
		return names[n.Keyword]
	}
	return "?"
}

// PtrTypeExpr is `__ptr[T]` / `*T` (typed pointer to T).
type PtrTypeExpr struct {
	Elem TypeExpr
	Sp   span.ID
}

func (n *PtrTypeExpr) typeExprNode()  {}
func (n *PtrTypeExpr) Span() span.ID  { return n.Sp }
func (n *PtrTypeExpr) String() string { return "*" + n.Elem.String() }

// SliceTypeExpr is `[T]`, a dynamic slice of T.
type SliceTypeExpr struct {
	Elem TypeExpr
	Sp   span.ID
}

func (n *SliceTypeExpr) typeExprNode()  {}
func (n *SliceTypeExpr) Span() span.ID  { return n.Sp }
func (n *SliceTypeExpr) String() string { return "[" + n.Elem.String() + "]" }

// StrArrayTypeExpr is `str[N]`, a fixed-size string of length N.
type StrArrayTypeExpr struct {
	Len int
	Sp  span.ID
}

func (n *StrArrayTypeExpr) typeExprNode()  {}
func (n *StrArrayTypeExpr) Span() span.ID  { return n.Sp }
func (n *StrArrayTypeExpr) String() string { return "str[fixed]" }

// ArrayTypeExpr is `[T; N]`, a fixed-size array of (T, N).
type ArrayTypeExpr struct {
	Elem TypeExpr
	Len  int
	Sp   span.ID
}

func (n *ArrayTypeExpr) typeExprNode()  {}
func (n *ArrayTypeExpr) Span() span.ID  { return n.Sp }
func (n *ArrayTypeExpr) String() string { return "[" + n.Elem.String() + "; N]" }

// TupleTypeExpr is `(T1, ..., Tn)`.
type TupleTypeExpr struct {
	Elems []TypeExpr
	Sp    span.ID
}

func (n *TupleTypeExpr) typeExprNode()  {}
func (n *TupleTypeExpr) Span() span.ID  { return n.Sp }
func (n *TupleTypeExpr) String() string { return "(tuple)" }

// SelfTypeExpr is the `Self` placeholder inside a trait or impl body.
type SelfTypeExpr struct {
	Sp span.ID
}

func (n *SelfTypeExpr) typeExprNode()  {}
func (n *SelfTypeExpr) Span() span.ID  { return n.Sp }
func (n *SelfTypeExpr) String() string { return "Self" }
