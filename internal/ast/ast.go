// Package ast defines the untyped abstract syntax tree that this module
// consumes from the external parser. Nothing in this package resolves
// names or types; it is deliberately inert data plus a visitor covering
// the source language's program kinds, declarations, and pattern forms.
package ast

import "github.com/vmlang/corec/internal/span"

// ProgramKind is one of the four program kinds the language supports.
type ProgramKind int

const (
	KindContract ProgramKind = iota
	KindScript
	KindPredicate
	KindLibrary
)

func (k ProgramKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindScript:
		return "script"
	case KindPredicate:
		return "predicate"
	case KindLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// Node is the base interface every AST node implements: a source span and
// a debug string. There is deliberately no token accessor here since this
// tree is handed to us already built by an external parser — we never hold
// onto raw tokens.
type Node interface {
	Span() span.ID
	String() string
}

// Module is the root of one parsed source unit.
type Module struct {
	Kind  ProgramKind
	Name  string
	Items []Item
	Sp    span.ID
}

func (m *Module) Span() span.ID { return m.Sp }
func (m *Module) String() string {
	return "module " + m.Name
}

// Item is a top-level declaration. Concrete item kinds implement this
// marker interface; a visitor exposes one method per kind (visitor.go),
// following the dynamic-dispatch-on-node-kind design note.
type Item interface {
	Node
	itemNode()
}

// DocComment optionally attaches to struct, enum, fn, trait, const and abi
// items and to struct fields.
type DocComment struct {
	Text string
}

// ---- Items ----

type UseItem struct {
	Path     []string
	Wildcard bool // trailing `::*`
	Alias    string
	Absolute bool
	Sp       span.ID
}

func (n *UseItem) itemNode()       {}
func (n *UseItem) Span() span.ID   { return n.Sp }
func (n *UseItem) String() string  { return "use " + joinPath(n.Path) }

type Visibility int

const (
	VisPrivate Visibility = iota
	VisPublic
)

type TypeParam struct {
	Name        string
	Constraints []TraitConstraint
	Sp          span.ID
}

// TraitConstraint is `T: TraitName<Args>`.
type TraitConstraint struct {
	TraitName string
	Args      []TypeExpr
	Sp        span.ID
}

type Field struct {
	Name string
	Type TypeExpr
	Doc  *DocComment
	Sp   span.ID
}

type StructItem struct {
	Name       string
	Vis        Visibility
	TypeParams []TypeParam
	Fields     []Field
	Doc        *DocComment
	Sp         span.ID
}

func (n *StructItem) itemNode()      {}
func (n *StructItem) Span() span.ID  { return n.Sp }
func (n *StructItem) String() string { return "struct " + n.Name }

type EnumVariant struct {
	Name    string
	Payload TypeExpr // nil for a unit variant
	Sp      span.ID
}

type EnumItem struct {
	Name       string
	Vis        Visibility
	TypeParams []TypeParam
	Variants   []EnumVariant
	Doc        *DocComment
	Sp         span.ID
}

func (n *EnumItem) itemNode()      {}
func (n *EnumItem) Span() span.ID  { return n.Sp }
func (n *EnumItem) String() string { return "enum " + n.Name }

// Purity is the declared storage-access attribute of a function, e.g.
// `#[storage(read, write)]`.
type Purity int

const (
	PurityPure Purity = iota
	PurityRead
	PurityWrite
	PurityReadWrite
)

type Param struct {
	Name     string
	Type     TypeExpr
	IsSelf   bool
	Sp       span.ID
}

type FnItem struct {
	Name       string
	Vis        Visibility
	TypeParams []TypeParam
	Params     []Param
	ReturnType TypeExpr // nil means unit
	Body       *Block   // nil for trait method signatures without a default body
	Purity     Purity
	Doc        *DocComment
	Sp         span.ID
}

func (n *FnItem) itemNode()      {}
func (n *FnItem) Span() span.ID  { return n.Sp }
func (n *FnItem) String() string { return "fn " + n.Name }

type TraitItem struct {
	Name        string
	Vis         Visibility
	TypeParams  []TypeParam
	SuperTraits []TraitConstraint
	Methods     []*FnItem
	Doc         *DocComment
	Sp          span.ID
}

func (n *TraitItem) itemNode()      {}
func (n *TraitItem) Span() span.ID  { return n.Sp }
func (n *TraitItem) String() string { return "trait " + n.Name }

// ImplTraitItem is `impl Trait<Args> for Type { ... }`.
type ImplTraitItem struct {
	TraitName      string
	TraitArgs      []TypeExpr
	ImplementingTy TypeExpr
	TypeParams     []TypeParam
	Methods        []*FnItem
	Sp             span.ID
}

func (n *ImplTraitItem) itemNode()      {}
func (n *ImplTraitItem) Span() span.ID  { return n.Sp }
func (n *ImplTraitItem) String() string { return "impl trait for " + n.ImplementingTy.String() }

// ImplSelfItem is an inherent impl block: `impl Type { ... }`.
type ImplSelfItem struct {
	ImplementingTy TypeExpr
	TypeParams     []TypeParam
	Methods        []*FnItem
	Sp             span.ID
}

func (n *ImplSelfItem) itemNode()      {}
func (n *ImplSelfItem) Span() span.ID  { return n.Sp }
func (n *ImplSelfItem) String() string { return "impl " + n.ImplementingTy.String() }

type ConstItem struct {
	Name  string
	Vis   Visibility
	Type  TypeExpr // nil lets the initializer's type drive inference
	Value Expression
	Doc   *DocComment
	Sp    span.ID
}

func (n *ConstItem) itemNode()      {}
func (n *ConstItem) Span() span.ID  { return n.Sp }
func (n *ConstItem) String() string { return "const " + n.Name }

// StorageField is one `storage { name: T = init, ... }` entry. InKey, when
// non-nil, is the user-supplied `in <expr>` override of the storage key;
// otherwise the compiler derives it from the field path.
type StorageField struct {
	Name    string
	Type    TypeExpr
	Init    Expression
	InKey   Expression
	Sp      span.ID
}

type StorageItem struct {
	Fields []StorageField
	Sp     span.ID
}

func (n *StorageItem) itemNode()      {}
func (n *StorageItem) Span() span.ID  { return n.Sp }
func (n *StorageItem) String() string { return "storage" }

type AbiMethod struct {
	Name       string
	Params     []Param
	ReturnType TypeExpr
	Purity     Purity
	Sp         span.ID
}

type AbiItem struct {
	Name    string
	Methods []AbiMethod
	Doc     *DocComment
	Sp      span.ID
}

func (n *AbiItem) itemNode()      {}
func (n *AbiItem) Span() span.ID  { return n.Sp }
func (n *AbiItem) String() string { return "abi " + n.Name }

type TypeAliasItem struct {
	Name       string
	Vis        Visibility
	TypeParams []TypeParam
	Target     TypeExpr
	Sp         span.ID
}

func (n *TypeAliasItem) itemNode()      {}
func (n *TypeAliasItem) Span() span.ID  { return n.Sp }
func (n *TypeAliasItem) String() string { return "type " + n.Name }

func joinPath(p []string) string {
	out := ""
	for i, s := range p {
		if i > 0 {
			out += "::"
		}
		out += s
	}
	return out
}
