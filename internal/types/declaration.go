package types

import "github.com/vmlang/corec/internal/span"

// DeclKind discriminates the variant-specific content a Declaration holds.
type DeclKind int

const (
	DeclFunction DeclKind = iota
	DeclStruct
	DeclEnum
	DeclTrait
	DeclImpl
	DeclConst
	DeclStorageField
	DeclAbi
)

// Visibility mirrors ast.Visibility without importing the ast package,
// keeping types free of a dependency on the untyped tree.
type Visibility int

const (
	VisPrivate Visibility = iota
	VisPublic
)

// TypeParamDecl is one generic parameter with its trait bounds, already
// resolved to constraint records rather than raw ast.TraitConstraint.
type TypeParamDecl struct {
	Name        string
	Constraints []TraitConstraint
}

// FieldDecl is one struct field or enum-variant payload slot after type
// resolution.
type FieldDecl struct {
	Name string
	Type TypeHandle
}

// VariantDecl is one enum variant; Payload is invalid (TypeHandle(-1)) for
// a unit variant.
type VariantDecl struct {
	Name    string
	Payload TypeHandle
}

// FunctionDecl holds the variant-specific content of a function
// declaration. Body is an opaque slot for an ir.FuncHandle; it is set to -1
// when the declaration is created, and no pass in this module assigns it.
type FunctionDecl struct {
	Params     []FieldDecl
	ReturnType TypeHandle
	Purity     int // mirrors ast.Purity; kept as int to avoid an ast import
	Body       int // opaque ir.FuncHandle slot; always -1
	// Parent is the generic origin this instance was monomorphized from,
	// or invalidHandle if this is not a monomorphized instance.
	Parent DeclHandle
}

type StructDecl struct {
	TypeParams []TypeParamDecl
	Fields     []FieldDecl
}

type EnumDecl struct {
	TypeParams []TypeParamDecl
	Variants   []VariantDecl
}

type TraitMethodSig struct {
	Name       string
	Params     []FieldDecl
	ReturnType TypeHandle
	HasDefault bool
}

type TraitDecl struct {
	TypeParams []TypeParamDecl
	SuperTraits []TraitConstraint
	Methods    []TraitMethodSig
}

// ImplDecl records one `impl Trait for Type` or `impl Type` block. TraitRef
// is invalidHandle for an inherent ("impl self") block.
type ImplDecl struct {
	ImplementingTy TypeHandle
	TraitRef       DeclHandle
	TraitArgs      []TypeHandle
	Methods        []DeclHandle
	IsImplSelf     bool
}

type ConstDecl struct {
	Type TypeHandle
}

// StorageFieldDecl records a persistent storage slot; Key is the resolved
// 256-bit key, either user-supplied (`in <expr>`) or the SHA-256 of the
// canonical field path, filled in during "resolve types".
type StorageFieldDecl struct {
	Type TypeHandle
	Key  [32]byte
}

type AbiMethodDecl struct {
	Name       string
	Params     []FieldDecl
	ReturnType TypeHandle
	Purity     int
}

type AbiDecl struct {
	Methods []AbiMethodDecl
}

// Declaration is one entry in the declaration arena. Exactly one of the
// Function/Struct/Enum/Trait/Impl/Const/StorageField/Abi fields is
// meaningful, selected by Kind.
type Declaration struct {
	Kind       DeclKind
	Name       string
	Span       span.ID
	Vis        Visibility
	TypeParams []TypeParamDecl

	Function     *FunctionDecl
	Struct       *StructDecl
	Enum         *EnumDecl
	Trait        *TraitDecl
	Impl         *ImplDecl
	Const        *ConstDecl
	StorageField *StorageFieldDecl
	Abi          *AbiDecl
}

// DeclareFunction inserts a function declaration with an unresolved body
// and returns its handle, for the "collect" pass.
func (c *Context) DeclareFunction(name string, sp span.ID, vis Visibility, typeParams []TypeParamDecl) DeclHandle {
	return c.declare(Declaration{
		Kind: DeclFunction, Name: name, Span: sp, Vis: vis, TypeParams: typeParams,
		Function: &FunctionDecl{ReturnType: TypeHandle(invalidHandle), Body: invalidHandle, Parent: DeclHandle(invalidHandle)},
	})
}

func (c *Context) DeclareStruct(name string, sp span.ID, vis Visibility, typeParams []TypeParamDecl) DeclHandle {
	return c.declare(Declaration{Kind: DeclStruct, Name: name, Span: sp, Vis: vis, TypeParams: typeParams, Struct: &StructDecl{}})
}

func (c *Context) DeclareEnum(name string, sp span.ID, vis Visibility, typeParams []TypeParamDecl) DeclHandle {
	return c.declare(Declaration{Kind: DeclEnum, Name: name, Span: sp, Vis: vis, TypeParams: typeParams, Enum: &EnumDecl{}})
}

func (c *Context) DeclareTrait(name string, sp span.ID, vis Visibility, typeParams []TypeParamDecl) DeclHandle {
	return c.declare(Declaration{Kind: DeclTrait, Name: name, Span: sp, Vis: vis, TypeParams: typeParams, Trait: &TraitDecl{}})
}

func (c *Context) DeclareImpl(sp span.ID, impl *ImplDecl) DeclHandle {
	return c.declare(Declaration{Kind: DeclImpl, Span: sp, Impl: impl})
}

func (c *Context) DeclareConst(name string, sp span.ID, vis Visibility) DeclHandle {
	return c.declare(Declaration{Kind: DeclConst, Name: name, Span: sp, Vis: vis, Const: &ConstDecl{Type: TypeHandle(invalidHandle)}})
}

func (c *Context) DeclareStorageField(name string, sp span.ID) DeclHandle {
	return c.declare(Declaration{Kind: DeclStorageField, Name: name, Span: sp, StorageField: &StorageFieldDecl{Type: TypeHandle(invalidHandle)}})
}

func (c *Context) DeclareAbi(name string, sp span.ID, vis Visibility) DeclHandle {
	return c.declare(Declaration{Kind: DeclAbi, Name: name, Span: sp, Vis: vis, Abi: &AbiDecl{}})
}

func (c *Context) declare(d Declaration) DeclHandle {
	c.decls = append(c.decls, d)
	return DeclHandle(len(c.decls) - 1)
}

// GetDecl resolves a handle to its declaration record.
func (c *Context) GetDecl(h DeclHandle) *Declaration {
	return &c.decls[int(h)]
}
