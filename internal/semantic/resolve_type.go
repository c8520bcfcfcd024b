package semantic

import (
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/types"
)

// resolveTypeExpr turns a syntactic type annotation into an arena handle,
// consulting the namespace for named types and typeParams for generic
// parameters currently in scope. nil stands for the implicit unit return
// type. Unresolvable names report a diagnostic and yield ErrorRecovery so
// checking continues.
func (ch *checker) resolveTypeExpr(cx AnalysisContext, te ast.TypeExpr, typeParams map[string]types.TypeHandle) types.TypeHandle {
	ctx := cx.Types()
	if te == nil {
		return ctx.Unit()
	}
	switch t := te.(type) {
	case *ast.PrimitiveTypeExpr:
		switch t.Keyword {
		case ast.PrimUnit:
			return ctx.Unit()
		case ast.PrimBool:
			return ctx.Bool()
		case ast.PrimU8:
			return ctx.UInt(8)
		case ast.PrimU16:
			return ctx.UInt(16)
		case ast.PrimU32:
			return ctx.UInt(32)
		case ast.PrimU64:
			return ctx.UInt(64)
		case ast.PrimU256:
			return ctx.UInt(256)
		case ast.PrimB256:
			return ctx.B256()
		case ast.PrimRawPtr:
			return ctx.RawPtr()
		case ast.PrimRawSlice:
			return ctx.RawSlice()
		case ast.PrimStr:
			return ctx.StringSlice()
		}
		return ctx.ErrorRecovery()
	case *ast.SelfTypeExpr:
		if cx.SelfType().IsValid() {
			return cx.SelfType()
		}
		ch.diags.Errorf(diag.KindType, t.Sp, "`Self` used outside of an impl or trait")
		return ctx.ErrorRecovery()
	case *ast.PtrTypeExpr:
		return ctx.Ptr(ch.resolveTypeExpr(cx, t.Elem, typeParams))
	case *ast.SliceTypeExpr:
		return ctx.Slice(ch.resolveTypeExpr(cx, t.Elem, typeParams))
	case *ast.StrArrayTypeExpr:
		return ctx.StringN(t.Len)
	case *ast.ArrayTypeExpr:
		return ctx.Array(ch.resolveTypeExpr(cx, t.Elem, typeParams), t.Len)
	case *ast.TupleTypeExpr:
		elems := make([]types.TypeHandle, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = ch.resolveTypeExpr(cx, e, typeParams)
		}
		return ctx.Tuple(elems)
	case *ast.NamedTypeExpr:
		if len(t.Path) == 1 {
			if g, ok := typeParams[t.Path[0]]; ok {
				return g
			}
		}
		h, err := namespace.Resolve(ctx, cx.Namespace(), t.Path)
		if err != nil {
			ch.diags.Errorf(diag.KindNameResolution, t.Sp, "%s", err.Error())
			return ctx.ErrorRecovery()
		}
		args := make([]types.TypeHandle, len(t.Args))
		for i, a := range t.Args {
			args[i] = ch.resolveTypeExpr(cx, a, typeParams)
		}
		decl := ctx.GetDecl(h)
		switch decl.Kind {
		case types.DeclStruct:
			return ctx.Struct(h, args)
		case types.DeclEnum:
			return ctx.Enum(h, args)
		case types.DeclTrait:
			return ctx.TraitType(decl.Name, h, args)
		case types.DeclAbi:
			return ctx.Contract(h)
		default:
			ch.diags.Errorf(diag.KindNameResolution, t.Sp, "expected a type, found %q", decl.Name)
			return ctx.ErrorRecovery()
		}
	}
	return ctx.ErrorRecovery()
}

// resolveTypeParams converts syntactic generic parameters into declaration
// records and a name → fresh-generic-handle map used while resolving the
// rest of the signature.
func (ch *checker) resolveTypeParams(cx AnalysisContext, params []ast.TypeParam) ([]types.TypeParamDecl, map[string]types.TypeHandle) {
	decls := make([]types.TypeParamDecl, len(params))
	scope := make(map[string]types.TypeHandle, len(params))
	for i, p := range params {
		constraints := make([]types.TraitConstraint, len(p.Constraints))
		for j, c := range p.Constraints {
			args := make([]types.TypeHandle, len(c.Args))
			for k, a := range c.Args {
				args[k] = ch.resolveTypeExpr(cx, a, scope)
			}
			constraints[j] = types.TraitConstraint{TraitName: c.TraitName, Args: args}
		}
		decls[i] = types.TypeParamDecl{Name: p.Name, Constraints: constraints}
		scope[p.Name] = cx.Types().Generic(p.Name, constraints)
	}
	return decls, scope
}
