package semantic

import (
	"crypto/sha256"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

// fnRecord links a collected function declaration back to its syntax so
// later passes can find it, together with the generic-parameter scope its
// signature was resolved under and the self type active at its definition
// site (invalid for free functions).
type fnRecord struct {
	item       *ast.FnItem
	decl       types.DeclHandle
	typeParams map[string]types.TypeHandle
	selfType   types.TypeHandle
	purity     ast.Purity
}

type structRecord struct {
	item *ast.StructItem
	decl types.DeclHandle
}

type enumRecord struct {
	item *ast.EnumItem
	decl types.DeclHandle
}

type traitRecord struct {
	item *ast.TraitItem
	decl types.DeclHandle
}

type abiRecord struct {
	item *ast.AbiItem
	decl types.DeclHandle
}

type storageRecord struct {
	field ast.StorageField
	decl  types.DeclHandle
}

type implRecord struct {
	traitItem *ast.ImplTraitItem
	selfItem  *ast.ImplSelfItem
	implType  types.TypeHandle
	traitDecl types.DeclHandle
	traitArgs []types.TypeHandle
	methods   []*fnRecord
}

// pendingInstance is one monomorphized function whose body still needs
// checking against concrete argument types. Instances are queued at call
// sites and drained after the main body pass, so a generic calling another
// generic also terminates.
type pendingInstance struct {
	instance types.DeclHandle
	generic  *fnRecord
	args     []types.TypeHandle
}

type checker struct {
	ctx   *types.Context
	diags *diag.Handler

	fns      []*fnRecord
	structs  []structRecord
	enums    []enumRecord
	traits   []traitRecord
	abis     []abiRecord
	consts   []*ast.ConstItem
	storage  []storageRecord
	uses     []*ast.UseItem
	aliases  []*ast.TypeAliasItem
	impls    []*implRecord
	pending  []pendingInstance

	// instantiated guards the pending queue against re-queuing an instance
	// the memoized Monomorphize returned a second time.
	instantiated map[types.DeclHandle]bool

	// genericOf maps a generic function declaration handle back to its
	// record, for instantiation at call sites.
	genericOf map[types.DeclHandle]*fnRecord

	// constOf maps a const declaration handle to its checked value, for
	// value lookups and the "functions disallowed" initializer rule.
	constOf map[types.DeclHandle]*TypedConst

	// activeTypeParams is the generic-parameter scope of the body being
	// checked, consulted when resolving type annotations inside that body.
	activeTypeParams map[string]types.TypeHandle

	// storage accesses observed while checking the current function body,
	// reset per body; compared against the declared purity attribute.
	sawRead  bool
	sawWrite bool

	out *TypedModule
}

// Check is the analyzer's single operation: walk the untyped
// module, resolve names and types, check bodies and impls, and return the
// typed module. Diagnostics accumulate into h; the caller decides whether
// to proceed by asking h.Ok().
func Check(m *ast.Module, ns *namespace.Module, ctx *types.Context, h *diag.Handler) *TypedModule {
	ch := &checker{
		ctx:          ctx,
		diags:        h,
		instantiated: make(map[types.DeclHandle]bool),
		genericOf:    make(map[types.DeclHandle]*fnRecord),
		constOf:      make(map[types.DeclHandle]*TypedConst),
		out:          &TypedModule{Kind: m.Kind, Name: m.Name, Namespace: ns},
	}
	cx := NewRootContext(ctx, ns, m.Kind)

	ch.collect(cx, m)
	ch.resolveSignatures(cx)
	ch.checkBodies(cx)
	ch.checkImpls(cx)
	return ch.out
}

// ---- pass 1: collect ----

// collect creates declaration handles with names but unresolved bodies and
// inserts them into the namespace. Duplicate like-kind declarations are
// MultipleDefinitions errors; a const shadowing another symbol is a
// ShadowsOtherSymbol warning, consts being the one lenient kind.
func (ch *checker) collect(cx AnalysisContext, m *ast.Module) {
	ns := cx.Namespace()
	for _, item := range m.Items {
		switch it := item.(type) {
		case *ast.UseItem:
			ch.uses = append(ch.uses, it)
		case *ast.StructItem:
			h := ch.ctx.DeclareStruct(it.Name, it.Sp, visOf(it.Vis), nil)
			ch.declare(ns, it.Name, h, false)
			ch.structs = append(ch.structs, structRecord{item: it, decl: h})
		case *ast.EnumItem:
			h := ch.ctx.DeclareEnum(it.Name, it.Sp, visOf(it.Vis), nil)
			ch.declare(ns, it.Name, h, false)
			ch.enums = append(ch.enums, enumRecord{item: it, decl: h})
		case *ast.TraitItem:
			h := ch.ctx.DeclareTrait(it.Name, it.Sp, visOf(it.Vis), nil)
			ch.declare(ns, it.Name, h, false)
			ch.traits = append(ch.traits, traitRecord{item: it, decl: h})
		case *ast.FnItem:
			h := ch.ctx.DeclareFunction(it.Name, it.Sp, visOf(it.Vis), nil)
			ch.declare(ns, it.Name, h, false)
			ch.fns = append(ch.fns, &fnRecord{item: it, decl: h, selfType: types.TypeHandle(-1), purity: it.Purity})
		case *ast.ConstItem:
			h := ch.ctx.DeclareConst(it.Name, it.Sp, visOf(it.Vis))
			ch.declare(ns, it.Name, h, true)
			ch.consts = append(ch.consts, it)
		case *ast.StorageItem:
			if m.Kind != ast.KindContract {
				ch.diags.Errorf(diag.KindType, it.Sp, "storage declarations are only allowed in contracts")
			}
			for _, f := range it.Fields {
				h := ch.ctx.DeclareStorageField(f.Name, f.Sp)
				ch.declare(ns, "storage."+f.Name, h, false)
				ch.storage = append(ch.storage, storageRecord{field: f, decl: h})
				ch.out.Storage = append(ch.out.Storage, h)
			}
		case *ast.AbiItem:
			h := ch.ctx.DeclareAbi(it.Name, it.Sp, types.VisPublic)
			ch.declare(ns, it.Name, h, false)
			ch.abis = append(ch.abis, abiRecord{item: it, decl: h})
			ch.out.Abis = append(ch.out.Abis, h)
		case *ast.ImplTraitItem:
			ch.impls = append(ch.impls, &implRecord{traitItem: it})
		case *ast.ImplSelfItem:
			ch.impls = append(ch.impls, &implRecord{selfItem: it})
		case *ast.TypeAliasItem:
			ch.aliases = append(ch.aliases, it)
		}
	}
}

func (ch *checker) declare(ns *namespace.Module, name string, h types.DeclHandle, shadowWarns bool) {
	sp := ch.ctx.GetDecl(h).Span
	prev, existed := ns.Declare(name, h)
	if !existed {
		return
	}
	prevSpan := ch.ctx.GetDecl(prev).Span
	if shadowWarns {
		ch.diags.Report(diag.Diagnostic{
			Kind: diag.KindWarning, Primary: sp,
			Message:   "declaration shadows an existing symbol named \"" + name + "\"",
			Secondary: []diag.LabeledSpan{{Span: prevSpan, Label: "previously defined here"}},
		})
	} else {
		ch.diags.Report(diag.Diagnostic{
			Kind: diag.KindNameResolution, Primary: sp,
			Message:   "multiple definitions of \"" + name + "\"",
			Secondary: []diag.LabeledSpan{{Span: prevSpan, Label: "first defined here"}},
		})
	}
}

// ---- pass 2: resolve types ----

func (ch *checker) resolveSignatures(cx AnalysisContext) {
	ns := cx.Namespace()

	for _, use := range ch.uses {
		ch.resolveUse(cx, use)
	}
	for _, alias := range ch.aliases {
		ch.resolveAlias(cx, alias)
	}
	for _, rec := range ch.structs {
		params, scope := ch.resolveTypeParams(cx, rec.item.TypeParams)
		decl := ch.ctx.GetDecl(rec.decl)
		decl.TypeParams = params
		decl.Struct.TypeParams = params
		for _, f := range rec.item.Fields {
			decl.Struct.Fields = append(decl.Struct.Fields, types.FieldDecl{
				Name: f.Name, Type: ch.resolveTypeExpr(cx, f.Type, scope),
			})
		}
	}
	for _, rec := range ch.enums {
		params, scope := ch.resolveTypeParams(cx, rec.item.TypeParams)
		decl := ch.ctx.GetDecl(rec.decl)
		decl.TypeParams = params
		decl.Enum.TypeParams = params
		for _, v := range rec.item.Variants {
			payload := types.TypeHandle(-1)
			if v.Payload != nil {
				payload = ch.resolveTypeExpr(cx, v.Payload, scope)
			}
			decl.Enum.Variants = append(decl.Enum.Variants, types.VariantDecl{Name: v.Name, Payload: payload})
		}
	}
	for _, rec := range ch.traits {
		ch.resolveTraitSignature(cx, rec)
	}
	for _, rec := range ch.fns {
		ch.resolveFnSignature(cx, rec, nil)
		if len(rec.item.TypeParams) > 0 {
			ch.genericOf[rec.decl] = rec
		}
	}
	for _, rec := range ch.abis {
		ch.resolveAbiSignature(cx, rec)
	}
	for _, rec := range ch.impls {
		ch.resolveImplHeader(cx, rec, ns)
	}
	ch.resolveStorageKeys()
}

func (ch *checker) resolveUse(cx AnalysisContext, use *ast.UseItem) {
	ns := cx.Namespace()
	if use.Wildcard {
		if err := namespace.ResolveWildcard(ch.ctx, ns, use.Path); err != nil {
			ch.diags.Errorf(diag.KindNameResolution, use.Sp, "%s", err.Error())
		}
		return
	}
	// A path naming a child module imports the module itself; anything else
	// imports a single symbol under its final segment (or Alias).
	if mod := walkModulePath(ns, use.Path); mod != nil {
		alias := use.Path[len(use.Path)-1]
		if use.Alias != "" {
			alias = use.Alias
		}
		ns.ImportModule(alias, mod)
		return
	}
	h, err := namespace.Resolve(ch.ctx, ns, use.Path)
	if err != nil {
		ch.diags.Errorf(diag.KindNameResolution, use.Sp, "%s", err.Error())
		return
	}
	alias := use.Path[len(use.Path)-1]
	if use.Alias != "" {
		alias = use.Alias
	}
	ns.Import(alias, h, use.Absolute)
}

func walkModulePath(ns *namespace.Module, path []string) *namespace.Module {
	mod := ns
	for _, seg := range path {
		child, ok := mod.Children[seg]
		if !ok {
			return nil
		}
		mod = child
	}
	return mod
}

func (ch *checker) resolveAlias(cx AnalysisContext, alias *ast.TypeAliasItem) {
	named, ok := alias.Target.(*ast.NamedTypeExpr)
	if !ok {
		// An alias to a structural type introduces no declaration to point
		// at; the annotation resolver handles those inline, so only named
		// targets get a namespace entry.
		return
	}
	h, err := namespace.Resolve(ch.ctx, cx.Namespace(), named.Path)
	if err != nil {
		ch.diags.Errorf(diag.KindNameResolution, alias.Sp, "%s", err.Error())
		return
	}
	cx.Namespace().Import(alias.Name, h, false)
}

func (ch *checker) resolveTraitSignature(cx AnalysisContext, rec traitRecord) {
	params, scope := ch.resolveTypeParams(cx, rec.item.TypeParams)
	decl := ch.ctx.GetDecl(rec.decl)
	decl.TypeParams = params
	decl.Trait.TypeParams = params
	for _, c := range rec.item.SuperTraits {
		args := make([]types.TypeHandle, len(c.Args))
		for i, a := range c.Args {
			args[i] = ch.resolveTypeExpr(cx, a, scope)
		}
		decl.Trait.SuperTraits = append(decl.Trait.SuperTraits, types.TraitConstraint{TraitName: c.TraitName, Args: args})
	}
	selfCx := cx.WithSelfType(ch.ctx.SelfType())
	for _, m := range rec.item.Methods {
		sig := types.TraitMethodSig{Name: m.Name, HasDefault: m.Body != nil}
		for _, p := range m.Params {
			ty := ch.ctx.SelfType()
			if !p.IsSelf {
				ty = ch.resolveTypeExpr(selfCx, p.Type, scope)
			}
			sig.Params = append(sig.Params, types.FieldDecl{Name: p.Name, Type: ty})
		}
		sig.ReturnType = ch.resolveTypeExpr(selfCx, m.ReturnType, scope)
		decl.Trait.Methods = append(decl.Trait.Methods, sig)
	}
}

// resolveFnSignature fills in a function declaration's parameter and
// return types. extraScope carries the enclosing impl's type parameters,
// if any, merged under the function's own.
func (ch *checker) resolveFnSignature(cx AnalysisContext, rec *fnRecord, extraScope map[string]types.TypeHandle) {
	params, scope := ch.resolveTypeParams(cx, rec.item.TypeParams)
	for name, h := range extraScope {
		if _, shadowed := scope[name]; !shadowed {
			scope[name] = h
		}
	}
	rec.typeParams = scope

	decl := ch.ctx.GetDecl(rec.decl)
	decl.TypeParams = params
	decl.Function.Purity = int(rec.item.Purity)

	selfCx := cx.WithSelfType(rec.selfType)
	for _, p := range rec.item.Params {
		ty := rec.selfType
		if !p.IsSelf {
			ty = ch.resolveTypeExpr(selfCx, p.Type, scope)
		} else if !ty.IsValid() {
			ch.diags.Errorf(diag.KindType, p.Sp, "`self` parameter outside of an impl")
			ty = ch.ctx.ErrorRecovery()
		}
		decl.Function.Params = append(decl.Function.Params, types.FieldDecl{Name: p.Name, Type: ty})
	}
	decl.Function.ReturnType = ch.resolveTypeExpr(selfCx, rec.item.ReturnType, scope)
}

func (ch *checker) resolveAbiSignature(cx AnalysisContext, rec abiRecord) {
	decl := ch.ctx.GetDecl(rec.decl)
	selfCx := cx.WithSelfType(ch.ctx.Contract(rec.decl))
	for _, m := range rec.item.Methods {
		method := types.AbiMethodDecl{Name: m.Name, Purity: int(m.Purity)}
		for _, p := range m.Params {
			if p.IsSelf {
				continue
			}
			method.Params = append(method.Params, types.FieldDecl{
				Name: p.Name, Type: ch.resolveTypeExpr(selfCx, p.Type, nil),
			})
		}
		method.ReturnType = ch.resolveTypeExpr(selfCx, m.ReturnType, nil)
		decl.Abi.Methods = append(decl.Abi.Methods, method)
	}
}

func (ch *checker) resolveImplHeader(cx AnalysisContext, rec *implRecord, ns *namespace.Module) {
	var (
		implTyExpr ast.TypeExpr
		tparams    []ast.TypeParam
		methods    []*ast.FnItem
		sp         span.ID
	)
	if rec.traitItem != nil {
		implTyExpr, tparams, methods, sp = rec.traitItem.ImplementingTy, rec.traitItem.TypeParams, rec.traitItem.Methods, rec.traitItem.Sp
	} else {
		implTyExpr, tparams, methods, sp = rec.selfItem.ImplementingTy, rec.selfItem.TypeParams, rec.selfItem.Methods, rec.selfItem.Sp
	}

	_, scope := ch.resolveTypeParams(cx, tparams)
	rec.implType = ch.resolveTypeExpr(cx, implTyExpr, scope)

	key := namespace.TraitKey{ImplType: rec.implType, IsImplSelf: rec.selfItem != nil}
	if rec.traitItem != nil {
		h, err := namespace.Resolve(ch.ctx, ns, []string{rec.traitItem.TraitName})
		if err != nil {
			ch.diags.Errorf(diag.KindNameResolution, sp, "%s", err.Error())
			return
		}
		if ch.ctx.GetDecl(h).Kind != types.DeclTrait {
			ch.diags.Errorf(diag.KindNameResolution, sp, "%q is not a trait", rec.traitItem.TraitName)
			return
		}
		rec.traitDecl = h
		key.TraitName = rec.traitItem.TraitName
		for _, a := range rec.traitItem.TraitArgs {
			rec.traitArgs = append(rec.traitArgs, ch.resolveTypeExpr(cx, a, scope))
		}
		key.TraitArgs = rec.traitArgs
	} else {
		rec.traitDecl = types.DeclHandle(-1)
	}

	methodHandles := make(map[string]types.DeclHandle, len(methods))
	implDeclMethods := make([]types.DeclHandle, 0, len(methods))
	for _, m := range methods {
		h := ch.ctx.DeclareFunction(m.Name, m.Sp, types.VisPublic, nil)
		fnRec := &fnRecord{item: m, decl: h, selfType: rec.implType, purity: m.Purity}
		ch.resolveFnSignature(cx, fnRec, scope)
		if len(m.TypeParams) > 0 || len(tparams) > 0 {
			ch.genericOf[h] = fnRec
		}
		rec.methods = append(rec.methods, fnRec)
		methodHandles[m.Name] = h
		implDeclMethods = append(implDeclMethods, h)
	}

	ch.ctx.DeclareImpl(sp, &types.ImplDecl{
		ImplementingTy: rec.implType,
		TraitRef:       rec.traitDecl,
		TraitArgs:      rec.traitArgs,
		Methods:        implDeclMethods,
		IsImplSelf:     rec.selfItem != nil,
	})

	if err := ns.TraitMap().Insert(ch.ctx, key, methodHandles); err != nil {
		ch.diags.Errorf(diag.KindType, sp, "%s", err.Error())
	}
}

// resolveStorageKeys resolves each storage field's declared type and its
// 256-bit key: the user-supplied `in <expr>` literal when present, or the
// SHA-256 of the canonical field path otherwise. Distinct fields sharing a
// key may not share it; duplicates are rejected here.
func (ch *checker) resolveStorageKeys() {
	seen := make(map[[32]byte]storageRecord, len(ch.storage))
	for _, rec := range ch.storage {
		decl := ch.ctx.GetDecl(rec.decl)
		cx := NewRootContext(ch.ctx, ch.out.Namespace, ch.out.Kind)
		decl.StorageField.Type = ch.resolveTypeExpr(cx, rec.field.Type, nil)

		if rec.field.InKey != nil {
			lit, ok := rec.field.InKey.(*ast.LiteralExpr)
			if !ok || lit.Kind != ast.LitB256 {
				ch.diags.Errorf(diag.KindType, rec.field.Sp, "storage key expression must be a b256 literal")
				continue
			}
			decl.StorageField.Key = lit.B256
		} else {
			decl.StorageField.Key = sha256.Sum256([]byte("storage." + decl.Name))
		}

		if prev, dup := seen[decl.StorageField.Key]; dup {
			ch.diags.Report(diag.Diagnostic{
				Kind: diag.KindType, Primary: rec.field.Sp,
				Message:   "storage field \"" + decl.Name + "\" shares a key with another field",
				Secondary: []diag.LabeledSpan{{Span: prev.field.Sp, Label: "same key derived here"}},
			})
			continue
		}
		seen[decl.StorageField.Key] = rec
	}
}

func visOf(v ast.Visibility) types.Visibility {
	if v == ast.VisPublic {
		return types.VisPublic
	}
	return types.VisPrivate
}
