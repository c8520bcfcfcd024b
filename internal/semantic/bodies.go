package semantic

import (
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/types"
)

// ---- pass 3: check bodies ----

func (ch *checker) checkBodies(cx AnalysisContext) {
	constCx := cx.WithFunctionsDisallowed().WithConstShadowingMode(ItemStyleShadowing)
	for _, it := range ch.consts {
		ch.checkConst(constCx, it)
	}

	for _, rec := range ch.fns {
		ch.checkFnBody(cx, rec, rec.decl, nil)
	}
	for _, impl := range ch.impls {
		for _, rec := range impl.methods {
			ch.checkFnBody(cx, rec, rec.decl, nil)
		}
	}

	// Drain monomorphized instances queued at call sites; checking an
	// instance body may queue further instances, so this is a worklist, not
	// a single sweep.
	for len(ch.pending) > 0 {
		inst := ch.pending[0]
		ch.pending = ch.pending[1:]
		scope := make(map[string]types.TypeHandle, len(inst.args))
		for i, p := range inst.generic.item.TypeParams {
			scope[p.Name] = inst.args[i]
		}
		ch.checkFnBody(cx, inst.generic, inst.instance, scope)
	}
}

func (ch *checker) checkConst(cx AnalysisContext, it *ast.ConstItem) {
	h, ok := cx.Namespace().LookupLocal(it.Name)
	if !ok {
		return
	}
	decl := ch.ctx.GetDecl(h)

	declared := ch.ctx.Unknown()
	if it.Type != nil {
		declared = ch.resolveTypeExpr(cx, it.Type, nil)
	}
	scope := newLocalScope(nil)
	value := ch.checkExpr(cx.WithTypeAnnotation(declared), scope, it.Value)

	ty := value.Type
	if it.Type != nil {
		unified, err := ch.ctx.Unify(value.Type, declared, cx.SelfType(), "constant initializer must match its annotation")
		if err != nil {
			ch.reportMismatch(it.Value.Span(), declared, value.Type, err)
		}
		ty = unified
	}
	ty = ch.ctx.DefaultNumeric(ty)
	decl.Const.Type = ty

	tc := &TypedConst{Decl: h, Name: it.Name, Type: ty, Value: value}
	ch.constOf[h] = tc
	ch.out.Consts = append(ch.out.Consts, tc)
}

// checkFnBody type-checks one function body against the signature held by
// target (the function's own declaration, or a monomorphized instance of
// it). instScope maps generic parameter names to concrete types when
// checking an instance; nil otherwise.
func (ch *checker) checkFnBody(cx AnalysisContext, rec *fnRecord, target types.DeclHandle, instScope map[string]types.TypeHandle) {
	if rec.item.Body == nil {
		return
	}
	decl := ch.ctx.GetDecl(target)
	isGenericTemplate := instScope == nil && len(rec.typeParams) > 0

	bodyCx := cx.
		WithSelfType(rec.selfType).
		WithPurity(rec.purity).
		WithConstShadowingMode(SequentialShadowing).
		WithTypeAnnotation(decl.Function.ReturnType).
		WithHelpText("function body's return type must match its declared return type")
	if instScope != nil {
		// Substitute the instance's concrete self type too, if the generic
		// was an impl method over a generic self.
		bodyCx = bodyCx.WithSelfType(ch.substituteScoped(rec.selfType, instScope))
	}

	scope := newLocalScope(nil)
	params := make([]TypedParam, len(decl.Function.Params))
	for i, p := range decl.Function.Params {
		scope.Define(p.Name, localBinding{Type: p.Type, Mutable: false})
		params[i] = TypedParam{Name: p.Name, Type: p.Type}
	}

	savedScope := ch.activeTypeParams
	if instScope != nil {
		ch.activeTypeParams = instScope
	} else {
		ch.activeTypeParams = rec.typeParams
	}
	savedRead, savedWrite := ch.sawRead, ch.sawWrite
	ch.sawRead, ch.sawWrite = false, false

	body := ch.checkExpr(bodyCx, scope, &ast.BlockExpr{Block: rec.item.Body, Sp: rec.item.Body.Sp})
	if _, err := ch.ctx.Unify(body.Type, bodyCx.TypeAnnotation(), bodyCx.SelfType(), bodyCx.HelpText()); err != nil {
		ch.reportMismatch(rec.item.Sp, decl.Function.ReturnType, body.Type, err)
	}

	ch.checkPurity(rec)
	ch.sawRead, ch.sawWrite = savedRead, savedWrite
	ch.activeTypeParams = savedScope

	if isGenericTemplate {
		// The template body is checked for errors but never lowered; only
		// its monomorphized instances reach the IR builder.
		return
	}
	name := decl.Name
	if instScope != nil {
		name = ch.instanceName(decl.Name, rec.item.TypeParams, instScope)
	}
	ch.out.Functions = append(ch.out.Functions, &TypedFunction{
		Decl:   target,
		Name:   name,
		Params: params,
		Return: decl.Function.ReturnType,
		Body:   body,
		Purity: rec.purity,
		Span:   rec.item.Sp,
	})
}

func (ch *checker) substituteScoped(t types.TypeHandle, scope map[string]types.TypeHandle) types.TypeHandle {
	if !t.IsValid() || len(scope) == 0 {
		return t
	}
	sigma := make(types.Substitution, len(scope))
	for name, h := range scope {
		sigma[name] = h
	}
	return ch.ctx.Substitute(t, sigma)
}

// instanceName renders `swap$u64`-style names for monomorphized instances,
// in type-parameter declaration order.
func (ch *checker) instanceName(base string, params []ast.TypeParam, scope map[string]types.TypeHandle) string {
	name := base
	for _, p := range params {
		name += "$" + ch.renderType(scope[p.Name])
	}
	return name
}

// checkPurity compares the storage accesses observed in a body against the
// declared attribute: missing access rights are errors, declared
// but unused rights are warnings.
func (ch *checker) checkPurity(rec *fnRecord) {
	declaredRead := rec.purity == ast.PurityRead || rec.purity == ast.PurityReadWrite
	declaredWrite := rec.purity == ast.PurityWrite || rec.purity == ast.PurityReadWrite

	if ch.sawRead && !declaredRead {
		ch.diags.Errorf(diag.KindPurity, rec.item.Sp,
			"function %q reads storage but is not annotated with #[storage(read)]", rec.item.Name)
	}
	if ch.sawWrite && !declaredWrite {
		ch.diags.Errorf(diag.KindPurity, rec.item.Sp,
			"function %q writes storage but is not annotated with #[storage(write)]", rec.item.Name)
	}
	if declaredRead && !ch.sawRead {
		ch.diags.Report(diag.Diagnostic{Kind: diag.KindWarning, Primary: rec.item.Sp,
			Message: "function \"" + rec.item.Name + "\" declares #[storage(read)] but never reads storage"})
	}
	if declaredWrite && !ch.sawWrite {
		ch.diags.Report(diag.Diagnostic{Kind: diag.KindWarning, Primary: rec.item.Sp,
			Message: "function \"" + rec.item.Name + "\" declares #[storage(write)] but never writes storage"})
	}
}

// ---- pass 4: check impls ----

// checkImpls verifies every trait impl provides each required interface
// method with a matching signature — parameters one-by-one and the return
// type, each unified with the implementing type as self — and that no extra
// methods exist beyond the trait's own (default overrides included).
func (ch *checker) checkImpls(cx AnalysisContext) {
	for _, impl := range ch.impls {
		if impl.traitItem == nil || !impl.traitDecl.IsValid() {
			continue
		}
		trait := ch.ctx.GetDecl(impl.traitDecl)

		required := make(map[string]types.TraitMethodSig, len(trait.Trait.Methods))
		for _, sig := range trait.Trait.Methods {
			required[sig.Name] = sig
		}

		provided := make(map[string]*fnRecord, len(impl.methods))
		for _, m := range impl.methods {
			provided[m.item.Name] = m
			sig, isTraitMethod := required[m.item.Name]
			if !isTraitMethod {
				ch.diags.Errorf(diag.KindType, m.item.Sp,
					"method %q is not a member of trait %q", m.item.Name, trait.Name)
				continue
			}
			ch.checkMethodSignature(impl, sig, m, trait.Name)
		}

		for name, sig := range required {
			if _, ok := provided[name]; !ok && !sig.HasDefault {
				ch.diags.Errorf(diag.KindType, impl.traitItem.Sp,
					"missing method %q required by trait %q", name, trait.Name)
			}
		}
	}
}

func (ch *checker) checkMethodSignature(impl *implRecord, sig types.TraitMethodSig, m *fnRecord, traitName string) {
	decl := ch.ctx.GetDecl(m.decl)
	if len(decl.Function.Params) != len(sig.Params) {
		ch.diags.Errorf(diag.KindType, m.item.Sp,
			"method %q has %d parameters but trait %q declares %d",
			m.item.Name, len(decl.Function.Params), traitName, len(sig.Params))
		return
	}
	for i, p := range decl.Function.Params {
		if _, err := ch.ctx.Unify(p.Type, sig.Params[i].Type, impl.implType, "parameter must match the trait's declaration"); err != nil {
			ch.reportMismatch(m.item.Params[i].Sp, sig.Params[i].Type, p.Type, err)
		}
	}
	if _, err := ch.ctx.Unify(decl.Function.ReturnType, sig.ReturnType, impl.implType, "return type must match the trait's declaration"); err != nil {
		ch.reportMismatch(m.item.Sp, sig.ReturnType, decl.Function.ReturnType, err)
	}
}
