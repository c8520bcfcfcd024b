package semantic

import (
	"strconv"
	"strings"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

// checkExpr is the bidirectional expression checker: the context's
// type annotation flows in, the synthesized type flows out and is unified
// with the expectation by the caller where the language requires it. Every
// failure reports a diagnostic and yields an ErrorRecovery-typed node so
// checking continues.
func (ch *checker) checkExpr(cx AnalysisContext, scope *localScope, e ast.Expression) *TypedExpr {
	switch n := e.(type) {
	case *ast.LiteralExpr:
		return ch.checkLiteral(cx, n)
	case *ast.VarExpr:
		return ch.checkVariable(cx, scope, n)
	case *ast.CallExpr:
		return ch.checkCall(cx, scope, n)
	case *ast.MethodCallExpr:
		return ch.checkMethodCall(cx, scope, n)
	case *ast.StructExpr:
		return ch.checkStructExpr(cx, scope, n)
	case *ast.EnumExpr:
		return ch.checkEnumExpr(cx, scope, n)
	case *ast.TupleExpr:
		return ch.checkTuple(cx, scope, n)
	case *ast.ArrayExpr:
		return ch.checkArray(cx, scope, n)
	case *ast.IndexExpr:
		return ch.checkIndex(cx, scope, n)
	case *ast.FieldExpr:
		return ch.checkFieldAccess(cx, scope, n)
	case *ast.TupleIndexExpr:
		return ch.checkTupleIndex(cx, scope, n)
	case *ast.BinaryExpr:
		return ch.checkBinary(cx, scope, n)
	case *ast.UnaryExpr:
		return ch.checkUnary(cx, scope, n)
	case *ast.BlockExpr:
		return ch.checkBlock(cx, scope, n.Block, n.Sp)
	case *ast.IfExpr:
		return ch.checkIf(cx, scope, n)
	case *ast.MatchExpr:
		return ch.checkMatch(cx, scope, n)
	case *ast.WhileExpr:
		return ch.checkWhile(cx, scope, n)
	case *ast.ReassignExpr:
		return ch.checkReassign(cx, scope, n)
	case *ast.AsmExpr:
		return ch.checkAsm(cx, scope, n)
	case *ast.IntrinsicExpr:
		return ch.checkIntrinsic(cx, scope, n)
	case *ast.LambdaExpr:
		ch.diags.Errorf(diag.KindType, n.Sp, "closures are not supported in this target")
		return recovery(ch.ctx, n.Sp)
	default:
		ch.diags.Errorf(diag.KindType, e.Span(), "unsupported expression form")
		return recovery(ch.ctx, e.Span())
	}
}

func (ch *checker) checkLiteral(cx AnalysisContext, n *ast.LiteralExpr) *TypedExpr {
	out := &TypedExpr{Kind: ExprLiteral, Span: n.Sp}
	switch n.Kind {
	case ast.LitUnit:
		out.Type = ch.ctx.Unit()
	case ast.LitBool:
		out.Type = ch.ctx.Bool()
		out.Literal = LiteralValue{Kind: ast.LitBool, Bool: n.Bool}
	case ast.LitB256:
		out.Type = ch.ctx.B256()
		out.Literal = LiteralValue{Kind: ast.LitB256, B256: n.B256}
	case ast.LitString:
		out.Type = ch.ctx.StringN(len(n.Str))
		out.Literal = LiteralValue{Kind: ast.LitString, Str: n.Str}
	case ast.LitInt:
		v, err := parseIntText(n.Int)
		if err != nil {
			ch.diags.Errorf(diag.KindType, n.Sp, "integer literal %q out of range", n.Int)
			return recovery(ch.ctx, n.Sp)
		}
		out.Literal = LiteralValue{Kind: ast.LitInt, Int: v}
		if n.Suffix != "" {
			width, ok := widthOfSuffix(n.Suffix)
			if !ok {
				ch.diags.Errorf(diag.KindType, n.Sp, "unknown integer suffix %q", n.Suffix)
				return recovery(ch.ctx, n.Sp)
			}
			out.Type = ch.ctx.UInt(width)
		} else {
			// Unsuffixed literals stay Numeric until the expectation or the
			// defaulting rule pins a width.
			out.Type = ch.ctx.Numeric()
			if expected := cx.TypeAnnotation(); isConcreteInteger(ch.ctx, expected) {
				out.Type = expected
			}
		}
	}
	return out
}

func parseIntText(text string) (uint64, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if strings.HasPrefix(clean, "0x") {
		return strconv.ParseUint(clean[2:], 16, 64)
	}
	return strconv.ParseUint(clean, 10, 64)
}

func widthOfSuffix(s string) (int, bool) {
	switch s {
	case "u8":
		return 8, true
	case "u16":
		return 16, true
	case "u32":
		return 32, true
	case "u64":
		return 64, true
	case "u256":
		return 256, true
	}
	return 0, false
}

func isConcreteInteger(ctx *types.Context, t types.TypeHandle) bool {
	if !t.IsValid() {
		return false
	}
	return ctx.GetType(t).Tag == types.TagUInt
}

func (ch *checker) checkVariable(cx AnalysisContext, scope *localScope, n *ast.VarExpr) *TypedExpr {
	// storage.field reads go through their own node so the purity pass and
	// the IR builder see them as storage operations, not variable loads.
	if len(n.Path) == 2 && n.Path[0] == "storage" {
		return ch.checkStorageRead(cx, n)
	}

	if len(n.Path) == 1 {
		if b, ok := scope.Lookup(n.Path[0]); ok {
			return &TypedExpr{Kind: ExprVariable, Type: b.Type, Span: n.Sp, VarName: n.Path[0]}
		}
	}

	h, err := namespace.Resolve(ch.ctx, cx.Namespace(), n.Path)
	if err != nil {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "%s", err.Error())
		return recovery(ch.ctx, n.Sp)
	}
	decl := ch.ctx.GetDecl(h)
	switch decl.Kind {
	case types.DeclConst:
		return &TypedExpr{Kind: ExprVariable, Type: decl.Const.Type, Span: n.Sp, VarName: decl.Name, ConstDecl: h}
	case types.DeclFunction:
		ch.diags.Errorf(diag.KindType, n.Sp, "expected value, found function %q; call it instead", decl.Name)
	default:
		ch.diags.Errorf(diag.KindType, n.Sp, "expected value, found %q", decl.Name)
	}
	return recovery(ch.ctx, n.Sp)
}

func (ch *checker) checkStorageRead(cx AnalysisContext, n *ast.VarExpr) *TypedExpr {
	h, ok := cx.Namespace().LookupLocal("storage." + n.Path[1])
	if !ok {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "no storage field named %q", n.Path[1])
		return recovery(ch.ctx, n.Sp)
	}
	ch.sawRead = true
	return &TypedExpr{
		Kind: ExprStorageRead, Type: ch.ctx.GetDecl(h).StorageField.Type,
		Span: n.Sp, StorageField: h,
	}
}

// checkCall resolves a free-function call: path lookup, type-argument
// inference (explicit turbo-fish first, then argument-driven unification),
// monomorphization once every parameter is concrete, then positional
// argument checks.
func (ch *checker) checkCall(cx AnalysisContext, scope *localScope, n *ast.CallExpr) *TypedExpr {
	path, ok := calleePath(n.Callee)
	if !ok {
		ch.diags.Errorf(diag.KindType, n.Sp, "callee is not a function path")
		return recovery(ch.ctx, n.Sp)
	}
	if cx.FunctionsDisallowed() {
		ch.diags.Errorf(diag.KindType, n.Sp, "function calls are not allowed in constant initializers")
		return recovery(ch.ctx, n.Sp)
	}

	h, err := namespace.Resolve(ch.ctx, cx.Namespace(), path)
	if err != nil {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "%s", err.Error())
		return recovery(ch.ctx, n.Sp)
	}
	decl := ch.ctx.GetDecl(h)
	if decl.Kind != types.DeclFunction {
		ch.diags.Errorf(diag.KindType, n.Sp, "%q is not a function", decl.Name)
		return recovery(ch.ctx, n.Sp)
	}

	return ch.checkInvocation(cx, scope, h, n.TurboFish, nil, n.Args, n.Sp)
}

func calleePath(e ast.Expression) ([]string, bool) {
	v, ok := e.(*ast.VarExpr)
	if !ok {
		return nil, false
	}
	return v.Path, true
}

// checkInvocation is the shared tail of free-function and method calls.
// receiver, when non-nil, is prepended to the argument list (self becomes
// an ordinary first parameter from here on, as the IR builder expects).
func (ch *checker) checkInvocation(cx AnalysisContext, scope *localScope, fn types.DeclHandle, turboFish []ast.TypeExpr, receiver *TypedExpr, args []ast.Expression, sp span.ID) *TypedExpr {
	decl := ch.ctx.GetDecl(fn)
	target := fn

	ch.checkCallPurity(cx, decl, sp)

	// Check arguments against an Unknown expectation first; their
	// synthesized types drive generic inference below. Receiver counts as
	// argument zero.
	var typedArgs []*TypedExpr
	if receiver != nil {
		typedArgs = append(typedArgs, receiver)
	}
	argCx := cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText("")
	for _, a := range args {
		typedArgs = append(typedArgs, ch.checkExpr(argCx, scope, a))
	}

	if len(decl.TypeParams) > 0 {
		genRec := ch.genericOf[fn]
		argTys, inferErr := ch.inferTypeArgs(cx, decl, turboFish, typedArgs, sp)
		if inferErr {
			return recovery(ch.ctx, sp)
		}
		instance, err := ch.ctx.Monomorphize(fn, argTys)
		if err != nil {
			ch.diags.Errorf(diag.KindType, sp, "%s", err.Error())
			return recovery(ch.ctx, sp)
		}
		if genRec != nil && !ch.instantiated[instance] {
			ch.instantiated[instance] = true
			ch.pending = append(ch.pending, pendingInstance{instance: instance, generic: genRec, args: argTys})
		}
		target = instance
		decl = ch.ctx.GetDecl(instance)
	}

	if len(typedArgs) != len(decl.Function.Params) {
		ch.diags.Errorf(diag.KindType, sp, "function %q takes %d arguments but %d were supplied",
			decl.Name, len(decl.Function.Params), len(typedArgs))
		return recovery(ch.ctx, sp)
	}
	for i, a := range typedArgs {
		want := decl.Function.Params[i].Type
		if _, err := ch.ctx.Unify(a.Type, want, cx.SelfType(), "argument must match the parameter's declared type"); err != nil {
			ch.reportMismatch(a.Span, want, a.Type, err)
		}
	}

	return &TypedExpr{Kind: ExprCall, Type: decl.Function.ReturnType, Span: sp, Callee: target, Args: typedArgs}
}

// inferTypeArgs resolves a generic callee's type arguments: explicit
// turbo-fish entries win; remaining parameters are inferred by unifying
// each argument's synthesized type against the corresponding parameter
// annotation. A parameter left unknown after both sources is an error, as
// is an inferred type failing its trait constraints.
func (ch *checker) inferTypeArgs(cx AnalysisContext, decl *types.Declaration, turboFish []ast.TypeExpr, typedArgs []*TypedExpr, sp span.ID) ([]types.TypeHandle, bool) {
	n := len(decl.TypeParams)
	argTys := make([]types.TypeHandle, n)
	for i := range argTys {
		argTys[i] = types.TypeHandle(-1)
	}

	if len(turboFish) > 0 {
		if len(turboFish) != n {
			ch.diags.Errorf(diag.KindType, sp, "wrong number of type arguments: expected %d, found %d", n, len(turboFish))
			return nil, true
		}
		for i, te := range turboFish {
			argTys[i] = ch.resolveTypeExpr(cx, te, ch.activeTypeParams)
		}
	}

	paramIdx := make(map[string]int, n)
	for i, p := range decl.TypeParams {
		paramIdx[p.Name] = i
	}
	for i, p := range decl.Function.Params {
		if i >= len(typedArgs) {
			break
		}
		ch.bindGenerics(p.Type, typedArgs[i].Type, paramIdx, argTys)
	}

	for i, p := range decl.TypeParams {
		if !argTys[i].IsValid() {
			ch.diags.Errorf(diag.KindType, sp,
				"cannot infer type argument %q of %q; annotate it explicitly", p.Name, decl.Name)
			return nil, true
		}
		argTys[i] = ch.ctx.DefaultNumeric(argTys[i])
		for _, c := range p.Constraints {
			if err := cx.Namespace().TraitMap().Satisfies(ch.ctx, c.TraitName, c.Args, argTys[i]); err != nil {
				ch.diags.Report(diag.Diagnostic{
					Kind: diag.KindType, Primary: sp,
					Message: ch.renderType(argTys[i]) + " does not implement " + c.TraitName,
					Help:    "required by the constraint on type parameter " + p.Name,
				})
				return nil, true
			}
		}
	}
	return argTys, false
}

// bindGenerics walks a declared parameter type and the concrete argument
// type in lockstep, binding each generic name it encounters to the
// corresponding concrete subtree. First binding wins; a later conflicting
// binding surfaces as an argument-type mismatch in the positional check.
func (ch *checker) bindGenerics(declared, concrete types.TypeHandle, paramIdx map[string]int, out []types.TypeHandle) {
	d := ch.ctx.GetType(declared)
	switch d.Tag {
	case types.TagGeneric:
		if i, ok := paramIdx[d.Name]; ok && !out[i].IsValid() {
			out[i] = concrete
		}
	case types.TagPtr, types.TagSlice, types.TagArray:
		c := ch.ctx.GetType(concrete)
		if c.Tag == d.Tag {
			ch.bindGenerics(d.Elem, c.Elem, paramIdx, out)
		}
	case types.TagTuple:
		c := ch.ctx.GetType(concrete)
		if c.Tag == types.TagTuple && len(c.Elems) == len(d.Elems) {
			for i := range d.Elems {
				ch.bindGenerics(d.Elems[i], c.Elems[i], paramIdx, out)
			}
		}
	case types.TagStruct, types.TagEnum:
		c := ch.ctx.GetType(concrete)
		if c.Tag == d.Tag && c.Decl == d.Decl && len(c.Args) == len(d.Args) {
			for i := range d.Args {
				ch.bindGenerics(d.Args[i], c.Args[i], paramIdx, out)
			}
		}
	}
}

// checkCallPurity enforces the purity-compatibility rule: a callee's
// storage accesses must be allowed by the caller's declared attribute, and
// the callee's accesses count as the caller's own.
func (ch *checker) checkCallPurity(cx AnalysisContext, callee *types.Declaration, sp span.ID) {
	calleePurity := ast.Purity(callee.Function.Purity)
	calleeReads := calleePurity == ast.PurityRead || calleePurity == ast.PurityReadWrite
	calleeWrites := calleePurity == ast.PurityWrite || calleePurity == ast.PurityReadWrite
	callerPurity := cx.Purity()
	callerReads := callerPurity == ast.PurityRead || callerPurity == ast.PurityReadWrite
	callerWrites := callerPurity == ast.PurityWrite || callerPurity == ast.PurityReadWrite

	if calleeReads {
		ch.sawRead = true
		if !callerReads {
			ch.diags.Errorf(diag.KindPurity, sp,
				"cannot call a #[storage(read)] function from a context without read access")
		}
	}
	if calleeWrites {
		ch.sawWrite = true
		if !callerWrites {
			ch.diags.Errorf(diag.KindPurity, sp,
				"cannot call a #[storage(write)] function from a context without write access")
		}
	}
}

func (ch *checker) checkMethodCall(cx AnalysisContext, scope *localScope, n *ast.MethodCallExpr) *TypedExpr {
	receiver := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Receiver)
	if receiver.Kind == ExprRecovery {
		return receiver
	}

	// A generic receiver dispatches through its trait constraints: the
	// constraint's interface supplies the signature, with Self standing in
	// for the receiver's own type. No concrete callee exists yet; the
	// monomorphized instance re-resolves against the concrete type.
	if d := ch.ctx.GetType(receiver.Type); d.Tag == types.TagGeneric {
		return ch.checkConstraintMethod(cx, scope, n, receiver, d.Constraints)
	}

	// A trait impl is only usable when its trait is imported or inherent:
	// the trait's name must resolve to a trait declaration from the current
	// namespace (own symbol table, imports, or the root unit). Impl indexes
	// are consulted for the current module, the root, and every module
	// bound by a `use` import.
	ns := cx.Namespace()
	traitInScope := func(name string) bool {
		h, err := namespace.Resolve(ch.ctx, ns, []string{name})
		return err == nil && ch.ctx.GetDecl(h).Kind == types.DeclTrait
	}
	methods := ns.TraitMap().MethodsOn(ch.ctx, receiver.Type, traitInScope)
	if root := ns.Root(); root != ns {
		methods = append(methods, root.TraitMap().MethodsOn(ch.ctx, receiver.Type, traitInScope)...)
	}
	for _, imported := range ns.ImportedModules() {
		methods = append(methods, imported.TraitMap().MethodsOn(ch.ctx, receiver.Type, traitInScope)...)
	}
	for _, m := range methods {
		if m.Name == n.Method {
			return ch.checkInvocation(cx, scope, m.Decl, n.TurboFish, receiver, n.Args, n.Sp)
		}
	}
	ch.diags.Errorf(diag.KindType, n.Sp, "no method %q found for type %s", n.Method, ch.renderType(receiver.Type))
	return recovery(ch.ctx, n.Sp)
}

func (ch *checker) checkConstraintMethod(cx AnalysisContext, scope *localScope, n *ast.MethodCallExpr, receiver *TypedExpr, constraints []types.TraitConstraint) *TypedExpr {
	for _, c := range constraints {
		h, err := namespace.Resolve(ch.ctx, cx.Namespace(), []string{c.TraitName})
		if err != nil {
			continue
		}
		trait := ch.ctx.GetDecl(h)
		if trait.Kind != types.DeclTrait {
			continue
		}
		for _, sig := range trait.Trait.Methods {
			if sig.Name != n.Method {
				continue
			}
			if len(n.Args)+1 != len(sig.Params) {
				ch.diags.Errorf(diag.KindType, n.Sp, "method %q takes %d arguments but %d were supplied",
					n.Method, len(sig.Params)-1, len(n.Args))
				return recovery(ch.ctx, n.Sp)
			}
			args := []*TypedExpr{receiver}
			for i, a := range n.Args {
				want := sig.Params[i+1].Type
				v := ch.checkExpr(cx.WithTypeAnnotation(want).WithHelpText("argument must match the parameter's declared type"), scope, a)
				if _, uerr := ch.ctx.Unify(v.Type, want, receiver.Type, ""); uerr != nil {
					ch.reportMismatch(a.Span(), want, v.Type, uerr)
				}
				args = append(args, v)
			}
			ret := sig.ReturnType
			if ch.ctx.GetType(ret).Tag == types.TagSelfType {
				ret = receiver.Type
			}
			return &TypedExpr{Kind: ExprCall, Type: ret, Span: n.Sp, Callee: types.DeclHandle(-1), Args: args}
		}
	}
	ch.diags.Errorf(diag.KindType, n.Sp,
		"no method %q found for type %s; no trait constraint provides it", n.Method, ch.renderType(receiver.Type))
	return recovery(ch.ctx, n.Sp)
}

func (ch *checker) checkStructExpr(cx AnalysisContext, scope *localScope, n *ast.StructExpr) *TypedExpr {
	h, err := namespace.Resolve(ch.ctx, cx.Namespace(), []string{n.TypeName})
	if err != nil {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "%s", err.Error())
		return recovery(ch.ctx, n.Sp)
	}
	decl := ch.ctx.GetDecl(h)
	if decl.Kind != types.DeclStruct {
		ch.diags.Errorf(diag.KindType, n.Sp, "%q is not a struct", n.TypeName)
		return recovery(ch.ctx, n.Sp)
	}

	target := h
	var typeArgs []types.TypeHandle
	sigma := types.Substitution{}
	if len(decl.TypeParams) > 0 {
		if len(n.TypeArgs) != len(decl.TypeParams) {
			ch.diags.Errorf(diag.KindType, n.Sp, "wrong number of type arguments: expected %d, found %d",
				len(decl.TypeParams), len(n.TypeArgs))
			return recovery(ch.ctx, n.Sp)
		}
		typeArgs = make([]types.TypeHandle, len(n.TypeArgs))
		for i, te := range n.TypeArgs {
			typeArgs[i] = ch.resolveTypeExpr(cx, te, ch.activeTypeParams)
			sigma[decl.TypeParams[i].Name] = typeArgs[i]
		}
		inst, merr := ch.ctx.Monomorphize(h, typeArgs)
		if merr != nil {
			ch.diags.Errorf(diag.KindType, n.Sp, "%s", merr.Error())
			return recovery(ch.ctx, n.Sp)
		}
		target = inst
	}

	// Every declared field exactly once, each value against the declared
	// field type after substitution.
	provided := make(map[string]*ast.StructFieldInit, len(n.Fields))
	for i := range n.Fields {
		f := &n.Fields[i]
		if _, dup := provided[f.Name]; dup {
			ch.diags.Errorf(diag.KindType, f.Sp, "field %q supplied more than once", f.Name)
			continue
		}
		provided[f.Name] = f
	}

	out := &TypedExpr{Kind: ExprStructLit, Type: ch.ctx.Struct(h, typeArgs), Span: n.Sp, Callee: target}
	for _, field := range decl.Struct.Fields {
		init, ok := provided[field.Name]
		if !ok {
			ch.diags.Errorf(diag.KindType, n.Sp, "missing field %q in struct expression", field.Name)
			out.Args = append(out.Args, recovery(ch.ctx, n.Sp))
			out.FieldNames = append(out.FieldNames, field.Name)
			continue
		}
		delete(provided, field.Name)
		want := ch.ctx.Substitute(field.Type, sigma)
		val := ch.checkExpr(cx.WithTypeAnnotation(want).WithHelpText("field value must match the declared field type"), scope, init.Value)
		if _, err := ch.ctx.Unify(val.Type, want, cx.SelfType(), ""); err != nil {
			ch.reportMismatch(init.Sp, want, val.Type, err)
		}
		out.Args = append(out.Args, val)
		out.FieldNames = append(out.FieldNames, field.Name)
	}
	for name, f := range provided {
		ch.diags.Errorf(diag.KindType, f.Sp, "struct %q has no field named %q", n.TypeName, name)
	}
	return out
}

func (ch *checker) checkEnumExpr(cx AnalysisContext, scope *localScope, n *ast.EnumExpr) *TypedExpr {
	h, err := namespace.Resolve(ch.ctx, cx.Namespace(), []string{n.TypeName})
	if err != nil {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "%s", err.Error())
		return recovery(ch.ctx, n.Sp)
	}
	decl := ch.ctx.GetDecl(h)
	if decl.Kind != types.DeclEnum {
		ch.diags.Errorf(diag.KindType, n.Sp, "%q is not an enum", n.TypeName)
		return recovery(ch.ctx, n.Sp)
	}

	variantIdx := -1
	for i, v := range decl.Enum.Variants {
		if v.Name == n.Variant {
			variantIdx = i
			break
		}
	}
	if variantIdx < 0 {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "enum %q has no variant %q", n.TypeName, n.Variant)
		return recovery(ch.ctx, n.Sp)
	}
	variant := decl.Enum.Variants[variantIdx]

	sigma := types.Substitution{}
	var typeArgs []types.TypeHandle
	if len(decl.TypeParams) > 0 {
		if len(n.TypeArgs) != len(decl.TypeParams) {
			ch.diags.Errorf(diag.KindType, n.Sp, "wrong number of type arguments: expected %d, found %d",
				len(decl.TypeParams), len(n.TypeArgs))
			return recovery(ch.ctx, n.Sp)
		}
		typeArgs = make([]types.TypeHandle, len(n.TypeArgs))
		for i, te := range n.TypeArgs {
			typeArgs[i] = ch.resolveTypeExpr(cx, te, ch.activeTypeParams)
			sigma[decl.TypeParams[i].Name] = typeArgs[i]
		}
	}

	out := &TypedExpr{Kind: ExprEnumLit, Type: ch.ctx.Enum(h, typeArgs), Span: n.Sp, Callee: h, Variant: variantIdx}
	hasPayload := variant.Payload.IsValid()
	if hasPayload && n.Payload == nil {
		ch.diags.Errorf(diag.KindType, n.Sp, "variant %q requires a payload", n.Variant)
	} else if !hasPayload && n.Payload != nil {
		ch.diags.Errorf(diag.KindType, n.Sp, "variant %q takes no payload", n.Variant)
	} else if hasPayload {
		want := ch.ctx.Substitute(variant.Payload, sigma)
		val := ch.checkExpr(cx.WithTypeAnnotation(want).WithHelpText("payload must match the variant's declared type"), scope, n.Payload)
		if _, err := ch.ctx.Unify(val.Type, want, cx.SelfType(), ""); err != nil {
			ch.reportMismatch(n.Payload.Span(), want, val.Type, err)
		}
		out.Args = append(out.Args, val)
	}
	return out
}

func (ch *checker) checkTuple(cx AnalysisContext, scope *localScope, n *ast.TupleExpr) *TypedExpr {
	// Push element expectations down when the annotation is a same-arity tuple.
	var expect []types.TypeHandle
	if ann := cx.TypeAnnotation(); ann.IsValid() {
		if d := ch.ctx.GetType(ann); d.Tag == types.TagTuple && len(d.Elems) == len(n.Elems) {
			expect = d.Elems
		}
	}
	elems := make([]*TypedExpr, len(n.Elems))
	tys := make([]types.TypeHandle, len(n.Elems))
	for i, e := range n.Elems {
		elemCx := cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText("")
		if expect != nil {
			elemCx = cx.WithTypeAnnotation(expect[i])
		}
		elems[i] = ch.checkExpr(elemCx, scope, e)
		tys[i] = ch.ctx.DefaultNumeric(elems[i].Type)
	}
	return &TypedExpr{Kind: ExprTuple, Type: ch.ctx.Tuple(tys), Span: n.Sp, Args: elems}
}

func (ch *checker) checkArray(cx AnalysisContext, scope *localScope, n *ast.ArrayExpr) *TypedExpr {
	if len(n.Elems) == 0 {
		ch.diags.Errorf(diag.KindType, n.Sp, "cannot infer the element type of an empty array")
		return recovery(ch.ctx, n.Sp)
	}
	first := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Elems[0])
	elemTy := ch.ctx.DefaultNumeric(first.Type)
	elems := []*TypedExpr{first}
	for _, e := range n.Elems[1:] {
		v := ch.checkExpr(cx.WithTypeAnnotation(elemTy).WithHelpText("array elements must share one type"), scope, e)
		if _, err := ch.ctx.Unify(v.Type, elemTy, cx.SelfType(), "array elements must share one type"); err != nil {
			ch.reportMismatch(e.Span(), elemTy, v.Type, err)
		}
		elems = append(elems, v)
	}
	return &TypedExpr{Kind: ExprArray, Type: ch.ctx.Array(elemTy, len(elems)), Span: n.Sp, Args: elems}
}

func (ch *checker) checkIndex(cx AnalysisContext, scope *localScope, n *ast.IndexExpr) *TypedExpr {
	base := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Base)
	idx := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.UInt(64)).WithHelpText("array indices are u64"), scope, n.Index)
	if _, err := ch.ctx.Unify(idx.Type, ch.ctx.UInt(64), cx.SelfType(), "array indices are u64"); err != nil {
		ch.reportMismatch(n.Index.Span(), ch.ctx.UInt(64), idx.Type, err)
	}
	d := ch.ctx.GetType(base.Type)
	var elem types.TypeHandle
	switch d.Tag {
	case types.TagArray, types.TagSlice:
		elem = d.Elem
	case types.TagErrorRecovery:
		return recovery(ch.ctx, n.Sp)
	default:
		ch.diags.Errorf(diag.KindType, n.Sp, "type %s cannot be indexed", ch.renderType(base.Type))
		return recovery(ch.ctx, n.Sp)
	}
	return &TypedExpr{Kind: ExprIndex, Type: elem, Span: n.Sp, Args: []*TypedExpr{base, idx}}
}

func (ch *checker) checkFieldAccess(cx AnalysisContext, scope *localScope, n *ast.FieldExpr) *TypedExpr {
	recv := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Receiver)
	d := ch.ctx.GetType(recv.Type)
	if d.Tag == types.TagErrorRecovery {
		return recovery(ch.ctx, n.Sp)
	}
	if d.Tag != types.TagStruct {
		ch.diags.Errorf(diag.KindType, n.Sp, "type %s has no fields", ch.renderType(recv.Type))
		return recovery(ch.ctx, n.Sp)
	}
	decl := ch.ctx.GetDecl(d.Decl)
	sigma := types.Substitution{}
	for i, p := range decl.TypeParams {
		if i < len(d.Args) {
			sigma[p.Name] = d.Args[i]
		}
	}
	for i, f := range decl.Struct.Fields {
		if f.Name == n.Field {
			return &TypedExpr{
				Kind: ExprFieldAccess, Type: ch.ctx.Substitute(f.Type, sigma), Span: n.Sp,
				Args: []*TypedExpr{recv}, Field: n.Field, FieldIndex: i,
			}
		}
	}
	ch.diags.Errorf(diag.KindType, n.Sp, "struct %q has no field named %q", decl.Name, n.Field)
	return recovery(ch.ctx, n.Sp)
}

func (ch *checker) checkTupleIndex(cx AnalysisContext, scope *localScope, n *ast.TupleIndexExpr) *TypedExpr {
	recv := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Receiver)
	d := ch.ctx.GetType(recv.Type)
	if d.Tag == types.TagErrorRecovery {
		return recovery(ch.ctx, n.Sp)
	}
	if d.Tag != types.TagTuple || n.Index >= len(d.Elems) {
		ch.diags.Errorf(diag.KindType, n.Sp, "type %s has no element %d", ch.renderType(recv.Type), n.Index)
		return recovery(ch.ctx, n.Sp)
	}
	return &TypedExpr{
		Kind: ExprTupleIndex, Type: d.Elems[n.Index], Span: n.Sp,
		Args: []*TypedExpr{recv}, FieldIndex: n.Index,
	}
}

func (ch *checker) checkBinary(cx AnalysisContext, scope *localScope, n *ast.BinaryExpr) *TypedExpr {
	switch n.Op {
	case ast.OpAnd, ast.OpOr:
		boolCx := cx.WithTypeAnnotation(ch.ctx.Bool()).WithHelpText("logical operands must be bool")
		l := ch.checkExpr(boolCx, scope, n.Left)
		r := ch.checkExpr(boolCx, scope, n.Right)
		ch.expectType(l, ch.ctx.Bool(), cx)
		ch.expectType(r, ch.ctx.Bool(), cx)
		return &TypedExpr{Kind: ExprBinary, Type: ch.ctx.Bool(), Span: n.Sp, BinOp: n.Op, Args: []*TypedExpr{l, r}}
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		l := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Left)
		r := ch.checkExpr(cx.WithTypeAnnotation(l.Type).WithHelpText("comparison operands must share one type"), scope, n.Right)
		if _, err := ch.ctx.Unify(r.Type, l.Type, cx.SelfType(), "comparison operands must share one type"); err != nil {
			ch.reportMismatch(n.Sp, l.Type, r.Type, err)
		}
		return &TypedExpr{Kind: ExprBinary, Type: ch.ctx.Bool(), Span: n.Sp, BinOp: n.Op, Args: []*TypedExpr{l, r}}
	default:
		// Arithmetic and bitwise: numeric unifies to a concrete operand
		// first, then both sides must agree.
		l := ch.checkExpr(cx.WithTypeAnnotation(cx.TypeAnnotation()).WithHelpText(""), scope, n.Left)
		r := ch.checkExpr(cx.WithTypeAnnotation(l.Type).WithHelpText("arithmetic operands must share one type"), scope, n.Right)
		unified, err := ch.ctx.Unify(l.Type, r.Type, cx.SelfType(), "arithmetic operands must share one type")
		if err != nil {
			ch.reportMismatch(n.Sp, l.Type, r.Type, err)
			return recovery(ch.ctx, n.Sp)
		}
		unified = ch.ctx.DefaultNumeric(unified)
		if d := ch.ctx.GetType(unified); d.Tag != types.TagUInt && d.Tag != types.TagErrorRecovery {
			ch.diags.Errorf(diag.KindType, n.Sp, "arithmetic requires integer operands, found %s", ch.renderType(unified))
			return recovery(ch.ctx, n.Sp)
		}
		return &TypedExpr{Kind: ExprBinary, Type: unified, Span: n.Sp, BinOp: n.Op, Args: []*TypedExpr{l, r}}
	}
}

func (ch *checker) checkUnary(cx AnalysisContext, scope *localScope, n *ast.UnaryExpr) *TypedExpr {
	inner := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Expr)
	switch n.Op {
	case ast.OpNot:
		ch.expectType(inner, ch.ctx.Bool(), cx)
		return &TypedExpr{Kind: ExprUnary, Type: ch.ctx.Bool(), Span: n.Sp, UnOp: n.Op, Args: []*TypedExpr{inner}}
	case ast.OpNeg, ast.OpBitNot:
		ty := ch.ctx.DefaultNumeric(inner.Type)
		if d := ch.ctx.GetType(ty); d.Tag != types.TagUInt && d.Tag != types.TagErrorRecovery {
			ch.diags.Errorf(diag.KindType, n.Sp, "operator requires an integer operand, found %s", ch.renderType(ty))
			return recovery(ch.ctx, n.Sp)
		}
		return &TypedExpr{Kind: ExprUnary, Type: ty, Span: n.Sp, UnOp: n.Op, Args: []*TypedExpr{inner}}
	case ast.OpRef:
		return &TypedExpr{Kind: ExprUnary, Type: ch.ctx.Ptr(inner.Type), Span: n.Sp, UnOp: n.Op, Args: []*TypedExpr{inner}}
	case ast.OpDeref:
		d := ch.ctx.GetType(inner.Type)
		if d.Tag != types.TagPtr {
			ch.diags.Errorf(diag.KindType, n.Sp, "cannot dereference non-pointer type %s", ch.renderType(inner.Type))
			return recovery(ch.ctx, n.Sp)
		}
		return &TypedExpr{Kind: ExprUnary, Type: d.Elem, Span: n.Sp, UnOp: n.Op, Args: []*TypedExpr{inner}}
	}
	return recovery(ch.ctx, n.Sp)
}

// checkBlock enters a child scope, checks statements sequentially, and
// types the block as its tail expression (unit if none).
func (ch *checker) checkBlock(cx AnalysisContext, scope *localScope, b *ast.Block, sp span.ID) *TypedExpr {
	inner := newLocalScope(scope)
	out := &TypedExpr{Kind: ExprBlock, Span: sp}
	for _, stmt := range b.Stmts {
		switch s := stmt.(type) {
		case *ast.LetStmt:
			out.Stmts = append(out.Stmts, ch.checkLet(cx, inner, s))
		case *ast.ExprStmt:
			// Statement position discards the value; check under unit-free
			// expectation so tail-position rules don't leak in.
			v := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), inner, s.Expr)
			out.Stmts = append(out.Stmts, TypedStatement{Init: v, Span: s.Sp})
		case *ast.ItemStmt:
			ch.diags.Errorf(diag.KindType, s.Sp, "nested item declarations are not supported inside function bodies")
		}
	}
	if b.Tail != nil {
		out.Tail = ch.checkExpr(cx, inner, b.Tail)
		out.Type = out.Tail.Type
	} else {
		out.Type = ch.ctx.Unit()
	}
	return out
}

func (ch *checker) checkLet(cx AnalysisContext, scope *localScope, s *ast.LetStmt) TypedStatement {
	declared := ch.ctx.Unknown()
	if s.Type != nil {
		declared = ch.resolveTypeExpr(cx, s.Type, ch.activeTypeParams)
	}
	init := ch.checkExpr(cx.WithTypeAnnotation(declared).WithHelpText("initializer must match the binding's annotation"), scope, s.Init)

	ty := init.Type
	if s.Type != nil {
		unified, err := ch.ctx.Unify(init.Type, declared, cx.SelfType(), "initializer must match the binding's annotation")
		if err != nil {
			ch.reportMismatch(s.Init.Span(), declared, init.Type, err)
		}
		ty = unified
	}
	ty = ch.ctx.DefaultNumeric(ty)
	scope.Define(s.Name, localBinding{Type: ty, Mutable: true})
	return TypedStatement{Name: s.Name, Mutable: true, Type: ty, Init: init, Span: s.Sp}
}

func (ch *checker) checkIf(cx AnalysisContext, scope *localScope, n *ast.IfExpr) *TypedExpr {
	cond := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Bool()).WithHelpText("if conditions must be bool"), scope, n.Cond)
	ch.expectType(cond, ch.ctx.Bool(), cx)

	thenExpr := ch.checkBlock(cx, scope, n.Then, n.Then.Sp)
	out := &TypedExpr{Kind: ExprIf, Span: n.Sp, Args: []*TypedExpr{cond}, Then: thenExpr}
	if n.Else == nil {
		// A one-armed if is a statement form; its type is unit and the then
		// branch must agree.
		if _, err := ch.ctx.Unify(thenExpr.Type, ch.ctx.Unit(), cx.SelfType(), "an if without an else must type to unit"); err != nil {
			ch.reportMismatch(n.Sp, ch.ctx.Unit(), thenExpr.Type, err)
		}
		out.Type = ch.ctx.Unit()
		return out
	}
	elseExpr := ch.checkExpr(cx.WithTypeAnnotation(thenExpr.Type).WithHelpText("if and else branches must produce one type"), scope, n.Else)
	unified, err := ch.ctx.Unify(elseExpr.Type, thenExpr.Type, cx.SelfType(), "if and else branches must produce one type")
	if err != nil {
		ch.reportMismatch(n.Sp, thenExpr.Type, elseExpr.Type, err)
	}
	out.Else = elseExpr
	out.Type = ch.ctx.DefaultNumeric(unified)
	return out
}

func (ch *checker) checkWhile(cx AnalysisContext, scope *localScope, n *ast.WhileExpr) *TypedExpr {
	cond := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Bool()).WithHelpText("while conditions must be bool"), scope, n.Cond)
	ch.expectType(cond, ch.ctx.Bool(), cx)
	body := ch.checkBlock(cx.WithTypeAnnotation(ch.ctx.Unit()).WithHelpText("a loop body must type to unit"), scope, n.Body, n.Body.Sp)
	if _, err := ch.ctx.Unify(body.Type, ch.ctx.Unit(), cx.SelfType(), "a loop body must type to unit"); err != nil {
		ch.reportMismatch(n.Sp, ch.ctx.Unit(), body.Type, err)
	}
	return &TypedExpr{Kind: ExprWhile, Type: ch.ctx.Unit(), Span: n.Sp, Args: []*TypedExpr{cond}, Then: body}
}

func (ch *checker) checkReassign(cx AnalysisContext, scope *localScope, n *ast.ReassignExpr) *TypedExpr {
	// storage.field writes get their own node, symmetrical with reads.
	if v, ok := n.LHS.(*ast.VarExpr); ok && len(v.Path) == 2 && v.Path[0] == "storage" {
		h, found := cx.Namespace().LookupLocal("storage." + v.Path[1])
		if !found {
			ch.diags.Errorf(diag.KindNameResolution, n.Sp, "no storage field named %q", v.Path[1])
			return recovery(ch.ctx, n.Sp)
		}
		ch.sawWrite = true
		fieldTy := ch.ctx.GetDecl(h).StorageField.Type
		rhs := ch.checkExpr(cx.WithTypeAnnotation(fieldTy).WithHelpText("stored value must match the field's declared type"), scope, n.RHS)
		if _, err := ch.ctx.Unify(rhs.Type, fieldTy, cx.SelfType(), ""); err != nil {
			ch.reportMismatch(n.RHS.Span(), fieldTy, rhs.Type, err)
		}
		return &TypedExpr{Kind: ExprStorageWrite, Type: ch.ctx.Unit(), Span: n.Sp, StorageField: h, Args: []*TypedExpr{rhs}}
	}

	lhs, mutable := ch.checkAssignable(cx, scope, n.LHS)
	if lhs.Kind == ExprRecovery {
		return lhs
	}
	if !mutable {
		ch.diags.Errorf(diag.KindType, n.Sp, "cannot assign to an immutable binding")
	}
	rhs := ch.checkExpr(cx.WithTypeAnnotation(lhs.Type).WithHelpText("assigned value must match the target's type"), scope, n.RHS)
	if _, err := ch.ctx.Unify(rhs.Type, lhs.Type, cx.SelfType(), "assigned value must match the target's type"); err != nil {
		ch.reportMismatch(n.RHS.Span(), lhs.Type, rhs.Type, err)
	}
	return &TypedExpr{Kind: ExprReassign, Type: ch.ctx.Unit(), Span: n.Sp, Args: []*TypedExpr{lhs, rhs}}
}

// checkAssignable restricts a reassignment LHS to the assignable forms:
// a local variable, a field projection, or an index expression rooted at
// one. Anything else is rejected.
func (ch *checker) checkAssignable(cx AnalysisContext, scope *localScope, e ast.Expression) (*TypedExpr, bool) {
	switch n := e.(type) {
	case *ast.VarExpr:
		if len(n.Path) == 1 {
			if b, ok := scope.Lookup(n.Path[0]); ok {
				return &TypedExpr{Kind: ExprVariable, Type: b.Type, Span: n.Sp, VarName: n.Path[0]}, b.Mutable
			}
		}
		ch.diags.Errorf(diag.KindType, n.Sp, "cannot assign to %q; not a local variable", strings.Join(n.Path, "::"))
		return recovery(ch.ctx, n.Sp), false
	case *ast.FieldExpr:
		inner, mutable := ch.checkAssignable(cx, scope, n.Receiver)
		if inner.Kind == ExprRecovery {
			return inner, false
		}
		out := ch.checkFieldAccess(cx, scope, n)
		return out, mutable
	case *ast.IndexExpr:
		inner, mutable := ch.checkAssignable(cx, scope, n.Base)
		if inner.Kind == ExprRecovery {
			return inner, false
		}
		out := ch.checkIndex(cx, scope, n)
		return out, mutable
	case *ast.TupleIndexExpr:
		inner, mutable := ch.checkAssignable(cx, scope, n.Receiver)
		if inner.Kind == ExprRecovery {
			return inner, false
		}
		out := ch.checkTupleIndex(cx, scope, n)
		return out, mutable
	default:
		ch.diags.Errorf(diag.KindType, e.Span(), "left-hand side of an assignment must be a variable, field, or index")
		return recovery(ch.ctx, e.Span()), false
	}
}

// expectType unifies an already-checked node against a required type,
// reporting on failure. Shorthand for the places where the expectation is
// structural (conditions, logical operands) rather than flowing inward.
func (ch *checker) expectType(e *TypedExpr, want types.TypeHandle, cx AnalysisContext) {
	if _, err := ch.ctx.Unify(e.Type, want, cx.SelfType(), ""); err != nil {
		ch.reportMismatch(e.Span, want, e.Type, err)
	}
}

func (ch *checker) reportMismatch(sp span.ID, expected, actual types.TypeHandle, err error) {
	var help string
	if me, ok := err.(*types.MismatchedTypeError); ok {
		help = me.Help
	}
	ch.diags.Report(diag.Diagnostic{
		Kind:    diag.KindType,
		Primary: sp,
		Message: "mismatched types: expected " + ch.renderType(expected) + ", found " + ch.renderType(actual),
		Help:    help,
	})
}

// renderType renders a handle for diagnostics; compact, user-syntax-first.
func (ch *checker) renderType(t types.TypeHandle) string {
	if !t.IsValid() {
		return "<invalid>"
	}
	d := ch.ctx.GetType(t)
	switch d.Tag {
	case types.TagUnit:
		return "()"
	case types.TagBool:
		return "bool"
	case types.TagUInt:
		return "u" + strconv.Itoa(d.Width)
	case types.TagB256:
		return "b256"
	case types.TagRawPtr:
		return "raw_ptr"
	case types.TagPtr:
		return "*" + ch.renderType(d.Elem)
	case types.TagRawSlice:
		return "raw_slice"
	case types.TagSlice:
		return "[" + ch.renderType(d.Elem) + "]"
	case types.TagStringN:
		return "str[" + strconv.Itoa(d.Width) + "]"
	case types.TagStringSlice:
		return "str"
	case types.TagArray:
		return "[" + ch.renderType(d.Elem) + "; " + strconv.Itoa(d.ArrayLen) + "]"
	case types.TagTuple:
		parts := make([]string, len(d.Elems))
		for i, e := range d.Elems {
			parts[i] = ch.renderType(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case types.TagStruct, types.TagEnum:
		name := ch.ctx.GetDecl(d.Decl).Name
		if len(d.Args) == 0 {
			return name
		}
		parts := make([]string, len(d.Args))
		for i, a := range d.Args {
			parts[i] = ch.renderType(a)
		}
		return name + "<" + strings.Join(parts, ", ") + ">"
	case types.TagGeneric:
		return d.Name
	case types.TagSelfType:
		return "Self"
	case types.TagContract:
		return "Contract"
	case types.TagUnknown:
		return "_"
	case types.TagNumeric:
		return "{integer}"
	case types.TagTraitType:
		return d.Name
	case types.TagErrorRecovery:
		return "<error>"
	}
	return "?"
}
