package semantic

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

type testEnv struct {
	spans *span.Interner
	ctx   *types.Context
	ns    *namespace.Module
	diags *diag.Handler
	next  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	spans := span.NewInterner("test.sw")
	return &testEnv{
		spans: spans,
		ctx:   types.NewContext(spans),
		ns:    namespace.NewRoot("test"),
		diags: diag.NewHandler(),
	}
}

func (e *testEnv) sp() span.ID {
	e.next += 10
	return e.spans.Insert(span.Range{Start: e.next, End: e.next + 5})
}

func intLit(e *testEnv, text, suffix string) *ast.LiteralExpr {
	return &ast.LiteralExpr{Kind: ast.LitInt, Int: text, Suffix: suffix, Sp: e.sp()}
}

func fnOf(e *testEnv, name string, ret ast.TypeExpr, tail ast.Expression) *ast.FnItem {
	return &ast.FnItem{
		Name:       name,
		ReturnType: ret,
		Body:       &ast.Block{Tail: tail, Sp: e.sp()},
		Sp:         e.sp(),
	}
}

func u64Ty(e *testEnv) *ast.PrimitiveTypeExpr {
	return &ast.PrimitiveTypeExpr{Keyword: ast.PrimU64, Sp: e.sp()}
}

func TestIdentityScript(t *testing.T) {
	e := newTestEnv(t)
	mod := &ast.Module{
		Kind:  ast.KindScript,
		Name:  "main",
		Items: []ast.Item{fnOf(e, "main", u64Ty(e), intLit(e, "42", ""))},
		Sp:    e.sp(),
	}

	typed := Check(mod, e.ns, e.ctx, e.diags)
	if !e.diags.Ok() {
		t.Fatalf("unexpected errors: %v", e.diags.Errors())
	}
	if len(typed.Functions) != 1 {
		t.Fatalf("expected 1 typed function, got %d", len(typed.Functions))
	}
	fn := typed.Functions[0]
	if fn.Name != "main" || len(fn.Params) != 0 {
		t.Fatalf("unexpected signature for %q", fn.Name)
	}
	if e.ctx.GetType(fn.Return).Tag != types.TagUInt || e.ctx.GetType(fn.Return).Width != 64 {
		t.Fatalf("expected u64 return, got %v", e.ctx.GetType(fn.Return))
	}
	if fn.Body.Tail == nil || fn.Body.Tail.Kind != ExprLiteral || fn.Body.Tail.Literal.Int != 42 {
		t.Fatalf("expected Literal(42) body tail")
	}
	// The unsuffixed literal must have defaulted to u64, not stayed numeric.
	if got := e.ctx.DefaultNumeric(fn.Body.Tail.Type); e.ctx.GetType(got).Width != 64 {
		t.Fatalf("literal did not default to u64")
	}
}

func TestGenericSwapMonomorphized(t *testing.T) {
	e := newTestEnv(t)
	tupleTT := &ast.TupleTypeExpr{Elems: []ast.TypeExpr{
		&ast.NamedTypeExpr{Path: []string{"T"}, Sp: e.sp()},
		&ast.NamedTypeExpr{Path: []string{"T"}, Sp: e.sp()},
	}, Sp: e.sp()}
	swap := &ast.FnItem{
		Name:       "swap",
		TypeParams: []ast.TypeParam{{Name: "T", Sp: e.sp()}},
		Params: []ast.Param{
			{Name: "a", Type: &ast.NamedTypeExpr{Path: []string{"T"}, Sp: e.sp()}, Sp: e.sp()},
			{Name: "b", Type: &ast.NamedTypeExpr{Path: []string{"T"}, Sp: e.sp()}, Sp: e.sp()},
		},
		ReturnType: tupleTT,
		Body: &ast.Block{Tail: &ast.TupleExpr{Elems: []ast.Expression{
			&ast.VarExpr{Path: []string{"b"}, Sp: e.sp()},
			&ast.VarExpr{Path: []string{"a"}, Sp: e.sp()},
		}, Sp: e.sp()}, Sp: e.sp()},
		Sp: e.sp(),
	}
	mainFn := fnOf(e, "main",
		&ast.TupleTypeExpr{Elems: []ast.TypeExpr{u64Ty(e), u64Ty(e)}, Sp: e.sp()},
		&ast.CallExpr{
			Callee: &ast.VarExpr{Path: []string{"swap"}, Sp: e.sp()},
			Args:   []ast.Expression{intLit(e, "1", "u64"), intLit(e, "2", "u64")},
			Sp:     e.sp(),
		})
	mod := &ast.Module{Kind: ast.KindScript, Name: "main", Items: []ast.Item{swap, mainFn}, Sp: e.sp()}

	typed := Check(mod, e.ns, e.ctx, e.diags)
	if !e.diags.Ok() {
		t.Fatalf("unexpected errors: %v", e.diags.Errors())
	}

	var names []string
	for _, fn := range typed.Functions {
		names = append(names, fn.Name)
	}
	want := []string{"main", "swap$u64"}
	if diff := cmp.Diff(want, names, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("typed function names mismatch (-want +got):\n%s", diff)
	}

	// No generic placeholder may survive in the instance's signature.
	for _, fn := range typed.Functions {
		if fn.Name != "swap$u64" {
			continue
		}
		for _, p := range fn.Params {
			if e.ctx.HasPlaceholder(p.Type) || e.ctx.GetType(p.Type).Tag == types.TagGeneric {
				t.Fatalf("parameter %q still generic after monomorphization", p.Name)
			}
		}
	}
}

// enumModule builds `enum E { A, B, C }` plus a function matching over a
// subset of its variants.
func enumModule(e *testEnv, variants []string) *ast.Module {
	enum := &ast.EnumItem{Name: "E", Sp: e.sp()}
	for _, v := range []string{"A", "B", "C"} {
		enum.Variants = append(enum.Variants, ast.EnumVariant{Name: v, Sp: e.sp()})
	}
	var arms []ast.MatchArm
	for i, v := range variants {
		arms = append(arms, ast.MatchArm{
			Pattern: &ast.EnumPattern{TypeName: "E", Variant: v, Sp: e.sp()},
			Body:    intLit(e, []string{"1", "2", "3", "4"}[i], "u64"),
			Sp:      e.sp(),
		})
	}
	f := &ast.FnItem{
		Name:       "f",
		Params:     []ast.Param{{Name: "e", Type: &ast.NamedTypeExpr{Path: []string{"E"}, Sp: e.sp()}, Sp: e.sp()}},
		ReturnType: u64Ty(e),
		Body: &ast.Block{Tail: &ast.MatchExpr{
			Scrutinee: &ast.VarExpr{Path: []string{"e"}, Sp: e.sp()},
			Arms:      arms,
			Sp:        e.sp(),
		}, Sp: e.sp()},
		Sp: e.sp(),
	}
	return &ast.Module{Kind: ast.KindLibrary, Name: "m", Items: []ast.Item{enum, f}, Sp: e.sp()}
}

func TestMatchExhaustiveness(t *testing.T) {
	// Two of three variants: non-exhaustive, mentioning C.
	e := newTestEnv(t)
	Check(enumModule(e, []string{"A", "B"}), e.ns, e.ctx, e.diags)
	errs := e.diags.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
	if errs[0].Kind != diag.KindExhaustiveness || !strings.Contains(errs[0].Message, "C") {
		t.Fatalf("expected a non-exhaustive error naming variant C, got %q", errs[0].Message)
	}

	// All three variants: exhaustive, no diagnostics at all.
	e = newTestEnv(t)
	Check(enumModule(e, []string{"A", "B", "C"}), e.ns, e.ctx, e.diags)
	if len(e.diags.All()) != 0 {
		t.Fatalf("expected a clean check, got %v", e.diags.All())
	}

	// A fourth arm after full coverage: unreachable warning, still no error.
	e = newTestEnv(t)
	mod := enumModule(e, []string{"A", "B", "C"})
	f := mod.Items[1].(*ast.FnItem)
	m := f.Body.Tail.(*ast.MatchExpr)
	m.Arms = append(m.Arms, ast.MatchArm{
		Pattern: &ast.WildcardPattern{Sp: e.sp()},
		Body:    intLit(e, "4", "u64"),
		Sp:      e.sp(),
	})
	Check(mod, e.ns, e.ctx, e.diags)
	if !e.diags.Ok() {
		t.Fatalf("unexpected errors: %v", e.diags.Errors())
	}
	warnings := e.diags.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "unreachable") {
		t.Fatalf("expected one unreachable-arm warning, got %v", warnings)
	}
}

func TestTraitConstraintUnsatisfied(t *testing.T) {
	e := newTestEnv(t)
	b256Ty := func() ast.TypeExpr { return &ast.PrimitiveTypeExpr{Keyword: ast.PrimB256, Sp: e.sp()} }

	trait := &ast.TraitItem{
		Name: "Hashable",
		Methods: []*ast.FnItem{{
			Name:       "h",
			Params:     []ast.Param{{Name: "self", IsSelf: true, Sp: e.sp()}},
			ReturnType: b256Ty(),
			Sp:         e.sp(),
		}},
		Sp: e.sp(),
	}
	f := &ast.FnItem{
		Name:       "f",
		TypeParams: []ast.TypeParam{{Name: "T", Constraints: []ast.TraitConstraint{{TraitName: "Hashable", Sp: e.sp()}}, Sp: e.sp()}},
		Params:     []ast.Param{{Name: "x", Type: &ast.NamedTypeExpr{Path: []string{"T"}, Sp: e.sp()}, Sp: e.sp()}},
		ReturnType: b256Ty(),
		Body: &ast.Block{Tail: &ast.MethodCallExpr{
			Receiver: &ast.VarExpr{Path: []string{"x"}, Sp: e.sp()},
			Method:   "h",
			Sp:       e.sp(),
		}, Sp: e.sp()},
		Sp: e.sp(),
	}
	mainFn := fnOf(e, "main", b256Ty(), &ast.CallExpr{
		Callee: &ast.VarExpr{Path: []string{"f"}, Sp: e.sp()},
		Args:   []ast.Expression{intLit(e, "7", "u64")},
		Sp:     e.sp(),
	})
	mod := &ast.Module{Kind: ast.KindScript, Name: "main", Items: []ast.Item{trait, f, mainFn}, Sp: e.sp()}

	Check(mod, e.ns, e.ctx, e.diags)
	errs := e.diags.Errors()
	found := false
	for _, err := range errs {
		if strings.Contains(err.Message, "u64 does not implement Hashable") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a constraint error mentioning u64 and Hashable, got %v", errs)
	}
}

func TestPurityMismatch(t *testing.T) {
	e := newTestEnv(t)
	storage := &ast.StorageItem{Fields: []ast.StorageField{{
		Name: "counter", Type: u64Ty(e), Init: intLit(e, "0", "u64"), Sp: e.sp(),
	}}, Sp: e.sp()}
	// Reads storage without declaring #[storage(read)].
	impure := &ast.FnItem{
		Name:       "peek",
		ReturnType: u64Ty(e),
		Purity:     ast.PurityPure,
		Body:       &ast.Block{Tail: &ast.VarExpr{Path: []string{"storage", "counter"}, Sp: e.sp()}, Sp: e.sp()},
		Sp:         e.sp(),
	}
	mod := &ast.Module{Kind: ast.KindContract, Name: "c", Items: []ast.Item{storage, impure}, Sp: e.sp()}

	Check(mod, e.ns, e.ctx, e.diags)
	errs := e.diags.Errors()
	if len(errs) != 1 || errs[0].Kind != diag.KindPurity {
		t.Fatalf("expected one purity error, got %v", errs)
	}
}

func TestStorageKeyDerivation(t *testing.T) {
	e := newTestEnv(t)
	storage := &ast.StorageItem{Fields: []ast.StorageField{
		{Name: "a", Type: u64Ty(e), Init: intLit(e, "0", "u64"), Sp: e.sp()},
		{Name: "b", Type: u64Ty(e), Init: intLit(e, "0", "u64"), Sp: e.sp()},
	}, Sp: e.sp()}
	mod := &ast.Module{Kind: ast.KindContract, Name: "c", Items: []ast.Item{storage}, Sp: e.sp()}

	typed := Check(mod, e.ns, e.ctx, e.diags)
	if !e.diags.Ok() {
		t.Fatalf("unexpected errors: %v", e.diags.Errors())
	}
	if len(typed.Storage) != 2 {
		t.Fatalf("expected 2 storage fields")
	}
	ka := e.ctx.GetDecl(typed.Storage[0]).StorageField.Key
	kb := e.ctx.GetDecl(typed.Storage[1]).StorageField.Key
	if ka == kb {
		t.Fatalf("distinct fields derived the same storage key")
	}
	if ka == ([32]byte{}) || kb == ([32]byte{}) {
		t.Fatalf("storage key left unset")
	}
}

// hashLib builds a library module declaring `pub trait Hash` and an
// `impl Hash for u64`.
func hashLib(e *testEnv) *ast.Module {
	selfParam := func() ast.Param { return ast.Param{Name: "self", IsSelf: true, Sp: e.sp()} }
	trait := &ast.TraitItem{
		Name: "Hash", Vis: ast.VisPublic,
		Methods: []*ast.FnItem{{
			Name: "h", Params: []ast.Param{selfParam()}, ReturnType: u64Ty(e), Sp: e.sp(),
		}},
		Sp: e.sp(),
	}
	impl := &ast.ImplTraitItem{
		TraitName:      "Hash",
		ImplementingTy: u64Ty(e),
		Methods: []*ast.FnItem{{
			Name: "h", Params: []ast.Param{selfParam()}, ReturnType: u64Ty(e),
			Body: &ast.Block{Tail: intLit(e, "42", "u64"), Sp: e.sp()}, Sp: e.sp(),
		}},
		Sp: e.sp(),
	}
	return &ast.Module{Kind: ast.KindLibrary, Name: "lib", Items: []ast.Item{trait, impl}, Sp: e.sp()}
}

// A trait impl is only usable where its trait is imported or inherent:
// calling the method without any `use` of the defining library must fail,
// and importing the module plus the trait must make the same call succeed.
func TestTraitMethodVisibilityFollowsImports(t *testing.T) {
	mainCall := func(e *testEnv) *ast.FnItem {
		return fnOf(e, "main", u64Ty(e), &ast.MethodCallExpr{
			Receiver: intLit(e, "7", "u64"), Method: "h", Sp: e.sp(),
		})
	}

	// No imports at all: the trait is neither inherent nor imported, so
	// the method must not resolve.
	e := newTestEnv(t)
	Check(hashLib(e), e.ns.Child("lib"), e.ctx, e.diags)
	if !e.diags.Ok() {
		t.Fatalf("library failed to check: %v", e.diags.Errors())
	}
	root := &ast.Module{Kind: ast.KindScript, Name: "main", Items: []ast.Item{mainCall(e)}, Sp: e.sp()}
	Check(root, e.ns, e.ctx, e.diags)
	errs := e.diags.Errors()
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "no method") {
		t.Fatalf("expected the non-imported trait's method to be rejected, got %v", errs)
	}

	// `use lib; use lib::Hash;` brings the impl index and the trait name
	// into scope; the identical call now checks cleanly.
	e = newTestEnv(t)
	Check(hashLib(e), e.ns.Child("lib"), e.ctx, e.diags)
	root = &ast.Module{
		Kind: ast.KindScript, Name: "main",
		Items: []ast.Item{
			&ast.UseItem{Path: []string{"lib"}, Sp: e.sp()},
			&ast.UseItem{Path: []string{"lib", "Hash"}, Sp: e.sp()},
			mainCall(e),
		},
		Sp: e.sp(),
	}
	Check(root, e.ns, e.ctx, e.diags)
	if !e.diags.Ok() {
		t.Fatalf("imported trait's method should resolve: %v", e.diags.Errors())
	}
}
