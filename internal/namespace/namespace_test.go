package namespace

import (
	"testing"

	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

func newTestSetup() (*types.Context, *Module) {
	return types.NewContext(span.NewInterner("test://unit")), NewRoot("root")
}

func TestDeclareReportsShadowing(t *testing.T) {
	ctx, root := newTestSetup()
	a := ctx.DeclareConst("X", span.None(), types.VisPublic)
	b := ctx.DeclareConst("X", span.None(), types.VisPublic)

	_, existed := root.Declare("X", a)
	if existed {
		t.Fatal("first declaration must not report an existing symbol")
	}
	prev, existed := root.Declare("X", b)
	if !existed || prev != a {
		t.Fatal("second declaration of the same name must report the first as shadowed")
	}
}

func TestResolveFindsSymbolInCurrentModule(t *testing.T) {
	ctx, root := newTestSetup()
	fn := ctx.DeclareFunction("foo", span.None(), types.VisPrivate, nil)
	root.Declare("foo", fn)

	got, err := Resolve(ctx, root, []string{"foo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fn {
		t.Fatal("resolved handle should match the declared function")
	}
}

func TestResolvePrivateSymbolFromOutsideFails(t *testing.T) {
	ctx, root := newTestSetup()
	child := root.Child("inner")
	fn := ctx.DeclareFunction("secret", span.None(), types.VisPrivate, nil)
	child.Declare("secret", fn)

	_, err := Resolve(ctx, root, []string{"inner", "secret"})
	if err == nil {
		t.Fatal("expected an ImportPrivateSymbolError")
	}
	if _, ok := err.(*ImportPrivateSymbolError); !ok {
		t.Fatalf("expected *ImportPrivateSymbolError, got %T", err)
	}
}

func TestResolvePublicSymbolFromChildModuleSucceeds(t *testing.T) {
	ctx, root := newTestSetup()
	child := root.Child("inner")
	fn := ctx.DeclareFunction("open", span.None(), types.VisPublic, nil)
	child.Declare("open", fn)

	got, err := Resolve(ctx, root, []string{"inner", "open"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fn {
		t.Fatal("resolved handle should match the public function")
	}
}

func TestResolveUnresolvedSuggestsNearestCaseInsensitiveMatch(t *testing.T) {
	ctx, root := newTestSetup()
	fn := ctx.DeclareFunction("MyFunc", span.None(), types.VisPublic, nil)
	root.Declare("MyFunc", fn)

	_, err := Resolve(ctx, root, []string{"myfunc"})
	upe, ok := err.(*UnresolvedPathError)
	if !ok {
		t.Fatalf("expected *UnresolvedPathError, got %T", err)
	}
	if upe.Suggestion != "MyFunc" {
		t.Fatalf("expected suggestion %q, got %q", "MyFunc", upe.Suggestion)
	}
}

func TestTraitMapRejectsConflictingImpls(t *testing.T) {
	ctx, _ := newTestSetup()
	tm := NewTraitMap()
	structDecl := ctx.DeclareStruct("Foo", span.None(), types.VisPublic, nil)
	fooTy := ctx.Struct(structDecl, nil)
	method := ctx.DeclareFunction("go", span.None(), types.VisPublic, nil)

	key := TraitKey{TraitName: "Runnable", ImplType: fooTy}
	if err := tm.Insert(ctx, key, map[string]types.DeclHandle{"go": method}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}

	method2 := ctx.DeclareFunction("go", span.None(), types.VisPublic, nil)
	err := tm.Insert(ctx, key, map[string]types.DeclHandle{"go": method2})
	if err == nil {
		t.Fatal("expected a conflicting-impl error on the duplicate trait impl")
	}
	if _, ok := err.(*ConflictingImplError); !ok {
		t.Fatalf("expected *ConflictingImplError, got %T", err)
	}
}

func TestTraitMapAllowsImplSelfAlongsideTraitImpl(t *testing.T) {
	ctx, _ := newTestSetup()
	tm := NewTraitMap()
	structDecl := ctx.DeclareStruct("Foo", span.None(), types.VisPublic, nil)
	fooTy := ctx.Struct(structDecl, nil)

	traitMethod := ctx.DeclareFunction("go", span.None(), types.VisPublic, nil)
	if err := tm.Insert(ctx, TraitKey{TraitName: "Runnable", ImplType: fooTy}, map[string]types.DeclHandle{"go": traitMethod}); err != nil {
		t.Fatalf("unexpected error inserting trait impl: %v", err)
	}

	selfMethod := ctx.DeclareFunction("helper", span.None(), types.VisPublic, nil)
	err := tm.Insert(ctx, TraitKey{ImplType: fooTy, IsImplSelf: true}, map[string]types.DeclHandle{"helper": selfMethod})
	if err != nil {
		t.Fatalf("impl self block must not conflict with an unrelated trait impl: %v", err)
	}
}

func TestTraitMapSatisfiesConstraint(t *testing.T) {
	ctx, _ := newTestSetup()
	tm := NewTraitMap()
	structDecl := ctx.DeclareStruct("Foo", span.None(), types.VisPublic, nil)
	fooTy := ctx.Struct(structDecl, nil)
	method := ctx.DeclareFunction("go", span.None(), types.VisPublic, nil)

	tm.Insert(ctx, TraitKey{TraitName: "Runnable", ImplType: fooTy}, map[string]types.DeclHandle{"go": method})

	if err := tm.Satisfies(ctx, "Runnable", nil, fooTy); err != nil {
		t.Fatalf("expected Runnable to be satisfied for Foo: %v", err)
	}

	barDecl := ctx.DeclareStruct("Bar", span.None(), types.VisPublic, nil)
	barTy := ctx.Struct(barDecl, nil)
	if err := tm.Satisfies(ctx, "Runnable", nil, barTy); err == nil {
		t.Fatal("expected Runnable to be unsatisfied for Bar")
	}
}

func TestMethodsOnCollectsInherentAndInScopeTraitImpls(t *testing.T) {
	ctx, _ := newTestSetup()
	tm := NewTraitMap()
	structDecl := ctx.DeclareStruct("Foo", span.None(), types.VisPublic, nil)
	fooTy := ctx.Struct(structDecl, nil)

	inherent := ctx.DeclareFunction("helper", span.None(), types.VisPublic, nil)
	tm.Insert(ctx, TraitKey{ImplType: fooTy, IsImplSelf: true}, map[string]types.DeclHandle{"helper": inherent})

	traitMethod := ctx.DeclareFunction("go", span.None(), types.VisPublic, nil)
	tm.Insert(ctx, TraitKey{TraitName: "Runnable", ImplType: fooTy}, map[string]types.DeclHandle{"go": traitMethod})

	inScope := func(name string) bool { return name == "Runnable" }
	methods := tm.MethodsOn(ctx, fooTy, inScope)
	if len(methods) != 2 {
		t.Fatalf("expected 2 methods (inherent + in-scope trait), got %d", len(methods))
	}

	outOfScope := func(name string) bool { return false }
	methods = tm.MethodsOn(ctx, fooTy, outOfScope)
	if len(methods) != 1 {
		t.Fatalf("expected only the inherent method when the trait is out of scope, got %d", len(methods))
	}
}

func TestConflictingImplIsNotInsertedAndLookupKeepsFirst(t *testing.T) {
	ctx, _ := newTestSetup()
	tm := NewTraitMap()
	structDecl := ctx.DeclareStruct("Foo", span.None(), types.VisPublic, nil)
	fooTy := ctx.Struct(structDecl, nil)

	first := ctx.DeclareFunction("go", span.None(), types.VisPublic, nil)
	key := TraitKey{TraitName: "Runnable", ImplType: fooTy}
	if err := tm.Insert(ctx, key, map[string]types.DeclHandle{"go": first}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}

	second := ctx.DeclareFunction("go", span.None(), types.VisPublic, nil)
	if err := tm.Insert(ctx, key, map[string]types.DeclHandle{"go": second}); err == nil {
		t.Fatal("expected the conflicting impl to be rejected")
	}

	methods := tm.MethodsOn(ctx, fooTy, func(string) bool { return true })
	if len(methods) != 1 {
		t.Fatalf("expected only the first impl's method after the conflict, got %d", len(methods))
	}
	if methods[0].Decl != first {
		t.Fatalf("lookup returned the rejected impl's declaration")
	}
}
