package types

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vmlang/corec/internal/span"
)

func newTestContext() *Context {
	return NewContext(span.NewInterner("test://unit"))
}

func TestPrimitiveTypesAreMemoized(t *testing.T) {
	c := newTestContext()
	if c.Unit() != c.Unit() {
		t.Fatal("Unit() should return the same handle on repeated calls")
	}
	if c.UInt(64) != c.UInt(64) {
		t.Fatal("UInt(64) should be memoized")
	}
	if c.UInt(64) == c.UInt(8) {
		t.Fatal("UInt(64) and UInt(8) must be distinct handles")
	}
}

func TestInsertTypeNeverDeduplicates(t *testing.T) {
	c := newTestContext()
	a := c.InsertType(TypeDescriptor{Tag: TagBool})
	b := c.InsertType(TypeDescriptor{Tag: TagBool})
	if a == b {
		t.Fatal("InsertType must return a fresh handle on every call")
	}
	if !c.StructurallyEqual(a, b) {
		t.Fatal("two freshly inserted Bool descriptors must be structurally equal")
	}
}

func TestUnifyNumericDefaultsToOperand(t *testing.T) {
	c := newTestContext()
	u32 := c.UInt(32)
	num := c.Numeric()

	got, err := c.Unify(num, u32, TypeHandle(invalidHandle), "")
	if err != nil {
		t.Fatalf("unexpected unify error: %v", err)
	}
	if !c.StructurallyEqual(got, u32) {
		t.Fatalf("Numeric must unify to the concrete operand type")
	}
}

func TestUnifyMismatchedTagsFail(t *testing.T) {
	c := newTestContext()
	_, err := c.Unify(c.Bool(), c.UInt(8), TypeHandle(invalidHandle), "")
	if err == nil {
		t.Fatal("expected a MismatchedTypeError")
	}
	var mte *MismatchedTypeError
	if !errors.As(err, &mte) {
		t.Fatalf("expected *MismatchedTypeError, got %T", err)
	}
}

func TestUnifySelfTypeBindsToActiveSelf(t *testing.T) {
	c := newTestContext()
	decl := c.DeclareStruct("Foo", span.None(), VisPublic, nil)
	self := c.Struct(decl, nil)

	got, err := c.Unify(c.SelfType(), self, self, "")
	if err != nil {
		t.Fatalf("unexpected error unifying SelfType with the active self type: %v", err)
	}
	if !c.StructurallyEqual(got, self) {
		t.Fatal("SelfType should unify to the concrete active self type")
	}

	_, err = c.Unify(c.SelfType(), self, TypeHandle(invalidHandle), "")
	if err == nil {
		t.Fatal("SelfType must not unify when no self type is active")
	}
}

func TestSubsetAllowsInferenceVariablesOnExpected(t *testing.T) {
	c := newTestContext()
	if !c.Subset(c.UInt(64), c.Unknown()) {
		t.Fatal("any concrete type is a subset of Unknown")
	}
	if !c.Subset(c.UInt(64), c.Numeric()) {
		t.Fatal("a concrete unsigned integer is a subset of Numeric")
	}
	if c.Subset(c.Bool(), c.Numeric()) {
		t.Fatal("bool is not a subset of Numeric")
	}
}

func TestSubstituteRewritesGenericOccurrences(t *testing.T) {
	c := newTestContext()
	tParam := c.Generic("T", nil)
	sliceOfT := c.Slice(tParam)

	u64 := c.UInt(64)
	sigma := Substitution{"T": u64}

	got := c.Substitute(sliceOfT, sigma)
	gotDesc := c.GetType(got)
	if gotDesc.Tag != TagSlice {
		t.Fatalf("expected a slice type, got %v", gotDesc.Tag)
	}
	if !c.StructurallyEqual(gotDesc.Elem, u64) {
		t.Fatal("substitution should rewrite the slice element to u64")
	}
}

func TestSubstituteIsNoopWithoutMatchingKeys(t *testing.T) {
	c := newTestContext()
	u8 := c.UInt(8)
	got := c.Substitute(u8, Substitution{"T": c.UInt(64)})
	if got != u8 {
		t.Fatal("substitution should return the same handle when nothing changes")
	}
}

func TestMonomorphizeFunctionSubstitutesSignature(t *testing.T) {
	c := newTestContext()
	tParam := TypeParamDecl{Name: "T"}
	decl := c.DeclareFunction("identity", span.None(), VisPublic, []TypeParamDecl{tParam})
	c.GetDecl(decl).Function.Params = []FieldDecl{{Name: "x", Type: c.Generic("T", nil)}}
	c.GetDecl(decl).Function.ReturnType = c.Generic("T", nil)

	u64 := c.UInt(64)
	inst, err := c.Monomorphize(decl, []TypeHandle{u64})
	if err != nil {
		t.Fatalf("unexpected monomorphize error: %v", err)
	}

	instDecl := c.GetDecl(inst)
	if instDecl.Function.Parent != decl {
		t.Fatal("monomorphized instance must record its generic origin as Parent")
	}
	if !c.StructurallyEqual(instDecl.Function.ReturnType, u64) {
		t.Fatal("monomorphized return type must be substituted to u64")
	}

	inst2, err := c.Monomorphize(decl, []TypeHandle{c.UInt(64)})
	if err != nil {
		t.Fatalf("unexpected monomorphize error on second call: %v", err)
	}
	if diff := cmp.Diff(inst, inst2); diff != "" {
		t.Errorf("monomorphize should memoize on structurally equal argument types (-first +second):\n%s", diff)
	}
}

func TestMonomorphizeArityMismatch(t *testing.T) {
	c := newTestContext()
	decl := c.DeclareFunction("pair", span.None(), VisPublic, []TypeParamDecl{{Name: "A"}, {Name: "B"}})
	_, err := c.Monomorphize(decl, []TypeHandle{c.UInt(64)})
	if err == nil {
		t.Fatal("expected an arity mismatch error")
	}
	if _, ok := err.(*ArityMismatchError); !ok {
		t.Fatalf("expected *ArityMismatchError, got %T", err)
	}
}

func TestDefaultNumericRewritesToU64(t *testing.T) {
	c := newTestContext()
	got := c.DefaultNumeric(c.Numeric())
	if !c.StructurallyEqual(got, c.UInt(64)) {
		t.Fatal("a bare Numeric placeholder must default to u64")
	}
	u8 := c.UInt(8)
	if c.DefaultNumeric(u8) != u8 {
		t.Fatal("a concrete type must pass through DefaultNumeric unchanged")
	}
}

func TestHasPlaceholderRecursesIntoStructuralTypes(t *testing.T) {
	c := newTestContext()
	if !c.HasPlaceholder(c.Slice(c.Unknown())) {
		t.Fatal("a slice of Unknown must report a placeholder")
	}
	if c.HasPlaceholder(c.Slice(c.UInt(8))) {
		t.Fatal("a slice of a concrete type must not report a placeholder")
	}
}
