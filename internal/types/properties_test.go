package types

import (
	"testing"

	"github.com/vmlang/corec/internal/span"
)

// Unification over inference-variable-free descriptors succeeds in one
// direction iff it succeeds in the other.
func TestUnifySymmetryOnConcreteTypes(t *testing.T) {
	c := NewContext(span.NewInterner("test://unit"))
	none := TypeHandle(-1)

	pairs := []struct{ a, b TypeHandle }{
		{c.UInt(64), c.UInt(64)},
		{c.UInt(64), c.UInt(8)},
		{c.Tuple([]TypeHandle{c.UInt(64), c.Bool()}), c.Tuple([]TypeHandle{c.UInt(64), c.Bool()})},
		{c.Tuple([]TypeHandle{c.UInt(64)}), c.Tuple([]TypeHandle{c.Bool()})},
		{c.Ptr(c.B256()), c.Ptr(c.B256())},
		{c.Ptr(c.B256()), c.RawPtr()},
	}
	for i, p := range pairs {
		_, errAB := c.Unify(p.a, p.b, none, "")
		_, errBA := c.Unify(p.b, p.a, none, "")
		if (errAB == nil) != (errBA == nil) {
			t.Fatalf("pair %d: unify not symmetric (a→b err=%v, b→a err=%v)", i, errAB, errBA)
		}
	}
}

// Repeated monomorphization with structurally identical argument types
// must return the same declaration handle.
func TestMonomorphizeMemoization(t *testing.T) {
	c := NewContext(span.NewInterner("test://unit"))
	generic := c.DeclareFunction("swap", span.None(), VisPublic, nil)
	decl := c.GetDecl(generic)
	decl.TypeParams = []TypeParamDecl{{Name: "T"}}
	tVar := c.Generic("T", nil)
	decl.Function.Params = []FieldDecl{{Name: "a", Type: tVar}, {Name: "b", Type: tVar}}
	decl.Function.ReturnType = c.Tuple([]TypeHandle{tVar, tVar})

	first, err := c.Monomorphize(generic, []TypeHandle{c.UInt(64)})
	if err != nil {
		t.Fatalf("first instantiation failed: %v", err)
	}
	second, err := c.Monomorphize(generic, []TypeHandle{c.UInt(64)})
	if err != nil {
		t.Fatalf("second instantiation failed: %v", err)
	}
	if first != second {
		t.Fatalf("memoization miss: %d vs %d", first, second)
	}
	if c.GetDecl(first).Function.Parent != generic {
		t.Fatalf("instance does not point back at its generic origin")
	}

	// A structurally identical but distinct u64 handle must still hit.
	freshU64 := c.InsertType(TypeDescriptor{Tag: TagUInt, Width: 64})
	third, err := c.Monomorphize(generic, []TypeHandle{freshU64})
	if err != nil {
		t.Fatalf("third instantiation failed: %v", err)
	}
	if third != first {
		t.Fatalf("memoization keyed on handle identity instead of structure")
	}
}
