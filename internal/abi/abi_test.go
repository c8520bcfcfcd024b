package abi

import (
	"testing"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/semantic"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

func buildFixture(t *testing.T) ([]byte, *JsonAbi) {
	t.Helper()
	ctx := types.NewContext(span.NewInterner("abi.sw"))
	u64 := ctx.UInt(64)
	tuple := ctx.Tuple([]types.TypeHandle{u64, u64})

	tm := &semantic.TypedModule{
		Kind: ast.KindContract,
		Name: "counter",
		Functions: []*semantic.TypedFunction{
			{
				Name:   "increment",
				Params: []semantic.TypedParam{{Name: "amount", Type: u64}},
				Return: u64,
				Purity: ast.PurityReadWrite,
			},
			{
				Name:   "pair",
				Params: []semantic.TypedParam{{Name: "a", Type: u64}, {Name: "b", Type: u64}},
				Return: tuple,
			},
		},
	}
	a := Build(tm, ctx)
	data, err := a.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return data, a
}

func TestAbiSideTableSharing(t *testing.T) {
	data, a := buildFixture(t)

	// u64 appears in three inputs and one output but must intern once.
	count := 0
	for _, decl := range a.Types {
		if decl.Type == "u64" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("u64 interned %d times, want 1\n%s", count, data)
	}

	// The shared id must be referenced from both functions.
	incInput := gjson.GetBytes(data, `functions.#(name=="increment").inputs.0.type_id`).Int()
	pairInput := gjson.GetBytes(data, `functions.#(name=="pair").inputs.0.type_id`).Int()
	if incInput != pairInput {
		t.Fatalf("shared u64 got distinct ids %d and %d", incInput, pairInput)
	}
}

func TestAbiAttributesAndTupleComponents(t *testing.T) {
	data, _ := buildFixture(t)

	attr := gjson.GetBytes(data, `functions.#(name=="increment").attributes.0`).String()
	if attr != "storage(read, write)" {
		t.Fatalf("purity attribute = %q", attr)
	}

	tupleID := gjson.GetBytes(data, `functions.#(name=="pair").outputs.0.type_id`).Int()
	comps := gjson.GetBytes(data, `types.#(typeId==`+gjson.GetBytes(data, `functions.#(name=="pair").outputs.0.type_id`).Raw+`).components.#`).Int()
	if comps != 2 {
		t.Fatalf("tuple type %d has %d components, want 2\n%s", tupleID, comps, data)
	}
}

func TestAbiPatchRoundTrip(t *testing.T) {
	data, _ := buildFixture(t)

	patched, err := sjson.SetBytes(data, `functions.0.name`, "renamed")
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if got := gjson.GetBytes(patched, `functions.0.name`).String(); got != "renamed" {
		t.Fatalf("patch did not apply, got %q", got)
	}
	// The side table must be untouched by an entry rename.
	if gjson.GetBytes(patched, `types.#`).Int() != gjson.GetBytes(data, `types.#`).Int() {
		t.Fatalf("patching a function name disturbed the type table")
	}
}
