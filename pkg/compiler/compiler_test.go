package compiler

import (
	"testing"

	"github.com/vmlang/corec/internal/asm"
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/span"
)

func identityScript(spans *span.Interner) *ast.Module {
	sp := func() span.ID { return spans.Insert(span.Range{}) }
	return &ast.Module{
		Kind: ast.KindScript,
		Name: "main",
		Items: []ast.Item{&ast.FnItem{
			Name:       "main",
			ReturnType: &ast.PrimitiveTypeExpr{Keyword: ast.PrimU64, Sp: sp()},
			Body: &ast.Block{
				Tail: &ast.LiteralExpr{Kind: ast.LitInt, Int: "42", Sp: sp()},
				Sp:   sp(),
			},
			Sp: sp(),
		}},
		Sp: sp(),
	}
}

// The identity script must produce bytecode that loads 0x2A and returns
// through the return register.
func TestCompileIdentityScript(t *testing.T) {
	spans := span.NewInterner("identity.sw")
	result := Compile(identityScript(spans), nil, spans)
	if result.Kind != ResultBytecode {
		t.Fatalf("expected bytecode, got kind %d with errors %v", result.Kind, result.Errors)
	}
	if len(result.Words) == 0 {
		t.Fatalf("empty program")
	}

	ops, err := asm.DecodeProgram(result.Words)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	loaded42 := false
	returned := false
	for _, op := range ops {
		if op.Opcode == asm.MOVI && op.Imm == 0x2A {
			loaded42 = true
		}
		if op.Opcode == asm.RET && op.RegA == asm.RegReturnValue {
			returned = true
		}
	}
	if !loaded42 {
		t.Fatalf("no instruction loads 0x2A:\n%v", ops)
	}
	if !returned {
		t.Fatalf("no ret through the return register:\n%v", ops)
	}

	// The ABI must list main as its one function.
	if result.Abi == nil || len(result.Abi.Functions) != 1 || result.Abi.Functions[0].Name != "main" {
		t.Fatalf("unexpected ABI shape: %+v", result.Abi)
	}
}

func TestCompileLibraryReturnsNamespace(t *testing.T) {
	spans := span.NewInterner("lib.sw")
	sp := func() span.ID { return spans.Insert(span.Range{}) }
	lib := &ast.Module{
		Kind: ast.KindLibrary,
		Name: "util",
		Items: []ast.Item{&ast.FnItem{
			Name: "helper", Vis: ast.VisPublic,
			ReturnType: &ast.PrimitiveTypeExpr{Keyword: ast.PrimU64, Sp: sp()},
			Body:       &ast.Block{Tail: &ast.LiteralExpr{Kind: ast.LitInt, Int: "1", Suffix: "u64", Sp: sp()}, Sp: sp()},
			Sp:         sp(),
		}},
		Sp: sp(),
	}
	result := Compile(lib, nil, spans)
	if result.Kind != ResultLibrary {
		t.Fatalf("expected a library result, got %d (%v)", result.Kind, result.Errors)
	}
	if result.PublicNamespace == nil {
		t.Fatalf("library result carries no namespace")
	}
	if _, ok := result.PublicNamespace.LookupLocal("helper"); !ok {
		t.Fatalf("public symbol missing from the library namespace")
	}
}

func TestCompileFailureSurfacesAllErrors(t *testing.T) {
	spans := span.NewInterner("bad.sw")
	sp := func() span.ID { return spans.Insert(span.Range{}) }
	// Two independent type errors in one module; both must surface.
	bad := &ast.Module{
		Kind: ast.KindScript,
		Name: "main",
		Items: []ast.Item{
			&ast.FnItem{
				Name:       "main",
				ReturnType: &ast.PrimitiveTypeExpr{Keyword: ast.PrimU64, Sp: sp()},
				Body:       &ast.Block{Tail: &ast.LiteralExpr{Kind: ast.LitBool, Bool: true, Sp: sp()}, Sp: sp()},
				Sp:         sp(),
			},
			&ast.FnItem{
				Name:       "other",
				ReturnType: &ast.PrimitiveTypeExpr{Keyword: ast.PrimBool, Sp: sp()},
				Body:       &ast.Block{Tail: &ast.LiteralExpr{Kind: ast.LitInt, Int: "3", Suffix: "u64", Sp: sp()}, Sp: sp()},
				Sp:         sp(),
			},
		},
		Sp: sp(),
	}
	result := Compile(bad, nil, spans)
	if result.Kind != ResultFailure {
		t.Fatalf("expected failure, got kind %d", result.Kind)
	}
	if len(result.Errors) < 2 {
		t.Fatalf("expected both errors surfaced, got %v", result.Errors)
	}
	for _, e := range result.Errors {
		if e.Kind != diag.KindType {
			t.Fatalf("unexpected diagnostic kind %v", e.Kind)
		}
	}
}
