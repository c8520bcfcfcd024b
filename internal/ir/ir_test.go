package ir

import (
	"testing"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/semantic"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

// lowerSource checks and lowers a hand-built module, failing the test on
// any diagnostic.
func lowerSource(t *testing.T, mod *ast.Module) (*types.Context, *Module) {
	t.Helper()
	spans := span.NewInterner("test.sw")
	ctx := types.NewContext(spans)
	ns := namespace.NewRoot("test")
	h := diag.NewHandler()
	typed := semantic.Check(mod, ns, ctx, h)
	if !h.Ok() {
		t.Fatalf("semantic errors: %v", h.Errors())
	}
	m := Lower(typed, ctx, h)
	if !h.Ok() {
		t.Fatalf("lowering errors: %v", h.Errors())
	}
	return ctx, m
}

func simpleFn(name string, ret ast.TypeExpr, body *ast.Block) *ast.FnItem {
	return &ast.FnItem{Name: name, ReturnType: ret, Body: body}
}

func u64Expr() *ast.PrimitiveTypeExpr { return &ast.PrimitiveTypeExpr{Keyword: ast.PrimU64} }

// Every function must verify after lowering: one terminator per block and
// dominance of every operand's definition over its uses.
func TestLoweringSatisfiesDominance(t *testing.T) {
	// fn main() -> u64 { let x = 1u64; while x < 10u64 { x = x + 1u64; } if x > 5u64 { x } else { 0u64 } }
	cond := &ast.BinaryExpr{Op: ast.OpLt,
		Left:  &ast.VarExpr{Path: []string{"x"}},
		Right: &ast.LiteralExpr{Kind: ast.LitInt, Int: "10", Suffix: "u64"},
	}
	loop := &ast.WhileExpr{Cond: cond, Body: &ast.Block{Stmts: []ast.Statement{
		&ast.ExprStmt{Expr: &ast.ReassignExpr{
			LHS: &ast.VarExpr{Path: []string{"x"}},
			RHS: &ast.BinaryExpr{Op: ast.OpAdd,
				Left:  &ast.VarExpr{Path: []string{"x"}},
				Right: &ast.LiteralExpr{Kind: ast.LitInt, Int: "1", Suffix: "u64"},
			},
		}},
	}}}
	body := &ast.Block{
		Stmts: []ast.Statement{
			&ast.LetStmt{Name: "x", Init: &ast.LiteralExpr{Kind: ast.LitInt, Int: "1", Suffix: "u64"}},
			&ast.ExprStmt{Expr: loop},
		},
		Tail: &ast.IfExpr{
			Cond: &ast.BinaryExpr{Op: ast.OpGt,
				Left:  &ast.VarExpr{Path: []string{"x"}},
				Right: &ast.LiteralExpr{Kind: ast.LitInt, Int: "5", Suffix: "u64"},
			},
			Then: &ast.Block{Tail: &ast.VarExpr{Path: []string{"x"}}},
			Else: &ast.BlockExpr{Block: &ast.Block{Tail: &ast.LiteralExpr{Kind: ast.LitInt, Int: "0", Suffix: "u64"}}},
		},
	}
	mod := &ast.Module{Kind: ast.KindScript, Name: "main",
		Items: []ast.Item{simpleFn("main", u64Expr(), body)}}

	_, m := lowerSource(t, mod)
	for _, f := range m.Functions {
		if err := Verify(f); err != nil {
			t.Fatalf("function %s fails verification: %v\n%s", f.Name, err, f.String())
		}
	}

	// Invariants must also survive the optimizer.
	pm := NewPassManager(m)
	if err := pm.Optimize(); err != nil {
		t.Fatalf("optimize failed: %v", err)
	}
	for _, f := range m.Functions {
		if err := Verify(f); err != nil {
			t.Fatalf("function %s fails verification after passes: %v\n%s", f.Name, err, f.String())
		}
	}
}

func TestConstFold(t *testing.T) {
	ctx, m := newTestModule()
	u64 := ctx.UInt(64)
	f := &Function{Name: "f", Return: u64}
	m.AddFunction(f)
	blk := f.NewBlock("entry")

	a := f.newValue(OpConst, u64)
	a.Imm = 40
	emit(f, blk, a)
	b := f.newValue(OpConst, u64)
	b.Imm = 2
	emit(f, blk, b)
	sum := f.newValue(OpBinary, u64)
	sum.Bin = BinAdd
	sum.Operands = []*Value{a, b}
	emit(f, blk, sum)
	r := f.newValue(OpRet, u64)
	r.Operands = []*Value{sum}
	emit(f, blk, r)

	pm := NewPassManager(m)
	if err := pm.Run("constfold"); err != nil {
		t.Fatalf("constfold failed: %v", err)
	}
	if sum.Op != OpConst || sum.Imm != 42 {
		t.Fatalf("expected the add to fold to const 42, got %s", sum.String())
	}
}

func TestDeadCodeElim(t *testing.T) {
	ctx, m := newTestModule()
	u64 := ctx.UInt(64)
	f := &Function{Name: "f", Return: u64}
	m.AddFunction(f)
	blk := f.NewBlock("entry")

	dead := f.newValue(OpConst, u64)
	dead.Imm = 7
	emit(f, blk, dead)
	live := f.newValue(OpConst, u64)
	live.Imm = 1
	emit(f, blk, live)
	r := f.newValue(OpRet, u64)
	r.Operands = []*Value{live}
	emit(f, blk, r)

	orphan := f.NewBlock("orphan")
	retUnit(ctx, f, orphan)

	pm := NewPassManager(m)
	if err := pm.Run("dce"); err != nil {
		t.Fatalf("dce failed: %v", err)
	}
	if len(f.Blocks) != 1 {
		t.Fatalf("unreachable block survived DCE")
	}
	for _, ins := range blk.Instrs {
		if ins == dead {
			t.Fatalf("dead const survived DCE")
		}
	}
}

func TestInlineSingleCallSite(t *testing.T) {
	ctx, m := newTestModule()
	u64 := ctx.UInt(64)

	callee := &Function{Name: "small", Return: u64}
	m.AddFunction(callee)
	cb := callee.NewBlock("entry")
	arg := callee.newValue(OpArg, u64)
	arg.Block = cb
	cb.Args = append(cb.Args, arg)
	callee.Params = append(callee.Params, arg)
	one := callee.newValue(OpConst, u64)
	one.Imm = 1
	emit(callee, cb, one)
	sum := callee.newValue(OpBinary, u64)
	sum.Bin = BinAdd
	sum.Operands = []*Value{arg, one}
	emit(callee, cb, sum)
	r := callee.newValue(OpRet, u64)
	r.Operands = []*Value{sum}
	emit(callee, cb, r)

	caller := &Function{Name: "main", Return: u64}
	m.AddFunction(caller)
	mb := caller.NewBlock("entry")
	x := caller.newValue(OpConst, u64)
	x.Imm = 41
	emit(caller, mb, x)
	call := caller.newValue(OpCall, u64)
	call.Callee = callee
	call.Operands = []*Value{x}
	emit(caller, mb, call)
	ret := caller.newValue(OpRet, u64)
	ret.Operands = []*Value{call}
	emit(caller, mb, ret)

	pm := NewPassManager(m)
	if err := pm.Run("inline"); err != nil {
		t.Fatalf("inline failed: %v", err)
	}
	for _, blk := range caller.Blocks {
		for _, ins := range blk.Instrs {
			if ins.Op == OpCall {
				t.Fatalf("call survived inlining:\n%s", caller.String())
			}
		}
	}
	if err := Verify(caller); err != nil {
		t.Fatalf("caller fails verification after inlining: %v\n%s", err, caller.String())
	}
}

// Analysis results are cached per function and invalidated by transforms
// that do not declare them preserved.
func TestPassManagerCaching(t *testing.T) {
	ctx, m := newTestModule()
	f := &Function{Name: "f", Return: ctx.Unit()}
	m.AddFunction(f)
	blk := f.NewBlock("entry")
	retUnit(ctx, f, blk)

	pm := NewPassManager(m)
	first, err := pm.GetAnalysis("dominators", f)
	if err != nil {
		t.Fatalf("dominators failed: %v", err)
	}
	second, _ := pm.GetAnalysis("dominators", f)
	if first != second {
		t.Fatalf("analysis result was not served from cache")
	}

	runs := 0
	if err := pm.Register(&Pass{
		Name: "touch", Description: "test transform", Kind: Transform,
		Transform: func(*PassManager, *Function) bool { runs++; return true },
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := pm.Run("touch"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if runs != 1 {
		t.Fatalf("transform ran %d times", runs)
	}
	third, _ := pm.GetAnalysis("dominators", f)
	if third == first {
		t.Fatalf("transform did not invalidate the cached analysis")
	}
}
