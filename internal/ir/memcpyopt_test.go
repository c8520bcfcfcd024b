package ir

import (
	"testing"

	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

func newTestModule() (*types.Context, *Module) {
	ctx := types.NewContext(span.NewInterner("test.ir"))
	return ctx, NewModule(ctx)
}

// emit is a test shorthand appending an instruction to a block.
func emit(f *Function, blk *Block, v *Value) *Value {
	v.Block = blk
	blk.Instrs = append(blk.Instrs, v)
	return v
}

func retUnit(ctx *types.Context, f *Function, blk *Block) {
	unit := f.newValue(OpConst, ctx.Unit())
	emit(f, blk, unit)
	r := f.newValue(OpRet, ctx.Unit())
	r.Operands = []*Value{unit}
	emit(f, blk, r)
}

// The literal fixture of the load/store rewrite: a block with
// %p = get_local a; %q = get_local b; %v = load %p; store %q, %v
// over non-escaped, non-aliasing slots must become
// %p = get_local a; %q = get_local b; mem_copy_val %q, %p.
func TestLoadStoreBecomesMemcpy(t *testing.T) {
	ctx, m := newTestModule()
	u64 := ctx.UInt(64)
	f := &Function{Name: "f", Return: ctx.Unit()}
	m.AddFunction(f)
	blk := f.NewBlock("entry")

	a := f.NewLocal("a", u64)
	b := f.NewLocal("b", u64)

	p := f.newValue(OpGetLocal, ctx.Ptr(u64))
	p.Local = a
	emit(f, blk, p)
	q := f.newValue(OpGetLocal, ctx.Ptr(u64))
	q.Local = b
	emit(f, blk, q)
	v := f.newValue(OpLoad, u64)
	v.Operands = []*Value{p}
	emit(f, blk, v)
	st := f.newValue(OpStore, ctx.Unit())
	st.Operands = []*Value{q, v}
	emit(f, blk, st)
	retUnit(ctx, f, blk)

	pm := NewPassManager(m)
	if err := pm.Run("memcpyopt"); err != nil {
		t.Fatalf("memcpyopt failed: %v", err)
	}

	var ops []OpKind
	for _, ins := range blk.Instrs {
		ops = append(ops, ins.Op)
	}
	want := []OpKind{OpGetLocal, OpGetLocal, OpMemCopyVal, OpConst, OpRet}
	if len(ops) != len(want) {
		t.Fatalf("unexpected instruction count after pass:\n%s", f.String())
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("instruction %d: got %v, want %v\n%s", i, ops[i], want[i], f.String())
		}
	}
	cp := blk.Instrs[2]
	if cp.Operands[0] != q || cp.Operands[1] != p {
		t.Fatalf("mem_copy_val endpoints wrong: %s", cp.String())
	}
}

// A write to the source between load and store must block the rewrite.
func TestClobberedSourceBlocksMemcpy(t *testing.T) {
	ctx, m := newTestModule()
	u64 := ctx.UInt(64)
	f := &Function{Name: "f", Return: ctx.Unit()}
	m.AddFunction(f)
	blk := f.NewBlock("entry")

	a := f.NewLocal("a", u64)
	b := f.NewLocal("b", u64)

	p := f.newValue(OpGetLocal, ctx.Ptr(u64))
	p.Local = a
	emit(f, blk, p)
	q := f.newValue(OpGetLocal, ctx.Ptr(u64))
	q.Local = b
	emit(f, blk, q)
	v := f.newValue(OpLoad, u64)
	v.Operands = []*Value{p}
	emit(f, blk, v)
	// Clobber a between the load and the store.
	zero := f.newValue(OpConst, u64)
	emit(f, blk, zero)
	clobber := f.newValue(OpStore, ctx.Unit())
	clobber.Operands = []*Value{p, zero}
	emit(f, blk, clobber)
	st := f.newValue(OpStore, ctx.Unit())
	st.Operands = []*Value{q, v}
	emit(f, blk, st)
	retUnit(ctx, f, blk)

	pm := NewPassManager(m)
	if err := pm.Run("memcpyopt"); err != nil {
		t.Fatalf("memcpyopt failed: %v", err)
	}
	for _, ins := range blk.Instrs {
		if ins.Op == OpMemCopyVal && ins.Operands[0] == q {
			t.Fatalf("rewrite happened despite an intervening write:\n%s", f.String())
		}
	}
}

// Phase 3: a load from the destination of an available copy reads the
// copy's source instead.
func TestMemcpyPropagation(t *testing.T) {
	ctx, m := newTestModule()
	u64 := ctx.UInt(64)
	f := &Function{Name: "f", Return: u64}
	m.AddFunction(f)
	blk := f.NewBlock("entry")

	a := f.NewLocal("a", u64)
	b := f.NewLocal("b", u64)

	p := f.newValue(OpGetLocal, ctx.Ptr(u64))
	p.Local = a
	emit(f, blk, p)
	q := f.newValue(OpGetLocal, ctx.Ptr(u64))
	q.Local = b
	emit(f, blk, q)
	cp := f.newValue(OpMemCopyVal, ctx.Unit())
	cp.Operands = []*Value{q, p}
	emit(f, blk, cp)
	ld := f.newValue(OpLoad, u64)
	ld.Operands = []*Value{q}
	emit(f, blk, ld)
	r := f.newValue(OpRet, u64)
	r.Operands = []*Value{ld}
	emit(f, blk, r)

	pm := NewPassManager(m)
	if err := pm.Run("memcpyopt"); err != nil {
		t.Fatalf("memcpyopt failed: %v", err)
	}
	if ld.Operands[0] != p {
		t.Fatalf("load was not redirected to the copy source:\n%s", f.String())
	}
}
