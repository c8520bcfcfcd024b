package ir

import (
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/semantic"
	"github.com/vmlang/corec/internal/types"
)

// Builder lowers a typed module to block-structured IR, one function at a
// time: locals become get_local/store
// pairs, struct expressions become a stack allocation plus field stores,
// matches become decision trees feeding a join block, loops get the
// header/body/exit triple.
type Builder struct {
	mod   *Module
	ctx   *types.Context
	diags *diag.Handler

	declToFn map[types.DeclHandle]*Function
	consts   map[types.DeclHandle]*semantic.TypedConst

	fn      *Function
	cur     *Block
	localOf map[string]int
	paramOf map[string]*Value
}

// Lower builds the IR module for a typed program.
func Lower(tm *semantic.TypedModule, ctx *types.Context, h *diag.Handler) *Module {
	b := &Builder{
		mod:      NewModule(ctx),
		ctx:      ctx,
		diags:    h,
		declToFn: make(map[types.DeclHandle]*Function),
		consts:   make(map[types.DeclHandle]*semantic.TypedConst),
	}
	for _, c := range tm.Consts {
		b.consts[c.Decl] = c
	}
	// Declare every function first so call sites resolve regardless of
	// declaration order.
	for _, tf := range tm.Functions {
		fn := &Function{Name: tf.Name, Return: tf.Return, Span: tf.Span}
		b.declToFn[tf.Decl] = fn
		b.mod.AddFunction(fn)
	}
	for _, tf := range tm.Functions {
		b.lowerFunction(tf)
	}
	return b.mod
}

func (b *Builder) lowerFunction(tf *semantic.TypedFunction) {
	fn := b.declToFn[tf.Decl]
	b.fn = fn
	b.localOf = make(map[string]int)
	b.paramOf = make(map[string]*Value)

	entry := fn.NewBlock("entry")
	b.cur = entry
	for _, p := range tf.Params {
		arg := fn.newValue(OpArg, p.Type)
		arg.Block = entry
		entry.Args = append(entry.Args, arg)
		fn.Params = append(fn.Params, arg)
		b.paramOf[p.Name] = arg
	}

	result := b.lowerExpr(tf.Body)
	if b.cur.Terminator() == nil {
		ret := fn.newValue(OpRet, tf.Return)
		ret.Operands = []*Value{result}
		ret.Span = tf.Span
		b.emit(ret)
	}
}

func (b *Builder) emit(v *Value) *Value {
	v.Block = b.cur
	b.cur.Instrs = append(b.cur.Instrs, v)
	return v
}

func (b *Builder) branchTo(target *Block, args ...*Value) {
	br := b.fn.newValue(OpBranch, b.ctx.Unit())
	br.Target = target
	br.TargetArgs = args
	b.emit(br)
	target.Preds = append(target.Preds, b.cur)
}

func (b *Builder) condBranchTo(cond *Value, t, f *Block) {
	br := b.fn.newValue(OpCondBranch, b.ctx.Unit())
	br.Operands = []*Value{cond}
	br.TrueBlk, br.FalseBlk = t, f
	b.emit(br)
	t.Preds = append(t.Preds, b.cur)
	f.Preds = append(f.Preds, b.cur)
}

func (b *Builder) constU64(v uint64) *Value {
	c := b.fn.newValue(OpConst, b.ctx.UInt(64))
	c.Imm = v
	return b.emit(c)
}

func (b *Builder) unitValue() *Value {
	c := b.fn.newValue(OpConst, b.ctx.Unit())
	return b.emit(c)
}

func (b *Builder) lowerExpr(e *semantic.TypedExpr) *Value {
	switch e.Kind {
	case semantic.ExprLiteral:
		return b.lowerLiteral(e)
	case semantic.ExprVariable:
		return b.lowerVariable(e)
	case semantic.ExprCall:
		return b.lowerCall(e)
	case semantic.ExprStructLit, semantic.ExprTuple, semantic.ExprArray:
		return b.lowerAggregate(e)
	case semantic.ExprEnumLit:
		return b.lowerEnumLit(e)
	case semantic.ExprIndex:
		return b.lowerIndex(e)
	case semantic.ExprFieldAccess:
		return b.extract(e, e.FieldIndex)
	case semantic.ExprTupleIndex:
		return b.extract(e, e.FieldIndex)
	case semantic.ExprBinary:
		return b.lowerBinary(e)
	case semantic.ExprUnary:
		return b.lowerUnary(e)
	case semantic.ExprBlock:
		return b.lowerBlock(e)
	case semantic.ExprIf:
		return b.lowerIf(e)
	case semantic.ExprWhile:
		return b.lowerWhile(e)
	case semantic.ExprMatch:
		return b.lowerMatch(e)
	case semantic.ExprReassign:
		return b.lowerReassign(e)
	case semantic.ExprAsm:
		return b.lowerAsm(e)
	case semantic.ExprIntrinsic:
		return b.lowerIntrinsic(e)
	case semantic.ExprStorageRead:
		v := b.fn.newValue(OpReadStorage, e.Type)
		v.Key = b.ctx.GetDecl(e.StorageField).StorageField.Key
		v.Span = e.Span
		return b.emit(v)
	case semantic.ExprStorageWrite:
		val := b.lowerExpr(e.Args[0])
		w := b.fn.newValue(OpWriteStorage, b.ctx.Unit())
		w.Key = b.ctx.GetDecl(e.StorageField).StorageField.Key
		w.Operands = []*Value{val}
		w.Span = e.Span
		b.emit(w)
		return b.unitValue()
	case semantic.ExprRecovery:
		// Semantic errors were already reported; a zero keeps lowering
		// total so later functions still produce diagnostics.
		return b.constU64(0)
	}
	b.diags.Errorf(diag.KindIRInternal, e.Span, "unhandled typed expression kind %d", e.Kind)
	return b.constU64(0)
}

func (b *Builder) lowerLiteral(e *semantic.TypedExpr) *Value {
	c := b.fn.newValue(OpConst, e.Type)
	c.Span = e.Span
	switch e.Literal.Kind {
	case ast.LitBool:
		if e.Literal.Bool {
			c.Imm = 1
		}
	case ast.LitInt:
		c.Imm = e.Literal.Int
	case ast.LitB256:
		c.B256 = e.Literal.B256
	case ast.LitString:
		c.Raw = []byte(e.Literal.Str)
	}
	return b.emit(c)
}

func (b *Builder) lowerVariable(e *semantic.TypedExpr) *Value {
	if e.ConstDecl.IsValid() {
		if tc, ok := b.consts[e.ConstDecl]; ok {
			return b.lowerExpr(tc.Value)
		}
	}
	if arg, ok := b.paramOf[e.VarName]; ok {
		return arg
	}
	idx, ok := b.localOf[e.VarName]
	if !ok {
		b.diags.Errorf(diag.KindIRInternal, e.Span, "no local slot for variable %q", e.VarName)
		return b.constU64(0)
	}
	p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(e.Type))
	p.Local = idx
	p.Span = e.Span
	b.emit(p)
	l := b.fn.newValue(OpLoad, e.Type)
	l.Operands = []*Value{p}
	l.Span = e.Span
	return b.emit(l)
}

func (b *Builder) lowerCall(e *semantic.TypedExpr) *Value {
	args := make([]*Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = b.lowerExpr(a)
	}
	fn := b.declToFn[e.Callee]
	if fn == nil {
		b.diags.Errorf(diag.KindIRInternal, e.Span, "call target was never lowered")
		return b.constU64(0)
	}
	c := b.fn.newValue(OpCall, e.Type)
	c.Callee = fn
	c.Operands = args
	c.Span = e.Span
	return b.emit(c)
}

// lowerAggregate lowers struct literals, tuples, and arrays uniformly: a
// stack allocation, one get_elem_ptr + store per element, then a load of
// the whole slot as the aggregate value.
func (b *Builder) lowerAggregate(e *semantic.TypedExpr) *Value {
	local := b.fn.NewLocal("agg", e.Type)
	for i, field := range e.Args {
		v := b.lowerExpr(field)
		p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(e.Type))
		p.Local = local
		b.emit(p)
		g := b.fn.newValue(OpGetElemPtr, b.ctx.Ptr(v.Type))
		g.Operands = []*Value{p}
		g.Indices = []int{i}
		b.emit(g)
		s := b.fn.newValue(OpStore, b.ctx.Unit())
		s.Operands = []*Value{g, v}
		s.Span = field.Span
		b.emit(s)
	}
	p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(e.Type))
	p.Local = local
	b.emit(p)
	l := b.fn.newValue(OpLoad, e.Type)
	l.Operands = []*Value{p}
	l.Span = e.Span
	return b.emit(l)
}

// lowerEnumLit builds the two-slot (tag, payload) representation.
func (b *Builder) lowerEnumLit(e *semantic.TypedExpr) *Value {
	local := b.fn.NewLocal("enum", e.Type)

	p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(e.Type))
	p.Local = local
	b.emit(p)
	tagPtr := b.fn.newValue(OpGetElemPtr, b.ctx.Ptr(b.ctx.UInt(64)))
	tagPtr.Operands = []*Value{p}
	tagPtr.Indices = []int{0}
	b.emit(tagPtr)
	tag := b.constU64(uint64(e.Variant))
	s := b.fn.newValue(OpStore, b.ctx.Unit())
	s.Operands = []*Value{tagPtr, tag}
	b.emit(s)

	if len(e.Args) == 1 {
		payload := b.lowerExpr(e.Args[0])
		p2 := b.fn.newValue(OpGetLocal, b.ctx.Ptr(e.Type))
		p2.Local = local
		b.emit(p2)
		payPtr := b.fn.newValue(OpGetElemPtr, b.ctx.Ptr(payload.Type))
		payPtr.Operands = []*Value{p2}
		payPtr.Indices = []int{1}
		b.emit(payPtr)
		s2 := b.fn.newValue(OpStore, b.ctx.Unit())
		s2.Operands = []*Value{payPtr, payload}
		b.emit(s2)
	}

	p3 := b.fn.newValue(OpGetLocal, b.ctx.Ptr(e.Type))
	p3.Local = local
	b.emit(p3)
	l := b.fn.newValue(OpLoad, e.Type)
	l.Operands = []*Value{p3}
	l.Span = e.Span
	return b.emit(l)
}

func (b *Builder) extract(e *semantic.TypedExpr, index int) *Value {
	recv := b.lowerExpr(e.Args[0])
	x := b.fn.newValue(OpExtractValue, e.Type)
	x.Operands = []*Value{recv}
	x.Indices = []int{index}
	x.Span = e.Span
	return b.emit(x)
}

// lowerIndex handles dynamic indexing by pointer arithmetic: spill the
// base to a slot, convert its address, add index * element size, convert
// back, load.
func (b *Builder) lowerIndex(e *semantic.TypedExpr) *Value {
	base := b.lowerExpr(e.Args[0])
	idx := b.lowerExpr(e.Args[1])

	local := b.fn.NewLocal("idxbase", base.Type)
	p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(base.Type))
	p.Local = local
	b.emit(p)
	s := b.fn.newValue(OpStore, b.ctx.Unit())
	s.Operands = []*Value{p, base}
	b.emit(s)

	p2 := b.fn.newValue(OpGetLocal, b.ctx.Ptr(base.Type))
	p2.Local = local
	b.emit(p2)
	addr := b.fn.newValue(OpPtrToInt, b.ctx.UInt(64))
	addr.Operands = []*Value{p2}
	b.emit(addr)

	elemSize := b.constU64(SizeOf(b.ctx, e.Type))
	scaled := b.fn.newValue(OpBinary, b.ctx.UInt(64))
	scaled.Bin = BinMul
	scaled.Operands = []*Value{idx, elemSize}
	b.emit(scaled)
	sum := b.fn.newValue(OpBinary, b.ctx.UInt(64))
	sum.Bin = BinAdd
	sum.Operands = []*Value{addr, scaled}
	b.emit(sum)

	ep := b.fn.newValue(OpIntToPtr, b.ctx.Ptr(e.Type))
	ep.Operands = []*Value{sum}
	b.emit(ep)
	l := b.fn.newValue(OpLoad, e.Type)
	l.Operands = []*Value{ep}
	l.Span = e.Span
	return b.emit(l)
}

func (b *Builder) lowerBinary(e *semantic.TypedExpr) *Value {
	l := b.lowerExpr(e.Args[0])
	r := b.lowerExpr(e.Args[1])
	if pred, isCmp := cmpPredOf(e.BinOp); isCmp {
		v := b.fn.newValue(OpCmp, e.Type)
		v.Pred = pred
		v.Operands = []*Value{l, r}
		v.Span = e.Span
		return b.emit(v)
	}
	v := b.fn.newValue(OpBinary, e.Type)
	v.Bin = binaryKindOf(e.BinOp)
	v.Operands = []*Value{l, r}
	v.Span = e.Span
	return b.emit(v)
}

func cmpPredOf(op ast.BinaryOp) (CmpPred, bool) {
	switch op {
	case ast.OpEq:
		return CmpEq, true
	case ast.OpNe:
		return CmpNe, true
	case ast.OpLt:
		return CmpLt, true
	case ast.OpLe:
		return CmpLe, true
	case ast.OpGt:
		return CmpGt, true
	case ast.OpGe:
		return CmpGe, true
	}
	return 0, false
}

func binaryKindOf(op ast.BinaryOp) BinaryKind {
	switch op {
	case ast.OpAdd:
		return BinAdd
	case ast.OpSub:
		return BinSub
	case ast.OpMul:
		return BinMul
	case ast.OpDiv:
		return BinDiv
	case ast.OpMod:
		return BinMod
	case ast.OpAnd, ast.OpBitAnd:
		return BinAnd
	case ast.OpOr, ast.OpBitOr:
		return BinOr
	case ast.OpBitXor:
		return BinXor
	case ast.OpShl:
		return BinShl
	case ast.OpShr:
		return BinShr
	}
	return BinAdd
}

func (b *Builder) lowerUnary(e *semantic.TypedExpr) *Value {
	inner := b.lowerExpr(e.Args[0])
	switch e.UnOp {
	case ast.OpNot:
		v := b.fn.newValue(OpUnary, e.Type)
		v.Un = UnNot
		v.Operands = []*Value{inner}
		return b.emit(v)
	case ast.OpBitNot:
		v := b.fn.newValue(OpUnary, e.Type)
		v.Un = UnBitNot
		v.Operands = []*Value{inner}
		return b.emit(v)
	case ast.OpNeg:
		v := b.fn.newValue(OpUnary, e.Type)
		v.Un = UnNeg
		v.Operands = []*Value{inner}
		return b.emit(v)
	case ast.OpRef:
		// Spill to a slot and take the slot's address.
		local := b.fn.NewLocal("ref", inner.Type)
		p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(inner.Type))
		p.Local = local
		b.emit(p)
		s := b.fn.newValue(OpStore, b.ctx.Unit())
		s.Operands = []*Value{p, inner}
		b.emit(s)
		p2 := b.fn.newValue(OpGetLocal, e.Type)
		p2.Local = local
		return b.emit(p2)
	case ast.OpDeref:
		l := b.fn.newValue(OpLoad, e.Type)
		l.Operands = []*Value{inner}
		return b.emit(l)
	}
	return inner
}

func (b *Builder) lowerBlock(e *semantic.TypedExpr) *Value {
	for _, stmt := range e.Stmts {
		if stmt.Name == "" {
			b.lowerExpr(stmt.Init)
			continue
		}
		init := b.lowerExpr(stmt.Init)
		local := b.fn.NewLocal(stmt.Name, stmt.Type)
		b.localOf[stmt.Name] = local
		p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(stmt.Type))
		p.Local = local
		p.Span = stmt.Span
		b.emit(p)
		s := b.fn.newValue(OpStore, b.ctx.Unit())
		s.Operands = []*Value{p, init}
		s.Span = stmt.Span
		b.emit(s)
	}
	if e.Tail != nil {
		return b.lowerExpr(e.Tail)
	}
	return b.unitValue()
}

func (b *Builder) lowerIf(e *semantic.TypedExpr) *Value {
	cond := b.lowerExpr(e.Args[0])
	thenBlk := b.fn.NewBlock("then")
	elseBlk := b.fn.NewBlock("else")
	join := b.fn.NewBlock("join")

	isUnit := b.ctx.GetType(e.Type).Tag == types.TagUnit
	var joinArg *Value
	if !isUnit {
		joinArg = b.fn.newValue(OpArg, e.Type)
		joinArg.Block = join
		join.Args = append(join.Args, joinArg)
	}

	b.condBranchTo(cond, thenBlk, elseBlk)

	b.cur = thenBlk
	thenVal := b.lowerExpr(e.Then)
	if b.cur.Terminator() == nil {
		if isUnit {
			b.branchTo(join)
		} else {
			b.branchTo(join, thenVal)
		}
	}

	b.cur = elseBlk
	if e.Else != nil {
		elseVal := b.lowerExpr(e.Else)
		if b.cur.Terminator() == nil {
			if isUnit {
				b.branchTo(join)
			} else {
				b.branchTo(join, elseVal)
			}
		}
	} else {
		b.branchTo(join)
	}

	b.cur = join
	if joinArg != nil {
		return joinArg
	}
	return b.unitValue()
}

// lowerWhile emits the header/body/exit triple: the header evaluates the
// condition and branches to body or exit; the body ends with a branch back
// to the header.
func (b *Builder) lowerWhile(e *semantic.TypedExpr) *Value {
	header := b.fn.NewBlock("header")
	body := b.fn.NewBlock("body")
	exit := b.fn.NewBlock("exit")

	b.branchTo(header)
	b.cur = header
	cond := b.lowerExpr(e.Args[0])
	b.condBranchTo(cond, body, exit)

	b.cur = body
	b.lowerExpr(e.Then)
	if b.cur.Terminator() == nil {
		b.branchTo(header)
	}

	b.cur = exit
	return b.unitValue()
}

func (b *Builder) lowerReassign(e *semantic.TypedExpr) *Value {
	rhs := b.lowerExpr(e.Args[1])
	addr := b.lowerAddress(e.Args[0])
	if addr == nil {
		return b.unitValue()
	}
	s := b.fn.newValue(OpStore, b.ctx.Unit())
	s.Operands = []*Value{addr, rhs}
	s.Span = e.Span
	b.emit(s)
	return b.unitValue()
}

// lowerAddress computes a pointer to an assignable expression: a local's
// slot, or a get_elem_ptr chain over one.
func (b *Builder) lowerAddress(e *semantic.TypedExpr) *Value {
	switch e.Kind {
	case semantic.ExprVariable:
		idx, ok := b.localOf[e.VarName]
		if !ok {
			b.diags.Errorf(diag.KindIRInternal, e.Span, "cannot take the address of %q", e.VarName)
			return nil
		}
		p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(e.Type))
		p.Local = idx
		p.Span = e.Span
		return b.emit(p)
	case semantic.ExprFieldAccess, semantic.ExprTupleIndex:
		base := b.lowerAddress(e.Args[0])
		if base == nil {
			return nil
		}
		g := b.fn.newValue(OpGetElemPtr, b.ctx.Ptr(e.Type))
		g.Operands = []*Value{base}
		g.Indices = []int{e.FieldIndex}
		g.Span = e.Span
		return b.emit(g)
	case semantic.ExprIndex:
		base := b.lowerAddress(e.Args[0])
		if base == nil {
			return nil
		}
		idx := b.lowerExpr(e.Args[1])
		addr := b.fn.newValue(OpPtrToInt, b.ctx.UInt(64))
		addr.Operands = []*Value{base}
		b.emit(addr)
		elemSize := b.constU64(SizeOf(b.ctx, e.Type))
		scaled := b.fn.newValue(OpBinary, b.ctx.UInt(64))
		scaled.Bin = BinMul
		scaled.Operands = []*Value{idx, elemSize}
		b.emit(scaled)
		sum := b.fn.newValue(OpBinary, b.ctx.UInt(64))
		sum.Bin = BinAdd
		sum.Operands = []*Value{addr, scaled}
		b.emit(sum)
		p := b.fn.newValue(OpIntToPtr, b.ctx.Ptr(e.Type))
		p.Operands = []*Value{sum}
		return b.emit(p)
	}
	b.diags.Errorf(diag.KindIRInternal, e.Span, "expression is not addressable")
	return nil
}

func (b *Builder) lowerAsm(e *semantic.TypedExpr) *Value {
	v := b.fn.newValue(OpAsmBlock, e.Type)
	v.AsmReturn = e.AsmReturn
	v.Span = e.Span
	for _, r := range e.AsmRegs {
		init := -1
		if r.Init != nil {
			v.Operands = append(v.Operands, b.lowerExpr(r.Init))
			init = len(v.Operands) - 1
		}
		v.AsmRegs = append(v.AsmRegs, AsmReg{Name: r.Name, Init: init})
	}
	for _, op := range e.AsmOps {
		v.AsmOps = append(v.AsmOps, AsmOp{Mnemonic: op.Mnemonic, Operands: op.Operands})
	}
	return b.emit(v)
}

func (b *Builder) lowerIntrinsic(e *semantic.TypedExpr) *Value {
	switch e.Intrinsic {
	case "__size_of":
		c := b.fn.newValue(OpConst, e.Type)
		c.Imm = SizeOf(b.ctx, e.TypeArgs[0])
		return b.emit(c)
	case "__size_of_val":
		b.lowerExpr(e.Args[0])
		c := b.fn.newValue(OpConst, e.Type)
		c.Imm = SizeOf(b.ctx, e.Args[0].Type)
		return b.emit(c)
	case "__is_reference_type":
		c := b.fn.newValue(OpConst, e.Type)
		if IsReferenceType(b.ctx, e.TypeArgs[0]) {
			c.Imm = 1
		}
		return b.emit(c)
	case "__addr_of":
		inner := b.lowerExpr(e.Args[0])
		local := b.fn.NewLocal("addr", inner.Type)
		p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(inner.Type))
		p.Local = local
		b.emit(p)
		s := b.fn.newValue(OpStore, b.ctx.Unit())
		s.Operands = []*Value{p, inner}
		b.emit(s)
		p2 := b.fn.newValue(OpGetLocal, b.ctx.Ptr(inner.Type))
		p2.Local = local
		b.emit(p2)
		cast := b.fn.newValue(OpCastPtr, e.Type)
		cast.Operands = []*Value{p2}
		return b.emit(cast)
	case "__revert":
		code := b.lowerExpr(e.Args[0])
		r := b.fn.newValue(OpRevert, b.ctx.Unit())
		r.Operands = []*Value{code}
		r.Span = e.Span
		b.emit(r)
		// Anything after a revert is unreachable; open a fresh block so the
		// remainder of the enclosing expression still has a home.
		b.cur = b.fn.NewBlock("postrevert")
		return b.unitValue()
	}
	b.diags.Errorf(diag.KindIRInternal, e.Span, "unhandled intrinsic %q during lowering", e.Intrinsic)
	return b.constU64(0)
}

// SizeOf computes a type's in-memory size in bytes, word-aligned the way
// the target VM addresses aggregates.
func SizeOf(ctx *types.Context, t types.TypeHandle) uint64 {
	d := ctx.GetType(t)
	switch d.Tag {
	case types.TagUnit:
		return 0
	case types.TagBool:
		return 8
	case types.TagUInt:
		if d.Width > 64 {
			return 32
		}
		return 8
	case types.TagB256:
		return 32
	case types.TagRawPtr, types.TagPtr, types.TagContract:
		return 8
	case types.TagRawSlice, types.TagSlice, types.TagStringSlice:
		return 16 // pointer + length
	case types.TagStringN:
		return roundUpToWord(uint64(d.Width))
	case types.TagArray:
		return uint64(d.ArrayLen) * SizeOf(ctx, d.Elem)
	case types.TagTuple:
		var total uint64
		for _, e := range d.Elems {
			total += SizeOf(ctx, e)
		}
		return total
	case types.TagStruct:
		decl := ctx.GetDecl(d.Decl)
		sigma := substitutionFor(decl.TypeParams, d.Args)
		var total uint64
		for _, f := range decl.Struct.Fields {
			total += SizeOf(ctx, ctx.Substitute(f.Type, sigma))
		}
		return total
	case types.TagEnum:
		decl := ctx.GetDecl(d.Decl)
		sigma := substitutionFor(decl.TypeParams, d.Args)
		var max uint64
		for _, v := range decl.Enum.Variants {
			if v.Payload.IsValid() {
				if s := SizeOf(ctx, ctx.Substitute(v.Payload, sigma)); s > max {
					max = s
				}
			}
		}
		return 8 + max // tag word plus the widest payload
	default:
		return 8
	}
}

func roundUpToWord(n uint64) uint64 {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}

func substitutionFor(params []types.TypeParamDecl, args []types.TypeHandle) types.Substitution {
	sigma := types.Substitution{}
	for i, p := range params {
		if i < len(args) {
			sigma[p.Name] = args[i]
		}
	}
	return sigma
}

// IsReferenceType reports whether values of t live in memory and are
// handled by pointer, as opposed to copy types that fit one word.
func IsReferenceType(ctx *types.Context, t types.TypeHandle) bool {
	switch ctx.GetType(t).Tag {
	case types.TagStruct, types.TagEnum, types.TagTuple, types.TagArray,
		types.TagStringN, types.TagStringSlice, types.TagRawSlice, types.TagSlice,
		types.TagB256:
		return true
	case types.TagUInt:
		return ctx.GetType(t).Width > 64
	}
	return false
}
