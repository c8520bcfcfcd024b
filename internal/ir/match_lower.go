package ir

import (
	"github.com/vmlang/corec/internal/semantic"
	"github.com/vmlang/corec/internal/types"
)

// lowerMatch builds the match decision tree: one test block per arm
// chained by cond_branches, each leaf branching to its arm body, all
// bodies branching to a shared join block that receives the match's value
// as a block argument. Semantic analysis guaranteed totality (or reported
// the miss), so the final fallthrough reverts rather than falling off.
func (b *Builder) lowerMatch(e *semantic.TypedExpr) *Value {
	scrut := b.lowerExpr(e.Args[0])

	join := b.fn.NewBlock("join")
	isUnit := b.ctx.GetType(e.Type).Tag == types.TagUnit
	var joinArg *Value
	if !isUnit {
		joinArg = b.fn.newValue(OpArg, e.Type)
		joinArg.Block = join
		join.Args = append(join.Args, joinArg)
	}

	next := b.fn.NewBlock("arm")
	b.branchTo(next)
	for _, arm := range e.Arms {
		b.cur = next
		next = b.fn.NewBlock("arm")

		bindings := map[string]*Value{}
		cond := b.patternTest(scrut, arm.Pattern, bindings)

		body := b.fn.NewBlock("body")
		if cond == nil {
			b.branchTo(body)
		} else {
			b.condBranchTo(cond, body, next)
		}

		b.cur = body
		for name, v := range bindings {
			local := b.fn.NewLocal(name, v.Type)
			b.localOf[name] = local
			p := b.fn.newValue(OpGetLocal, b.ctx.Ptr(v.Type))
			p.Local = local
			b.emit(p)
			s := b.fn.newValue(OpStore, b.ctx.Unit())
			s.Operands = []*Value{p, v}
			b.emit(s)
		}
		val := b.lowerExpr(arm.Body)
		if b.cur.Terminator() == nil {
			if isUnit {
				b.branchTo(join)
			} else {
				b.branchTo(join, val)
			}
		}
	}

	// Fallthrough for a miss no arm covers.
	b.cur = next
	code := b.constU64(0)
	r := b.fn.newValue(OpRevert, b.ctx.Unit())
	r.Operands = []*Value{code}
	r.Span = e.Span
	b.emit(r)

	b.cur = join
	if joinArg != nil {
		return joinArg
	}
	return b.unitValue()
}

// patternTest emits the boolean test for one pattern against an
// already-lowered value. A nil return means the pattern always matches
// (pure wildcards). Sub-values bound by named wildcards are collected into
// bindings for the arm body to store.
func (b *Builder) patternTest(v *Value, p *semantic.MatchPattern, bindings map[string]*Value) *Value {
	switch p.Kind {
	case semantic.PatWildcard:
		if p.BindName != "" {
			bindings[p.BindName] = v
		}
		return nil
	case semantic.PatBool:
		var want uint64
		if p.Bool {
			want = 1
		}
		return b.cmpAgainstConst(v, want)
	case semantic.PatRange:
		if p.Lo == p.Hi {
			return b.cmpAgainstConst(v, p.Lo)
		}
		lo := b.fn.newValue(OpConst, v.Type)
		lo.Imm = p.Lo
		b.emit(lo)
		hi := b.fn.newValue(OpConst, v.Type)
		hi.Imm = p.Hi
		b.emit(hi)
		ge := b.fn.newValue(OpCmp, b.ctx.Bool())
		ge.Pred = CmpGe
		ge.Operands = []*Value{v, lo}
		b.emit(ge)
		le := b.fn.newValue(OpCmp, b.ctx.Bool())
		le.Pred = CmpLe
		le.Operands = []*Value{v, hi}
		b.emit(le)
		return b.andConds(ge, le)
	case semantic.PatB256:
		c := b.fn.newValue(OpConst, v.Type)
		c.B256 = p.B256
		b.emit(c)
		eq := b.fn.newValue(OpCmp, b.ctx.Bool())
		eq.Pred = CmpEq
		eq.Operands = []*Value{v, c}
		return b.emit(eq)
	case semantic.PatString:
		c := b.fn.newValue(OpConst, v.Type)
		c.Raw = []byte(p.Str)
		b.emit(c)
		eq := b.fn.newValue(OpCmp, b.ctx.Bool())
		eq.Pred = CmpEq
		eq.Operands = []*Value{v, c}
		return b.emit(eq)
	case semantic.PatTuple, semantic.PatStruct:
		var cond *Value
		for i, sub := range p.Subs {
			field := b.fn.newValue(OpExtractValue, b.subTypeOf(v.Type, i))
			field.Operands = []*Value{v}
			field.Indices = []int{i}
			b.emit(field)
			if c := b.patternTest(field, sub, bindings); c != nil {
				cond = b.andConds(cond, c)
			}
		}
		return cond
	case semantic.PatEnum:
		tag := b.fn.newValue(OpExtractValue, b.ctx.UInt(64))
		tag.Operands = []*Value{v}
		tag.Indices = []int{0}
		b.emit(tag)
		cond := b.cmpAgainstConst(tag, uint64(p.Variant))
		if len(p.Subs) == 1 {
			payload := b.fn.newValue(OpExtractValue, b.enumPayloadType(v.Type, p.Variant))
			payload.Operands = []*Value{v}
			payload.Indices = []int{1}
			b.emit(payload)
			if c := b.patternTest(payload, p.Subs[0], bindings); c != nil {
				cond = b.andConds(cond, c)
			}
		}
		return cond
	case semantic.PatOr:
		var cond *Value
		for _, alt := range p.Subs {
			c := b.patternTest(v, alt, bindings)
			if c == nil {
				return nil // an irrefutable alternative makes the whole or irrefutable
			}
			if cond == nil {
				cond = c
			} else {
				or := b.fn.newValue(OpBinary, b.ctx.Bool())
				or.Bin = BinOr
				or.Operands = []*Value{cond, c}
				cond = b.emit(or)
			}
		}
		return cond
	}
	return nil
}

func (b *Builder) cmpAgainstConst(v *Value, want uint64) *Value {
	c := b.fn.newValue(OpConst, v.Type)
	c.Imm = want
	b.emit(c)
	eq := b.fn.newValue(OpCmp, b.ctx.Bool())
	eq.Pred = CmpEq
	eq.Operands = []*Value{v, c}
	return b.emit(eq)
}

func (b *Builder) andConds(a, c *Value) *Value {
	if a == nil {
		return c
	}
	and := b.fn.newValue(OpBinary, b.ctx.Bool())
	and.Bin = BinAnd
	and.Operands = []*Value{a, c}
	return b.emit(and)
}

func (b *Builder) subTypeOf(aggregate types.TypeHandle, index int) types.TypeHandle {
	d := b.ctx.GetType(aggregate)
	switch d.Tag {
	case types.TagTuple:
		if index < len(d.Elems) {
			return d.Elems[index]
		}
	case types.TagStruct:
		decl := b.ctx.GetDecl(d.Decl)
		if index < len(decl.Struct.Fields) {
			sigma := substitutionFor(decl.TypeParams, d.Args)
			return b.ctx.Substitute(decl.Struct.Fields[index].Type, sigma)
		}
	case types.TagArray:
		return d.Elem
	}
	return b.ctx.ErrorRecovery()
}

func (b *Builder) enumPayloadType(enumTy types.TypeHandle, variant int) types.TypeHandle {
	d := b.ctx.GetType(enumTy)
	if d.Tag != types.TagEnum {
		return b.ctx.ErrorRecovery()
	}
	decl := b.ctx.GetDecl(d.Decl)
	if variant >= len(decl.Enum.Variants) || !decl.Enum.Variants[variant].Payload.IsValid() {
		return b.ctx.Unit()
	}
	sigma := substitutionFor(decl.TypeParams, d.Args)
	return b.ctx.Substitute(decl.Enum.Variants[variant].Payload, sigma)
}
